// Package main provides the getracker binary: a headless driver for the lead
// capture client.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/vincentbai/getracker/internal/browser"
	"github.com/vincentbai/getracker/internal/config"
	"github.com/vincentbai/getracker/internal/dom"
	"github.com/vincentbai/getracker/internal/storage"
	"github.com/vincentbai/getracker/internal/tracker"
)

const appName = "getracker"

type globalFlags struct {
	configPath string
	apiKey     string
	apiHost    string
	companyID  string
	debug      bool
	stateDir   string
	redisAddr  string
	url        string
	referrer   string
	userAgent  string
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		log.Fatal(err)
	}
}

func rootCmd() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Capture leads with marketing attribution",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "YAML config file")
	pf.StringVar(&flags.apiKey, "api-key", "", "tracker API key")
	pf.StringVar(&flags.apiHost, "api-host", "", "tracker API host (default "+config.DefaultAPIHost+")")
	pf.StringVar(&flags.companyID, "company-id", "", "company identifier")
	pf.BoolVar(&flags.debug, "debug", false, "enable debug logging")
	pf.StringVar(&flags.stateDir, "state-dir", "", "directory for durable attribution state (default: platform app data dir)")
	pf.StringVar(&flags.redisAddr, "redis-addr", "", "keep durable attribution state in Redis instead of SQLite")
	pf.StringVar(&flags.url, "url", "", "current page URL")
	pf.StringVar(&flags.referrer, "referrer", "", "document referrer")
	pf.StringVar(&flags.userAgent, "user-agent", appName, "user agent")

	cmd.AddCommand(
		captureCmd(flags),
		scanCmd(),
		attributionCmd(flags),
		resetCmd(flags),
		replayCmd(flags),
	)
	return cmd
}

// newLogger logs at Debug level when debug is set in the resolved config.
func newLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// loadConfig layers flags over the config file and environment.
func (f *globalFlags) loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return config.Config{}, err
	}
	pf := cmd.Flags()
	if pf.Changed("api-key") {
		cfg.APIKey = f.apiKey
	}
	if pf.Changed("api-host") {
		cfg.APIHost = f.apiHost
	}
	if pf.Changed("company-id") {
		cfg.CompanyID = f.companyID
	}
	if pf.Changed("debug") {
		cfg.Debug = f.debug
	}
	return cfg, nil
}

func defaultStateDir() (string, error) {
	homeDirectory, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDirectory, "Library", "Application Support", "GETracker"), nil
	case "windows":
		return filepath.Join(homeDirectory, "AppData", "Roaming", "GETracker"), nil
	default: // linux and others
		return filepath.Join(homeDirectory, ".local", "share", "GETracker"), nil
	}
}

// openDurable opens the durable scope: Redis when an address is given,
// otherwise a SQLite file in the state directory.
func (f *globalFlags) openDurable() (storage.Store, func() error, error) {
	if f.redisAddr != "" {
		store := storage.NewRedisStore(redis.NewClient(&redis.Options{Addr: f.redisAddr}), appName+":")
		return store, store.Close, nil
	}

	dir := f.stateDir
	if dir == "" {
		var err error
		if dir, err = defaultStateDir(); err != nil {
			return nil, nil, err
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	store, err := storage.NewSQLiteStore(filepath.Join(dir, "attribution.db"))
	if err != nil {
		return nil, nil, err
	}
	return store, store.Close, nil
}

type clientSetup struct {
	document   *dom.Document
	registerer prometheus.Registerer
}

// clientOptions resolves config and the tracker options for the
// flag-described page. The returned func releases the durable store.
func (f *globalFlags) clientOptions(cmd *cobra.Command, setup clientSetup) (config.Config, []tracker.Option, func() error, error) {
	cfg, err := f.loadConfig(cmd)
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	durable, closeDurable, err := f.openDurable()
	if err != nil {
		return config.Config{}, nil, nil, err
	}

	opts := []tracker.Option{
		tracker.WithEnvironment(browser.NewWindow(f.url, f.referrer, f.userAgent)),
		tracker.WithDurableStore(durable),
		tracker.WithSessionStore(storage.NewMemory()),
		tracker.WithLogger(newLogger(cmd.ErrOrStderr(), cfg.Debug)),
	}
	if setup.document != nil {
		opts = append(opts, tracker.WithDocument(setup.document))
	}
	if setup.registerer != nil {
		opts = append(opts, tracker.WithRegisterer(setup.registerer))
	}
	return cfg, opts, closeDurable, nil
}

// newClient builds an initialized client.
func (f *globalFlags) newClient(cmd *cobra.Command, setup clientSetup) (*tracker.Client, func() error, error) {
	cfg, opts, closeDurable, err := f.clientOptions(cmd, setup)
	if err != nil {
		return nil, nil, err
	}
	client, err := tracker.New(cfg, opts...)
	if err != nil {
		closeDurable()
		return nil, nil, err
	}
	client.Init()
	return client, closeDurable, nil
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
