package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/vincentbai/getracker/internal/dom"
	"github.com/vincentbai/getracker/internal/formmap"
	"github.com/vincentbai/getracker/internal/getracker"
	"github.com/vincentbai/getracker/internal/models"
	"github.com/vincentbai/getracker/internal/replay"
	"github.com/vincentbai/getracker/internal/server"
)

func captureCmd(flags *globalFlags) *cobra.Command {
	var lead models.LeadData
	var custom []string

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Send one lead with attribution for --url",
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := parsePairs("--custom", custom)
			if err != nil {
				return err
			}
			if len(fields) > 0 {
				lead.Custom = fields
			}

			cfg, opts, closeStore, err := flags.clientOptions(cmd, clientSetup{})
			if err != nil {
				return err
			}
			defer closeStore()

			if _, err := getracker.Init(cfg, opts...); err != nil {
				return err
			}
			result, err := getracker.Capture(cmd.Context(), lead)
			if err != nil {
				return err
			}
			if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
				return err
			}
			if !result.Success {
				return fmt.Errorf("capture failed: %s", result.Error)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&lead.Email, "email", "", "lead email (required)")
	f.StringVar(&lead.Name, "name", "", "lead name")
	f.StringVar(&lead.Phone, "phone", "", "lead phone")
	f.StringVar(&lead.Company, "company", "", "lead company")
	f.StringVar(&lead.Notes, "notes", "", "free-form notes")
	f.StringVar(&lead.ChatflowID, "chatflow-id", "", "originating chatflow")
	f.StringArrayVar(&custom, "custom", nil, "custom field as key=value (repeatable)")
	return cmd
}

func parsePairs(flag string, pairs []string) (map[string]string, error) {
	fields := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid %s %q, want key=value", flag, pair)
		}
		fields[key] = value
	}
	return fields, nil
}

type scannedForm struct {
	Index  int              `json:"index"`
	ID     string           `json:"id,omitempty"`
	Fields map[string]any   `json:"fields"`
	Lead   *models.LeadData `json:"lead,omitempty"`
}

func scanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan PAGE.html",
		Short: "List forms in a page and the lead each would produce",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadDocument(args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), scanForms(doc))
		},
	}
}

func scanForms(doc *dom.Document) []scannedForm {
	forms := doc.Forms()
	scanned := make([]scannedForm, 0, len(forms))
	for i, form := range forms {
		fields := form.Fields()
		entry := scannedForm{Index: i, ID: form.ID(), Fields: make(map[string]any, len(fields))}
		for _, field := range fields {
			entry.Fields[field.Name] = field.Value
		}
		if result, ok := formmap.Extract(fields); ok {
			lead := result.Lead
			entry.Lead = &lead
		}
		scanned = append(scanned, entry)
	}
	return scanned
}

func loadDocument(path string) (*dom.Document, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	defer file.Close()

	doc, err := dom.Parse(file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}
	return doc, nil
}

func attributionCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "attribution",
		Short: "Resolve and persist attribution for --url",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, closeStore, err := flags.newClient(cmd, clientSetup{})
			if err != nil {
				return err
			}
			defer closeStore()

			return writeJSON(cmd.OutOrStdout(), struct {
				UTM         models.UTMParams       `json:"utm"`
				Attribution models.AttributionData `json:"attribution"`
			}{
				UTM:         client.UTMParams(),
				Attribution: client.Attribution(),
			})
		},
	}
}

func resetCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Forget persisted UTM parameters and click ids",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, closeStore, err := flags.newClient(cmd, clientSetup{})
			if err != nil {
				return err
			}
			defer closeStore()

			if err := client.ResetAttribution(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "attribution state cleared")
			return nil
		},
	}
}

func replayCmd(flags *globalFlags) *cobra.Command {
	var (
		submit      bool
		watchDir    string
		debounce    time.Duration
		metricsAddr string
		fill        []string
		outputPath  string
	)

	cmd := &cobra.Command{
		Use:   "replay PAGE.html",
		Short: "Instrument a page headlessly and replay submissions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parsePairs("--fill", fill)
			if err != nil {
				return err
			}
			doc, err := loadDocument(args[0])
			if err != nil {
				return err
			}

			registry := prometheus.NewRegistry()
			client, closeStore, err := flags.newClient(cmd, clientSetup{document: doc, registerer: registry})
			if err != nil {
				return err
			}
			defer closeStore()

			logger := newLogger(cmd.ErrOrStderr(), client.Config().Debug)
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := client.AutoCapture(ctx); err != nil {
				return err
			}
			runner := replay.NewRunner(client, doc, logger)
			runner.SetValues(values)
			if submit {
				runner.SubmitForms(doc.Forms())
			}

			longRunning := false
			serverErr := make(chan error, 1)
			if metricsAddr != "" {
				longRunning = true
				srv := server.NewServer(registry, client.IsReady, metricsAddr, logger)
				go func() { serverErr <- srv.Start(ctx) }()
			}
			if watchDir != "" {
				longRunning = true
				watcher, err := replay.NewWatcher(watchDir, debounce, logger)
				if err != nil {
					return fmt.Errorf("failed to watch %s: %w", watchDir, err)
				}
				defer watcher.Close()
				go watcher.Run(ctx)
				go runner.Replay(ctx, watcher)
			}

			if longRunning {
				select {
				case <-ctx.Done():
				case err := <-serverErr:
					if err != nil {
						stop()
						client.Wait()
						return err
					}
					<-ctx.Done()
				}
			}

			client.Wait()
			logger.Info("Replay finished", "submissions", len(doc.Submissions()))

			if outputPath != "" {
				rendered, err := doc.Render()
				if err != nil {
					return fmt.Errorf("failed to render page: %w", err)
				}
				if err := os.WriteFile(outputPath, []byte(rendered), 0o644); err != nil {
					return fmt.Errorf("failed to write page: %w", err)
				}
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.BoolVar(&submit, "submit", false, "submit every form on the page after instrumenting it")
	f.StringVar(&watchDir, "watch", "", "inject each .html fragment written to this directory")
	f.DurationVar(&debounce, "debounce", 200*time.Millisecond, "wait for writes to settle before injecting a fragment")
	f.StringVar(&metricsAddr, "metrics-addr", "", "serve /healthz, /readyz and /metrics on this address")
	f.StringArrayVar(&fill, "fill", nil, "set control name=value in each form before it is submitted (repeatable)")
	f.StringVar(&outputPath, "output", "", "write the instrumented page here when replay ends")
	return cmd
}
