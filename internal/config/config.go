package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultAPIHost = "http://localhost:3000"
	TrackerPath    = "/api/v1/tracker"
)

var ErrAPIKeyRequired = errors.New("API key is required")

// Config is the capture client configuration.
type Config struct {
	APIKey    string `yaml:"api_key"`
	CompanyID string `yaml:"company_id,omitempty"`
	APIHost   string `yaml:"api_host,omitempty"`
	Debug     bool   `yaml:"debug,omitempty"`
}

// WithDefaults returns a copy with unset optional fields filled in.
func (c Config) WithDefaults() Config {
	if c.APIHost == "" {
		c.APIHost = DefaultAPIHost
	}
	return c
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return ErrAPIKeyRequired
	}
	return nil
}

// Endpoint is the tracker URL leads are posted to.
func (c Config) Endpoint() string {
	host := c.APIHost
	if host == "" {
		host = DefaultAPIHost
	}
	return strings.TrimRight(host, "/") + TrackerPath
}

// Load reads a YAML config file (when path is non-empty), applies GETRACKER_*
// environment overrides and fills defaults. It does not validate.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg.WithDefaults(), nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("GETRACKER_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("GETRACKER_API_HOST"); v != "" {
		cfg.APIHost = v
	}
	if v := os.Getenv("GETRACKER_COMPANY_ID"); v != "" {
		cfg.CompanyID = v
	}
	if v := os.Getenv("GETRACKER_DEBUG"); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid GETRACKER_DEBUG %q: %w", v, err)
		}
		cfg.Debug = debug
	}
	return nil
}
