// Package config loads and validates the client configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Config holds everything the client needs to reach the platform.
type Config struct {
	// APIBaseURL is the REST backend base URL (http:// or https://).
	APIBaseURL string `toml:"api_base_url"`

	// HubURL is the realtime notification hub base URL (ws:// or wss://).
	HubURL string `toml:"hub_url"`

	// DatabasePath is the local state database file.
	DatabasePath string `toml:"database_path"`

	// RequestTimeout bounds every REST call.
	RequestTimeout time.Duration `toml:"-"`

	// RequestTimeoutSec is the TOML/env representation of RequestTimeout.
	RequestTimeoutSec int `toml:"request_timeout_sec"`
}

// Load reads configuration from the TOML file at path (skipped when the
// file doesn't exist), applies environment overrides, and validates the
// result. A .env file in the working directory is honored when present.
func Load(path string) (*Config, error) {
	// .env is optional; real environments provide variables directly.
	_ = godotenv.Load()

	cfg := &Config{
		DatabasePath:      defaultDatabasePath(),
		RequestTimeoutSec: 30,
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// No config file, env must carry everything.
		case err != nil:
			return nil, fmt.Errorf("reading config file %q: %w", path, err)
		default:
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file %q: %w", path, err)
			}
		}
	}

	applyEnv(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	cfg.RequestTimeout = time.Duration(cfg.RequestTimeoutSec) * time.Second
	return cfg, nil
}

// applyEnv overrides file values with environment variables.
func applyEnv(cfg *Config) {
	if v := os.Getenv("GATHERLY_API_URL"); v != "" {
		cfg.APIBaseURL = v
	}
	if v := os.Getenv("GATHERLY_HUB_URL"); v != "" {
		cfg.HubURL = v
	}
	if v := os.Getenv("GATHERLY_DB_PATH"); v != "" {
		cfg.DatabasePath = v
	}
	if v := os.Getenv("GATHERLY_REQUEST_TIMEOUT_SEC"); v != "" {
		if sec, err := strconv.Atoi(v); err == nil && sec > 0 {
			cfg.RequestTimeoutSec = sec
		}
	}
}

// validate applies all the rules on the loaded configuration.
func (c *Config) validate() error {
	if strings.TrimSpace(c.APIBaseURL) == "" {
		return fmt.Errorf("config: api_base_url (or GATHERLY_API_URL) is required")
	}
	if err := validateURL(c.APIBaseURL, "http", "https"); err != nil {
		return fmt.Errorf("config: api_base_url: %w", err)
	}

	if strings.TrimSpace(c.HubURL) == "" {
		return fmt.Errorf("config: hub_url (or GATHERLY_HUB_URL) is required")
	}
	if err := validateURL(c.HubURL, "ws", "wss"); err != nil {
		return fmt.Errorf("config: hub_url: %w", err)
	}

	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("config: database_path cannot be empty")
	}

	if c.RequestTimeoutSec <= 0 {
		return fmt.Errorf("config: request_timeout_sec must be positive")
	}

	return nil
}

// validateURL checks the value parses and uses one of the allowed schemes.
func validateURL(raw string, schemes ...string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if parsed.Host == "" {
		return fmt.Errorf("invalid URL %q: missing host", raw)
	}
	for _, s := range schemes {
		if parsed.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("invalid URL %q: scheme must be one of %s", raw, strings.Join(schemes, ", "))
}

// defaultDatabasePath places the state database under the user config dir.
func defaultDatabasePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "gatherly/state.db"
	}
	return filepath.Join(dir, "gatherly", "state.db")
}
