// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for relay.
//
// Configuration is TOML with sensible defaults, environment variable
// overrides, and validation. File location: ~/.relay/config.toml.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the complete relay configuration.
type Config struct {
	// Backend settings
	Backend BackendConfig `toml:"backend"`

	// UI settings
	UI UIConfig `toml:"ui"`
}

// BackendConfig contains Relay backend connection settings.
type BackendConfig struct {
	// URL is the backend base URL.
	URL string `toml:"url"`
	// TimeoutSecs is the timeout for non-streaming requests in seconds.
	// Streaming requests carry no timeout; their lifetime follows the stream.
	TimeoutSecs int `toml:"timeout_secs"`
}

// UIConfig contains presentation settings.
type UIConfig struct {
	// Theme selects the glamour style for assistant markdown: "auto",
	// "dark", "light", or "notty".
	Theme string `toml:"theme"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			URL:         "https://relay.local/api",
			TimeoutSecs: 30,
		},
		UI: UIConfig{
			Theme: "auto",
		},
	}
}

// DefaultPath returns ~/.relay/config.toml.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".relay", "config.toml"), nil
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads the configuration from path, falling back to defaults when the
// file does not exist, then applies environment overrides and validates.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Missing file is fine; defaults plus env apply.
	} else {
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv applies RELAY_* environment overrides. Env beats file.
func (c *Config) applyEnv() {
	if v := os.Getenv("RELAY_BACKEND_URL"); v != "" {
		c.Backend.URL = v
	}
	if v := os.Getenv("RELAY_TIMEOUT_SECS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			c.Backend.TimeoutSecs = secs
		}
	}
	if v := os.Getenv("RELAY_THEME"); v != "" {
		c.UI.Theme = v
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate checks the configuration for usable values.
func (c *Config) Validate() error {
	if c.Backend.URL == "" {
		return errors.New("backend.url must not be empty")
	}
	u, err := url.Parse(c.Backend.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend.url is not a valid URL: %q", c.Backend.URL)
	}

	if c.Backend.TimeoutSecs < 1 || c.Backend.TimeoutSecs > 300 {
		return fmt.Errorf("backend.timeout_secs out of range [1,300]: %d", c.Backend.TimeoutSecs)
	}

	switch c.UI.Theme {
	case "auto", "dark", "light", "notty":
	default:
		return fmt.Errorf("ui.theme must be auto, dark, light, or notty: %q", c.UI.Theme)
	}

	return nil
}

// Timeout returns the request timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Backend.TimeoutSecs) * time.Second
}
