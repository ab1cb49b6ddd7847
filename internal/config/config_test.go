// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// =============================================================================
// LOADING TESTS
// =============================================================================

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	def := Default()
	if cfg.Backend.URL != def.Backend.URL {
		t.Errorf("Expected default URL %q, got %q", def.Backend.URL, cfg.Backend.URL)
	}
	if cfg.Backend.TimeoutSecs != def.Backend.TimeoutSecs {
		t.Errorf("Expected default timeout, got %d", cfg.Backend.TimeoutSecs)
	}
	if cfg.UI.Theme != "auto" {
		t.Errorf("Expected default theme auto, got %q", cfg.UI.Theme)
	}
}

func TestLoadParsesTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[backend]
url = "https://relay.example.com"
timeout_secs = 10

[ui]
theme = "dark"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Backend.URL != "https://relay.example.com" {
		t.Errorf("Unexpected URL: %q", cfg.Backend.URL)
	}
	if cfg.Timeout() != 10*time.Second {
		t.Errorf("Unexpected timeout: %v", cfg.Timeout())
	}
	if cfg.UI.Theme != "dark" {
		t.Errorf("Unexpected theme: %q", cfg.UI.Theme)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[backend]\nurl = \"https://file.example.com\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("RELAY_BACKEND_URL", "https://env.example.com")
	t.Setenv("RELAY_THEME", "light")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Backend.URL != "https://env.example.com" {
		t.Errorf("Env override lost: %q", cfg.Backend.URL)
	}
	if cfg.UI.Theme != "light" {
		t.Errorf("Env theme override lost: %q", cfg.UI.Theme)
	}
}

// =============================================================================
// VALIDATION TESTS
// =============================================================================

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty url", func(c *Config) { c.Backend.URL = "" }},
		{"relative url", func(c *Config) { c.Backend.URL = "not-a-url" }},
		{"zero timeout", func(c *Config) { c.Backend.TimeoutSecs = 0 }},
		{"huge timeout", func(c *Config) { c.Backend.TimeoutSecs = 10000 }},
		{"unknown theme", func(c *Config) { c.UI.Theme = "solarized" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("Default config must validate: %v", err)
	}
}

// =============================================================================
// WATCHER TESTS
// =============================================================================

func TestWatchReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[backend]\ntimeout_secs = 5\n"), 0644); err != nil {
		t.Fatal(err)
	}

	reloaded := make(chan *Config, 1)
	w, err := Watch(path, func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(path, []byte("[backend]\ntimeout_secs = 7\n"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.Backend.TimeoutSecs != 7 {
			t.Errorf("Expected reloaded timeout 7, got %d", cfg.Backend.TimeoutSecs)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Timed out waiting for config reload")
	}
}

func TestWatchKeepsPreviousOnBadReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[backend]\ntimeout_secs = 5\n"), 0644); err != nil {
		t.Fatal(err)
	}

	var calls int
	w, err := Watch(path, func(*Config) { calls++ })
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	defer w.Close()

	// Invalid TOML must be dropped without invoking the callback.
	if err := os.WriteFile(path, []byte("timeout_secs = ["), 0644); err != nil {
		t.Fatal(err)
	}

	time.Sleep(2 * watchDebounce)
	if calls != 0 {
		t.Errorf("Callback ran for an invalid config, calls=%d", calls)
	}
}
