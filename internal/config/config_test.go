// Streamlens - Twitch Live Stream ETL and Analytics
// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got: %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := loadFrom("")
	if err != nil {
		t.Fatalf("loadFrom failed: %v", err)
	}

	if cfg.Twitch.PerPage != 100 {
		t.Errorf("Twitch.PerPage = %d, want 100", cfg.Twitch.PerPage)
	}
	if cfg.Twitch.MaxPages != 5 {
		t.Errorf("Twitch.MaxPages = %d, want 5", cfg.Twitch.MaxPages)
	}
	if cfg.Database.Path != "db/twitch.duckdb" {
		t.Errorf("Database.Path = %q, want db/twitch.duckdb", cfg.Database.Path)
	}
	if cfg.Load.BatchSize != 1000 {
		t.Errorf("Load.BatchSize = %d, want 1000", cfg.Load.BatchSize)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("TWITCH_CLIENT_ID", "abc123")
	t.Setenv("TWITCH_MAX_PAGES", "9")
	t.Setenv("TWITCH_LANG_FILTER", "en, de ,fr")
	t.Setenv("DUCKDB_PATH", "/tmp/test.duckdb")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := loadFrom("")
	if err != nil {
		t.Fatalf("loadFrom failed: %v", err)
	}

	if cfg.Twitch.ClientID != "abc123" {
		t.Errorf("ClientID = %q, want abc123", cfg.Twitch.ClientID)
	}
	if cfg.Twitch.MaxPages != 9 {
		t.Errorf("MaxPages = %d, want 9", cfg.Twitch.MaxPages)
	}
	if len(cfg.Twitch.Languages) != 3 || cfg.Twitch.Languages[1] != "de" {
		t.Errorf("Languages = %v, want [en de fr]", cfg.Twitch.Languages)
	}
	if cfg.Database.Path != "/tmp/test.duckdb" {
		t.Errorf("Database.Path = %q, want /tmp/test.duckdb", cfg.Database.Path)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "streamlens.yaml")
	yaml := `
twitch:
  max_pages: 2
  per_page: 50
analytics:
  top_n: 7
server:
  port: 9000
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := loadFrom(path)
	if err != nil {
		t.Fatalf("loadFrom failed: %v", err)
	}

	if cfg.Twitch.MaxPages != 2 || cfg.Twitch.PerPage != 50 {
		t.Errorf("twitch = %d pages x %d, want 2 x 50", cfg.Twitch.MaxPages, cfg.Twitch.PerPage)
	}
	if cfg.Analytics.TopN != 7 {
		t.Errorf("Analytics.TopN = %d, want 7", cfg.Analytics.TopN)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	// Untouched values keep defaults.
	if cfg.Load.RetryDelay != 2*time.Second {
		t.Errorf("Load.RetryDelay = %v, want 2s", cfg.Load.RetryDelay)
	}
}

func TestEnvBeatsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "streamlens.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9000\n"), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv("HTTP_PORT", "9100")

	cfg, err := loadFrom(path)
	if err != nil {
		t.Fatalf("loadFrom failed: %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("Server.Port = %d, want env override 9100", cfg.Server.Port)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"per_page above helix cap", func(c *Config) { c.Twitch.PerPage = 101 }},
		{"zero max_pages", func(c *Config) { c.Twitch.MaxPages = 0 }},
		{"empty database path", func(c *Config) { c.Database.Path = "" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad helix scheme", func(c *Config) { c.Twitch.HelixURL = "ftp://api.twitch.tv" }},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"blank language entry", func(c *Config) { c.Twitch.Languages = []string{"en", " "} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestValidateTwitchCredentials(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.ValidateTwitchCredentials(); err == nil {
		t.Error("expected error with empty credentials")
	}

	cfg.Twitch.ClientID = "id"
	if err := cfg.ValidateTwitchCredentials(); err == nil {
		t.Error("expected error with missing secret")
	}

	cfg.Twitch.ClientSecret = "secret"
	if err := cfg.ValidateTwitchCredentials(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestEnvTransformDropsUnknown(t *testing.T) {
	if got := envTransformFunc("PATH"); got != "" {
		t.Errorf("envTransformFunc(PATH) = %q, want empty", got)
	}
	if got := envTransformFunc("TWITCH_CLIENT_ID"); got != "twitch.client_id" {
		t.Errorf("envTransformFunc(TWITCH_CLIENT_ID) = %q", got)
	}
}
