// Streamlens - Twitch Live Stream ETL and Analytics
// SPDX-License-Identifier: MIT

// Package config defines the streamlens configuration and its layered
// loading: built-in defaults, an optional YAML file, then environment
// variables (highest priority), all via koanf v2.
package config

import (
	"time"
)

// Config is the root configuration for all streamlens commands.
type Config struct {
	Twitch    TwitchConfig    `koanf:"twitch"`
	Database  DatabaseConfig  `koanf:"database"`
	Extract   ExtractConfig   `koanf:"extract"`
	Load      LoadConfig      `koanf:"load"`
	Analytics AnalyticsConfig `koanf:"analytics"`
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// TwitchConfig holds Helix API credentials and fetch tuning.
type TwitchConfig struct {
	// Credentials are only required by commands that talk to Helix;
	// see Config.ValidateTwitchCredentials.
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`

	// TokenURL and HelixURL are overridable for testing against fakes.
	TokenURL string `koanf:"token_url" validate:"required,url"`
	HelixURL string `koanf:"helix_url" validate:"required,url"`

	// MaxPages limits pagination per language; PerPage is the Helix page
	// size (capped at 100 by the API).
	MaxPages int `koanf:"max_pages" validate:"gte=1"`
	PerPage  int `koanf:"per_page" validate:"gte=1,lte=100"`

	// Languages filters streams by broadcaster language. Empty means no
	// filter. Loaded from a comma-separated TWITCH_LANG_FILTER.
	Languages []string `koanf:"languages"`

	// PageDelay is the pause between successive Helix page requests.
	PageDelay time.Duration `koanf:"page_delay"`

	Timeout        time.Duration `koanf:"timeout" validate:"gt=0"`
	RetryAttempts  int           `koanf:"retry_attempts" validate:"gte=1"`
	RetryBaseDelay time.Duration `koanf:"retry_base_delay" validate:"gt=0"`

	// RequestsPerSecond bounds the client-side request rate against Helix.
	RequestsPerSecond float64 `koanf:"requests_per_second" validate:"gt=0"`
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	Path      string `koanf:"path" validate:"required"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"` // 0 = runtime.NumCPU()
}

// ExtractConfig holds the raw and processed snapshot locations.
type ExtractConfig struct {
	RawDir       string `koanf:"raw_dir" validate:"required"`
	ProcessedDir string `koanf:"processed_dir" validate:"required"`
}

// LoadConfig tunes the idempotent append into DuckDB.
type LoadConfig struct {
	BatchSize     int           `koanf:"batch_size" validate:"gte=1"`
	RetryAttempts int           `koanf:"retry_attempts" validate:"gte=1"`
	RetryDelay    time.Duration `koanf:"retry_delay" validate:"gt=0"`
}

// AnalyticsConfig tunes report queries and chart output.
type AnalyticsConfig struct {
	OutputDir string `koanf:"output_dir" validate:"required"`

	// MinStreams is the minimum stream count for a game to appear in the
	// top-games report.
	MinStreams int `koanf:"min_streams" validate:"gte=1"`
	TopN       int `koanf:"top_n" validate:"gte=1"`
}

// ServerConfig holds the read-only analytics API settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port" validate:"gte=1,lte=65535"`
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`

	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"gte=1"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn warning error fatal disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by the config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Twitch: TwitchConfig{
			ClientID:          "",
			ClientSecret:      "",
			TokenURL:          "https://id.twitch.tv/oauth2/token",
			HelixURL:          "https://api.twitch.tv/helix",
			MaxPages:          5,
			PerPage:           100,
			Languages:         nil,
			PageDelay:         250 * time.Millisecond,
			Timeout:           30 * time.Second,
			RetryAttempts:     5,
			RetryBaseDelay:    time.Second,
			RequestsPerSecond: 4,
		},
		Database: DatabaseConfig{
			Path:      "db/twitch.duckdb",
			MaxMemory: "1GB",
			Threads:   0,
		},
		Extract: ExtractConfig{
			RawDir:       "data/raw",
			ProcessedDir: "data/processed",
		},
		Load: LoadConfig{
			BatchSize:     1000,
			RetryAttempts: 3,
			RetryDelay:    2 * time.Second,
		},
		Analytics: AnalyticsConfig{
			OutputDir:  "outputs",
			MinStreams: 5,
			TopN:       15,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8480,
			Timeout:         30 * time.Second,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}
