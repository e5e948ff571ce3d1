// Pulseboard - Multi-Source KPI Sync and Classification Engine
// Copyright 2026 Pulseboard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulseboard/pulseboard

// Package config defines the Pulseboard configuration model and the koanf
// loading pipeline: struct defaults, then an optional YAML file, then
// PULSEBOARD_-prefixed environment variables, validated before use.
package config

import "time"

// Config is the root configuration for the Pulseboard process.
type Config struct {
	Board     BoardConfig     `koanf:"board"`
	Analytics AnalyticsConfig `koanf:"analytics"`
	Uptime    UptimeConfig    `koanf:"uptime"`
	Vitals    VitalsConfig    `koanf:"vitals"`
	Sync      SyncConfig      `koanf:"sync"`
	Trends    TrendsConfig    `koanf:"trends"`
	Database  DatabaseConfig  `koanf:"database"`
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// BoardConfig configures the work-tracking board API source.
//
// The board API is GraphQL-style: cursor-paginated item pages under a shared
// complexity budget, so requests are paced sequentially (RequestInterval)
// rather than fanned out.
type BoardConfig struct {
	Enabled  bool     `koanf:"enabled"`
	URL      string   `koanf:"url" validate:"omitempty,url"`
	APIToken string   `koanf:"api_token"`
	BoardIDs []string `koanf:"board_ids"`

	// PageSize is the items-per-page requested from the board API.
	PageSize int `koanf:"page_size" validate:"gte=1,lte=500"`

	// MaxPages bounds a single fetch; a board exceeding it returns a
	// partial (valid) result.
	MaxPages int `koanf:"max_pages" validate:"gte=1"`

	// RequestInterval is the minimum delay between successive page
	// requests, protecting the shared complexity budget.
	RequestInterval time.Duration `koanf:"request_interval"`

	// Columns maps canonical task fields to board column ids.
	// Recognized keys: status, phase, priority, size, type, developers,
	// reviewers, requestors, review_status, submitted, due, completed,
	// client, duration_hours, quality_score.
	Columns map[string]string `koanf:"columns"`

	// CompletedStatuses and CompletedPhases are the source values treated
	// as completed-equivalent by the lifecycle classifier.
	CompletedStatuses []string `koanf:"completed_statuses"`
	CompletedPhases   []string `koanf:"completed_phases"`

	// ActiveStatuses are the source values treated as active work.
	ActiveStatuses []string `koanf:"active_statuses"`

	// DevPhases are the phases treated as active development for
	// ownership attribution.
	DevPhases []string `koanf:"dev_phases"`
}

// AnalyticsConfig configures the web-analytics reporting API source.
type AnalyticsConfig struct {
	Enabled    bool     `koanf:"enabled"`
	URL        string   `koanf:"url" validate:"omitempty,url"`
	Credential string   `koanf:"credential"`
	Properties []string `koanf:"properties"`
}

// UptimeConfig configures the uptime-monitoring API source.
//
// The uptime API uses session-token login; TokenLifetime applies when the
// login response omits an expiry, and RefreshBuffer is the trailing window
// before expiry in which a token is already considered stale.
type UptimeConfig struct {
	Enabled  bool   `koanf:"enabled"`
	URL      string `koanf:"url" validate:"omitempty,url"`
	Email    string `koanf:"email" validate:"omitempty,email"`
	Password string `koanf:"password"`

	TokenLifetime time.Duration `koanf:"token_lifetime"`
	RefreshBuffer time.Duration `koanf:"refresh_buffer"`

	// Domains are the canonical client domains monitors are matched
	// against (exact first, then substring containment).
	Domains []string `koanf:"domains"`
}

// VitalsConfig configures the page-performance API source.
type VitalsConfig struct {
	Enabled bool   `koanf:"enabled"`
	URL     string `koanf:"url" validate:"omitempty,url"`
	APIKey  string `koanf:"api_key"`

	// URLs are the pages audited each run.
	URLs []string `koanf:"urls"`

	// Strategies selects audit strategies per URL (mobile, desktop).
	Strategies []string `koanf:"strategies"`

	// RequestInterval paces audit calls against the strict per-day quota.
	RequestInterval time.Duration `koanf:"request_interval"`

	// RunCap bounds audits per sync run so a single run cannot burn the
	// daily quota.
	RunCap int `koanf:"run_cap" validate:"gte=0"`
}

// SyncConfig configures scheduling and run behavior shared by all sources.
type SyncConfig struct {
	BoardInterval     time.Duration `koanf:"board_interval"`
	AnalyticsInterval time.Duration `koanf:"analytics_interval"`
	UptimeInterval    time.Duration `koanf:"uptime_interval"`
	VitalsInterval    time.Duration `koanf:"vitals_interval"`

	// StaleAfter is the age past which an in_progress sync log is swept
	// to failed at scheduler start (orphaned by a crash or timeout).
	StaleAfter time.Duration `koanf:"stale_after"`

	RetryAttempts int           `koanf:"retry_attempts" validate:"gte=1,lte=10"`
	RetryDelay    time.Duration `koanf:"retry_delay"`
}

// TrendsConfig configures trend classification and benchmark aggregation.
type TrendsConfig struct {
	// NeutralZonePercent is the half-width of the neutral band: a change
	// within (-N, +N) percent classifies as neutral.
	NeutralZonePercent float64 `koanf:"neutral_zone_percent" validate:"gte=0,lte=100"`

	// BenchmarkPercent is the passing threshold applied per measure
	// across a cohort.
	BenchmarkPercent float64 `koanf:"benchmark_percent" validate:"gte=0,lte=100"`
}

// DatabaseConfig configures the DuckDB store.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads" validate:"gte=0"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port" validate:"gte=1,lte=65535"`
	Timeout time.Duration `koanf:"timeout"`

	// AuthMode selects the trigger-endpoint check: secret, jwt, or none.
	AuthMode string `koanf:"auth_mode" validate:"oneof=secret jwt none"`

	// SchedulerSecret is the shared bearer secret presented by the
	// external scheduler (auth_mode=secret).
	SchedulerSecret string `koanf:"scheduler_secret"`

	// JWTSecret is the HMAC key for auth_mode=jwt.
	JWTSecret string `koanf:"jwt_secret"`

	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"gte=1"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// LoggingConfig configures the zerolog global logger.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by the config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Board: BoardConfig{
			Enabled:         false,
			PageSize:        100,
			MaxPages:        50,
			RequestInterval: 200 * time.Millisecond,
			Columns:         map[string]string{},
			CompletedStatuses: []string{
				"Done", "Completed", "Live", "Closed",
			},
			CompletedPhases: []string{
				"Complete", "Launched",
			},
			ActiveStatuses: []string{
				"Working on it", "In Progress", "In Development", "In Review",
			},
			DevPhases: []string{
				"Development", "In Development", "Build",
			},
		},
		Analytics: AnalyticsConfig{
			Enabled: false,
		},
		Uptime: UptimeConfig{
			Enabled:       false,
			TokenLifetime: 90 * time.Minute,
			RefreshBuffer: 5 * time.Minute,
		},
		Vitals: VitalsConfig{
			Enabled:         false,
			Strategies:      []string{"mobile", "desktop"},
			RequestInterval: time.Second,
			RunCap:          50,
		},
		Sync: SyncConfig{
			BoardInterval:     15 * time.Minute,
			AnalyticsInterval: time.Hour,
			UptimeInterval:    30 * time.Minute,
			VitalsInterval:    24 * time.Hour,
			StaleAfter:        2 * time.Hour,
			RetryAttempts:     3,
			RetryDelay:        2 * time.Second,
		},
		Trends: TrendsConfig{
			NeutralZonePercent: 5.0,
			BenchmarkPercent:   90.0,
		},
		Database: DatabaseConfig{
			Path:      "/data/pulseboard.duckdb",
			MaxMemory: "1GB",
			Threads:   0, // 0 = runtime.NumCPU()
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8787,
			Timeout:         30 * time.Second,
			AuthMode:        "secret",
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
