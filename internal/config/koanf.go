// Pulseboard - Multi-Source KPI Sync and Classification Engine
// Copyright 2026 Pulseboard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulseboard/pulseboard

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/pulseboard/config.yaml",
	"/etc/pulseboard/config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "CONFIG_PATH"

// Load loads configuration using koanf with layered sources:
//  1. Defaults: built-in struct defaults
//  2. Config file: optional YAML file (if one exists)
//  3. Environment variables: override any setting (highest priority)
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// BOARD_API_TOKEN -> board.api_token, SYNC_STALE_AFTER -> sync.stale_after
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches the env override and then the default paths.
// Returns the first existing path, or empty string.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths are the config paths parsed as comma-separated slices
// when supplied via environment variables.
var sliceConfigPaths = []string{
	"board.board_ids",
	"board.completed_statuses",
	"board.completed_phases",
	"board.active_statuses",
	"board.dev_phases",
	"analytics.properties",
	"uptime.domains",
	"vitals.urls",
	"vitals.strategies",
	"server.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for
// known slice fields. Env vars arrive as strings but the config expects
// slices; YAML-provided slices pass through untouched.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envSectionPrefixes maps env var prefixes to config sections. An env var
// like BOARD_REQUEST_INTERVAL becomes board.request_interval; anything not
// matching a known prefix is ignored so unrelated process env stays out of
// the config tree.
var envSectionPrefixes = map[string]string{
	"BOARD_":     "board.",
	"ANALYTICS_": "analytics.",
	"UPTIME_":    "uptime.",
	"VITALS_":    "vitals.",
	"SYNC_":      "sync.",
	"TRENDS_":    "trends.",
	"DATABASE_":  "database.",
	"SERVER_":    "server.",
	"LOGGING_":   "logging.",
}

// envAliases maps a few conventional env var names onto config paths.
var envAliases = map[string]string{
	"DUCKDB_PATH":      "database.path",
	"HTTP_PORT":        "server.port",
	"HTTP_HOST":        "server.host",
	"LOG_LEVEL":        "logging.level",
	"LOG_FORMAT":       "logging.format",
	"SCHEDULER_SECRET": "server.scheduler_secret",
	"JWT_SECRET":       "server.jwt_secret",
	"AUTH_MODE":        "server.auth_mode",
}

// envTransformFunc transforms environment variable names to koanf paths.
// Returning "" drops the variable.
func envTransformFunc(key string) string {
	if path, ok := envAliases[key]; ok {
		return path
	}

	for prefix, section := range envSectionPrefixes {
		if strings.HasPrefix(key, prefix) {
			rest := strings.ToLower(strings.TrimPrefix(key, prefix))
			if rest == "" {
				return ""
			}
			return section + rest
		}
	}

	return ""
}
