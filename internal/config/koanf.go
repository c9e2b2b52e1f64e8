// Railatlas - Rail Network Cartography and Route Visualization
// Copyright 2026 Wren H. (wrenhall)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wrenhall/railatlas

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

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
	"/etc/railatlas/config.yaml",
	"/etc/railatlas/config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all sensible default values. Defaults
// are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        4180,
			Timeout:     30 * time.Second,
			Environment: "development",
		},
		Database: DatabaseConfig{
			Path:      "/data/railatlas.duckdb",
			MaxMemory: "1GB",
			Threads:   0, // 0 = use runtime.NumCPU()
		},
		Sync: SyncConfig{
			Interval:          10 * time.Minute,
			PageSize:          200,
			UpsertConcurrency: 25,
			ReadyWait:         30 * time.Second,
			LiveRailFetchCap:  2000,
		},
		Sources: nil, // configured via YAML list or SOURCE_* env vars
		API: APIConfig{
			LatestCount:         10,
			RecommendationCount: 6,
			RateLimitReqs:       100,
			RateLimitWindow:     time.Minute,
			CORSOrigins:         []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load loads configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in sensible defaults
//  2. Config file: optional YAML file (if one exists)
//  3. Environment variables: override any setting
//
// Multi-source deployments list their sources in the YAML file; the
// SOURCE_* environment variables configure a single source for the common
// one-server case.
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: config file (optional)
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment variables (highest priority)
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

	applyEnvSource(cfg)
	applySourceDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// applyEnvSource appends a source built from SOURCE_* environment variables
// when SOURCE_ENDPOINT is set and no YAML source claimed the same id.
func applyEnvSource(cfg *Config) {
	endpoint := os.Getenv("SOURCE_ENDPOINT")
	if endpoint == "" {
		return
	}

	id := os.Getenv("SOURCE_ID")
	if id == "" {
		id = "default"
	}
	if cfg.SourceByID(id) != nil {
		return
	}

	src := SourceConfig{
		ID:       id,
		Name:     os.Getenv("SOURCE_NAME"),
		Endpoint: endpoint,
		Key:      os.Getenv("SOURCE_KEY"),
		Enabled:  true,
	}
	if v := os.Getenv("SOURCE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			src.Timeout = d
		}
	}
	if v := os.Getenv("SOURCE_MAX_RETRY"); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			src.MaxRetry = n
		}
	}
	cfg.Sources = append(cfg.Sources, src)
}

// applySourceDefaults fills per-source zero values with working defaults.
func applySourceDefaults(cfg *Config) {
	for i := range cfg.Sources {
		if cfg.Sources[i].Timeout <= 0 {
			cfg.Sources[i].Timeout = 15 * time.Second
		}
		if cfg.Sources[i].MaxRetry == 0 {
			cfg.Sources[i].MaxRetry = 3
		}
	}
}

// findConfigFile searches for a config file in the default paths.
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

// sliceConfigPaths defines which config paths are parsed as comma-separated
// slices when they arrive as env var strings.
var sliceConfigPaths = []string{
	"api.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for
// known slice fields. Env vars come in as strings but the config expects
// slices.
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

// envTransformFunc maps environment variable names to koanf config paths.
// Unmapped variables are skipped so random environment variables don't
// pollute the config.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server mappings
		"http_host":    "server.host",
		"http_port":    "server.port",
		"http_timeout": "server.timeout",
		"environment":  "server.environment",

		// Database mappings
		"duckdb_path":       "database.path",
		"duckdb_max_memory": "database.max_memory",
		"duckdb_threads":    "database.threads",

		// Sync mappings
		"sync_interval":           "sync.interval",
		"sync_page_size":          "sync.page_size",
		"sync_upsert_concurrency": "sync.upsert_concurrency",
		"sync_ready_wait":         "sync.ready_wait",
		"sync_live_rail_cap":      "sync.live_rail_fetch_cap",

		// API mappings
		"api_latest_count":    "api.latest_count",
		"api_recommendations": "api.recommendation_count",
		"rate_limit_requests": "api.rate_limit_reqs",
		"rate_limit_window":   "api.rate_limit_window",
		"cors_origins":        "api.cors_origins",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
