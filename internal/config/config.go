// Railatlas - Rail Network Cartography and Route Visualization
// Copyright 2026 Wren H. (wrenhall)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wrenhall/railatlas

// Package config defines the Railatlas configuration model and its layered
// loading (defaults, optional YAML file, environment variables).
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Sync     SyncConfig     `koanf:"sync"`
	Sources  []SourceConfig `koanf:"sources"`
	API      APIConfig      `koanf:"api"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// SourceConfig describes one remote game server exposing the rail-data RPC
// protocol. Sources are owned by configuration and read-only to the sync
// subsystem; they never change during a sync pass.
type SourceConfig struct {
	ID       string        `koanf:"id" validate:"required"`
	Name     string        `koanf:"name"`
	Endpoint string        `koanf:"endpoint" validate:"required"`
	Key      string        `koanf:"key"`
	Timeout  time.Duration `koanf:"timeout"`
	MaxRetry int           `koanf:"max_retry"`
	Enabled  bool          `koanf:"enabled"`
}

// DisplayName returns the configured name, falling back to the id.
func (s SourceConfig) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string        `koanf:"host"`
	Port        int           `koanf:"port"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"`
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"` // 0 = runtime.NumCPU()
}

// SyncConfig holds sync orchestrator settings.
type SyncConfig struct {
	// Interval between periodic full scans across all sources.
	Interval time.Duration `koanf:"interval"`
	// PageSize is the limit used for paged "entities.list" calls.
	PageSize int `koanf:"page_size"`
	// UpsertConcurrency bounds in-flight entity upserts within one page batch.
	UpsertConcurrency int `koanf:"upsert_concurrency"`
	// ReadyWait bounds the connection-readiness wait before a source sync.
	ReadyWait time.Duration `koanf:"ready_wait"`
	// LiveRailFetchCap caps the live rail fallback fetch used by graph
	// construction when the store has no rails for a dimension.
	LiveRailFetchCap int `koanf:"live_rail_fetch_cap"`
}

// APIConfig holds settings for the read/admin HTTP surface.
type APIConfig struct {
	LatestCount         int           `koanf:"latest_count"`
	RecommendationCount int           `koanf:"recommendation_count"`
	RateLimitReqs       int           `koanf:"rate_limit_reqs"`
	RateLimitWindow     time.Duration `koanf:"rate_limit_window"`
	CORSOrigins         []string      `koanf:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// EnabledSources returns the sources that are enabled and fully configured.
func (c *Config) EnabledSources() []SourceConfig {
	out := make([]SourceConfig, 0, len(c.Sources))
	for _, s := range c.Sources {
		if s.Enabled && s.ID != "" && s.Endpoint != "" {
			out = append(out, s)
		}
	}
	return out
}

// SourceByID returns the source with the given id, or nil.
func (c *Config) SourceByID(id string) *SourceConfig {
	for i := range c.Sources {
		if c.Sources[i].ID == id {
			return &c.Sources[i]
		}
	}
	return nil
}

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateSources(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got %s", c.Server.Timeout)
	}
	return nil
}

func (c *Config) validateDatabase() error {
	if c.Database.Path == "" {
		return fmt.Errorf("DUCKDB_PATH must not be empty")
	}
	return nil
}

func (c *Config) validateSync() error {
	if c.Sync.Interval < time.Minute {
		return fmt.Errorf("SYNC_INTERVAL must be at least 1m, got %s", c.Sync.Interval)
	}
	if c.Sync.PageSize < 1 {
		return fmt.Errorf("SYNC_PAGE_SIZE must be positive, got %d", c.Sync.PageSize)
	}
	if c.Sync.UpsertConcurrency < 1 {
		return fmt.Errorf("SYNC_UPSERT_CONCURRENCY must be positive, got %d", c.Sync.UpsertConcurrency)
	}
	return nil
}

// validateSources checks structural requirements with validator tags, then
// the cross-field rules (unique ids, websocket endpoints).
func (c *Config) validateSources() error {
	v := validator.New()
	seen := make(map[string]struct{}, len(c.Sources))

	for i := range c.Sources {
		s := &c.Sources[i]
		if !s.Enabled {
			continue
		}
		if err := v.Struct(s); err != nil {
			return fmt.Errorf("source %d is invalid: %w", i, err)
		}
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("duplicate source id %q", s.ID)
		}
		seen[s.ID] = struct{}{}

		if err := validateWebSocketURL(s.Endpoint); err != nil {
			return fmt.Errorf("source %q endpoint is invalid: %w", s.ID, err)
		}
		if s.Timeout <= 0 {
			return fmt.Errorf("source %q timeout must be positive, got %s", s.ID, s.Timeout)
		}
		if s.MaxRetry < 0 {
			return fmt.Errorf("source %q max_retry must not be negative, got %d", s.ID, s.MaxRetry)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "disabled", "":
	default:
		return fmt.Errorf("LOG_LEVEL %q is not a valid level", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console", "":
		return nil
	default:
		return fmt.Errorf("LOG_FORMAT %q must be json or console", c.Logging.Format)
	}
}

// validateWebSocketURL checks that a source endpoint is a ws:// or wss:// URL.
func validateWebSocketURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("not a valid URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("scheme must be ws or wss, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}
