// Railatlas - Rail Network Cartography and Route Visualization
// Copyright 2026 Wren H. (wrenhall)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wrenhall/railatlas

// Package store persists the canonical rail-network state in DuckDB:
// normalized entities keyed by (source, category, entity id) with sync
// watermarks, the derived dimension registry, and sync job records.
//
// The store provides per-row atomic upsert and delete; it holds no
// higher-level locking. Concurrency guards (the full-sync flag, the
// per-source running set) live in the sync orchestrator.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/wrenhall/railatlas/internal/config"
	"github.com/wrenhall/railatlas/internal/logging"
)

// Store errors surfaced to callers. Not-found conditions are sentinel
// values so the API layer can map them to 404 responses.
var (
	ErrEntityNotFound = errors.New("entity not found")
	ErrJobNotFound    = errors.New("sync job not found")
)

// Store wraps the DuckDB connection and provides data access methods.
type Store struct {
	conn *sql.DB
	cfg  *config.DatabaseConfig
}

// New opens the DuckDB database and initializes the schema.
func New(cfg *config.DatabaseConfig) (*Store, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	// Ensure the parent directory exists for file-backed databases.
	if cfg.Path != ":memory:" {
		dbDir := filepath.Dir(cfg.Path)
		if dbDir != "" && dbDir != "." {
			if err := os.MkdirAll(dbDir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
			}
		}
	}

	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, numThreads, cfg.MaxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{conn: conn, cfg: cfg}

	// DuckDB is an embedded engine; a small pool avoids writer contention.
	conn.SetMaxOpenConns(numThreads)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(0)

	if err := s.createTables(); err != nil {
		if cerr := conn.Close(); cerr != nil {
			logging.Warn().Err(cerr).Msg("Failed to close database after init error")
		}
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// NewInMemory opens an in-memory store, used by tests.
func NewInMemory() (*Store, error) {
	return New(&config.DatabaseConfig{Path: ":memory:", MaxMemory: "256MB", Threads: 1})
}

// Close checkpoints and closes the database connection.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}

	// Flush the WAL so the next startup does not replay it.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := s.conn.ExecContext(ctx, "CHECKPOINT"); err != nil {
		logging.Warn().Err(err).Msg("Failed to checkpoint database before close")
	}

	return s.conn.Close()
}

// Ping checks that the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	if s.conn == nil {
		return fmt.Errorf("database connection is nil")
	}
	return s.conn.PingContext(ctx)
}

// createTables creates the schema and indexes if they do not exist.
func (s *Store) createTables() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	statements := []string{
		`CREATE TABLE IF NOT EXISTS entities (
			source_id         VARCHAR NOT NULL,
			category          VARCHAR NOT NULL,
			entity_id         VARCHAR NOT NULL,
			dimension         VARCHAR,
			transport_mode    VARCHAR,
			name              VARCHAR,
			color             VARCHAR,
			file_path         VARCHAR,
			payload           JSON,
			remote_updated_at TIMESTAMP,
			synced_at         TIMESTAMP NOT NULL,
			PRIMARY KEY (source_id, category, entity_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entities_dimension
			ON entities (source_id, category, dimension)`,
		`CREATE TABLE IF NOT EXISTS dimensions (
			source_id      VARCHAR NOT NULL,
			dim_key        VARCHAR NOT NULL,
			namespace      VARCHAR NOT NULL,
			dimension_name VARCHAR NOT NULL,
			last_seen_at   TIMESTAMP NOT NULL,
			PRIMARY KEY (source_id, dim_key)
		)`,
		`CREATE TABLE IF NOT EXISTS sync_jobs (
			id           VARCHAR PRIMARY KEY,
			source_id    VARCHAR NOT NULL,
			status       VARCHAR NOT NULL,
			message      VARCHAR,
			initiated_by VARCHAR,
			created_at   TIMESTAMP NOT NULL,
			started_at   TIMESTAMP,
			completed_at TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sync_jobs_source_status
			ON sync_jobs (source_id, status)`,
	}

	for _, stmt := range statements {
		if _, err := s.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}
