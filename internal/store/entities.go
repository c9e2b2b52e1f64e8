// Railatlas - Rail Network Cartography and Route Visualization
// Copyright 2026 Wren H. (wrenhall)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wrenhall/railatlas

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/wrenhall/railatlas/internal/models"
)

// UpsertEntity inserts or updates one canonical entity. The caller provides
// SyncedAt (the scan's start marker); re-observed rows keep moving their
// watermark forward so the post-scan prune leaves them untouched.
func (s *Store) UpsertEntity(ctx context.Context, e *models.CanonicalEntity) error {
	var payload any
	if e.Payload != nil {
		raw, err := json.Marshal(e.Payload)
		if err != nil {
			return fmt.Errorf("failed to encode payload for %s/%s/%s: %w", e.SourceID, e.Category, e.EntityID, err)
		}
		payload = string(raw)
	}

	query := `INSERT INTO entities (
		source_id, category, entity_id, dimension, transport_mode,
		name, color, file_path, payload, remote_updated_at, synced_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (source_id, category, entity_id) DO UPDATE SET
		dimension = excluded.dimension,
		transport_mode = excluded.transport_mode,
		name = excluded.name,
		color = excluded.color,
		file_path = excluded.file_path,
		payload = excluded.payload,
		remote_updated_at = excluded.remote_updated_at,
		synced_at = excluded.synced_at`

	_, err := s.conn.ExecContext(ctx, query,
		e.SourceID, string(e.Category), e.EntityID, nullString(e.Dimension), nullString(e.TransportMode),
		nullString(e.Name), nullString(e.Color), nullString(e.FilePath), payload,
		nullTime(e.RemoteUpdatedAt), e.SyncedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert entity %s/%s/%s: %w", e.SourceID, e.Category, e.EntityID, err)
	}
	return nil
}

// DeleteStaleEntities removes all entities of (source, category) whose
// synced_at predates the given marker. This is the reconciliation step that
// drops entities the remote side no longer reports.
func (s *Store) DeleteStaleEntities(ctx context.Context, sourceID string, category models.Category, olderThan time.Time) (int64, error) {
	res, err := s.conn.ExecContext(ctx,
		`DELETE FROM entities WHERE source_id = ? AND category = ? AND synced_at < ?`,
		sourceID, string(category), olderThan,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune stale %s entities for %s: %w", category, sourceID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil //nolint:nilerr // prune succeeded; the count is best effort
	}
	return n, nil
}

// GetEntity retrieves one entity, returning ErrEntityNotFound when absent.
func (s *Store) GetEntity(ctx context.Context, sourceID string, category models.Category, entityID string) (*models.CanonicalEntity, error) {
	row := s.conn.QueryRowContext(ctx,
		entitySelect+` WHERE source_id = ? AND category = ? AND entity_id = ?`,
		sourceID, string(category), entityID,
	)
	e, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEntityNotFound
	}
	return e, err
}

// ListEntities retrieves entities for (source, category), optionally scoped
// to one dimension. limit <= 0 means no limit.
func (s *Store) ListEntities(ctx context.Context, sourceID string, category models.Category, dimension string, limit int) ([]models.CanonicalEntity, error) {
	query := entitySelect + ` WHERE source_id = ? AND category = ?`
	args := []any{sourceID, string(category)}
	if dimension != "" {
		query += ` AND dimension = ?`
		args = append(args, dimension)
	}
	query += ` ORDER BY entity_id`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s entities for %s: %w", category, sourceID, err)
	}
	defer func() { _ = rows.Close() }()

	return collectEntities(rows)
}

// CountEntities returns the number of entities for (source, category).
func (s *Store) CountEntities(ctx context.Context, sourceID string, category models.Category) (int, error) {
	var n int
	err := s.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM entities WHERE source_id = ? AND category = ?`,
		sourceID, string(category),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s entities for %s: %w", category, sourceID, err)
	}
	return n, nil
}

// LatestEntities returns the most recently remote-updated entities of a
// category across all sources, newest first.
func (s *Store) LatestEntities(ctx context.Context, category models.Category, limit int) ([]models.CanonicalEntity, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.conn.QueryContext(ctx,
		entitySelect+` WHERE category = ? AND remote_updated_at IS NOT NULL
			ORDER BY remote_updated_at DESC LIMIT ?`,
		string(category), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list latest %s entities: %w", category, err)
	}
	defer func() { _ = rows.Close() }()

	return collectEntities(rows)
}

// UpsertDimension records a derived dimension, refreshing its last-seen
// timestamp. Called as a side effect of entity upsert.
func (s *Store) UpsertDimension(ctx context.Context, d *models.Dimension) error {
	query := `INSERT INTO dimensions (source_id, dim_key, namespace, dimension_name, last_seen_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (source_id, dim_key) DO UPDATE SET
			namespace = excluded.namespace,
			dimension_name = excluded.dimension_name,
			last_seen_at = excluded.last_seen_at`

	_, err := s.conn.ExecContext(ctx, query, d.SourceID, d.Key, d.Namespace, d.DimensionName, d.LastSeenAt)
	if err != nil {
		return fmt.Errorf("failed to upsert dimension %s/%s: %w", d.SourceID, d.Key, err)
	}
	return nil
}

// ListDimensions returns all known dimensions for a source, most recently
// seen first.
func (s *Store) ListDimensions(ctx context.Context, sourceID string) ([]models.Dimension, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT source_id, dim_key, namespace, dimension_name, last_seen_at
			FROM dimensions WHERE source_id = ? ORDER BY last_seen_at DESC`,
		sourceID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list dimensions for %s: %w", sourceID, err)
	}
	defer func() { _ = rows.Close() }()

	dims := make([]models.Dimension, 0)
	for rows.Next() {
		var d models.Dimension
		if err := rows.Scan(&d.SourceID, &d.Key, &d.Namespace, &d.DimensionName, &d.LastSeenAt); err != nil {
			return nil, fmt.Errorf("failed to scan dimension: %w", err)
		}
		dims = append(dims, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dimensions: %w", err)
	}
	return dims, nil
}

const entitySelect = `SELECT
	source_id, category, entity_id, dimension, transport_mode,
	name, color, file_path, payload, remote_updated_at, synced_at
FROM entities`

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner) (*models.CanonicalEntity, error) {
	var (
		e                                           models.CanonicalEntity
		category                                    string
		dimension, mode, name, color, path, payload sql.NullString
		remoteUpdated                               sql.NullTime
	)

	err := row.Scan(&e.SourceID, &category, &e.EntityID, &dimension, &mode,
		&name, &color, &path, &payload, &remoteUpdated, &e.SyncedAt)
	if err != nil {
		return nil, err
	}

	e.Category = models.Category(category)
	e.Dimension = dimension.String
	e.TransportMode = mode.String
	e.Name = name.String
	e.Color = color.String
	e.FilePath = path.String
	if remoteUpdated.Valid {
		e.RemoteUpdatedAt = remoteUpdated.Time
	}
	if payload.Valid && strings.TrimSpace(payload.String) != "" {
		var decoded map[string]any
		if err := json.Unmarshal([]byte(payload.String), &decoded); err == nil {
			e.Payload = decoded
		}
	}
	return &e, nil
}

func collectEntities(rows *sql.Rows) ([]models.CanonicalEntity, error) {
	entities := make([]models.CanonicalEntity, 0)
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		entities = append(entities, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entities: %w", err)
	}
	return entities, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
