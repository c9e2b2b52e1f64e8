// Railatlas - Rail Network Cartography and Route Visualization
// Copyright 2026 Wren H. (wrenhall)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wrenhall/railatlas

package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/wrenhall/railatlas/internal/config"
	"github.com/wrenhall/railatlas/internal/metrics"
	"github.com/wrenhall/railatlas/internal/models"
	"github.com/wrenhall/railatlas/internal/remote"
)

const defaultPageSize = 200

// syncCategory reconciles one (source, category) pair: page the remote
// list call in order, upsert rows with bounded parallelism, then prune
// every row the pass did not re-observe. The scan marker is captured before
// the first fetch so rows upserted during the pass always survive pruning.
func (m *Manager) syncCategory(ctx context.Context, link Link, src config.SourceConfig, category models.Category) error {
	scanMark := time.Now().UTC()
	pageSize := m.cfg.Sync.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	group := m.upsertPool.NewGroupContext(ctx)
	var upserted, dropped int

	for offset := 0; ; offset += pageSize {
		page, err := m.fetchPage(ctx, link, src, category, pageSize, offset)
		if err != nil {
			return err
		}

		for _, row := range page.Rows {
			entity, ok := normalizeRow(src.ID, category, row, scanMark)
			if !ok {
				dropped++
				continue
			}
			upserted++
			group.SubmitErr(func() error {
				return m.upsertEntity(ctx, entity)
			})
		}
		if !page.Truncated {
			break
		}
	}

	if err := group.Wait(); err != nil {
		return fmt.Errorf("upsert batch: %w", err)
	}

	pruned, err := m.store.DeleteStaleEntities(ctx, src.ID, category, scanMark)
	if err != nil {
		return fmt.Errorf("prune stale entities: %w", err)
	}

	metrics.SyncEntitiesUpserted.WithLabelValues(src.ID, string(category)).Add(float64(upserted))
	metrics.SyncEntitiesPruned.WithLabelValues(src.ID, string(category)).Add(float64(pruned))
	m.log.Debug().
		Str("source_id", src.ID).
		Str("category", string(category)).
		Int("upserted", upserted).
		Int("dropped", dropped).
		Int64("pruned", pruned).
		Msg("Category reconciled")
	return nil
}

// fetchPage issues one paged entities.list call.
func (m *Manager) fetchPage(ctx context.Context, link Link, src config.SourceConfig, category models.Category, limit, offset int) (*remote.ListEntitiesResult, error) {
	raw, err := link.Emit(ctx, remote.EventListEntities, remote.ListEntitiesParams{
		Category:       string(category),
		Limit:          limit,
		Offset:         offset,
		IncludePayload: true,
	}, src.Timeout)
	if err != nil {
		return nil, fmt.Errorf("list %s page at offset %d: %w", category, offset, err)
	}

	var page remote.ListEntitiesResult
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, fmt.Errorf("decode %s page at offset %d: %w", category, offset, err)
	}
	return &page, nil
}

// upsertEntity writes one entity and, when a dimension context was derived,
// refreshes the dimension registry row.
func (m *Manager) upsertEntity(ctx context.Context, e *models.CanonicalEntity) error {
	if err := m.store.UpsertEntity(ctx, e); err != nil {
		return fmt.Errorf("upsert %s/%s/%s: %w", e.SourceID, e.Category, e.EntityID, err)
	}
	if e.Dimension != "" {
		if err := m.store.UpsertDimension(ctx, dimensionRecord(e.SourceID, e.Dimension, e.SyncedAt)); err != nil {
			return fmt.Errorf("upsert dimension %s/%s: %w", e.SourceID, e.Dimension, err)
		}
	}
	return nil
}
