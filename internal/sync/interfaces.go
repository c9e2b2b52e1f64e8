// Railatlas - Rail Network Cartography and Route Visualization
// Copyright 2026 Wren H. (wrenhall)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wrenhall/railatlas

package sync

import (
	"context"
	"time"

	"github.com/wrenhall/railatlas/internal/models"
	"github.com/wrenhall/railatlas/internal/remote"
)

// Store is the persistence surface the sync orchestrator depends on.
// *store.Store satisfies it; tests substitute fakes.
type Store interface {
	UpsertEntity(ctx context.Context, e *models.CanonicalEntity) error
	DeleteStaleEntities(ctx context.Context, sourceID string, category models.Category, olderThan time.Time) (int64, error)
	UpsertDimension(ctx context.Context, d *models.Dimension) error
	CreateSyncJob(ctx context.Context, job *models.SyncJob) error
	UpdateSyncJobStatus(ctx context.Context, id string, status models.SyncJobStatus, message string) error
	GetSyncJob(ctx context.Context, id string) (*models.SyncJob, error)
	GetLatestActiveJob(ctx context.Context, sourceID string) (*models.SyncJob, error)
	ListRecentJobs(ctx context.Context, sourceID string, limit int) ([]models.SyncJob, error)
}

// Link and LinkProvider are the remote connection surfaces, shared with
// the read-side collaborators.
type (
	Link         = remote.Link
	LinkProvider = remote.LinkProvider
)
