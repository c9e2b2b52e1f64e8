// Railatlas - Rail Network Cartography and Route Visualization
// Copyright 2026 Wren H. (wrenhall)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wrenhall/railatlas

// Package models defines the shared domain types for Railatlas: canonical
// rail-network entities synchronized from remote game servers, sync job
// records, and the assembled read-side objects (route details, overview).
package models

import (
	"time"
)

// Category identifies the kind of rail-network entity a canonical record
// describes. Categories are synced in the order listed by AllCategories.
type Category string

// Entity categories reported by the remote rail-data protocol.
const (
	CategoryDepot       Category = "depot"
	CategoryPlatform    Category = "platform"
	CategoryRail        Category = "rail"
	CategoryRoute       Category = "route"
	CategorySignalBlock Category = "signal_block"
	CategoryStation     Category = "station"
)

// AllCategories lists every entity category in the fixed sync order.
// The order is a scheduling convenience only; no category's sync depends on
// another's having completed.
var AllCategories = []Category{
	CategoryDepot,
	CategoryPlatform,
	CategoryRail,
	CategoryRoute,
	CategorySignalBlock,
	CategoryStation,
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryDepot, CategoryPlatform, CategoryRail,
		CategoryRoute, CategorySignalBlock, CategoryStation:
		return true
	}
	return false
}

// CanonicalEntity is one normalized rail-network record. It is uniquely
// identified by (SourceID, Category, EntityID) and carries the local
// SyncedAt watermark used for stale-entity pruning.
//
// Entities are created and updated only by the sync orchestrator; read
// paths never mutate them.
type CanonicalEntity struct {
	SourceID string   `json:"source_id"`
	Category Category `json:"category"`
	EntityID string   `json:"entity_id"`

	// Dimension is the derived "namespace/dimension" spatial context,
	// empty when none could be determined.
	Dimension     string `json:"dimension,omitempty"`
	TransportMode string `json:"transport_mode,omitempty"`
	Name          string `json:"name,omitempty"`
	Color         string `json:"color,omitempty"`
	FilePath      string `json:"file_path,omitempty"`

	// Payload holds the category-specific normalized fields (platform
	// bounds, route platform-id list, rail connection list). Nil when the
	// remote payload was absent or unparsable; the entity is still stored
	// with its metadata fields.
	Payload map[string]any `json:"payload,omitempty"`

	// RemoteUpdatedAt is the source-reported last-modified time.
	RemoteUpdatedAt time.Time `json:"remote_updated_at"`

	// SyncedAt is the local watermark, set to the scan start marker of the
	// sync pass that last observed this entity.
	SyncedAt time.Time `json:"synced_at"`
}

// Dimension is the derived (source, dimension) registry row, upserted as a
// side effect of entity upsert. It scopes rail-graph construction to one
// spatial context.
type Dimension struct {
	SourceID string `json:"source_id"`
	// Key is the combined "namespace/dimension" form used on entities.
	Key           string    `json:"key"`
	Namespace     string    `json:"namespace"`
	DimensionName string    `json:"dimension"`
	LastSeenAt    time.Time `json:"last_seen_at"`
}

// SyncJobStatus is the lifecycle state of a SyncJob.
type SyncJobStatus string

// Sync job states. PENDING and RUNNING are active; SUCCEEDED and FAILED
// are terminal.
const (
	SyncJobPending   SyncJobStatus = "PENDING"
	SyncJobRunning   SyncJobStatus = "RUNNING"
	SyncJobSucceeded SyncJobStatus = "SUCCEEDED"
	SyncJobFailed    SyncJobStatus = "FAILED"
)

// Active reports whether the status is PENDING or RUNNING.
func (s SyncJobStatus) Active() bool {
	return s == SyncJobPending || s == SyncJobRunning
}

// SyncJob is a persisted single-source sync execution record. At most one
// PENDING/RUNNING job may execute per source at a time; a job dequeued while
// another is active still gets a row, immediately FAILED with an explanatory
// message, so the rejected attempt stays auditable.
type SyncJob struct {
	ID          string        `json:"id"`
	SourceID    string        `json:"source_id"`
	Status      SyncJobStatus `json:"status"`
	Message     string        `json:"message,omitempty"`
	InitiatedBy string        `json:"initiated_by,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}
