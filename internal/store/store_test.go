// Railatlas - Rail Network Cartography and Route Visualization
// Copyright 2026 Wren H. (wrenhall)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wrenhall/railatlas

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wrenhall/railatlas/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewInMemory()
	if err != nil {
		t.Fatalf("failed to open in-memory store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("close failed: %v", err)
		}
	})
	return s
}

func testEntity(sourceID, entityID string) *models.CanonicalEntity {
	return &models.CanonicalEntity{
		SourceID:        sourceID,
		Category:        models.CategoryStation,
		EntityID:        entityID,
		Dimension:       "minecraft/overworld",
		Name:            "Central",
		Color:           "#3355ff",
		Payload:         map[string]any{"zone": "downtown", "tracks": 4.0},
		RemoteUpdatedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		SyncedAt:        time.Now().UTC(),
	}
}

func TestUpsertAndGetEntity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	want := testEntity("alpha", "st-1")
	if err := s.UpsertEntity(ctx, want); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	got, err := s.GetEntity(ctx, "alpha", models.CategoryStation, "st-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Name != want.Name || got.Dimension != want.Dimension {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.Payload == nil || got.Payload["zone"] != "downtown" {
		t.Errorf("payload lost: %v", got.Payload)
	}
	if !got.RemoteUpdatedAt.Equal(want.RemoteUpdatedAt) {
		t.Errorf("remote updated at: expected %v, got %v", want.RemoteUpdatedAt, got.RemoteUpdatedAt)
	}
}

func TestUpsertEntityUpdatesOnConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := testEntity("alpha", "st-1")
	if err := s.UpsertEntity(ctx, e); err != nil {
		t.Fatal(err)
	}
	e.Name = "Central Renamed"
	e.Payload = nil
	if err := s.UpsertEntity(ctx, e); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetEntity(ctx, "alpha", models.CategoryStation, "st-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Central Renamed" {
		t.Errorf("update lost: %q", got.Name)
	}
	if got.Payload != nil {
		t.Errorf("payload should clear, got %v", got.Payload)
	}

	if n, err := s.CountEntities(ctx, "alpha", models.CategoryStation); err != nil || n != 1 {
		t.Errorf("conflict should update in place: count=%d err=%v", n, err)
	}
}

func TestGetEntityNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetEntity(context.Background(), "alpha", models.CategoryStation, "missing"); !errors.Is(err, ErrEntityNotFound) {
		t.Errorf("expected ErrEntityNotFound, got %v", err)
	}
}

func TestDeleteStaleEntities(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mark := time.Now().UTC()

	stale := testEntity("alpha", "old")
	stale.SyncedAt = mark.Add(-time.Hour)
	fresh := testEntity("alpha", "new")
	fresh.SyncedAt = mark.Add(time.Minute)
	otherCategory := testEntity("alpha", "rail-1")
	otherCategory.Category = models.CategoryRail
	otherCategory.SyncedAt = mark.Add(-time.Hour)

	for _, e := range []*models.CanonicalEntity{stale, fresh, otherCategory} {
		if err := s.UpsertEntity(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	pruned, err := s.DeleteStaleEntities(ctx, "alpha", models.CategoryStation, mark)
	if err != nil {
		t.Fatalf("prune failed: %v", err)
	}
	if pruned != 1 {
		t.Errorf("expected 1 pruned, got %d", pruned)
	}

	if _, err := s.GetEntity(ctx, "alpha", models.CategoryStation, "old"); !errors.Is(err, ErrEntityNotFound) {
		t.Error("stale entity should be gone")
	}
	if _, err := s.GetEntity(ctx, "alpha", models.CategoryStation, "new"); err != nil {
		t.Errorf("fresh entity should survive: %v", err)
	}
	if _, err := s.GetEntity(ctx, "alpha", models.CategoryRail, "rail-1"); err != nil {
		t.Errorf("other category should survive: %v", err)
	}
}

func TestListEntitiesDimensionFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	over := testEntity("alpha", "r-1")
	over.Category = models.CategoryRail
	nether := testEntity("alpha", "r-2")
	nether.Category = models.CategoryRail
	nether.Dimension = "minecraft/the_nether"

	for _, e := range []*models.CanonicalEntity{over, nether} {
		if err := s.UpsertEntity(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.ListEntities(ctx, "alpha", models.CategoryRail, "minecraft/the_nether", 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].EntityID != "r-2" {
		t.Errorf("dimension filter wrong: %+v", got)
	}

	got, err = s.ListEntities(ctx, "alpha", models.CategoryRail, "", 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("unfiltered list should return both, got %d", len(got))
	}
}

func TestLatestEntitiesOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		e := testEntity("alpha", id)
		e.Category = models.CategoryRoute
		e.RemoteUpdatedAt = base.Add(time.Duration(i) * time.Hour)
		if err := s.UpsertEntity(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.LatestEntities(ctx, models.CategoryRoute, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("limit not honored: %d", len(got))
	}
	if got[0].EntityID != "c" || got[1].EntityID != "b" {
		t.Errorf("order wrong: %s, %s", got[0].EntityID, got[1].EntityID)
	}
}

func TestDimensionRegistry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d := &models.Dimension{
		SourceID:      "alpha",
		Key:           "minecraft/overworld",
		Namespace:     "minecraft",
		DimensionName: "overworld",
		LastSeenAt:    time.Now().UTC(),
	}
	if err := s.UpsertDimension(ctx, d); err != nil {
		t.Fatal(err)
	}
	// Re-upsert refreshes, never duplicates.
	d.LastSeenAt = d.LastSeenAt.Add(time.Minute)
	if err := s.UpsertDimension(ctx, d); err != nil {
		t.Fatal(err)
	}

	dims, err := s.ListDimensions(ctx, "alpha")
	if err != nil {
		t.Fatal(err)
	}
	if len(dims) != 1 {
		t.Fatalf("expected 1 dimension, got %d", len(dims))
	}
	if dims[0].Namespace != "minecraft" || dims[0].DimensionName != "overworld" {
		t.Errorf("dimension row wrong: %+v", dims[0])
	}
}

func TestSyncJobLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	job := &models.SyncJob{SourceID: "alpha", InitiatedBy: "admin"}
	if err := s.CreateSyncJob(ctx, job); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if job.ID == "" {
		t.Fatal("id not generated")
	}
	if job.Status != models.SyncJobPending {
		t.Errorf("default status: %s", job.Status)
	}

	if err := s.UpdateSyncJobStatus(ctx, job.ID, models.SyncJobRunning, ""); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetSyncJob(ctx, job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.StartedAt == nil {
		t.Error("RUNNING should stamp started_at")
	}
	if got.CompletedAt != nil {
		t.Error("completed_at stamped too early")
	}

	if err := s.UpdateSyncJobStatus(ctx, job.ID, models.SyncJobSucceeded, ""); err != nil {
		t.Fatal(err)
	}
	got, err = s.GetSyncJob(ctx, job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.CompletedAt == nil {
		t.Error("terminal status should stamp completed_at")
	}
}

func TestGetLatestActiveJob(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	job, err := s.GetLatestActiveJob(ctx, "alpha")
	if err != nil {
		t.Fatal(err)
	}
	if job != nil {
		t.Fatalf("expected no active job, got %+v", job)
	}

	first := &models.SyncJob{SourceID: "alpha", CreatedAt: time.Now().Add(-time.Minute).UTC()}
	if err := s.CreateSyncJob(ctx, first); err != nil {
		t.Fatal(err)
	}
	second := &models.SyncJob{SourceID: "alpha"}
	if err := s.CreateSyncJob(ctx, second); err != nil {
		t.Fatal(err)
	}

	job, err = s.GetLatestActiveJob(ctx, "alpha")
	if err != nil {
		t.Fatal(err)
	}
	if job == nil || job.ID != second.ID {
		t.Errorf("expected the newest active job, got %+v", job)
	}

	// Terminal jobs are not active.
	if err := s.UpdateSyncJobStatus(ctx, second.ID, models.SyncJobFailed, "boom"); err != nil {
		t.Fatal(err)
	}
	job, err = s.GetLatestActiveJob(ctx, "alpha")
	if err != nil {
		t.Fatal(err)
	}
	if job == nil || job.ID != first.ID {
		t.Errorf("expected the older PENDING job, got %+v", job)
	}
}

func TestUpdateSyncJobStatusNotFound(t *testing.T) {
	s := newTestStore(t)
	if err := s.UpdateSyncJobStatus(context.Background(), "missing", models.SyncJobFailed, ""); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}
