// Railatlas - Rail Network Cartography and Route Visualization
// Copyright 2026 Wren H. (wrenhall)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wrenhall/railatlas

package overview

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/wrenhall/railatlas/internal/config"
	"github.com/wrenhall/railatlas/internal/models"
	"github.com/wrenhall/railatlas/internal/remote"
)

type fakeStore struct {
	latest map[models.Category][]models.CanonicalEntity
}

func (f *fakeStore) LatestEntities(_ context.Context, category models.Category, limit int) ([]models.CanonicalEntity, error) {
	entities := f.latest[category]
	if len(entities) > limit {
		entities = entities[:limit]
	}
	return entities, nil
}

type fakeLink struct {
	snapshots []models.NetworkSnapshot
	err       error
}

func (f *fakeLink) Emit(_ context.Context, event string, _ any, _ time.Duration) (json.RawMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	if event != remote.EventNetworkSnapshot {
		return nil, errors.New("unexpected event " + event)
	}
	return json.Marshal(f.snapshots)
}

func (f *fakeLink) WaitReady(context.Context, time.Duration) bool { return true }
func (f *fakeLink) IsConnected() bool                             { return true }

type fakeLinks struct {
	byID map[string]*fakeLink
}

func (f *fakeLinks) Link(src config.SourceConfig) remote.Link {
	return f.byID[src.ID]
}

func testConfig(sourceIDs ...string) *config.Config {
	cfg := &config.Config{
		API: config.APIConfig{LatestCount: 10, RecommendationCount: 5},
	}
	for _, id := range sourceIDs {
		cfg.Sources = append(cfg.Sources, config.SourceConfig{
			ID: id, Endpoint: "ws://localhost:9000/rpc", Timeout: time.Second, Enabled: true,
		})
	}
	return cfg
}

func snapshotWith(routes, stations int) models.NetworkSnapshot {
	s := models.NetworkSnapshot{Dimension: "minecraft/overworld", LastDeployed: 1756000000000}
	for i := 0; i < routes; i++ {
		s.Routes = append(s.Routes, models.SnapshotRoute{
			ID:          float64(i + 1),
			Name:        "Route",
			PlatformIDs: []any{"a", "b"},
			UpdatedAt:   int64(1756000000000 + i),
		})
	}
	for i := 0; i < stations; i++ {
		s.Stations = append(s.Stations, models.SnapshotStation{ID: float64(i + 1)})
	}
	return s
}

func TestGetOverviewPartialFailure(t *testing.T) {
	links := &fakeLinks{byID: map[string]*fakeLink{
		"alpha": {snapshots: []models.NetworkSnapshot{snapshotWith(2, 3)}},
		"beta":  {snapshots: []models.NetworkSnapshot{snapshotWith(1, 1)}},
		"gamma": {err: errors.New("connection refused")},
	}}
	a := NewAggregator(testConfig("alpha", "beta", "gamma"), &fakeStore{}, links)

	ov, err := a.GetOverview(context.Background())
	if err != nil {
		t.Fatalf("GetOverview failed: %v", err)
	}

	if len(ov.Stats) != 2 {
		t.Errorf("expected stats from 2 sources, got %d", len(ov.Stats))
	}
	if len(ov.Warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(ov.Warnings))
	}
	if ov.Warnings[0].SourceID != "gamma" {
		t.Errorf("warning source: %s", ov.Warnings[0].SourceID)
	}
	if ov.Warnings[0].Message == "" {
		t.Error("warning should carry the failure message")
	}
}

func TestGetOverviewStats(t *testing.T) {
	links := &fakeLinks{byID: map[string]*fakeLink{
		"alpha": {snapshots: []models.NetworkSnapshot{snapshotWith(2, 3), snapshotWith(1, 0)}},
	}}
	a := NewAggregator(testConfig("alpha"), &fakeStore{}, links)

	ov, err := a.GetOverview(context.Background())
	if err != nil {
		t.Fatalf("GetOverview failed: %v", err)
	}
	if len(ov.Stats) != 1 {
		t.Fatalf("expected 1 stats entry, got %d", len(ov.Stats))
	}

	stats := ov.Stats[0]
	if stats.Dimensions != 2 {
		t.Errorf("dimensions: expected 2, got %d", stats.Dimensions)
	}
	if stats.Routes != 3 {
		t.Errorf("routes: expected 3, got %d", stats.Routes)
	}
	if stats.Stations != 3 {
		t.Errorf("stations: expected 3, got %d", stats.Stations)
	}
	if stats.LastDeployedAt == nil {
		t.Error("last deployed timestamp missing")
	}
}

func TestRankRecommendations(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	candidates := []models.RouteRecommendation{
		{SourceID: "alpha", RouteID: "1", PlatformCount: 2, UpdatedAt: base},
		{SourceID: "alpha", RouteID: "1", PlatformCount: 9, UpdatedAt: base.Add(time.Hour)}, // duplicate, dropped
		{SourceID: "alpha", RouteID: "2", PlatformCount: 5, UpdatedAt: base},
		{SourceID: "beta", RouteID: "1", PlatformCount: 3, UpdatedAt: base.Add(time.Minute)},
	}

	ranked := rankRecommendations(candidates, 10)
	if len(ranked) != 3 {
		t.Fatalf("expected 3 after dedup, got %d", len(ranked))
	}

	// beta/1 is most recent; alpha/2 beats alpha/1 on platform count.
	if ranked[0].SourceID != "beta" {
		t.Errorf("rank 0: %s/%s", ranked[0].SourceID, ranked[0].RouteID)
	}
	if ranked[1].RouteID != "2" || ranked[2].RouteID != "1" {
		t.Errorf("platform count tie-break wrong: %s then %s", ranked[1].RouteID, ranked[2].RouteID)
	}

	if got := rankRecommendations(candidates, 2); len(got) != 2 {
		t.Errorf("limit should truncate, got %d", len(got))
	}
}

func TestGetOverviewLatestLists(t *testing.T) {
	st := &fakeStore{latest: map[models.Category][]models.CanonicalEntity{
		models.CategoryRoute: {
			{SourceID: "alpha", Category: models.CategoryRoute, EntityID: "7", Name: "Ring", RemoteUpdatedAt: time.Now()},
		},
		models.CategoryStation: {
			{SourceID: "beta", Category: models.CategoryStation, EntityID: "3", Name: "Harbor", RemoteUpdatedAt: time.Now()},
		},
	}}
	links := &fakeLinks{byID: map[string]*fakeLink{"alpha": {}}}
	a := NewAggregator(testConfig("alpha"), st, links)

	ov, err := a.GetOverview(context.Background())
	if err != nil {
		t.Fatalf("GetOverview failed: %v", err)
	}
	if len(ov.LatestRoutes) != 1 || ov.LatestRoutes[0].EntityID != "7" {
		t.Errorf("latest routes: %+v", ov.LatestRoutes)
	}
	if len(ov.LatestStations) != 1 || ov.LatestStations[0].Name != "Harbor" {
		t.Errorf("latest stations: %+v", ov.LatestStations)
	}
}
