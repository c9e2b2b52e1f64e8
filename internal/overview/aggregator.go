// Railatlas - Rail Network Cartography and Route Visualization
// Copyright 2026 Wren H. (wrenhall)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wrenhall/railatlas

/*
Package overview assembles the cross-source network summary: per-source
stats from live snapshots, merged latest-updated lists from the canonical
store, and deduplicated ride recommendations.

Aggregation is best-effort by design. A source that fails to answer is
recorded as a warning and excluded from the stats; it never aborts the
overview.
*/
package overview

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/wrenhall/railatlas/internal/config"
	"github.com/wrenhall/railatlas/internal/models"
	"github.com/wrenhall/railatlas/internal/remote"
)

const (
	defaultLatestCount         = 10
	defaultRecommendationCount = 5
)

// Store is the canonical-entity read surface the aggregator needs.
type Store interface {
	LatestEntities(ctx context.Context, category models.Category, limit int) ([]models.CanonicalEntity, error)
}

// Aggregator fans overview queries out to every enabled source.
type Aggregator struct {
	cfg   *config.Config
	store Store
	links remote.LinkProvider
}

// NewAggregator creates an overview aggregator.
func NewAggregator(cfg *config.Config, st Store, links remote.LinkProvider) *Aggregator {
	return &Aggregator{cfg: cfg, store: st, links: links}
}

// sourceResult is one source's contribution, collected off the fan-out.
type sourceResult struct {
	stats           *models.SourceStats
	recommendations []models.RouteRecommendation
	warning         *models.SourceWarning
}

// GetOverview queries every enabled source concurrently and merges the
// results. Per-source failures downgrade to warnings alongside the partial
// results of the sources that answered.
func (a *Aggregator) GetOverview(ctx context.Context) (*models.Overview, error) {
	sources := a.cfg.EnabledSources()
	results := make([]sourceResult, len(sources))

	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src config.SourceConfig) {
			defer wg.Done()
			results[i] = a.querySource(ctx, src)
		}(i, src)
	}
	wg.Wait()

	ov := &models.Overview{
		Stats:       make([]models.SourceStats, 0, len(sources)),
		Warnings:    make([]models.SourceWarning, 0),
		GeneratedAt: time.Now().UTC(),
	}

	var candidates []models.RouteRecommendation
	for _, r := range results {
		if r.warning != nil {
			ov.Warnings = append(ov.Warnings, *r.warning)
			continue
		}
		ov.Stats = append(ov.Stats, *r.stats)
		candidates = append(candidates, r.recommendations...)
	}

	ov.Recommendations = rankRecommendations(candidates, a.recommendationCount())
	ov.LatestRoutes = a.latestItems(ctx, models.CategoryRoute)
	ov.LatestStations = a.latestItems(ctx, models.CategoryStation)
	return ov, nil
}

// querySource pulls one source's snapshot and derives its stats and
// recommendation candidates.
func (a *Aggregator) querySource(ctx context.Context, src config.SourceConfig) sourceResult {
	link := a.links.Link(src)
	if link == nil {
		return warningResult(src.ID, "no link available")
	}

	raw, err := link.Emit(ctx, remote.EventNetworkSnapshot, nil, src.Timeout)
	if err != nil {
		return warningResult(src.ID, err.Error())
	}
	var snapshots []models.NetworkSnapshot
	if err := json.Unmarshal(raw, &snapshots); err != nil {
		return warningResult(src.ID, "malformed snapshot: "+err.Error())
	}

	stats := &models.SourceStats{SourceID: src.ID, Dimensions: len(snapshots)}
	var recommendations []models.RouteRecommendation
	var lastDeployed int64

	for i := range snapshots {
		s := &snapshots[i]
		stats.Routes += len(s.Routes)
		stats.Stations += len(s.Stations)
		stats.Platforms += len(s.Platforms)
		stats.Depots += len(s.Depots)
		if s.LastDeployed > lastDeployed {
			lastDeployed = s.LastDeployed
		}
		for j := range s.Routes {
			if rec, ok := recommendationFromRoute(src.ID, s.Dimension, &s.Routes[j]); ok {
				recommendations = append(recommendations, rec)
			}
		}
	}
	if lastDeployed > 0 {
		t := time.UnixMilli(lastDeployed).UTC()
		stats.LastDeployedAt = &t
	}

	return sourceResult{stats: stats, recommendations: recommendations}
}

func warningResult(sourceID, message string) sourceResult {
	return sourceResult{warning: &models.SourceWarning{SourceID: sourceID, Message: message}}
}

func recommendationFromRoute(sourceID, dimension string, route *models.SnapshotRoute) (models.RouteRecommendation, bool) {
	id, ok := models.CoerceID(route.ID)
	if !ok {
		return models.RouteRecommendation{}, false
	}
	return models.RouteRecommendation{
		SourceID:      sourceID,
		RouteID:       id,
		Name:          route.Name,
		Color:         route.Color,
		Dimension:     dimension,
		PlatformCount: len(route.PlatformIDs),
		UpdatedAt:     time.UnixMilli(route.UpdatedAt).UTC(),
	}, true
}

// rankRecommendations deduplicates candidates by (source, route) and ranks
// by recency, then platform count, then id for stability.
func rankRecommendations(candidates []models.RouteRecommendation, limit int) []models.RouteRecommendation {
	seen := make(map[string]struct{}, len(candidates))
	deduped := make([]models.RouteRecommendation, 0, len(candidates))
	for _, c := range candidates {
		key := c.SourceID + "|" + c.RouteID
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		deduped = append(deduped, c)
	}

	sort.Slice(deduped, func(i, j int) bool {
		if !deduped[i].UpdatedAt.Equal(deduped[j].UpdatedAt) {
			return deduped[i].UpdatedAt.After(deduped[j].UpdatedAt)
		}
		if deduped[i].PlatformCount != deduped[j].PlatformCount {
			return deduped[i].PlatformCount > deduped[j].PlatformCount
		}
		return deduped[i].RouteID < deduped[j].RouteID
	})

	if len(deduped) > limit {
		deduped = deduped[:limit]
	}
	return deduped
}

// latestItems reads the cross-source most-recently-updated list for one
// category from the canonical store. Store errors degrade to an empty
// list; the overview still answers.
func (a *Aggregator) latestItems(ctx context.Context, category models.Category) []models.LatestItem {
	entities, err := a.store.LatestEntities(ctx, category, a.latestCount())
	if err != nil {
		return []models.LatestItem{}
	}
	items := make([]models.LatestItem, 0, len(entities))
	for _, e := range entities {
		items = append(items, models.LatestItem{
			SourceID:  e.SourceID,
			Category:  e.Category,
			EntityID:  e.EntityID,
			Name:      e.Name,
			Dimension: e.Dimension,
			UpdatedAt: e.RemoteUpdatedAt,
		})
	}
	return items
}

func (a *Aggregator) latestCount() int {
	if n := a.cfg.API.LatestCount; n > 0 {
		return n
	}
	return defaultLatestCount
}

func (a *Aggregator) recommendationCount() int {
	if n := a.cfg.API.RecommendationCount; n > 0 {
		return n
	}
	return defaultRecommendationCount
}
