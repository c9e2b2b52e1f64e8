// Railatlas - Rail Network Cartography and Route Visualization
// Copyright 2026 Wren H. (wrenhall)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wrenhall/railatlas

/*
Package routedetail assembles the per-route read object: route metadata,
matched stations/platforms/depots from the authoritative network snapshot,
derived geometry, and the ordered stop sequence.

Geometry degrades in fidelity rather than failing: a rail-graph path when
one connects the platforms, else a platform-center polyline, else a
station-bounds-center polyline. Details are assembled fresh per request
and never cached.
*/
package routedetail

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/wrenhall/railatlas/internal/config"
	"github.com/wrenhall/railatlas/internal/metrics"
	"github.com/wrenhall/railatlas/internal/models"
	"github.com/wrenhall/railatlas/internal/railgraph"
	"github.com/wrenhall/railatlas/internal/remote"
)

// Not-found conditions surfaced at the read boundary. Never retried.
var (
	ErrRouteNotFound  = errors.New("route not found")
	ErrSourceNotFound = errors.New("source not found")
)

// Options narrow the route lookup. SourceID restricts the search to one
// source; Dimension is a hint tried before scanning all dimensions.
type Options struct {
	SourceID  string
	Dimension string
}

// Store is the persisted-entity read surface the assembler needs.
type Store interface {
	GetEntity(ctx context.Context, sourceID string, category models.Category, entityID string) (*models.CanonicalEntity, error)
	ListEntities(ctx context.Context, sourceID string, category models.Category, dimension string, limit int) ([]models.CanonicalEntity, error)
}

// Assembler composes route details from snapshots, canonical entities, and
// derived rail-graph geometry.
type Assembler struct {
	cfg   *config.Config
	store Store
	links remote.LinkProvider
}

// NewAssembler creates a route detail assembler.
func NewAssembler(cfg *config.Config, st Store, links remote.LinkProvider) *Assembler {
	return &Assembler{cfg: cfg, store: st, links: links}
}

// GetRouteDetail locates the route across the candidate sources and
// assembles its detail object. Unknown source ids and routes that no
// snapshot reports surface as typed not-found errors.
func (a *Assembler) GetRouteDetail(ctx context.Context, routeID string, opts Options) (*models.RouteDetail, error) {
	sources, err := a.candidateSources(opts.SourceID)
	if err != nil {
		return nil, err
	}

	for _, src := range sources {
		snapshots, err := a.fetchSnapshots(ctx, src)
		if err != nil {
			// A source that cannot answer is skipped; the route may
			// still be found on another candidate.
			continue
		}
		snapshot, route := findRoute(snapshots, routeID, opts.Dimension)
		if route == nil {
			continue
		}
		return a.assemble(ctx, src, snapshot, route, routeID)
	}
	return nil, fmt.Errorf("%w: %s", ErrRouteNotFound, routeID)
}

// candidateSources resolves the sources to search: the named one, or every
// enabled source in configuration order.
func (a *Assembler) candidateSources(sourceID string) ([]config.SourceConfig, error) {
	if sourceID == "" {
		return a.cfg.EnabledSources(), nil
	}
	src := a.cfg.SourceByID(sourceID)
	if src == nil || !src.Enabled {
		return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, sourceID)
	}
	return []config.SourceConfig{*src}, nil
}

// fetchSnapshots pulls the full per-dimension network dump from a source.
func (a *Assembler) fetchSnapshots(ctx context.Context, src config.SourceConfig) ([]models.NetworkSnapshot, error) {
	link := a.links.Link(src)
	if link == nil {
		return nil, fmt.Errorf("no link available for source %s", src.ID)
	}
	raw, err := link.Emit(ctx, remote.EventNetworkSnapshot, nil, src.Timeout)
	if err != nil {
		return nil, fmt.Errorf("fetch snapshot from %s: %w", src.ID, err)
	}
	var snapshots []models.NetworkSnapshot
	if err := json.Unmarshal(raw, &snapshots); err != nil {
		return nil, fmt.Errorf("decode snapshot from %s: %w", src.ID, err)
	}
	return snapshots, nil
}

// findRoute scans the snapshots for a route-id match, trying the hinted
// dimension first. Id matching tolerates exact-string and
// numeric-truncated forms.
func findRoute(snapshots []models.NetworkSnapshot, routeID, dimensionHint string) (*models.NetworkSnapshot, *models.SnapshotRoute) {
	if dimensionHint != "" {
		for i := range snapshots {
			if snapshots[i].Dimension != dimensionHint {
				continue
			}
			if r := routeInSnapshot(&snapshots[i], routeID); r != nil {
				return &snapshots[i], r
			}
		}
	}
	for i := range snapshots {
		if dimensionHint != "" && snapshots[i].Dimension == dimensionHint {
			continue
		}
		if r := routeInSnapshot(&snapshots[i], routeID); r != nil {
			return &snapshots[i], r
		}
	}
	return nil, nil
}

func routeInSnapshot(s *models.NetworkSnapshot, routeID string) *models.SnapshotRoute {
	for i := range s.Routes {
		if models.SameID(s.Routes[i].ID, routeID) {
			return &s.Routes[i]
		}
	}
	return nil
}

// assemble builds the detail object for a located route.
func (a *Assembler) assemble(ctx context.Context, src config.SourceConfig, snapshot *models.NetworkSnapshot, route *models.SnapshotRoute, routeID string) (*models.RouteDetail, error) {
	detail := &models.RouteDetail{
		RouteID:       routeID,
		SourceID:      src.ID,
		Dimension:     snapshot.Dimension,
		Name:          route.Name,
		Color:         route.Color,
		TransportMode: route.TransportMode,
		Stations:      snapshot.Stations,
		Depots:        snapshot.Depots,
	}

	// Canonical metadata fills fields the snapshot omits.
	if entity, err := a.store.GetEntity(ctx, src.ID, models.CategoryRoute, routeID); err == nil {
		if detail.Name == "" {
			detail.Name = entity.Name
		}
		if detail.Color == "" {
			detail.Color = entity.Color
		}
		if detail.TransportMode == "" {
			detail.TransportMode = entity.TransportMode
		}
	}

	platforms := resolvePlatforms(snapshot, route)
	detail.Platforms = platforms
	detail.Stops = buildStops(snapshot, route, platforms)
	detail.Geometry = a.buildGeometry(ctx, src, snapshot.Dimension, platforms, detail.Stops)

	metrics.RouteGeometryBySource.WithLabelValues(string(detail.Geometry.Source)).Inc()
	return detail, nil
}

// resolvePlatforms maps the route's ordered platform ids to snapshot
// platform records. An id with no record yields a placeholder carrying
// just the id, so the stop sequence stays one entry per platform.
func resolvePlatforms(snapshot *models.NetworkSnapshot, route *models.SnapshotRoute) []models.SnapshotPlatform {
	platforms := make([]models.SnapshotPlatform, 0, len(route.PlatformIDs))
	for _, id := range route.PlatformIDs {
		if p := platformByID(snapshot, id); p != nil {
			platforms = append(platforms, *p)
		} else {
			platforms = append(platforms, models.SnapshotPlatform{ID: id})
		}
	}
	return platforms
}

func platformByID(snapshot *models.NetworkSnapshot, id any) *models.SnapshotPlatform {
	canonical, ok := models.CoerceID(id)
	if !ok {
		return nil
	}
	for i := range snapshot.Platforms {
		if models.SameID(snapshot.Platforms[i].ID, canonical) {
			return &snapshot.Platforms[i]
		}
	}
	return nil
}

// stationForPlatform resolves the owning station: a direct station-id
// reference wins; otherwise the first station whose bounds contain the
// platform's center or an endpoint. Station regions are assumed
// non-overlapping, so first match in snapshot order is deterministic.
func stationForPlatform(snapshot *models.NetworkSnapshot, p *models.SnapshotPlatform) *models.SnapshotStation {
	if canonical, ok := models.CoerceID(p.StationID); ok {
		for i := range snapshot.Stations {
			if models.SameID(snapshot.Stations[i].ID, canonical) {
				return &snapshot.Stations[i]
			}
		}
	}

	for _, probe := range platformProbePoints(p) {
		for i := range snapshot.Stations {
			b := snapshot.Stations[i].Bounds
			if b != nil && b.Contains(probe) {
				return &snapshot.Stations[i]
			}
		}
	}
	return nil
}

// platformProbePoints lists the coordinates used for containment checks:
// the explicit center first, then each endpoint.
func platformProbePoints(p *models.SnapshotPlatform) []models.Point {
	var points []models.Point
	if p.Center != nil {
		points = append(points, *p.Center)
	}
	points = append(points, p.Endpoints...)
	return points
}

// buildStops pairs each ordered platform with its resolved station data.
func buildStops(snapshot *models.NetworkSnapshot, route *models.SnapshotRoute, platforms []models.SnapshotPlatform) []models.RouteStop {
	stops := make([]models.RouteStop, 0, len(platforms))
	for i := range platforms {
		p := &platforms[i]
		id, _ := models.CoerceID(p.ID)
		stop := models.RouteStop{
			PlatformID:   id,
			PlatformName: p.Name,
			Center:       platformCenter(p),
		}
		if station := stationForPlatform(snapshot, p); station != nil {
			stop.StationName = station.Name
			stop.StationBounds = station.Bounds
			if stop.Center == nil && station.Bounds != nil {
				c := station.Bounds.Center()
				stop.Center = &c
			}
		}
		stops = append(stops, stop)
	}
	return stops
}

// platformCenter returns the platform's explicit center, else the midpoint
// of its endpoints.
func platformCenter(p *models.SnapshotPlatform) *models.Point {
	if p.Center != nil {
		return p.Center
	}
	if len(p.Endpoints) == 0 {
		return nil
	}
	var c models.Point
	for _, e := range p.Endpoints {
		c.X += e.X
		c.Y += e.Y
		c.Z += e.Z
	}
	n := float64(len(p.Endpoints))
	c.X, c.Y, c.Z = c.X/n, c.Y/n, c.Z/n
	return &c
}

// buildGeometry derives the route's rideable geometry, degrading from a
// rail-graph path to a platform-center polyline to station-bounds centers.
func (a *Assembler) buildGeometry(ctx context.Context, src config.SourceConfig, dimension string, platforms []models.SnapshotPlatform, stops []models.RouteStop) models.RouteGeometry {
	if dimension != "" {
		if geom, ok := a.railGraphGeometry(ctx, src, dimension, platforms); ok {
			return geom
		}
	}
	return fallbackGeometry(platforms, stops)
}

// railGraphGeometry builds the dimension's rail graph and finds a path
// through the platforms' attachment nodes.
func (a *Assembler) railGraphGeometry(ctx context.Context, src config.SourceConfig, dimension string, platforms []models.SnapshotPlatform) (models.RouteGeometry, bool) {
	builder := &railgraph.Builder{
		Store:        a.store,
		LiveFetchCap: a.cfg.Sync.LiveRailFetchCap,
		PageSize:     a.cfg.Sync.PageSize,
		LiveFetch:    a.liveRailFetch(src),
	}
	g, err := builder.Build(ctx, src.ID, dimension)
	if err != nil || g.NodeCount() == 0 {
		return models.RouteGeometry{}, false
	}

	endpoints := make([]railgraph.PlatformEndpoints, 0, len(platforms))
	for i := range platforms {
		id, _ := models.CoerceID(platforms[i].ID)
		pe := railgraph.PlatformEndpoints{PlatformID: id}
		for _, e := range platforms[i].Endpoints {
			pe.Nodes = append(pe.Nodes, railgraph.Position{X: int(e.X), Y: int(e.Y), Z: int(e.Z)})
		}
		endpoints = append(endpoints, pe)
	}

	path := railgraph.FindRoutePath(g, endpoints)
	if path == nil {
		return models.RouteGeometry{}, false
	}
	return models.RouteGeometry{
		Source:   models.GeometryRailGraph,
		Points:   path.Points,
		Segments: path.Segments,
	}, true
}

// liveRailFetch adapts the source link to the graph builder's bounded
// fallback fetch.
func (a *Assembler) liveRailFetch(src config.SourceConfig) railgraph.LiveRailFetch {
	link := a.links.Link(src)
	if link == nil {
		return nil
	}
	return func(ctx context.Context, limit, offset int) ([]map[string]any, bool, error) {
		raw, err := link.Emit(ctx, remote.EventListEntities, remote.ListEntitiesParams{
			Category:       string(models.CategoryRail),
			Limit:          limit,
			Offset:         offset,
			IncludePayload: true,
		}, src.Timeout)
		if err != nil {
			return nil, false, err
		}
		var page remote.ListEntitiesResult
		if err := json.Unmarshal(raw, &page); err != nil {
			return nil, false, err
		}
		return page.Rows, page.Truncated, nil
	}
}

// fallbackGeometry builds the coordinate-only polyline. The source reports
// platform-centers when every platform resolved a center of its own, and
// station-bounds when any center had to come from station bounds (or was
// skipped entirely).
func fallbackGeometry(platforms []models.SnapshotPlatform, stops []models.RouteStop) models.RouteGeometry {
	source := models.GeometryPlatformCenters
	points := make([]models.Point, 0, len(platforms))

	for i := range platforms {
		if c := platformCenter(&platforms[i]); c != nil {
			points = append(points, *c)
			continue
		}
		source = models.GeometryStationBounds
		// The stop sequence already fell back to the station bounds
		// center when the platform had none.
		if i < len(stops) && stops[i].Center != nil {
			points = append(points, *stops[i].Center)
		}
	}
	return models.RouteGeometry{Source: source, Points: points}
}
