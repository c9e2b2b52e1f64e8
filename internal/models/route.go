// Railatlas - Rail Network Cartography and Route Visualization
// Copyright 2026 Wren H. (wrenhall)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wrenhall/railatlas

package models

import "time"

// GeometrySource identifies how a route's geometry was derived, in
// decreasing order of fidelity.
type GeometrySource string

// Geometry sources, best first. When no rail-graph path connects the
// platforms the assembler falls back to platform centers, then to station
// bounding-box centers.
const (
	GeometryRailGraph       GeometrySource = "rail-graph"
	GeometryPlatformCenters GeometrySource = "platform-centers"
	GeometryStationBounds   GeometrySource = "station-bounds"
)

// CurveSegment is the sampled rendering geometry for one traversed rail
// edge (or a synthesized platform-internal straight segment).
type CurveSegment struct {
	From     Point   `json:"from"`
	To       Point   `json:"to"`
	Points   []Point `json:"points"`
	Straight bool    `json:"straight"`
}

// RouteGeometry is the derived rideable geometry of a route: the ordered
// point sequence plus the per-edge curve segments actually traversed.
// Segments is empty for fallback (non-rail-graph) geometry.
type RouteGeometry struct {
	Source   GeometrySource `json:"source"`
	Points   []Point        `json:"points"`
	Segments []CurveSegment `json:"segments,omitempty"`
}

// RouteStop is one entry of a route's ordered stop sequence: the platform
// paired with its resolved station data for display. The stop sequence is
// usable even when no geometry could be derived.
type RouteStop struct {
	PlatformID    string  `json:"platform_id"`
	PlatformName  string  `json:"platform_name,omitempty"`
	StationName   string  `json:"station_name,omitempty"`
	StationBounds *Bounds `json:"station_bounds,omitempty"`
	Center        *Point  `json:"center,omitempty"`
}

// RouteDetail is the per-request composition of route metadata, matched
// snapshot records, derived geometry, and the ordered stop sequence.
// Assembled fresh per request; never cached or persisted.
type RouteDetail struct {
	RouteID       string             `json:"route_id"`
	SourceID      string             `json:"source_id"`
	Dimension     string             `json:"dimension,omitempty"`
	Name          string             `json:"name,omitempty"`
	Color         string             `json:"color,omitempty"`
	TransportMode string             `json:"transport_mode,omitempty"`
	Stations      []SnapshotStation  `json:"stations"`
	Platforms     []SnapshotPlatform `json:"platforms"`
	Depots        []SnapshotDepot    `json:"depots"`
	Geometry      RouteGeometry      `json:"geometry"`
	Stops         []RouteStop        `json:"stops"`
}

// SourceStats is one source's contribution to the overview aggregation.
type SourceStats struct {
	SourceID       string     `json:"source_id"`
	Dimensions     int        `json:"dimensions"`
	Routes         int        `json:"routes"`
	Stations       int        `json:"stations"`
	Platforms      int        `json:"platforms"`
	Depots         int        `json:"depots"`
	LastDeployedAt *time.Time `json:"last_deployed_at,omitempty"`
}

// SourceWarning records a single source's failure during a multi-source
// aggregation. Warnings never abort the overall overview.
type SourceWarning struct {
	SourceID string `json:"source_id"`
	Message  string `json:"message"`
}

// LatestItem is one entry of a cross-source "most recently updated" list.
type LatestItem struct {
	SourceID  string    `json:"source_id"`
	Category  Category  `json:"category"`
	EntityID  string    `json:"entity_id"`
	Name      string    `json:"name,omitempty"`
	Dimension string    `json:"dimension,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RouteRecommendation is a ride suggestion surfaced on the overview,
// deduplicated by (SourceID, RouteID) and ranked by recency then platform
// count.
type RouteRecommendation struct {
	SourceID      string    `json:"source_id"`
	RouteID       string    `json:"route_id"`
	Name          string    `json:"name,omitempty"`
	Color         string    `json:"color,omitempty"`
	Dimension     string    `json:"dimension,omitempty"`
	PlatformCount int       `json:"platform_count"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Overview is the cross-source summary assembled by the overview
// aggregator: per-source stats, merged latest-item lists, ride
// recommendations, and per-source failure warnings.
type Overview struct {
	Stats           []SourceStats         `json:"stats"`
	LatestRoutes    []LatestItem          `json:"latest_routes"`
	LatestStations  []LatestItem          `json:"latest_stations"`
	Recommendations []RouteRecommendation `json:"recommendations"`
	Warnings        []SourceWarning       `json:"warnings"`
	GeneratedAt     time.Time             `json:"generated_at"`
}
