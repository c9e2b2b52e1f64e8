// Railatlas - Rail Network Cartography and Route Visualization
// Copyright 2026 Wren H. (wrenhall)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wrenhall/railatlas

package models

import (
	"math"
	"strconv"
)

// Point is a 3D coordinate in block space. Snapshot payloads report float
// coordinates even though rail nodes sit on integer block positions.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Bounds is an axis-aligned bounding box, used for station regions.
type Bounds struct {
	Min Point `json:"min"`
	Max Point `json:"max"`
}

// Contains reports whether p lies inside the box (inclusive). Vertical
// extent is checked like the horizontal axes; station regions always carry
// a meaningful Y range in practice.
func (b Bounds) Contains(p Point) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// Center returns the midpoint of the box.
func (b Bounds) Center() Point {
	return Point{
		X: (b.Min.X + b.Max.X) / 2,
		Y: (b.Min.Y + b.Max.Y) / 2,
		Z: (b.Min.Z + b.Max.Z) / 2,
	}
}

// NetworkSnapshot is one per-dimension payload of the "network.snapshot"
// remote call: the authoritative full-network dump used for route-detail
// assembly (platform ordering, associated stations/platforms/depots).
type NetworkSnapshot struct {
	Dimension    string             `json:"dimension"`
	LastDeployed int64              `json:"last_deployed"` // unix millis
	Routes       []SnapshotRoute    `json:"routes"`
	Stations     []SnapshotStation  `json:"stations"`
	Platforms    []SnapshotPlatform `json:"platforms"`
	Depots       []SnapshotDepot    `json:"depots"`
}

// SnapshotRoute is a route as reported in a network snapshot. IDs arrive as
// numbers from some remote code paths and strings from others, so they are
// kept loosely typed and compared through CoerceID.
type SnapshotRoute struct {
	ID            any    `json:"id"`
	Name          string `json:"name"`
	Color         string `json:"color"`
	TransportMode string `json:"transport_mode"`
	PlatformIDs   []any  `json:"platform_ids"`
	UpdatedAt     int64  `json:"updated_at"` // unix millis
}

// SnapshotStation is a station region in a network snapshot.
type SnapshotStation struct {
	ID     any     `json:"id"`
	Name   string  `json:"name"`
	Bounds *Bounds `json:"bounds,omitempty"`
}

// SnapshotPlatform is a boarding platform in a network snapshot. A platform
// exposes one or two rail attachment endpoints; StationID may be absent, in
// which case the owning station is resolved by bounding-box containment.
type SnapshotPlatform struct {
	ID        any     `json:"id"`
	StationID any     `json:"station_id,omitempty"`
	Name      string  `json:"name"`
	Endpoints []Point `json:"endpoints,omitempty"`
	Center    *Point  `json:"center,omitempty"`
}

// SnapshotDepot is a depot in a network snapshot.
type SnapshotDepot struct {
	ID       any    `json:"id"`
	Name     string `json:"name"`
	Position *Point `json:"position,omitempty"`
}

// CoerceID normalizes a loosely typed remote identifier to its canonical
// string form. Numeric ids are truncated to integer and stringified, so the
// same id compares equal whether it arrived as 42, 42.0, or "42".
func CoerceID(v any) (string, bool) {
	switch id := v.(type) {
	case nil:
		return "", false
	case string:
		if id == "" {
			return "", false
		}
		return id, true
	case float64:
		if math.IsNaN(id) || math.IsInf(id, 0) {
			return "", false
		}
		return strconv.FormatInt(int64(id), 10), true
	case float32:
		return strconv.FormatInt(int64(id), 10), true
	case int:
		return strconv.Itoa(id), true
	case int32:
		return strconv.FormatInt(int64(id), 10), true
	case int64:
		return strconv.FormatInt(id, 10), true
	case uint64:
		return strconv.FormatUint(id, 10), true
	default:
		return "", false
	}
}

// SameID reports whether a loosely typed remote id matches the canonical
// string id, tolerating both exact-string and numeric-truncated forms.
func SameID(remote any, canonical string) bool {
	coerced, ok := CoerceID(remote)
	return ok && coerced == canonical
}
