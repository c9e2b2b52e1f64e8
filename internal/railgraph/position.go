// Railatlas - Rail Network Cartography and Route Visualization
// Copyright 2026 Wren H. (wrenhall)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wrenhall/railatlas

// Package railgraph builds the in-memory rail graph for one dimension
// (nodes are 3D block positions, edges carry directional curve metadata)
// and finds connecting paths between a route's platform endpoints.
//
// Graphs are built fresh per route-detail request and never persisted.
package railgraph

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/wrenhall/railatlas/internal/models"
)

// Position is a rail node's block position. Rail nodes sit on integer
// block coordinates; float inputs are truncated on decode.
type Position struct {
	X int
	Y int
	Z int
}

// Key encodes the position as its opaque string id ("x,y,z"). This codec is
// the single source of position identity: the normalization layer, the
// graph builder, and segment keys all go through it so positions derived
// from different code paths compare equal.
func (p Position) Key() string {
	return fmt.Sprintf("%d,%d,%d", p.X, p.Y, p.Z)
}

// Point converts the position to a geometry point.
func (p Position) Point() models.Point {
	return models.Point{X: float64(p.X), Y: float64(p.Y), Z: float64(p.Z)}
}

// ParseKey decodes an "x,y,z" id back into a position.
func ParseKey(s string) (Position, bool) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return Position{}, false
	}
	coords := make([]int, 3)
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return Position{}, false
		}
		coords[i] = int(v)
	}
	return Position{X: coords[0], Y: coords[1], Z: coords[2]}, true
}

// positionFields lists payload field names that may carry a node position,
// checked in priority order.
var positionFields = []string{"position", "pos", "location"}

// DecodeNodePosition extracts a node position from a rail payload, trying
// the known field names in priority order.
func DecodeNodePosition(payload map[string]any) (Position, bool) {
	for _, field := range positionFields {
		if v, ok := payload[field]; ok {
			if p, ok := DecodePosition(v); ok {
				return p, true
			}
		}
	}
	return Position{}, false
}

// DecodePosition decodes a loosely typed position value: an {x,y,z} map,
// an [x,y,z] array, or an encoded "x,y,z" string.
func DecodePosition(v any) (Position, bool) {
	switch val := v.(type) {
	case map[string]any:
		x, okX := coerceFloat(val["x"])
		y, okY := coerceFloat(val["y"])
		z, okZ := coerceFloat(val["z"])
		if okX && okY && okZ {
			return Position{X: int(x), Y: int(y), Z: int(z)}, true
		}
		return Position{}, false
	case []any:
		if len(val) != 3 {
			return Position{}, false
		}
		x, okX := coerceFloat(val[0])
		y, okY := coerceFloat(val[1])
		z, okZ := coerceFloat(val[2])
		if okX && okY && okZ {
			return Position{X: int(x), Y: int(y), Z: int(z)}, true
		}
		return Position{}, false
	case string:
		return ParseKey(val)
	default:
		return Position{}, false
	}
}

// coerceFloat accepts the numeric shapes JSON decoding can produce.
func coerceFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case interface{ Float64() (float64, error) }:
		// json.Number from either encoding/json or goccy/go-json.
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
