// Railatlas - Rail Network Cartography and Route Visualization
// Copyright 2026 Wren H. (wrenhall)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wrenhall/railatlas

package railgraph

import (
	"math"

	"github.com/wrenhall/railatlas/internal/models"
)

// sampleStep is the arc-length spacing of sampled curve points, in blocks.
// Long arcs stay visually smooth without unbounded point counts.
const sampleStep = 4.0

// Curve is one parametric description of the physical path between two
// connected rail nodes: either a straight segment or a circular arc with
// center offsets (H,K), radius R, and parameter range [TStart,TEnd],
// possibly traversed in reverse. Y1/Y2 are the start/end elevations; a
// curve parameterization is direction-sensitive even though the physical
// edge is undirected.
type Curve struct {
	H        float64 `json:"h"`
	K        float64 `json:"k"`
	R        float64 `json:"r"`
	TStart   float64 `json:"t_start"`
	TEnd     float64 `json:"t_end"`
	Y1       float64 `json:"y1"`
	Y2       float64 `json:"y2"`
	Reverse  bool    `json:"reverse"`
	Straight bool    `json:"straight"`
}

// Reversed returns the curve as seen when traversing the edge in the other
// direction: elevations swapped, reverse flag inverted.
func (c *Curve) Reversed() *Curve {
	if c == nil {
		return nil
	}
	r := *c
	r.Y1, r.Y2 = c.Y2, c.Y1
	r.Reverse = !c.Reverse
	return &r
}

// Connection is the directed curve metadata for one edge traversal. Each
// connection may carry two alternative curve descriptions.
type Connection struct {
	Primary   *Curve `json:"primary,omitempty"`
	Secondary *Curve `json:"secondary,omitempty"`
}

// Reversed returns the connection for the opposite traversal direction.
func (c *Connection) Reversed() *Connection {
	if c == nil {
		return nil
	}
	return &Connection{
		Primary:   c.Primary.Reversed(),
		Secondary: c.Secondary.Reversed(),
	}
}

// Preferred selects which of the two curve descriptions to render:
// the single forward (non-reverse) one when exactly one is forward;
// primary when both or neither are; whichever exists when only one does.
func (c *Connection) Preferred() *Curve {
	if c == nil {
		return nil
	}
	switch {
	case c.Primary == nil:
		return c.Secondary
	case c.Secondary == nil:
		return c.Primary
	case !c.Primary.Reverse && c.Secondary.Reverse:
		return c.Primary
	case c.Primary.Reverse && !c.Secondary.Reverse:
		return c.Secondary
	default:
		return c.Primary
	}
}

// Sample produces the rendering polyline for a traversal of this curve
// from one node point to another. The two endpoints are always included
// exactly, even when they fall off the regular sampling grid.
func (c *Curve) Sample(from, to models.Point) []models.Point {
	if c == nil || c.Straight || c.R <= 0 {
		return sampleStraight(from, to)
	}
	return c.sampleArc(from, to)
}

// sampleStraight interpolates directly between two points.
func sampleStraight(from, to models.Point) []models.Point {
	length := distance(from, to)
	n := pointCount(length)

	points := make([]models.Point, 0, n)
	points = append(points, from)
	for i := 1; i < n-1; i++ {
		t := float64(i) / float64(n-1)
		points = append(points, lerp(from, to, t))
	}
	points = append(points, to)
	return points
}

// sampleArc walks the circular arc parameter range, interpolating elevation
// between the traversal's start and end heights.
func (c *Curve) sampleArc(from, to models.Point) []models.Point {
	tStart, tEnd := c.TStart, c.TEnd
	if c.Reverse {
		tStart, tEnd = tEnd, tStart
	}

	arcLen := math.Abs(tEnd-tStart) * c.R
	n := pointCount(arcLen)

	points := make([]models.Point, 0, n)
	points = append(points, from)
	for i := 1; i < n-1; i++ {
		frac := float64(i) / float64(n-1)
		t := tStart + (tEnd-tStart)*frac
		points = append(points, models.Point{
			X: c.H + c.R*math.Cos(t),
			Y: c.Y1 + (c.Y2-c.Y1)*frac,
			Z: c.K + c.R*math.Sin(t),
		})
	}
	points = append(points, to)
	return points
}

// pointCount returns the sampled point count for a span of the given
// length: proportional to length at sampleStep spacing, minimum 2.
func pointCount(length float64) int {
	n := int(length/sampleStep) + 2
	if n < 2 {
		n = 2
	}
	return n
}

func lerp(a, b models.Point, t float64) models.Point {
	return models.Point{
		X: a.X + (b.X-a.X)*t,
		Y: a.Y + (b.Y-a.Y)*t,
		Z: a.Z + (b.Z-a.Z)*t,
	}
}

func distance(a, b models.Point) float64 {
	dx, dy, dz := b.X-a.X, b.Y-a.Y, b.Z-a.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// decodeCurve builds a curve from a loosely typed connection payload entry.
func decodeCurve(v any) *Curve {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}

	c := &Curve{}
	if f, ok := coerceFloat(m["h"]); ok {
		c.H = f
	}
	if f, ok := coerceFloat(m["k"]); ok {
		c.K = f
	}
	if f, ok := coerceFloat(m["r"]); ok {
		c.R = f
	}
	if f, ok := coerceFloat(m["t_start"]); ok {
		c.TStart = f
	} else if f, ok := coerceFloat(m["tStart"]); ok {
		c.TStart = f
	}
	if f, ok := coerceFloat(m["t_end"]); ok {
		c.TEnd = f
	} else if f, ok := coerceFloat(m["tEnd"]); ok {
		c.TEnd = f
	}
	if f, ok := coerceFloat(m["y1"]); ok {
		c.Y1 = f
	}
	if f, ok := coerceFloat(m["y2"]); ok {
		c.Y2 = f
	}
	c.Reverse = coerceBool(m["reverse"])
	c.Straight = coerceBool(m["straight"])
	return c
}

// coerceBool accepts the boolean shapes remote payloads actually use.
func coerceBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case float64:
		return b != 0
	case int:
		return b != 0
	case string:
		switch b {
		case "true", "yes", "1":
			return true
		}
	}
	return false
}
