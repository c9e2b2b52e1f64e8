// Railatlas - Rail Network Cartography and Route Visualization
// Copyright 2026 Wren H. (wrenhall)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wrenhall/railatlas

package railgraph

import (
	"testing"

	"github.com/wrenhall/railatlas/internal/models"
)

// lineGraph builds a straight west-to-east rail line through the given
// x coordinates at y=64, z=0.
func lineGraph(xs ...int) *Graph {
	g := NewGraph()
	for i := 0; i < len(xs)-1; i++ {
		a := Position{X: xs[i], Y: 64}
		b := Position{X: xs[i+1], Y: 64}
		g.AddEdge(a, b, &Connection{Primary: &Curve{Straight: true}})
	}
	return g
}

func platform(id string, nodes ...Position) PlatformEndpoints {
	return PlatformEndpoints{PlatformID: id, Nodes: nodes}
}

func TestFindRoutePathConnectsThreePlatforms(t *testing.T) {
	g := lineGraph(0, 8, 16, 24, 32)
	result := FindRoutePath(g, []PlatformEndpoints{
		platform("P1", Position{X: 0, Y: 64}),
		platform("P2", Position{X: 16, Y: 64}),
		platform("P3", Position{X: 32, Y: 64}),
	})
	if result == nil {
		t.Fatal("expected a connected path")
	}
	if len(result.Segments) != 4 {
		t.Errorf("expected 4 traversed edges, got %d", len(result.Segments))
	}

	first := result.Points[0]
	last := result.Points[len(result.Points)-1]
	checkPointEqual(t, "path start", first, models.Point{X: 0, Y: 64, Z: 0})
	checkPointEqual(t, "path end", last, models.Point{X: 32, Y: 64, Z: 0})

	// Junction points between hops must not repeat.
	for i := 1; i < len(result.Points); i++ {
		if result.Points[i] == result.Points[i-1] {
			t.Errorf("duplicate junction point at index %d: %+v", i, result.Points[i])
		}
	}
}

func TestFindRoutePathNilWhenDisconnected(t *testing.T) {
	g := lineGraph(0, 8)
	g.AddEdge(Position{X: 100, Y: 64}, Position{X: 108, Y: 64}, nil)

	result := FindRoutePath(g, []PlatformEndpoints{
		platform("P1", Position{X: 0, Y: 64}),
		platform("P2", Position{X: 100, Y: 64}),
	})
	if result != nil {
		t.Error("disconnected platforms should yield nil")
	}
}

func TestFindRoutePathNilWhenPlatformOffGraph(t *testing.T) {
	g := lineGraph(0, 8)
	result := FindRoutePath(g, []PlatformEndpoints{
		platform("P1", Position{X: 0, Y: 64}),
		platform("P2", Position{X: 999, Y: 64}),
	})
	if result != nil {
		t.Error("platform with no graph nodes should yield nil")
	}
}

func TestFindRoutePathUsesEitherAttachmentNode(t *testing.T) {
	g := lineGraph(0, 8, 16)
	result := FindRoutePath(g, []PlatformEndpoints{
		platform("P1", Position{X: 999, Y: 64}, Position{X: 0, Y: 64}),
		platform("P2", Position{X: 16, Y: 64}),
	})
	if result == nil {
		t.Fatal("the platform's second attachment node should connect")
	}
	checkPointEqual(t, "path start", result.Points[0], models.Point{X: 0, Y: 64, Z: 0})
}

func TestFindRoutePathBridgesPlatformInternalGap(t *testing.T) {
	// Two disjoint rail stretches joined only by the middle platform's two
	// attachment nodes, with no rail edge between them.
	g := NewGraph()
	g.AddEdge(Position{X: 0, Y: 64}, Position{X: 8, Y: 64}, nil)
	g.AddEdge(Position{X: 12, Y: 64}, Position{X: 20, Y: 64}, nil)

	result := FindRoutePath(g, []PlatformEndpoints{
		platform("P1", Position{X: 0, Y: 64}),
		platform("P2", Position{X: 8, Y: 64}, Position{X: 12, Y: 64}),
		platform("P3", Position{X: 20, Y: 64}),
	})
	if result == nil {
		t.Fatal("expected a bridged path")
	}

	var bridged bool
	for _, seg := range result.Segments {
		if seg.Straight && seg.From.X == 8 && seg.To.X == 12 {
			bridged = true
		}
	}
	if !bridged {
		t.Error("expected a synthesized straight segment between the platform's endpoints")
	}
	checkPointEqual(t, "path end", result.Points[len(result.Points)-1], models.Point{X: 20, Y: 64, Z: 0})
}

func TestFindRoutePathShortestHop(t *testing.T) {
	// Direct edge plus a two-hop detour between the same endpoints.
	g := NewGraph()
	a := Position{X: 0, Y: 64}
	b := Position{X: 16, Y: 64}
	detour := Position{X: 8, Y: 80}
	g.AddEdge(a, b, nil)
	g.AddEdge(a, detour, nil)
	g.AddEdge(detour, b, nil)

	result := FindRoutePath(g, []PlatformEndpoints{
		platform("P1", a),
		platform("P2", b),
	})
	if result == nil {
		t.Fatal("expected a path")
	}
	if len(result.Segments) != 1 {
		t.Errorf("expected the direct edge, got %d segments", len(result.Segments))
	}
}

func TestFindRoutePathSinglePlatformYieldsNil(t *testing.T) {
	g := lineGraph(0, 8)
	if FindRoutePath(g, []PlatformEndpoints{platform("P1", Position{X: 0, Y: 64})}) != nil {
		t.Error("fewer than two platforms should yield nil")
	}
}
