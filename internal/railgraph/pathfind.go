// Railatlas - Rail Network Cartography and Route Visualization
// Copyright 2026 Wren H. (wrenhall)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wrenhall/railatlas

package railgraph

import (
	"github.com/wrenhall/railatlas/internal/models"
)

// PlatformEndpoints are the attachment nodes a platform exposes to the rail
// graph. A platform has one or two attachment points.
type PlatformEndpoints struct {
	PlatformID string
	Nodes      []Position
}

// PathResult is the derived geometry of a route traversal: the ordered
// point sequence through every platform plus the sampled segment for each
// traversed edge.
type PathResult struct {
	Points   []models.Point
	Segments []models.CurveSegment
}

// FindRoutePath connects the platforms in order through the graph. For each
// consecutive platform pair it finds a shortest-hop path, samples the
// preferred curve of every traversed edge, and concatenates the per-hop
// paths deduplicating junction points. Gaps between a platform's own two
// endpoints with no graph edge are bridged with a synthesized straight
// segment. Returns nil when any consecutive pair has no connecting path.
func FindRoutePath(g *Graph, platforms []PlatformEndpoints) *PathResult {
	if g == nil || len(platforms) < 2 {
		return nil
	}

	result := &PathResult{}
	var lastKey string

	for i := 0; i < len(platforms)-1; i++ {
		from := nodeKeys(g, platforms[i].Nodes)
		to := nodeKeys(g, platforms[i+1].Nodes)
		if len(from) == 0 || len(to) == 0 {
			return nil
		}

		path := shortestHopPath(g, from, to)
		if path == nil {
			return nil
		}

		// The previous hop may have ended at the platform's other
		// attachment node. Bridge the gap so the path never breaks
		// inside a platform.
		if lastKey != "" && path[0] != lastKey {
			appendStraightBridge(g, result, lastKey, path[0])
		}
		appendPath(g, result, path)
		lastKey = path[len(path)-1]
	}
	return result
}

// nodeKeys returns the encoded keys of the positions present in the graph.
func nodeKeys(g *Graph, nodes []Position) []string {
	keys := make([]string, 0, len(nodes))
	for _, n := range nodes {
		key := n.Key()
		if g.Has(key) {
			keys = append(keys, key)
		}
	}
	return keys
}

// shortestHopPath runs a multi-source breadth-first search from any of the
// start keys to the first target key reached, returning the node key path
// inclusive of both endpoints. Rail topology is sparse and mostly
// single-path, so hop count is a sufficient cost.
func shortestHopPath(g *Graph, from, to []string) []string {
	targets := make(map[string]struct{}, len(to))
	for _, key := range to {
		targets[key] = struct{}{}
	}

	// Degenerate hop: a start node is already a target.
	for _, key := range from {
		if _, ok := targets[key]; ok {
			return []string{key}
		}
	}

	parents := make(map[string]string, g.NodeCount())
	queue := make([]string, 0, len(from))
	for _, key := range from {
		parents[key] = ""
		queue = append(queue, key)
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, next := range g.Neighbors(current) {
			if _, seen := parents[next]; seen {
				continue
			}
			parents[next] = current
			if _, ok := targets[next]; ok {
				return reconstructPath(parents, next)
			}
			queue = append(queue, next)
		}
	}
	return nil
}

// reconstructPath walks the parent chain back from the reached target.
func reconstructPath(parents map[string]string, end string) []string {
	var path []string
	for key := end; key != ""; key = parents[key] {
		path = append(path, key)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// appendPath samples every edge of a hop path into the result, skipping the
// duplicated junction point where the hop joins the previous one.
func appendPath(g *Graph, result *PathResult, path []string) {
	if len(path) == 1 {
		appendPoints(result, []models.Point{mustPoint(g, path[0])})
		return
	}
	for i := 0; i < len(path)-1; i++ {
		fromPos, _ := g.Position(path[i])
		toPos, _ := g.Position(path[i+1])

		curve := g.Connection(path[i], path[i+1]).Preferred()
		points := curve.Sample(fromPos.Point(), toPos.Point())

		result.Segments = append(result.Segments, models.CurveSegment{
			From:     fromPos.Point(),
			To:       toPos.Point(),
			Points:   points,
			Straight: curve == nil || curve.Straight,
		})
		appendPoints(result, points)
	}
}

// appendStraightBridge joins two attachment nodes of the same platform.
// When the graph carries an edge between them its curve is sampled;
// otherwise a straight segment is synthesized.
func appendStraightBridge(g *Graph, result *PathResult, fromKey, toKey string) {
	from := mustPoint(g, fromKey)
	to := mustPoint(g, toKey)

	curve := g.Connection(fromKey, toKey).Preferred()
	points := curve.Sample(from, to)

	result.Segments = append(result.Segments, models.CurveSegment{
		From:     from,
		To:       to,
		Points:   points,
		Straight: curve == nil || curve.Straight,
	})
	appendPoints(result, points)
}

// appendPoints extends the point sequence, dropping a leading point equal
// to the current tail.
func appendPoints(result *PathResult, points []models.Point) {
	if len(points) == 0 {
		return
	}
	if n := len(result.Points); n > 0 && result.Points[n-1] == points[0] {
		points = points[1:]
	}
	result.Points = append(result.Points, points...)
}

func mustPoint(g *Graph, key string) models.Point {
	p, _ := g.Position(key)
	return p.Point()
}
