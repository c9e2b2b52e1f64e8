// Railatlas - Rail Network Cartography and Route Visualization
// Copyright 2026 Wren H. (wrenhall)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wrenhall/railatlas

package railgraph

import (
	"context"
	"sort"
	"time"

	"github.com/wrenhall/railatlas/internal/logging"
	"github.com/wrenhall/railatlas/internal/metrics"
	"github.com/wrenhall/railatlas/internal/models"
)

// connectionFields lists payload field names that may carry a rail node's
// connection list, checked in priority order.
var connectionFields = []string{"connections", "links"}

// targetFields lists connection-entry field names that may carry the
// target node's position.
var targetFields = []string{"target", "node", "to"}

// Graph is the in-memory rail graph for one dimension. Nodes are keyed by
// their encoded position; edges are undirected for adjacency but carry
// directed curve metadata per traversal direction. Graphs are ephemeral,
// built fresh per request.
type Graph struct {
	positions   map[string]Position
	adjacency   map[string]map[string]struct{}
	connections map[string]map[string]*Connection
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{
		positions:   make(map[string]Position),
		adjacency:   make(map[string]map[string]struct{}),
		connections: make(map[string]map[string]*Connection),
	}
}

// AddNode registers a position as a graph node and returns its key.
// Registering an existing node is a no-op.
func (g *Graph) AddNode(p Position) string {
	key := p.Key()
	if _, ok := g.positions[key]; !ok {
		g.positions[key] = p
		g.adjacency[key] = make(map[string]struct{})
		g.connections[key] = make(map[string]*Connection)
	}
	return key
}

// AddEdge registers both endpoints, adds the undirected adjacency edge, and
// stores the directed curve metadata in both directions. The reverse
// direction swaps each curve's start/end elevation and inverts its reverse
// flag, since a curve parameterization is direction-sensitive even though
// the physical edge is not.
func (g *Graph) AddEdge(from, to Position, conn *Connection) {
	fromKey := g.AddNode(from)
	toKey := g.AddNode(to)
	if fromKey == toKey {
		return
	}

	g.adjacency[fromKey][toKey] = struct{}{}
	g.adjacency[toKey][fromKey] = struct{}{}

	if conn != nil {
		g.connections[fromKey][toKey] = conn
		if _, ok := g.connections[toKey][fromKey]; !ok {
			g.connections[toKey][fromKey] = conn.Reversed()
		}
	}
}

// Has reports whether the node key is registered in the graph.
func (g *Graph) Has(key string) bool {
	_, ok := g.positions[key]
	return ok
}

// Position returns the decoded position of a registered node key.
func (g *Graph) Position(key string) (Position, bool) {
	p, ok := g.positions[key]
	return p, ok
}

// Connection returns the directed curve metadata for traversing from one
// node key to an adjacent one, or nil when the edge carries none.
func (g *Graph) Connection(fromKey, toKey string) *Connection {
	return g.connections[fromKey][toKey]
}

// Neighbors returns the adjacent node keys in deterministic order.
func (g *Graph) Neighbors(key string) []string {
	adj := g.adjacency[key]
	if len(adj) == 0 {
		return nil
	}
	keys := make([]string, 0, len(adj))
	for k := range adj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// NodeCount returns the number of registered nodes.
func (g *Graph) NodeCount() int {
	return len(g.positions)
}

// addRailPayload registers one rail entity's node and connections. Entities
// without a decodable own position are skipped; connection entries without
// a decodable target are skipped individually.
func (g *Graph) addRailPayload(payload map[string]any) {
	if payload == nil {
		return
	}
	own, ok := DecodeNodePosition(payload)
	if !ok {
		return
	}
	g.AddNode(own)

	for _, field := range connectionFields {
		entries, ok := payload[field].([]any)
		if !ok {
			continue
		}
		for _, entry := range entries {
			m, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			target, ok := decodeTarget(m)
			if !ok {
				continue
			}
			g.AddEdge(own, target, &Connection{
				Primary:   decodeCurve(m["primary"]),
				Secondary: decodeCurve(m["secondary"]),
			})
		}
		break
	}
}

// decodeTarget extracts the target node position of a connection entry.
func decodeTarget(entry map[string]any) (Position, bool) {
	for _, field := range targetFields {
		if v, ok := entry[field]; ok {
			if p, ok := DecodePosition(v); ok {
				return p, true
			}
		}
	}
	return Position{}, false
}

// RailStore is the persisted-entity read surface the builder needs.
type RailStore interface {
	ListEntities(ctx context.Context, sourceID string, category models.Category, dimension string, limit int) ([]models.CanonicalEntity, error)
}

// LiveRailFetch pages raw rail rows straight from a source link. It is
// only consulted when the store has nothing for the dimension.
type LiveRailFetch func(ctx context.Context, limit, offset int) (rows []map[string]any, truncated bool, err error)

// Builder constructs rail graphs for one (source, dimension) pair from
// canonical entities, with a bounded live fallback for dimensions that
// have not been synced yet.
type Builder struct {
	Store RailStore

	// LiveFetch, when set, is the fallback source of rail rows.
	LiveFetch LiveRailFetch

	// LiveFetchCap bounds the total rows pulled by the fallback.
	LiveFetchCap int

	// PageSize is the fallback page size. Defaults to 200.
	PageSize int
}

const (
	defaultLiveFetchCap = 2000
	defaultPageSize     = 200
	storeRailLimit      = 50000
)

// Build assembles the rail graph for one source and dimension. Persisted
// entities are preferred; when none decode into usable nodes the builder
// pulls a capped number of rail rows live from the source before giving up
// with an empty graph.
func (b *Builder) Build(ctx context.Context, sourceID, dimension string) (*Graph, error) {
	start := time.Now()
	defer func() {
		metrics.GraphBuildDuration.WithLabelValues(sourceID).Observe(time.Since(start).Seconds())
	}()

	g := NewGraph()

	entities, err := b.Store.ListEntities(ctx, sourceID, models.CategoryRail, dimension, storeRailLimit)
	if err != nil {
		return nil, err
	}
	for i := range entities {
		g.addRailPayload(entities[i].Payload)
	}
	if g.NodeCount() > 0 {
		return g, nil
	}

	if b.LiveFetch == nil {
		return g, nil
	}
	metrics.GraphLiveFallbacks.WithLabelValues(sourceID).Inc()
	logging.Warn().
		Str("source_id", sourceID).
		Str("dimension", dimension).
		Msg("No persisted rails for dimension, fetching live")

	if err := b.buildLive(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

// buildLive pages rail rows from the live link into the graph, stopping at
// the fetch cap or the final page.
func (b *Builder) buildLive(ctx context.Context, g *Graph) error {
	fetchCap := b.LiveFetchCap
	if fetchCap <= 0 {
		fetchCap = defaultLiveFetchCap
	}
	pageSize := b.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	for offset := 0; offset < fetchCap; offset += pageSize {
		limit := pageSize
		if remaining := fetchCap - offset; remaining < limit {
			limit = remaining
		}
		rows, truncated, err := b.LiveFetch(ctx, limit, offset)
		if err != nil {
			return err
		}
		for _, row := range rows {
			g.addRailPayload(rowPayload(row))
		}
		if !truncated {
			break
		}
	}
	return nil
}

// rowPayload unwraps a raw live row to its payload map. Rows that nest the
// payload under a "payload" key are unwrapped; flat rows pass through.
func rowPayload(row map[string]any) map[string]any {
	if p, ok := row["payload"].(map[string]any); ok {
		return p
	}
	return row
}
