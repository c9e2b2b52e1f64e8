// Railatlas - Rail Network Cartography and Route Visualization
// Copyright 2026 Wren H. (wrenhall)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wrenhall/railatlas

/*
normalize.go - Remote Row Normalization

Remote rows are loosely typed JSON objects whose shapes drift across
companion-mod versions: ids arrive as strings or numbers, dimensions are
explicit or buried in a file path, payloads come as objects or as embedded
JSON strings. Normalization is lossy but never fatal: a malformed payload
degrades to a nil payload, and only a row with no derivable id is dropped.
*/

package sync

import (
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/wrenhall/railatlas/internal/models"
	"github.com/wrenhall/railatlas/internal/railgraph"
)

// dimensionPathMarker is the path segment preceding the namespace/dimension
// pair in file-path fields ("…/dimensions/minecraft/the_nether/…").
const dimensionPathMarker = "dimensions"

// filePathFields lists row field names that may carry the source file path,
// checked in priority order.
var filePathFields = []string{"file_path", "filePath", "file", "path"}

// normalizeRow converts one raw remote row into a canonical entity.
// Returns false only when no entity id could be derived; every other
// malformation degrades field by field.
func normalizeRow(sourceID string, category models.Category, row map[string]any, scanMark time.Time) (*models.CanonicalEntity, bool) {
	if row == nil {
		return nil, false
	}

	payload := normalizePayload(row["payload"])

	id, ok := coerceID(row["id"])
	if !ok {
		// Rail rows identify themselves by position.
		id, ok = positionID(row, payload)
	}
	if !ok {
		return nil, false
	}

	e := &models.CanonicalEntity{
		SourceID:        sourceID,
		Category:        category,
		EntityID:        id,
		Dimension:       normalizeDimension(row),
		TransportMode:   stringField(row, "transport_mode", "transportMode", "mode"),
		Name:            stringField(row, "name", "title"),
		Color:           stringField(row, "color", "colour"),
		FilePath:        stringField(row, filePathFields...),
		Payload:         payload,
		RemoteUpdatedAt: remoteUpdatedAt(row),
		SyncedAt:        scanMark,
	}
	return e, true
}

// coerceID normalizes a loosely typed entity id. Strings pass through;
// numerics truncate to integer form so "42" and 42.0 compare equal.
func coerceID(v any) (string, bool) {
	switch id := v.(type) {
	case string:
		if id == "" {
			return "", false
		}
		return id, true
	case float64:
		return strconv.FormatInt(int64(id), 10), true
	case int:
		return strconv.Itoa(id), true
	case int64:
		return strconv.FormatInt(id, 10), true
	case json.Number:
		if f, err := id.Float64(); err == nil {
			return strconv.FormatInt(int64(f), 10), true
		}
		return "", false
	default:
		return "", false
	}
}

// positionID derives an entity id from a node position, checking the row
// itself and then the payload. The encoded form is the shared position
// codec, so ids stay comparable with graph node keys.
func positionID(row, payload map[string]any) (string, bool) {
	if p, ok := railgraph.DecodeNodePosition(row); ok {
		return p.Key(), true
	}
	if payload != nil {
		if p, ok := railgraph.DecodeNodePosition(payload); ok {
			return p.Key(), true
		}
	}
	return "", false
}

// normalizeDimension derives the "namespace/dimension" context: an explicit
// dimension field wins, else the file path is scanned for the dimensions
// marker segment and the two following segments are joined.
func normalizeDimension(row map[string]any) string {
	if d, ok := row["dimension"].(string); ok && d != "" {
		// Explicit values may use the registry "namespace:dimension" form.
		return strings.Replace(d, ":", "/", 1)
	}
	for _, field := range filePathFields {
		if path, ok := row[field].(string); ok && path != "" {
			if d := dimensionFromPath(path); d != "" {
				return d
			}
		}
	}
	return ""
}

// dimensionFromPath locates the dimensions marker in a file path and joins
// the next two segments as "namespace/dimension".
func dimensionFromPath(path string) string {
	segments := strings.FieldsFunc(path, func(r rune) bool {
		return r == '/' || r == '\\'
	})
	for i, seg := range segments {
		if seg == dimensionPathMarker && i+2 < len(segments) {
			return segments[i+1] + "/" + segments[i+2]
		}
	}
	return ""
}

// normalizePayload accepts a payload object directly or embedded as a JSON
// string. Parse failure yields nil; the entity is still stored.
func normalizePayload(v any) map[string]any {
	switch p := v.(type) {
	case map[string]any:
		return p
	case string:
		if p == "" {
			return nil
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(p), &m); err != nil {
			return nil
		}
		return m
	default:
		return nil
	}
}

// remoteUpdatedAt reads the source-reported last-modified time, accepting
// epoch milliseconds or RFC 3339.
func remoteUpdatedAt(row map[string]any) time.Time {
	for _, field := range []string{"updated_at", "updatedAt", "last_modified", "lastModified"} {
		switch v := row[field].(type) {
		case float64:
			if v > 0 {
				return time.UnixMilli(int64(v)).UTC()
			}
		case string:
			if t, err := time.Parse(time.RFC3339, v); err == nil {
				return t.UTC()
			}
		}
	}
	return time.Time{}
}

// stringField returns the first non-empty string among the named fields.
func stringField(row map[string]any, fields ...string) string {
	for _, field := range fields {
		if s, ok := row[field].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// dimensionRecord builds the registry row for a derived dimension key.
func dimensionRecord(sourceID, key string, seenAt time.Time) *models.Dimension {
	namespace, name, _ := strings.Cut(key, "/")
	return &models.Dimension{
		SourceID:      sourceID,
		Key:           key,
		Namespace:     namespace,
		DimensionName: name,
		LastSeenAt:    seenAt,
	}
}
