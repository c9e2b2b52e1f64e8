// Railatlas - Rail Network Cartography and Route Visualization
// Copyright 2026 Wren H. (wrenhall)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wrenhall/railatlas

/*
protocol.go - Rail-Data RPC Wire Protocol

The remote companion mod speaks a request/response protocol over a single
websocket: every frame is a JSON envelope carrying a numeric correlation id.
Requests name an event; responses echo the id with either a data payload or
an application-level error message.
*/

package remote

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Events understood by the remote rail-data protocol.
const (
	// EventListEntities pages through one entity category.
	// Params: ListEntitiesParams. Result: ListEntitiesResult.
	EventListEntities = "entities.list"

	// EventNetworkSnapshot returns the full per-dimension network dump.
	// Result: array of models.NetworkSnapshot.
	EventNetworkSnapshot = "network.snapshot"
)

// request is the outgoing wire envelope.
type request struct {
	ID    uint64 `json:"id"`
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// response is the incoming wire envelope.
type response struct {
	ID    uint64          `json:"id"`
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

// ListEntitiesParams are the parameters of the "entities.list" event.
type ListEntitiesParams struct {
	Category       string `json:"category"`
	Limit          int    `json:"limit"`
	Offset         int    `json:"offset"`
	IncludePayload bool   `json:"include_payload"`
}

// ListEntitiesResult is the paged response of the "entities.list" event.
// Rows are loosely typed; the sync normalization layer owns their shape.
type ListEntitiesResult struct {
	Rows      []map[string]any `json:"rows"`
	Truncated bool             `json:"truncated"`
}

// RemoteError is an application-level error response from the remote side.
// It is never retried: the remote understood the request and rejected it.
type RemoteError struct {
	SourceID string
	Event    string
	Message  string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s rejected %s: %s", e.SourceID, e.Event, e.Message)
}
