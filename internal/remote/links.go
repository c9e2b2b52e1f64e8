// Railatlas - Rail Network Cartography and Route Visualization
// Copyright 2026 Wren H. (wrenhall)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wrenhall/railatlas

package remote

import (
	"context"
	"time"

	"github.com/goccy/go-json"

	"github.com/wrenhall/railatlas/internal/config"
)

// Link is the call surface of one source's RPC connection. *Client
// satisfies it; consumers substitute fakes in tests.
type Link interface {
	Emit(ctx context.Context, event string, payload any, timeout time.Duration) (json.RawMessage, error)
	WaitReady(ctx context.Context, bound time.Duration) bool
	IsConnected() bool
}

// LinkProvider hands out the persistent link for a configured source.
type LinkProvider interface {
	Link(src config.SourceConfig) Link
}

// PoolLinks adapts the link pool to the LinkProvider interface shared by
// the sync orchestrator and the read-side collaborators.
type PoolLinks struct {
	Pool *Pool
}

// Link returns the pooled client for the source, creating it on first use.
func (p PoolLinks) Link(src config.SourceConfig) Link {
	return p.Pool.GetOrCreate(src.ID, src.Endpoint, src.Key, src.Timeout, src.MaxRetry)
}
