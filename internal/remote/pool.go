// Railatlas - Rail Network Cartography and Route Visualization
// Copyright 2026 Wren H. (wrenhall)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wrenhall/railatlas

package remote

import (
	"context"
	"sync"
	"time"
)

// Status describes the observable connection state of one source link.
type Status struct {
	Connected bool `json:"connected"`
}

// Pool manages one persistent Client per remote source. Clients are created
// lazily on first use and reused for the life of the process.
type Pool struct {
	ctx     context.Context
	mu      sync.Mutex
	clients map[string]*Client
	closed  bool
}

// NewPool creates an empty link pool. The context bounds the lifetime of
// every client connection loop the pool starts.
func NewPool(ctx context.Context) *Pool {
	return &Pool{
		ctx:     ctx,
		clients: make(map[string]*Client),
	}
}

// GetOrCreate returns the client for sourceID, creating and starting it on
// first use. Configuration is fixed at creation; later calls with different
// parameters return the existing client unchanged.
func (p *Pool) GetOrCreate(sourceID, endpoint, key string, timeout time.Duration, maxRetry int) *Client {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.clients[sourceID]; ok {
		return c
	}
	if p.closed {
		return nil
	}

	c := newClient(sourceID, endpoint, key, timeout, maxRetry)
	c.wg.Add(1)
	go c.run(p.ctx)
	p.clients[sourceID] = c
	return c
}

// Get returns the existing client for sourceID, or nil.
func (p *Pool) Get(sourceID string) *Client {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clients[sourceID]
}

// Status reports the connection state for sourceID. An unknown source
// reports as not connected.
func (p *Pool) Status(sourceID string) Status {
	c := p.Get(sourceID)
	if c == nil {
		return Status{Connected: false}
	}
	return Status{Connected: c.IsConnected()}
}

// Close stops every client and prevents new ones from being created.
func (p *Pool) Close() {
	p.mu.Lock()
	clients := make([]*Client, 0, len(p.clients))
	for _, c := range p.clients {
		clients = append(clients, c)
	}
	p.closed = true
	p.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}
