// Railatlas - Rail Network Cartography and Route Visualization
// Copyright 2026 Wren H. (wrenhall)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wrenhall/railatlas

/*
client.go - Persistent Remote Link Client

One Client maintains a single long-lived websocket connection to one remote
game server, with automatic reconnection, request/response correlation,
per-call timeout enforcement, bounded retry on transient failures, and a
circuit breaker isolating a misbehaving source.

Connection lifecycle:
  - run() dials with capped exponential backoff, then reads frames until the
    connection drops, failing any in-flight requests before redialing.
  - Emit() never dials; it fails fast with a transient error while the link
    is down so the retry/backoff policy decides how long to keep trying.
*/

package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/wrenhall/railatlas/internal/logging"
	"github.com/wrenhall/railatlas/internal/metrics"
)

// Transient link errors. These are retried by Emit up to the configured
// retry budget; application-level RemoteError responses are not.
var (
	ErrNotConnected = errors.New("remote link not connected")
	ErrEmitTimeout  = errors.New("remote call timed out")
	ErrClientClosed = errors.New("remote link client closed")
)

// Client is a persistent link to one remote game server.
type Client struct {
	sourceID       string
	endpoint       string
	key            string
	defaultTimeout time.Duration
	maxRetry       int

	conn    *websocket.Conn
	connMu  sync.RWMutex
	writeMu sync.Mutex

	nextID    atomic.Uint64
	pending   map[uint64]chan response
	pendingMu sync.Mutex

	breaker *gobreaker.CircuitBreaker[json.RawMessage]

	stopChan  chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
	connected atomic.Bool
}

// newClient builds a client; the pool starts its run loop.
func newClient(sourceID, endpoint, key string, timeout time.Duration, maxRetry int) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if maxRetry < 0 {
		maxRetry = 0
	}

	c := &Client{
		sourceID:       sourceID,
		endpoint:       endpoint,
		key:            key,
		defaultTimeout: timeout,
		maxRetry:       maxRetry,
		pending:        make(map[uint64]chan response),
		stopChan:       make(chan struct{}),
	}

	// Opens after a 60% failure rate over at least 10 requests; a tripped
	// breaker fails calls to this source fast instead of tying up sync
	// workers in timeouts.
	c.breaker = gobreaker.NewCircuitBreaker[json.RawMessage](gobreaker.Settings{
		Name:        "remote-" + sourceID,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			logging.Info().
				Str("source", sourceID).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Remote link circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(sourceID).Set(breakerStateValue(to))
		},
	})

	return c
}

// SourceID returns the source this client is linked to.
func (c *Client) SourceID() string { return c.sourceID }

// IsConnected reports whether the websocket link is currently up.
func (c *Client) IsConnected() bool { return c.connected.Load() }

// WaitReady blocks until the link is connected or the bound elapses,
// reporting whether the link became ready. A false result means the source
// is currently unreachable; callers treat that as degraded, not fatal.
func (c *Client) WaitReady(ctx context.Context, bound time.Duration) bool {
	if bound <= 0 {
		bound = 30 * time.Second
	}
	deadline := time.NewTimer(bound)
	defer deadline.Stop()
	tick := time.NewTicker(250 * time.Millisecond)
	defer tick.Stop()

	for {
		if c.IsConnected() {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-c.stopChan:
			return false
		case <-deadline.C:
			return false
		case <-tick.C:
		}
	}
}

// Emit sends one request and waits for its correlated response. The given
// timeout bounds each attempt independently of the connection defaults;
// zero means the client default. Transient failures (link down, timeout,
// transport reset) are retried up to the configured budget with exponential
// backoff. Application-level error responses are returned as *RemoteError
// without retry.
func (c *Client) Emit(ctx context.Context, event string, payload any, timeout time.Duration) (json.RawMessage, error) {
	if timeout <= 0 {
		timeout = c.defaultTimeout
	}

	start := time.Now()
	defer func() {
		metrics.RemoteEmitDuration.WithLabelValues(c.sourceID, event).Observe(time.Since(start).Seconds())
	}()

	operation := func() (json.RawMessage, error) {
		var appErr *RemoteError
		raw, err := c.breaker.Execute(func() (json.RawMessage, error) {
			raw, err := c.emitOnce(ctx, event, payload, timeout)
			// The remote understood and rejected the request; that is not
			// a link failure, so keep it out of the breaker counts.
			var re *RemoteError
			if errors.As(err, &re) {
				appErr = re
				return nil, nil
			}
			return raw, err
		})
		if appErr != nil {
			return nil, backoff.Permanent(error(appErr))
		}
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return nil, backoff.Permanent(fmt.Errorf("remote %s unavailable: %w", c.sourceID, err))
			}
			if errors.Is(err, ErrClientClosed) || ctx.Err() != nil {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return raw, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 5 * time.Second
	bo.MaxElapsedTime = 0 // bounded by the retry count, not wall time

	raw, err := backoff.RetryWithData(operation,
		backoff.WithContext(backoff.WithMaxRetries(bo, uint64(c.maxRetry)), ctx))
	if err != nil {
		metrics.RemoteEmitErrors.WithLabelValues(c.sourceID, event, errorType(err)).Inc()
		return nil, err
	}
	return raw, nil
}

// emitOnce performs a single correlated request/response round trip.
func (c *Client) emitOnce(ctx context.Context, event string, payload any, timeout time.Duration) (json.RawMessage, error) {
	c.connMu.RLock()
	conn := c.conn
	c.connMu.RUnlock()
	if conn == nil {
		return nil, ErrNotConnected
	}

	id := c.nextID.Add(1)
	ch := make(chan response, 1)

	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	req := request{ID: id, Event: event, Data: payload}
	c.writeMu.Lock()
	err := conn.WriteJSON(req)
	c.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("write failed: %w", err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, ErrNotConnected
		}
		if !resp.OK {
			return nil, &RemoteError{SourceID: c.sourceID, Event: event, Message: resp.Error}
		}
		return resp.Data, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w after %s (event %s)", ErrEmitTimeout, timeout, event)
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.stopChan:
		return nil, ErrClientClosed
	}
}

// run owns the connection: dial with capped backoff, read until the link
// drops, fail in-flight requests, redial. Exits on pool shutdown.
func (c *Client) run(ctx context.Context) {
	defer c.wg.Done()

	reconnectDelay := time.Second
	const maxReconnectDelay = 32 * time.Second

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopChan:
			return
		default:
		}

		if err := c.dial(ctx); err != nil {
			logging.Warn().
				Str("source", c.sourceID).
				Dur("retry_in", reconnectDelay).
				Err(err).
				Msg("Remote link dial failed")
			select {
			case <-time.After(reconnectDelay):
			case <-ctx.Done():
				return
			case <-c.stopChan:
				return
			}
			reconnectDelay *= 2
			if reconnectDelay > maxReconnectDelay {
				reconnectDelay = maxReconnectDelay
			}
			continue
		}
		reconnectDelay = time.Second

		c.readLoop(ctx)
		c.closeConnection()
	}
}

// dial establishes the websocket connection and marks the link ready.
func (c *Client) dial(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout:  10 * time.Second,
		EnableCompression: true,
	}

	header := http.Header{}
	if c.key != "" {
		header.Set("Authorization", "Bearer "+c.key)
	}

	conn, resp, err := dialer.DialContext(ctx, c.endpoint, header)
	if err != nil {
		if resp != nil {
			_ = resp.Body.Close()
			return fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("websocket dial failed: %w", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
	c.connected.Store(true)
	metrics.RemoteConnected.WithLabelValues(c.sourceID).Set(1)

	logging.Info().Str("source", c.sourceID).Str("endpoint", c.endpoint).Msg("Remote link connected")
	return nil
}

// readLoop dispatches correlated responses until the connection drops.
func (c *Client) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopChan:
			return
		default:
		}

		c.connMu.RLock()
		conn := c.conn
		c.connMu.RUnlock()
		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Info().Str("source", c.sourceID).Msg("Remote link closed by peer")
			} else if ctx.Err() == nil {
				logging.Warn().Str("source", c.sourceID).Err(err).Msg("Remote link read error")
			}
			return
		}

		var resp response
		if err := json.Unmarshal(message, &resp); err != nil {
			logging.Warn().Str("source", c.sourceID).Err(err).Msg("Remote link frame not parsable")
			continue
		}

		c.pendingMu.Lock()
		ch, ok := c.pending[resp.ID]
		c.pendingMu.Unlock()
		if ok {
			// Buffered; a second frame with the same id is dropped below.
			select {
			case ch <- resp:
			default:
			}
		}
	}
}

// closeConnection tears down the socket and fails all in-flight requests.
func (c *Client) closeConnection() {
	c.connMu.Lock()
	conn := c.conn
	c.conn = nil
	c.connMu.Unlock()

	c.connected.Store(false)
	metrics.RemoteConnected.WithLabelValues(c.sourceID).Set(0)

	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}

	c.pendingMu.Lock()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.pendingMu.Unlock()
}

// close stops the run loop and tears down the connection.
func (c *Client) close() {
	c.stopOnce.Do(func() { close(c.stopChan) })
	c.closeConnection()
	c.wg.Wait()
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}

func errorType(err error) string {
	switch {
	case errors.Is(err, ErrEmitTimeout):
		return "timeout"
	case errors.Is(err, ErrNotConnected):
		return "disconnected"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "breaker_open"
	default:
		var re *RemoteError
		if errors.As(err, &re) {
			return "remote_rejected"
		}
		return "transport"
	}
}
