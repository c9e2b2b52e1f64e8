// Railatlas - Rail Network Cartography and Route Visualization
// Copyright 2026 Wren H. (wrenhall)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wrenhall/railatlas

/*
manager.go - Sync Orchestrator

The manager drives structural rail data from every enabled source into the
canonical store: periodic full scans across all sources, synchronous
single-source syncs for admin actions, and asynchronous job-backed syncs
with persisted audit records.

Concurrency guards are membership checks, not queues. An overlapping full
scan is skipped silently; a second job for a source with one already active
is persisted and immediately FAILED.
*/

package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/rs/zerolog"

	"github.com/wrenhall/railatlas/internal/config"
	"github.com/wrenhall/railatlas/internal/logging"
	"github.com/wrenhall/railatlas/internal/metrics"
	"github.com/wrenhall/railatlas/internal/models"
)

// ErrUnknownSource is returned when a sync is requested for a source id
// that is not configured.
var ErrUnknownSource = errors.New("unknown source")

// Manager orchestrates entity synchronization across all configured
// sources. It runs as a supervised service; Serve drives the periodic full
// scan until its context is cancelled.
type Manager struct {
	cfg   *config.Config
	store Store
	links LinkProvider
	log   zerolog.Logger

	// upsertPool bounds in-flight entity upserts across all syncs.
	upsertPool pond.Pool

	// fullSyncRunning guards against overlapping full scans.
	fullSyncRunning atomic.Bool

	// runningSources is the per-source active-job membership set.
	runningMu      sync.Mutex
	runningSources map[string]struct{}

	// jobWG tracks background job goroutines for Stop.
	jobWG   sync.WaitGroup
	stopCh  chan struct{}
	stopped atomic.Bool
}

// NewManager creates a sync manager. The store and link provider are shared
// with the read-side collaborators; the manager owns only its guards and
// the bounded upsert pool.
func NewManager(cfg *config.Config, st Store, links LinkProvider) *Manager {
	concurrency := cfg.Sync.UpsertConcurrency
	if concurrency <= 0 {
		concurrency = 25
	}
	return &Manager{
		cfg:            cfg,
		store:          st,
		links:          links,
		log:            logging.With().Str("component", "sync").Logger(),
		upsertPool:     pond.NewPool(concurrency),
		runningSources: make(map[string]struct{}),
		stopCh:         make(chan struct{}),
	}
}

// Serve runs the periodic full-scan loop. It satisfies the suture service
// contract: it blocks until ctx is cancelled and returns the context error.
func (m *Manager) Serve(ctx context.Context) error {
	interval := m.cfg.Sync.Interval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	m.log.Info().Dur("interval", interval).Msg("Sync scheduler started")

	// First pass immediately, then on the ticker.
	m.RunFullSync(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.RunFullSync(ctx)
		case <-m.stopCh:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// String names the service in supervisor logs.
func (m *Manager) String() string { return "sync-manager" }

// Stop halts the scheduler and waits for background job goroutines to
// finish. Safe to call more than once.
func (m *Manager) Stop() {
	if m.stopped.CompareAndSwap(false, true) {
		close(m.stopCh)
	}
	m.jobWG.Wait()
	m.upsertPool.StopAndWait()
}

// RunFullSync syncs every enabled source in configuration order. An
// overlapping invocation is skipped silently. Per-source failures are
// logged and counted; they never abort the remaining sources.
func (m *Manager) RunFullSync(ctx context.Context) {
	if !m.fullSyncRunning.CompareAndSwap(false, true) {
		m.log.Debug().Msg("Full sync already in progress, skipping")
		return
	}
	defer m.fullSyncRunning.Store(false)

	sources := m.cfg.EnabledSources()
	m.log.Info().Int("sources", len(sources)).Msg("Full sync starting")

	for _, src := range sources {
		if ctx.Err() != nil {
			return
		}
		if err := m.syncSource(ctx, src); err != nil {
			metrics.SyncErrors.WithLabelValues(src.ID).Inc()
			m.log.Error().Err(err).Str("source_id", src.ID).Msg("Source sync failed")
		}
	}
}

// SyncSourceByID runs a synchronous sync of one configured source.
func (m *Manager) SyncSourceByID(ctx context.Context, sourceID string) error {
	src := m.cfg.SourceByID(sourceID)
	if src == nil || !src.Enabled {
		return fmt.Errorf("%w: %s", ErrUnknownSource, sourceID)
	}
	if err := m.syncSource(ctx, *src); err != nil {
		metrics.SyncErrors.WithLabelValues(src.ID).Inc()
		return err
	}
	return nil
}

// syncSource connects to one source and syncs every entity category in the
// fixed order. An unready connection is logged and attempted anyway; the
// first category failure aborts the source.
func (m *Manager) syncSource(ctx context.Context, src config.SourceConfig) error {
	start := time.Now()
	log := m.log.With().Str("source_id", src.ID).Logger()

	link := m.links.Link(src)
	if link == nil {
		return fmt.Errorf("no link available for source %s", src.ID)
	}
	if !link.WaitReady(ctx, m.cfg.Sync.ReadyWait) {
		// Unreachable is non-fatal here: individual calls will fail
		// with their own errors if the link stays down.
		log.Warn().Msg("Source link not ready, attempting sync anyway")
	}

	for _, category := range models.AllCategories {
		if err := m.syncCategory(ctx, link, src, category); err != nil {
			return fmt.Errorf("sync %s %s: %w", src.ID, category, err)
		}
	}

	elapsed := time.Since(start)
	metrics.SyncDuration.WithLabelValues(src.ID).Observe(elapsed.Seconds())
	metrics.SyncLastSuccess.WithLabelValues(src.ID).SetToCurrentTime()
	log.Info().Dur("elapsed", elapsed).Msg("Source sync complete")
	return nil
}
