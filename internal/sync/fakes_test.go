// Railatlas - Rail Network Cartography and Route Visualization
// Copyright 2026 Wren H. (wrenhall)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wrenhall/railatlas

package sync

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/wrenhall/railatlas/internal/config"
	"github.com/wrenhall/railatlas/internal/models"
	"github.com/wrenhall/railatlas/internal/remote"
)

// fakeStore is an in-memory Store for orchestrator tests.
type fakeStore struct {
	mu       sync.Mutex
	entities map[string]*models.CanonicalEntity
	dims     map[string]*models.Dimension
	jobs     map[string]*models.SyncJob
	seq      int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		entities: make(map[string]*models.CanonicalEntity),
		dims:     make(map[string]*models.Dimension),
		jobs:     make(map[string]*models.SyncJob),
	}
}

func entityKey(sourceID string, category models.Category, entityID string) string {
	return sourceID + "|" + string(category) + "|" + entityID
}

func (f *fakeStore) UpsertEntity(_ context.Context, e *models.CanonicalEntity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *e
	f.entities[entityKey(e.SourceID, e.Category, e.EntityID)] = &cp
	return nil
}

func (f *fakeStore) DeleteStaleEntities(_ context.Context, sourceID string, category models.Category, olderThan time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var pruned int64
	for key, e := range f.entities {
		if e.SourceID == sourceID && e.Category == category && e.SyncedAt.Before(olderThan) {
			delete(f.entities, key)
			pruned++
		}
	}
	return pruned, nil
}

func (f *fakeStore) UpsertDimension(_ context.Context, d *models.Dimension) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dims[d.SourceID+"|"+d.Key] = d
	return nil
}

func (f *fakeStore) CreateSyncJob(_ context.Context, job *models.SyncJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if job.ID == "" {
		f.seq++
		job.ID = fmt.Sprintf("job-%d", f.seq)
	}
	if job.Status == "" {
		job.Status = models.SyncJobPending
	}
	job.CreatedAt = time.Now().UTC()
	cp := *job
	f.jobs[job.ID] = &cp
	return nil
}

func (f *fakeStore) UpdateSyncJobStatus(_ context.Context, id string, status models.SyncJobStatus, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return fmt.Errorf("job %s not found", id)
	}
	job.Status = status
	job.Message = message
	return nil
}

func (f *fakeStore) GetSyncJob(_ context.Context, id string) (*models.SyncJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s not found", id)
	}
	cp := *job
	return &cp, nil
}

func (f *fakeStore) GetLatestActiveJob(_ context.Context, sourceID string) (*models.SyncJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *models.SyncJob
	for _, job := range f.jobs {
		if job.SourceID != sourceID || !job.Status.Active() {
			continue
		}
		if latest == nil || job.CreatedAt.After(latest.CreatedAt) {
			latest = job
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (f *fakeStore) ListRecentJobs(_ context.Context, sourceID string, limit int) ([]models.SyncJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var jobs []models.SyncJob
	for _, job := range f.jobs {
		if job.SourceID == sourceID {
			jobs = append(jobs, *job)
		}
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.After(jobs[j].CreatedAt) })
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

// entityIDs returns the sorted ids stored for one (source, category).
func (f *fakeStore) entityIDs(sourceID string, category models.Category) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for _, e := range f.entities {
		if e.SourceID == sourceID && e.Category == category {
			ids = append(ids, e.EntityID)
		}
	}
	sort.Strings(ids)
	return ids
}

func (f *fakeStore) jobStatus(id string) (models.SyncJobStatus, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if job, ok := f.jobs[id]; ok {
		return job.Status, job.Message
	}
	return "", ""
}

// fakeLink serves canned rows per category, paged exactly like the remote
// protocol does.
type fakeLink struct {
	mu    sync.Mutex
	rows  map[string][]map[string]any
	calls int
	ready bool
	err   error
}

func newFakeLink() *fakeLink {
	return &fakeLink{rows: make(map[string][]map[string]any), ready: true}
}

func (f *fakeLink) setRows(category models.Category, rows []map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[string(category)] = rows
}

func (f *fakeLink) Emit(_ context.Context, event string, payload any, _ time.Duration) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if event != remote.EventListEntities {
		return nil, fmt.Errorf("unexpected event %s", event)
	}

	params := payload.(remote.ListEntitiesParams)
	all := f.rows[params.Category]

	start := params.Offset
	if start > len(all) {
		start = len(all)
	}
	end := start + params.Limit
	if end > len(all) {
		end = len(all)
	}

	return json.Marshal(remote.ListEntitiesResult{
		Rows:      all[start:end],
		Truncated: end < len(all),
	})
}

func (f *fakeLink) WaitReady(_ context.Context, _ time.Duration) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready
}

func (f *fakeLink) IsConnected() bool { return true }

// fakeLinks hands out one fakeLink per source id.
type fakeLinks struct {
	mu    sync.Mutex
	links map[string]*fakeLink
}

func newFakeLinks() *fakeLinks {
	return &fakeLinks{links: make(map[string]*fakeLink)}
}

func (f *fakeLinks) Link(src config.SourceConfig) Link {
	f.mu.Lock()
	defer f.mu.Unlock()
	if l, ok := f.links[src.ID]; ok {
		return l
	}
	l := newFakeLink()
	f.links[src.ID] = l
	return l
}

func (f *fakeLinks) get(sourceID string) *fakeLink {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.links[sourceID]
}

// testConfig builds a single-source configuration for orchestrator tests.
func testConfig(sourceID string) *config.Config {
	return &config.Config{
		Sync: config.SyncConfig{
			Interval:          time.Hour,
			PageSize:          200,
			UpsertConcurrency: 25,
			ReadyWait:         50 * time.Millisecond,
		},
		Sources: []config.SourceConfig{{
			ID:       sourceID,
			Endpoint: "ws://localhost:9000/rpc",
			Timeout:  time.Second,
			Enabled:  true,
		}},
	}
}
