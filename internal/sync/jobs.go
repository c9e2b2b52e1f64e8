// Railatlas - Rail Network Cartography and Route Visualization
// Copyright 2026 Wren H. (wrenhall)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wrenhall/railatlas

package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/wrenhall/railatlas/internal/metrics"
	"github.com/wrenhall/railatlas/internal/models"
)

// jobExecutionTimeout bounds one background job execution.
const jobExecutionTimeout = 30 * time.Minute

// duplicateJobMessage marks a job rejected because its source already had
// an active execution. The record is kept for audit.
const duplicateJobMessage = "another sync is already running for this source"

// EnqueueSyncJob persists a PENDING job for the source and starts its
// execution on a background goroutine. The caller gets the job record back
// immediately and polls GetSyncJob for progress.
func (m *Manager) EnqueueSyncJob(ctx context.Context, sourceID, initiatedBy string) (*models.SyncJob, error) {
	if src := m.cfg.SourceByID(sourceID); src == nil || !src.Enabled {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, sourceID)
	}

	job := &models.SyncJob{
		SourceID:    sourceID,
		Status:      models.SyncJobPending,
		InitiatedBy: initiatedBy,
	}
	if err := m.store.CreateSyncJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create sync job: %w", err)
	}

	m.jobWG.Add(1)
	go func() {
		defer m.jobWG.Done()
		execCtx, cancel := context.WithTimeout(context.Background(), jobExecutionTimeout)
		defer cancel()
		m.executeJob(execCtx, job)
	}()

	return job, nil
}

// GetSyncJob returns the persisted job record.
func (m *Manager) GetSyncJob(ctx context.Context, id string) (*models.SyncJob, error) {
	return m.store.GetSyncJob(ctx, id)
}

// GetLatestActiveJob returns the most recent PENDING/RUNNING job for a
// source, or nil when none is active.
func (m *Manager) GetLatestActiveJob(ctx context.Context, sourceID string) (*models.SyncJob, error) {
	return m.store.GetLatestActiveJob(ctx, sourceID)
}

// ListRecentJobs returns the newest job records for a source, for the
// audit listing.
func (m *Manager) ListRecentJobs(ctx context.Context, sourceID string, limit int) ([]models.SyncJob, error) {
	if src := m.cfg.SourceByID(sourceID); src == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, sourceID)
	}
	return m.store.ListRecentJobs(ctx, sourceID, limit)
}

// executeJob drives one job through its state machine. A source with an
// execution already active fails the new job immediately; there is no
// queueing or blocking wait.
func (m *Manager) executeJob(ctx context.Context, job *models.SyncJob) {
	log := m.log.With().Str("job_id", job.ID).Str("source_id", job.SourceID).Logger()

	if !m.claimSource(job.SourceID) {
		m.finishJob(ctx, job, models.SyncJobFailed, duplicateJobMessage)
		log.Warn().Msg("Duplicate sync job rejected")
		return
	}
	defer m.releaseSource(job.SourceID)

	if err := m.store.UpdateSyncJobStatus(ctx, job.ID, models.SyncJobRunning, ""); err != nil {
		log.Error().Err(err).Msg("Failed to mark job running")
		return
	}

	if err := m.SyncSourceByID(ctx, job.SourceID); err != nil {
		m.finishJob(ctx, job, models.SyncJobFailed, err.Error())
		log.Error().Err(err).Msg("Sync job failed")
		return
	}
	m.finishJob(ctx, job, models.SyncJobSucceeded, "")
	log.Info().Msg("Sync job succeeded")
}

// finishJob records a terminal status, falling back to logging when even
// the status write fails.
func (m *Manager) finishJob(ctx context.Context, job *models.SyncJob, status models.SyncJobStatus, message string) {
	metrics.SyncJobsTotal.WithLabelValues(job.SourceID, string(status)).Inc()
	if err := m.store.UpdateSyncJobStatus(ctx, job.ID, status, message); err != nil {
		m.log.Error().Err(err).
			Str("job_id", job.ID).
			Str("status", string(status)).
			Msg("Failed to record job status")
	}
}

// claimSource adds the source to the active set, reporting whether the
// claim won.
func (m *Manager) claimSource(sourceID string) bool {
	m.runningMu.Lock()
	defer m.runningMu.Unlock()
	if _, active := m.runningSources[sourceID]; active {
		return false
	}
	m.runningSources[sourceID] = struct{}{}
	return true
}

func (m *Manager) releaseSource(sourceID string) {
	m.runningMu.Lock()
	defer m.runningMu.Unlock()
	delete(m.runningSources, sourceID)
}
