// Railatlas - Rail Network Cartography and Route Visualization
// Copyright 2026 Wren H. (wrenhall)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wrenhall/railatlas

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wrenhall/railatlas/internal/models"
)

// CreateSyncJob persists a new sync job. A missing id is generated; the
// status defaults to PENDING.
func (s *Store) CreateSyncJob(ctx context.Context, job *models.SyncJob) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = models.SyncJobPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}

	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO sync_jobs (id, source_id, status, message, initiated_by, created_at, started_at, completed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.SourceID, string(job.Status), nullString(job.Message),
		nullString(job.InitiatedBy), job.CreatedAt, job.StartedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create sync job for %s: %w", job.SourceID, err)
	}
	return nil
}

// UpdateSyncJobStatus transitions a job to the given status, stamping
// started_at on RUNNING and completed_at on SUCCEEDED/FAILED.
func (s *Store) UpdateSyncJobStatus(ctx context.Context, id string, status models.SyncJobStatus, message string) error {
	now := time.Now().UTC()

	query := `UPDATE sync_jobs SET status = ?, message = ?`
	args := []any{string(status), nullString(message)}

	switch status {
	case models.SyncJobRunning:
		query += `, started_at = ?`
		args = append(args, now)
	case models.SyncJobSucceeded, models.SyncJobFailed:
		query += `, completed_at = ?`
		args = append(args, now)
	case models.SyncJobPending:
		// No timestamp to stamp.
	}

	query += ` WHERE id = ?`
	args = append(args, id)

	res, err := s.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update sync job %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrJobNotFound
	}
	return nil
}

// GetSyncJob retrieves one job by id, returning ErrJobNotFound when absent.
func (s *Store) GetSyncJob(ctx context.Context, id string) (*models.SyncJob, error) {
	row := s.conn.QueryRowContext(ctx, jobSelect+` WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	return job, err
}

// GetLatestActiveJob returns the most recent PENDING/RUNNING job for a
// source, or nil when the source has no active job.
func (s *Store) GetLatestActiveJob(ctx context.Context, sourceID string) (*models.SyncJob, error) {
	row := s.conn.QueryRowContext(ctx,
		jobSelect+` WHERE source_id = ? AND status IN (?, ?)
			ORDER BY created_at DESC LIMIT 1`,
		sourceID, string(models.SyncJobPending), string(models.SyncJobRunning),
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return job, err
}

// ListRecentJobs returns the newest jobs for a source, for audit listings.
func (s *Store) ListRecentJobs(ctx context.Context, sourceID string, limit int) ([]models.SyncJob, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.conn.QueryContext(ctx,
		jobSelect+` WHERE source_id = ? ORDER BY created_at DESC LIMIT ?`,
		sourceID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync jobs for %s: %w", sourceID, err)
	}
	defer func() { _ = rows.Close() }()

	jobs := make([]models.SyncJob, 0, limit)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync jobs: %w", err)
	}
	return jobs, nil
}

const jobSelect = `SELECT id, source_id, status, message, initiated_by, created_at, started_at, completed_at
FROM sync_jobs`

func scanJob(row rowScanner) (*models.SyncJob, error) {
	var (
		job                  models.SyncJob
		status               string
		message, initiatedBy sql.NullString
		started, completed   sql.NullTime
	)

	err := row.Scan(&job.ID, &job.SourceID, &status, &message, &initiatedBy,
		&job.CreatedAt, &started, &completed)
	if err != nil {
		return nil, err
	}

	job.Status = models.SyncJobStatus(status)
	job.Message = message.String
	job.InitiatedBy = initiatedBy.String
	if started.Valid {
		t := started.Time
		job.StartedAt = &t
	}
	if completed.Valid {
		t := completed.Time
		job.CompletedAt = &t
	}
	return &job, nil
}
