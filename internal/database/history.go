package database

import (
	"context"
	"fmt"
	"time"

	"clip-compiler/internal/registry"
)

// JobRecord is one job history row.
type JobRecord struct {
	JobID      string    `json:"jobId"`
	Result     string    `json:"result"`
	Stage      string    `json:"stage"`
	Percent    float64   `json:"percent"`
	OutputName string    `json:"outputName,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// JobStats summarizes the durable history for the stats endpoint.
type JobStats struct {
	Completed   int   `json:"completed"`
	Failed      int   `json:"failed"`
	Cancelled   int   `json:"cancelled"`
	Uploads     int   `json:"uploads"`
	UploadBytes int64 `json:"uploadBytes"`
}

// RecordJob persists one terminal job state. Implements the registry's
// history sink, so it is called exactly once per job.
func (d *Database) RecordJob(state registry.JobState) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	_, err := d.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO job_history
			(job_id, result, stage, percent, output_name, error, created_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		state.ID, string(state.Result), state.Stage, state.Percent,
		state.OutputName, state.Error,
		state.CreatedAt.Unix(), state.UpdatedAt.Unix(),
	)
	recordQuery("record_job", start, err)
	if err != nil {
		return fmt.Errorf("failed to record job %s: %w", state.ID, err)
	}
	return nil
}

// RecordUpload appends one upload audit row. method is "chunked" or
// "whole".
func (d *Database) RecordUpload(fileID, originalName string, size int64, method string) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	_, err := d.db.ExecContext(ctx, `
		INSERT INTO upload_audit (file_id, original_name, size, method)
		VALUES (?, ?, ?, ?)`,
		fileID, originalName, size, method,
	)
	recordQuery("record_upload", start, err)
	if err != nil {
		return fmt.Errorf("failed to record upload %s: %w", fileID, err)
	}
	return nil
}

// Stats returns aggregate counts over the durable history.
func (d *Database) Stats(ctx context.Context) (JobStats, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var stats JobStats
	err := d.db.QueryRowContext(ctx, `
		SELECT
			COUNT(CASE WHEN result = 'complete' THEN 1 END),
			COUNT(CASE WHEN result = 'error' THEN 1 END),
			COUNT(CASE WHEN result = 'cancelled' THEN 1 END)
		FROM job_history`,
	).Scan(&stats.Completed, &stats.Failed, &stats.Cancelled)
	if err == nil {
		err = d.db.QueryRowContext(ctx, `
			SELECT COUNT(*), COALESCE(SUM(size), 0) FROM upload_audit`,
		).Scan(&stats.Uploads, &stats.UploadBytes)
	}
	recordQuery("stats", start, err)
	if err != nil {
		return JobStats{}, fmt.Errorf("failed to query stats: %w", err)
	}
	return stats, nil
}

// RecentJobs returns the most recently finished jobs, newest first.
func (d *Database) RecentJobs(ctx context.Context, limit int) ([]JobRecord, error) {
	if limit < 1 {
		limit = 20
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `
		SELECT job_id, result, stage, percent, output_name, error, created_at, finished_at
		FROM job_history
		ORDER BY finished_at DESC, id DESC
		LIMIT ?`, limit,
	)
	recordQuery("recent_jobs", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent jobs: %w", err)
	}
	defer rows.Close()

	var records []JobRecord
	for rows.Next() {
		var r JobRecord
		var created, finished int64
		if err := rows.Scan(&r.JobID, &r.Result, &r.Stage, &r.Percent, &r.OutputName, &r.Error, &created, &finished); err != nil {
			return nil, fmt.Errorf("failed to scan job record: %w", err)
		}
		r.CreatedAt = time.Unix(created, 0)
		r.FinishedAt = time.Unix(finished, 0)
		records = append(records, r)
	}
	return records, rows.Err()
}
