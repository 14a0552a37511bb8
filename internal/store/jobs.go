// ABOUTME: SKIP LOCKED job queue used for async invitation email delivery.
// ABOUTME: job_queue is not tenant data — no RLS, plain pool queries.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Job is a claimed job ready for execution by the worker pool.
type Job struct {
	ID       uuid.UUID
	Queue    string
	Payload  json.RawMessage
	Attempts int32
}

// EnqueueJob inserts a pending job on the named queue.
func (s *Store) EnqueueJob(ctx context.Context, queue string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("enqueue job: marshal payload: %w", err)
	}
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO job_queue (queue, payload) VALUES ($1, $2)`, queue, raw); err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}
	return nil
}

// ClaimJob atomically claims one pending job from the named queue for the
// given workerID using FOR UPDATE SKIP LOCKED. Returns (nil, nil) when no
// job is currently available.
func (s *Store) ClaimJob(ctx context.Context, queue, workerID string) (*Job, error) {
	var job Job
	err := s.pool.QueryRow(ctx,
		`UPDATE job_queue
		 SET status = 'running', locked_by = $2, locked_at = now(), attempts = attempts + 1
		 WHERE id = (
		     SELECT id FROM job_queue
		     WHERE queue = $1 AND status = 'pending' AND run_at <= now()
		     ORDER BY run_at
		     LIMIT 1
		     FOR UPDATE SKIP LOCKED
		 )
		 RETURNING id, queue, payload, attempts`,
		queue, workerID).
		Scan(&job.ID, &job.Queue, &job.Payload, &job.Attempts)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return &job, nil
}

// CompleteJob marks a job as succeeded.
func (s *Store) CompleteJob(ctx context.Context, id uuid.UUID) error {
	if _, err := s.pool.Exec(ctx,
		`UPDATE job_queue SET status = 'done', locked_by = NULL, locked_at = NULL WHERE id = $1`, id); err != nil {
		return fmt.Errorf("complete job %s: %w", id, err)
	}
	return nil
}

// FailJob records the error and returns the job to pending with a short
// backoff so another worker can retry it.
func (s *Store) FailJob(ctx context.Context, id uuid.UUID, lastError string) error {
	if _, err := s.pool.Exec(ctx,
		`UPDATE job_queue
		 SET status = 'pending', locked_by = NULL, locked_at = NULL,
		     last_error = $2, run_at = now() + interval '30 seconds'
		 WHERE id = $1`, id, lastError); err != nil {
		return fmt.Errorf("fail job %s: %w", id, err)
	}
	return nil
}

// RecoverStaleJobs resets jobs stuck in 'running' longer than threshold back
// to pending. Returns the number of jobs reclaimed.
func (s *Store) RecoverStaleJobs(ctx context.Context, threshold time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE job_queue
		 SET status = 'pending', locked_by = NULL, locked_at = NULL
		 WHERE status = 'running' AND locked_at < now() - $1::interval`,
		threshold.String())
	if err != nil {
		return 0, fmt.Errorf("recover stale jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}
