// ABOUTME: Tests for the SKIP LOCKED job queue: enqueue, claim, complete,
// ABOUTME: retry on failure, and stale-job recovery.
package store_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jmadsen/coachdesk/internal/testutil"
)

func TestJobQueueLifecycle(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)
	ctx := context.Background()

	type payload struct {
		Message string `json:"message"`
	}
	if err := db.EnqueueJob(ctx, "test_queue", payload{Message: "hello"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	job, err := db.ClaimJob(ctx, "test_queue", "worker-1")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if job == nil {
		t.Fatal("claim returned no job")
	}
	var got payload
	if err := json.Unmarshal(job.Payload, &got); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if got.Message != "hello" {
		t.Errorf("payload = %+v", got)
	}
	if job.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", job.Attempts)
	}

	// A running job is not claimable by a second worker.
	second, err := db.ClaimJob(ctx, "test_queue", "worker-2")
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if second != nil {
		t.Errorf("second worker claimed a running job: %+v", second)
	}

	if err := db.CompleteJob(ctx, job.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	done, err := db.ClaimJob(ctx, "test_queue", "worker-1")
	if err != nil {
		t.Fatalf("claim after complete: %v", err)
	}
	if done != nil {
		t.Errorf("completed job was reclaimed: %+v", done)
	}
}

func TestJobQueueScopedByQueueName(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)
	ctx := context.Background()

	if err := db.EnqueueJob(ctx, "queue_a", map[string]string{"k": "v"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	job, err := db.ClaimJob(ctx, "queue_b", "worker-1")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if job != nil {
		t.Errorf("claimed a job from the wrong queue: %+v", job)
	}
}

func TestFailedJobIsRetriedAfterBackoff(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)
	ctx := context.Background()

	if err := db.EnqueueJob(ctx, "retry_queue", map[string]string{"k": "v"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	job, err := db.ClaimJob(ctx, "retry_queue", "worker-1")
	if err != nil || job == nil {
		t.Fatalf("claim: job=%v err=%v", job, err)
	}
	if err := db.FailJob(ctx, job.ID, "smtp connection refused"); err != nil {
		t.Fatalf("fail: %v", err)
	}

	// The retry backoff keeps the job out of immediate reach.
	retry, err := db.ClaimJob(ctx, "retry_queue", "worker-1")
	if err != nil {
		t.Fatalf("claim during backoff: %v", err)
	}
	if retry != nil {
		t.Errorf("job claimable before its backoff elapsed: %+v", retry)
	}

	// Collapse the backoff and confirm the retry carries the attempt count.
	if _, err := db.Pool().Exec(ctx,
		`UPDATE job_queue SET run_at = now() WHERE id = $1`, job.ID); err != nil {
		t.Fatalf("reset run_at: %v", err)
	}
	retry, err = db.ClaimJob(ctx, "retry_queue", "worker-1")
	if err != nil {
		t.Fatalf("claim after backoff: %v", err)
	}
	if retry == nil {
		t.Fatal("failed job never became claimable")
	}
	if retry.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", retry.Attempts)
	}
}

func TestRecoverStaleJobs(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)
	ctx := context.Background()

	if err := db.EnqueueJob(ctx, "stale_queue", map[string]string{"k": "v"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	job, err := db.ClaimJob(ctx, "stale_queue", "crashed-worker")
	if err != nil || job == nil {
		t.Fatalf("claim: job=%v err=%v", job, err)
	}

	// Age the lock past the threshold to simulate a worker that died mid-job.
	if _, err := db.Pool().Exec(ctx,
		`UPDATE job_queue SET locked_at = now() - interval '10 minutes' WHERE id = $1`, job.ID); err != nil {
		t.Fatalf("age lock: %v", err)
	}

	n, err := db.RecoverStaleJobs(ctx, 5*time.Minute)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if n != 1 {
		t.Errorf("recovered %d jobs, want 1", n)
	}

	reclaimed, err := db.ClaimJob(ctx, "stale_queue", "worker-2")
	if err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if reclaimed == nil || reclaimed.ID != job.ID {
		t.Errorf("reclaimed = %+v, want the recovered job", reclaimed)
	}
}
