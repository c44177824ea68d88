package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/researchops/runcore/internal/model"
)

// ErrNoJobsAvailable is returned by ClaimNextJob when the queue is empty.
var ErrNoJobsAvailable = errors.New("no jobs available")

// JobRepo is the Job Queue component of spec.md §4.3.
type JobRepo struct{}

func NewJobRepo() *JobRepo { return &JobRepo{} }

// EnqueueJob is idempotent: if a queued or running job already exists for
// run_id, it is returned unchanged rather than inserting a duplicate
// (spec.md §4.3, original_source job_queue.py's enqueue_run_job).
func (r *JobRepo) EnqueueJob(ctx context.Context, db DBTX, tenantID model.TenantID, runID model.RunID, jobType string) (job model.Job, isNew bool, err error) {
	existing, err := r.getNonTerminalByRun(ctx, db, tenantID, runID)
	if err == nil {
		return existing, false, nil
	}

	err = db.QueryRow(ctx, `
		INSERT INTO jobs (tenant_id, id, run_id, job_type, status, attempts)
		VALUES ($1, gen_random_uuid(), $2, $3, 'queued', 0)
		RETURNING tenant_id, id, run_id, job_type, status, attempts, last_error, created_at, updated_at
	`, tenantID, runID, jobType).Scan(
		&job.TenantID, &job.ID, &job.RunID, &job.JobType, &job.Status, &job.Attempts, &job.LastError,
		&job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return model.Job{}, false, fmt.Errorf("insert job: %w", err)
	}
	return job, true, nil
}

func (r *JobRepo) getNonTerminalByRun(ctx context.Context, db DBTX, tenantID model.TenantID, runID model.RunID) (model.Job, error) {
	var job model.Job
	err := db.QueryRow(ctx, `
		SELECT tenant_id, id, run_id, job_type, status, attempts, last_error, created_at, updated_at
		FROM jobs
		WHERE tenant_id = $1 AND run_id = $2 AND status IN ('queued', 'running')
		ORDER BY created_at DESC LIMIT 1
	`, tenantID, runID).Scan(
		&job.TenantID, &job.ID, &job.RunID, &job.JobType, &job.Status, &job.Attempts, &job.LastError,
		&job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return model.Job{}, err
	}
	return job, nil
}

// ClaimNextJob atomically claims the oldest queued job using
// SELECT ... FOR UPDATE SKIP LOCKED, grounded directly on
// pkg/queue/worker.go's claimNextSession. It opens and commits its own
// transaction, since a worker has no surrounding transaction to join.
func (r *JobRepo) ClaimNextJob(ctx context.Context, pool *pgxpool.Pool) (model.Job, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return model.Job{}, fmt.Errorf("begin claim: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var job model.Job
	err = tx.QueryRow(ctx, `
		SELECT tenant_id, id, run_id, job_type, status, attempts, last_error, created_at, updated_at
		FROM jobs
		WHERE status = 'queued'
		ORDER BY created_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`).Scan(
		&job.TenantID, &job.ID, &job.RunID, &job.JobType, &job.Status, &job.Attempts, &job.LastError,
		&job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Job{}, ErrNoJobsAvailable
		}
		return model.Job{}, fmt.Errorf("query next job: %w", err)
	}

	job.Status = model.JobStatusRunning
	job.Attempts++
	job.UpdatedAt = time.Now().UTC()
	if _, err := tx.Exec(ctx, `
		UPDATE jobs SET status = 'running', attempts = $3, updated_at = $4
		WHERE tenant_id = $1 AND id = $2
	`, job.TenantID, job.ID, job.Attempts, job.UpdatedAt); err != nil {
		return model.Job{}, fmt.Errorf("claim job: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Job{}, fmt.Errorf("commit claim: %w", err)
	}
	return job, nil
}

func (r *JobRepo) MarkSucceeded(ctx context.Context, db DBTX, tenantID model.TenantID, jobID model.JobID) error {
	_, err := db.Exec(ctx, `
		UPDATE jobs SET status = 'succeeded', updated_at = now() WHERE tenant_id = $1 AND id = $2
	`, tenantID, jobID)
	if err != nil {
		return fmt.Errorf("mark job succeeded: %w", err)
	}
	return nil
}

func (r *JobRepo) MarkFailed(ctx context.Context, db DBTX, tenantID model.TenantID, jobID model.JobID, reason string) error {
	_, err := db.Exec(ctx, `
		UPDATE jobs SET status = 'failed', last_error = $3, updated_at = now() WHERE tenant_id = $1 AND id = $2
	`, tenantID, jobID, reason)
	if err != nil {
		return fmt.Errorf("mark job failed: %w", err)
	}
	return nil
}
