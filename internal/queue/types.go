// Package queue runs the claim-process-commit worker loop over the job
// table in internal/store, grounded on pkg/queue/pool.go and
// pkg/queue/worker.go. Unlike the teacher, cancellation here is cooperative
// and DB-polled (internal/runstate's cancel_requested_at flag, checked by
// the pipeline between stages) rather than context.CancelFunc-registry
// based, so the worker carries no session cancel registry.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/researchops/runcore/internal/model"
)

// ErrAtCapacity indicates the configured worker pool is already running its
// configured maximum of concurrent jobs.
var ErrAtCapacity = errors.New("at capacity")

// RunExecutor processes one claimed job end to end: running the pipeline
// for job.RunID, persisting every intermediate stage result as it goes, and
// returning only a terminal error (or nil on success). The executor owns
// transitioning the run to failed on an uncaught stage error; the worker
// only owns the job row. Implemented by internal/pipeline.Coordinator.
type RunExecutor interface {
	Execute(ctx context.Context, job model.Job) error
}

// Config configures worker pool sizing and poll cadence, grounded on
// pkg/config/queue.go's QueueConfig.
type Config struct {
	WorkerCount        int
	PollInterval       time.Duration
	PollIntervalJitter time.Duration
}

// WorkerStatus mirrors the teacher's idle/working worker health states.
type WorkerStatus string

const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusWorking WorkerStatus = "working"
)

// WorkerHealth reports one worker's current activity.
type WorkerHealth struct {
	ID            string       `json:"id"`
	Status        WorkerStatus `json:"status"`
	CurrentJobID  string       `json:"current_job_id,omitempty"`
	JobsProcessed int          `json:"jobs_processed"`
	LastActivity  time.Time    `json:"last_activity"`
}

// PoolHealth reports the whole pool's status, grounded on
// pkg/queue/pool.go's PoolHealth.
type PoolHealth struct {
	IsHealthy     bool           `json:"is_healthy"`
	ActiveWorkers int            `json:"active_workers"`
	TotalWorkers  int            `json:"total_workers"`
	WorkerStats   []WorkerHealth `json:"worker_stats"`
}
