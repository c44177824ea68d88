package queue

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/researchops/runcore/internal/store"
)

// Worker polls the job table for one pending job at a time, hands it to the
// executor, and records the terminal job status. Grounded directly on
// pkg/queue/worker.go's run/pollAndProcess/claimNextSession shape.
type Worker struct {
	id       string
	pool     *pgxpool.Pool
	jobs     *store.JobRepo
	executor RunExecutor
	cfg      Config

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu            sync.RWMutex
	status        WorkerStatus
	currentJobID  string
	jobsProcessed int
	lastActivity  time.Time
}

func NewWorker(id string, pool *pgxpool.Pool, jobs *store.JobRepo, executor RunExecutor, cfg Config) *Worker {
	return &Worker{
		id:           id,
		pool:         pool,
		jobs:         jobs,
		executor:     executor,
		cfg:          cfg,
		stopCh:       make(chan struct{}),
		status:       WorkerStatusIdle,
		lastActivity: time.Now(),
	}
}

// Start begins the worker's poll loop in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop signals the worker to stop after its current job and waits for it.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

func (w *Worker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerHealth{
		ID: w.id, Status: w.status, CurrentJobID: w.currentJobID,
		JobsProcessed: w.jobsProcessed, LastActivity: w.lastActivity,
	}
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()
	log := slog.With("worker_id", w.id)
	log.Info("worker started")

	for {
		select {
		case <-w.stopCh:
			log.Info("worker shutting down")
			return
		case <-ctx.Done():
			log.Info("context cancelled, worker shutting down")
			return
		default:
			if err := w.pollAndProcess(ctx); err != nil {
				if errors.Is(err, store.ErrNoJobsAvailable) {
					w.sleep(w.pollInterval())
					continue
				}
				log.Error("error processing job", "error", err)
				w.sleep(time.Second)
			}
		}
	}
}

func (w *Worker) sleep(d time.Duration) {
	select {
	case <-w.stopCh:
	case <-time.After(d):
	}
}

// pollAndProcess claims the next job, runs it through the executor, and
// marks the job row succeeded or failed. Run-status transitions on failure
// are the executor's responsibility (internal/pipeline.Coordinator), not
// the worker's: the worker only tracks the queue row.
func (w *Worker) pollAndProcess(ctx context.Context) error {
	job, err := w.jobs.ClaimNextJob(ctx, w.pool)
	if err != nil {
		return err
	}

	log := slog.With("job_id", job.ID, "run_id", job.RunID, "worker_id", w.id)
	log.Info("job claimed")
	w.setStatus(WorkerStatusWorking, job.ID.String())
	defer w.setStatus(WorkerStatusIdle, "")

	execErr := w.executor.Execute(ctx, job)

	if execErr != nil {
		log.Error("job execution failed", "error", execErr)
		if err := w.jobs.MarkFailed(context.Background(), w.pool, job.TenantID, job.ID, execErr.Error()); err != nil {
			log.Error("failed to mark job failed", "error", err)
		}
	} else {
		if err := w.jobs.MarkSucceeded(context.Background(), w.pool, job.TenantID, job.ID); err != nil {
			log.Error("failed to mark job succeeded", "error", err)
		}
	}

	w.mu.Lock()
	w.jobsProcessed++
	w.mu.Unlock()

	log.Info("job processing complete", "ok", execErr == nil)
	return nil
}

// pollInterval returns the configured poll duration with jitter, grounded
// on pkg/queue/worker.go's pollInterval.
func (w *Worker) pollInterval() time.Duration {
	base := w.cfg.PollInterval
	jitter := w.cfg.PollIntervalJitter
	if jitter <= 0 {
		return base
	}
	offset := time.Duration(rand.Int64N(int64(2 * jitter)))
	return base - jitter + offset
}

func (w *Worker) setStatus(status WorkerStatus, jobID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
	w.currentJobID = jobID
	w.lastActivity = time.Now()
}
