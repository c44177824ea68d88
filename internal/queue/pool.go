package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/researchops/runcore/internal/store"
)

// WorkerPool owns a fixed number of Workers sharing one job queue, grounded
// on pkg/queue/pool.go's WorkerPool (minus the session cancel registry and
// orphan detector, neither of which this spec's polled cancellation model
// needs).
type WorkerPool struct {
	pool     *pgxpool.Pool
	jobs     *store.JobRepo
	executor RunExecutor
	cfg      Config

	workers  []*Worker
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	started  bool
}

func NewWorkerPool(pool *pgxpool.Pool, executor RunExecutor, cfg Config) *WorkerPool {
	return &WorkerPool{
		pool:     pool,
		jobs:     store.NewJobRepo(),
		executor: executor,
		cfg:      cfg,
		workers:  make([]*Worker, 0, cfg.WorkerCount),
		stopCh:   make(chan struct{}),
	}
}

// Start spawns the configured number of worker goroutines. Safe to call
// only once; subsequent calls are no-ops.
func (p *WorkerPool) Start(ctx context.Context) {
	if p.started {
		slog.Warn("worker pool already started, ignoring duplicate Start call")
		return
	}
	p.started = true

	slog.Info("starting worker pool", "worker_count", p.cfg.WorkerCount)
	for i := 0; i < p.cfg.WorkerCount; i++ {
		worker := NewWorker(fmt.Sprintf("worker-%d", i), p.pool, p.jobs, p.executor, p.cfg)
		p.workers = append(p.workers, worker)
		worker.Start(ctx)
	}
}

// Stop signals every worker to finish its current job and exit, then
// blocks until they all have.
func (p *WorkerPool) Stop() {
	slog.Info("stopping worker pool gracefully")
	for _, w := range p.workers {
		w.Stop()
	}
	p.stopOnce.Do(func() { close(p.stopCh) })
	slog.Info("worker pool stopped")
}

// Health aggregates every worker's current status.
func (p *WorkerPool) Health() PoolHealth {
	stats := make([]WorkerHealth, len(p.workers))
	active := 0
	for i, w := range p.workers {
		stats[i] = w.Health()
		if stats[i].Status == WorkerStatusWorking {
			active++
		}
	}
	return PoolHealth{
		IsHealthy:     len(p.workers) > 0,
		ActiveWorkers: active,
		TotalWorkers:  len(p.workers),
		WorkerStats:   stats,
	}
}
