package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/researchops/runcore/internal/model"
	"github.com/researchops/runcore/internal/runstate"
	"github.com/researchops/runcore/internal/store"
)

// Coordinator implements queue.RunExecutor, driving one claimed job through
// the fixed stage DAG described in spec.md §4.7. It is the Go shape of
// runner.py's run_orchestrator, generalized from a single LangGraph
// invocation to a sequential loop over explicit Stage implementations.
type Coordinator struct {
	pool     *pgxpool.Pool
	runStore *runstate.RunStore
	sink     runstate.EventSink
	runs     *store.RunRepo
	stages   map[string]Stage
}

func NewCoordinator(pool *pgxpool.Pool, runStore *runstate.RunStore, sink runstate.EventSink, stages map[string]Stage) *Coordinator {
	return &Coordinator{
		pool:     pool,
		runStore: runStore,
		sink:     sink,
		runs:     store.NewRunRepo(),
		stages:   stages,
	}
}

// Execute runs job.RunID through Retrieve, EvidencePack, Outline, Draft,
// and Evaluate, detouring into Repair at most once when Evaluate returns
// CONTINUE_REWRITE, then Export. It returns nil only once the run has been
// transitioned to succeeded or canceled. A stage error, a missing stage or
// an evaluation failure transitions the run to failed and returns the
// causing error to the worker; an error loading the run, moving it to
// running or checking for cancellation is returned without a transition.
func (c *Coordinator) Execute(ctx context.Context, job model.Job) error {
	tenantID, runID := job.TenantID, job.RunID

	run, err := c.runs.Get(ctx, c.pool, tenantID, runID)
	if err != nil {
		return err
	}

	if err := c.transitionToRunning(ctx, tenantID, runID); err != nil {
		return err
	}

	sc := StageContext{TenantID: tenantID, ProjectID: run.ProjectID, RunID: runID, Run: run}
	repairAttempted := run.RepairAttempts > 0

	stageNames := model.StageOrder
	i := 0
	lastStage := model.StageRetrieve
	for i < len(stageNames) {
		stageName := stageNames[i]

		canceled, err := c.checkCancellation(ctx, tenantID, runID, lastStage)
		if err != nil {
			return err
		}
		if canceled {
			return nil
		}

		stage, ok := c.stages[stageName]
		if !ok {
			return c.failRun(ctx, tenantID, runID, "worker_error", errUnknownStage(stageName))
		}

		sc.Run, err = c.runs.Get(ctx, c.pool, tenantID, runID)
		if err != nil {
			return err
		}

		outcome, err := runInstrumented(ctx, c.pool, c.sink, stageName, sc, stage)
		if err != nil {
			return c.failRun(ctx, tenantID, runID, "worker_error", err)
		}
		lastStage = stageName

		if stageName == model.StageEvaluate && outcome.Decision == DecisionContinueRewrite {
			if repairAttempted {
				return c.failRun(ctx, tenantID, runID, "evaluation_failed", errEvaluationFailed)
			}
			repairAttempted = true

			repairStage, ok := c.stages[model.StageRepair]
			if !ok {
				return c.failRun(ctx, tenantID, runID, "worker_error", errUnknownStage(model.StageRepair))
			}
			sc.Run, err = c.runs.Get(ctx, c.pool, tenantID, runID)
			if err != nil {
				return err
			}
			if _, err := runInstrumented(ctx, c.pool, c.sink, model.StageRepair, sc, repairStage); err != nil {
				return c.failRun(ctx, tenantID, runID, "worker_error", err)
			}
			lastStage = model.StageRepair
			continue // re-run Evaluate without advancing i
		}

		i++
	}

	return c.succeedRun(ctx, tenantID, runID)
}

func (c *Coordinator) transitionToRunning(ctx context.Context, tenantID model.TenantID, runID model.RunID) error {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	stage := model.StageRetrieve
	now := time.Now().UTC()
	if _, err := c.runStore.TransitionRunStatus(ctx, tx, tenantID, runID, model.RunStatusRunning, runstate.TransitionOptions{
		Stage: &stage, StartedAt: &now,
	}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// checkCancellation implements the Cancellation Gate check the Coordinator
// makes before every stage (spec.md §4.4/§4.7). lastStage is the stage to
// attach the body-less stage_finish to when a cancellation is observed.
func (c *Coordinator) checkCancellation(ctx context.Context, tenantID model.TenantID, runID model.RunID, lastStage string) (bool, error) {
	requested, err := runstate.CheckCancelRequested(ctx, c.pool, tenantID, runID)
	if err != nil {
		return false, err
	}
	if !requested {
		return false, nil
	}

	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now().UTC()
	if _, err := c.runStore.TransitionRunStatus(ctx, tx, tenantID, runID, model.RunStatusCanceled, runstate.TransitionOptions{
		FinishedAt: &now,
	}); err != nil {
		var illegal *runstate.IllegalTransitionError
		if errors.As(err, &illegal) {
			// Already terminal by the time we got here; nothing left to do.
			return true, nil
		}
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}

	emitCancelStageFinish(ctx, c.sink, tenantID, runID, lastStage)
	return true, nil
}

func (c *Coordinator) failRun(ctx context.Context, tenantID model.TenantID, runID model.RunID, errorCode string, cause error) error {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return cause
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now().UTC()
	reason := cause.Error()
	if _, err := c.runStore.TransitionRunStatus(ctx, tx, tenantID, runID, model.RunStatusFailed, runstate.TransitionOptions{
		FailureReason: &reason, ErrorCode: &errorCode, FinishedAt: &now,
	}); err != nil {
		return cause
	}
	if err := tx.Commit(ctx); err != nil {
		return cause
	}
	return cause
}

func (c *Coordinator) succeedRun(ctx context.Context, tenantID model.TenantID, runID model.RunID) error {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now().UTC()
	stage := model.StageExport
	if _, err := c.runStore.TransitionRunStatus(ctx, tx, tenantID, runID, model.RunStatusSucceeded, runstate.TransitionOptions{
		Stage: &stage, FinishedAt: &now,
	}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
