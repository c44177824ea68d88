package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/researchops/runcore/internal/model"
	"github.com/researchops/runcore/internal/runstate"
)

// runInstrumented is the Stage Instrumentation wrapper of spec.md §4.6:
// emit stage_start, run the stage inside its own transaction, emit
// stage_finish with a duration on success or an error event on failure.
// Event emission always goes through sink (its own connection), never tx,
// per the EventSink/stage-transaction split decided in internal/runstate.
func runInstrumented(ctx context.Context, pool *pgxpool.Pool, sink runstate.EventSink, stageName string, sc StageContext, stage Stage) (StageOutcome, error) {
	if _, err := sink.EmitStageStart(ctx, sc.TenantID, sc.RunID, stageName, nil); err != nil {
		return StageOutcome{}, fmt.Errorf("emit stage_start for %s: %w", stageName, err)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return StageOutcome{}, fmt.Errorf("begin stage %s transaction: %w", stageName, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	start := time.Now()
	outcome, err := stage.Run(ctx, tx, sc)
	if err != nil {
		_ = tx.Rollback(ctx)
		if _, emitErr := sink.EmitError(ctx, sc.TenantID, sc.RunID, "stage_error", err.Error(), &stageName, nil); emitErr != nil {
			slog.Error("failed to emit stage error event", "stage", stageName, "run_id", sc.RunID, "error", emitErr)
		}
		return StageOutcome{}, fmt.Errorf("stage %s: %w", stageName, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return StageOutcome{}, fmt.Errorf("commit stage %s: %w", stageName, err)
	}

	summary := outcome.Summary
	if summary == nil {
		summary = map[string]any{}
	}
	summary["duration_ms"] = time.Since(start).Milliseconds()
	if _, err := sink.EmitStageFinish(ctx, sc.TenantID, sc.RunID, stageName, summary); err != nil {
		slog.Error("failed to emit stage_finish event", "stage", stageName, "run_id", sc.RunID, "error", err)
	}

	return outcome, nil
}

// emitCancelStageFinish closes out the current stage's event trail with a
// body-less stage_finish when the Coordinator observes a cancellation
// request at a stage boundary (spec.md §4.4's "emits stage_finish for the
// current stage (no body)").
func emitCancelStageFinish(ctx context.Context, sink runstate.EventSink, tenantID model.TenantID, runID model.RunID, stage string) {
	if _, err := sink.EmitStageFinish(ctx, tenantID, runID, stage, nil); err != nil {
		slog.Error("failed to emit cancellation stage_finish", "stage", stage, "run_id", runID, "error", err)
	}
}
