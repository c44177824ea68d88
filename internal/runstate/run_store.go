package runstate

import (
	"context"
	"fmt"
	"time"

	"github.com/researchops/runcore/internal/model"
	"github.com/researchops/runcore/internal/store"
)

// TransitionOptions carries the optional fields a transition may set
// alongside the status change, mirroring original_source lifecycle.py's
// transition_run_status keyword arguments.
type TransitionOptions struct {
	Stage             *string
	FailureReason     *string
	ErrorCode         *string
	StartedAt         *time.Time
	FinishedAt        *time.Time
	CancelRequestedAt *time.Time
	// SuppressEvent skips the automatic "state" event emission, for callers
	// (like RequestCancel and RetryRun) that emit their own, more specific
	// event instead.
	SuppressEvent bool
}

// RunStore is the Run Store component of spec.md §4.2: atomic, row-locked
// run transitions, plus the cancellation-gate and retry operations that
// build on it (spec.md §4.4, §4.3's retry half).
type RunStore struct {
	sink     EventSink
	projects *store.ProjectRepo
}

func NewRunStore(sink EventSink) *RunStore {
	return &RunStore{sink: sink, projects: store.NewProjectRepo()}
}

// TransitionRunStatus locks the run row, validates the transition via the
// State Machine, applies the requested field changes, and (unless
// suppressed) emits a "state" event describing the transition. Callers
// supply tx so the row update commits atomically with any other writes
// they make in the same stage transaction (spec.md §4.2's "must be called
// inside a transaction" contract); event emission always uses the
// separate EventSink channel regardless of tx's fate.
func (s *RunStore) TransitionRunStatus(ctx context.Context, tx DBTX, tenantID model.TenantID, runID model.RunID, to model.RunStatus, opts TransitionOptions) (model.Run, error) {
	run, err := lockRun(ctx, tx, tenantID, runID)
	if err != nil {
		return model.Run{}, err
	}

	from := run.Status
	if err := ValidateTransition(from, to); err != nil {
		return model.Run{}, err
	}

	run.Status = to
	if opts.Stage != nil {
		run.CurrentStage = opts.Stage
	}
	if opts.FailureReason != nil {
		run.FailureReason = opts.FailureReason
	}
	if opts.ErrorCode != nil {
		run.ErrorCode = opts.ErrorCode
	}
	if opts.StartedAt != nil {
		run.StartedAt = opts.StartedAt
	}
	if opts.FinishedAt != nil {
		run.FinishedAt = opts.FinishedAt
	}
	if opts.CancelRequestedAt != nil {
		run.CancelRequestedAt = opts.CancelRequestedAt
	}
	run.UpdatedAt = time.Now().UTC()

	if _, err := tx.Exec(ctx, `
		UPDATE runs SET
			status = $3, current_stage = $4, failure_reason = $5, error_code = $6,
			started_at = $7, finished_at = $8, cancel_requested_at = $9, updated_at = $10
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, runID, run.Status, run.CurrentStage, run.FailureReason, run.ErrorCode,
		run.StartedAt, run.FinishedAt, run.CancelRequestedAt, run.UpdatedAt); err != nil {
		return model.Run{}, fmt.Errorf("update run status: %w", err)
	}

	// spec.md §4.2 step 5 / §3: every transition touches the owning
	// Project's last_run_id/last_run_status/last_activity_at, mirroring
	// truth.py's _touch_project_from_run being called on every run mutation.
	if err := s.projects.TouchFromRun(ctx, tx, tenantID, run.ProjectID, runID, run.Status); err != nil {
		return model.Run{}, err
	}

	if !opts.SuppressEvent {
		if _, err := s.sink.Emit(ctx, tenantID, runID, model.EventTypeState, model.LevelInfo,
			fmt.Sprintf("Run transitioned: %s -> %s", from, to), opts.Stage,
			map[string]any{"from_status": string(from), "to_status": string(to)}); err != nil {
			return model.Run{}, fmt.Errorf("emit state event: %w", err)
		}
	}

	return run, nil
}

// CheckCancelRequested is a pure read of cancel_requested_at (spec.md §4.4).
// It accepts any DBTX so the Coordinator can call it outside a transaction
// using the bare pool.
func CheckCancelRequested(ctx context.Context, db DBTX, tenantID model.TenantID, runID model.RunID) (bool, error) {
	var cancelRequestedAt *time.Time
	err := db.QueryRow(ctx, `
		SELECT cancel_requested_at FROM runs WHERE tenant_id = $1 AND id = $2
	`, tenantID, runID).Scan(&cancelRequestedAt)
	if err != nil {
		return false, fmt.Errorf("check cancel requested: %w", err)
	}
	return cancelRequestedAt != nil, nil
}

// RequestCancel sets cancel_requested_at and emits a "Cancel requested"
// state event. Terminal runs are a no-op (spec.md testable property 10). A
// queued run, or any run with forceImmediate set, is canceled immediately;
// otherwise the flag is left for the Coordinator to observe cooperatively
// at the next stage boundary (spec.md §4.4).
func (s *RunStore) RequestCancel(ctx context.Context, tx DBTX, tenantID model.TenantID, runID model.RunID, forceImmediate bool) (model.Run, error) {
	run, err := lockRun(ctx, tx, tenantID, runID)
	if err != nil {
		return model.Run{}, err
	}
	if TerminalStates[run.Status] {
		return run, nil
	}

	now := time.Now().UTC()
	run.CancelRequestedAt = &now
	run.UpdatedAt = now
	if _, err := tx.Exec(ctx, `
		UPDATE runs SET cancel_requested_at = $3, updated_at = $4
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, runID, run.CancelRequestedAt, run.UpdatedAt); err != nil {
		return model.Run{}, fmt.Errorf("set cancel_requested_at: %w", err)
	}

	if _, err := s.sink.Emit(ctx, tenantID, runID, model.EventTypeState, model.LevelInfo,
		"Cancel requested", nil, map[string]any{"cancel_requested_at": now.Format(time.RFC3339Nano)}); err != nil {
		return model.Run{}, fmt.Errorf("emit cancel requested event: %w", err)
	}

	if forceImmediate || run.Status == model.RunStatusQueued {
		canceled, err := s.TransitionRunStatus(ctx, tx, tenantID, runID, model.RunStatusCanceled, TransitionOptions{
			FinishedAt: &now,
		})
		if err != nil {
			var illegal *IllegalTransitionError
			if !isIllegalTransition(err, &illegal) {
				return model.Run{}, err
			}
			return run, nil
		}
		return canceled, nil
	}

	return run, nil
}

// RetryRun resets a failed or blocked run to queued, clearing failure and
// cancel fields and bumping retry_count (spec.md §6.1's POST
// /runs/{id}/retry contract).
func (s *RunStore) RetryRun(ctx context.Context, tx DBTX, tenantID model.TenantID, runID model.RunID) (model.Run, error) {
	run, err := lockRun(ctx, tx, tenantID, runID)
	if err != nil {
		return model.Run{}, err
	}
	if run.Status != model.RunStatusFailed && run.Status != model.RunStatusBlocked {
		return model.Run{}, &RetryNotAllowedError{Status: string(run.Status)}
	}

	run.RetryCount++
	if _, err := tx.Exec(ctx, `
		UPDATE runs SET retry_count = $3 WHERE tenant_id = $1 AND id = $2
	`, tenantID, runID, run.RetryCount); err != nil {
		return model.Run{}, fmt.Errorf("bump retry_count: %w", err)
	}

	updated, err := s.TransitionRunStatus(ctx, tx, tenantID, runID, model.RunStatusQueued, TransitionOptions{
		SuppressEvent: true,
	})
	if err != nil {
		return model.Run{}, err
	}

	// Clear stage/failure/cancel fields for a clean retry view. Done as a
	// follow-up statement, not via TransitionOptions, because those fields
	// are nil-pointer-means-"don't touch" and can't express "set to NULL".
	if _, err := tx.Exec(ctx, `
		UPDATE runs SET current_stage = NULL, failure_reason = NULL, error_code = NULL,
			finished_at = NULL, cancel_requested_at = NULL
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, runID); err != nil {
		return model.Run{}, fmt.Errorf("clear failure fields: %w", err)
	}
	updated.CurrentStage = nil
	updated.FailureReason = nil
	updated.ErrorCode = nil
	updated.FinishedAt = nil
	updated.CancelRequestedAt = nil
	updated.RetryCount = run.RetryCount

	if _, err := s.sink.Emit(ctx, tenantID, runID, model.EventTypeState, model.LevelInfo,
		fmt.Sprintf("Retry requested (attempt #%d)", run.RetryCount), nil,
		map[string]any{"retry_count": run.RetryCount}); err != nil {
		return model.Run{}, fmt.Errorf("emit retry event: %w", err)
	}

	return updated, nil
}

func lockRun(ctx context.Context, tx DBTX, tenantID model.TenantID, runID model.RunID) (model.Run, error) {
	var run model.Run
	err := tx.QueryRow(ctx, `
		SELECT tenant_id, id, project_id, status, current_stage, question, output_type,
			client_request_id, llm_provider, llm_model, budgets_json, usage_json,
			failure_reason, error_code, started_at, finished_at, cancel_requested_at,
			retry_count, repair_attempts, created_at, updated_at
		FROM runs WHERE tenant_id = $1 AND id = $2 FOR UPDATE
	`, tenantID, runID).Scan(
		&run.TenantID, &run.ID, &run.ProjectID, &run.Status, &run.CurrentStage, &run.Question,
		&run.OutputType, &run.ClientRequestID, &run.LLMProvider, &run.LLMModel, &run.BudgetsJSON,
		&run.UsageJSON, &run.FailureReason, &run.ErrorCode, &run.StartedAt, &run.FinishedAt,
		&run.CancelRequestedAt, &run.RetryCount, &run.RepairAttempts, &run.CreatedAt, &run.UpdatedAt,
	)
	if err != nil {
		return model.Run{}, &RunNotFoundError{RunID: runID.String()}
	}
	return run, nil
}

func isIllegalTransition(err error, target **IllegalTransitionError) bool {
	if it, ok := err.(*IllegalTransitionError); ok {
		*target = it
		return true
	}
	return false
}

