package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/researchops/runcore/internal/model"
)

// RunRepo covers Run creation and plain reads. Transitions (and the
// row-locked mutation path) live in internal/runstate, which owns the
// state-machine invariant.
type RunRepo struct{}

func NewRunRepo() *RunRepo { return &RunRepo{} }

// NewRunInput is the caller-supplied half of a Run row; the rest (id,
// status, timestamps) is assigned by CreateRun.
type NewRunInput struct {
	TenantID        model.TenantID
	ProjectID       model.ProjectID
	Question        string
	OutputType      string
	ClientRequestID *string
	LLMProvider     string
	LLMModel        string
	BudgetsJSON     json.RawMessage
}

// CreateRun inserts a new Run in status "created", or — when
// ClientRequestID is set and a run with that (tenant, project,
// client_request_id) already exists — returns the existing row instead
// (spec.md §6.1's "200 on new or idempotent-replay" contract).
func (r *RunRepo) CreateRun(ctx context.Context, db DBTX, in NewRunInput) (model.Run, bool, error) {
	if in.ClientRequestID != nil {
		existing, err := r.getByClientRequestID(ctx, db, in.TenantID, in.ProjectID, *in.ClientRequestID)
		if err == nil {
			return existing, false, nil
		}
	}

	budgets := in.BudgetsJSON
	if len(budgets) == 0 {
		budgets = json.RawMessage(`{}`)
	}

	var run model.Run
	err := db.QueryRow(ctx, `
		INSERT INTO runs (
			tenant_id, id, project_id, status, question, output_type, client_request_id,
			llm_provider, llm_model, budgets_json, usage_json
		) VALUES ($1, gen_random_uuid(), $2, 'created', $3, $4, $5, $6, $7, $8, '{}')
		RETURNING tenant_id, id, project_id, status, current_stage, question, output_type,
			client_request_id, llm_provider, llm_model, budgets_json, usage_json,
			failure_reason, error_code, started_at, finished_at, cancel_requested_at,
			retry_count, repair_attempts, created_at, updated_at
	`, in.TenantID, in.ProjectID, in.Question, in.OutputType, in.ClientRequestID,
		in.LLMProvider, in.LLMModel, budgets).Scan(
		&run.TenantID, &run.ID, &run.ProjectID, &run.Status, &run.CurrentStage, &run.Question,
		&run.OutputType, &run.ClientRequestID, &run.LLMProvider, &run.LLMModel, &run.BudgetsJSON,
		&run.UsageJSON, &run.FailureReason, &run.ErrorCode, &run.StartedAt, &run.FinishedAt,
		&run.CancelRequestedAt, &run.RetryCount, &run.RepairAttempts, &run.CreatedAt, &run.UpdatedAt,
	)
	if err != nil {
		return model.Run{}, false, fmt.Errorf("insert run: %w", err)
	}
	return run, true, nil
}

func (r *RunRepo) getByClientRequestID(ctx context.Context, db DBTX, tenantID model.TenantID, projectID model.ProjectID, clientRequestID string) (model.Run, error) {
	var run model.Run
	err := db.QueryRow(ctx, `
		SELECT tenant_id, id, project_id, status, current_stage, question, output_type,
			client_request_id, llm_provider, llm_model, budgets_json, usage_json,
			failure_reason, error_code, started_at, finished_at, cancel_requested_at,
			retry_count, repair_attempts, created_at, updated_at
		FROM runs WHERE tenant_id = $1 AND project_id = $2 AND client_request_id = $3
	`, tenantID, projectID, clientRequestID).Scan(
		&run.TenantID, &run.ID, &run.ProjectID, &run.Status, &run.CurrentStage, &run.Question,
		&run.OutputType, &run.ClientRequestID, &run.LLMProvider, &run.LLMModel, &run.BudgetsJSON,
		&run.UsageJSON, &run.FailureReason, &run.ErrorCode, &run.StartedAt, &run.FinishedAt,
		&run.CancelRequestedAt, &run.RetryCount, &run.RepairAttempts, &run.CreatedAt, &run.UpdatedAt,
	)
	if err != nil {
		return model.Run{}, fmt.Errorf("get run by client_request_id: %w", err)
	}
	return run, nil
}

// IncrementRepairAttempts bumps a run's repair_attempts counter, called by
// the Repair stage once it has persisted its revised sections.
func (r *RunRepo) IncrementRepairAttempts(ctx context.Context, db DBTX, tenantID model.TenantID, runID model.RunID) error {
	_, err := db.Exec(ctx, `
		UPDATE runs SET repair_attempts = repair_attempts + 1, updated_at = now()
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, runID)
	if err != nil {
		return fmt.Errorf("increment repair attempts: %w", err)
	}
	return nil
}

func (r *RunRepo) Get(ctx context.Context, db DBTX, tenantID model.TenantID, runID model.RunID) (model.Run, error) {
	var run model.Run
	err := db.QueryRow(ctx, `
		SELECT tenant_id, id, project_id, status, current_stage, question, output_type,
			client_request_id, llm_provider, llm_model, budgets_json, usage_json,
			failure_reason, error_code, started_at, finished_at, cancel_requested_at,
			retry_count, repair_attempts, created_at, updated_at
		FROM runs WHERE tenant_id = $1 AND id = $2
	`, tenantID, runID).Scan(
		&run.TenantID, &run.ID, &run.ProjectID, &run.Status, &run.CurrentStage, &run.Question,
		&run.OutputType, &run.ClientRequestID, &run.LLMProvider, &run.LLMModel, &run.BudgetsJSON,
		&run.UsageJSON, &run.FailureReason, &run.ErrorCode, &run.StartedAt, &run.FinishedAt,
		&run.CancelRequestedAt, &run.RetryCount, &run.RepairAttempts, &run.CreatedAt, &run.UpdatedAt,
	)
	if err != nil {
		return model.Run{}, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}
