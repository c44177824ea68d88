// Package pipeline is the Pipeline Coordinator and Stage Instrumentation of
// spec.md §4.6/§4.7: it drives a claimed job through the fixed Retrieve →
// EvidencePack → Outline → Draft → Evaluate (→ Repair →) Export DAG,
// grounded on original_source/apps/orchestrator/src/researchops_orchestrator/runner.py's
// run_orchestrator and pkg/queue/executor.go's sequential chain loop.
package pipeline

import (
	"context"

	"github.com/researchops/runcore/internal/model"
	"github.com/researchops/runcore/internal/store"
)

// StageContext is the slice of run state a stage needs to do its work —
// the Go analogue of runner.py's OrchestratorState, kept intentionally
// small (the orchestrator state's identifiers and stage inputs, not a deep
// copy of every table).
type StageContext struct {
	TenantID  model.TenantID
	ProjectID model.ProjectID
	RunID     model.RunID
	Run       model.Run
}

// EvaluationDecision is the Evaluator's verdict aggregate (spec.md §4.12).
type EvaluationDecision string

const (
	DecisionContinueRewrite EvaluationDecision = "CONTINUE_REWRITE"
	DecisionStopSuccess     EvaluationDecision = "STOP_SUCCESS"
)

// StageOutcome is what a Stage hands back to the Coordinator: a summary for
// the stage_finish event payload, and — for the Evaluate stage only — the
// aggregate decision that drives the repair loop.
type StageOutcome struct {
	Summary  map[string]any
	Decision EvaluationDecision
}

// Stage is one phase of the fixed pipeline. Implementations live in
// internal/stages/*. Run receives a transaction so its row writes commit
// atomically with the Coordinator's own stage bookkeeping; event emission
// goes through the Coordinator's separate EventSink, never through tx.
type Stage interface {
	Name() string
	Run(ctx context.Context, tx store.DBTX, sc StageContext) (StageOutcome, error)
}
