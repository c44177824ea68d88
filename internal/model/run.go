package model

import (
	"encoding/json"
	"time"
)

// RunStatus is the run lifecycle state. See internal/runstate for the
// transition table that governs moves between these values.
type RunStatus string

const (
	RunStatusCreated   RunStatus = "created"
	RunStatusQueued    RunStatus = "queued"
	RunStatusRunning   RunStatus = "running"
	RunStatusBlocked   RunStatus = "blocked"
	RunStatusFailed    RunStatus = "failed"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusCanceled  RunStatus = "canceled"
)

// Run is one end-to-end execution instance tied to a project and question.
type Run struct {
	TenantID          TenantID
	ID                RunID
	ProjectID         ProjectID
	Status            RunStatus
	CurrentStage      *string
	Question          string
	OutputType        string
	ClientRequestID   *string
	LLMProvider       string
	LLMModel          string
	BudgetsJSON       json.RawMessage
	UsageJSON         json.RawMessage
	FailureReason     *string
	ErrorCode         *string
	StartedAt         *time.Time
	FinishedAt        *time.Time
	CancelRequestedAt *time.Time
	RetryCount        int
	RepairAttempts    int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsTerminal reports whether status accepts no further automatic
// transitions (it may still move on retry, for "failed").
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusSucceeded, RunStatusCanceled:
		return true
	default:
		return false
	}
}

// IsStreamTerminal reports whether an SSE stream watching this run should
// treat it as over. Unlike IsTerminal, this includes "failed" — per
// SPEC_FULL.md §12.2, a failed run's current attempt really has finished
// even though the run itself may later be retried as a fresh job.
func (s RunStatus) IsStreamTerminal() bool {
	switch s {
	case RunStatusSucceeded, RunStatusCanceled, RunStatusFailed:
		return true
	default:
		return false
	}
}
