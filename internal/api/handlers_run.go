package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/researchops/runcore/internal/model"
	"github.com/researchops/runcore/internal/runstate"
	"github.com/researchops/runcore/internal/store"
)

// runResponse is the JSON snapshot shape for GET /runs/{id} and the
// create-run response, grounded on original_source's routes/runs.py
// WebRunOut — same field set, Go-cased.
type runResponse struct {
	ID                string          `json:"id"`
	TenantID          string          `json:"tenant_id"`
	ProjectID         string          `json:"project_id"`
	Status            string          `json:"status"`
	CurrentStage      *string         `json:"current_stage,omitempty"`
	Question          string          `json:"question"`
	OutputType        string          `json:"output_type"`
	ClientRequestID   *string         `json:"client_request_id,omitempty"`
	FailureReason     *string         `json:"failure_reason,omitempty"`
	ErrorCode         *string         `json:"error_code,omitempty"`
	StartedAt         *time.Time      `json:"started_at,omitempty"`
	FinishedAt        *time.Time      `json:"finished_at,omitempty"`
	CancelRequestedAt *time.Time      `json:"cancel_requested_at,omitempty"`
	RetryCount        int             `json:"retry_count"`
	RepairAttempts    int             `json:"repair_attempts"`
	Budgets           json.RawMessage `json:"budgets"`
	Usage             json.RawMessage `json:"usage"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func toRunResponse(run model.Run) runResponse {
	return runResponse{
		ID:                run.ID.String(),
		TenantID:          run.TenantID.String(),
		ProjectID:         run.ProjectID.String(),
		Status:            string(run.Status),
		CurrentStage:      run.CurrentStage,
		Question:          run.Question,
		OutputType:        run.OutputType,
		ClientRequestID:   run.ClientRequestID,
		FailureReason:     run.FailureReason,
		ErrorCode:         run.ErrorCode,
		StartedAt:         run.StartedAt,
		FinishedAt:        run.FinishedAt,
		CancelRequestedAt: run.CancelRequestedAt,
		RetryCount:        run.RetryCount,
		RepairAttempts:    run.RepairAttempts,
		Budgets:           run.BudgetsJSON,
		Usage:             run.UsageJSON,
		CreatedAt:         run.CreatedAt,
		UpdatedAt:         run.UpdatedAt,
	}
}

// createRunRequest is the body of POST /projects/{project_id}/runs, per
// spec.md §6.1.
type createRunRequest struct {
	Question        string          `json:"question"`
	OutputType      string          `json:"output_type"`
	ClientRequestID *string         `json:"client_request_id,omitempty"`
	LLMProvider     string          `json:"llm_provider,omitempty"`
	LLMModel        string          `json:"llm_model,omitempty"`
	BudgetOverride  json.RawMessage `json:"budget_override,omitempty"`
}

// CreateRun handles POST /projects/{project_id}/runs: insert a Run in
// status "created", immediately transition it to "queued", and enqueue its
// worker job, all in one transaction so a reader can never observe a
// created-but-unqueued run (spec.md §6.1, testable property S1).
func (s *Server) CreateRun(c *gin.Context) {
	tenantID, ok := tenantFromRequest(c)
	if !ok {
		return
	}
	projectID, ok := uuidParam(c, "project_id")
	if !ok {
		return
	}

	var req createRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_error", "message": err.Error()})
		return
	}
	if req.Question == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_error", "message": "question is required"})
		return
	}
	if req.OutputType == "" {
		req.OutputType = "report"
	}

	ctx := c.Request.Context()
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	llmProvider := req.LLMProvider
	if llmProvider == "" {
		llmProvider = "hosted"
	}
	run, isNew, err := s.runs.CreateRun(ctx, tx, store.NewRunInput{
		TenantID:        tenantID,
		ProjectID:       projectID,
		Question:        req.Question,
		OutputType:      req.OutputType,
		ClientRequestID: req.ClientRequestID,
		LLMProvider:     llmProvider,
		LLMModel:        req.LLMModel,
		BudgetsJSON:     req.BudgetOverride,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}

	if !isNew {
		if req.ClientRequestID != nil && run.Question != req.Question {
			c.JSON(http.StatusConflict, gin.H{"error": "conflict", "message": "client_request_id already used for a different question"})
			return
		}
		c.JSON(http.StatusOK, toRunResponse(run))
		return
	}

	runStore := runstate.NewRunStore(s.sink)
	// TransitionRunStatus itself touches the owning Project's last_run_*
	// fields (spec.md §4.2 step 5), so no separate TouchFromRun call is
	// needed here.
	queued, err := runStore.TransitionRunStatus(ctx, tx, tenantID, run.ID, model.RunStatusQueued, runstate.TransitionOptions{})
	if err != nil {
		writeServiceError(c, err)
		return
	}

	if _, _, err := s.jobs.EnqueueJob(ctx, tx, tenantID, run.ID, model.ResearchJobType); err != nil {
		writeServiceError(c, err)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, toRunResponse(queued))
}

// GetRun handles GET /runs/{id}.
func (s *Server) GetRun(c *gin.Context) {
	tenantID, ok := tenantFromRequest(c)
	if !ok {
		return
	}
	runID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	run, err := s.runs.Get(c.Request.Context(), s.pool, tenantID, runID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "run not found"})
		return
	}
	c.JSON(http.StatusOK, toRunResponse(run))
}

// GetEvents handles GET /runs/{id}/events, dispatching on Accept the way
// spec.md §4.15 requires.
func (s *Server) GetEvents(c *gin.Context) {
	tenantID, ok := tenantFromRequest(c)
	if !ok {
		return
	}
	runID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	afterID := int64(0)
	if raw := c.Query("after_id"); raw != "" {
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
			afterID = v
		}
	}
	if raw := c.GetHeader("Last-Event-ID"); raw != "" {
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
			afterID = v
		}
	}

	if c.GetHeader("Accept") == "text/event-stream" {
		flusher, ok := c.Writer.(http.Flusher)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "worker_error", "message": "streaming unsupported"})
			return
		}
		c.Status(http.StatusOK)
		if err := s.streamer.Stream(c.Request.Context(), c.Writer, flusher, tenantID, runID, afterID); err != nil {
			// Headers are already committed once streaming has begun; the
			// best this handler can do is stop, matching the original
			// _gen generator's behavior on a write failure.
			return
		}
		return
	}

	events, err := s.events.ListRunEvents(c.Request.Context(), s.pool, tenantID, runID, afterID, 1000)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

// CancelRun handles POST /runs/{id}/cancel. Idempotent on terminal runs
// (spec.md testable property 10).
func (s *Server) CancelRun(c *gin.Context) {
	tenantID, ok := tenantFromRequest(c)
	if !ok {
		return
	}
	runID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	runStore := runstate.NewRunStore(s.sink)
	run, err := runStore.RequestCancel(ctx, tx, tenantID, runID, false)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRunResponse(run))
}

// RetryRun handles POST /runs/{id}/retry.
func (s *Server) RetryRun(c *gin.Context) {
	tenantID, ok := tenantFromRequest(c)
	if !ok {
		return
	}
	runID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	runStore := runstate.NewRunStore(s.sink)
	run, err := runStore.RetryRun(ctx, tx, tenantID, runID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if _, _, err := s.jobs.EnqueueJob(ctx, tx, tenantID, run.ID, model.ResearchJobType); err != nil {
		writeServiceError(c, err)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRunResponse(run))
}

// ListArtifacts handles GET /runs/{id}/artifacts.
func (s *Server) ListArtifacts(c *gin.Context) {
	tenantID, ok := tenantFromRequest(c)
	if !ok {
		return
	}
	runID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	artifacts, err := s.artifacts.ListForRun(c.Request.Context(), s.pool, tenantID, runID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, artifacts)
}
