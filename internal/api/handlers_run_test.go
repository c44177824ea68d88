package api

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/researchops/runcore/internal/model"
)

func TestToRunResponse(t *testing.T) {
	t.Run("maps every field, including nil optionals", func(t *testing.T) {
		run := model.Run{
			TenantID:   uuid.New(),
			ID:         uuid.New(),
			ProjectID:  uuid.New(),
			Status:     model.RunStatusQueued,
			Question:   "what changed in the evidence pipeline",
			OutputType: "report",
			CreatedAt:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			UpdatedAt:  time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC),
		}

		resp := toRunResponse(run)

		assert.Equal(t, run.ID.String(), resp.ID)
		assert.Equal(t, run.TenantID.String(), resp.TenantID)
		assert.Equal(t, run.ProjectID.String(), resp.ProjectID)
		assert.Equal(t, string(model.RunStatusQueued), resp.Status)
		assert.Equal(t, run.Question, resp.Question)
		assert.Nil(t, resp.CurrentStage)
		assert.Nil(t, resp.ClientRequestID)
		assert.Nil(t, resp.StartedAt)
	})

	t.Run("carries stage and budgets through unchanged", func(t *testing.T) {
		stage := model.StageDraft
		clientReqID := "req-123"
		run := model.Run{
			ID:              uuid.New(),
			TenantID:        uuid.New(),
			ProjectID:       uuid.New(),
			Status:          model.RunStatusRunning,
			CurrentStage:    &stage,
			ClientRequestID: &clientReqID,
			BudgetsJSON:     json.RawMessage(`{"max_tokens":1000}`),
		}

		resp := toRunResponse(run)

		assert.Equal(t, &stage, resp.CurrentStage)
		assert.Equal(t, &clientReqID, resp.ClientRequestID)
		assert.JSONEq(t, `{"max_tokens":1000}`, string(resp.Budgets))
	})
}
