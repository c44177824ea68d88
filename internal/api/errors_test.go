package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/researchops/runcore/internal/runstate"
)

func TestWriteServiceError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name     string
		err      error
		wantCode int
		wantErr  string
	}{
		{
			name:     "run not found maps to 404",
			err:      &runstate.RunNotFoundError{RunID: "abc"},
			wantCode: http.StatusNotFound,
			wantErr:  "not_found",
		},
		{
			name:     "illegal transition maps to 400",
			err:      &runstate.IllegalTransitionError{From: "succeeded", To: "running"},
			wantCode: http.StatusBadRequest,
			wantErr:  "illegal_transition",
		},
		{
			name:     "retry not allowed maps to 400",
			err:      &runstate.RetryNotAllowedError{Status: "queued"},
			wantCode: http.StatusBadRequest,
			wantErr:  "illegal_transition",
		},
		{
			name:     "unrecognized error maps to 500",
			err:      errors.New("boom"),
			wantCode: http.StatusInternalServerError,
			wantErr:  "worker_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)

			writeServiceError(c, tt.err)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantErr)
		})
	}
}
