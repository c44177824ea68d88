package sse

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/researchops/runcore/internal/model"
)

func TestWriteEvent(t *testing.T) {
	t.Run("writes the bit-exact SSE frame", func(t *testing.T) {
		rec := httptest.NewRecorder()
		stage := model.StageRetrieve
		ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		ev := model.RunEvent{
			EventNumber: 7,
			Timestamp:   ts,
			Level:       model.LevelInfo,
			Stage:       &stage,
			EventType:   model.EventTypeStageStart,
			Message:     "starting retrieve",
			PayloadJSON: json.RawMessage(`{"k":"v"}`),
		}

		require.NoError(t, writeEvent(rec, ev))

		body := rec.Body.String()
		assert.Contains(t, body, "id: 7\n")
		assert.Contains(t, body, "event: run_event\n")
		assert.Contains(t, body, `"id":7`)
		assert.Contains(t, body, `"event_type":"`+model.EventTypeStageStart+`"`)
		assert.Contains(t, body, `"message":"starting retrieve"`)
		assert.True(t, len(body) >= 2 && body[len(body)-2:] == "\n\n")
	})

	t.Run("downgrades debug level to info on the wire", func(t *testing.T) {
		rec := httptest.NewRecorder()
		ev := model.RunEvent{
			EventNumber: 1,
			Timestamp:   time.Now(),
			Level:       model.LevelDebug,
			EventType:   model.EventTypeState,
			Message:     "debug detail",
		}
		require.NoError(t, writeEvent(rec, ev))
		assert.Contains(t, rec.Body.String(), `"level":"info"`)
	})

	t.Run("nil stage is rendered as JSON null, not as a string", func(t *testing.T) {
		rec := httptest.NewRecorder()
		ev := model.RunEvent{
			EventNumber: 2,
			Timestamp:   time.Now(),
			Level:       model.LevelInfo,
			EventType:   model.EventTypeState,
			Message:     "no stage here",
		}
		require.NoError(t, writeEvent(rec, ev))
		assert.Contains(t, rec.Body.String(), `"stage":null`)
	})
}
