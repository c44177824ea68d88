// Package sse implements the long-poll Server-Sent-Events streamer behind
// GET /runs/{id}/events (spec.md §4.15), grounded on
// original_source/.../routes/runs.py's `_gen`/`_event_to_sse` poll loop and
// on madhatter5501-Factory/internal/web/sse.go's flusher-based writer idiom.
// The streamer never subscribes to anything: it polls the Event Log on a
// fixed timer, exactly like the source it was distilled from, so there is
// no pub/sub layer to keep consistent with the database.
package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/researchops/runcore/internal/model"
	"github.com/researchops/runcore/internal/store"
)

const (
	pollInterval        = 500 * time.Millisecond
	keepaliveEveryPolls = 10
	gracePollsAfterDone = 2
	pollLimit           = 200
)

// Streamer drives one client's event-stream connection. It holds no
// per-client state across connections — Last-Event-ID/after_id fully
// determines where a reconnect resumes from.
type Streamer struct {
	Pool   store.DBTX
	Events *store.EventRepo
	Runs   *store.RunRepo
}

func New(pool store.DBTX) *Streamer {
	return &Streamer{
		Pool:   pool,
		Events: store.NewEventRepo(),
		Runs:   store.NewRunRepo(),
	}
}

// eventPayload is the bit-exact wire shape from spec.md §6.2.
type eventPayload struct {
	ID        int64           `json:"id"`
	Timestamp time.Time       `json:"ts"`
	Level     string          `json:"level"`
	Stage     *string         `json:"stage"`
	EventType string          `json:"event_type"`
	Message   string          `json:"message"`
	Payload   json.RawMessage `json:"payload"`
}

// Stream writes the SSE response body to w until the run reaches a terminal
// state and the grace window elapses, or the request context is canceled
// (client disconnect). w must implement http.Flusher; callers using gin
// pass c.Writer, which does.
func (s *Streamer) Stream(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, tenantID model.TenantID, runID model.RunID, lastSeen int64) error {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	pollsSinceTerminal := 0
	keepaliveCounter := 0

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		events, err := s.Events.ListRunEvents(ctx, s.Pool, tenantID, runID, lastSeen, pollLimit)
		if err != nil {
			return fmt.Errorf("poll run events: %w", err)
		}
		for _, ev := range events {
			if err := writeEvent(w, ev); err != nil {
				return err
			}
			lastSeen = ev.EventNumber
		}
		flusher.Flush()

		run, err := s.Runs.Get(ctx, s.Pool, tenantID, runID)
		if err != nil {
			return fmt.Errorf("get run: %w", err)
		}

		if run.Status.IsStreamTerminal() {
			if len(events) == 0 {
				pollsSinceTerminal++
				if pollsSinceTerminal >= gracePollsAfterDone {
					_, _ = fmt.Fprint(w, ": stream complete\n\n")
					flusher.Flush()
					return nil
				}
			} else {
				pollsSinceTerminal = 0
			}
			keepaliveCounter = 0
			continue
		}

		pollsSinceTerminal = 0
		if len(events) == 0 {
			keepaliveCounter++
			if keepaliveCounter >= keepaliveEveryPolls {
				_, _ = fmt.Fprint(w, ": keepalive\n\n")
				flusher.Flush()
				keepaliveCounter = 0
			}
		} else {
			keepaliveCounter = 0
		}
	}
}

func writeEvent(w http.ResponseWriter, ev model.RunEvent) error {
	level := string(ev.Level)
	if level == string(model.LevelDebug) {
		level = string(model.LevelInfo)
	}
	data := eventPayload{
		ID:        ev.EventNumber,
		Timestamp: ev.Timestamp,
		Level:     level,
		Stage:     ev.Stage,
		EventType: ev.EventType,
		Message:   ev.Message,
		Payload:   ev.PayloadJSON,
	}
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal sse event: %w", err)
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: run_event\ndata: %s\n\n", ev.EventNumber, body)
	return err
}
