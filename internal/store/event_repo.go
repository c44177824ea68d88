package store

import (
	"context"
	"fmt"

	"github.com/researchops/runcore/internal/model"
)

// EventRepo is the Event Log's reader half (spec.md §4.5); the writer half
// lives in internal/runstate's EventSink.
type EventRepo struct{}

func NewEventRepo() *EventRepo { return &EventRepo{} }

// ListRunEvents returns events ordered by event_number ascending, optionally
// resuming after a given event number (JSON pagination and SSE replay both
// use this).
func (r *EventRepo) ListRunEvents(ctx context.Context, db DBTX, tenantID model.TenantID, runID model.RunID, afterEventNumber int64, limit int) ([]model.RunEvent, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := db.Query(ctx, `
		SELECT tenant_id, id, run_id, event_number, ts, stage, event_type, level, message, payload_json
		FROM run_events
		WHERE tenant_id = $1 AND run_id = $2 AND event_number > $3
		ORDER BY event_number ASC
		LIMIT $4
	`, tenantID, runID, afterEventNumber, limit)
	if err != nil {
		return nil, fmt.Errorf("list run events: %w", err)
	}
	defer rows.Close()

	var events []model.RunEvent
	for rows.Next() {
		var ev model.RunEvent
		if err := rows.Scan(&ev.TenantID, &ev.ID, &ev.RunID, &ev.EventNumber, &ev.Timestamp,
			&ev.Stage, &ev.EventType, &ev.Level, &ev.Message, &ev.PayloadJSON); err != nil {
			return nil, fmt.Errorf("scan run event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run events: %w", err)
	}
	return events, nil
}
