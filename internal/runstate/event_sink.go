package runstate

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/researchops/runcore/internal/model"
)

// EventSink is the side channel stages and the Run Store append events
// through. Per spec.md §9's "deep session coupling" redesign flag, event
// appends are deliberately NOT part of the caller's stage transaction: each
// Emit* call opens its own short-lived write session and commits
// independently, so readers (JSON pagination, SSE) observe progress before
// the surrounding stage transaction commits.
type EventSink interface {
	Emit(ctx context.Context, tenantID model.TenantID, runID model.RunID, eventType string, level model.EventLevel, message string, stage *string, payload any) (model.RunEvent, error)
	EmitStageStart(ctx context.Context, tenantID model.TenantID, runID model.RunID, stage string, payload any) (model.RunEvent, error)
	EmitStageFinish(ctx context.Context, tenantID model.TenantID, runID model.RunID, stage string, payload any) (model.RunEvent, error)
	EmitError(ctx context.Context, tenantID model.TenantID, runID model.RunID, errorCode, reason string, stage *string, payload map[string]any) (model.RunEvent, error)
}

// PoolEventSink is the concrete EventSink backed directly by the connection
// pool (never a borrowed transaction).
type PoolEventSink struct {
	pool *pgxpool.Pool
}

func NewPoolEventSink(pool *pgxpool.Pool) *PoolEventSink {
	return &PoolEventSink{pool: pool}
}

// runLockKey derives a stable advisory-lock key from a run id so concurrent
// Emit calls for the same run serialize their event_number allocation even
// though each uses its own transaction. Without this, two concurrent
// `SELECT max(event_number)+1` appends for the same run could compute the
// same number, which the strictly-increasing invariant forbids.
func runLockKey(runID model.RunID) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(runID.String()))
	return int64(h.Sum64())
}

func (s *PoolEventSink) Emit(ctx context.Context, tenantID model.TenantID, runID model.RunID, eventType string, level model.EventLevel, message string, stage *string, payload any) (model.RunEvent, error) {
	payloadJSON, err := marshalPayload(payload)
	if err != nil {
		return model.RunEvent{}, fmt.Errorf("marshal event payload: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.RunEvent{}, fmt.Errorf("begin event append: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, runLockKey(runID)); err != nil {
		return model.RunEvent{}, fmt.Errorf("lock event sequence: %w", err)
	}

	ev := model.RunEvent{
		TenantID:    tenantID,
		RunID:       runID,
		Stage:       stage,
		EventType:   eventType,
		Level:       level,
		Message:     message,
		PayloadJSON: payloadJSON,
	}
	row := tx.QueryRow(ctx, `
		INSERT INTO run_events (tenant_id, run_id, event_number, ts, stage, event_type, level, message, payload_json)
		SELECT $1, $2, COALESCE(MAX(event_number), 0) + 1, now(), $3, $4, $5, $6, $7
		FROM run_events
		WHERE tenant_id = $1 AND run_id = $2
		RETURNING id, event_number, ts
	`, tenantID, runID, stage, eventType, string(level), message, payloadJSON)
	if err := row.Scan(&ev.ID, &ev.EventNumber, &ev.Timestamp); err != nil {
		return model.RunEvent{}, fmt.Errorf("insert run event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return model.RunEvent{}, fmt.Errorf("commit event append: %w", err)
	}
	return ev, nil
}

func (s *PoolEventSink) EmitStageStart(ctx context.Context, tenantID model.TenantID, runID model.RunID, stage string, payload any) (model.RunEvent, error) {
	if !model.ValidStages[stage] {
		return model.RunEvent{}, fmt.Errorf("invalid stage: %s", stage)
	}

	var last model.RunEvent
	var lastEventType string
	err := s.pool.QueryRow(ctx, `
		SELECT event_type FROM run_events
		WHERE tenant_id = $1 AND run_id = $2 AND stage = $3
		ORDER BY event_number DESC LIMIT 1
	`, tenantID, runID, stage).Scan(&lastEventType)
	if err == nil && lastEventType == model.EventTypeStageStart {
		// Idempotency guard (spec.md §4.5): already emitted, don't duplicate.
		// Re-fetch the full row for the caller.
		if err := s.pool.QueryRow(ctx, `
			SELECT id, run_id, event_number, ts, stage, event_type, level, message, payload_json
			FROM run_events
			WHERE tenant_id = $1 AND run_id = $2 AND stage = $3
			ORDER BY event_number DESC LIMIT 1
		`, tenantID, runID, stage).Scan(&last.ID, &last.RunID, &last.EventNumber, &last.Timestamp, &last.Stage, &last.EventType, &last.Level, &last.Message, &last.PayloadJSON); err != nil {
			return model.RunEvent{}, fmt.Errorf("reload existing stage_start: %w", err)
		}
		last.TenantID = tenantID
		return last, nil
	}

	if _, err := s.pool.Exec(ctx, `
		UPDATE runs SET current_stage = $3, updated_at = now()
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, runID, stage); err != nil {
		return model.RunEvent{}, fmt.Errorf("set current_stage: %w", err)
	}

	return s.Emit(ctx, tenantID, runID, model.EventTypeStageStart, model.LevelInfo,
		fmt.Sprintf("Starting stage: %s", stage), &stage, payload)
}

func (s *PoolEventSink) EmitStageFinish(ctx context.Context, tenantID model.TenantID, runID model.RunID, stage string, payload any) (model.RunEvent, error) {
	if !model.ValidStages[stage] {
		return model.RunEvent{}, fmt.Errorf("invalid stage: %s", stage)
	}
	return s.Emit(ctx, tenantID, runID, model.EventTypeStageFinish, model.LevelInfo,
		fmt.Sprintf("Finished stage: %s", stage), &stage, payload)
}

func (s *PoolEventSink) EmitError(ctx context.Context, tenantID model.TenantID, runID model.RunID, errorCode, reason string, stage *string, payload map[string]any) (model.RunEvent, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	payload["error_code"] = errorCode
	payload["reason"] = reason
	return s.Emit(ctx, tenantID, runID, model.EventTypeError, model.LevelError,
		fmt.Sprintf("Error: %s", reason), stage, payload)
}

func marshalPayload(payload any) (json.RawMessage, error) {
	if payload == nil {
		return json.RawMessage(`{}`), nil
	}
	if raw, ok := payload.(json.RawMessage); ok {
		if len(raw) == 0 {
			return json.RawMessage(`{}`), nil
		}
		return raw, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return b, nil
}
