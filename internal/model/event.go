package model

import (
	"encoding/json"
	"time"
)

// EventLevel is a coarse severity for a RunEvent.
type EventLevel string

const (
	LevelDebug EventLevel = "debug"
	LevelInfo  EventLevel = "info"
	LevelWarn  EventLevel = "warn"
	LevelError EventLevel = "error"
)

// Event type constants shared by runstate and the stage pipeline. The
// "state", "stage_start", "stage_finish" and "error" values are the ones
// the state machine and instrumentation wrapper emit directly;
// stage-specific event types (e.g. "retrieve.plan_created",
// "draft.section_completed") are free-form strings defined by each stage
// package, matching original_source's per-node event_type vocabulary.
const (
	EventTypeState       = "state"
	EventTypeStageStart  = "stage_start"
	EventTypeStageFinish = "stage_finish"
	EventTypeLog         = "log"
	EventTypeError       = "error"
	EventTypeProgress    = "progress"
)

// RunEvent is one append-only, immutable row in a run's observability log.
type RunEvent struct {
	TenantID    TenantID
	ID          EventID
	RunID       RunID
	EventNumber int64
	Timestamp   time.Time
	Stage       *string
	EventType   string
	Level       EventLevel
	Message     string
	PayloadJSON json.RawMessage
}
