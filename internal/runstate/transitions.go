package runstate

import "github.com/researchops/runcore/internal/model"

// AllowedTransitions mirrors original_source lifecycle.py's
// ALLOWED_TRANSITIONS table (spec.md §4.1) exactly.
var AllowedTransitions = map[model.RunStatus]map[model.RunStatus]bool{
	model.RunStatusCreated: {
		model.RunStatusQueued:   true,
		model.RunStatusCanceled: true,
	},
	model.RunStatusQueued: {
		model.RunStatusRunning:  true,
		model.RunStatusCanceled: true,
	},
	model.RunStatusRunning: {
		model.RunStatusBlocked:   true,
		model.RunStatusFailed:    true,
		model.RunStatusSucceeded: true,
		model.RunStatusCanceled:  true,
	},
	model.RunStatusBlocked: {
		model.RunStatusRunning:  true,
		model.RunStatusFailed:   true,
		model.RunStatusCanceled: true,
	},
	model.RunStatusFailed: {
		model.RunStatusQueued: true, // only via explicit retry
	},
	model.RunStatusSucceeded: {},
	model.RunStatusCanceled:  {},
}

// TerminalStates cannot transition out (failed is the one exception, via
// explicit retry only — it is intentionally absent from this set).
var TerminalStates = map[model.RunStatus]bool{
	model.RunStatusSucceeded: true,
	model.RunStatusCanceled:  true,
}

// ValidateTransition is the pure, stateless validator from spec.md §4.1. A
// same-state transition is always accepted (idempotent). No I/O.
func ValidateTransition(from, to model.RunStatus) error {
	if from == to {
		return nil
	}
	allowed := AllowedTransitions[from]
	if !allowed[to] {
		names := make([]string, 0, len(allowed))
		for s := range allowed {
			names = append(names, string(s))
		}
		return &IllegalTransitionError{From: string(from), To: string(to), Allowed: names}
	}
	return nil
}
