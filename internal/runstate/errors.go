package runstate

import "fmt"

// RunNotFoundError means no row exists for (tenant_id, run_id).
type RunNotFoundError struct {
	RunID string
}

func (e *RunNotFoundError) Error() string {
	return fmt.Sprintf("run %s not found", e.RunID)
}

// IllegalTransitionError means the requested status change is not in the
// allowed-transitions table and the states differ.
type IllegalTransitionError struct {
	From, To string
	Allowed  []string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition: %s -> %s (allowed from %s: %v)", e.From, e.To, e.From, e.Allowed)
}

// RetryNotAllowedError means retry_run was called on a run outside
// {failed, blocked}.
type RetryNotAllowedError struct {
	Status string
}

func (e *RetryNotAllowedError) Error() string {
	return fmt.Sprintf("cannot retry run in status %s: retry only allowed from failed or blocked", e.Status)
}
