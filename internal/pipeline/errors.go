package pipeline

import "fmt"

// evaluationFailedError marks a run that exhausted its one allowed repair
// attempt and still got a CONTINUE_REWRITE verdict (spec.md §4.7/§4.13:
// "attempting Repair a second time within the same run fails the stage
// with a fixed error"). The Coordinator maps this to error_code
// "evaluation_failed" instead of the generic "worker_error".
type evaluationFailedError struct{}

func (e *evaluationFailedError) Error() string {
	return "evaluation failed after one repair attempt"
}

var errEvaluationFailed = &evaluationFailedError{}

func errUnknownStage(name string) error {
	return fmt.Errorf("no stage registered for %q", name)
}
