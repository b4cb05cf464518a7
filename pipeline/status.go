package pipeline

import "fmt"

// Status is the runtime execution status of a stage.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// IsTerminal reports whether the status is final. Terminal statuses never
// transition again.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusSkipped:
		return true
	default:
		return false
	}
}

// allowedTransition encodes the stage state machine:
//
//	pending -> running -> succeeded | failed
//	pending -> skipped
func allowedTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusRunning || to == StatusSkipped
	case StatusRunning:
		return to == StatusSucceeded || to == StatusFailed
	default:
		return false
	}
}

// TransitionError reports a rejected stage status transition.
type TransitionError struct {
	Stage string
	From  Status
	To    Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("stage %q: invalid transition %s -> %s", e.Stage, e.From, e.To)
}
