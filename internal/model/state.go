// Package model holds the shared types the submission paths and the local
// history store both depend on.
package model

import "github.com/pkg/errors"

// State is the run state of a training or tuning job. The set is defined and
// reported by the platform; this code only reads it.
type State string

// Constants.
const (
	// PendingState is a job accepted but not yet scheduled.
	PendingState State = "PENDING"
	// InProgressState is a running job.
	InProgressState State = "IN_PROGRESS"
	// CompletedState is a job that finished successfully.
	CompletedState State = "COMPLETED"
	// FailedState is a job that finished unsuccessfully.
	FailedState State = "FAILED"
	// StoppingState is a job being stopped on request.
	StoppingState State = "STOPPING"
	// StoppedState is a job stopped before completion.
	StoppedState State = "STOPPED"
)

// TerminalStates are the states a job never leaves.
var TerminalStates = map[State]bool{
	CompletedState: true,
	FailedState:    true,
	StoppedState:   true,
}

// Terminal reports whether the state is terminal.
func (s State) Terminal() bool {
	return TerminalStates[s]
}

// StateFromPlatform maps a platform job status string into a State.
func StateFromPlatform(status string) (State, error) {
	switch status {
	case "Pending":
		return PendingState, nil
	case "InProgress":
		return InProgressState, nil
	case "Completed":
		return CompletedState, nil
	case "Failed":
		return FailedState, nil
	case "Stopping":
		return StoppingState, nil
	case "Stopped":
		return StoppedState, nil
	default:
		return "", errors.Errorf("unknown platform job status %q", status)
	}
}
