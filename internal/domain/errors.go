package domain

import (
	"errors"
	"fmt"
)

// ErrClarificationNeeded is returned by the planner when an issue cannot be
// decomposed unambiguously. It suspends the run pending human input; it is
// not a failure and the run is never auto-retried past it.
var ErrClarificationNeeded = errors.New("issue needs clarification before planning")

// ErrNoProgress blocks a task after two consecutive no-op proposals
var ErrNoProgress = errors.New("two consecutive no-op proposals")

// ErrIterationBudget blocks a task once max_iterations rejections accumulate
var ErrIterationBudget = errors.New("iteration budget exceeded")

// WorkspaceError marks working-copy setup or submission failures. These are
// fatal: the run moves straight to failed with its workspace released.
type WorkspaceError struct {
	RunID string
	Op    string
	Err   error
}

func (e *WorkspaceError) Error() string {
	return fmt.Sprintf("workspace %s: %s: %v", e.RunID, e.Op, e.Err)
}

func (e *WorkspaceError) Unwrap() error { return e.Err }

// TransientError marks timeouts and transport blips that are retried with
// backoff at the call site and converted to an iteration reject once the
// retry budget is exhausted.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient: %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err is retryable infrastructure noise
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
