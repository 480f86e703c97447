package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/hochfrequenz/issue-orchestrator/internal/domain"
)

// callRole invokes one role call under the configured timeout and retries
// transient failures with exponential backoff. A timeout or an exhausted
// retry budget is reported back as an error the iteration loop converts
// into a rejecting verdict, never as a run-level failure.
func (o *Orchestrator) callRole(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	delay := o.cfg.RetryBaseDelay

	for attempt := 0; attempt <= o.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		callCtx := ctx
		var cancel context.CancelFunc
		if o.cfg.CallTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, o.cfg.CallTimeout)
		}
		err := fn(callCtx)
		if cancel != nil {
			cancel()
		}

		if err == nil {
			return nil
		}
		lastErr = err

		// A dead parent context is not retryable
		if ctx.Err() != nil {
			return err
		}
		if !domain.IsTransient(err) && !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
	}
	return lastErr
}

// rejectReason maps a failed role call to the verdict reason that will
// consume one unit of iteration budget
func rejectReason(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if domain.IsTransient(err) {
		return "infrastructure failure: " + err.Error()
	}
	return err.Error()
}
