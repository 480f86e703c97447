package notify

import (
	"fmt"

	"github.com/hochfrequenz/issue-orchestrator/internal/domain"
	"github.com/hochfrequenz/issue-orchestrator/internal/orchestrator"
)

// ForEvents adapts a notifier into an orchestrator event sink. Only
// milestones a human should hear about become notifications; per-iteration
// noise is dropped.
func ForEvents(n Notifier) orchestrator.Sink {
	return func(ev orchestrator.Event) {
		msg, ok := translate(ev)
		if !ok {
			return
		}
		// Delivery failures never reach the state machine
		_ = n.Send(msg)
	}
}

func translate(ev orchestrator.Event) (Notification, bool) {
	switch ev.Type {
	case orchestrator.EventNeedsAttention:
		return Notification{
			Title:   "Run needs attention",
			Message: ev.Message,
			Type:    NotifyWarning,
			RunID:   ev.RunID,
		}, true

	case orchestrator.EventRunStateChanged:
		switch ev.State {
		case string(domain.RunCompleted):
			return Notification{
				Title:   "Change set submitted",
				Message: fmt.Sprintf("run %s completed", ev.RunID),
				Type:    NotifySuccess,
				RunID:   ev.RunID,
			}, true
		case string(domain.RunFailed):
			return Notification{
				Title:   "Run failed",
				Message: ev.Message,
				Type:    NotifyError,
				RunID:   ev.RunID,
			}, true
		case string(domain.RunCancelled):
			return Notification{
				Title:   "Run cancelled",
				Message: fmt.Sprintf("run %s was cancelled", ev.RunID),
				Type:    NotifyInfo,
				RunID:   ev.RunID,
			}, true
		}
	}
	return Notification{}, false
}
