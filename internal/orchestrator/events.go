package orchestrator

// EventType classifies orchestrator events for dashboards and notifiers
type EventType string

const (
	EventRunStateChanged  EventType = "run_state_changed"
	EventTaskStateChanged EventType = "task_state_changed"
	EventIteration        EventType = "iteration"
	EventNeedsAttention   EventType = "needs_attention"
)

// Event is a fire-and-forget progress notification. Consumers must never
// block the state machine; sinks are invoked synchronously and expected
// to hand off fast.
type Event struct {
	Type      EventType `json:"type"`
	RunID     string    `json:"run_id"`
	TaskIndex int       `json:"task_index"`
	Iteration int       `json:"iteration"`
	State     string    `json:"state"`
	Message   string    `json:"message,omitempty"`
}

// Sink receives orchestrator events
type Sink func(Event)

func (o *Orchestrator) emit(ev Event) {
	if o.events != nil {
		o.events(ev)
	}
}
