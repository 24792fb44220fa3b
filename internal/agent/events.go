package agent

import "github.com/texttoaction/tta/internal/sandbox"

// EventType identifies what a turn event reports.
type EventType string

const (
	EventState           EventType = "state"
	EventGenerationError EventType = "generation_error"
	EventCode            EventType = "code"
	EventFailure         EventType = "failure"
	EventRetry           EventType = "retry"
	EventExhausted       EventType = "exhausted"
	EventCompleted       EventType = "completed"
)

// Event is emitted by the retry controller as a turn progresses.
type Event struct {
	Type        EventType       `json:"type"`
	TurnID      string          `json:"turn_id"`
	Attempt     int             `json:"attempt,omitempty"`
	MaxAttempts int             `json:"max_attempts,omitempty"`
	State       State           `json:"state,omitempty"`
	Code        string          `json:"code,omitempty"`
	Outcome     sandbox.Outcome `json:"outcome,omitempty"`
	Kind        string          `json:"kind,omitempty"`
	Message     string          `json:"message,omitempty"`
	Status      Status          `json:"status,omitempty"`
}

// Sink receives turn events in order. Emit is called from the goroutine
// running the turn.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

// Emit calls f(e).
func (f SinkFunc) Emit(e Event) { f(e) }
