package turn

import (
	"github.com/texttoaction/tta/internal/agent"
	"github.com/texttoaction/tta/internal/rpc"
	"github.com/texttoaction/tta/internal/sandbox"
)

// Wire-only event types. Every other type mirrors agent.EventType.
const (
	EventOutput = "output"
	EventError  = "error"
)

// FromAgentEvent converts a controller event to its wire form.
func FromAgentEvent(e agent.Event) rpc.TurnEvent {
	return rpc.TurnEvent{
		Type:        string(e.Type),
		TurnID:      e.TurnID,
		Attempt:     e.Attempt,
		MaxAttempts: e.MaxAttempts,
		State:       string(e.State),
		Code:        e.Code,
		Outcome:     string(e.Outcome),
		Kind:        e.Kind,
		Message:     e.Message,
		Status:      string(e.Status),
	}
}

// ToAgentEvent converts a wire event back to a controller event. It reports
// false for output and error events, which have no controller equivalent.
func ToAgentEvent(e rpc.TurnEvent) (agent.Event, bool) {
	switch e.Type {
	case EventOutput, EventError, "":
		return agent.Event{}, false
	}
	return agent.Event{
		Type:        agent.EventType(e.Type),
		TurnID:      e.TurnID,
		Attempt:     e.Attempt,
		MaxAttempts: e.MaxAttempts,
		State:       agent.State(e.State),
		Code:        e.Code,
		Outcome:     sandbox.Outcome(e.Outcome),
		Kind:        e.Kind,
		Message:     e.Message,
		Status:      agent.Status(e.Status),
	}, true
}
