// Package bus is the in-process event distribution layer. Every plan
// and invocation status transition is published here; the CLI and the
// websocket server subscribe rather than polling plan state.
package bus

import (
	"time"

	"github.com/google/uuid"
)

// EventType labels what happened.
type EventType string

const (
	// Request lifecycle
	EventRequestReceived EventType = "request_received"
	EventAnswerReady     EventType = "answer_ready"

	// Plan lifecycle
	EventPlanStarted   EventType = "plan_started"
	EventPlanCompleted EventType = "plan_completed"
	EventPlanFailed    EventType = "plan_failed"
	EventPlanAdapted   EventType = "plan_adapted"

	// Invocation lifecycle
	EventInvocationStarted   EventType = "invocation_started"
	EventInvocationCompleted EventType = "invocation_completed"
	EventInvocationFailed    EventType = "invocation_failed"
)

// Event is one status transition on the bus.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`

	PlanID       string `json:"plan_id,omitempty"`
	InvocationID string `json:"invocation_id,omitempty"`
	Tool         string `json:"tool,omitempty"`
	Wave         int    `json:"wave,omitempty"`

	Content    string `json:"content,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
}

// NewEvent creates an event with id and timestamp filled in.
func NewEvent(eventType EventType) Event {
	return Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Type:      eventType,
	}
}
