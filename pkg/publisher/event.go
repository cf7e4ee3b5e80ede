package publisher

import (
	"errors"
	"time"
)

const (
	// SchemaDispatchV1 is the schema identifier for dispatch outcome events.
	SchemaDispatchV1 = "gymqr.dispatch.v1"
)

// ErrEmptyRequestID indicates an event without a request id.
var ErrEmptyRequestID = errors.New("cannot create event with empty request id")

// Outcome is the subset of a dispatch result recorded in an event.
type Outcome struct {
	RequestID   string
	ChatID      int64
	Command     string
	State       string
	FailureKind string
	Err         error
	Duration    time.Duration
}

// Event is the publish payload for a single dispatched command. Ignored
// commands carry no failure fields.
type Event struct {
	Schema         string    `json:"schema"`
	RequestID      string    `json:"request_id"`
	ChatID         int64     `json:"chat_id"`
	Command        string    `json:"command"`
	State          string    `json:"state"`
	FailureKind    string    `json:"failure_kind,omitempty"`
	Error          string    `json:"error,omitempty"`
	DurationMillis int64     `json:"duration_ms"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// NewEvent creates an Event from a dispatch outcome.
func NewEvent(o Outcome) (*Event, error) {
	if o.RequestID == "" {
		return nil, ErrEmptyRequestID
	}

	event := &Event{
		Schema:         SchemaDispatchV1,
		RequestID:      o.RequestID,
		ChatID:         o.ChatID,
		Command:        o.Command,
		State:          o.State,
		FailureKind:    o.FailureKind,
		DurationMillis: o.Duration.Milliseconds(),
		OccurredAt:     time.Now(),
	}
	if o.Err != nil {
		event.Error = o.Err.Error()
	}

	return event, nil
}
