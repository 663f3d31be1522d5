// Package event defines the in-process notifications the workflow engine
// publishes after a state change commits.
package event

import (
	"fmt"
	"time"

	"github.com/garyjia/justifi/pkg/ids"
)

// Type identifies what happened.
type Type string

const (
	TypeJustificationSubmitted Type = "justification.submitted"
	TypeStatusChanged          Type = "justification.status_changed"
	TypeTaskStatusChanged      Type = "task.status_changed"
	TypeCommentAdded           Type = "comment.added"
)

func (t Type) String() string {
	return string(t)
}

// IsValid reports whether t is one of the published types.
func (t Type) IsValid() bool {
	switch t {
	case TypeJustificationSubmitted, TypeStatusChanged, TypeTaskStatusChanged, TypeCommentAdded:
		return true
	}
	return false
}

// Payload keys
const (
	PayloadFrom   = "from"
	PayloadTo     = "to"
	PayloadActor  = "actor"
	PayloadTaskID = "task_id"
)

// Event is immutable once published; subscribers must not modify Payload.
type Event struct {
	ID              string         `json:"id"`
	Type            Type           `json:"type"`
	JustificationID string         `json:"justification_id"`
	Payload         map[string]any `json:"payload,omitempty"`
	OccurredAt      time.Time      `json:"occurred_at"`
}

// NewEvent stamps a new event with a ULID and the current UTC time.
func NewEvent(eventType Type, justificationID string, payload map[string]any) *Event {
	return &Event{
		ID:              ids.New(),
		Type:            eventType,
		JustificationID: justificationID,
		Payload:         payload,
		OccurredAt:      time.Now().UTC(),
	}
}

// GetPayloadString returns the value under key as a string, or "" when the
// key is missing. Stringers and other scalars are formatted.
func (e *Event) GetPayloadString(key string) string {
	switch v := e.Payload[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
