package scan

import "github.com/scanbox/scanbox/internal/domain/scanerr"

// EventType represents a session event type.
type EventType int

const (
	EventStateChanged EventType = iota // Session state changed
	EventDecoded                       // A code was decoded (terminal success)
	EventError                         // Session failed (terminal failure)
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventStateChanged:
		return "state_changed"
	case EventDecoded:
		return "decoded"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event represents a session event.
type Event struct {
	Type     EventType
	State    State        // Session state after the transition
	DeviceID string       // Device involved, if any
	Value    string       // Decoded value (EventDecoded only)
	Kind     scanerr.Kind // Error kind (EventError only)
	Message  string       // Error message (EventError only)
}
