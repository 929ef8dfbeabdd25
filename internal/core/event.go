package core

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventSessionUpdated carries the full membership snapshot of a session.
	EventSessionUpdated EventKind = iota
	// EventNameRequired tells the client its action is parked until a display name is set.
	EventNameRequired
	// EventAck answers a client request; Data holds the transport payload.
	EventAck
	// EventError notifies the client about an advisory domain error.
	EventError
)

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind      EventKind
	RequestID string
	Session   *Session
	User      *User
	Action    PendingKind // for EventNameRequired
	Data      any         // for EventAck
	Error     *CoreError
}

// ErrorEvent builds an EventError for the given request.
func ErrorEvent(requestID string, err *CoreError) *Event {
	return &Event{Kind: EventError, RequestID: requestID, Error: err}
}
