package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
// ID is optional; when set, the direct reply carries the same ID.
type Inbound struct {
	Type string          `json:"type"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

const (
	ProtocolVersion = 1

	InboundTypeHello                = "hello"
	InboundTypeCreateSession        = "create_session"
	InboundTypeJoinSession          = "join_session"
	InboundTypeRejoinSession        = "rejoin_session"
	InboundTypeSetDisplayName       = "set_display_name"
	InboundTypeLeaveSession         = "leave_session"
	InboundTypeFindMyActiveSessions = "find_my_active_sessions"
	InboundTypeCheckSessionExists   = "check_session_exists"

	OutboundTypeAck   = "ack"
	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventSessionUpdated = "session_updated"
	EventNameRequired   = "name_required"
)

// HelloData is sent by the client to announce its protocol version.
type HelloData struct {
	Protocol int `json:"protocol,omitempty"`
}

// User is the client-persisted identity.
type User struct {
	UserID      string `json:"userId" yaml:"user_id"`
	DisplayName string `json:"displayName" yaml:"display_name"`
}

// CreateSessionData requests a new session.
type CreateSessionData struct {
	User User `json:"user"`
}

// JoinSessionData requests to join (or materialize) the session under Code.
type JoinSessionData struct {
	Code string `json:"code"`
	User User   `json:"user"`
}

// RejoinSessionData re-binds a new connection to a known session.
// SessionID is the session code.
type RejoinSessionData struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
}

// SetDisplayNameData supplies the name a parked action is waiting for.
// UserID binds a connection that has not identified itself yet.
type SetDisplayNameData struct {
	Name   string `json:"name"`
	UserID string `json:"userId,omitempty"`
}

// FindMyActiveSessionsData asks for a session the caller already belongs to.
type FindMyActiveSessionsData struct {
	Name   string `json:"name"`
	UserID string `json:"userId,omitempty"`
}

// CheckSessionExistsData asks whether Code refers to a live session.
type CheckSessionExistsData struct {
	Code string `json:"code"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	ID    string `json:"id,omitempty"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// Session is the full membership snapshot pushed on every change.
type Session struct {
	Code      string `json:"code"`
	Members   []User `json:"members"`
	Version   uint64 `json:"version"`
	CreatedAt int64  `json:"createdAt"`
}

// NameRequired tells the client which action waits for a display name.
type NameRequired struct {
	UserID string `json:"userId"`
	Action string `json:"action"`
}

// ActiveSession answers find_my_active_sessions.
type ActiveSession struct {
	SessionID string `json:"sessionId,omitempty"`
}

// SessionExists answers check_session_exists.
type SessionExists struct {
	Exists bool `json:"exists"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
