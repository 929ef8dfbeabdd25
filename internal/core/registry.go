package core

import "sync"

// PendingKind identifies an action parked until the user supplies a display name.
type PendingKind int

const (
	PendingNone PendingKind = iota
	PendingCreate
	PendingJoin
	PendingRejoin
)

func (k PendingKind) String() string {
	switch k {
	case PendingCreate:
		return "create_session"
	case PendingJoin:
		return "join_session"
	case PendingRejoin:
		return "rejoin_session"
	default:
		return ""
	}
}

// PendingAction is the single deferred action slot of a connection.
type PendingAction struct {
	Kind      PendingKind
	Code      string
	User      User
	RequestID string
}

// Connection is a copy of a registry entry.
type Connection struct {
	ID          string
	UserID      string
	SessionCode string
	HasPending  bool
}

type connEntry struct {
	client  *Client
	userID  string
	code    string
	pending *PendingAction
}

// ConnectionRegistry maps live connections to the user and session they are bound to.
// It only holds back-references; session membership lives in the SessionStore.
type ConnectionRegistry struct {
	mu    sync.RWMutex
	conns map[string]*connEntry
}

// NewConnectionRegistry creates an empty registry.
func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{conns: make(map[string]*connEntry)}
}

// Register adds an unbound connection.
func (r *ConnectionRegistry) Register(client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[client.ID] = &connEntry{client: client}
}

// Unregister removes the connection and discards its pending action.
// Session membership is not touched.
func (r *ConnectionRegistry) Unregister(connID string) (Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.conns[connID]
	if !ok {
		return Connection{}, false
	}
	delete(r.conns, connID)
	return entry.view(connID), true
}

// Get returns a copy of the connection.
func (r *ConnectionRegistry) Get(connID string) (Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.conns[connID]
	if !ok {
		return Connection{}, false
	}
	return entry.view(connID), true
}

func (e *connEntry) view(id string) Connection {
	return Connection{
		ID:          id,
		UserID:      e.userID,
		SessionCode: e.code,
		HasPending:  e.pending != nil,
	}
}

// BindUser binds the connection to userID, replacing any previous binding.
func (r *ConnectionRegistry) BindUser(connID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.conns[connID]
	if !ok {
		return ErrConnectionNotFound
	}
	entry.userID = userID
	return nil
}

// BindSession binds the connection to code, replacing any previous binding.
func (r *ConnectionRegistry) BindSession(connID, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.conns[connID]
	if !ok {
		return ErrConnectionNotFound
	}
	entry.code = code
	return nil
}

// UnbindSession clears the session binding.
func (r *ConnectionRegistry) UnbindSession(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.conns[connID]; ok {
		entry.code = ""
	}
}

// ConnectionsForSession returns the ids of every connection bound to code.
func (r *ConnectionRegistry) ConnectionsForSession(code string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	for id, entry := range r.conns {
		if entry.code == code {
			ids = append(ids, id)
		}
	}
	return ids
}

// FindByUser returns a connection bound to userID, preferring one bound to a session.
func (r *ConnectionRegistry) FindByUser(userID string) (Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found *Connection
	for id, entry := range r.conns {
		if entry.userID != userID {
			continue
		}
		view := entry.view(id)
		if view.SessionCode != "" {
			return view, true
		}
		if found == nil {
			found = &view
		}
	}
	if found == nil {
		return Connection{}, false
	}
	return *found, true
}

// SetPending parks action on the connection, replacing any earlier one.
func (r *ConnectionRegistry) SetPending(connID string, action PendingAction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.conns[connID]
	if !ok {
		return ErrConnectionNotFound
	}
	entry.pending = &action
	return nil
}

// TakePending removes and returns the parked action.
func (r *ConnectionRegistry) TakePending(connID string) (PendingAction, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.conns[connID]
	if !ok || entry.pending == nil {
		return PendingAction{}, false
	}
	action := *entry.pending
	entry.pending = nil
	return action, true
}

// PeekPending returns the parked action without clearing it.
func (r *ConnectionRegistry) PeekPending(connID string) (PendingAction, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.conns[connID]
	if !ok || entry.pending == nil {
		return PendingAction{}, false
	}
	return *entry.pending, true
}

// Send hands a snapshot to the connection without blocking. Returns false if
// the connection is gone or an unwritten snapshot was replaced.
func (r *ConnectionRegistry) Send(connID string, event *Event) bool {
	r.mu.RLock()
	entry, ok := r.conns[connID]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	return entry.client.Deliver(event)
}

// Count returns the number of live connections.
func (r *ConnectionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
