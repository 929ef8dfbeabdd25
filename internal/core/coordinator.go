package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Options tune the coordinator.
type Options struct {
	// SessionTTL evicts sessions without bound connections after this much
	// inactivity. Zero disables eviction.
	SessionTTL time.Duration
	// ReaperInterval is how often eviction runs. Defaults to SessionTTL/2.
	ReaperInterval time.Duration
	Metrics        Metrics
	Logger         *zerolog.Logger
	Now            func() time.Time
}

// Outcome describes the result of a session action.
// Session is nil when the action was parked because no display name is known.
type Outcome struct {
	Session   *Session
	User      User
	NeedsName bool
	Action    PendingKind
	Created   bool
}

// Coordinator is the session protocol state machine. It validates requests,
// mutates membership through the SessionStore, keeps connection bindings in the
// ConnectionRegistry and broadcasts full snapshots after every change.
type Coordinator struct {
	sessions *SessionStore
	conns    *ConnectionRegistry
	identity *IdentityResolver
	metrics  Metrics
	log      *zerolog.Logger
	now      func() time.Time

	ttl      time.Duration
	interval time.Duration

	// fanout orders snapshot fan-out so each connection sees versions in order.
	fanout sync.Mutex
}

// NewCoordinator wires the coordinator to its tables.
func NewCoordinator(sessions *SessionStore, conns *ConnectionRegistry, identity *IdentityResolver, opts Options) *Coordinator {
	c := &Coordinator{
		sessions: sessions,
		conns:    conns,
		identity: identity,
		metrics:  opts.Metrics,
		log:      opts.Logger,
		now:      opts.Now,
		ttl:      opts.SessionTTL,
		interval: opts.ReaperInterval,
	}
	if c.metrics == nil {
		c.metrics = nopMetrics{}
	}
	if c.log == nil {
		nop := zerolog.Nop()
		c.log = &nop
	}
	if c.identity == nil {
		c.identity = NewIdentityResolver(nil, c.log)
	}
	if c.now == nil {
		c.now = func() time.Time { return time.Now().UTC() }
	}
	if c.interval <= 0 {
		c.interval = c.ttl / 2
	}
	return c
}

// Sessions exposes the store for read-only callers such as HTTP lookups.
func (c *Coordinator) Sessions() *SessionStore {
	return c.sessions
}

// Connect registers a new anonymous connection.
func (c *Coordinator) Connect(client *Client) {
	c.conns.Register(client)
	c.metrics.ConnectionOpened()
	c.log.Debug().Str("conn_id", client.ID).Msg("connection registered")
}

// Disconnect drops the connection. Membership stays so the user can rejoin;
// any parked action is discarded. No broadcast is sent.
func (c *Coordinator) Disconnect(connID string) {
	conn, ok := c.conns.Unregister(connID)
	if !ok {
		return
	}
	c.metrics.ConnectionClosed()
	if conn.SessionCode != "" {
		c.sessions.Touch(conn.SessionCode)
	}
	c.log.Debug().
		Str("conn_id", connID).
		Str("user_id", conn.UserID).
		Str("code", conn.SessionCode).
		Bool("pending_dropped", conn.HasPending).
		Msg("connection unregistered")
}

// CreateSession makes a new session owned by the requesting user.
func (c *Coordinator) CreateSession(ctx context.Context, connID, requestID string, requested User) (Outcome, error) {
	user, named, err := c.identify(ctx, connID, requested)
	if err != nil {
		return Outcome{}, err
	}
	if !named {
		return c.park(connID, PendingAction{Kind: PendingCreate, User: user, RequestID: requestID})
	}
	return c.create(connID, user)
}

// JoinSession puts the user into the session under code. An unknown code is
// not an error: a fresh session is materialized under exactly that code.
func (c *Coordinator) JoinSession(ctx context.Context, connID, requestID, code string, requested User) (Outcome, error) {
	code, err := NormalizeCode(code)
	if err != nil {
		return Outcome{}, err
	}
	user, named, err := c.identify(ctx, connID, requested)
	if err != nil {
		return Outcome{}, err
	}
	if !named {
		return c.park(connID, PendingAction{Kind: PendingJoin, Code: code, User: user, RequestID: requestID})
	}
	return c.join(connID, code, user, false)
}

// RejoinSession re-binds a new connection to a session the user already
// belonged to. Membership is never duplicated.
func (c *Coordinator) RejoinSession(ctx context.Context, connID, requestID, code, userID string) (Outcome, error) {
	code, err := NormalizeCode(code)
	if err != nil {
		return Outcome{}, err
	}
	if userID == "" {
		return Outcome{}, ErrMissingUserID
	}

	user, named, err := c.identify(ctx, connID, User{ID: userID})
	if err != nil {
		return Outcome{}, err
	}
	if !named {
		// The session may still remember the name from an earlier connection.
		if sess, lookupErr := c.sessions.Lookup(code); lookupErr == nil {
			if member, ok := sess.Member(userID); ok && member.DisplayName != "" {
				user, err = c.identity.SetDisplayName(ctx, userID, member.DisplayName)
				named = err == nil
			}
		}
	}
	if !named {
		return c.park(connID, PendingAction{Kind: PendingRejoin, Code: code, User: user, RequestID: requestID})
	}
	return c.join(connID, code, user, true)
}

// SetDisplayName records the connection's display name and replays the parked
// action, if any, exactly once. An invalid name leaves the action parked.
// userID is only used when the connection has no bound user yet.
func (c *Coordinator) SetDisplayName(ctx context.Context, connID, userID, name string) (Outcome, error) {
	conn, ok := c.conns.Get(connID)
	if !ok {
		return Outcome{}, ErrConnectionNotFound
	}

	if conn.UserID != "" {
		userID = conn.UserID
	}
	if userID == "" {
		userID = NewUserID()
	}
	user, err := c.identity.SetDisplayName(ctx, userID, name)
	if err != nil {
		return Outcome{}, err
	}
	if err := c.conns.BindUser(connID, user.ID); err != nil {
		return Outcome{}, err
	}

	pending, ok := c.conns.TakePending(connID)
	if !ok {
		if conn.SessionCode != "" {
			// Already in a session: let the others see the new name.
			return c.join(connID, conn.SessionCode, user, true)
		}
		return Outcome{User: user}, nil
	}

	c.log.Debug().
		Str("conn_id", connID).
		Str("user_id", user.ID).
		Str("action", pending.Kind.String()).
		Msg("replaying parked action")

	switch pending.Kind {
	case PendingCreate:
		return c.create(connID, user)
	case PendingJoin:
		return c.join(connID, pending.Code, user, false)
	case PendingRejoin:
		return c.join(connID, pending.Code, user, true)
	default:
		return Outcome{User: user}, nil
	}
}

// LeaveSession removes the user from the session the connection is bound to
// and tells the remaining connections.
func (c *Coordinator) LeaveSession(ctx context.Context, connID string) (Outcome, error) {
	conn, ok := c.conns.Get(connID)
	if !ok {
		return Outcome{}, ErrConnectionNotFound
	}
	if conn.SessionCode == "" || conn.UserID == "" {
		return Outcome{}, ErrNotInSession
	}

	if _, err := c.sessions.RemoveMember(conn.SessionCode, conn.UserID); err != nil {
		c.conns.UnbindSession(connID)
		return Outcome{}, err
	}
	c.conns.UnbindSession(connID)
	c.metrics.MemberLeft()

	sess, err := c.broadcast(conn.SessionCode)
	if err != nil {
		return Outcome{}, err
	}
	c.log.Info().Str("code", conn.SessionCode).Str("user_id", conn.UserID).Msg("member left session")
	return Outcome{Session: &sess, User: User{ID: conn.UserID}}, nil
}

// FindActiveSession returns the code of a session the user currently belongs to.
// A live binding wins; otherwise the most recently active session containing
// userID, then one containing a member called name.
func (c *Coordinator) FindActiveSession(userID, name string) (string, bool) {
	if userID != "" {
		if conn, ok := c.conns.FindByUser(userID); ok && conn.SessionCode != "" {
			if c.sessions.Exists(conn.SessionCode) {
				return conn.SessionCode, true
			}
		}
		if sess, ok := c.sessions.FindByMember(userID); ok {
			return sess.Code, true
		}
	}
	if sess, ok := c.sessions.FindByMemberName(name); ok {
		return sess.Code, true
	}
	return "", false
}

// SessionExists reports whether a typed code refers to a live session.
func (c *Coordinator) SessionExists(code string) bool {
	code, err := NormalizeCode(code)
	if err != nil {
		return false
	}
	return c.sessions.Exists(code)
}

// LookupSession returns the snapshot for code.
func (c *Coordinator) LookupSession(code string) (Session, error) {
	code, err := NormalizeCode(code)
	if err != nil {
		return Session{}, err
	}
	return c.sessions.Lookup(code)
}

// Run evicts idle sessions until ctx is done.
func (c *Coordinator) Run(ctx context.Context) {
	if c.ttl <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.EvictIdle()
		case <-ctx.Done():
			return
		}
	}
}

// EvictIdle removes sessions that have no bound connection and have been idle
// longer than the TTL. Returns the number removed.
func (c *Coordinator) EvictIdle() int {
	if c.ttl <= 0 {
		return 0
	}
	cutoff := c.now().Add(-c.ttl)

	evicted := 0
	for _, code := range c.sessions.IdleSince(cutoff) {
		if len(c.conns.ConnectionsForSession(code)) > 0 {
			continue
		}
		if c.sessions.RemoveIfIdle(code, cutoff) {
			evicted++
			c.log.Info().Str("code", code).Msg("idle session evicted")
		}
	}
	if evicted > 0 {
		c.metrics.SessionsEvicted(evicted)
		c.metrics.SessionsLive(c.sessions.Count())
	}
	return evicted
}

func (c *Coordinator) identify(ctx context.Context, connID string, requested User) (User, bool, error) {
	conn, ok := c.conns.Get(connID)
	if !ok {
		return User{}, false, ErrConnectionNotFound
	}
	if requested.ID == "" {
		requested.ID = conn.UserID
	}

	user, named, err := c.identity.Resolve(ctx, requested)
	if err != nil {
		return User{}, false, err
	}
	if err := c.conns.BindUser(connID, user.ID); err != nil {
		return User{}, false, err
	}
	return user, named, nil
}

func (c *Coordinator) park(connID string, action PendingAction) (Outcome, error) {
	if err := c.conns.SetPending(connID, action); err != nil {
		return Outcome{}, err
	}
	c.metrics.NameRequested()
	c.log.Debug().
		Str("conn_id", connID).
		Str("user_id", action.User.ID).
		Str("action", action.Kind.String()).
		Msg("action parked until display name is set")
	return Outcome{User: action.User, NeedsName: true, Action: action.Kind}, nil
}

func (c *Coordinator) create(connID string, user User) (Outcome, error) {
	created := c.sessions.Create(user)
	c.metrics.SessionCreated(false)
	c.metrics.SessionsLive(c.sessions.Count())

	if err := c.bind(connID, user.ID, created.Code); err != nil {
		return Outcome{}, err
	}
	sess, err := c.broadcast(created.Code)
	if err != nil {
		return Outcome{}, err
	}
	c.log.Info().Str("code", sess.Code).Str("user_id", user.ID).Msg("session created")
	return Outcome{Session: &sess, User: user, Created: true}, nil
}

func (c *Coordinator) join(connID, code string, user User, rejoin bool) (Outcome, error) {
	_, created := c.sessions.JoinOrCreate(code, user)
	switch {
	case created:
		c.metrics.SessionCreated(true)
		c.metrics.SessionsLive(c.sessions.Count())
	case rejoin:
		c.metrics.MemberRejoined()
	default:
		c.metrics.MemberJoined()
	}

	if err := c.bind(connID, user.ID, code); err != nil {
		return Outcome{}, err
	}
	sess, err := c.broadcast(code)
	if err != nil {
		return Outcome{}, err
	}
	c.log.Info().
		Str("code", code).
		Str("user_id", user.ID).
		Bool("created", created).
		Bool("rejoin", rejoin).
		Int("members", len(sess.Members)).
		Msg("member joined session")
	return Outcome{Session: &sess, User: user, Created: created}, nil
}

func (c *Coordinator) bind(connID, userID, code string) error {
	if err := c.conns.BindUser(connID, userID); err != nil {
		return err
	}
	return c.conns.BindSession(connID, code)
}

// broadcast pushes the current snapshot of code to every bound connection.
// A connection that has not written its previous snapshot gets this one in
// its place, so it never falls behind the latest version.
func (c *Coordinator) broadcast(code string) (Session, error) {
	c.fanout.Lock()
	defer c.fanout.Unlock()

	sess, err := c.sessions.Lookup(code)
	if err != nil {
		return Session{}, fmt.Errorf("broadcast %s: %w", code, err)
	}

	event := &Event{Kind: EventSessionUpdated, Session: &sess}
	delivered, superseded := 0, 0
	for _, id := range c.conns.ConnectionsForSession(code) {
		if c.conns.Send(id, event) {
			delivered++
			continue
		}
		superseded++
		c.log.Debug().Str("conn_id", id).Str("code", code).Uint64("version", sess.Version).Msg("unwritten session update superseded")
	}
	c.metrics.Broadcast(delivered, superseded)
	return sess, nil
}
