// Package client is a websocket client for the lobby protocol. It keeps the
// user's identity in a small YAML file, correlates requests with their
// replies and hands each newer session snapshot to a callback.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/lobby-server/internal/proto"
)

var (
	// ErrNameRequired is returned when the server parked the request until a
	// display name is set. Call SetDisplayName to replay it.
	ErrNameRequired = errors.New("display name required")
	ErrClosed       = errors.New("client closed")
	ErrNoSession    = errors.New("no session held")
)

// ServerError is an error reply from the server.
type ServerError struct {
	Code string
	Msg  string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// Options configure a Client.
type Options struct {
	// UserFile persists the identity between runs. Empty keeps it in memory.
	UserFile string
	Logger   *zerolog.Logger
	// OnSession is called from the read goroutine for every snapshot received.
	OnSession func(proto.Session)
	// OnNameRequired is called for name_required pushes not tied to a request.
	OnNameRequired func(proto.NameRequired)
}

type envelope struct {
	Type  string          `json:"type"`
	ID    string          `json:"id"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

type link struct {
	conn *websocket.Conn
	done chan struct{}
	err  error
}

// Client talks to one lobby server.
type Client struct {
	url  string
	opts Options
	log  *zerolog.Logger

	nextID atomic.Uint64

	mu      sync.Mutex
	link    *link
	user    proto.User
	session *proto.Session
	waiting map[string]chan envelope
	closed  bool
}

// Dial loads the persisted user and connects to url (ws://host/ws).
func Dial(ctx context.Context, url string, opts Options) (*Client, error) {
	user := proto.User{UserID: uuid.NewString()}
	if opts.UserFile != "" {
		u, err := LoadUser(opts.UserFile)
		if err != nil {
			return nil, err
		}
		user = u
	}
	if opts.Logger == nil {
		nop := zerolog.Nop()
		opts.Logger = &nop
	}

	c := &Client{
		url:     url,
		opts:    opts,
		log:     opts.Logger,
		user:    user,
		waiting: make(map[string]chan envelope),
	}
	if err := c.connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) connect(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.url, err)
	}
	l := &link{conn: conn, done: make(chan struct{})}

	c.mu.Lock()
	c.link = l
	c.mu.Unlock()

	go c.readLoop(l)

	if _, err := c.request(ctx, proto.InboundTypeHello, proto.HelloData{Protocol: proto.ProtocolVersion}); err != nil {
		conn.Close(websocket.StatusNormalClosure, "hello failed")
		return fmt.Errorf("hello: %w", err)
	}
	c.log.Debug().Str("url", c.url).Msg("connected")
	return nil
}

func (c *Client) readLoop(l *link) {
	defer close(l.done)
	for {
		var env envelope
		if err := wsjson.Read(context.Background(), l.conn, &env); err != nil {
			l.err = err
			c.log.Debug().Err(err).Msg("read loop stopped")
			return
		}

		if env.Type == proto.OutboundTypeEvent && env.Event == proto.EventSessionUpdated {
			var sess proto.Session
			if err := json.Unmarshal(env.Data, &sess); err != nil {
				c.log.Warn().Err(err).Msg("malformed session_updated")
				continue
			}
			if !c.storeSession(sess) {
				continue
			}
			if c.opts.OnSession != nil {
				c.opts.OnSession(sess)
			}
			continue
		}

		if env.ID != "" && c.resolve(env) {
			continue
		}
		if env.Event == proto.EventNameRequired && c.opts.OnNameRequired != nil {
			var nr proto.NameRequired
			if err := json.Unmarshal(env.Data, &nr); err == nil {
				c.opts.OnNameRequired(nr)
			}
		}
	}
}

func (c *Client) resolve(env envelope) bool {
	c.mu.Lock()
	ch, ok := c.waiting[env.ID]
	delete(c.waiting, env.ID)
	c.mu.Unlock()
	if ok {
		ch <- env
	}
	return ok
}

func (c *Client) request(ctx context.Context, typ string, data any) (envelope, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return envelope{}, err
	}
	id := strconv.FormatUint(c.nextID.Add(1), 10)
	ch := make(chan envelope, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return envelope{}, ErrClosed
	}
	l := c.link
	c.waiting[id] = ch
	c.mu.Unlock()

	forget := func() {
		c.mu.Lock()
		delete(c.waiting, id)
		c.mu.Unlock()
	}

	if err := wsjson.Write(ctx, l.conn, proto.Inbound{Type: typ, ID: id, Data: payload}); err != nil {
		forget()
		return envelope{}, fmt.Errorf("send %s: %w", typ, err)
	}

	select {
	case env := <-ch:
		switch {
		case env.Type == proto.OutboundTypeError && env.Error != nil:
			return env, &ServerError{Code: env.Error.Code, Msg: env.Error.Msg}
		case env.Event == proto.EventNameRequired:
			return env, ErrNameRequired
		}
		return env, nil
	case <-l.done:
		forget()
		if l.err != nil {
			return envelope{}, fmt.Errorf("connection lost: %w", l.err)
		}
		return envelope{}, ErrClosed
	case <-ctx.Done():
		forget()
		return envelope{}, ctx.Err()
	}
}

func (c *Client) sessionReply(env envelope, err error) (proto.Session, error) {
	if err != nil {
		return proto.Session{}, err
	}
	var sess proto.Session
	if err := json.Unmarshal(env.Data, &sess); err != nil {
		return proto.Session{}, fmt.Errorf("decode session: %w", err)
	}
	c.storeSession(sess)
	return sess, nil
}

// storeSession keeps sess unless a newer snapshot of the same session is
// already held. Replies and broadcasts can arrive in either order.
func (c *Client) storeSession(sess proto.Session) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil && c.session.Code == sess.Code && c.session.Version > sess.Version {
		return false
	}
	c.session = &sess
	return true
}

// User returns the identity the client presents.
func (c *Client) User() proto.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

// Session returns the last snapshot seen, if any.
func (c *Client) Session() (proto.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return proto.Session{}, false
	}
	return *c.session, true
}

// Done is closed when the current connection drops.
func (c *Client) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.link.done
}

// CreateSession starts a new session. ErrNameRequired means the request is
// parked on the server until SetDisplayName.
func (c *Client) CreateSession(ctx context.Context) (proto.Session, error) {
	return c.sessionReply(c.request(ctx, proto.InboundTypeCreateSession, proto.CreateSessionData{User: c.User()}))
}

// JoinSession joins the session under code, creating it when it does not exist.
func (c *Client) JoinSession(ctx context.Context, code string) (proto.Session, error) {
	return c.sessionReply(c.request(ctx, proto.InboundTypeJoinSession, proto.JoinSessionData{Code: code, User: c.User()}))
}

// SetDisplayName saves the name to the user file, then sends it. When a
// request was parked the replayed session is returned.
func (c *Client) SetDisplayName(ctx context.Context, name string) (*proto.Session, error) {
	c.mu.Lock()
	c.user.DisplayName = name
	user := c.user
	c.mu.Unlock()

	if c.opts.UserFile != "" {
		if err := SaveUser(c.opts.UserFile, user); err != nil {
			return nil, fmt.Errorf("save user: %w", err)
		}
	}

	env, err := c.request(ctx, proto.InboundTypeSetDisplayName, proto.SetDisplayNameData{Name: name, UserID: user.UserID})
	if err != nil {
		return nil, err
	}

	var replayed struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(env.Data, &replayed); err != nil || replayed.Code == "" {
		return nil, nil
	}
	sess, err := c.sessionReply(env, nil)
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// Rejoin re-binds this connection to the session held before a reconnect.
func (c *Client) Rejoin(ctx context.Context) error {
	sess, ok := c.Session()
	if !ok {
		return ErrNoSession
	}
	_, err := c.request(ctx, proto.InboundTypeRejoinSession, proto.RejoinSessionData{
		UserID:    c.User().UserID,
		SessionID: sess.Code,
	})
	return err
}

// Reconnect drops the current connection, dials again and rejoins the held session.
func (c *Client) Reconnect(ctx context.Context) error {
	c.mu.Lock()
	old := c.link
	c.mu.Unlock()
	old.conn.Close(websocket.StatusGoingAway, "reconnecting")
	<-old.done

	if err := c.connect(ctx); err != nil {
		return err
	}
	if err := c.Rejoin(ctx); err != nil && !errors.Is(err, ErrNoSession) {
		return fmt.Errorf("rejoin: %w", err)
	}
	return nil
}

// LeaveSession leaves the held session.
func (c *Client) LeaveSession(ctx context.Context) error {
	if _, err := c.request(ctx, proto.InboundTypeLeaveSession, struct{}{}); err != nil {
		return err
	}
	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
	return nil
}

// FindMyActiveSession asks the server for a session this user already belongs to.
func (c *Client) FindMyActiveSession(ctx context.Context) (string, bool, error) {
	user := c.User()
	env, err := c.request(ctx, proto.InboundTypeFindMyActiveSessions, proto.FindMyActiveSessionsData{
		Name:   user.DisplayName,
		UserID: user.UserID,
	})
	if err != nil {
		return "", false, err
	}
	var active proto.ActiveSession
	if err := json.Unmarshal(env.Data, &active); err != nil {
		return "", false, fmt.Errorf("decode active session: %w", err)
	}
	return active.SessionID, active.SessionID != "", nil
}

// CheckSessionExists reports whether code refers to a live session.
func (c *Client) CheckSessionExists(ctx context.Context, code string) (bool, error) {
	env, err := c.request(ctx, proto.InboundTypeCheckSessionExists, proto.CheckSessionExistsData{Code: code})
	if err != nil {
		return false, err
	}
	var res proto.SessionExists
	if err := json.Unmarshal(env.Data, &res); err != nil {
		return false, fmt.Errorf("decode exists: %w", err)
	}
	return res.Exists, nil
}

// Close shuts the connection down.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	l := c.link
	c.mu.Unlock()

	err := l.conn.Close(websocket.StatusNormalClosure, "bye")
	<-l.done
	return err
}
