package core

import (
	"sort"
	"strings"
	"sync"
	"time"
)

type sessionEntry struct {
	code       string
	members    []User
	index      map[string]int
	version    uint64
	createdAt  time.Time
	lastActive time.Time
}

func (e *sessionEntry) snapshot() Session {
	members := make([]User, len(e.members))
	copy(members, e.members)
	return Session{
		Code:       e.code,
		Members:    members,
		Version:    e.version,
		CreatedAt:  e.createdAt,
		LastActive: e.lastActive,
	}
}

// upsert adds user or refreshes a changed display name. Returns true if the
// member view changed.
func (e *sessionEntry) upsert(user User) bool {
	if i, ok := e.index[user.ID]; ok {
		if user.DisplayName == "" || e.members[i].DisplayName == user.DisplayName {
			return false
		}
		e.members[i].DisplayName = user.DisplayName
		return true
	}
	e.index[user.ID] = len(e.members)
	e.members = append(e.members, user)
	return true
}

func (e *sessionEntry) remove(userID string) bool {
	i, ok := e.index[userID]
	if !ok {
		return false
	}
	e.members = append(e.members[:i], e.members[i+1:]...)
	delete(e.index, userID)
	for j := i; j < len(e.members); j++ {
		e.index[e.members[j].ID] = j
	}
	return true
}

// StoreOption customizes a SessionStore.
type StoreOption func(*SessionStore)

// WithClock overrides the time source.
func WithClock(now func() time.Time) StoreOption {
	return func(s *SessionStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithCodeGenerator overrides code generation.
func WithCodeGenerator(gen func(length int) string) StoreOption {
	return func(s *SessionStore) {
		if gen != nil {
			s.newCode = gen
		}
	}
}

// SessionStore is the authoritative in-memory table of live sessions keyed by code.
// All methods are safe for concurrent use and return copies.
type SessionStore struct {
	mu         sync.RWMutex
	sessions   map[string]*sessionEntry
	codeLength int
	now        func() time.Time
	newCode    func(length int) string
}

// NewSessionStore creates an empty store generating codes of codeLength characters.
func NewSessionStore(codeLength int, opts ...StoreOption) *SessionStore {
	if codeLength <= 0 || codeLength > maxCodeLength {
		codeLength = DefaultCodeLength
	}
	s := &SessionStore{
		sessions:   make(map[string]*sessionEntry),
		codeLength: codeLength,
		now:        func() time.Time { return time.Now().UTC() },
		newCode:    NewCode,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create makes a session under a freshly generated code with owner as the only member.
// Codes are regenerated until unique; generation and insert happen under one lock.
func (s *SessionStore) Create(owner User) Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	code := s.newCode(s.codeLength)
	for {
		if _, exists := s.sessions[code]; !exists {
			break
		}
		code = s.newCode(s.codeLength)
	}
	return s.insertLocked(code, owner).snapshot()
}

// CreateWithCode makes a session under the given, already normalized, code.
func (s *SessionStore) CreateWithCode(code string, owner User) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[code]; exists {
		return Session{}, ErrSessionExists
	}
	return s.insertLocked(code, owner).snapshot(), nil
}

func (s *SessionStore) insertLocked(code string, owner User) *sessionEntry {
	now := s.now()
	entry := &sessionEntry{
		code:       code,
		index:      make(map[string]int),
		version:    1,
		createdAt:  now,
		lastActive: now,
	}
	entry.upsert(owner)
	s.sessions[code] = entry
	return entry
}

// Lookup returns the session snapshot for code.
func (s *SessionStore) Lookup(code string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.sessions[code]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return entry.snapshot(), nil
}

// Exists reports whether a live session uses code.
func (s *SessionStore) Exists(code string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[code]
	return ok
}

// AddMember adds user to the session. Adding an existing member does not
// duplicate it; a changed non-empty display name is refreshed in place.
func (s *SessionStore) AddMember(code string, user User) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[code]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	s.addLocked(entry, user)
	return entry.snapshot(), nil
}

func (s *SessionStore) addLocked(entry *sessionEntry, user User) {
	if entry.upsert(user) {
		entry.version++
	}
	entry.lastActive = s.now()
}

// JoinOrCreate adds user to the session under code, creating the session when
// the code refers to nothing. The check and the mutation are atomic, so
// concurrent callers with the same unknown code end up in one session.
func (s *SessionStore) JoinOrCreate(code string, user User) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.sessions[code]; ok {
		s.addLocked(entry, user)
		return entry.snapshot(), false
	}
	return s.insertLocked(code, user).snapshot(), true
}

// RemoveMember drops userID from the session. The session itself stays even when empty.
func (s *SessionStore) RemoveMember(code, userID string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[code]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	if entry.remove(userID) {
		entry.version++
	}
	entry.lastActive = s.now()
	return entry.snapshot(), nil
}

// Touch marks the session as active now.
func (s *SessionStore) Touch(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.sessions[code]; ok {
		entry.lastActive = s.now()
	}
}

// Remove deletes the session. Returns true if it existed.
func (s *SessionStore) Remove(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[code]; !ok {
		return false
	}
	delete(s.sessions, code)
	return true
}

// IdleSince lists codes whose last activity is before cutoff.
func (s *SessionStore) IdleSince(cutoff time.Time) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var codes []string
	for code, entry := range s.sessions {
		if entry.lastActive.Before(cutoff) {
			codes = append(codes, code)
		}
	}
	return codes
}

// RemoveIfIdle deletes the session only if it is still idle relative to cutoff.
func (s *SessionStore) RemoveIfIdle(code string, cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[code]
	if !ok || !entry.lastActive.Before(cutoff) {
		return false
	}
	delete(s.sessions, code)
	return true
}

// FindByMember returns the most recently active session containing userID.
func (s *SessionStore) FindByMember(userID string) (Session, bool) {
	return s.findLatest(func(e *sessionEntry) bool {
		_, ok := e.index[userID]
		return ok
	})
}

// FindByMemberName returns the most recently active session with a member
// called name (case-insensitive).
func (s *SessionStore) FindByMemberName(name string) (Session, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Session{}, false
	}
	return s.findLatest(func(e *sessionEntry) bool {
		for _, m := range e.members {
			if strings.EqualFold(m.DisplayName, name) {
				return true
			}
		}
		return false
	})
}

func (s *SessionStore) findLatest(match func(*sessionEntry) bool) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *sessionEntry
	for _, entry := range s.sessions {
		if !match(entry) {
			continue
		}
		if best == nil || entry.lastActive.After(best.lastActive) {
			best = entry
		}
	}
	if best == nil {
		return Session{}, false
	}
	return best.snapshot(), true
}

// Codes returns all live session codes in sorted order.
func (s *SessionStore) Codes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	codes := make([]string, 0, len(s.sessions))
	for code := range s.sessions {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Count returns the number of live sessions.
func (s *SessionStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
