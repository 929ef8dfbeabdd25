package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/lobby-server/internal/store"
)

const maxDisplayNameLen = 32

// ValidateDisplayName trims name and checks its length.
func ValidateDisplayName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxDisplayNameLen {
		return "", ErrInvalidName
	}
	return name, nil
}

// NewUserID returns a fresh opaque user id for clients that did not bring one.
func NewUserID() string {
	return uuid.NewString()
}

// IdentityResolver turns a self-asserted user into a (userId, displayName) pair.
// Names are cached in process and written through to an optional directory so
// they survive for future connections of the same client.
type IdentityResolver struct {
	mu    sync.RWMutex
	names map[string]string
	dir   store.UserStore
	log   *zerolog.Logger
}

// NewIdentityResolver builds a resolver. dir may be nil.
func NewIdentityResolver(dir store.UserStore, logger *zerolog.Logger) *IdentityResolver {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &IdentityResolver{
		names: make(map[string]string),
		dir:   dir,
		log:   logger,
	}
}

// Resolve fills in the display name of requested. The bool is false when no
// name is known yet and the caller has to ask the client for one.
// A non-empty requested name wins and is remembered.
func (r *IdentityResolver) Resolve(ctx context.Context, requested User) (User, bool, error) {
	if requested.ID == "" {
		requested.ID = NewUserID()
	}

	if strings.TrimSpace(requested.DisplayName) != "" {
		user, err := r.SetDisplayName(ctx, requested.ID, requested.DisplayName)
		if err != nil {
			return requested, false, err
		}
		return user, true, nil
	}

	if name, ok := r.Lookup(ctx, requested.ID); ok {
		return User{ID: requested.ID, DisplayName: name}, true, nil
	}
	return User{ID: requested.ID}, false, nil
}

// Lookup returns the known display name of userID.
func (r *IdentityResolver) Lookup(ctx context.Context, userID string) (string, bool) {
	r.mu.RLock()
	name, ok := r.names[userID]
	r.mu.RUnlock()
	if ok {
		return name, true
	}
	if r.dir == nil {
		return "", false
	}

	u, err := r.dir.GetUser(ctx, userID)
	if err != nil {
		if !errors.Is(err, store.ErrUserNotFound) {
			r.log.Warn().Err(err).Str("user_id", userID).Msg("identity directory lookup failed")
		}
		return "", false
	}
	if u.DisplayName == "" {
		return "", false
	}

	r.mu.Lock()
	r.names[userID] = u.DisplayName
	r.mu.Unlock()
	return u.DisplayName, true
}

// SetDisplayName stores name for userID, overwriting any previous one.
// An empty name is rejected with ErrInvalidName.
func (r *IdentityResolver) SetDisplayName(ctx context.Context, userID, name string) (User, error) {
	name, err := ValidateDisplayName(name)
	if err != nil {
		return User{ID: userID}, err
	}

	r.mu.Lock()
	prev, known := r.names[userID]
	r.names[userID] = name
	r.mu.Unlock()

	if r.dir != nil && (!known || prev != name) {
		if err := r.dir.UpsertUser(ctx, userID, name); err != nil {
			r.log.Warn().Err(err).Str("user_id", userID).Msg("identity directory write failed")
		}
	}
	return User{ID: userID, DisplayName: name}, nil
}
