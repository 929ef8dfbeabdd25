package store

import (
	"context"
	"errors"
	"time"
)

// ErrUserNotFound is returned when no user record exists for an id.
var ErrUserNotFound = errors.New("user not found")

// User is the persisted identity of a client.
type User struct {
	ID          string
	DisplayName string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// GetUser retrieves a user by client-generated id.
	GetUser(ctx context.Context, id string) (*User, error)

	// UpsertUser creates the user or overwrites its display name.
	UpsertUser(ctx context.Context, id, displayName string) error
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore

	// Close closes the underlying database connection.
	Close() error
}
