package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/vovakirdan/lobby-server/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := NewWithSetup(":memory:", Migrate)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestGetUserNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetUser(context.Background(), "missing")
	if !errors.Is(err, store.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestUpsertUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		id       string
		display  string
		expected string
	}{
		{name: "insert", id: "u1", display: "Ana", expected: "Ana"},
		{name: "overwrite", id: "u1", display: "Ana Maria", expected: "Ana Maria"},
		{name: "second user", id: "u2", display: "Bo", expected: "Bo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.UpsertUser(ctx, tt.id, tt.display); err != nil {
				t.Fatalf("UpsertUser failed: %v", err)
			}
			user, err := s.GetUser(ctx, tt.id)
			if err != nil {
				t.Fatalf("GetUser failed: %v", err)
			}
			if user.DisplayName != tt.expected {
				t.Errorf("expected display name %q, got %q", tt.expected, user.DisplayName)
			}
			if user.CreatedAt.IsZero() {
				t.Errorf("expected created_at to be set")
			}
		})
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := newTestStore(t)

	if err := Migrate(s.db); err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}
}
