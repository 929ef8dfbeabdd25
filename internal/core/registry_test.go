package core

import (
	"errors"
	"slices"
	"testing"
)

func TestRegistryBindingsAndLookup(t *testing.T) {
	reg := NewConnectionRegistry()
	a := NewClient("a", 1)
	b := NewClient("b", 1)
	reg.Register(a)
	reg.Register(b)

	if err := reg.BindUser("a", "u1"); err != nil {
		t.Fatalf("bind user: %v", err)
	}
	if err := reg.BindSession("a", "KITE"); err != nil {
		t.Fatalf("bind session: %v", err)
	}
	if err := reg.BindUser("b", "u1"); err != nil {
		t.Fatalf("bind user: %v", err)
	}
	if err := reg.BindSession("missing", "KITE"); !errors.Is(err, ErrConnectionNotFound) {
		t.Fatalf("expected ErrConnectionNotFound, got %v", err)
	}

	conn, ok := reg.FindByUser("u1")
	if !ok || conn.ID != "a" {
		t.Fatalf("expected the session-bound connection, got %+v", conn)
	}
	if ids := reg.ConnectionsForSession("KITE"); !slices.Equal(ids, []string{"a"}) {
		t.Fatalf("unexpected connections %v", ids)
	}

	reg.UnbindSession("a")
	if ids := reg.ConnectionsForSession("KITE"); len(ids) != 0 {
		t.Fatalf("expected no bound connections, got %v", ids)
	}

	removed, ok := reg.Unregister("a")
	if !ok || removed.UserID != "u1" {
		t.Fatalf("unexpected unregister result %+v %v", removed, ok)
	}
	if reg.Count() != 1 {
		t.Fatalf("expected one connection left, got %d", reg.Count())
	}
}

func TestRegistryPendingSlotReplacesAndDrains(t *testing.T) {
	reg := NewConnectionRegistry()
	reg.Register(NewClient("a", 1))

	if err := reg.SetPending("a", PendingAction{Kind: PendingCreate}); err != nil {
		t.Fatalf("set pending: %v", err)
	}
	if err := reg.SetPending("a", PendingAction{Kind: PendingJoin, Code: "KITE"}); err != nil {
		t.Fatalf("set pending: %v", err)
	}
	if conn, _ := reg.Get("a"); !conn.HasPending {
		t.Fatalf("expected pending flag")
	}
	if peeked, ok := reg.PeekPending("a"); !ok || peeked.Kind != PendingJoin {
		t.Fatalf("peek should see the later action, got %+v", peeked)
	}

	action, ok := reg.TakePending("a")
	if !ok || action.Kind != PendingJoin || action.Code != "KITE" {
		t.Fatalf("expected the later action, got %+v %v", action, ok)
	}
	if _, ok := reg.TakePending("a"); ok {
		t.Fatalf("pending action must be taken once")
	}

	if err := reg.SetPending("a", PendingAction{Kind: PendingRejoin}); err != nil {
		t.Fatalf("set pending: %v", err)
	}
	if conn, _ := reg.Unregister("a"); !conn.HasPending {
		t.Fatalf("unregister should report the dropped action")
	}
	if _, ok := reg.TakePending("a"); ok {
		t.Fatalf("pending action must not survive disconnect")
	}
}

func TestRegistrySendKeepsLatestSnapshot(t *testing.T) {
	reg := NewConnectionRegistry()
	client := NewClient("a", 1)
	reg.Register(client)

	older := &Event{Kind: EventSessionUpdated, Session: &Session{Code: "KITE", Version: 1}}
	newer := &Event{Kind: EventSessionUpdated, Session: &Session{Code: "KITE", Version: 2}}
	if !reg.Send("a", older) {
		t.Fatalf("first snapshot should be delivered")
	}
	if reg.Send("a", newer) {
		t.Fatalf("second snapshot should report that it replaced an unwritten one")
	}
	if got := client.TakeUpdate(); got != newer {
		t.Fatalf("expected the newest snapshot, got %+v", got.Session)
	}
	if client.TakeUpdate() != nil {
		t.Fatalf("slot should be empty after take")
	}
	if reg.Send("missing", newer) {
		t.Fatalf("send to unknown connection should fail")
	}
}

func TestPendingKindString(t *testing.T) {
	tests := map[PendingKind]string{
		PendingCreate: "create_session",
		PendingJoin:   "join_session",
		PendingRejoin: "rejoin_session",
	}
	for kind, want := range tests {
		if got := kind.String(); got != want {
			t.Fatalf("%d: got %q, want %q", kind, got, want)
		}
	}
}
