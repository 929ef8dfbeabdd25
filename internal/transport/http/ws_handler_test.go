package http

import (
	"context"
	"encoding/json"
	"slices"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/vovakirdan/lobby-server/internal/proto"
)

func TestHealthEndpoint(t *testing.T) {
	ts, _ := startTestServer(t)

	resp, err := ts.Client().Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts, _ := startTestServer(t)

	resp, err := ts.Client().Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestWebSocketUpgradeSharesServerWithREST(t *testing.T) {
	ts, _ := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	conn := dialWS(ctx, t, ts)
	send(ctx, t, conn, proto.InboundTypeHello, "1", proto.HelloData{Protocol: proto.ProtocolVersion})
	if out := readUntil(ctx, t, conn, replyTo("1")); out.Type != proto.OutboundTypeAck {
		t.Fatalf("expected ack over upgraded connection, got %+v", out)
	}

	// Routes served by the router keep working next to the upgraded connection.
	resp, err := ts.Client().Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("unexpected health status: %d", resp.StatusCode)
	}
}

func TestWebSocketCreateJoinRejoin(t *testing.T) {
	ts, _ := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connA := dialWS(ctx, t, ts)
	send(ctx, t, connA, proto.InboundTypeCreateSession, "c1", proto.CreateSessionData{
		User: proto.User{UserID: "u-ana", DisplayName: "Ana"},
	})
	created := decodeSession(t, readUntil(ctx, t, connA, replyTo("c1")))
	if len(created.Code) != 4 {
		t.Fatalf("expected 4-char code, got %q", created.Code)
	}
	if got := memberNames(created); !slices.Equal(got, []string{"Ana"}) {
		t.Fatalf("unexpected members after create: %v", got)
	}

	connB := dialWS(ctx, t, ts)
	send(ctx, t, connB, proto.InboundTypeJoinSession, "j1", proto.JoinSessionData{
		Code: created.Code,
		User: proto.User{UserID: "u-bo", DisplayName: "Bo"},
	})
	joined := decodeSession(t, readUntil(ctx, t, connB, replyTo("j1")))
	if got := memberNames(joined); !slices.Equal(got, []string{"Ana", "Bo"}) {
		t.Fatalf("unexpected members after join: %v", got)
	}

	pushed := decodeSession(t, readUntil(ctx, t, connA, sessionUpdate(2)))
	if pushed.Version != joined.Version {
		t.Fatalf("A saw version %d, B was acked with %d", pushed.Version, joined.Version)
	}

	// B drops and comes back on a fresh connection with the same user id.
	connB.Close(websocket.StatusNormalClosure, "bye")

	connB2 := dialWS(ctx, t, ts)
	send(ctx, t, connB2, proto.InboundTypeRejoinSession, "r1", proto.RejoinSessionData{
		UserID:    "u-bo",
		SessionID: created.Code,
	})
	if out := readUntil(ctx, t, connB2, replyTo("r1")); out.Type != proto.OutboundTypeAck {
		t.Fatalf("expected ack for rejoin, got %+v", out)
	}

	again := decodeSession(t, readUntil(ctx, t, connA, sessionUpdate(2)))
	if got := memberNames(again); !slices.Equal(got, []string{"Ana", "Bo"}) {
		t.Fatalf("rejoin changed membership: %v", got)
	}
	if again.Version < pushed.Version {
		t.Fatalf("snapshot went backwards after rejoin: %d then %d", pushed.Version, again.Version)
	}

	// Joining an unknown code materializes a session under exactly that code.
	connC := dialWS(ctx, t, ts)
	send(ctx, t, connC, proto.InboundTypeJoinSession, "j2", proto.JoinSessionData{
		Code: "zz99",
		User: proto.User{UserID: "u-cy", DisplayName: "Cy"},
	})
	fresh := decodeSession(t, readUntil(ctx, t, connC, replyTo("j2")))
	if fresh.Code != "ZZ99" || !slices.Equal(memberNames(fresh), []string{"Cy"}) {
		t.Fatalf("unexpected materialized session: %+v", fresh)
	}
}

func TestWebSocketNameRequiredThenReplay(t *testing.T) {
	ts, _ := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dialWS(ctx, t, ts)
	send(ctx, t, conn, proto.InboundTypeCreateSession, "c1", proto.CreateSessionData{
		User: proto.User{UserID: "u-anon"},
	})

	out := readUntil(ctx, t, conn, replyTo("c1"))
	if out.Type != proto.OutboundTypeEvent || out.Event != proto.EventNameRequired {
		t.Fatalf("expected name_required, got %+v", out)
	}
	var required proto.NameRequired
	if err := json.Unmarshal(out.Data, &required); err != nil {
		t.Fatalf("decode name_required: %v", err)
	}
	if required.UserID != "u-anon" || required.Action != "create_session" {
		t.Fatalf("unexpected name_required payload: %+v", required)
	}

	send(ctx, t, conn, proto.InboundTypeSetDisplayName, "n1", proto.SetDisplayNameData{Name: "   "})
	out = readUntil(ctx, t, conn, replyTo("n1"))
	if out.Type != proto.OutboundTypeError || out.Error.Code != "invalid_name" {
		t.Fatalf("expected invalid_name, got %+v", out)
	}

	send(ctx, t, conn, proto.InboundTypeSetDisplayName, "n2", proto.SetDisplayNameData{Name: "Dee"})
	sess := decodeSession(t, readUntil(ctx, t, conn, replyTo("n2")))
	if !slices.Equal(memberNames(sess), []string{"Dee"}) {
		t.Fatalf("replayed create produced %+v", sess)
	}
	if sess.Members[0].UserID != "u-anon" {
		t.Fatalf("replay lost the user id: %+v", sess.Members[0])
	}
}

func TestWebSocketFindAndCheck(t *testing.T) {
	ts, _ := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dialWS(ctx, t, ts)
	send(ctx, t, conn, proto.InboundTypeCheckSessionExists, "x1", proto.CheckSessionExistsData{Code: "ABCD"})
	var exists proto.SessionExists
	if err := json.Unmarshal(readUntil(ctx, t, conn, replyTo("x1")).Data, &exists); err != nil {
		t.Fatalf("decode exists: %v", err)
	}
	if exists.Exists {
		t.Fatalf("expected ABCD to be unknown")
	}

	send(ctx, t, conn, proto.InboundTypeCreateSession, "c1", proto.CreateSessionData{
		User: proto.User{UserID: "u-eve", DisplayName: "Eve"},
	})
	sess := decodeSession(t, readUntil(ctx, t, conn, replyTo("c1")))

	send(ctx, t, conn, proto.InboundTypeCheckSessionExists, "x2", proto.CheckSessionExistsData{Code: sess.Code})
	if err := json.Unmarshal(readUntil(ctx, t, conn, replyTo("x2")).Data, &exists); err != nil {
		t.Fatalf("decode exists: %v", err)
	}
	if !exists.Exists {
		t.Fatalf("expected %s to exist", sess.Code)
	}

	other := dialWS(ctx, t, ts)
	send(ctx, t, other, proto.InboundTypeFindMyActiveSessions, "f1", proto.FindMyActiveSessionsData{Name: "eve"})
	var active proto.ActiveSession
	if err := json.Unmarshal(readUntil(ctx, t, other, replyTo("f1")).Data, &active); err != nil {
		t.Fatalf("decode active session: %v", err)
	}
	if active.SessionID != sess.Code {
		t.Fatalf("expected active session %s, got %q", sess.Code, active.SessionID)
	}
}

func TestWebSocketLeaveAndErrors(t *testing.T) {
	ts, _ := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dialWS(ctx, t, ts)

	send(ctx, t, conn, "shout", "e1", nil)
	if out := readUntil(ctx, t, conn, replyTo("e1")); out.Error == nil || out.Error.Code != "bad_request" {
		t.Fatalf("expected bad_request, got %+v", out)
	}

	send(ctx, t, conn, proto.InboundTypeLeaveSession, "l0", nil)
	if out := readUntil(ctx, t, conn, replyTo("l0")); out.Error == nil || out.Error.Code != "not_in_session" {
		t.Fatalf("expected not_in_session, got %+v", out)
	}

	send(ctx, t, conn, proto.InboundTypeJoinSession, "j1", proto.JoinSessionData{
		Code: "no!",
		User: proto.User{UserID: "u-fay", DisplayName: "Fay"},
	})
	if out := readUntil(ctx, t, conn, replyTo("j1")); out.Error == nil || out.Error.Code != "invalid_code" {
		t.Fatalf("expected invalid_code, got %+v", out)
	}

	send(ctx, t, conn, proto.InboundTypeRejoinSession, "r1", proto.RejoinSessionData{SessionID: "ABCD"})
	if out := readUntil(ctx, t, conn, replyTo("r1")); out.Error == nil || out.Error.Code != "bad_request" {
		t.Fatalf("expected bad_request for missing user id, got %+v", out)
	}

	send(ctx, t, conn, proto.InboundTypeJoinSession, "j2", proto.JoinSessionData{
		Code: "ROOM",
		User: proto.User{UserID: "u-fay", DisplayName: "Fay"},
	})
	readUntil(ctx, t, conn, replyTo("j2"))

	send(ctx, t, conn, proto.InboundTypeLeaveSession, "l1", nil)
	if out := readUntil(ctx, t, conn, replyTo("l1")); out.Type != proto.OutboundTypeAck {
		t.Fatalf("expected ack for leave, got %+v", out)
	}

	resp, err := ts.Client().Get(ts.URL + "/api/sessions/ROOM")
	if err != nil {
		t.Fatalf("lookup request failed: %v", err)
	}
	defer resp.Body.Close()
	var sess proto.Session
	if err := json.NewDecoder(resp.Body).Decode(&sess); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if len(sess.Members) != 0 {
		t.Fatalf("expected empty session after leave, got %v", memberNames(sess))
	}
}
