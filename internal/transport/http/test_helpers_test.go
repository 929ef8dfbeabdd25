package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/lobby-server/internal/config"
	"github.com/vovakirdan/lobby-server/internal/core"
	"github.com/vovakirdan/lobby-server/internal/proto"
)

// testOutbound mirrors proto.Outbound with raw data for decoding in tests.
type testOutbound struct {
	Type  string          `json:"type"`
	ID    string          `json:"id"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func startTestServer(t *testing.T) (*httptest.Server, *core.Coordinator) {
	t.Helper()

	coord := core.NewCoordinator(core.NewSessionStore(4), core.NewConnectionRegistry(), nil, core.Options{})

	disabledLogger := zerolog.New(nil)
	cfg := config.Default()
	cfg.RateLimitPerMinute = 0

	server := NewServer(coord, &cfg, &disabledLogger, prometheus.NewRegistry())
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return ts, coord
}

func dialWS(ctx context.Context, t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func send(ctx context.Context, t *testing.T, conn *websocket.Conn, typ, id string, data any) {
	t.Helper()

	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal %s: %v", typ, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, ID: id, Data: payload}); err != nil {
		t.Fatalf("send %s: %v", typ, err)
	}
}

// readUntil reads outbound messages until match returns true.
func readUntil(ctx context.Context, t *testing.T, conn *websocket.Conn, match func(testOutbound) bool) testOutbound {
	t.Helper()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	for {
		var out testOutbound
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			t.Fatalf("read outbound: %v", err)
		}
		if match(out) {
			return out
		}
	}
}

func replyTo(id string) func(testOutbound) bool {
	return func(out testOutbound) bool { return out.ID == id }
}

func sessionUpdate(minMembers int) func(testOutbound) bool {
	return func(out testOutbound) bool {
		if out.Event != proto.EventSessionUpdated {
			return false
		}
		var sess proto.Session
		return json.Unmarshal(out.Data, &sess) == nil && len(sess.Members) >= minMembers
	}
}

func decodeSession(t *testing.T, out testOutbound) proto.Session {
	t.Helper()

	var sess proto.Session
	if err := json.Unmarshal(out.Data, &sess); err != nil {
		t.Fatalf("decode session from %+v: %v", out, err)
	}
	return sess
}

func memberNames(sess proto.Session) []string {
	names := make([]string, 0, len(sess.Members))
	for _, m := range sess.Members {
		names = append(names, m.DisplayName)
	}
	return names
}
