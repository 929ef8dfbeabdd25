package http

import (
	"context"
	"testing"
	"time"

	"github.com/vovakirdan/lobby-server/internal/proto"
)

func TestProtocolVersionMismatch(t *testing.T) {
	ts, _ := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	conn := dialWS(ctx, t, ts)
	send(ctx, t, conn, proto.InboundTypeHello, "h1", proto.HelloData{Protocol: proto.ProtocolVersion + 1})

	out := readUntil(ctx, t, conn, replyTo("h1"))
	if out.Type != proto.OutboundTypeError || out.Error == nil || out.Error.Code != "unsupported_version" {
		t.Fatalf("expected unsupported_version error, got %+v", out)
	}

	// The connection survives a rejected hello.
	send(ctx, t, conn, proto.InboundTypeHello, "h2", proto.HelloData{Protocol: proto.ProtocolVersion})
	out = readUntil(ctx, t, conn, replyTo("h2"))
	if out.Type != proto.OutboundTypeAck {
		t.Fatalf("expected ack for matching protocol, got %+v", out)
	}
}
