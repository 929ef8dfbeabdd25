package http

import "testing"

func TestRateLimiter(t *testing.T) {
	limiter := newRateLimiter(2)
	if !limiter.allow() || !limiter.allow() {
		t.Fatalf("first two messages should pass")
	}
	if limiter.allow() {
		t.Fatalf("third message should be limited")
	}

	limiter.counter.Store(0)
	if !limiter.allow() {
		t.Fatalf("reset should allow again")
	}

	unlimited := newRateLimiter(0)
	for i := 0; i < 1000; i++ {
		if !unlimited.allow() {
			t.Fatalf("zero limit must not throttle")
		}
	}
}
