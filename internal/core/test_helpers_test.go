package core

import (
	"testing"
	"time"
)

// mustSnapshot waits for the client's snapshot slot to be filled and takes it.
func mustSnapshot(t testing.TB, client *Client) *Session {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		if ev := client.TakeUpdate(); ev != nil {
			if ev.Kind != EventSessionUpdated || ev.Session == nil {
				t.Fatalf("unexpected update %+v", ev)
			}
			return ev.Session
		}
		select {
		case <-client.Updates:
		case <-deadline:
			t.Fatalf("client %s received no session snapshot", client.ID)
			return nil
		}
	}
}

func mustHaveNoSnapshot(t *testing.T, client *Client) {
	t.Helper()

	if ev := client.TakeUpdate(); ev != nil {
		t.Fatalf("client %s got unexpected snapshot %+v", client.ID, ev.Session)
	}
}
