package core

import (
	"context"
	"sync"
)

// DefaultClientBuffer is the event buffer used when none is configured.
const DefaultClientBuffer = 32

// Client is the outbound side of one live connection as seen by the core layer.
// Direct replies go through Events. Session snapshots go through a one-slot
// mailbox: a newer snapshot replaces one the transport has not written yet,
// so a slow connection skips versions but always ends on the latest.
type Client struct {
	ID     string
	Events chan *Event
	// Updates is signalled when TakeUpdate has something for the writer.
	Updates chan struct{}

	mu     sync.Mutex
	latest *Event
}

// NewClient constructs a client with an initialized event channel.
func NewClient(id string, buffer int) *Client {
	if buffer <= 0 {
		buffer = DefaultClientBuffer
	}
	return &Client{
		ID:      id,
		Events:  make(chan *Event, buffer),
		Updates: make(chan struct{}, 1),
	}
}

// Deliver stores a snapshot for the writer without blocking. Returns false
// when it superseded a snapshot that was never written.
func (c *Client) Deliver(event *Event) bool {
	c.mu.Lock()
	fresh := c.latest == nil
	c.latest = event
	c.mu.Unlock()

	select {
	case c.Updates <- struct{}{}:
	default:
	}
	return fresh
}

// TakeUpdate returns the pending snapshot, if any, and empties the slot.
func (c *Client) TakeUpdate() *Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	ev := c.latest
	c.latest = nil
	return ev
}

// Reply enqueues a direct response, waiting for buffer space until ctx is done.
func (c *Client) Reply(ctx context.Context, event *Event) error {
	select {
	case c.Events <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
