package realtime

import (
	"sync"

	"github.com/coder/websocket"

	v1 "studyrooms/shared/contracts/realtime/v1"
)

// Client represents one connected websocket session.
//
// Send is never closed by the server so concurrent broadcasters cannot panic;
// done signals the connection goroutines to stop.
type Client struct {
	ID     string
	UserID int64
	RoomID string
	Send   chan v1.Envelope

	done      chan struct{}
	closeOnce sync.Once

	mu          sync.Mutex
	closeCode   websocket.StatusCode
	closeReason string
}

// NewClient constructs a Client with a bounded send queue.
func NewClient(id string, userID int64, roomID string, sendQueueSize int) *Client {
	if sendQueueSize <= 0 {
		sendQueueSize = wsDefaultSendQueueSize
	}
	return &Client{
		ID:          id,
		UserID:      userID,
		RoomID:      roomID,
		Send:        make(chan v1.Envelope, sendQueueSize),
		done:        make(chan struct{}),
		closeCode:   websocket.StatusNormalClosure,
		closeReason: "bye",
	}
}

// Done returns a channel that is closed when the client is shutting down.
func (c *Client) Done() <-chan struct{} {
	if c == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return c.done
}

// Close signals shutdown with a normal closure (idempotent).
func (c *Client) Close() {
	c.CloseWith(websocket.StatusNormalClosure, "bye")
}

// CloseWith signals shutdown; only the first call's status is kept.
func (c *Client) CloseWith(code websocket.StatusCode, reason string) {
	if c == nil {
		return
	}
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closeCode, c.closeReason = code, reason
		c.mu.Unlock()
		close(c.done)
	})
}

// CloseStatus returns the status the connection should be closed with.
func (c *Client) CloseStatus() (websocket.StatusCode, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCode, c.closeReason
}

// offer enqueues env without blocking. A client whose queue is full is a slow
// consumer and gets disconnected.
func (c *Client) offer(env v1.Envelope) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.Send <- env:
		return true
	default:
		c.CloseWith(websocket.StatusPolicyViolation, "slow consumer")
		return false
	}
}
