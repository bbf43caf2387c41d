// Package gateway turns websocket frames into room actions and room events
// into websocket frames.
package gateway

import (
	"errors"
	"fmt"
	"sync"
)

// Outbox errors.
var (
	ErrOutboxClosed = errors.New("outbox closed")
	ErrOutboxFull   = errors.New("outbox full")
)

// DefaultOutboxSize is used when a non-positive size is requested.
const DefaultOutboxSize = 64

// Outbox buffers encoded frames for one connection. Pushes never block; the
// connection's writer goroutine drains Frames.
type Outbox struct {
	connectionID string
	frames       chan []byte
	mu           sync.Mutex
	closed       bool
}

// NewOutbox creates an Outbox for connectionID.
//
// Precondition: connectionID must be non-empty.
// Postcondition: Returns an Outbox with an open frames channel.
func NewOutbox(connectionID string, size int) *Outbox {
	if size <= 0 {
		size = DefaultOutboxSize
	}
	return &Outbox{
		connectionID: connectionID,
		frames:       make(chan []byte, size),
	}
}

// ConnectionID returns the connection this outbox serves.
func (o *Outbox) ConnectionID() string {
	return o.connectionID
}

// Push enqueues a frame.
//
// Postcondition: The frame is enqueued, or ErrOutboxClosed / ErrOutboxFull is returned.
func (o *Outbox) Push(frame []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return fmt.Errorf("connection %s: %w", o.connectionID, ErrOutboxClosed)
	}
	select {
	case o.frames <- frame:
		return nil
	default:
		return fmt.Errorf("connection %s: %w", o.connectionID, ErrOutboxFull)
	}
}

// Frames returns the read side of the buffer. It is closed by Close.
func (o *Outbox) Frames() <-chan []byte {
	return o.frames
}

// Close marks the outbox closed and closes the frames channel. Idempotent.
func (o *Outbox) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.closed {
		o.closed = true
		close(o.frames)
	}
}

// IsClosed reports whether the outbox has been closed.
func (o *Outbox) IsClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}
