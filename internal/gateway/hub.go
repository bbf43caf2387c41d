package gateway

import (
	"fmt"
	"sync"
)

// Hub maps connection ids to their outboxes.
type Hub struct {
	mu       sync.RWMutex
	outboxes map[string]*Outbox
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{outboxes: make(map[string]*Outbox)}
}

// Register adds ob under its connection id, replacing and closing any previous one.
func (h *Hub) Register(ob *Outbox) {
	h.mu.Lock()
	prev := h.outboxes[ob.ConnectionID()]
	h.outboxes[ob.ConnectionID()] = ob
	h.mu.Unlock()
	if prev != nil && prev != ob {
		prev.Close()
	}
}

// Unregister removes and closes the outbox for connectionID.
func (h *Hub) Unregister(connectionID string) {
	h.mu.Lock()
	ob := h.outboxes[connectionID]
	delete(h.outboxes, connectionID)
	h.mu.Unlock()
	if ob != nil {
		ob.Close()
	}
}

// Send pushes frame to connectionID without blocking.
func (h *Hub) Send(connectionID string, frame []byte) error {
	h.mu.RLock()
	ob, ok := h.outboxes[connectionID]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("connection %s: %w", connectionID, ErrOutboxClosed)
	}
	return ob.Push(frame)
}

// Count returns the number of registered connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.outboxes)
}

// CloseAll closes every outbox, ending every writer.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	all := h.outboxes
	h.outboxes = make(map[string]*Outbox)
	h.mu.Unlock()
	for _, ob := range all {
		ob.Close()
	}
}
