// Package session tracks durable player sessions: which room a session
// belongs to and which transport connection currently speaks for it.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned for unknown or invalidated session ids.
var ErrSessionNotFound = errors.New("session not found")

// Entry is one registered session.
type Entry struct {
	// ID is the opaque bearer token handed to the client.
	ID string
	// Name is the display name the session was created with.
	Name string
	// RoomCode is the room the session plays in; empty until attached.
	RoomCode string
	// ConnectionID is the live transport connection, empty while disconnected.
	ConnectionID string
	// CreatedAt is when the session was issued.
	CreatedAt time.Time
}

// Registry maps session ids to rooms and connection ids to sessions.
// All methods are safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	sessions    map[string]*Entry // session id → entry
	connections map[string]string // connection id → session id
	now         func() time.Time
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions:    make(map[string]*Entry),
		connections: make(map[string]string),
		now:         time.Now,
	}
}

// Create issues a new session for name.
//
// Postcondition: Returns a fresh "sess_"-prefixed UUIDv4 token registered with no room.
func (r *Registry) Create(name string) string {
	id := "sess_" + uuid.NewString()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[id] = &Entry{ID: id, Name: name, CreatedAt: r.now()}
	return id
}

// AttachRoom records the room a session plays in.
//
// Precondition: sessionID must be registered.
// Postcondition: Resolve(sessionID) returns code, or ErrSessionNotFound is returned.
func (r *Registry) AttachRoom(sessionID, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[sessionID]
	if !ok {
		return fmt.Errorf("attaching room %s: %w", code, ErrSessionNotFound)
	}
	e.RoomCode = code
	return nil
}

// BindConnection makes connectionID the live connection for sessionID.
// Rebinding moves the reverse index; binding the same pair twice is a no-op.
//
// Precondition: sessionID must be registered; connectionID must be non-empty.
// Postcondition: SessionForConnection(connectionID) == sessionID.
func (r *Registry) BindConnection(sessionID, connectionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[sessionID]
	if !ok {
		return fmt.Errorf("binding connection %s: %w", connectionID, ErrSessionNotFound)
	}
	if e.ConnectionID == connectionID {
		r.connections[connectionID] = sessionID
		return nil
	}
	if e.ConnectionID != "" {
		delete(r.connections, e.ConnectionID)
	}
	if prev, ok := r.connections[connectionID]; ok && prev != sessionID {
		if pe, ok := r.sessions[prev]; ok && pe.ConnectionID == connectionID {
			pe.ConnectionID = ""
		}
	}
	e.ConnectionID = connectionID
	r.connections[connectionID] = sessionID
	return nil
}

// UnbindConnection forgets connectionID.
//
// Postcondition: Returns the session the connection spoke for, if any. The
// session's ConnectionID is cleared only when it still points at connectionID.
func (r *Registry) UnbindConnection(connectionID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessionID, ok := r.connections[connectionID]
	if !ok {
		return "", false
	}
	delete(r.connections, connectionID)
	if e, ok := r.sessions[sessionID]; ok && e.ConnectionID == connectionID {
		e.ConnectionID = ""
	}
	return sessionID, true
}

// Resolve returns the room code attached to sessionID.
//
// Postcondition: Returns (code, true) for a registered session with a room, or ("", false).
func (r *Registry) Resolve(sessionID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.sessions[sessionID]
	if !ok || e.RoomCode == "" {
		return "", false
	}
	return e.RoomCode, true
}

// Get returns a copy of the entry for sessionID.
func (r *Registry) Get(sessionID string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.sessions[sessionID]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// SessionForConnection returns the session a connection speaks for.
func (r *Registry) SessionForConnection(connectionID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.connections[connectionID]
	return id, ok
}

// Remove invalidates sessionID and drops its connection binding.
//
// Postcondition: Resolve(sessionID) reports not found. Removing an unknown id is a no-op.
func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[sessionID]
	if !ok {
		return
	}
	if e.ConnectionID != "" && r.connections[e.ConnectionID] == sessionID {
		delete(r.connections, e.ConnectionID)
	}
	delete(r.sessions, sessionID)
}

// Count returns the number of registered sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
