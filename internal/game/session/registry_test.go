package session

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestRegistry_Create(t *testing.T) {
	r := NewRegistry()
	id := r.Create("Alice")
	assert.True(t, strings.HasPrefix(id, "sess_"))
	assert.Equal(t, 1, r.Count())

	e, ok := r.Get(id)
	require.True(t, ok)
	assert.Equal(t, "Alice", e.Name)
	assert.Empty(t, e.RoomCode)

	_, ok = r.Resolve(id)
	assert.False(t, ok, "session without a room must not resolve")
}

func TestRegistry_CreateUnique(t *testing.T) {
	r := NewRegistry()
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := r.Create("p")
		require.False(t, seen[id])
		seen[id] = true
	}
}

func TestRegistry_AttachAndResolve(t *testing.T) {
	r := NewRegistry()
	id := r.Create("Alice")
	require.NoError(t, r.AttachRoom(id, "AB3Q"))

	code, ok := r.Resolve(id)
	require.True(t, ok)
	assert.Equal(t, "AB3Q", code)
}

func TestRegistry_AttachUnknown(t *testing.T) {
	r := NewRegistry()
	err := r.AttachRoom("sess_missing", "AB3Q")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRegistry_BindConnectionIdempotent(t *testing.T) {
	r := NewRegistry()
	id := r.Create("Alice")
	require.NoError(t, r.BindConnection(id, "c1"))
	require.NoError(t, r.BindConnection(id, "c1"))

	got, ok := r.SessionForConnection("c1")
	require.True(t, ok)
	assert.Equal(t, id, got)

	e, _ := r.Get(id)
	assert.Equal(t, "c1", e.ConnectionID)
}

func TestRegistry_RebindMovesReverseIndex(t *testing.T) {
	r := NewRegistry()
	id := r.Create("Alice")
	require.NoError(t, r.BindConnection(id, "c1"))
	require.NoError(t, r.BindConnection(id, "c2"))

	_, ok := r.SessionForConnection("c1")
	assert.False(t, ok, "old connection must no longer map to the session")
	got, ok := r.SessionForConnection("c2")
	require.True(t, ok)
	assert.Equal(t, id, got)
}

func TestRegistry_UnbindStaleConnectionKeepsLiveOne(t *testing.T) {
	r := NewRegistry()
	id := r.Create("Alice")
	require.NoError(t, r.BindConnection(id, "c1"))
	require.NoError(t, r.BindConnection(id, "c2"))

	_, ok := r.UnbindConnection("c1")
	assert.False(t, ok)

	sid, ok := r.UnbindConnection("c2")
	require.True(t, ok)
	assert.Equal(t, id, sid)
	e, _ := r.Get(id)
	assert.Empty(t, e.ConnectionID)
}

func TestRegistry_BindUnknown(t *testing.T) {
	r := NewRegistry()
	assert.ErrorIs(t, r.BindConnection("nope", "c1"), ErrSessionNotFound)
}

func TestRegistry_Remove(t *testing.T) {
	r := NewRegistry()
	id := r.Create("Alice")
	require.NoError(t, r.AttachRoom(id, "AB3Q"))
	require.NoError(t, r.BindConnection(id, "c1"))

	r.Remove(id)
	assert.Equal(t, 0, r.Count())
	_, ok := r.Resolve(id)
	assert.False(t, ok)
	_, ok = r.SessionForConnection("c1")
	assert.False(t, ok)

	r.Remove(id)
}

func TestRegistry_ConcurrentCreateRemove(t *testing.T) {
	r := NewRegistry()
	const n = 100
	ids := make([]string, n)
	var wg sync.WaitGroup

	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			ids[i] = r.Create(fmt.Sprintf("P%d", i))
			_ = r.BindConnection(ids[i], fmt.Sprintf("c%d", i))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, n, r.Count())

	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			r.Remove(ids[i])
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 0, r.Count())
}

func TestPropertyConnectionIndexConsistent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		r := NewRegistry()
		n := rapid.IntRange(1, 8).Draw(t, "sessions")
		ids := make([]string, n)
		for i := range ids {
			ids[i] = r.Create(fmt.Sprintf("P%d", i))
		}

		steps := rapid.IntRange(0, 40).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			s := ids[rapid.IntRange(0, n-1).Draw(t, "session")]
			conn := fmt.Sprintf("c%d", rapid.IntRange(0, 5).Draw(t, "conn"))
			switch rapid.IntRange(0, 2).Draw(t, "op") {
			case 0:
				_ = r.BindConnection(s, conn)
			case 1:
				r.UnbindConnection(conn)
			case 2:
				r.Remove(s)
			}
		}

		// Every live connection mapping points at a session that points back.
		r.mu.RLock()
		defer r.mu.RUnlock()
		for conn, sid := range r.connections {
			e, ok := r.sessions[sid]
			if !ok {
				t.Fatalf("connection %s maps to removed session %s", conn, sid)
			}
			if e.ConnectionID != conn {
				t.Fatalf("connection %s maps to %s which is bound to %q", conn, sid, e.ConnectionID)
			}
		}
	})
}
