package gateway

import (
	"encoding/json"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/gofish/internal/game/dice"
	"github.com/cory-johannsen/gofish/internal/game/room"
	"github.com/cory-johannsen/gofish/internal/game/session"
	"github.com/cory-johannsen/gofish/internal/observability"
)

var fixedNow = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

// manualScheduler holds deferred work until the test fires it.
type manualScheduler struct {
	mu      sync.Mutex
	pending []scheduled
}

type scheduled struct {
	delay time.Duration
	fn    func()
}

func (m *manualScheduler) After(d time.Duration, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, scheduled{delay: d, fn: fn})
}

func (m *manualScheduler) delays() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]time.Duration, len(m.pending))
	for i, s := range m.pending {
		out[i] = s.delay
	}
	return out
}

// fireAll runs everything scheduled so far, outside the scheduler lock.
func (m *manualScheduler) fireAll() {
	m.mu.Lock()
	run := m.pending
	m.pending = nil
	m.mu.Unlock()
	for _, s := range run {
		s.fn()
	}
}

type harness struct {
	t     *testing.T
	gw    *Gateway
	ac    *ActionContext
	sched *manualScheduler
	reg   *prometheus.Registry
}

func quietRules() room.Rules {
	rules := room.DefaultRules()
	rules.OctopusChance = 0
	rules.DeckSwapChance = 0
	rules.EarthquakeChance = 0
	return rules
}

func newHarness(t *testing.T, rules room.Rules) *harness {
	t.Helper()
	logger := zaptest.NewLogger(t)
	roller := dice.NewRoller(dice.NewSeededSource(7), logger)
	store := room.NewStore(roller, rules, logger)
	sessions := session.NewRegistry()
	hub := NewHub()
	reg := prometheus.NewRegistry()
	sched := &manualScheduler{}
	ac := &ActionContext{
		Rooms:     store,
		Sessions:  sessions,
		Hub:       hub,
		Scheduler: sched,
		Logger:    logger,
		Metrics:   observability.NewMetrics(reg, NewStats(store, sessions, hub)),
		Now:       func() time.Time { return fixedNow },
	}
	return &harness{t: t, gw: New(ac, DefaultActionRegistry()), ac: ac, sched: sched, reg: reg}
}

type frame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"requestId"`
	Payload   json.RawMessage `json:"payload"`
}

// client is one fake connection reading its outbox directly.
type client struct {
	h      *harness
	id     string
	ob     *Outbox
	frames []frame
	seq    int
}

func (h *harness) connect(id string) *client {
	ob := NewOutbox(id, 256)
	h.ac.Hub.Register(ob)
	return &client{h: h, id: id, ob: ob}
}

func (c *client) drain() {
	for {
		select {
		case raw, ok := <-c.ob.Frames():
			if !ok {
				return
			}
			var f frame
			require.NoError(c.h.t, json.Unmarshal(raw, &f))
			c.frames = append(c.frames, f)
		default:
			return
		}
	}
}

// call sends one request and returns its decoded ack payload.
func (c *client) call(action string, payload any) map[string]any {
	c.h.t.Helper()
	c.seq++
	reqID := c.id + "-" + strconv.Itoa(c.seq)
	raw, err := json.Marshal(payload)
	require.NoError(c.h.t, err)
	msg, err := json.Marshal(Inbound{Type: action, RequestID: reqID, Payload: raw})
	require.NoError(c.h.t, err)
	c.h.gw.Dispatch(c.h.t.Context(), c.id, msg)

	c.drain()
	for i, f := range c.frames {
		if f.Type == TypeAck && f.RequestID == reqID {
			c.frames = append(c.frames[:i], c.frames[i+1:]...)
			var out map[string]any
			require.NoError(c.h.t, json.Unmarshal(f.Payload, &out))
			return out
		}
	}
	c.h.t.Fatalf("no ack for %s (%s)", action, reqID)
	return nil
}

// events drains and returns every pushed frame of kind, removing them.
func (c *client) events(kind string) []map[string]any {
	c.h.t.Helper()
	c.drain()
	var out []map[string]any
	kept := c.frames[:0]
	for _, f := range c.frames {
		if f.Type != kind {
			kept = append(kept, f)
			continue
		}
		var p map[string]any
		require.NoError(c.h.t, json.Unmarshal(f.Payload, &p))
		out = append(out, p)
	}
	c.frames = kept
	return out
}

func (c *client) reset() {
	c.drain()
	c.frames = nil
}

// table seats alice as host and bob as guest and returns the room code plus
// both session ids.
func (h *harness) table(alice, bob *client) (code, aliceID, bobID string) {
	h.t.Helper()
	created := alice.call("create-room", map[string]any{"name": "Alice"})
	require.Equal(h.t, true, created["success"])
	code = created["roomCode"].(string)
	aliceID = created["sessionId"].(string)

	joined := bob.call("join-room", map[string]any{"roomCode": code, "name": "Bob"})
	require.Equal(h.t, true, joined["success"], "join ack: %v", joined)
	bobID = joined["sessionId"].(string)
	return code, aliceID, bobID
}

func (h *harness) currentTurn(code string) string {
	var id string
	require.NoError(h.t, h.ac.Rooms.View(code, func(r *room.Room) error {
		id = r.CurrentTurnID()
		return nil
	}))
	return id
}
