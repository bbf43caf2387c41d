package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/gofish/internal/game/room"
	"github.com/cory-johannsen/gofish/internal/game/session"
)

func noop(context.Context, *ActionContext, Caller, json.RawMessage) (any, error) { return nil, nil }

func TestActionRegistry_ResolvesNamesAndAliases(t *testing.T) {
	r := DefaultActionRegistry()

	for name, want := range map[string]string{
		"ask":           "ask-for-cards",
		"ask-for-cards": "ask-for-cards",
		"go-fish":       "draw-card",
		"rejoin":        "rejoin-room",
		"ping":          "ping",
	} {
		a, ok := r.Resolve(name)
		require.True(t, ok, name)
		assert.Equal(t, want, a.Name)
	}
	_, ok := r.Resolve("leave-room")
	assert.False(t, ok)
	assert.Len(t, r.Actions(), len(BuiltinActions()))
	assert.Len(t, r.ActionsByCategory()[CategorySignaling], 5)
}

func TestActionRegistry_RejectsCollisions(t *testing.T) {
	_, err := NewActionRegistry([]Action{
		{Name: "a", Handler: noop},
		{Name: "a", Handler: noop},
	})
	assert.ErrorContains(t, err, "duplicate action name")

	_, err = NewActionRegistry([]Action{
		{Name: "a", Aliases: []string{"x"}, Handler: noop},
		{Name: "b", Aliases: []string{"x"}, Handler: noop},
	})
	assert.ErrorContains(t, err, "duplicate alias")

	_, err = NewActionRegistry([]Action{{Name: "a"}})
	assert.ErrorContains(t, err, "no handler")
}

func TestErrorCode(t *testing.T) {
	code, msg := ErrorCode(fmt.Errorf("joining ABCD: %w", room.ErrRoomFull))
	assert.Equal(t, CodeRoomFull, code)
	assert.Equal(t, room.ErrRoomFull.Error(), msg)

	code, msg = ErrorCode(fmt.Errorf("%w: name is required", ErrBadRequest))
	assert.Equal(t, CodeBadRequest, code)
	assert.Contains(t, msg, "name is required")

	code, msg = ErrorCode(fmt.Errorf("x: %w", session.ErrSessionNotFound))
	assert.Equal(t, CodeSessionNotFound, code)
	assert.Equal(t, "session not found", msg)

	code, msg = ErrorCode(errors.New("disk on fire"))
	assert.Equal(t, CodeInternal, code)
	assert.Equal(t, "internal error", msg)
}

func TestDispatch_MalformedFrames(t *testing.T) {
	h := newHarness(t, quietRules())
	c := h.connect("c1")

	h.gw.Dispatch(t.Context(), "c1", []byte("{not json"))
	acks := c.events(TypeAck)
	require.Len(t, acks, 1)
	assert.Equal(t, false, acks[0]["success"])
	assert.Equal(t, CodeBadRequest, acks[0]["code"])

	ack := c.call("fly-to-moon", nil)
	assert.Equal(t, CodeUnknownAction, ack["code"])

	ack = c.call("create-room", map[string]any{"name": "   "})
	assert.Equal(t, CodeBadRequest, ack["code"])
	assert.Equal(t, 0, h.ac.Sessions.Count())

	ack = c.call("create-room", json.RawMessage(`{"name": 7}`))
	assert.Equal(t, CodeBadRequest, ack["code"])
}

func TestDispatch_NoRequestIDNoAck(t *testing.T) {
	h := newHarness(t, quietRules())
	c := h.connect("c1")

	h.gw.Dispatch(t.Context(), "c1", []byte(`{"type":"ping"}`))
	assert.Empty(t, c.events(TypeAck))
}

func TestDispatch_CreateJoinStart(t *testing.T) {
	h := newHarness(t, quietRules())
	alice, bob := h.connect("a"), h.connect("b")

	created := alice.call("create-room", map[string]any{"name": "  Alice "})
	require.Equal(t, true, created["success"])
	code := created["roomCode"].(string)
	assert.Len(t, code, room.CodeLength)
	assert.True(t, strings.HasPrefix(created["sessionId"].(string), "sess_"))
	players := created["players"].([]any)
	require.Len(t, players, 1)
	host := players[0].(map[string]any)
	assert.Equal(t, "Alice", host["name"])
	assert.Equal(t, true, host["isHost"])
	assert.Nil(t, host["taboo"])

	joined := bob.call("join-room", map[string]any{"roomCode": strings.ToLower(code), "name": "Bob"})
	require.Equal(t, true, joined["success"])
	assert.Equal(t, code, joined["roomCode"])
	assert.Len(t, joined["players"], 2)

	ev := alice.events(room.EventPlayerJoined)
	require.Len(t, ev, 1)
	assert.Equal(t, "Bob", ev[0]["newPlayer"])

	ack := bob.call("start-game", map[string]any{"roomCode": code})
	assert.Equal(t, CodeNotHost, ack["code"])
	assert.Equal(t, room.ErrNotHost.Error(), ack["error"])

	ack = alice.call("start-game", map[string]any{})
	require.Equal(t, true, ack["success"], "start ack: %v", ack)

	for _, c := range []*client{alice, bob} {
		started := c.events(room.EventGameStarted)
		require.Len(t, started, 1)
		assert.Len(t, started[0]["hand"], 7)
		assert.NotEmpty(t, started[0]["myTaboo"])
		assert.Equal(t, created["sessionId"], started[0]["currentTurnId"])
	}

	carol := h.connect("c")
	ack = carol.call("join-room", map[string]any{"roomCode": code, "name": "Carol"})
	assert.Equal(t, CodeGameAlreadyStarted, ack["code"])
	assert.Equal(t, 2, h.ac.Sessions.Count())
}

func TestDispatch_JoinUnknownRoom(t *testing.T) {
	h := newHarness(t, quietRules())
	c := h.connect("c1")

	ack := c.call("join-room", map[string]any{"roomCode": "ZZZZ", "name": "Zed"})
	assert.Equal(t, CodeRoomNotFound, ack["code"])
	assert.Equal(t, 0, h.ac.Sessions.Count())

	ack = c.call("join-room", map[string]any{"name": "Zed"})
	assert.Equal(t, CodeBadRequest, ack["code"])
}

func TestDispatch_GameActionsNeedSession(t *testing.T) {
	h := newHarness(t, quietRules())
	c := h.connect("c1")

	for _, action := range []string{"start-game", "ask-for-cards", "draw-card", "gesture-detected", "report-banned-move"} {
		ack := c.call(action, map[string]any{"roomCode": "ABCD"})
		assert.Equal(t, CodeSessionNotFound, ack["code"], action)
	}
}

func TestDispatch_AskValidation(t *testing.T) {
	h := newHarness(t, quietRules())
	alice, bob := h.connect("a"), h.connect("b")
	code, _, bobID := h.table(alice, bob)
	require.Equal(t, true, alice.call("start-game", nil)["success"])

	ack := bob.call("ask", map[string]any{"roomCode": code, "targetId": bobID, "rank": "7"})
	assert.Equal(t, CodeNotYourTurn, ack["code"])

	ack = alice.call("ask", map[string]any{"targetId": "sess_nobody", "rank": "7"})
	assert.Equal(t, CodeTargetNotFound, ack["code"])

	ack = alice.call("ask", map[string]any{"targetId": bobID, "rank": "Z"})
	assert.Equal(t, CodeInvalidRank, ack["code"])
}

func TestDispatch_AskResolves(t *testing.T) {
	h := newHarness(t, quietRules())
	alice, bob := h.connect("a"), h.connect("b")
	code, aliceID, bobID := h.table(alice, bob)
	require.Equal(t, true, alice.call("start-game", nil)["success"])
	alice.reset()
	bob.reset()

	var rank string
	require.NoError(t, h.ac.Rooms.View(code, func(r *room.Room) error {
		p, _ := r.Player(aliceID)
		rank = p.Hand[0].Rank.String()
		return nil
	}))

	ack := alice.call("ask-for-cards", map[string]any{"targetId": bobID, "rank": rank})
	require.Equal(t, true, ack["success"], "ask ack: %v", ack)
	if ack["gotCards"] != true {
		assert.Equal(t, true, ack["goFish"])
		assert.Nil(t, ack["count"])
		assert.Empty(t, bob.events(room.EventCardsTransferred))
		assert.Equal(t, aliceID, h.currentTurn(code))
		return
	}
	assert.Greater(t, ack["count"], float64(0))
	assert.Nil(t, ack["goFish"])
	for _, c := range []*client{alice, bob} {
		moved := c.events(room.EventCardsTransferred)
		require.Len(t, moved, 1)
		assert.Equal(t, bobID, moved[0]["fromPlayerId"])
		assert.Equal(t, aliceID, moved[0]["currentTurnId"])
	}
}

func TestDispatch_DrawAdvancesTurn(t *testing.T) {
	h := newHarness(t, quietRules())
	alice, bob := h.connect("a"), h.connect("b")
	code, aliceID, bobID := h.table(alice, bob)
	require.Equal(t, true, alice.call("start-game", nil)["success"])
	alice.reset()
	bob.reset()

	ack := bob.call("go-fish", nil)
	assert.Equal(t, CodeNotYourTurn, ack["code"])

	ack = alice.call("draw-card", nil)
	require.Equal(t, true, ack["success"])
	assert.NotNil(t, ack["drawnCard"])

	mine := alice.events(room.EventCardDrawn)
	theirs := bob.events(room.EventCardDrawn)
	require.Len(t, mine, 1)
	require.Len(t, theirs, 1)
	assert.NotNil(t, mine[0]["drawnCard"])
	assert.Nil(t, theirs[0]["drawnCard"])
	assert.Equal(t, aliceID, theirs[0]["playerId"])
	assert.Equal(t, bobID, h.currentTurn(code))
}

func TestDispatch_Gestures(t *testing.T) {
	h := newHarness(t, quietRules())
	alice, bob := h.connect("a"), h.connect("b")
	code, aliceID, bobID := h.table(alice, bob)

	ack := alice.call("gesture-detected", map[string]any{"gesture": "SCRATCH_HEAD"})
	assert.Equal(t, CodeInvalidState, ack["code"])

	require.Equal(t, true, alice.call("start-game", nil)["success"])

	ack = alice.call("gesture-detected", map[string]any{"gesture": "MOONWALK"})
	assert.Equal(t, CodeInvalidGesture, ack["code"])

	var aliceTaboo, bobTaboo room.Taboo
	require.NoError(t, h.ac.Rooms.View(code, func(r *room.Room) error {
		a, _ := r.Player(aliceID)
		b, _ := r.Player(bobID)
		aliceTaboo, bobTaboo = a.Taboo, b.Taboo
		return nil
	}))

	ack = alice.call("gesture-detected", map[string]any{"gesture": string(aliceTaboo)})
	require.Equal(t, true, ack["success"])
	assert.Equal(t, true, ack["caught"])
	assert.Equal(t, "Bob", ack["catcherName"])
	assert.Equal(t, room.PenaltySkipTurn, ack["penalty"])
	assert.Len(t, bob.events(room.EventBannedMoveCaught), 1)

	ack = alice.call("report-banned-move", map[string]any{"victimId": bobID, "gesture": string(bobTaboo)})
	require.Equal(t, true, ack["success"])
	assert.Equal(t, true, ack["correct"])
}

func TestDispatch_LobbyDisconnectReleasesSession(t *testing.T) {
	h := newHarness(t, quietRules())
	alice, bob := h.connect("a"), h.connect("b")
	code, aliceID, bobID := h.table(alice, bob)
	bob.reset()

	h.gw.Disconnect("a")

	left := bob.events(room.EventPlayerLeft)
	require.Len(t, left, 1)
	assert.Equal(t, aliceID, left[0]["playerId"])
	assert.Equal(t, bobID, left[0]["newHostId"])
	_, ok := h.ac.Sessions.Get(aliceID)
	assert.False(t, ok)

	h.gw.Disconnect("b")
	assert.Equal(t, 0, h.ac.Rooms.Count())
	assert.Equal(t, 0, h.ac.Sessions.Count())

	ack := h.connect("late").call("join-room", map[string]any{"roomCode": code, "name": "Late"})
	assert.Equal(t, CodeRoomNotFound, ack["code"])
}

func TestDispatch_CreateReleasesPreviousSeat(t *testing.T) {
	h := newHarness(t, quietRules())
	alice, bob := h.connect("a"), h.connect("b")
	code, aliceID, _ := h.table(alice, bob)
	bob.reset()

	ack := alice.call("create-room", map[string]any{"name": "Alice"})
	require.Equal(t, true, ack["success"])
	assert.NotEqual(t, code, ack["roomCode"])
	assert.NotEqual(t, aliceID, ack["sessionId"])

	assert.Len(t, bob.events(room.EventPlayerLeft), 1)
	_, ok := h.ac.Sessions.Get(aliceID)
	assert.False(t, ok)
	assert.Equal(t, 2, h.ac.Rooms.Count())
}

func TestDispatch_RejoinAfterDisconnect(t *testing.T) {
	h := newHarness(t, quietRules())
	alice, bob := h.connect("a"), h.connect("b")
	code, aliceID, bobID := h.table(alice, bob)
	require.Equal(t, true, alice.call("start-game", nil)["success"])
	alice.reset()

	h.ac.Hub.Unregister("b")
	h.gw.Disconnect("b")
	gone := alice.events(room.EventPlayerDisconnected)
	require.Len(t, gone, 1)
	assert.Equal(t, bobID, gone[0]["playerId"])

	bob2 := h.connect("b2")
	ack := bob2.call("rejoin-room", map[string]any{"sessionId": bobID})
	require.Equal(t, true, ack["success"], "rejoin ack: %v", ack)
	assert.Equal(t, code, ack["roomCode"])
	assert.Equal(t, true, ack["gameStarted"])
	assert.Equal(t, false, ack["gameOver"])
	assert.Len(t, ack["hand"], 7)
	assert.NotEmpty(t, ack["myTaboo"])
	assert.Equal(t, aliceID, ack["currentTurnId"])

	back := alice.events(room.EventPlayerReconnected)
	require.Len(t, back, 1)
	assert.Equal(t, "Bob", back[0]["playerName"])
	assert.Empty(t, bob2.events(room.EventPlayerReconnected))

	sid, ok := h.ac.Sessions.SessionForConnection("b2")
	require.True(t, ok)
	assert.Equal(t, bobID, sid)

	// A stale disconnect of the old connection changes nothing.
	h.gw.Disconnect("b")
	assert.Empty(t, alice.events(room.EventPlayerDisconnected))
}

func TestDispatch_RejoinFailures(t *testing.T) {
	h := newHarness(t, quietRules())
	c := h.connect("c1")

	ack := c.call("rejoin", map[string]any{"sessionId": "sess_unknown"})
	assert.Equal(t, CodeSessionNotFound, ack["code"])

	orphan := h.ac.Sessions.Create("Ghost")
	require.NoError(t, h.ac.Sessions.AttachRoom(orphan, "QQQQ"))
	ack = c.call("rejoin", map[string]any{"sessionId": orphan})
	assert.Equal(t, CodeRoomGone, ack["code"])
	_, ok := h.ac.Sessions.Get(orphan)
	assert.False(t, ok)
}

func TestDispatch_Ping(t *testing.T) {
	h := newHarness(t, quietRules())
	ack := h.connect("c1").call("ping", nil)
	assert.Equal(t, true, ack["success"])
	assert.Equal(t, float64(fixedNow.UnixMilli()), ack["pong"])
}

func TestPublish_DeferredEventsRefetchRoom(t *testing.T) {
	h := newHarness(t, quietRules())
	alice, bob := h.connect("a"), h.connect("b")
	code, _, _ := h.table(alice, bob)
	alice.reset()
	bob.reset()

	require.NoError(t, h.ac.Rooms.View(code, func(r *room.Room) error {
		h.ac.Publish(r, []room.Event{
			{Kind: room.EventTrollEarthquake, Payload: room.TrollTargetPayload{PlayerName: "Bob"}},
			{Kind: room.EventTurnSkipped, After: 3 * time.Second, Payload: room.TurnSkippedPayload{Reason: room.SkipReasonOctopus}},
		})
		return nil
	}))

	assert.Len(t, alice.events(room.EventTrollEarthquake), 1)
	assert.Empty(t, alice.events(room.EventTurnSkipped))
	assert.Equal(t, []time.Duration{3 * time.Second}, h.sched.delays())

	h.sched.fireAll()
	for _, c := range []*client{alice, bob} {
		skipped := c.events(room.EventTurnSkipped)
		require.Len(t, skipped, 1)
		assert.Equal(t, room.SkipReasonOctopus, skipped[0]["reason"])
	}
}

func TestPublish_DeferredEventForDeletedRoomIsDropped(t *testing.T) {
	h := newHarness(t, quietRules())
	alice := h.connect("a")
	created := alice.call("create-room", map[string]any{"name": "Alice"})
	code := created["roomCode"].(string)

	require.NoError(t, h.ac.Rooms.View(code, func(r *room.Room) error {
		h.ac.Publish(r, []room.Event{{Kind: room.EventStateRefresh, After: time.Second, Payload: struct{}{}}})
		return nil
	}))
	h.gw.Disconnect("a")
	require.Equal(t, 0, h.ac.Rooms.Count())

	assert.NotPanics(t, h.sched.fireAll)
	assert.Empty(t, alice.events(room.EventStateRefresh))
}

func TestDispatch_FullOutboxCountsDrop(t *testing.T) {
	h := newHarness(t, quietRules())
	ob := NewOutbox("tiny", 1)
	h.ac.Hub.Register(ob)
	require.NoError(t, ob.Push([]byte("{}")))

	h.gw.Dispatch(t.Context(), "tiny", []byte(`{"type":"ping","requestId":"1"}`))

	err := testutil.GatherAndCompare(h.reg, strings.NewReader(`
# HELP gofish_outbox_drops_total Outbound messages dropped because a connection's outbox was full or closed.
# TYPE gofish_outbox_drops_total counter
gofish_outbox_drops_total 1
`), "gofish_outbox_drops_total")
	require.NoError(t, err)
}

func TestDispatch_RecordsActionMetrics(t *testing.T) {
	h := newHarness(t, quietRules())
	c := h.connect("c1")
	c.call("ping", nil)
	c.call("start-game", nil)

	n, err := testutil.GatherAndCount(h.reg, "gofish_actions_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
