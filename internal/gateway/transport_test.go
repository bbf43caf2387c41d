package gateway

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/gofish/internal/config"
)

func testHTTPConfig() config.HTTPConfig {
	return config.HTTPConfig{
		PongWait:        5 * time.Second,
		PingInterval:    time.Second,
		MaxMessageBytes: 1 << 16,
		OutboxSize:      64,
	}
}

func newTestTransport(t *testing.T, cfg config.HTTPConfig) (*harness, *Transport, *httptest.Server) {
	t.Helper()
	h := newHarness(t, quietRules())
	tr := NewTransport(h.gw, cfg, h.reg, NewStats(h.ac.Rooms, h.ac.Sessions, h.ac.Hub))
	ts := httptest.NewServer(tr.Handler())
	t.Cleanup(func() {
		_ = tr.Close(t.Context())
		ts.Close()
	})
	return h, tr, ts
}

func dialWS(t *testing.T, ts *httptest.Server, header http.Header) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Skipf("skipping test; websocket dial unavailable: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var f frame
	require.NoError(t, json.Unmarshal(raw, &f))
	return f
}

func TestTransport_CreateRoomOverWebsocket(t *testing.T) {
	h, _, ts := newTestTransport(t, testHTTPConfig())
	conn := dialWS(t, ts, nil)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type": "create-room", "requestId": "r1", "payload": map[string]any{"name": "Alice"},
	}))
	f := readFrame(t, conn)
	assert.Equal(t, TypeAck, f.Type)
	assert.Equal(t, "r1", f.RequestID)
	var ack roomAck
	require.NoError(t, json.Unmarshal(f.Payload, &ack))
	assert.True(t, ack.Success)
	assert.Len(t, ack.RoomCode, 4)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	var health healthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 1, health.Rooms)
	assert.Equal(t, 1, health.Sessions)
	assert.Equal(t, 1, health.Connections)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		return h.ac.Rooms.Count() == 0 && h.ac.Sessions.Count() == 0
	}, 5*time.Second, 10*time.Millisecond, "closing the socket leaves the lobby")
}

func TestTransport_Metrics(t *testing.T) {
	_, _, ts := newTestTransport(t, testHTTPConfig())

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "gofish_rooms 0")
}

func TestTransport_OriginAllowList(t *testing.T) {
	cfg := testHTTPConfig()
	cfg.AllowedOrigins = []string{"https://fish.example"}
	_, _, ts := newTestTransport(t, cfg)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {"https://evil.example"}})
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	}

	conn := dialWS(t, ts, http.Header{"Origin": {"https://fish.example"}})
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "ping", "requestId": "p"}))
	assert.Equal(t, "p", readFrame(t, conn).RequestID)
}

func TestTransport_CloseKeepsSeats(t *testing.T) {
	h, tr, ts := newTestTransport(t, testHTTPConfig())
	conn := dialWS(t, ts, nil)
	require.NoError(t, conn.WriteJSON(map[string]any{
		"type": "create-room", "requestId": "r1", "payload": map[string]any{"name": "Alice"},
	}))
	readFrame(t, conn)

	require.NoError(t, tr.Close(t.Context()))
	assert.Equal(t, 1, h.ac.Rooms.Count())
	assert.Equal(t, 0, h.ac.Hub.Count())

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	var health healthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "shutting_down", health.Status)
}
