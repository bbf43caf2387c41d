package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/cory-johannsen/gofish/internal/config"
	"github.com/cory-johannsen/gofish/internal/observability"
)

const writeWait = 10 * time.Second

// Transport serves the websocket endpoint plus health and metrics over HTTP.
type Transport struct {
	gw       *Gateway
	cfg      config.HTTPConfig
	upgrader websocket.Upgrader
	gatherer prometheus.Gatherer
	stats    Stats
	logger   *zap.Logger

	closing atomic.Bool
	wg      sync.WaitGroup
}

// NewTransport creates a Transport.
//
// Precondition: gw must be non-nil; cfg.PingInterval < cfg.PongWait.
func NewTransport(gw *Gateway, cfg config.HTTPConfig, gatherer prometheus.Gatherer, stats Stats) *Transport {
	t := &Transport{
		gw:       gw,
		cfg:      cfg,
		gatherer: gatherer,
		stats:    stats,
		logger:   gw.ac.Logger.Named("transport"),
	}
	t.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     t.checkOrigin,
	}
	return t
}

func (t *Transport) checkOrigin(r *http.Request) bool {
	if len(t.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, allowed := range t.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// Handler returns the HTTP routes.
func (t *Transport) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Get("/ws", t.serveWS)
	r.Get("/healthz", t.serveHealth)
	r.Handle("/metrics", promhttp.HandlerFor(t.gatherer, promhttp.HandlerOpts{}))
	return r
}

type healthResponse struct {
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	Rooms       int    `json:"rooms"`
	Sessions    int    `json:"sessions"`
	Connections int    `json:"connections"`
}

func (t *Transport) serveHealth(w http.ResponseWriter, _ *http.Request) {
	status := "ok"
	if t.closing.Load() {
		status = "shutting_down"
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(healthResponse{
		Status:      status,
		Timestamp:   t.gw.ac.Now().UTC().Format(time.RFC3339),
		Rooms:       t.stats.Rooms(),
		Sessions:    t.stats.Sessions(),
		Connections: t.stats.Connections(),
	})
}

func (t *Transport) serveWS(w http.ResponseWriter, r *http.Request) {
	if t.closing.Load() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		t.logger.Debug("upgrade failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}
	connID := uuid.NewString()
	ob := NewOutbox(connID, t.cfg.OutboxSize)
	t.gw.ac.Hub.Register(ob)
	t.logger.Info("websocket connected", observability.Connection(connID), zap.String("remote", r.RemoteAddr))

	t.wg.Add(2)
	go t.writeLoop(conn, ob)
	go t.readLoop(conn, connID)
}

// writeLoop owns every write to conn and closes it when the outbox closes or
// a write fails.
func (t *Transport) writeLoop(conn *websocket.Conn, ob *Outbox) {
	defer t.wg.Done()
	ticker := time.NewTicker(t.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()
	for {
		select {
		case frame, ok := <-ob.Frames():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				t.logger.Debug("write failed", observability.Connection(ob.ConnectionID()), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (t *Transport) readLoop(conn *websocket.Conn, connID string) {
	defer t.wg.Done()
	defer func() {
		t.gw.ac.Hub.Unregister(connID)
		if !t.closing.Load() {
			t.gw.Disconnect(connID)
		}
		t.logger.Info("websocket closed", observability.Connection(connID))
	}()

	conn.SetReadLimit(t.cfg.MaxMessageBytes)
	_ = conn.SetReadDeadline(time.Now().Add(t.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(t.cfg.PongWait))
	})
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				t.logger.Warn("read error", observability.Connection(connID), zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(t.cfg.PongWait))
		t.gw.Dispatch(context.Background(), connID, msg)
	}
}

// Close stops accepting upgrades and closes every connection without
// disconnecting their seats, then waits for the connection goroutines or ctx.
func (t *Transport) Close(ctx context.Context) error {
	t.closing.Store(true)
	t.gw.ac.Hub.CloseAll()
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
