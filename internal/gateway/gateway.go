package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/cory-johannsen/gofish/internal/game/room"
	"github.com/cory-johannsen/gofish/internal/game/session"
	"github.com/cory-johannsen/gofish/internal/observability"
)

// TracerName names the tracer action spans are recorded on.
const TracerName = "github.com/cory-johannsen/gofish/internal/gateway"

// ActionContext is the set of collaborators every action handler works with.
// It also receives room events and turns them into frames.
type ActionContext struct {
	Rooms     *room.Store
	Sessions  *session.Registry
	Hub       *Hub
	Scheduler Scheduler
	Logger    *zap.Logger
	Metrics   *observability.Metrics
	Now       func() time.Time
}

// Gateway dispatches inbound frames to actions.
type Gateway struct {
	ac      *ActionContext
	actions *ActionRegistry
	tracer  trace.Tracer
}

// New wires a Gateway and installs it as the store's event publisher.
//
// Precondition: every ActionContext field except Now must be non-nil.
func New(ac *ActionContext, actions *ActionRegistry) *Gateway {
	if ac.Now == nil {
		ac.Now = time.Now
	}
	ac.Rooms.SetPublisher(ac)
	return &Gateway{
		ac:      ac,
		actions: actions,
		tracer:  otel.Tracer(TracerName),
	}
}

// Context returns the handlers' collaborators.
func (g *Gateway) Context() *ActionContext {
	return g.ac
}

// Dispatch handles one inbound frame from connectionID. Requests carrying a
// requestId are acknowledged on the same connection.
func (g *Gateway) Dispatch(ctx context.Context, connectionID string, frame []byte) {
	start := g.ac.Now()
	logger := g.ac.Logger.With(observability.Connection(connectionID))

	var in Inbound
	if err := json.Unmarshal(frame, &in); err != nil || in.Type == "" {
		if err == nil {
			err = errors.New("missing type")
		}
		err = fmt.Errorf("%w: %v", ErrBadRequest, err)
		g.ac.Metrics.ObserveAction("invalid", CodeBadRequest, g.ac.Now().Sub(start))
		logger.Debug("rejecting frame", zap.Error(err))
		g.ac.reply(connectionID, in.RequestID, nil, err)
		return
	}
	action, ok := g.actions.Resolve(in.Type)
	if !ok {
		err := fmt.Errorf("%q: %w", in.Type, ErrUnknownAction)
		g.ac.Metrics.ObserveAction("unknown", CodeUnknownAction, g.ac.Now().Sub(start))
		logger.Debug("unknown action", observability.Action(in.Type))
		g.ac.reply(connectionID, in.RequestID, nil, err)
		return
	}

	caller := Caller{ConnectionID: connectionID}
	caller.SessionID, _ = g.ac.Sessions.SessionForConnection(connectionID)

	ctx, span := g.tracer.Start(ctx, "gateway."+action.Name,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("gofish.action", action.Name),
			attribute.String("gofish.connection", connectionID),
			attribute.String("gofish.session", caller.SessionID),
		),
	)
	result, err := action.Handler(ctx, g.ac, caller, in.Payload)
	if sid, ok := g.ac.Sessions.SessionForConnection(connectionID); ok {
		if code, ok := g.ac.Sessions.Resolve(sid); ok {
			span.SetAttributes(attribute.String("gofish.room", code))
		}
	}

	code := CodeOK
	if err != nil {
		code, _ = ErrorCode(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()

	elapsed := g.ac.Now().Sub(start)
	g.ac.Metrics.ObserveAction(action.Name, code, elapsed)
	fields := []zap.Field{
		observability.Action(action.Name),
		observability.Session(caller.SessionID),
		zap.String("result", code),
		zap.Duration("elapsed", elapsed),
	}
	if code == CodeInternal {
		logger.Error("action failed", append(fields, zap.Error(err))...)
	} else {
		logger.Debug("action handled", fields...)
	}

	if in.RequestID != "" {
		g.ac.reply(connectionID, in.RequestID, result, err)
	}
}

// Disconnect releases whatever seat connectionID held.
func (g *Gateway) Disconnect(connectionID string) {
	g.ac.release(connectionID)
}

func (ac *ActionContext) reply(connectionID, requestID string, result any, err error) {
	var payload any
	switch {
	case err != nil:
		code, msg := ErrorCode(err)
		payload = errorAck{Success: false, Error: msg, Code: code}
	case result == nil:
		payload = okAck{Success: true}
	default:
		payload = result
	}
	ac.send(connectionID, Outbound{Type: TypeAck, RequestID: requestID, Payload: payload})
}

func (ac *ActionContext) send(connectionID string, msg Outbound) {
	frame, err := json.Marshal(msg)
	if err != nil {
		ac.Logger.Error("encoding frame", observability.Event(msg.Type), zap.Error(err))
		return
	}
	if err := ac.Hub.Send(connectionID, frame); err != nil {
		ac.Metrics.OutboxDrop()
		ac.Logger.Warn("dropping frame",
			observability.Connection(connectionID),
			observability.Event(msg.Type),
			zap.Error(err),
		)
	}
}

// Publish implements room.Publisher. It runs under the room lock.
func (ac *ActionContext) Publish(r *room.Room, events []room.Event) {
	for _, ev := range events {
		switch ev.Kind {
		case room.EventTrollOctopus, room.EventTrollDeckSwap, room.EventTrollEarthquake:
			ac.Metrics.TrollEvent(ev.Kind)
		}
		if ev.After > 0 {
			ac.deferEvent(r.Code(), ev)
			continue
		}
		ac.deliver(r, ev)
	}
}

func (ac *ActionContext) deliver(r *room.Room, ev room.Event) {
	for _, d := range r.Deliveries(ev) {
		ac.send(d.ConnectionID, Outbound{Type: d.Kind, Payload: d.Payload})
	}
}

// deferEvent re-resolves the room by code when the timer fires; a room that
// is gone by then drops the event.
func (ac *ActionContext) deferEvent(code string, ev room.Event) {
	delay := ev.After
	ev.After = 0
	ac.Scheduler.After(delay, func() {
		err := ac.Rooms.View(code, func(r *room.Room) error {
			ac.deliver(r, ev)
			return nil
		})
		if err != nil {
			ac.Logger.Debug("deferred event dropped",
				observability.Room(code),
				observability.Event(ev.Kind),
				zap.Error(err),
			)
		}
	})
}

// release unbinds connectionID and gives up its seat.
func (ac *ActionContext) release(connectionID string) {
	sessionID, ok := ac.Sessions.UnbindConnection(connectionID)
	if !ok {
		return
	}
	code, ok := ac.Sessions.Resolve(sessionID)
	if !ok {
		return
	}
	var res room.DisconnectResult
	err := ac.Rooms.Update(code, func(r *room.Room) error {
		var err error
		res, err = r.Disconnect(sessionID, connectionID)
		return err
	})
	if err != nil {
		ac.Logger.Debug("release found no seat",
			observability.Connection(connectionID),
			observability.Session(sessionID),
			zap.Error(err),
		)
		return
	}
	if res.Removed {
		ac.Sessions.Remove(sessionID)
	}
}

// Stats reports live object counts for health and metrics.
type Stats struct {
	rooms    *room.Store
	sessions *session.Registry
	hub      *Hub
}

// NewStats creates a Stats view over the live state.
func NewStats(rooms *room.Store, sessions *session.Registry, hub *Hub) Stats {
	return Stats{rooms: rooms, sessions: sessions, hub: hub}
}

// Rooms returns the live room count.
func (s Stats) Rooms() int { return s.rooms.Count() }

// Sessions returns the registered session count.
func (s Stats) Sessions() int { return s.sessions.Count() }

// Connections returns the open connection count.
func (s Stats) Connections() int { return s.hub.Count() }
