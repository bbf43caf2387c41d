package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/gofish/internal/game/room"
	"github.com/cory-johannsen/gofish/internal/observability"
)

// Signaling event kinds. Relay kinds reuse the inbound action name.
const (
	EventPeerCameraReady     = "peer-camera-ready"
	EventConnectionRequested = "webrtc-connection-requested"
)

// relayTo delivers one event inside the caller's room. Every failure is a
// silent drop: the sender has no room, the target is not seated there, or
// the target is offline.
func (ac *ActionContext) relayTo(caller Caller, ev room.Event) {
	if caller.SessionID == "" {
		return
	}
	code, ok := ac.Sessions.Resolve(caller.SessionID)
	if !ok {
		return
	}
	err := ac.Rooms.View(code, func(r *room.Room) error {
		if _, seated := r.Player(caller.SessionID); !seated {
			return nil
		}
		ac.deliver(r, ev)
		return nil
	})
	if err != nil {
		ac.Logger.Debug("signal dropped",
			observability.Session(caller.SessionID),
			observability.Event(ev.Kind),
			zap.Error(err),
		)
	}
}

// relay forwards an opaque WebRTC blob to one peer as {from, <field>}.
func relay(kind, field string) HandlerFunc {
	return func(_ context.Context, ac *ActionContext, caller Caller, payload json.RawMessage) (any, error) {
		var req map[string]json.RawMessage
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		var to string
		if raw, ok := req["to"]; ok {
			if err := json.Unmarshal(raw, &to); err != nil {
				return nil, fmt.Errorf("%w: to: %v", ErrBadRequest, err)
			}
		}
		if to == "" {
			return nil, nil
		}
		body := map[string]any{"from": caller.SessionID}
		if blob, ok := req[field]; ok {
			body[field] = blob
		} else {
			body[field] = nil
		}
		ac.relayTo(caller, room.Event{Kind: kind, To: to, Payload: body})
		return nil, nil
	}
}

type peerPayload struct {
	PeerID string `json:"peerId"`
}

type fromPayload struct {
	From string `json:"from"`
}

func handleCameraReady(_ context.Context, ac *ActionContext, caller Caller, _ json.RawMessage) (any, error) {
	ac.relayTo(caller, room.Event{
		Kind:    EventPeerCameraReady,
		Except:  caller.SessionID,
		Payload: peerPayload{PeerID: caller.SessionID},
	})
	return nil, nil
}

type connectionRequest struct {
	To string `json:"to"`
}

func handleRequestConnection(_ context.Context, ac *ActionContext, caller Caller, payload json.RawMessage) (any, error) {
	var req connectionRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	if req.To == "" {
		return nil, nil
	}
	ac.relayTo(caller, room.Event{
		Kind:    EventConnectionRequested,
		To:      req.To,
		Payload: fromPayload{From: caller.SessionID},
	})
	return nil, nil
}
