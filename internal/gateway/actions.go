package gateway

import (
	"context"
	"encoding/json"
	"fmt"
)

// Categories for organizing actions.
const (
	CategoryLobby     = "lobby"
	CategoryGame      = "game"
	CategorySignaling = "signaling"
	CategorySystem    = "system"
)

// Caller identifies who sent a frame. SessionID is empty until the
// connection has created, joined, or rejoined a room.
type Caller struct {
	ConnectionID string
	SessionID    string
}

// HandlerFunc executes one action. A nil result acks with success only.
type HandlerFunc func(ctx context.Context, ac *ActionContext, caller Caller, payload json.RawMessage) (any, error)

// Action defines a client-invocable action.
type Action struct {
	// Name is the canonical wire type.
	Name string
	// Aliases are alternate wire types for this action.
	Aliases []string
	// Help is a short description for diagnostics.
	Help string
	// Category groups the action.
	Category string
	// Handler runs the action.
	Handler HandlerFunc
}

// ActionRegistry maps action names and aliases to Action definitions.
type ActionRegistry struct {
	actions map[string]*Action // canonical name → action
	aliases map[string]string  // alias → canonical name
}

// NewActionRegistry creates a registry populated with the given actions.
//
// Precondition: No two actions may share a canonical name or alias; every action needs a handler.
// Postcondition: Returns a registry or an error on name/alias collisions.
func NewActionRegistry(actions []Action) (*ActionRegistry, error) {
	r := &ActionRegistry{
		actions: make(map[string]*Action, len(actions)),
		aliases: make(map[string]string),
	}

	for i := range actions {
		a := &actions[i]
		if a.Handler == nil {
			return nil, fmt.Errorf("action %q has no handler", a.Name)
		}
		if _, exists := r.actions[a.Name]; exists {
			return nil, fmt.Errorf("duplicate action name: %q", a.Name)
		}
		if _, exists := r.aliases[a.Name]; exists {
			return nil, fmt.Errorf("action name %q conflicts with an existing alias", a.Name)
		}
		r.actions[a.Name] = a

		for _, alias := range a.Aliases {
			if _, exists := r.actions[alias]; exists {
				return nil, fmt.Errorf("alias %q conflicts with action name %q", alias, alias)
			}
			if existing, exists := r.aliases[alias]; exists {
				return nil, fmt.Errorf("duplicate alias %q: used by %q and %q", alias, existing, a.Name)
			}
			r.aliases[alias] = a.Name
		}
	}

	return r, nil
}

// DefaultActionRegistry creates a registry with every built-in action.
func DefaultActionRegistry() *ActionRegistry {
	r, err := NewActionRegistry(BuiltinActions())
	if err != nil {
		panic(fmt.Sprintf("building default action registry: %v", err))
	}
	return r
}

// Resolve looks up an action by name or alias.
//
// Postcondition: Returns (action, true) if found, or (nil, false).
func (r *ActionRegistry) Resolve(name string) (*Action, bool) {
	if a, ok := r.actions[name]; ok {
		return a, true
	}
	if canonical, ok := r.aliases[name]; ok {
		return r.actions[canonical], true
	}
	return nil, false
}

// Actions returns all registered actions in no particular order.
func (r *ActionRegistry) Actions() []*Action {
	result := make([]*Action, 0, len(r.actions))
	for _, a := range r.actions {
		result = append(result, a)
	}
	return result
}

// ActionsByCategory returns actions grouped by category.
func (r *ActionRegistry) ActionsByCategory() map[string][]*Action {
	categories := make(map[string][]*Action)
	for _, a := range r.actions {
		categories[a.Category] = append(categories[a.Category], a)
	}
	return categories
}

// BuiltinActions returns every action the server understands.
func BuiltinActions() []Action {
	return []Action{
		{Name: "create-room", Category: CategoryLobby, Help: "open a room and sit as host", Handler: handleCreateRoom},
		{Name: "join-room", Category: CategoryLobby, Help: "take a seat in a lobby", Handler: handleJoinRoom},
		{Name: "rejoin-room", Aliases: []string{"rejoin"}, Category: CategoryLobby, Help: "reclaim a seat with a session id", Handler: handleRejoinRoom},
		{Name: "start-game", Category: CategoryLobby, Help: "deal the cards", Handler: handleStartGame},
		{Name: "ask-for-cards", Aliases: []string{"ask"}, Category: CategoryGame, Help: "ask a player for a rank", Handler: handleAskForCards},
		{Name: "draw-card", Aliases: []string{"go-fish"}, Category: CategoryGame, Help: "draw from the pile and pass", Handler: handleDrawCard},
		{Name: "gesture-detected", Category: CategoryGame, Help: "report a gesture your camera saw you make", Handler: handleGestureDetected},
		{Name: "report-banned-move", Category: CategoryGame, Help: "accuse a player of their taboo", Handler: handleReportBannedMove},
		{Name: "webrtc-offer", Category: CategorySignaling, Help: "relay an SDP offer", Handler: relay("webrtc-offer", "offer")},
		{Name: "webrtc-answer", Category: CategorySignaling, Help: "relay an SDP answer", Handler: relay("webrtc-answer", "answer")},
		{Name: "webrtc-ice-candidate", Category: CategorySignaling, Help: "relay an ICE candidate", Handler: relay("webrtc-ice-candidate", "candidate")},
		{Name: "camera-ready", Category: CategorySignaling, Help: "announce a live camera", Handler: handleCameraReady},
		{Name: "request-webrtc-connection", Category: CategorySignaling, Help: "ask a peer to start a call", Handler: handleRequestConnection},
		{Name: "ping", Category: CategorySystem, Help: "liveness check", Handler: handlePing},
	}
}
