package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/cory-johannsen/gofish/internal/game/cards"
	"github.com/cory-johannsen/gofish/internal/game/room"
	"github.com/cory-johannsen/gofish/internal/game/session"
)

// MaxNameRunes caps display names.
const MaxNameRunes = 32

func decode(payload json.RawMessage, v any) error {
	if len(payload) == 0 || string(payload) == "null" {
		payload = json.RawMessage("{}")
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return nil
}

func displayName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", fmt.Errorf("%w: name is required", ErrBadRequest)
	}
	if utf8.RuneCountInString(name) > MaxNameRunes {
		return "", fmt.Errorf("%w: name longer than %d characters", ErrBadRequest, MaxNameRunes)
	}
	return name, nil
}

func requireSession(caller Caller) error {
	if caller.SessionID == "" {
		return fmt.Errorf("connection %s has no session: %w", caller.ConnectionID, session.ErrSessionNotFound)
	}
	return nil
}

// roomFor picks the room an in-game action targets: the code in the
// payload when given, else the caller's own room.
func (ac *ActionContext) roomFor(caller Caller, code string) (string, error) {
	if err := requireSession(caller); err != nil {
		return "", err
	}
	if code != "" {
		return code, nil
	}
	own, ok := ac.Sessions.Resolve(caller.SessionID)
	if !ok {
		return "", fmt.Errorf("session %s: %w", caller.SessionID, room.ErrPlayerNotInRoom)
	}
	return own, nil
}

// adopt gives connectionID to sessionID and attaches the room.
func (ac *ActionContext) adopt(sessionID, code, connectionID string) error {
	if err := ac.Sessions.AttachRoom(sessionID, code); err != nil {
		return err
	}
	return ac.Sessions.BindConnection(sessionID, connectionID)
}

type createRoomRequest struct {
	Name string `json:"name"`
}

func handleCreateRoom(_ context.Context, ac *ActionContext, caller Caller, payload json.RawMessage) (any, error) {
	var req createRoomRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	name, err := displayName(req.Name)
	if err != nil {
		return nil, err
	}
	if caller.SessionID != "" {
		ac.release(caller.ConnectionID)
	}

	sessionID := ac.Sessions.Create(name)
	code, roster := ac.Rooms.Create(sessionID, caller.ConnectionID, name)
	if err := ac.adopt(sessionID, code, caller.ConnectionID); err != nil {
		return nil, err
	}
	return roomAck{Success: true, RoomCode: code, SessionID: sessionID, Players: roster}, nil
}

type joinRoomRequest struct {
	RoomCode string `json:"roomCode"`
	Name     string `json:"name"`
}

func handleJoinRoom(_ context.Context, ac *ActionContext, caller Caller, payload json.RawMessage) (any, error) {
	var req joinRoomRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	name, err := displayName(req.Name)
	if err != nil {
		return nil, err
	}
	if room.NormalizeCode(req.RoomCode) == "" {
		return nil, fmt.Errorf("%w: roomCode is required", ErrBadRequest)
	}
	if caller.SessionID != "" {
		ac.release(caller.ConnectionID)
	}

	sessionID := ac.Sessions.Create(name)
	var (
		code   string
		roster []room.RosterEntry
	)
	err = ac.Rooms.Update(req.RoomCode, func(r *room.Room) error {
		if err := r.Join(sessionID, caller.ConnectionID, name); err != nil {
			return err
		}
		code = r.Code()
		roster = r.Roster(sessionID)
		return nil
	})
	if err != nil {
		ac.Sessions.Remove(sessionID)
		return nil, err
	}
	if err := ac.adopt(sessionID, code, caller.ConnectionID); err != nil {
		return nil, err
	}
	return roomAck{Success: true, RoomCode: code, SessionID: sessionID, Players: roster}, nil
}

type rejoinRoomRequest struct {
	SessionID string `json:"sessionId"`
}

func handleRejoinRoom(_ context.Context, ac *ActionContext, caller Caller, payload json.RawMessage) (any, error) {
	var req rejoinRoomRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	entry, ok := ac.Sessions.Get(req.SessionID)
	if !ok || entry.RoomCode == "" {
		return nil, fmt.Errorf("rejoin: %w", session.ErrSessionNotFound)
	}
	if caller.SessionID != "" && caller.SessionID != req.SessionID {
		ac.release(caller.ConnectionID)
	}

	var view room.RejoinView
	err := ac.Rooms.Update(entry.RoomCode, func(r *room.Room) error {
		var err error
		view, err = r.Rejoin(req.SessionID, caller.ConnectionID)
		return err
	})
	switch {
	case errors.Is(err, room.ErrRoomNotFound):
		ac.Sessions.Remove(req.SessionID)
		return nil, fmt.Errorf("rejoin %s: %w", entry.RoomCode, room.ErrRoomGone)
	case err != nil:
		return nil, err
	}
	if err := ac.Sessions.BindConnection(req.SessionID, caller.ConnectionID); err != nil {
		return nil, err
	}
	return rejoinAck{Success: true, RejoinView: view}, nil
}

type roomRequest struct {
	RoomCode string `json:"roomCode"`
}

func handleStartGame(_ context.Context, ac *ActionContext, caller Caller, payload json.RawMessage) (any, error) {
	var req roomRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	code, err := ac.roomFor(caller, req.RoomCode)
	if err != nil {
		return nil, err
	}
	return nil, ac.Rooms.Update(code, func(r *room.Room) error {
		return r.Start(caller.SessionID)
	})
}

type askRequest struct {
	RoomCode string `json:"roomCode"`
	TargetID string `json:"targetId"`
	Rank     string `json:"rank"`
}

// unparsedRank makes the room report an invalid rank in its own check order.
const unparsedRank = cards.Rank(255)

func handleAskForCards(_ context.Context, ac *ActionContext, caller Caller, payload json.RawMessage) (any, error) {
	var req askRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	code, err := ac.roomFor(caller, req.RoomCode)
	if err != nil {
		return nil, err
	}
	rank, err := cards.ParseRank(req.Rank)
	if err != nil {
		rank = unparsedRank
	}

	var res room.AskResult
	err = ac.Rooms.Update(code, func(r *room.Room) error {
		var err error
		res, err = r.Ask(caller.SessionID, req.TargetID, rank)
		return err
	})
	if err != nil {
		return nil, err
	}
	return askAck{Success: true, GotCards: res.GotCards, Count: res.Count, GoFish: res.GoFish}, nil
}

func handleDrawCard(_ context.Context, ac *ActionContext, caller Caller, payload json.RawMessage) (any, error) {
	var req roomRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	code, err := ac.roomFor(caller, req.RoomCode)
	if err != nil {
		return nil, err
	}
	var res room.DrawResult
	err = ac.Rooms.Update(code, func(r *room.Room) error {
		var err error
		res, err = r.Draw(caller.SessionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return drawAck{Success: true, DrawnCard: res.Card}, nil
}

type gestureRequest struct {
	RoomCode string `json:"roomCode"`
	Gesture  string `json:"gesture"`
}

func handleGestureDetected(_ context.Context, ac *ActionContext, caller Caller, payload json.RawMessage) (any, error) {
	var req gestureRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	code, err := ac.roomFor(caller, req.RoomCode)
	if err != nil {
		return nil, err
	}
	var res room.GestureResult
	err = ac.Rooms.Update(code, func(r *room.Room) error {
		var err error
		res, err = r.ReportGesture(caller.SessionID, room.Taboo(req.Gesture))
		return err
	})
	if err != nil {
		return nil, err
	}
	if !res.Caught {
		return gestureAck{Success: true}, nil
	}
	return gestureAck{Success: true, Caught: true, CatcherName: res.Catcher.Name, Penalty: res.Penalty}, nil
}

type reportRequest struct {
	RoomCode string `json:"roomCode"`
	VictimID string `json:"victimId"`
	Gesture  string `json:"gesture"`
}

func handleReportBannedMove(_ context.Context, ac *ActionContext, caller Caller, payload json.RawMessage) (any, error) {
	var req reportRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	code, err := ac.roomFor(caller, req.RoomCode)
	if err != nil {
		return nil, err
	}
	var correct bool
	err = ac.Rooms.Update(code, func(r *room.Room) error {
		var err error
		correct, err = r.ReportBannedMove(caller.SessionID, req.VictimID, room.Taboo(req.Gesture))
		return err
	})
	if err != nil {
		return nil, err
	}
	return reportAck{Success: true, Correct: correct}, nil
}

func handlePing(_ context.Context, ac *ActionContext, _ Caller, _ json.RawMessage) (any, error) {
	return pongAck{Success: true, Pong: ac.Now().UnixMilli()}, nil
}
