package gateway

import (
	"encoding/json"
	"errors"

	"github.com/cory-johannsen/gofish/internal/game/cards"
	"github.com/cory-johannsen/gofish/internal/game/room"
	"github.com/cory-johannsen/gofish/internal/game/session"
)

// TypeAck is the outbound type of a request acknowledgement.
const TypeAck = "ack"

// Inbound is a client request frame.
type Inbound struct {
	Type      string          `json:"type"`
	RequestID string          `json:"requestId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Outbound is a server frame: an ack or a pushed event.
type Outbound struct {
	Type      string `json:"type"`
	RequestID string `json:"requestId,omitempty"`
	Payload   any    `json:"payload"`
}

// Gateway-level failures.
var (
	ErrBadRequest    = errors.New("malformed request")
	ErrUnknownAction = errors.New("unknown action")
)

// Ack result codes.
const (
	CodeOK                 = "OK"
	CodeBadRequest         = "BAD_REQUEST"
	CodeUnknownAction      = "UNKNOWN_ACTION"
	CodeRoomNotFound       = "ROOM_NOT_FOUND"
	CodeGameAlreadyStarted = "GAME_ALREADY_STARTED"
	CodeRoomFull           = "ROOM_FULL"
	CodeNotHost            = "NOT_HOST"
	CodeNotEnoughPlayers   = "NOT_ENOUGH_PLAYERS"
	CodeNotYourTurn        = "NOT_YOUR_TURN"
	CodeTargetNotFound     = "TARGET_NOT_FOUND"
	CodeSessionNotFound    = "SESSION_NOT_FOUND"
	CodeRoomGone           = "ROOM_GONE"
	CodePlayerNotInRoom    = "PLAYER_NOT_IN_ROOM"
	CodeInvalidState       = "INVALID_STATE"
	CodeInvalidRank        = "INVALID_RANK"
	CodeInvalidGesture     = "INVALID_GESTURE"
	CodeInternal           = "INTERNAL"
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrBadRequest, CodeBadRequest},
	{ErrUnknownAction, CodeUnknownAction},
	{room.ErrRoomNotFound, CodeRoomNotFound},
	{room.ErrGameAlreadyStarted, CodeGameAlreadyStarted},
	{room.ErrRoomFull, CodeRoomFull},
	{room.ErrNotHost, CodeNotHost},
	{room.ErrNotEnoughPlayers, CodeNotEnoughPlayers},
	{room.ErrNotYourTurn, CodeNotYourTurn},
	{room.ErrTargetNotFound, CodeTargetNotFound},
	{session.ErrSessionNotFound, CodeSessionNotFound},
	{room.ErrRoomGone, CodeRoomGone},
	{room.ErrPlayerNotInRoom, CodePlayerNotInRoom},
	{room.ErrInvalidState, CodeInvalidState},
	{room.ErrInvalidRank, CodeInvalidRank},
	{room.ErrInvalidGesture, CodeInvalidGesture},
}

// ErrorCode maps err to its ack code and client-facing message.
//
// Postcondition: room and session sentinels keep their own message; a
// malformed request keeps the full decode detail; anything else is INTERNAL.
func ErrorCode(err error) (code, message string) {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			if ec.err == ErrBadRequest {
				return ec.code, err.Error()
			}
			return ec.code, ec.err.Error()
		}
	}
	return CodeInternal, "internal error"
}

// errorAck is the payload of a failed request.
type errorAck struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

type okAck struct {
	Success bool `json:"success"`
}

type roomAck struct {
	Success   bool               `json:"success"`
	RoomCode  string             `json:"roomCode"`
	SessionID string             `json:"sessionId"`
	Players   []room.RosterEntry `json:"players"`
}

type rejoinAck struct {
	Success bool `json:"success"`
	room.RejoinView
}

type askAck struct {
	Success  bool `json:"success"`
	GotCards bool `json:"gotCards"`
	Count    int  `json:"count,omitempty"`
	GoFish   bool `json:"goFish,omitempty"`
}

type drawAck struct {
	Success   bool        `json:"success"`
	DrawnCard *cards.Card `json:"drawnCard"`
}

type gestureAck struct {
	Success     bool   `json:"success"`
	Caught      bool   `json:"caught"`
	CatcherName string `json:"catcherName,omitempty"`
	Penalty     string `json:"penalty,omitempty"`
}

type reportAck struct {
	Success bool `json:"success"`
	Correct bool `json:"correct"`
}

type pongAck struct {
	Success bool  `json:"success"`
	Pong    int64 `json:"pong"`
}
