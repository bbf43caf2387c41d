package room

import "errors"

// Sentinel errors returned synchronously by room operations. A room is left
// unmodified whenever one of these is returned.
var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrGameAlreadyStarted = errors.New("game already started")
	ErrRoomFull           = errors.New("room is full")
	ErrNotHost            = errors.New("only the host can start the game")
	ErrNotEnoughPlayers   = errors.New("not enough players")
	ErrNotYourTurn        = errors.New("not your turn")
	ErrTargetNotFound     = errors.New("target player not found")
	ErrRoomGone           = errors.New("room no longer exists")
	ErrPlayerNotInRoom    = errors.New("player not in room")
	ErrInvalidState       = errors.New("invalid game state")
	ErrInvalidRank        = errors.New("invalid rank")
	ErrInvalidGesture     = errors.New("invalid gesture")
)
