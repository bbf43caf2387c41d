package room

import (
	"time"

	"github.com/cory-johannsen/gofish/internal/game/cards"
)

// Outbound event kinds.
const (
	EventPlayerJoined       = "player-joined"
	EventPlayerLeft         = "player-left"
	EventPlayerDisconnected = "player-disconnected"
	EventPlayerReconnected  = "player-reconnected"
	EventGameStarted        = "game-started"
	EventCardsTransferred   = "cards-transferred"
	EventCardDrawn          = "card-drawn"
	EventTurnChanged        = "turn-changed"
	EventTurnSkipped        = "turn-skipped"
	EventBannedMoveCaught   = "banned-move-caught"
	EventTrollOctopus       = "troll-octopus"
	EventTrollDeckSwap      = "troll-deck-swap"
	EventTrollEarthquake    = "troll-earthquake"
	EventStateRefresh       = "state-refresh"
)

// Skip reasons carried by turn-skipped.
const (
	SkipReasonPenalty = "banned_move_penalty"
	SkipReasonOctopus = "octopus"
)

// PenaltySkipTurn is the only penalty a caught taboo carries.
const PenaltySkipTurn = "SKIP_TURN"

// Event is an outbound notification produced by a room operation.
type Event struct {
	// Kind is the wire event name.
	Kind string
	// To restricts delivery to one session; empty means every player.
	To string
	// Except skips one session on a room-wide event.
	Except string
	// After delays delivery; the room is looked up again when it fires.
	After time.Duration
	// Payload is shared by every recipient. Ignored when Private is set.
	Payload any
	// Private builds each recipient's payload under the room lock at delivery time.
	Private func(r *Room, viewer *Player) any
}

// Delivery is one resolved message for one live connection.
type Delivery struct {
	SessionID    string
	ConnectionID string
	Kind         string
	Payload      any
}

// Winner identifies the player with the most books when the game ends.
type Winner struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Books int    `json:"books"`
}

// PlayerJoinedPayload is sent to every member when the lobby grows.
type PlayerJoinedPayload struct {
	Players   []RosterEntry `json:"players"`
	NewPlayer string        `json:"newPlayer"`
}

// PlayerLeftPayload is sent when a lobby member leaves.
type PlayerLeftPayload struct {
	PlayerID  string        `json:"playerId"`
	Players   []RosterEntry `json:"players"`
	NewHostID string        `json:"newHostId"`
}

// PresencePayload announces a disconnect or reconnect during a game.
type PresencePayload struct {
	PlayerID   string        `json:"playerId"`
	PlayerName string        `json:"playerName"`
	Players    []RosterEntry `json:"players"`
}

// GameStartedPayload is the private deal each player receives.
type GameStartedPayload struct {
	Players       []RosterEntry `json:"players"`
	Hand          []cards.Card  `json:"hand"`
	MyTaboo       Taboo         `json:"myTaboo"`
	DeckCount     int           `json:"deckCount"`
	CurrentTurnID string        `json:"currentTurnId"`
}

// CardsTransferredPayload follows a successful ask.
type CardsTransferredPayload struct {
	FromPlayerID   string        `json:"fromPlayerId"`
	ToPlayerID     string        `json:"toPlayerId"`
	Rank           cards.Rank    `json:"rank"`
	Count          int           `json:"count"`
	Hand           []cards.Card  `json:"hand"`
	Players        []RosterEntry `json:"players"`
	DeckCount      int           `json:"deckCount"`
	CurrentTurnID  string        `json:"currentTurnId"`
	CompletedBooks []cards.Rank  `json:"completedBooks"`
	GameOver       bool          `json:"gameOver"`
	Winner         *Winner       `json:"winner"`
}

// CardDrawnPayload follows a draw. DrawnCard is set only for the drawer.
type CardDrawnPayload struct {
	PlayerID       string        `json:"playerId"`
	DrawnCard      *cards.Card   `json:"drawnCard"`
	Hand           []cards.Card  `json:"hand"`
	Players        []RosterEntry `json:"players"`
	DeckCount      int           `json:"deckCount"`
	CurrentTurnID  string        `json:"currentTurnId"`
	CompletedBooks []cards.Rank  `json:"completedBooks"`
	GameOver       bool          `json:"gameOver"`
	Winner         *Winner       `json:"winner"`
}

// TurnChangedPayload announces the new current player.
type TurnChangedPayload struct {
	CurrentTurnID string `json:"currentTurnId"`
}

// TurnSkippedPayload announces a forfeited turn.
type TurnSkippedPayload struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Reason     string `json:"reason"`
}

// BannedMoveCaughtPayload announces a caught taboo.
type BannedMoveCaughtPayload struct {
	VictimID     string `json:"victimId"`
	VictimName   string `json:"victimName"`
	ReporterID   string `json:"reporterId"`
	ReporterName string `json:"reporterName"`
	GestureType  Taboo  `json:"gestureType"`
	Correct      bool   `json:"correct"`
	Penalty      string `json:"penalty"`
}

// TrollTargetPayload names the player a troller landed on.
type TrollTargetPayload struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

// HandSwap records that PlayerID now holds the hand FromID held before a deck swap.
type HandSwap struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	FromID     string `json:"receivedFromId"`
	FromName   string `json:"receivedFromName"`
}

// DeckSwapPayload summarizes a deck swap.
type DeckSwapPayload struct {
	Swaps []HandSwap `json:"swaps"`
}

// StateRefreshPayload is a full private resync of one player's view.
type StateRefreshPayload struct {
	Reason        string        `json:"reason"`
	Hand          []cards.Card  `json:"hand"`
	Players       []RosterEntry `json:"players"`
	DeckCount     int           `json:"deckCount"`
	CurrentTurnID string        `json:"currentTurnId"`
	GameOver      bool          `json:"gameOver"`
	Winner        *Winner       `json:"winner"`
}
