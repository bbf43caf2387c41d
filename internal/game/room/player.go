package room

import "github.com/cory-johannsen/gofish/internal/game/cards"

// Player is one seat at a table.
type Player struct {
	// SessionID is the durable identity; stable across reconnects.
	SessionID string
	// ConnectionID is the live transport connection; empty while disconnected.
	ConnectionID string
	// Name is the display name.
	Name string
	// Hand is kept sorted by rank then suit.
	Hand []cards.Card
	// Books are the ranks this player has completed.
	Books []cards.Rank
	// Taboo is the gesture this player must not make.
	Taboo Taboo
	// Connected reports whether a live connection speaks for the player.
	Connected bool
	// SkipNextTurn is set by a caught taboo and cleared when the skip is served.
	SkipNextTurn bool
}

// RosterEntry is the public view of a player as seen by one viewer.
type RosterEntry struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	CardCount int          `json:"cardCount"`
	Books     []cards.Rank `json:"books"`
	// Taboo is always nil: taboos travel only in private payloads.
	Taboo     *Taboo `json:"taboo"`
	Connected bool   `json:"connected"`
	IsYou     bool   `json:"isYou"`
	IsHost    bool   `json:"isHost"`
}

// Redact builds the public roster for viewerID. An empty viewerID marks no
// entry as the viewer.
//
// Postcondition: len(result) == len(players); every entry's Taboo is nil.
func Redact(players []*Player, viewerID, hostID string) []RosterEntry {
	out := make([]RosterEntry, 0, len(players))
	for _, p := range players {
		books := make([]cards.Rank, len(p.Books))
		copy(books, p.Books)
		out = append(out, RosterEntry{
			ID:        p.SessionID,
			Name:      p.Name,
			CardCount: len(p.Hand),
			Books:     books,
			Connected: p.Connected,
			IsYou:     viewerID != "" && p.SessionID == viewerID,
			IsHost:    p.SessionID == hostID,
		})
	}
	return out
}

func copyHand(hand []cards.Card) []cards.Card {
	out := make([]cards.Card, len(hand))
	copy(out, hand)
	return out
}
