// Package cards provides the 52-card deck model for Go Fish: ranks, suits,
// shuffling, dealing, hand ordering, and book detection.
package cards

import (
	"fmt"
)

// Rank is a card rank. Its value is the rank's index in display order A,2..10,J,Q,K.
type Rank uint8

// Ranks in display order.
const (
	Ace Rank = iota
	Two
	Three
	Four
	Five
	Six
	Seven
	Eight
	Nine
	Ten
	Jack
	Queen
	King
)

// RankCount is the number of distinct ranks, and therefore the number of books in a game.
const RankCount = 13

var rankNames = [RankCount]string{"A", "2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K"}

// Valid reports whether r is one of the 13 ranks.
func (r Rank) Valid() bool { return r < RankCount }

// String returns the rank's display label, e.g. "A", "10", "K".
func (r Rank) String() string {
	if !r.Valid() {
		return fmt.Sprintf("Rank(%d)", uint8(r))
	}
	return rankNames[r]
}

// ParseRank converts a display label into a Rank.
//
// Postcondition: Returns the matching Rank or a non-nil error for unknown labels.
func ParseRank(s string) (Rank, error) {
	for i, name := range rankNames {
		if name == s {
			return Rank(i), nil
		}
	}
	return 0, fmt.Errorf("unknown rank %q", s)
}

// MarshalText encodes the rank as its display label.
func (r Rank) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid rank %d", uint8(r))
	}
	return []byte(rankNames[r]), nil
}

// UnmarshalText decodes a display label.
func (r *Rank) UnmarshalText(text []byte) error {
	parsed, err := ParseRank(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Suit is a card suit. Its value is the suit's index in display order ♠ ♥ ♦ ♣.
type Suit uint8

// Suits in display order.
const (
	Spades Suit = iota
	Hearts
	Diamonds
	Clubs
)

// SuitCount is the number of suits.
const SuitCount = 4

var suitSymbols = [SuitCount]string{"♠", "♥", "♦", "♣"}

// Valid reports whether s is one of the 4 suits.
func (s Suit) Valid() bool { return s < SuitCount }

// String returns the suit symbol.
func (s Suit) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Suit(%d)", uint8(s))
	}
	return suitSymbols[s]
}

// MarshalText encodes the suit as its symbol.
func (s Suit) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid suit %d", uint8(s))
	}
	return []byte(suitSymbols[s]), nil
}

// UnmarshalText decodes a suit symbol.
func (s *Suit) UnmarshalText(text []byte) error {
	for i, sym := range suitSymbols {
		if sym == string(text) {
			*s = Suit(i)
			return nil
		}
	}
	return fmt.Errorf("unknown suit %q", string(text))
}

// Card is an immutable playing card. Two cards are equal when rank and suit match.
type Card struct {
	Rank Rank `json:"rank"`
	Suit Suit `json:"suit"`
}

// String returns e.g. "10♥".
func (c Card) String() string {
	return c.Rank.String() + c.Suit.String()
}
