package cards

import "sort"

// DeckSize is the number of cards in a full deck.
const DeckSize = RankCount * SuitCount

// Shuffler permutes n elements in place.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

// Deck is the draw pile. The top of the deck is the end of the slice.
type Deck struct {
	cards []Card
}

// FullDeck returns the 52 cards in rank-major, suit-minor order.
//
// Postcondition: len(result) == DeckSize and every (rank, suit) appears once.
func FullDeck() []Card {
	out := make([]Card, 0, DeckSize)
	for s := Suit(0); s < SuitCount; s++ {
		for r := Rank(0); r < RankCount; r++ {
			out = append(out, Card{Rank: r, Suit: s})
		}
	}
	return out
}

// NewShuffledDeck returns a full deck in uniformly random order.
//
// Precondition: shuffler must be non-nil.
// Postcondition: Len() == DeckSize.
func NewShuffledDeck(shuffler Shuffler) *Deck {
	cards := FullDeck()
	shuffler.Shuffle(len(cards), func(i, j int) { cards[i], cards[j] = cards[j], cards[i] })
	return &Deck{cards: cards}
}

// NewDeck builds a deck from an explicit card order; the last card is the top.
func NewDeck(cards []Card) *Deck {
	out := make([]Card, len(cards))
	copy(out, cards)
	return &Deck{cards: out}
}

// Len returns the number of cards left in the draw pile.
func (d *Deck) Len() int {
	if d == nil {
		return 0
	}
	return len(d.cards)
}

// Draw pops the top card.
//
// Postcondition: Returns (card, true) and shrinks the deck by one, or
// (Card{}, false) when the deck is empty.
func (d *Deck) Draw() (Card, bool) {
	if d == nil || len(d.cards) == 0 {
		return Card{}, false
	}
	top := d.cards[len(d.cards)-1]
	d.cards = d.cards[:len(d.cards)-1]
	return top, true
}

// Cards returns a copy of the remaining cards, bottom first.
func (d *Deck) Cards() []Card {
	if d == nil {
		return nil
	}
	out := make([]Card, len(d.cards))
	copy(out, d.cards)
	return out
}

// HandSize returns the opening hand size for a table of the given size.
func HandSize(players int) int {
	if players <= 3 {
		return 7
	}
	return 5
}

// Deal draws opening hands for the given number of players, one player at a
// time in turn order, and returns each hand sorted.
//
// Precondition: players >= 1.
// Postcondition: len(result) == players; each hand holds HandSize(players)
// cards unless the deck ran out first.
func Deal(d *Deck, players int) [][]Card {
	size := HandSize(players)
	hands := make([][]Card, players)
	for p := 0; p < players; p++ {
		hand := make([]Card, 0, size)
		for i := 0; i < size; i++ {
			card, ok := d.Draw()
			if !ok {
				break
			}
			hand = append(hand, card)
		}
		SortHand(hand)
		hands[p] = hand
	}
	return hands
}

// SortHand orders hand in place by rank then suit.
func SortHand(hand []Card) {
	sort.SliceStable(hand, func(i, j int) bool {
		if hand[i].Rank != hand[j].Rank {
			return hand[i].Rank < hand[j].Rank
		}
		return hand[i].Suit < hand[j].Suit
	})
}

// ExtractBooks removes every rank held four times.
//
// Postcondition: remaining holds no rank with count 4; books lists each
// removed rank once in ascending order; len(remaining) == len(hand) - 4*len(books).
func ExtractBooks(hand []Card) (remaining []Card, books []Rank) {
	var counts [RankCount]int
	for _, c := range hand {
		counts[c.Rank]++
	}
	for r := Rank(0); r < RankCount; r++ {
		if counts[r] == SuitCount {
			books = append(books, r)
		}
	}
	if len(books) == 0 {
		return hand, nil
	}
	remaining = make([]Card, 0, len(hand)-SuitCount*len(books))
	for _, c := range hand {
		if counts[c.Rank] == SuitCount {
			continue
		}
		remaining = append(remaining, c)
	}
	return remaining, books
}

// TakeRank splits hand into the cards of rank and everything else.
//
// Postcondition: len(taken) + len(kept) == len(hand); kept preserves order.
func TakeRank(hand []Card, rank Rank) (taken, kept []Card) {
	kept = make([]Card, 0, len(hand))
	for _, c := range hand {
		if c.Rank == rank {
			taken = append(taken, c)
			continue
		}
		kept = append(kept, c)
	}
	return taken, kept
}
