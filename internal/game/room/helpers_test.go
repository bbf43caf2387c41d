package room

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/gofish/internal/game/cards"
)

// stubRNG scripts every random choice. Unscripted Intn calls count up from
// zero, unscripted Chance calls miss, and Shuffle applies only the scripted
// swaps.
type stubRNG struct {
	mu          sync.Mutex
	ints        []int
	seq         int
	fires       map[string][]bool
	swaps       [][2]int
	chanceCalls int
}

func newStubRNG() *stubRNG {
	return &stubRNG{fires: make(map[string][]bool)}
}

func (s *stubRNG) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.ints) == 0 {
		v := s.seq % n
		s.seq++
		return v
	}
	v := s.ints[0]
	s.ints = s.ints[1:]
	return v % n
}

func (s *stubRNG) Chance(event string, _ int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chanceCalls++
	q := s.fires[event]
	if len(q) == 0 {
		return false
	}
	s.fires[event] = q[1:]
	return q[0]
}

func (s *stubRNG) Shuffle(_ int, swap func(i, j int)) {
	s.mu.Lock()
	pairs := s.swaps
	s.swaps = nil
	s.mu.Unlock()
	for _, p := range pairs {
		swap(p[0], p[1])
	}
}

func (s *stubRNG) fire(event string, outcomes ...bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fires[event] = append(s.fires[event], outcomes...)
}

// recorder captures published events and their immediate deliveries.
type recorder struct {
	mu         sync.Mutex
	events     []Event
	deliveries []Delivery
}

func (rec *recorder) Publish(r *Room, events []Event) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	for _, ev := range events {
		rec.events = append(rec.events, ev)
		if ev.After == 0 {
			rec.deliveries = append(rec.deliveries, r.Deliveries(ev)...)
		}
	}
}

func (rec *recorder) kinds() []string {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	out := make([]string, 0, len(rec.events))
	for _, ev := range rec.events {
		out = append(out, ev.Kind)
	}
	return out
}

func (rec *recorder) reset() {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.events = nil
	rec.deliveries = nil
}

func (rec *recorder) deliveriesTo(sessionID, kind string) []Delivery {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	var out []Delivery
	for _, d := range rec.deliveries {
		if d.SessionID == sessionID && d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}

func newTestStore(t *testing.T, rng Randomizer) (*Store, *recorder) {
	t.Helper()
	s := NewStore(rng, DefaultRules(), zaptest.NewLogger(t))
	rec := &recorder{}
	s.SetPublisher(rec)
	return s, rec
}

func sid(i int) string  { return fmt.Sprintf("sess_%d", i) }
func conn(i int) string { return fmt.Sprintf("conn_%d", i) }

// lobby creates a room with n seated players sess_0..sess_{n-1}.
func lobby(t *testing.T, s *Store, n int) string {
	t.Helper()
	code, _ := s.Create(sid(0), conn(0), "P0")
	for i := 1; i < n; i++ {
		require.NoError(t, s.Update(code, func(r *Room) error {
			return r.Join(sid(i), conn(i), fmt.Sprintf("P%d", i))
		}))
	}
	return code
}

// started creates and deals a room with n players.
func started(t *testing.T, s *Store, n int) string {
	t.Helper()
	code := lobby(t, s, n)
	require.NoError(t, s.Update(code, func(r *Room) error { return r.Start(sid(0)) }))
	return code
}

func roomOf(s *Store, code string) *Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rooms[NormalizeCode(code)].room
}

func card(r cards.Rank, s cards.Suit) cards.Card { return cards.Card{Rank: r, Suit: s} }

// setTable overwrites hands and books and rebuilds the deck from the cards
// left over, keeping the 52-card invariant.
func setTable(r *Room, hands [][]cards.Card, books [][]cards.Rank) {
	used := make(map[cards.Card]bool)
	claimed := make(map[cards.Rank]bool)
	for i, p := range r.players {
		p.Hand = append(make([]cards.Card, 0, len(hands[i])), hands[i]...)
		cards.SortHand(p.Hand)
		for _, c := range p.Hand {
			used[c] = true
		}
		p.Books = nil
		if books != nil {
			p.Books = append([]cards.Rank(nil), books[i]...)
			for _, rk := range books[i] {
				claimed[rk] = true
			}
		}
	}
	var rest []cards.Card
	for _, c := range cards.FullDeck() {
		if !used[c] && !claimed[c.Rank] {
			rest = append(rest, c)
		}
	}
	r.deck = cards.NewDeck(rest)
}

// cardTotal returns deck + hands + 4 x books.
func cardTotal(r *Room) int {
	total := r.deck.Len()
	for _, p := range r.players {
		total += len(p.Hand) + int(cards.SuitCount)*len(p.Books)
	}
	return total
}
