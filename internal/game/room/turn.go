package room

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/gofish/internal/game/cards"
)

// Troller event names passed to the Randomizer.
const (
	TrollOctopus    = "octopus"
	TrollDeckSwap   = "deck-swap"
	TrollEarthquake = "earthquake"
)

// visitsPerSeat bounds the turn search before trollers stop rolling.
const visitsPerSeat = 16

// advanceTurn passes the turn to the next eligible seat and returns the
// notifications the search produced.
//
// Postcondition: while any player is connected the turn lands on a
// connected player; every skip flag passed over is cleared with a
// turn-skipped notice. With nobody connected the turn moves one seat and no
// trollers roll.
func (r *Room) advanceTurn() []Event {
	n := len(r.players)
	if n == 0 {
		return nil
	}
	if len(r.connected()) == 0 {
		r.turn = (r.turn + 1) % n
		return nil
	}

	var out []Event
	limit := visitsPerSeat * n
	for visits := 1; ; visits++ {
		r.turn = (r.turn + 1) % n
		candidate := r.players[r.turn]
		if !candidate.Connected {
			continue
		}
		if candidate.SkipNextTurn {
			candidate.SkipNextTurn = false
			out = append(out, Event{
				Kind: EventTurnSkipped,
				Payload: TurnSkippedPayload{
					PlayerID:   candidate.SessionID,
					PlayerName: candidate.Name,
					Reason:     SkipReasonPenalty,
				},
			})
			continue
		}
		if visits >= limit {
			r.logger.Warn("turn search bound reached", zap.String("session", candidate.SessionID), zap.Int("visits", visits))
			return out
		}

		octopus := r.rng.Chance(TrollOctopus, r.rules.OctopusChance)
		swap := r.rng.Chance(TrollDeckSwap, r.rules.DeckSwapChance)
		quake := r.rng.Chance(TrollEarthquake, r.rules.EarthquakeChance)

		if octopus {
			out = append(out, r.octopus(candidate)...)
		}
		if swap {
			out = append(out, r.deckSwap()...)
		}
		if quake {
			out = append(out, r.earthquake(candidate)...)
		}
		if !octopus {
			return out
		}
	}
}

// passTurn moves the turn to the next connected seat without rolling
// trollers or touching skip flags. It is used once the game is over.
func (r *Room) passTurn() {
	n := len(r.players)
	for i := 1; i <= n; i++ {
		next := (r.turn + i) % n
		if r.players[next].Connected || i == n {
			r.turn = next
			return
		}
	}
}

// octopus eats the candidate's turn. The candidate sees the gag at once and
// the table learns of the skip once it has played out.
func (r *Room) octopus(candidate *Player) []Event {
	target := TrollTargetPayload{PlayerID: candidate.SessionID, PlayerName: candidate.Name}
	r.logger.Info("octopus troll", zap.String("session", candidate.SessionID))
	return []Event{
		{Kind: EventTrollOctopus, To: candidate.SessionID, Payload: target},
		{
			Kind:  EventTurnSkipped,
			After: r.rules.OctopusSkipDelay,
			Payload: TurnSkippedPayload{
				PlayerID:   candidate.SessionID,
				PlayerName: candidate.Name,
				Reason:     SkipReasonOctopus,
			},
		},
	}
}

// deckSwap permutes whole hands among connected players.
//
// Postcondition: the multiset of cards in hands is unchanged and each hand
// is sorted. Fewer than two connected players is a no-op.
func (r *Room) deckSwap() []Event {
	live := r.connected()
	if len(live) < 2 {
		return nil
	}
	perm := make([]int, len(live))
	for i := range perm {
		perm[i] = i
	}
	r.rng.Shuffle(len(perm), func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })

	old := make([][]cards.Card, len(live))
	for i, p := range live {
		old[i] = p.Hand
	}
	swaps := make([]HandSwap, 0, len(live))
	for i, p := range live {
		from := live[perm[i]]
		p.Hand = old[perm[i]]
		cards.SortHand(p.Hand)
		swaps = append(swaps, HandSwap{
			PlayerID:   p.SessionID,
			PlayerName: p.Name,
			FromID:     from.SessionID,
			FromName:   from.Name,
		})
	}
	r.logger.Info("deck swap troll", zap.Int("players", len(live)))
	return []Event{
		{Kind: EventTrollDeckSwap, Payload: DeckSwapPayload{Swaps: swaps}},
		{Kind: EventStateRefresh, After: r.rules.DeckSwapRefreshDelay, Private: stateRefresh(TrollDeckSwap)},
	}
}

func (r *Room) earthquake(candidate *Player) []Event {
	if len(r.connected()) < 2 {
		return nil
	}
	r.logger.Info("earthquake troll", zap.String("session", candidate.SessionID))
	return []Event{{
		Kind:    EventTrollEarthquake,
		Payload: TrollTargetPayload{PlayerID: candidate.SessionID, PlayerName: candidate.Name},
	}}
}

func stateRefresh(reason string) func(r *Room, viewer *Player) any {
	return func(r *Room, viewer *Player) any {
		return StateRefreshPayload{
			Reason:        reason,
			Hand:          copyHand(viewer.Hand),
			Players:       r.Roster(viewer.SessionID),
			DeckCount:     r.deck.Len(),
			CurrentTurnID: r.CurrentTurnID(),
			GameOver:      r.phase == PhaseOver,
			Winner:        r.winner,
		}
	}
}
