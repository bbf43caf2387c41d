package room

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/gofish/internal/game/cards"
)

// Randomizer is the source of every random choice a room makes.
// *dice.Roller satisfies it.
type Randomizer interface {
	Intn(n int) int
	Chance(event string, percent int) bool
	Shuffle(n int, swap func(i, j int))
}

// Phase is a room's position in the game lifecycle.
type Phase int

const (
	// PhaseLobby accepts joins and waits for the host to start.
	PhaseLobby Phase = iota
	// PhaseInProgress is a dealt game accepting turns.
	PhaseInProgress
	// PhaseOver is terminal: all thirteen books are claimed.
	PhaseOver
)

func (p Phase) String() string {
	switch p {
	case PhaseLobby:
		return "lobby"
	case PhaseInProgress:
		return "in_progress"
	case PhaseOver:
		return "over"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Room is one table. All methods must be called with the room locked, which
// Store.Update and Store.View arrange.
type Room struct {
	code    string
	hostID  string
	players []*Player
	deck    *cards.Deck
	turn    int
	phase   Phase
	winner  *Winner

	rules  Rules
	rng    Randomizer
	logger *zap.Logger
	now    func() time.Time

	events         []Event
	abandonedSince time.Time
	deleted        bool
}

func newRoom(code string, rules Rules, rng Randomizer, logger *zap.Logger, now func() time.Time) *Room {
	return &Room{
		code:   code,
		rules:  rules,
		rng:    rng,
		logger: logger.With(zap.String("room", code)),
		now:    now,
		deck:   cards.NewDeck(nil),
	}
}

// Code returns the room code.
func (r *Room) Code() string { return r.code }

// HostID returns the host's session id.
func (r *Room) HostID() string { return r.hostID }

// Phase returns the lifecycle phase.
func (r *Room) Phase() Phase { return r.phase }

// Winner returns the winner once the game is over, else nil.
func (r *Room) Winner() *Winner { return r.winner }

// DeckCount returns the size of the draw pile.
func (r *Room) DeckCount() int { return r.deck.Len() }

// Players returns the seats in turn order. Callers must not retain the slice
// past the critical section.
func (r *Room) Players() []*Player { return r.players }

// Player looks up a seat by session id.
func (r *Room) Player(sessionID string) (*Player, bool) {
	idx := r.indexOf(sessionID)
	if idx < 0 {
		return nil, false
	}
	return r.players[idx], true
}

// CurrentTurnID returns the session id whose turn it is, or "" before the deal.
func (r *Room) CurrentTurnID() string {
	if r.phase == PhaseLobby || len(r.players) == 0 {
		return ""
	}
	return r.players[r.turn].SessionID
}

// Roster returns the public roster as seen by viewerID.
func (r *Room) Roster(viewerID string) []RosterEntry {
	return Redact(r.players, viewerID, r.hostID)
}

// TakeEvents drains the pending outbound events.
func (r *Room) TakeEvents() []Event {
	out := r.events
	r.events = nil
	return out
}

func (r *Room) emit(events ...Event) {
	r.events = append(r.events, events...)
}

func (r *Room) indexOf(sessionID string) int {
	for i, p := range r.players {
		if p.SessionID == sessionID {
			return i
		}
	}
	return -1
}

func (r *Room) connected() []*Player {
	var out []*Player
	for _, p := range r.players {
		if p.Connected {
			out = append(out, p)
		}
	}
	return out
}

func (r *Room) drawTaboo() Taboo {
	return Taboos[r.rng.Intn(len(Taboos))]
}

// Deliveries resolves ev to one message per live recipient connection.
// Private payloads are built here, so the room must be locked.
func (r *Room) Deliveries(ev Event) []Delivery {
	var out []Delivery
	for _, p := range r.players {
		if !p.Connected || p.ConnectionID == "" {
			continue
		}
		if ev.To != "" && p.SessionID != ev.To {
			continue
		}
		if ev.Except != "" && p.SessionID == ev.Except {
			continue
		}
		payload := ev.Payload
		if ev.Private != nil {
			payload = ev.Private(r, p)
		}
		out = append(out, Delivery{
			SessionID:    p.SessionID,
			ConnectionID: p.ConnectionID,
			Kind:         ev.Kind,
			Payload:      payload,
		})
	}
	return out
}

// seatHost places the creator at the table.
func (r *Room) seatHost(sessionID, connectionID, name string) {
	r.hostID = sessionID
	r.players = append(r.players, &Player{
		SessionID:    sessionID,
		ConnectionID: connectionID,
		Name:         name,
		Taboo:        r.drawTaboo(),
		Connected:    true,
	})
}

// Join seats a new player in the lobby and announces the new roster.
//
// Postcondition: on success the player is last in turn order and every
// member receives player-joined.
func (r *Room) Join(sessionID, connectionID, name string) error {
	if r.phase != PhaseLobby {
		return fmt.Errorf("joining %s: %w", r.code, ErrGameAlreadyStarted)
	}
	if len(r.players) >= r.rules.MaxPlayers {
		return fmt.Errorf("joining %s: %w", r.code, ErrRoomFull)
	}
	r.players = append(r.players, &Player{
		SessionID:    sessionID,
		ConnectionID: connectionID,
		Name:         name,
		Taboo:        r.drawTaboo(),
		Connected:    true,
	})
	r.emit(Event{
		Kind: EventPlayerJoined,
		Private: func(r *Room, viewer *Player) any {
			return PlayerJoinedPayload{Players: r.Roster(viewer.SessionID), NewPlayer: name}
		},
	})
	r.logger.Info("player joined", zap.String("session", sessionID), zap.Int("players", len(r.players)))
	return nil
}

// Start deals the game.
//
// Precondition: requester is the host and the lobby holds at least MinPlayers.
// Postcondition: phase is InProgress, the first seat has the turn, and each
// player receives a private game-started.
func (r *Room) Start(requester string) error {
	if r.phase != PhaseLobby {
		return fmt.Errorf("starting %s: %w", r.code, ErrGameAlreadyStarted)
	}
	if requester != r.hostID {
		return fmt.Errorf("starting %s: %w", r.code, ErrNotHost)
	}
	if len(r.players) < r.rules.MinPlayers {
		return fmt.Errorf("starting %s with %d players: %w", r.code, len(r.players), ErrNotEnoughPlayers)
	}
	r.deck = cards.NewShuffledDeck(r.rng)
	hands := cards.Deal(r.deck, len(r.players))
	for i, p := range r.players {
		p.Hand = hands[i]
		p.Books = nil
		p.SkipNextTurn = false
	}
	r.phase = PhaseInProgress
	r.turn = 0
	r.emit(Event{
		Kind: EventGameStarted,
		Private: func(r *Room, viewer *Player) any {
			return GameStartedPayload{
				Players:       r.Roster(viewer.SessionID),
				Hand:          copyHand(viewer.Hand),
				MyTaboo:       viewer.Taboo,
				DeckCount:     r.deck.Len(),
				CurrentTurnID: r.CurrentTurnID(),
			}
		},
	})
	r.logger.Info("game started", zap.Int("players", len(r.players)), zap.Int("deck", r.deck.Len()))
	return nil
}

// AskResult is the asker's view of an ask.
type AskResult struct {
	GotCards       bool
	Count          int
	GoFish         bool
	CompletedBooks []cards.Rank
	GameOver       bool
}

func (r *Room) requireTurn(sessionID string) (*Player, error) {
	if r.phase != PhaseInProgress {
		return nil, ErrInvalidState
	}
	current := r.players[r.turn]
	if current.SessionID != sessionID {
		return nil, ErrNotYourTurn
	}
	return current, nil
}

// Ask requests every card of rank from target.
//
// Postcondition: a miss changes nothing and emits nothing. A hit moves the
// cards, claims any completed books, keeps the turn with the asker, and
// emits cards-transferred to every player.
func (r *Room) Ask(asker, target string, rank cards.Rank) (AskResult, error) {
	current, err := r.requireTurn(asker)
	if err != nil {
		return AskResult{}, fmt.Errorf("asking in %s: %w", r.code, err)
	}
	if !rank.Valid() {
		return AskResult{}, fmt.Errorf("asking in %s: %w", r.code, ErrInvalidRank)
	}
	victim, ok := r.Player(target)
	if !ok || target == asker {
		return AskResult{}, fmt.Errorf("asking %q in %s: %w", target, r.code, ErrTargetNotFound)
	}

	taken, kept := cards.TakeRank(victim.Hand, rank)
	if len(taken) == 0 {
		return AskResult{GoFish: true}, nil
	}
	victim.Hand = kept
	current.Hand = append(current.Hand, taken...)
	cards.SortHand(current.Hand)
	books := r.claimBooks(current)
	over := r.evaluateGameOver()

	count := len(taken)
	r.emit(Event{
		Kind: EventCardsTransferred,
		Private: func(r *Room, viewer *Player) any {
			return CardsTransferredPayload{
				FromPlayerID:   target,
				ToPlayerID:     asker,
				Rank:           rank,
				Count:          count,
				Hand:           copyHand(viewer.Hand),
				Players:        r.Roster(viewer.SessionID),
				DeckCount:      r.deck.Len(),
				CurrentTurnID:  r.CurrentTurnID(),
				CompletedBooks: books,
				GameOver:       over,
				Winner:         r.winner,
			}
		},
	})
	return AskResult{GotCards: true, Count: count, CompletedBooks: books, GameOver: over}, nil
}

// DrawResult is the drawer's view of a draw.
type DrawResult struct {
	// Card is nil when the deck was already empty.
	Card           *cards.Card
	CompletedBooks []cards.Rank
	GameOver       bool
}

// Draw takes the top card for the current player and passes the turn.
//
// Postcondition: an empty deck draws nothing but still passes the turn. The
// game-ending draw passes the turn to the next connected seat with no
// trollers or penalty skips. card-drawn goes to every player with the card
// identity only in the drawer's copy.
func (r *Room) Draw(drawer string) (DrawResult, error) {
	current, err := r.requireTurn(drawer)
	if err != nil {
		return DrawResult{}, fmt.Errorf("drawing in %s: %w", r.code, err)
	}
	var drawn *cards.Card
	if c, ok := r.deck.Draw(); ok {
		drawn = &c
		current.Hand = append(current.Hand, c)
		cards.SortHand(current.Hand)
	}
	books := r.claimBooks(current)
	over := r.evaluateGameOver()

	var followUps []Event
	if over {
		r.passTurn()
	} else {
		followUps = r.advanceTurn()
	}
	r.emit(Event{
		Kind: EventCardDrawn,
		Private: func(r *Room, viewer *Player) any {
			p := CardDrawnPayload{
				PlayerID:       drawer,
				Hand:           copyHand(viewer.Hand),
				Players:        r.Roster(viewer.SessionID),
				DeckCount:      r.deck.Len(),
				CurrentTurnID:  r.CurrentTurnID(),
				CompletedBooks: books,
				GameOver:       over,
				Winner:         r.winner,
			}
			if viewer.SessionID == drawer {
				p.DrawnCard = drawn
			}
			return p
		},
	})
	r.emit(followUps...)
	return DrawResult{Card: drawn, CompletedBooks: books, GameOver: over}, nil
}

func (r *Room) claimBooks(p *Player) []cards.Rank {
	remaining, books := cards.ExtractBooks(p.Hand)
	if len(books) == 0 {
		return nil
	}
	p.Hand = remaining
	p.Books = append(p.Books, books...)
	r.logger.Info("books claimed", zap.String("session", p.SessionID), zap.Int("books", len(p.Books)))
	return books
}

// evaluateGameOver ends the game once every rank is claimed.
//
// Postcondition: returns true iff the total book count is RankCount; the
// winner is the first seat in turn order holding the strict maximum.
func (r *Room) evaluateGameOver() bool {
	total := 0
	for _, p := range r.players {
		total += len(p.Books)
	}
	if total < int(cards.RankCount) {
		return false
	}
	var best *Player
	for _, p := range r.players {
		if best == nil || len(p.Books) > len(best.Books) {
			best = p
		}
	}
	r.phase = PhaseOver
	r.winner = &Winner{ID: best.SessionID, Name: best.Name, Books: len(best.Books)}
	r.logger.Info("game over", zap.String("winner", best.SessionID), zap.Int("books", len(best.Books)))
	return true
}

// Catcher names who caught a taboo.
type Catcher struct {
	ID   string
	Name string
}

// SystemCatcher is credited when nobody else is connected.
var SystemCatcher = Catcher{ID: "system", Name: "The System"}

// GestureResult is the actor's view of a self-reported gesture.
type GestureResult struct {
	Caught  bool
	Catcher Catcher
	Penalty string
}

// ReportGesture records that the actor's camera saw them make label.
//
// Postcondition: when label is the actor's own taboo, the actor's next turn
// is forfeited and banned-move-caught is broadcast; otherwise nothing changes.
func (r *Room) ReportGesture(actor string, label Taboo) (GestureResult, error) {
	if r.phase != PhaseInProgress {
		return GestureResult{}, fmt.Errorf("gesture in %s: %w", r.code, ErrInvalidState)
	}
	if _, err := ParseTaboo(string(label)); err != nil {
		return GestureResult{}, err
	}
	p, ok := r.Player(actor)
	if !ok {
		return GestureResult{}, fmt.Errorf("gesture in %s: %w", r.code, ErrPlayerNotInRoom)
	}
	if p.Taboo != label {
		return GestureResult{}, nil
	}
	var others []*Player
	for _, o := range r.connected() {
		if o.SessionID != actor {
			others = append(others, o)
		}
	}
	catcher := SystemCatcher
	if len(others) > 0 {
		o := others[r.rng.Intn(len(others))]
		catcher = Catcher{ID: o.SessionID, Name: o.Name}
	}
	p.SkipNextTurn = true
	r.emit(caughtEvent(p, catcher, label))
	r.logger.Info("taboo caught", zap.String("session", actor), zap.String("catcher", catcher.ID))
	return GestureResult{Caught: true, Catcher: catcher, Penalty: PenaltySkipTurn}, nil
}

// ReportBannedMove lets reporter accuse victim of making label.
//
// Postcondition: a correct accusation forfeits the victim's next turn and
// broadcasts banned-move-caught; a wrong one changes nothing.
func (r *Room) ReportBannedMove(reporter, victim string, label Taboo) (bool, error) {
	if r.phase != PhaseInProgress {
		return false, fmt.Errorf("report in %s: %w", r.code, ErrInvalidState)
	}
	if _, err := ParseTaboo(string(label)); err != nil {
		return false, err
	}
	rep, ok := r.Player(reporter)
	if !ok {
		return false, fmt.Errorf("report in %s: %w", r.code, ErrPlayerNotInRoom)
	}
	v, ok := r.Player(victim)
	if !ok {
		return false, fmt.Errorf("report on %q in %s: %w", victim, r.code, ErrTargetNotFound)
	}
	if v.Taboo != label {
		return false, nil
	}
	v.SkipNextTurn = true
	r.emit(caughtEvent(v, Catcher{ID: rep.SessionID, Name: rep.Name}, label))
	return true, nil
}

func caughtEvent(victim *Player, catcher Catcher, label Taboo) Event {
	return Event{
		Kind: EventBannedMoveCaught,
		Payload: BannedMoveCaughtPayload{
			VictimID:     victim.SessionID,
			VictimName:   victim.Name,
			ReporterID:   catcher.ID,
			ReporterName: catcher.Name,
			GestureType:  label,
			Correct:      true,
			Penalty:      PenaltySkipTurn,
		},
	}
}

// DisconnectResult describes what a disconnect did to the room.
type DisconnectResult struct {
	// Stale is set when the connection no longer speaks for the player.
	Stale bool
	// Removed is set when a lobby seat was given up.
	Removed bool
	// Empty is set when the lobby has no players left.
	Empty bool
	// NewHostID is the host after the disconnect.
	NewHostID string
}

// Disconnect handles the loss of connectionID for sessionID.
//
// Postcondition: in the lobby the seat is removed and the host reassigned to
// the first remaining seat; after the deal the seat stays as a disconnected
// placeholder and, if it held the turn in a live game, the turn advances.
func (r *Room) Disconnect(sessionID, connectionID string) (DisconnectResult, error) {
	idx := r.indexOf(sessionID)
	if idx < 0 {
		return DisconnectResult{}, fmt.Errorf("disconnect from %s: %w", r.code, ErrPlayerNotInRoom)
	}
	p := r.players[idx]
	if p.ConnectionID != connectionID {
		return DisconnectResult{Stale: true, NewHostID: r.hostID}, nil
	}

	if r.phase == PhaseLobby {
		r.players = append(r.players[:idx], r.players[idx+1:]...)
		if len(r.players) == 0 {
			r.logger.Info("lobby emptied", zap.String("session", sessionID))
			return DisconnectResult{Removed: true, Empty: true}, nil
		}
		if r.hostID == sessionID {
			r.hostID = r.players[0].SessionID
		}
		hostID := r.hostID
		r.emit(Event{
			Kind: EventPlayerLeft,
			Private: func(r *Room, viewer *Player) any {
				return PlayerLeftPayload{PlayerID: sessionID, Players: r.Roster(viewer.SessionID), NewHostID: hostID}
			},
		})
		r.logger.Info("player left lobby", zap.String("session", sessionID), zap.String("host", hostID))
		return DisconnectResult{Removed: true, NewHostID: hostID}, nil
	}

	p.Connected = false
	p.ConnectionID = ""
	if len(r.connected()) == 0 {
		r.abandonedSince = r.now()
	}
	r.emit(Event{
		Kind: EventPlayerDisconnected,
		Private: func(r *Room, viewer *Player) any {
			return PresencePayload{PlayerID: sessionID, PlayerName: p.Name, Players: r.Roster(viewer.SessionID)}
		},
	})
	if r.phase == PhaseInProgress && r.turn == idx {
		r.emit(r.advanceTurn()...)
		r.emit(r.turnChanged())
	}
	r.logger.Info("player disconnected", zap.String("session", sessionID))
	return DisconnectResult{NewHostID: r.hostID}, nil
}

func (r *Room) turnChanged() Event {
	return Event{Kind: EventTurnChanged, Payload: TurnChangedPayload{CurrentTurnID: r.CurrentTurnID()}}
}

// RejoinView is the state a returning player needs to redraw the table.
type RejoinView struct {
	RoomCode      string        `json:"roomCode"`
	Players       []RosterEntry `json:"players"`
	Hand          []cards.Card  `json:"hand"`
	DeckCount     int           `json:"deckCount"`
	CurrentTurnID string        `json:"currentTurnId"`
	GameStarted   bool          `json:"gameStarted"`
	GameOver      bool          `json:"gameOver"`
	Winner        *Winner       `json:"winner"`
	MyTaboo       Taboo         `json:"myTaboo"`
}

// Rejoin binds a new connection to an existing seat.
//
// Postcondition: the seat is connected on connectionID, other members get
// player-reconnected, and if the turn sat with a disconnected seat in a live
// game it advances with a turn-changed broadcast.
func (r *Room) Rejoin(sessionID, connectionID string) (RejoinView, error) {
	p, ok := r.Player(sessionID)
	if !ok {
		return RejoinView{}, fmt.Errorf("rejoin %s: %w", r.code, ErrPlayerNotInRoom)
	}
	p.Connected = true
	p.ConnectionID = connectionID
	r.abandonedSince = time.Time{}

	r.emit(Event{
		Kind:   EventPlayerReconnected,
		Except: sessionID,
		Private: func(r *Room, viewer *Player) any {
			return PresencePayload{PlayerID: sessionID, PlayerName: p.Name, Players: r.Roster(viewer.SessionID)}
		},
	})
	if r.phase == PhaseInProgress && !r.players[r.turn].Connected {
		r.emit(r.advanceTurn()...)
		r.emit(r.turnChanged())
	}
	r.logger.Info("player rejoined", zap.String("session", sessionID))
	return r.viewFor(p), nil
}

func (r *Room) viewFor(p *Player) RejoinView {
	return RejoinView{
		RoomCode:      r.code,
		Players:       r.Roster(p.SessionID),
		Hand:          copyHand(p.Hand),
		DeckCount:     r.deck.Len(),
		CurrentTurnID: r.CurrentTurnID(),
		GameStarted:   r.phase != PhaseLobby,
		GameOver:      r.phase == PhaseOver,
		Winner:        r.winner,
		MyTaboo:       p.Taboo,
	}
}

// SessionIDs lists every seated session.
func (r *Room) SessionIDs() []string {
	out := make([]string, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, p.SessionID)
	}
	return out
}
