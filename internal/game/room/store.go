package room

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CodeAlphabet excludes look-alike characters (I, O, 0, 1).
const CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// CodeLength is the number of characters in a room code.
const CodeLength = 4

// Publisher receives the events a critical section produced while the room
// is still locked.
type Publisher interface {
	Publish(r *Room, events []Event)
}

type entry struct {
	mu   sync.Mutex
	room *Room
}

// Store owns every live room. The map lock is never held while waiting for a
// room lock.
type Store struct {
	mu     sync.RWMutex
	rooms  map[string]*entry
	rules  Rules
	rng    Randomizer
	logger *zap.Logger
	now    func() time.Time

	publisher Publisher
}

// NewStore creates an empty Store.
//
// Precondition: rules must be valid; rng and logger must be non-nil.
func NewStore(rng Randomizer, rules Rules, logger *zap.Logger) *Store {
	return &Store{
		rooms:  make(map[string]*entry),
		rules:  rules,
		rng:    rng,
		logger: logger,
		now:    time.Now,
	}
}

// SetPublisher installs the sink for room events. Must be called before the
// store is shared.
func (s *Store) SetPublisher(p Publisher) {
	s.publisher = p
}

// NormalizeCode canonicalizes user input for lookup.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (s *Store) newCode() string {
	var b strings.Builder
	for i := 0; i < CodeLength; i++ {
		b.WriteByte(CodeAlphabet[s.rng.Intn(len(CodeAlphabet))])
	}
	return b.String()
}

// Create opens a room with the caller seated as host.
//
// Postcondition: the returned code is unique among live rooms and the roster
// is as seen by the host.
func (s *Store) Create(sessionID, connectionID, hostName string) (string, []RosterEntry) {
	s.mu.Lock()
	code := s.newCode()
	for s.rooms[code] != nil {
		code = s.newCode()
	}
	r := newRoom(code, s.rules, s.rng, s.logger, s.now)
	r.seatHost(sessionID, connectionID, hostName)
	s.rooms[code] = &entry{room: r}
	s.mu.Unlock()

	s.logger.Info("room created", zap.String("room", code), zap.String("session", sessionID))
	return code, r.Roster(sessionID)
}

func (s *Store) lookup(code string) (*entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.rooms[NormalizeCode(code)]
	return e, ok
}

// Update runs fn as one critical section on the room. Events fn produces are
// published before the lock is released, and a lobby left empty is deleted.
//
// Postcondition: returns ErrRoomNotFound (wrapped) when no such room exists;
// otherwise returns fn's error.
func (s *Store) Update(code string, fn func(r *Room) error) error {
	e, ok := s.lookup(code)
	if !ok {
		return fmt.Errorf("room %q: %w", code, ErrRoomNotFound)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	r := e.room
	if r.deleted {
		return fmt.Errorf("room %q: %w", code, ErrRoomNotFound)
	}

	err := fn(r)
	if events := r.TakeEvents(); len(events) > 0 && s.publisher != nil {
		s.publisher.Publish(r, events)
	}
	if r.phase == PhaseLobby && len(r.players) == 0 {
		r.deleted = true
		s.mu.Lock()
		delete(s.rooms, r.code)
		s.mu.Unlock()
		s.logger.Info("room deleted", zap.String("room", r.code))
	}
	return err
}

// View runs fn under the room lock without mutating intent. Any events fn
// emits are still published.
func (s *Store) View(code string, fn func(r *Room) error) error {
	return s.Update(code, fn)
}

// Count returns the number of live rooms.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// Swept describes a room the sweeper removed.
type Swept struct {
	Code       string
	SessionIDs []string
}

// Sweep removes dealt rooms whose players have all been disconnected for at
// least ttl.
func (s *Store) Sweep(now time.Time, ttl time.Duration) []Swept {
	s.mu.RLock()
	candidates := make([]*entry, 0, len(s.rooms))
	for _, e := range s.rooms {
		candidates = append(candidates, e)
	}
	s.mu.RUnlock()

	var out []Swept
	for _, e := range candidates {
		e.mu.Lock()
		r := e.room
		if !r.deleted && r.phase != PhaseLobby && !r.abandonedSince.IsZero() &&
			len(r.connected()) == 0 && now.Sub(r.abandonedSince) >= ttl {
			r.deleted = true
			s.mu.Lock()
			delete(s.rooms, r.code)
			s.mu.Unlock()
			out = append(out, Swept{Code: r.code, SessionIDs: r.SessionIDs()})
			s.logger.Info("abandoned room swept", zap.String("room", r.code),
				zap.Duration("elapsed", now.Sub(r.abandonedSince)))
		}
		e.mu.Unlock()
	}
	return out
}
