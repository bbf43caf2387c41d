package gateway

import (
	"sync"
	"time"
)

// Scheduler runs fn once after d.
type Scheduler interface {
	After(d time.Duration, fn func())
}

// TimerScheduler runs deferred work on runtime timers and can cancel
// everything still pending.
type TimerScheduler struct {
	mu      sync.Mutex
	next    uint64
	pending map[uint64]*time.Timer
	stopped bool
}

// NewTimerScheduler creates a TimerScheduler.
func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{pending: make(map[uint64]*time.Timer)}
}

// After schedules fn. Calls after Stop are ignored.
func (s *TimerScheduler) After(d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	id := s.next
	s.next++
	s.pending[id] = time.AfterFunc(d, func() {
		s.mu.Lock()
		_, live := s.pending[id]
		delete(s.pending, id)
		s.mu.Unlock()
		if live {
			fn()
		}
	})
}

// Pending returns the number of timers that have not fired.
func (s *TimerScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Stop cancels every pending timer.
//
// Postcondition: no scheduled fn starts after Stop returns.
func (s *TimerScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for id, t := range s.pending {
		t.Stop()
		delete(s.pending, id)
	}
}
