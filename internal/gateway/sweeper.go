package gateway

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper periodically removes dealt rooms nobody has been connected to for
// longer than the abandonment TTL, and invalidates their sessions.
//
// Invariant: at most one sweep runs at a time.
type Sweeper struct {
	ac       *ActionContext
	interval time.Duration
	ttl      time.Duration
}

// NewSweeper returns a sweeper that checks every interval.
//
// Precondition: interval must be > 0; ttl must be > 0.
func NewSweeper(ac *ActionContext, interval, ttl time.Duration) *Sweeper {
	if interval <= 0 {
		panic("gateway.NewSweeper: interval must be > 0")
	}
	if ttl <= 0 {
		panic("gateway.NewSweeper: ttl must be > 0")
	}
	return &Sweeper{ac: ac, interval: interval, ttl: ttl}
}

// SweepOnce removes every room abandoned as of now.
//
// Postcondition: swept rooms and all their sessions are gone; returns the
// number of rooms removed.
func (s *Sweeper) SweepOnce(now time.Time) int {
	swept := s.ac.Rooms.Sweep(now, s.ttl)
	for _, sw := range swept {
		for _, id := range sw.SessionIDs {
			s.ac.Sessions.Remove(id)
		}
	}
	if len(swept) > 0 {
		s.ac.Metrics.RoomsSwept(len(swept))
		s.ac.Logger.Info("sweep complete", zap.Int("rooms", len(swept)))
	}
	return len(swept)
}

// Start begins the sweep loop. Runs until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.SweepOnce(s.ac.Now())
			}
		}
	}()
}
