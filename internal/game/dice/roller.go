package dice

import "go.uber.org/zap"

// Roller wraps a Source and logger. Every percentile roll is logged at debug
// level with the event name, roll, threshold, and outcome.
type Roller struct {
	src    Source
	logger *zap.Logger
}

// NewRoller creates a Roller that draws from src and logs to logger.
//
// Precondition: src and logger must be non-nil.
func NewRoller(src Source, logger *zap.Logger) *Roller {
	return &Roller{src: src, logger: logger}
}

// Intn returns a uniformly random int in [0, n).
//
// Precondition: n > 0.
func (r *Roller) Intn(n int) int {
	return r.src.Intn(n)
}

// Roll makes one 1d100 roll for event against percent.
//
// Precondition: event must be non-empty.
// Postcondition: result.Roll is in [1, 100]; result.Fired == (Roll <= Percent).
func (r *Roller) Roll(event string, percent int) RollResult {
	roll := r.src.Intn(100) + 1
	result := RollResult{
		Event:   event,
		Roll:    roll,
		Percent: percent,
		Fired:   roll <= percent,
	}
	r.logger.Debug("percentile roll",
		zap.String("event", event),
		zap.Int("roll", roll),
		zap.Int("percent", percent),
		zap.Bool("fired", result.Fired),
	)
	return result
}

// Chance reports whether an event with the given percent chance fires.
// A percent <= 0 never fires and a percent >= 100 always fires.
func (r *Roller) Chance(event string, percent int) bool {
	return r.Roll(event, percent).Fired
}

// Shuffle permutes n elements in place with a Fisher-Yates shuffle.
//
// Postcondition: swap is called once for each i from n-1 down to 1 with a
// j drawn from [0, i], so every permutation is equally likely under a
// uniform Source.
func (r *Roller) Shuffle(n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		j := r.src.Intn(i + 1)
		swap(i, j)
	}
}
