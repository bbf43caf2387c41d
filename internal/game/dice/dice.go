// Package dice provides the randomness abstraction used by the card table:
// shuffles, taboo draws, and the percentile rolls behind troller events.
package dice

import "fmt"

// RollResult holds the audit trail for a single percentile roll.
//
// Postcondition: Fired == (Roll <= Percent).
type RollResult struct {
	Event   string // troller or table event the roll was made for, e.g. "octopus"
	Roll    int    // 1d100 result in [1, 100]
	Percent int    // chance threshold in [0, 100]
	Fired   bool
}

// String returns a human-readable audit string in the format:
//
//	"octopus 1d100=12 <= 15 fired"
//
// Precondition: r.Event is non-empty.
func (r RollResult) String() string {
	if r.Event == "" {
		panic("dice: RollResult.String() precondition violated: Event must be non-empty")
	}
	outcome := "missed"
	if r.Fired {
		outcome = "fired"
	}
	return fmt.Sprintf("%s 1d100=%d <= %d %s", r.Event, r.Roll, r.Percent, outcome)
}

// Source is the randomness provider for the table.
//
// Implementations MUST be safe for concurrent use.
type Source interface {
	// Intn returns a non-negative random int in [0, n).
	//
	// Precondition: n > 0.
	Intn(n int) int
}
