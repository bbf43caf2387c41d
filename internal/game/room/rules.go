package room

import (
	"fmt"
	"time"
)

// HardMaxPlayers is the largest table the deal rules support.
const HardMaxPlayers = 4

// Rules holds the table limits and troller tuning shared by every room in a Store.
type Rules struct {
	// MinPlayers is the smallest table the host may start.
	MinPlayers int
	// MaxPlayers caps lobby size; never above HardMaxPlayers.
	MaxPlayers int
	// OctopusChance is the percent chance an arriving player's turn is eaten.
	OctopusChance int
	// DeckSwapChance is the percent chance connected players' hands are permuted.
	DeckSwapChance int
	// EarthquakeChance is the percent chance of a cosmetic earthquake.
	EarthquakeChance int
	// OctopusSkipDelay is how long the octopus gag plays before the skip is announced.
	OctopusSkipDelay time.Duration
	// DeckSwapRefreshDelay is how long the swap animation plays before hands are refreshed.
	DeckSwapRefreshDelay time.Duration
}

// DefaultRules returns the standard table rules.
func DefaultRules() Rules {
	return Rules{
		MinPlayers:           2,
		MaxPlayers:           HardMaxPlayers,
		OctopusChance:        15,
		DeckSwapChance:       12,
		EarthquakeChance:     10,
		OctopusSkipDelay:     3 * time.Second,
		DeckSwapRefreshDelay: 2500 * time.Millisecond,
	}
}

// Validate checks the rule invariants.
//
// Postcondition: Returns nil when 2 <= MinPlayers <= MaxPlayers <= HardMaxPlayers,
// every chance is in [0, 100], and no delay is negative.
func (r Rules) Validate() error {
	if r.MinPlayers < 2 {
		return fmt.Errorf("min players must be >= 2, got %d", r.MinPlayers)
	}
	if r.MaxPlayers < r.MinPlayers || r.MaxPlayers > HardMaxPlayers {
		return fmt.Errorf("max players must be in [%d, %d], got %d", r.MinPlayers, HardMaxPlayers, r.MaxPlayers)
	}
	for name, pct := range map[string]int{
		"octopus":    r.OctopusChance,
		"deck swap":  r.DeckSwapChance,
		"earthquake": r.EarthquakeChance,
	} {
		if pct < 0 || pct > 100 {
			return fmt.Errorf("%s chance must be in [0, 100], got %d", name, pct)
		}
	}
	if r.OctopusSkipDelay < 0 || r.DeckSwapRefreshDelay < 0 {
		return fmt.Errorf("troller delays must not be negative")
	}
	return nil
}
