package room

import "fmt"

// Taboo is a player's forbidden gesture.
type Taboo string

// The closed set of taboo gestures.
const (
	TabooScratchHead Taboo = "SCRATCH_HEAD"
	TabooTouchFace   Taboo = "TOUCH_FACE"
	TabooCoverMouth  Taboo = "COVER_MOUTH"
	TabooLookAway    Taboo = "LOOK_AWAY"
	TabooRaiseHands  Taboo = "RAISE_HANDS"
)

// Taboos lists every taboo in draw order.
var Taboos = []Taboo{TabooScratchHead, TabooTouchFace, TabooCoverMouth, TabooLookAway, TabooRaiseHands}

// ParseTaboo validates a gesture label.
func ParseTaboo(label string) (Taboo, error) {
	for _, t := range Taboos {
		if string(t) == label {
			return t, nil
		}
	}
	return "", fmt.Errorf("gesture %q: %w", label, ErrInvalidGesture)
}
