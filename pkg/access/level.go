// Package access defines the accessibility lattice shared by requirements,
// graph nodes, dungeon sub-graphs and location summaries.
package access

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Level describes how reachable something currently is.
//
// None, Inspect, SequenceBreak and Normal are produced by requirement and
// graph evaluation. Partial and Cleared only come out of Summarize and the
// location aggregator.
type Level uint8

const (
	None Level = iota
	Partial
	Inspect
	SequenceBreak
	Normal
	Cleared
)

// ErrUnknownLevel is returned when parsing a level name that does not exist.
var ErrUnknownLevel = errors.New("unknown accessibility level")

var levelNames = [...]string{
	None:          "none",
	Partial:       "partial",
	Inspect:       "inspect",
	SequenceBreak: "sequence_break",
	Normal:        "normal",
	Cleared:       "cleared",
}

func (l Level) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return fmt.Sprintf("level(%d)", uint8(l))
}

// Valid reports whether l is one of the declared levels.
func (l Level) Valid() bool {
	return int(l) < len(levelNames)
}

// Reachable reports whether the player can actually collect or pass
// something at this level (sequence breaks included).
func (l Level) Reachable() bool {
	return l >= SequenceBreak && l != Cleared
}

// ParseLevel converts a level name ("normal", "sequence_break", ...) into a Level.
func ParseLevel(s string) (Level, error) {
	for i, name := range levelNames {
		if name == s {
			return Level(i), nil
		}
	}
	return None, fmt.Errorf("%w: %q", ErrUnknownLevel, s)
}

func (l Level) MarshalJSON() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownLevel, uint8(l))
	}
	return json.Marshal(l.String())
}

func (l *Level) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseLevel(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Min returns the weaker of two levels.
func Min(a, b Level) Level {
	if a < b {
		return a
	}
	return b
}

// Max returns the stronger of two levels.
func Max(a, b Level) Level {
	if a > b {
		return a
	}
	return b
}

// MinOf returns the weakest level. The empty set yields Normal, the top of
// the raw lattice and the identity for Min.
func MinOf(levels ...Level) Level {
	out := Normal
	for _, l := range levels {
		out = Min(out, l)
	}
	return out
}

// MaxOf returns the strongest level. The empty set yields None.
func MaxOf(levels ...Level) Level {
	out := None
	for _, l := range levels {
		out = Max(out, l)
	}
	return out
}
