// Package location aggregates node and dungeon accessibility into the
// player-facing view: sections (one collectible award point each) grouped
// into locations.
package location

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/jwebster45206/tracker-engine/pkg/access"
)

var (
	ErrNotCollectible   = errors.New("section is not collectible")
	ErrNothingLeft      = errors.New("nothing left to collect")
	ErrNothingCollected = errors.New("nothing collected")
	ErrInvalidCount     = errors.New("invalid available count")
	ErrUnknownPrize     = errors.New("unknown prize")
	ErrUnknownKind      = errors.New("unknown section kind")
)

// Kind tells how a section takes part in aggregation.
type Kind string

const (
	KindItem     Kind = "item"
	KindDungeon  Kind = "dungeon"
	KindEntrance Kind = "entrance"
	KindBoss     Kind = "boss"
	KindPrize    Kind = "prize"
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindItem, KindDungeon, KindEntrance, KindBoss, KindPrize:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Collectible sections can be checked off.
func (k Kind) Collectible() bool { return k != KindEntrance }

// Counted sections contribute to Accessible and Total counts.
func (k Kind) Counted() bool { return k == KindItem || k == KindDungeon }

// Prize is the marker on a prize section.
type Prize string

const (
	PrizeUnknown      Prize = "unknown"
	PrizeCrystal      Prize = "crystal"
	PrizeRedCrystal   Prize = "red_crystal"
	PrizePendant      Prize = "pendant"
	PrizeGreenPendant Prize = "green_pendant"
)

func ParsePrize(s string) (Prize, error) {
	switch p := Prize(s); p {
	case PrizeUnknown, PrizeCrystal, PrizeRedCrystal, PrizePendant, PrizeGreenPendant:
		return p, nil
	case "":
		return PrizeUnknown, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPrize, s)
}

// Source yields the level of every slot of a section. Its length is the
// section's total and may change between calls.
type Source interface {
	Slots() []access.Level
}

// SourceFunc adapts a function to Source.
type SourceFunc func() []access.Level

func (f SourceFunc) Slots() []access.Level { return f() }

// Section is one collectible award point. Its level is recomputed from its
// source by Refresh; collected counts and markers are player state.
type Section struct {
	ID   string
	Name string
	Kind Kind

	source Source

	slots      []access.Level // sorted best first
	collected  int
	level      access.Level
	accessible int

	marking         string
	userManipulated bool
	prize           Prize
}

func NewSection(id, name string, kind Kind, src Source) *Section {
	s := &Section{ID: id, Name: name, Kind: kind, source: src, prize: PrizeUnknown}
	s.Refresh()
	return s
}

// Refresh re-reads the source and reports whether level, counts or total
// changed. Collected counts are clamped when the total shrinks.
func (s *Section) Refresh() bool {
	slots := slices.Clone(s.source.Slots())
	slices.SortFunc(slots, func(a, b access.Level) int { return cmp.Compare(b, a) })

	oldTotal, oldLevel, oldAccessible, oldCollected := len(s.slots), s.level, s.accessible, s.collected
	s.slots = slots
	if s.collected > len(slots) {
		s.collected = len(slots)
	}
	s.recompute()

	return len(slots) != oldTotal || s.level != oldLevel || s.accessible != oldAccessible || s.collected != oldCollected
}

// recompute skips the best collected slots, since the player took what was
// easiest to reach, and summarizes the rest.
func (s *Section) recompute() {
	remaining := s.slots[s.collected:]
	if !s.Kind.Collectible() {
		remaining = s.slots
	}
	s.level = access.Summarize(remaining)
	s.accessible = 0
	for _, l := range remaining {
		if l.Reachable() {
			s.accessible++
		}
	}
}

func (s *Section) Level() access.Level { return s.level }

// Accessible is the number of remaining slots the player can reach.
func (s *Section) Accessible() int { return s.accessible }

func (s *Section) Total() int { return len(s.slots) }

func (s *Section) Collected() int { return s.collected }

// Available is the number of slots not yet collected.
func (s *Section) Available() int {
	if !s.Kind.Collectible() {
		return len(s.slots)
	}
	return len(s.slots) - s.collected
}

// Collect checks off one slot.
func (s *Section) Collect() error {
	if !s.Kind.Collectible() {
		return fmt.Errorf("%w: %s", ErrNotCollectible, s.ID)
	}
	if s.collected >= len(s.slots) {
		return fmt.Errorf("%w: %s", ErrNothingLeft, s.ID)
	}
	s.collected++
	s.userManipulated = true
	s.recompute()
	return nil
}

// Uncollect puts one slot back.
func (s *Section) Uncollect() error {
	if !s.Kind.Collectible() {
		return fmt.Errorf("%w: %s", ErrNotCollectible, s.ID)
	}
	if s.collected == 0 {
		return fmt.Errorf("%w: %s", ErrNothingCollected, s.ID)
	}
	s.collected--
	s.userManipulated = true
	s.recompute()
	return nil
}

// SetAvailable restores the available count directly, as done when loading
// a snapshot.
func (s *Section) SetAvailable(available int, userManipulated bool) error {
	if !s.Kind.Collectible() {
		if available != len(s.slots) {
			return fmt.Errorf("%w: %s is not collectible", ErrInvalidCount, s.ID)
		}
		return nil
	}
	if available < 0 || available > len(s.slots) {
		return fmt.Errorf("%w: %s available %d of %d", ErrInvalidCount, s.ID, available, len(s.slots))
	}
	s.collected = len(s.slots) - available
	s.userManipulated = userManipulated
	s.recompute()
	return nil
}

func (s *Section) Marking() string { return s.marking }

// SetMarking stores free text and reports whether it changed.
func (s *Section) SetMarking(m string) bool {
	if s.marking == m {
		return false
	}
	s.marking = m
	return true
}

// UserManipulated reports whether the player changed the collected count.
func (s *Section) UserManipulated() bool { return s.userManipulated }

func (s *Section) Prize() Prize { return s.prize }

// SetPrize changes the prize marker and returns the previous one.
func (s *Section) SetPrize(p Prize) Prize {
	old := s.prize
	s.prize = p
	return old
}

// Reset clears player state.
func (s *Section) Reset() {
	s.collected = 0
	s.marking = ""
	s.userManipulated = false
	s.prize = PrizeUnknown
	s.Refresh()
}
