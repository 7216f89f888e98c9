// Package requirement implements the requirement algebra: a closed set of
// expression variants that evaluate to an access.Level against the current
// tracker state.
package requirement

import "github.com/jwebster45206/tracker-engine/pkg/access"

// Requirement is a node of an immutable expression tree. The set of
// variants is closed; every switch over them panics on an unknown type.
type Requirement interface {
	requirement()
}

// Static always evaluates to Level.
type Static struct {
	Level access.Level
}

// Setting is Normal when the named setting equals Value.
type Setting struct {
	Name  string
	Value string
}

// Item is Normal when the item count is at least Count, or exactly Count
// when Exact is set. Exact 0 distinguishes "none owned" from "not required".
type Item struct {
	Name  string
	Count int
	Exact bool
}

// PrizeKind selects which dungeon prizes a Prize requirement counts.
type PrizeKind uint8

const (
	Crystals PrizeKind = iota + 1
	Pendants
)

func (k PrizeKind) String() string {
	switch k {
	case Crystals:
		return "crystals"
	case Pendants:
		return "pendants"
	default:
		return "unknown"
	}
}

// Prize item names. Collecting a prize section increments one of these.
const (
	PrizeCrystal      = "crystal"
	PrizeRedCrystal   = "red_crystal"
	PrizePendant      = "pendant"
	PrizeGreenPendant = "green_pendant"
)

// PrizeItems lists the prize item names in display order.
var PrizeItems = []string{PrizeCrystal, PrizeRedCrystal, PrizePendant, PrizeGreenPendant}

// Prize is Normal when at least Count prizes of Kind are collected.
type Prize struct {
	Kind  PrizeKind
	Count int
}

// SequenceBreak is SequenceBreak when the named break is enabled. It is
// meant to sit in an Any next to the intended path.
type SequenceBreak struct {
	Name string
}

// All is the aggregate requirement: the weakest child wins.
type All struct {
	Children []Requirement
}

// Any is the alternative requirement: the strongest child wins.
type Any struct {
	Children []Requirement
}

// Complex references a named composite registered in a Registry.
type Complex struct {
	Name string
}

// Reach reads the accessibility of a graph node.
type Reach struct {
	Node string
}

func (Static) requirement()        {}
func (Setting) requirement()       {}
func (Item) requirement()          {}
func (Prize) requirement()         {}
func (SequenceBreak) requirement() {}
func (All) requirement()           {}
func (Any) requirement()           {}
func (Complex) requirement()       {}
func (Reach) requirement()         {}

// Always is the requirement of an unconditional connection.
var Always Requirement = Static{Level: access.Normal}

// AtLeast is shorthand for Item{Name, Count, false}.
func AtLeast(name string, count int) Item {
	return Item{Name: name, Count: count}
}

// Exactly is shorthand for Item{Name, Count, true}.
func Exactly(name string, count int) Item {
	return Item{Name: name, Count: count, Exact: true}
}

// AllOf builds an aggregate requirement.
func AllOf(children ...Requirement) All {
	return All{Children: children}
}

// AnyOf builds an alternative requirement.
func AnyOf(children ...Requirement) Any {
	return Any{Children: children}
}
