// Package dungeon models one dungeon as a private sub-graph of nodes,
// connections, key doors and item placements, and solves the key-door
// fixpoint over it.
//
// Definitions are static catalog data. Instances are built from a
// definition and a Config and are thrown away when the config changes.
package dungeon

import (
	"errors"
	"fmt"

	"github.com/jwebster45206/tracker-engine/pkg/requirement"
	"github.com/jwebster45206/tracker-engine/pkg/state"
)

var (
	ErrUnknownNode      = errors.New("dungeon: unknown node")
	ErrUnknownDoor      = errors.New("dungeon: unknown door")
	ErrDuplicateID      = errors.New("dungeon: duplicate id")
	ErrInvalidPlacement = errors.New("dungeon: invalid placement")
)

// PlacementKind classifies a chest or drop inside a dungeon.
type PlacementKind string

const (
	Chest   PlacementKind = "chest"
	KeyDrop PlacementKind = "key_drop"
	BigKey  PlacementKind = "big_key"
	Map     PlacementKind = "map"
	Compass PlacementKind = "compass"
)

func (k PlacementKind) Valid() bool {
	switch k {
	case Chest, KeyDrop, BigKey, Map, Compass:
		return true
	}
	return false
}

// Connection joins two dungeon nodes. A BigKey connection is additionally
// gated by the dungeon's big key.
type Connection struct {
	From        string
	To          string
	Requirement requirement.Requirement
	BigKey      bool
}

// Door is a small-key door. Doors are unlocked in declaration order, so
// when keys run short the doors listed first get them. A door whose own
// requirement is not met never takes a key.
type Door struct {
	ID          string
	From        string
	To          string
	Requirement requirement.Requirement
}

// Placement is one place an item can be found. Key marks a chest that
// holds a small key when small keys are not shuffled; key drops always hold
// one in that case.
type Placement struct {
	ID          string
	Node        string
	Kind        PlacementKind
	Key         bool
	Requirement requirement.Requirement
}

// Boss is the dungeon boss fight.
type Boss struct {
	Node        string
	Requirement requirement.Requirement
}

// Definition is the static description of one dungeon.
type Definition struct {
	ID          string
	Name        string
	Entrances   []string // overworld node IDs
	Entry       string
	Nodes       []string
	Connections []Connection
	Doors       []Door
	Placements  []Placement
	Boss        *Boss
	Prize       bool
	SmallKeys   int // small keys in the dungeon's own pool
}

// Item names generated per dungeon.
func SmallKeyItem(dungeon string) string { return dungeon + "_small_key" }
func BigKeyItem(dungeon string) string   { return dungeon + "_big_key" }
func MapItem(dungeon string) string      { return dungeon + "_map" }
func CompassItem(dungeon string) string  { return dungeon + "_compass" }

// Validate checks that every reference inside the definition resolves.
func (d *Definition) Validate() error {
	if d.ID == "" {
		return errors.New("dungeon: empty id")
	}
	nodes := make(map[string]bool, len(d.Nodes))
	for _, n := range d.Nodes {
		if nodes[n] {
			return fmt.Errorf("%w: %s node %s", ErrDuplicateID, d.ID, n)
		}
		nodes[n] = true
	}
	var errs []error
	check := func(what, id string) {
		if !nodes[id] {
			errs = append(errs, fmt.Errorf("%w: %s %s references %s", ErrUnknownNode, d.ID, what, id))
		}
	}

	check("entry", d.Entry)
	for _, c := range d.Connections {
		check("connection", c.From)
		check("connection", c.To)
	}
	doors := make(map[string]bool, len(d.Doors))
	for _, door := range d.Doors {
		if doors[door.ID] {
			errs = append(errs, fmt.Errorf("%w: %s door %s", ErrDuplicateID, d.ID, door.ID))
		}
		doors[door.ID] = true
		check("door "+door.ID, door.From)
		check("door "+door.ID, door.To)
	}
	placements := make(map[string]bool, len(d.Placements))
	for _, p := range d.Placements {
		if placements[p.ID] {
			errs = append(errs, fmt.Errorf("%w: %s placement %s", ErrDuplicateID, d.ID, p.ID))
		}
		placements[p.ID] = true
		check("placement "+p.ID, p.Node)
		if !p.Kind.Valid() {
			errs = append(errs, fmt.Errorf("%w: %s placement %s kind %q", ErrInvalidPlacement, d.ID, p.ID, p.Kind))
		}
		if p.Key && p.Kind != Chest {
			errs = append(errs, fmt.Errorf("%w: %s placement %s: only chests carry a fixed key", ErrInvalidPlacement, d.ID, p.ID))
		}
	}
	if d.Boss != nil {
		check("boss", d.Boss.Node)
	}
	return errors.Join(errs...)
}

// Requirements returns every requirement expression in the definition.
func (d *Definition) Requirements() []requirement.Requirement {
	var out []requirement.Requirement
	for _, c := range d.Connections {
		if c.Requirement != nil {
			out = append(out, c.Requirement)
		}
	}
	for _, door := range d.Doors {
		if door.Requirement != nil {
			out = append(out, door.Requirement)
		}
	}
	for _, p := range d.Placements {
		if p.Requirement != nil {
			out = append(out, p.Requirement)
		}
	}
	if d.Boss != nil && d.Boss.Requirement != nil {
		out = append(out, d.Boss.Requirement)
	}
	return out
}

// Inputs returns every state input and overworld node an instance of this
// dungeon reads: its entrances, its key items and its requirements.
func (d *Definition) Inputs(reg *requirement.Registry) []state.Input {
	inputs := []state.Input{state.ItemInput(SmallKeyItem(d.ID)), state.ItemInput(BigKeyItem(d.ID))}
	for _, e := range d.Entrances {
		inputs = append(inputs, state.NodeInput(e))
	}
	inputs = append(inputs, reg.Inputs(requirement.AllOf(d.Requirements()...))...)
	return inputs
}
