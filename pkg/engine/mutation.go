package engine

import (
	"errors"
	"fmt"

	"github.com/jwebster45206/tracker-engine/pkg/location"
)

var (
	ErrUnknownOp       = errors.New("unknown mutation op")
	ErrInvalidMutation = errors.New("invalid mutation")
)

// Op names a mutation.
type Op string

const (
	OpSetItem          Op = "set_item"
	OpCycleItem        Op = "cycle_item"
	OpSetSetting       Op = "set_setting"
	OpSetSequenceBreak Op = "set_sequence_break"
	OpCollect          Op = "collect"
	OpUncollect        Op = "uncollect"
	OpSetMarking       Op = "set_marking"
	OpSetPrize         Op = "set_prize"
	OpSetDoor          Op = "set_door"
	OpClearDoor        Op = "clear_door"
	OpReset            Op = "reset"
)

// Mutation is the wire form of one engine operation, as sent to the API,
// queued for a worker or produced by the auto-tracker.
type Mutation struct {
	Op       Op     `json:"op"`
	Name     string `json:"name,omitempty"`
	Count    int    `json:"count,omitempty"`
	Delta    int    `json:"delta,omitempty"`
	Value    string `json:"value,omitempty"`
	Enabled  bool   `json:"enabled,omitempty"`
	Location string `json:"location,omitempty"`
	Section  string `json:"section,omitempty"`
	Dungeon  string `json:"dungeon,omitempty"`
	Door     string `json:"door,omitempty"`
}

// Validate checks that the fields an op needs are present.
func (m Mutation) Validate() error {
	need := func(fields ...string) error {
		for i := 0; i < len(fields); i += 2 {
			if fields[i+1] == "" {
				return fmt.Errorf("%w: %s requires %s", ErrInvalidMutation, m.Op, fields[i])
			}
		}
		return nil
	}

	switch m.Op {
	case OpSetItem:
		if m.Count < 0 {
			return fmt.Errorf("%w: negative count %d", ErrInvalidMutation, m.Count)
		}
		return need("name", m.Name)
	case OpCycleItem:
		if m.Delta == 0 {
			return fmt.Errorf("%w: cycle_item requires a non-zero delta", ErrInvalidMutation)
		}
		return need("name", m.Name)
	case OpSetSetting:
		return need("name", m.Name, "value", m.Value)
	case OpSetSequenceBreak:
		return need("name", m.Name)
	case OpCollect, OpUncollect:
		return need("location", m.Location, "section", m.Section)
	case OpSetMarking:
		return need("location", m.Location, "section", m.Section)
	case OpSetPrize:
		if err := need("location", m.Location, "section", m.Section); err != nil {
			return err
		}
		if _, err := location.ParsePrize(m.Value); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidMutation, err)
		}
		return nil
	case OpSetDoor, OpClearDoor:
		return need("dungeon", m.Dungeon, "door", m.Door)
	case OpReset:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownOp, m.Op)
}

// Apply runs a mutation.
func (e *Engine) Apply(m Mutation) (Change, error) {
	if err := m.Validate(); err != nil {
		return Change{}, err
	}

	switch m.Op {
	case OpSetItem:
		return e.SetItem(m.Name, m.Count)
	case OpCycleItem:
		return e.CycleItem(m.Name, m.Delta)
	case OpSetSetting:
		return e.SetSetting(m.Name, m.Value)
	case OpSetSequenceBreak:
		return e.SetSequenceBreak(m.Name, m.Enabled)
	case OpCollect:
		return e.Collect(m.Location, m.Section)
	case OpUncollect:
		return e.Uncollect(m.Location, m.Section)
	case OpSetMarking:
		return e.SetMarking(m.Location, m.Section, m.Value)
	case OpSetPrize:
		p, _ := location.ParsePrize(m.Value)
		return e.SetPrize(m.Location, m.Section, p)
	case OpSetDoor:
		return e.SetDoorUnlocked(m.Dungeon, m.Door, m.Enabled)
	case OpClearDoor:
		return e.ClearDoorOverride(m.Dungeon, m.Door)
	default:
		return e.Reset(), nil
	}
}
