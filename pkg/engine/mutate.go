package engine

import (
	"fmt"

	"github.com/jwebster45206/tracker-engine/pkg/location"
	"github.com/jwebster45206/tracker-engine/pkg/state"
)

// SetItem sets an item count and propagates.
func (e *Engine) SetItem(name string, count int) (Change, error) {
	changed, err := e.state.SetItem(name, count)
	if err != nil {
		return Change{}, err
	}
	if !changed {
		return Change{}, nil
	}
	e.logger.Debug("Item set", "item", name, "count", count)
	return e.finish(e.propagate([]state.Input{state.ItemInput(name)})), nil
}

// CycleItem steps an item count, wrapping at both ends.
func (e *Engine) CycleItem(name string, delta int) (Change, error) {
	before, ok := e.state.ItemCount(name)
	if !ok {
		return Change{}, fmt.Errorf("%w: %s", state.ErrUnknownItem, name)
	}
	after, err := e.state.CycleItem(name, delta)
	if err != nil {
		return Change{}, err
	}
	if after == before {
		return Change{}, nil
	}
	e.logger.Debug("Item cycled", "item", name, "count", after)
	return e.finish(e.propagate([]state.Input{state.ItemInput(name)})), nil
}

func (e *Engine) SetSetting(name, value string) (Change, error) {
	changed, err := e.state.SetSetting(name, value)
	if err != nil {
		return Change{}, err
	}
	if !changed {
		return Change{}, nil
	}
	e.logger.Debug("Setting changed", "setting", name, "value", value)
	return e.finish(e.propagate([]state.Input{state.SettingInput(name)})), nil
}

func (e *Engine) SetSequenceBreak(name string, enabled bool) (Change, error) {
	changed, err := e.state.SetSequenceBreak(name, enabled)
	if err != nil {
		return Change{}, err
	}
	if !changed {
		return Change{}, nil
	}
	e.logger.Debug("Sequence break toggled", "break", name, "enabled", enabled)
	return e.finish(e.propagate([]state.Input{state.BreakInput(name)})), nil
}

// Collect checks off one slot of a section. Collecting a prize section
// with a known prize also counts the prize item.
func (e *Engine) Collect(locationID, sectionID string) (Change, error) {
	slot, err := e.section(locationID, sectionID)
	if err != nil {
		return Change{}, err
	}
	if !slot.def.Kind.Collectible() {
		return Change{}, fmt.Errorf("%w: %s", location.ErrNotCollectible, slot.key)
	}
	if slot.section.Available() == 0 {
		return Change{}, fmt.Errorf("%w: %s", location.ErrNothingLeft, slot.key)
	}

	var inputs []state.Input
	if slot.def.Kind == location.KindPrize {
		in, err := e.shiftPrize(slot.section.Prize(), 1)
		if err != nil {
			return Change{}, err
		}
		inputs = append(inputs, in...)
	}
	if err := slot.section.Collect(); err != nil {
		return Change{}, err
	}
	e.logger.Debug("Section collected", "section", slot.key, "available", slot.section.Available())
	return e.finish(e.propagate(inputs, slot)), nil
}

func (e *Engine) Uncollect(locationID, sectionID string) (Change, error) {
	slot, err := e.section(locationID, sectionID)
	if err != nil {
		return Change{}, err
	}
	if !slot.def.Kind.Collectible() {
		return Change{}, fmt.Errorf("%w: %s", location.ErrNotCollectible, slot.key)
	}
	if slot.section.Collected() == 0 {
		return Change{}, fmt.Errorf("%w: %s", location.ErrNothingCollected, slot.key)
	}

	var inputs []state.Input
	if slot.def.Kind == location.KindPrize {
		in, err := e.shiftPrize(slot.section.Prize(), -1)
		if err != nil {
			return Change{}, err
		}
		inputs = append(inputs, in...)
	}
	if err := slot.section.Uncollect(); err != nil {
		return Change{}, err
	}
	e.logger.Debug("Section uncollected", "section", slot.key, "available", slot.section.Available())
	return e.finish(e.propagate(inputs, slot)), nil
}

// SetMarking stores free text on a section.
func (e *Engine) SetMarking(locationID, sectionID, marking string) (Change, error) {
	slot, err := e.section(locationID, sectionID)
	if err != nil {
		return Change{}, err
	}
	if !slot.section.SetMarking(marking) {
		return Change{}, nil
	}
	return e.finish(Change{Locations: []string{slot.loc.ID}}), nil
}

// SetPrize changes the prize marker of a prize section. When the section
// is already collected, the prize item count moves from the old prize to
// the new one.
func (e *Engine) SetPrize(locationID, sectionID string, prize location.Prize) (Change, error) {
	slot, err := e.section(locationID, sectionID)
	if err != nil {
		return Change{}, err
	}
	if slot.def.Kind != location.KindPrize {
		return Change{}, fmt.Errorf("%w: %s is not a prize section", location.ErrUnknownPrize, slot.key)
	}
	if _, err := location.ParsePrize(string(prize)); err != nil {
		return Change{}, err
	}
	old := slot.section.Prize()
	if old == prize {
		return Change{}, nil
	}

	var inputs []state.Input
	if slot.section.Collected() > 0 {
		if err := e.checkPrize(prize, 1); err != nil {
			return Change{}, err
		}
		out, err := e.shiftPrize(old, -1)
		if err != nil {
			return Change{}, err
		}
		in, err := e.shiftPrize(prize, 1)
		if err != nil {
			return Change{}, err
		}
		inputs = append(out, in...)
	}
	slot.section.SetPrize(prize)
	e.logger.Debug("Prize set", "section", slot.key, "prize", prize)
	return e.finish(e.propagate(inputs, slot)), nil
}

func prizeItem(p location.Prize) (string, bool) {
	if p == location.PrizeUnknown || p == "" {
		return "", false
	}
	return string(p), true
}

func (e *Engine) checkPrize(p location.Prize, delta int) error {
	name, ok := prizeItem(p)
	if !ok {
		return nil
	}
	count, _ := e.state.ItemCount(name)
	limit, _ := e.state.ItemMax(name)
	if count+delta > limit {
		return fmt.Errorf("%w: %s", ErrPrizeFull, name)
	}
	return nil
}

func (e *Engine) shiftPrize(p location.Prize, delta int) ([]state.Input, error) {
	name, ok := prizeItem(p)
	if !ok {
		return nil, nil
	}
	if err := e.checkPrize(p, delta); err != nil {
		return nil, err
	}
	count, _ := e.state.ItemCount(name)
	if count+delta < 0 {
		// Adjusted by hand below what the sections account for.
		return nil, nil
	}
	changed, err := e.state.SetItem(name, count+delta)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, nil
	}
	return []state.Input{state.ItemInput(name)}, nil
}

// SetDoorUnlocked pins a dungeon door open or shut, overriding the solver.
func (e *Engine) SetDoorUnlocked(dungeonID, doorID string, unlocked bool) (Change, error) {
	return e.setOverride(dungeonID, doorID, &unlocked)
}

// ClearDoorOverride hands a door back to the solver.
func (e *Engine) ClearDoorOverride(dungeonID, doorID string) (Change, error) {
	return e.setOverride(dungeonID, doorID, nil)
}

func (e *Engine) setOverride(dungeonID, doorID string, unlocked *bool) (Change, error) {
	slot, ok := e.dungeonIndex[dungeonID]
	if !ok {
		return Change{}, fmt.Errorf("%w: %s", ErrUnknownDungeon, dungeonID)
	}
	changed, err := slot.inst.SetOverride(doorID, unlocked)
	if err != nil {
		return Change{}, err
	}
	if !changed {
		return Change{}, nil
	}
	e.logger.Debug("Door override set", "dungeon", dungeonID, "door", doorID, "unlocked", unlocked)

	e.solve(slot)
	var c Change
	c.Dungeons = []string{dungeonID}
	e.eval.Reset()
	for _, s := range e.sections {
		if s.dungeon == slot && s.section.Refresh() {
			c.Locations = appendOnce(c.Locations, s.loc.ID)
		}
	}
	return e.finish(c), nil
}

func appendOnce(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}

// Reset puts every input, section and door override back to its start
// value and recomputes everything.
func (e *Engine) Reset() Change {
	e.state.Reset()
	for _, s := range e.sections {
		s.section.Reset()
	}
	for _, d := range e.dungeons {
		if err := e.rebuild(d, nil); err != nil {
			panic(err)
		}
	}
	c := e.refreshAll()
	c.Reset = true
	e.logger.Debug("Tracker reset")
	return e.finish(c)
}

func (e *Engine) finish(c Change) Change {
	e.notify(c)
	return c
}

func (e *Engine) section(locationID, sectionID string) (*sectionSlot, error) {
	if _, ok := e.locationIndex[locationID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLocation, locationID)
	}
	slot, ok := e.sectionIndex[locationID+"/"+sectionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownSection, locationID, sectionID)
	}
	return slot, nil
}
