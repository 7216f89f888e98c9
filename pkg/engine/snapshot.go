package engine

import (
	"errors"
	"fmt"
	"slices"

	"github.com/jwebster45206/tracker-engine/pkg/dungeon"
	"github.com/jwebster45206/tracker-engine/pkg/location"
	"github.com/jwebster45206/tracker-engine/pkg/snapshot"
)

// Snapshot exports the player state. Small key counts live under their
// dungeon rather than in Items.
func (e *Engine) Snapshot() *snapshot.Snapshot {
	snap := &snapshot.Snapshot{
		Version:        snapshot.Version,
		World:          e.world.Name,
		Items:          e.state.Items(),
		Settings:       e.state.Settings(),
		SequenceBreaks: e.state.SequenceBreaks(),
		Dungeons:       make(map[string]snapshot.DungeonState, len(e.dungeons)),
		Sections:       make(map[string]snapshot.SectionState, len(e.sections)),
	}
	for name := range e.smallKeyItems {
		delete(snap.Items, name)
	}

	for _, d := range e.dungeons {
		keys, _ := e.state.ItemCount(dungeon.SmallKeyItem(d.def.ID))
		ds := snapshot.DungeonState{SmallKeys: keys}
		if o := d.inst.Overrides(); len(o) > 0 {
			ds.Doors = o
		}
		snap.Dungeons[d.def.ID] = ds
	}

	for _, s := range e.sections {
		ss := snapshot.SectionState{
			Available:       s.section.Available(),
			UserManipulated: s.section.UserManipulated(),
			Marking:         s.section.Marking(),
		}
		if s.def.Kind == location.KindPrize {
			ss.Prize = string(s.section.Prize())
		}
		snap.Sections[s.key] = ss
	}
	return snap
}

// Restore replaces the player state with a snapshot. The snapshot is
// checked in full against the world first; on any error the engine is
// left exactly as it was. Names the snapshot omits take their start
// values.
func (e *Engine) Restore(snap *snapshot.Snapshot) (Change, error) {
	if err := snap.Validate(); err != nil {
		return Change{}, err
	}
	if snap.World != "" && snap.World != e.world.Name {
		return Change{}, fmt.Errorf("%w: snapshot is for world %q, not %q", snapshot.ErrInvalid, snap.World, e.world.Name)
	}

	fresh, err := New(e.world, e.logger)
	if err != nil {
		return Change{}, err
	}
	if err := fresh.load(snap); err != nil {
		return Change{}, fmt.Errorf("%w: %w", snapshot.ErrInvalid, err)
	}

	listeners := e.listeners
	*e = *fresh
	e.listeners = listeners

	e.logger.Debug("Snapshot restored", "world", e.world.Name, "sections", len(snap.Sections))
	c := Change{Reset: true, Dungeons: e.DungeonIDs()}
	for _, l := range e.locations {
		c.Locations = append(c.Locations, l.ID)
	}
	return e.finish(c), nil
}

// load applies a snapshot to a freshly built engine, collecting every
// problem rather than stopping at the first.
func (e *Engine) load(snap *snapshot.Snapshot) error {
	var errs []error

	for _, name := range sortedKeys(snap.Items) {
		if e.smallKeyItems[name] {
			errs = append(errs, fmt.Errorf("item %s: small keys belong under their dungeon", name))
			continue
		}
		if _, err := e.state.SetItem(name, snap.Items[name]); err != nil {
			errs = append(errs, err)
		}
	}
	for _, name := range sortedKeys(snap.Settings) {
		if _, err := e.state.SetSetting(name, snap.Settings[name]); err != nil {
			errs = append(errs, err)
		}
	}
	for _, name := range sortedKeys(snap.SequenceBreaks) {
		if _, err := e.state.SetSequenceBreak(name, snap.SequenceBreaks[name]); err != nil {
			errs = append(errs, err)
		}
	}

	for _, id := range sortedKeys(snap.Dungeons) {
		ds := snap.Dungeons[id]
		d, ok := e.dungeonIndex[id]
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %s", ErrUnknownDungeon, id))
			continue
		}
		if ds.SmallKeys > 0 || e.smallKeyItems[dungeon.SmallKeyItem(id)] {
			if _, err := e.state.SetItem(dungeon.SmallKeyItem(id), ds.SmallKeys); err != nil {
				errs = append(errs, fmt.Errorf("dungeon %s: %w", id, err))
			}
		}
		for _, door := range d.def.Doors {
			if unlocked, ok := ds.Doors[door.ID]; ok {
				v := unlocked
				if _, err := d.inst.SetOverride(door.ID, &v); err != nil {
					errs = append(errs, err)
				}
			}
		}
		for door := range ds.Doors {
			if !slices.ContainsFunc(d.def.Doors, func(x dungeon.Door) bool { return x.ID == door }) {
				errs = append(errs, fmt.Errorf("%w: %s in %s", dungeon.ErrUnknownDoor, door, id))
			}
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	// Section totals depend on the restored config and keys.
	e.refreshAll()

	for _, key := range sortedKeys(snap.Sections) {
		ss := snap.Sections[key]
		slot, ok := e.sectionIndex[key]
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %s", ErrUnknownSection, key))
			continue
		}
		if err := slot.section.SetAvailable(ss.Available, ss.UserManipulated); err != nil {
			errs = append(errs, err)
		}
		slot.section.SetMarking(ss.Marking)
		p, err := location.ParsePrize(ss.Prize)
		if err != nil {
			errs = append(errs, fmt.Errorf("section %s: %w", key, err))
			continue
		}
		if p != location.PrizeUnknown && slot.def.Kind != location.KindPrize {
			errs = append(errs, fmt.Errorf("section %s: prize on a %s section", key, slot.def.Kind))
			continue
		}
		slot.section.SetPrize(p)
	}
	return errors.Join(errs...)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
