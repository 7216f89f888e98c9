// Package engine owns one tracker session: the item/setting state, the
// overworld graph, the dungeon instances and the locations built on top.
//
// Every mutation propagates synchronously before it returns. An Engine is
// not safe for concurrent use; wrap it in a Session to serialize callers.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/zyedidia/generic/mapset"

	"github.com/jwebster45206/tracker-engine/pkg/access"
	"github.com/jwebster45206/tracker-engine/pkg/catalog"
	"github.com/jwebster45206/tracker-engine/pkg/dungeon"
	"github.com/jwebster45206/tracker-engine/pkg/graph"
	"github.com/jwebster45206/tracker-engine/pkg/location"
	"github.com/jwebster45206/tracker-engine/pkg/requirement"
	"github.com/jwebster45206/tracker-engine/pkg/snapshot"
	"github.com/jwebster45206/tracker-engine/pkg/state"
)

var (
	ErrUnknownNode     = errors.New("unknown node")
	ErrUnknownLocation = errors.New("unknown location")
	ErrUnknownSection  = errors.New("unknown section")
	ErrUnknownDungeon  = errors.New("unknown dungeon")
	ErrPrizeFull       = errors.New("prize count already at maximum")
)

// Change reports what one mutation touched. Lists are in a stable order.
type Change struct {
	Inputs    []string `json:"inputs,omitempty"`
	Nodes     []string `json:"nodes,omitempty"`
	Dungeons  []string `json:"dungeons,omitempty"`
	Locations []string `json:"locations,omitempty"`
	Reset     bool     `json:"reset,omitempty"`
}

// Empty reports whether nothing changed.
func (c Change) Empty() bool {
	return !c.Reset && len(c.Inputs) == 0 && len(c.Nodes) == 0 && len(c.Dungeons) == 0 && len(c.Locations) == 0
}

type dungeonSlot struct {
	def      *dungeon.Definition
	inst     *dungeon.Instance
	inputs   []state.Input
	entrance access.Level
}

type sectionSlot struct {
	key     string
	def     catalog.SectionDef
	section *location.Section
	loc     *location.Location
	dungeon *dungeonSlot
}

type Engine struct {
	world  *catalog.World
	logger *slog.Logger

	state *state.State
	eval  *requirement.Evaluator
	graph *graph.Graph

	dungeons     []*dungeonSlot
	dungeonIndex map[string]*dungeonSlot
	dungeonSubs  map[state.Input][]*dungeonSlot

	locations     []*location.Location
	locationIndex map[string]*location.Location
	sections      []*sectionSlot
	sectionIndex  map[string]*sectionSlot
	sectionSubs   map[state.Input][]*sectionSlot

	smallKeyItems map[string]bool
	listeners     []func(Change)
}

// New builds an engine for a world and runs a full refresh.
func New(world *catalog.World, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	st, err := state.New(world.Items, world.Settings, world.SequenceBreaks)
	if err != nil {
		return nil, fmt.Errorf("failed to build state: %w", err)
	}
	g, err := graph.Build(world.Start, world.Nodes, world.Connections, world.Registry)
	if err != nil {
		return nil, fmt.Errorf("failed to build graph: %w", err)
	}

	e := &Engine{
		world:         world,
		logger:        logger,
		state:         st,
		graph:         g,
		eval:          requirement.NewEvaluator(world.Registry, st, g),
		dungeonIndex:  make(map[string]*dungeonSlot),
		dungeonSubs:   make(map[state.Input][]*dungeonSlot),
		locationIndex: make(map[string]*location.Location),
		sectionIndex:  make(map[string]*sectionSlot),
		sectionSubs:   make(map[state.Input][]*sectionSlot),
		smallKeyItems: make(map[string]bool),
	}

	for _, def := range world.Dungeons {
		slot := &dungeonSlot{def: def, inputs: def.Inputs(world.Registry)}
		if err := e.rebuild(slot, nil); err != nil {
			return nil, err
		}
		for _, in := range slot.inputs {
			e.dungeonSubs[in] = append(e.dungeonSubs[in], slot)
		}
		e.dungeons = append(e.dungeons, slot)
		e.dungeonIndex[def.ID] = slot
		if def.SmallKeys > 0 {
			e.smallKeyItems[dungeon.SmallKeyItem(def.ID)] = true
		}
	}

	for _, ld := range world.Locations {
		loc := &location.Location{ID: ld.ID, Name: world.DisplayName(ld.ID)}
		for _, sd := range ld.Sections {
			slot, err := e.newSection(loc, sd)
			if err != nil {
				return nil, err
			}
			loc.Sections = append(loc.Sections, slot.section)
		}
		e.locations = append(e.locations, loc)
		e.locationIndex[loc.ID] = loc
	}

	e.refreshAll()
	return e, nil
}

func (e *Engine) newSection(loc *location.Location, sd catalog.SectionDef) (*sectionSlot, error) {
	key := snapshot.SectionKey(loc.ID, sd.ID)
	slot := &sectionSlot{key: key, def: sd, loc: loc}

	name := sd.Name
	if name == "" {
		name = e.world.DisplayName(sd.ID)
	}

	var src location.Source
	switch sd.Kind {
	case location.KindItem, location.KindEntrance:
		count := sd.Count
		if sd.Kind == location.KindEntrance {
			count = 1
		}
		node, req := sd.Node, sd.Requirement
		g, ev := e.graph, e.eval
		src = location.SourceFunc(func() []access.Level {
			lvl := access.Min(g.Level(node), ev.Eval(req))
			return slices.Repeat([]access.Level{lvl}, count)
		})
		subs := append(e.world.Registry.Inputs(req), state.NodeInput(node))
		for _, in := range subs {
			e.sectionSubs[in] = append(e.sectionSubs[in], slot)
		}

	case location.KindDungeon, location.KindBoss, location.KindPrize:
		d, ok := e.dungeonIndex[sd.Dungeon]
		if !ok {
			return nil, fmt.Errorf("%w: %s (section %s)", ErrUnknownDungeon, sd.Dungeon, key)
		}
		slot.dungeon = d
		if sd.Kind == location.KindDungeon {
			src = location.SourceFunc(func() []access.Level { return d.inst.ItemLevels() })
		} else {
			src = location.SourceFunc(func() []access.Level { return []access.Level{d.inst.BossLevel()} })
		}

	default:
		return nil, fmt.Errorf("%w: %q", location.ErrUnknownKind, sd.Kind)
	}

	slot.section = location.NewSection(sd.ID, name, sd.Kind, src)
	e.sections = append(e.sections, slot)
	e.sectionIndex[key] = slot
	return slot, nil
}

// OnChange registers a listener called after every mutation that changed
// something. Listeners run synchronously and must not call back into the
// engine.
func (e *Engine) OnChange(fn func(Change)) {
	e.listeners = append(e.listeners, fn)
}

func (e *Engine) notify(c Change) {
	if c.Empty() {
		return
	}
	for _, fn := range e.listeners {
		fn(c)
	}
}

// rebuild replaces a dungeon's instance for the current config, carrying
// manual door overrides over.
func (e *Engine) rebuild(slot *dungeonSlot, overrides map[string]bool) error {
	cfg := dungeon.ConfigFromSettings(e.state)
	inst, err := dungeon.NewInstance(slot.def, cfg)
	if err != nil {
		return fmt.Errorf("failed to build dungeon %s: %w", slot.def.ID, err)
	}
	for door, unlocked := range overrides {
		v := unlocked
		if _, err := inst.SetOverride(door, &v); err != nil {
			return err
		}
	}
	slot.inst = inst
	e.logger.Debug("Dungeon rebuilt", "dungeon", slot.def.ID, "config", fmt.Sprintf("%+v", cfg), "items", inst.Total())
	return nil
}

func (e *Engine) solve(slot *dungeonSlot) bool {
	entrance := access.None
	for _, id := range slot.def.Entrances {
		entrance = access.Max(entrance, e.graph.Level(id))
	}
	slot.entrance = entrance

	keys, _ := e.state.ItemCount(dungeon.SmallKeyItem(slot.def.ID))
	bigKey, _ := e.state.ItemCount(dungeon.BigKeyItem(slot.def.ID))
	changed := slot.inst.Solve(e.eval, entrance, keys, bigKey > 0)
	e.logger.Debug("Dungeon solved", "dungeon", slot.def.ID, "entrance", entrance, "passes", slot.inst.Passes(), "changed", changed)
	return changed
}

// propagate runs the pipeline for a set of changed inputs: graph, then
// dungeons, then sections. Extra sections (collected or re-marked by the
// caller) are refreshed and reported too.
func (e *Engine) propagate(inputs []state.Input, extra ...*sectionSlot) Change {
	var c Change
	for _, in := range inputs {
		c.Inputs = append(c.Inputs, in.String())
	}

	c.Nodes = e.graph.Propagate(e.eval, inputs...)
	all := slices.Clone(inputs)
	for _, id := range c.Nodes {
		all = append(all, state.NodeInput(id))
	}

	rebuild := false
	for _, in := range inputs {
		if in.Kind == state.KindSetting && slices.Contains(dungeon.ConfigSettings, in.Name) {
			rebuild = true
		}
	}

	dirtyDungeons := mapset.New[*dungeonSlot]()
	for _, in := range all {
		for _, d := range e.dungeonSubs[in] {
			dirtyDungeons.Put(d)
		}
	}
	changedDungeons := mapset.New[*dungeonSlot]()
	for _, d := range e.dungeons {
		if rebuild && d.inst.Config() != dungeon.ConfigFromSettings(e.state) {
			if err := e.rebuild(d, d.inst.Overrides()); err != nil {
				// The definition validated when the world loaded.
				panic(err)
			}
			e.solve(d)
			changedDungeons.Put(d)
			continue
		}
		if dirtyDungeons.Has(d) && e.solve(d) {
			changedDungeons.Put(d)
		}
	}

	dirtySections := mapset.New[*sectionSlot]()
	for _, in := range all {
		for _, s := range e.sectionSubs[in] {
			dirtySections.Put(s)
		}
	}
	for _, s := range extra {
		dirtySections.Put(s)
	}

	e.eval.Reset()
	changedLocations := mapset.New[*location.Location]()
	for _, s := range e.sections {
		touched := dirtySections.Has(s)
		if s.dungeon != nil && changedDungeons.Has(s.dungeon) {
			touched = true
		}
		if !touched {
			continue
		}
		if s.section.Refresh() || slices.Contains(extra, s) {
			changedLocations.Put(s.loc)
		}
	}

	for _, d := range e.dungeons {
		if changedDungeons.Has(d) {
			c.Dungeons = append(c.Dungeons, d.def.ID)
		}
	}
	for _, l := range e.locations {
		if changedLocations.Has(l) {
			c.Locations = append(c.Locations, l.ID)
		}
	}
	return c
}

// refreshAll recomputes everything from scratch.
func (e *Engine) refreshAll() Change {
	var c Change
	e.graph.Reset()
	c.Nodes = e.graph.Refresh(e.eval)

	for _, d := range e.dungeons {
		if d.inst.Config() != dungeon.ConfigFromSettings(e.state) {
			if err := e.rebuild(d, d.inst.Overrides()); err != nil {
				panic(err)
			}
		}
		e.solve(d)
		c.Dungeons = append(c.Dungeons, d.def.ID)
	}

	e.eval.Reset()
	for _, s := range e.sections {
		s.section.Refresh()
	}
	for _, l := range e.locations {
		c.Locations = append(c.Locations, l.ID)
	}
	return c
}

// World returns the catalog the engine was built from.
func (e *Engine) World() *catalog.World { return e.world }
