package engine

import (
	"fmt"

	"github.com/jwebster45206/tracker-engine/pkg/access"
	"github.com/jwebster45206/tracker-engine/pkg/dungeon"
	"github.com/jwebster45206/tracker-engine/pkg/location"
)

// ItemStatus is one item as shown to a player.
type ItemStatus struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Count int    `json:"count"`
	Max   int    `json:"max"`
}

type SettingStatus struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Value   string   `json:"value"`
	Options []string `json:"options"`
}

type BreakStatus struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// DungeonView is a read-only picture of one dungeon instance.
type DungeonView struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Config      dungeon.Config      `json:"config"`
	Entrance    access.Level        `json:"entrance"`
	Nodes       []dungeon.NodeState `json:"nodes"`
	Doors       []dungeon.DoorState `json:"doors"`
	Items       []dungeon.ItemState `json:"items"`
	BossLevel   access.Level        `json:"boss_level"`
	BigKeyLevel access.Level        `json:"big_key_level"`
	SmallKeys   int                 `json:"small_keys"`
	Passes      int                 `json:"passes"`
}

// NodeLevel returns the level of an overworld node.
func (e *Engine) NodeLevel(id string) (access.Level, error) {
	if !e.graph.Has(id) {
		return access.None, fmt.Errorf("%w: %s", ErrUnknownNode, id)
	}
	return e.graph.Level(id), nil
}

// NodeLevels returns every overworld node level.
func (e *Engine) NodeLevels() map[string]access.Level {
	return e.graph.Levels()
}

func (e *Engine) Location(id string) (*location.Location, error) {
	loc, ok := e.locationIndex[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLocation, id)
	}
	return loc, nil
}

// Locations returns every location in catalog order.
func (e *Engine) Locations() []*location.Location {
	return e.locations
}

// Summaries returns the JSON summary of every location.
func (e *Engine) Summaries() []location.Summary {
	out := make([]location.Summary, 0, len(e.locations))
	for _, l := range e.locations {
		out = append(out, l.Summary())
	}
	return out
}

func (e *Engine) Section(locationID, sectionID string) (*location.Section, error) {
	slot, err := e.section(locationID, sectionID)
	if err != nil {
		return nil, err
	}
	return slot.section, nil
}

func (e *Engine) Dungeon(id string) (DungeonView, error) {
	slot, ok := e.dungeonIndex[id]
	if !ok {
		return DungeonView{}, fmt.Errorf("%w: %s", ErrUnknownDungeon, id)
	}
	keys, _ := e.state.ItemCount(dungeon.SmallKeyItem(id))
	inst := slot.inst
	return DungeonView{
		ID:          id,
		Name:        slot.def.Name,
		Config:      inst.Config(),
		Entrance:    slot.entrance,
		Nodes:       inst.Nodes(),
		Doors:       inst.Doors(),
		Items:       inst.Items(),
		BossLevel:   inst.BossLevel(),
		BigKeyLevel: inst.BigKeyLevel(),
		SmallKeys:   keys,
		Passes:      inst.Passes(),
	}, nil
}

// DungeonIDs lists dungeons in catalog order.
func (e *Engine) DungeonIDs() []string {
	ids := make([]string, 0, len(e.dungeons))
	for _, d := range e.dungeons {
		ids = append(ids, d.def.ID)
	}
	return ids
}

func (e *Engine) Items() []ItemStatus {
	names := e.state.ItemNames()
	out := make([]ItemStatus, 0, len(names))
	for _, name := range names {
		count, _ := e.state.ItemCount(name)
		limit, _ := e.state.ItemMax(name)
		out = append(out, ItemStatus{ID: name, Name: e.world.DisplayName(name), Count: count, Max: limit})
	}
	return out
}

func (e *Engine) Settings() []SettingStatus {
	names := e.state.SettingNames()
	out := make([]SettingStatus, 0, len(names))
	for _, name := range names {
		v, _ := e.state.Setting(name)
		opts, _ := e.state.SettingOptions(name)
		out = append(out, SettingStatus{ID: name, Name: e.world.DisplayName(name), Value: v, Options: opts})
	}
	return out
}

func (e *Engine) SequenceBreaks() []BreakStatus {
	names := e.state.SequenceBreakNames()
	out := make([]BreakStatus, 0, len(names))
	for _, name := range names {
		on, _ := e.state.SequenceBreak(name)
		out = append(out, BreakStatus{ID: name, Name: e.world.DisplayName(name), Enabled: on})
	}
	return out
}

// ItemCount returns the count of an item, zero when undeclared.
func (e *Engine) ItemCount(name string) int {
	n, _ := e.state.ItemCount(name)
	return n
}
