package dungeon

import "github.com/jwebster45206/tracker-engine/pkg/access"

// NodeState is a dungeon node as seen by map renderers.
type NodeState struct {
	ID    string       `json:"id"`
	Level access.Level `json:"level"`
}

// DoorState is a key door as seen by map renderers. Level is the level at
// which the door can be traversed, None while locked.
type DoorState struct {
	ID       string       `json:"id"`
	From     string       `json:"from"`
	To       string       `json:"to"`
	Unlocked bool         `json:"unlocked"`
	Override *bool        `json:"override,omitempty"`
	Level    access.Level `json:"level"`
}

// ItemState is a placement with its current level.
type ItemState struct {
	ID      string        `json:"id"`
	Node    string        `json:"node"`
	Kind    PlacementKind `json:"kind"`
	Counted bool          `json:"counted"`
	Level   access.Level  `json:"level"`
}

func (in *Instance) Nodes() []NodeState {
	out := make([]NodeState, len(in.nodeIDs))
	for i, id := range in.nodeIDs {
		out[i] = NodeState{ID: id, Level: in.levels[i]}
	}
	return out
}

// NodeLevel returns one node's level.
func (in *Instance) NodeLevel(id string) (access.Level, bool) {
	i, ok := in.nodeIndex[id]
	if !ok {
		return access.None, false
	}
	return in.levels[i], true
}

func (in *Instance) Doors() []DoorState {
	out := make([]DoorState, len(in.doors))
	for i, d := range in.doors {
		out[i] = DoorState{
			ID:       d.id,
			From:     in.nodeIDs[d.from],
			To:       in.nodeIDs[d.to],
			Unlocked: d.unlocked,
		}
		if d.override != nil {
			v := *d.override
			out[i].Override = &v
		}
		if d.unlocked {
			out[i].Level = access.MinOf(in.levels[d.from], d.level, d.cap)
		}
	}
	return out
}

// DoorUnlocked reports a door's solved state.
func (in *Instance) DoorUnlocked(id string) (bool, bool) {
	i, ok := in.doorIndex[id]
	if !ok {
		return false, false
	}
	return in.doors[i].unlocked, true
}

// Items returns every placement, counted or not.
func (in *Instance) Items() []ItemState {
	out := make([]ItemState, len(in.places))
	for i, p := range in.places {
		out[i] = ItemState{
			ID:      p.spec.ID,
			Node:    p.spec.Node,
			Kind:    p.spec.Kind,
			Counted: p.counted,
			Level:   p.level,
		}
	}
	return out
}

// ItemLevels returns the level of each counted placement.
func (in *Instance) ItemLevels() []access.Level {
	var out []access.Level
	for _, p := range in.places {
		if p.counted {
			out = append(out, p.level)
		}
	}
	return out
}

// BossLevel is None for dungeons without a boss.
func (in *Instance) BossLevel() access.Level { return in.bossLevel }

func (in *Instance) BigKeyLevel() access.Level { return in.bigKeyLevel }
