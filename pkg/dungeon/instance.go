package dungeon

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/jwebster45206/tracker-engine/pkg/access"
	"github.com/jwebster45206/tracker-engine/pkg/requirement"
)

type conn struct {
	from, to int
	req      requirement.Requirement
	bigKey   bool
	level    access.Level // requirement level for the current solve
}

type door struct {
	id       string
	from, to int
	req      requirement.Requirement
	level    access.Level
	override *bool
	unlocked bool
	cap      access.Level // level of the key spent on the door
}

type place struct {
	spec     Placement
	node     int
	counted  bool
	fixedKey bool
	reqLevel access.Level
	level    access.Level
}

// Instance is the arena for one dungeon under one Config. Nodes, doors and
// placements refer to each other by index. An Instance is not safe for
// concurrent use.
type Instance struct {
	def *Definition
	cfg Config

	nodeIDs   []string
	nodeIndex map[string]int
	levels    []access.Level
	entry     int

	conns     []conn
	doors     []door
	doorIndex map[string]int
	places    []place

	bossNode  int
	bossReq   requirement.Requirement
	bossLevel access.Level

	bigKeyLevel access.Level
	passes      int
}

// NewInstance builds a fresh arena from a definition. Every node starts at
// None and every door locked until Solve runs.
func NewInstance(def *Definition, cfg Config) (*Instance, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	in := &Instance{
		def:       def,
		cfg:       cfg,
		nodeIDs:   slices.Clone(def.Nodes),
		nodeIndex: make(map[string]int, len(def.Nodes)),
		levels:    make([]access.Level, len(def.Nodes)),
		doorIndex: make(map[string]int, len(def.Doors)),
		bossNode:  -1,
	}
	for i, id := range def.Nodes {
		in.nodeIndex[id] = i
	}
	in.entry = in.nodeIndex[def.Entry]

	for _, c := range def.Connections {
		in.conns = append(in.conns, conn{
			from:   in.nodeIndex[c.From],
			to:     in.nodeIndex[c.To],
			req:    orAlways(c.Requirement),
			bigKey: c.BigKey,
		})
	}
	for i, d := range def.Doors {
		in.doors = append(in.doors, door{
			id:   d.ID,
			from: in.nodeIndex[d.From],
			to:   in.nodeIndex[d.To],
			req:  orAlways(d.Requirement),
		})
		in.doorIndex[d.ID] = i
	}
	for _, p := range def.Placements {
		in.places = append(in.places, place{
			spec:     p,
			node:     in.nodeIndex[p.Node],
			counted:  cfg.counts(p),
			fixedKey: cfg.holdsFixedKey(p),
		})
	}
	if def.Boss != nil {
		in.bossNode = in.nodeIndex[def.Boss.Node]
		in.bossReq = orAlways(def.Boss.Requirement)
	}
	return in, nil
}

func orAlways(req requirement.Requirement) requirement.Requirement {
	if req == nil {
		return requirement.Always
	}
	return req
}

func (in *Instance) Definition() *Definition { return in.def }
func (in *Instance) Config() Config          { return in.cfg }

// Passes reports how many relaxation passes the last Solve took.
func (in *Instance) Passes() int { return in.passes }

// Total is the number of placements that count as items under the config.
func (in *Instance) Total() int {
	n := 0
	for _, p := range in.places {
		if p.counted {
			n++
		}
	}
	return n
}

// SetOverride pins a door open or shut. A nil value hands the door back to
// the solver. It reports whether the override changed; the caller re-solves.
func (in *Instance) SetOverride(doorID string, unlocked *bool) (bool, error) {
	i, ok := in.doorIndex[doorID]
	if !ok {
		return false, fmt.Errorf("%w: %s in %s", ErrUnknownDoor, doorID, in.def.ID)
	}
	d := &in.doors[i]
	if equalOverride(d.override, unlocked) {
		return false, nil
	}
	if unlocked == nil {
		d.override = nil
	} else {
		v := *unlocked
		d.override = &v
	}
	return true, nil
}

func equalOverride(a, b *bool) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Overrides returns the pinned doors.
func (in *Instance) Overrides() map[string]bool {
	out := make(map[string]bool)
	for _, d := range in.doors {
		if d.override != nil {
			out[d.id] = *d.override
		}
	}
	return out
}

// Solve computes node levels and door states for the given entrance level
// and key inventory. It runs repeated relaxation until neither a node level
// nor a door changes, and reports whether anything visible changed since
// the previous solve.
//
// With small keys shuffled the key budget is heldSmallKeys. Otherwise it is
// the number of fixed-key placements currently reachable, so a key behind a
// locked door cannot open that door. Doors pinned open spend keys first.
func (in *Instance) Solve(ev *requirement.Evaluator, entrance access.Level, heldSmallKeys int, heldBigKey bool) bool {
	before := in.fingerprint()

	ev.Reset()
	for i := range in.conns {
		in.conns[i].level = ev.Eval(in.conns[i].req)
	}
	for i := range in.doors {
		in.doors[i].level = ev.Eval(in.doors[i].req)
	}
	for i := range in.places {
		p := &in.places[i]
		p.reqLevel = access.Normal
		if p.spec.Requirement != nil {
			p.reqLevel = ev.Eval(p.spec.Requirement)
		}
	}
	bossReq := access.None
	if in.bossReq != nil {
		bossReq = ev.Eval(in.bossReq)
	}

	for i := range in.levels {
		in.levels[i] = access.None
	}
	in.levels[in.entry] = entrance

	var spent []int // doors holding a key, in the order they were unlocked
	pinned := 0
	for i := range in.doors {
		d := &in.doors[i]
		d.unlocked = d.override != nil && *d.override
		d.cap = access.None
		if d.unlocked {
			d.cap = access.Normal
			pinned++
		}
	}

	// Each pass either unlocks a door or raises the level of a key already
	// spent; both are bounded, so the guard only trips on a bug.
	guard := (len(in.doors) + 1) * 4
	in.passes = 0
	for {
		in.passes++
		in.relax(heldBigKey)

		keys := in.keyLevels(heldSmallKeys)
		if pinned < len(keys) {
			keys = keys[pinned:]
		} else {
			keys = nil
		}

		progressed := false
		for k, di := range spent {
			if k < len(keys) && keys[k] > in.doors[di].cap {
				in.doors[di].cap = keys[k]
				progressed = true
			}
		}
		for i := range in.doors {
			d := &in.doors[i]
			if d.unlocked || d.override != nil {
				continue
			}
			if len(spent) >= len(keys) {
				break
			}
			// A key only goes to a door the player can walk through.
			if !access.Min(in.levels[d.from], d.level).Reachable() {
				continue
			}
			d.unlocked = true
			d.cap = keys[len(spent)]
			spent = append(spent, i)
			progressed = true
		}

		if !progressed || in.passes >= guard {
			break
		}
	}

	for i := range in.places {
		p := &in.places[i]
		p.level = access.Min(in.levels[p.node], p.reqLevel)
	}
	in.bossLevel = access.None
	if in.bossNode >= 0 {
		in.bossLevel = access.Min(in.levels[in.bossNode], bossReq)
	}

	return in.fingerprint() != before
}

// relax raises node levels through connections and unlocked doors until
// nothing moves. Levels only rise, so cycles terminate.
func (in *Instance) relax(heldBigKey bool) {
	for moved := true; moved; {
		moved = false
		in.bigKeyLevel = in.bigKeyAvailability(heldBigKey)

		for _, c := range in.conns {
			lvl := access.Min(in.levels[c.from], c.level)
			if c.bigKey {
				lvl = access.Min(lvl, in.bigKeyLevel)
			}
			if lvl > in.levels[c.to] {
				in.levels[c.to] = lvl
				moved = true
			}
		}
		for _, d := range in.doors {
			if !d.unlocked {
				continue
			}
			lvl := access.MinOf(in.levels[d.from], d.level, d.cap)
			if lvl > in.levels[d.to] {
				in.levels[d.to] = lvl
				moved = true
			}
		}
	}
}

func (in *Instance) bigKeyAvailability(held bool) access.Level {
	lvl := access.None
	if held {
		lvl = access.Normal
	}
	if in.cfg.BigKeyShuffle {
		return lvl
	}
	for _, p := range in.places {
		if p.spec.Kind == BigKey {
			lvl = access.Max(lvl, access.Min(in.levels[p.node], p.reqLevel))
		}
	}
	return lvl
}

// keyLevels lists the levels of the keys available to spend, best first.
func (in *Instance) keyLevels(held int) []access.Level {
	if in.cfg.SmallKeyShuffle {
		keys := make([]access.Level, held)
		for i := range keys {
			keys[i] = access.Normal
		}
		return keys
	}

	var keys []access.Level
	for _, p := range in.places {
		if !p.fixedKey {
			continue
		}
		if lvl := access.Min(in.levels[p.node], p.reqLevel); lvl.Reachable() {
			keys = append(keys, lvl)
		}
	}
	slices.SortFunc(keys, func(a, b access.Level) int { return cmp.Compare(b, a) })
	return keys
}

func (in *Instance) fingerprint() string {
	buf := make([]byte, 0, len(in.levels)+len(in.doors)+len(in.places)+1)
	for _, l := range in.levels {
		buf = append(buf, byte(l))
	}
	for _, d := range in.doors {
		b := byte(0)
		if d.unlocked {
			b = 1 + byte(d.cap)
		}
		buf = append(buf, b)
	}
	for _, p := range in.places {
		buf = append(buf, byte(p.level))
	}
	buf = append(buf, byte(in.bossLevel))
	return string(buf)
}
