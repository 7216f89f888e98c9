package dungeon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/tracker-engine/pkg/access"
	"github.com/jwebster45206/tracker-engine/pkg/requirement"
	"github.com/jwebster45206/tracker-engine/pkg/state"
)

func newEvaluator(t *testing.T) (*state.State, *requirement.Evaluator) {
	t.Helper()
	st, err := state.New(
		[]state.ItemSpec{{Name: "lamp", Max: 1}, {Name: "hookshot", Max: 1}},
		[]state.SettingSpec{
			{Name: SettingSmallKeyShuffle, Options: []string{Off, On}, Default: Off},
			{Name: SettingBigKeyShuffle, Options: []string{Off, On}, Default: Off},
		},
		[]state.BreakSpec{{Name: "dark_room"}},
	)
	require.NoError(t, err)
	return st, requirement.NewEvaluator(nil, st, nil)
}

// twoDoorDungeon has two locked doors in a row and its only small key
// behind the first one.
//
//	entry -[d1]-> hall (key chest) -[d2]-> vault (chest)
func twoDoorDungeon() *Definition {
	return &Definition{
		ID:        "tower",
		Entrances: []string{"tower_entrance"},
		Entry:     "entry",
		Nodes:     []string{"entry", "hall", "vault"},
		Doors: []Door{
			{ID: "d1", From: "entry", To: "hall"},
			{ID: "d2", From: "hall", To: "vault"},
		},
		Placements: []Placement{
			{ID: "hall_chest", Node: "hall", Kind: Chest, Key: true},
			{ID: "vault_chest", Node: "vault", Kind: Chest},
		},
		SmallKeys: 1,
	}
}

func level(t *testing.T, in *Instance, node string) access.Level {
	t.Helper()
	l, ok := in.NodeLevel(node)
	require.True(t, ok, node)
	return l
}

func unlocked(t *testing.T, in *Instance, id string) bool {
	t.Helper()
	u, ok := in.DoorUnlocked(id)
	require.True(t, ok, id)
	return u
}

func TestSolve_KeyBehindItsOwnDoor(t *testing.T) {
	_, ev := newEvaluator(t)
	in, err := NewInstance(twoDoorDungeon(), Config{})
	require.NoError(t, err)

	in.Solve(ev, access.Normal, 0, false)

	assert.False(t, unlocked(t, in, "d1"), "the key behind d1 cannot open d1")
	assert.False(t, unlocked(t, in, "d2"))
	assert.Equal(t, access.Normal, level(t, in, "entry"))
	assert.Equal(t, access.None, level(t, in, "hall"))
	assert.Equal(t, access.None, level(t, in, "vault"))

	// Held keys do not count when keys are not shuffled.
	in.Solve(ev, access.Normal, 1, false)
	assert.False(t, unlocked(t, in, "d1"))
}

func TestSolve_ShuffledKeys(t *testing.T) {
	_, ev := newEvaluator(t)
	in, err := NewInstance(twoDoorDungeon(), Config{SmallKeyShuffle: true})
	require.NoError(t, err)

	in.Solve(ev, access.Normal, 0, false)
	assert.False(t, unlocked(t, in, "d1"))
	assert.Equal(t, access.None, level(t, in, "hall"))

	in.Solve(ev, access.Normal, 1, false)
	assert.True(t, unlocked(t, in, "d1"))
	assert.False(t, unlocked(t, in, "d2"), "one key opens one door")
	assert.Equal(t, access.Normal, level(t, in, "hall"))
	assert.Equal(t, access.None, level(t, in, "vault"))

	in.Solve(ev, access.Normal, 2, false)
	assert.True(t, unlocked(t, in, "d2"))
	assert.Equal(t, access.Normal, level(t, in, "vault"))
}

func TestSolve_KeyChain(t *testing.T) {
	_, ev := newEvaluator(t)
	def := twoDoorDungeon()
	def.Placements = append(def.Placements, Placement{ID: "entry_chest", Node: "entry", Kind: Chest, Key: true})

	in, err := NewInstance(def, Config{})
	require.NoError(t, err)
	in.Solve(ev, access.Normal, 0, false)

	assert.True(t, unlocked(t, in, "d1"))
	assert.True(t, unlocked(t, in, "d2"), "key found behind d1 opens d2")
	assert.Equal(t, access.Normal, level(t, in, "vault"))
	assert.LessOrEqual(t, in.Passes(), len(def.Doors)+1)
}

func TestSolve_Converges(t *testing.T) {
	st, ev := newEvaluator(t)
	def := twoDoorDungeon()
	def.Placements = append(def.Placements, Placement{ID: "entry_chest", Node: "entry", Kind: Chest, Key: true})
	def.Connections = []Connection{{From: "vault", To: "entry"}} // loop back
	in, err := NewInstance(def, Config{})
	require.NoError(t, err)

	for _, entrance := range []access.Level{access.None, access.SequenceBreak, access.Normal} {
		in.Solve(ev, entrance, 0, false)
		nodes, doors, items := in.Nodes(), in.Doors(), in.Items()

		assert.False(t, in.Solve(ev, entrance, 0, false), "second solve is a no-op at %s", entrance)
		assert.Equal(t, nodes, in.Nodes())
		assert.Equal(t, doors, in.Doors())
		assert.Equal(t, items, in.Items())
	}

	_, err = st.SetItem("lamp", 1)
	require.NoError(t, err)
	assert.False(t, in.Solve(ev, access.Normal, 0, false), "unread items do not change anything")
}

func TestSolve_KeyLevelCapsDoor(t *testing.T) {
	st, ev := newEvaluator(t)
	dark := requirement.AnyOf(requirement.AtLeast("lamp", 1), requirement.SequenceBreak{Name: "dark_room"})
	def := &Definition{
		ID:    "cave",
		Entry: "entry",
		Nodes: []string{"entry", "dark", "inner"},
		Connections: []Connection{
			{From: "entry", To: "dark", Requirement: dark},
		},
		Doors:      []Door{{ID: "d1", From: "entry", To: "inner"}},
		Placements: []Placement{{ID: "dark_chest", Node: "dark", Kind: Chest, Key: true}},
	}
	in, err := NewInstance(def, Config{})
	require.NoError(t, err)

	in.Solve(ev, access.Normal, 0, false)
	assert.False(t, unlocked(t, in, "d1"))

	_, err = st.SetSequenceBreak("dark_room", true)
	require.NoError(t, err)
	in.Solve(ev, access.Normal, 0, false)
	assert.True(t, unlocked(t, in, "d1"))
	assert.Equal(t, access.SequenceBreak, level(t, in, "inner"), "door is only as good as the key spent on it")

	_, err = st.SetItem("lamp", 1)
	require.NoError(t, err)
	assert.True(t, in.Solve(ev, access.Normal, 0, false))
	assert.Equal(t, access.Normal, level(t, in, "inner"))
}

func TestSolve_GatedDoors(t *testing.T) {
	// entry -[d1: hookshot or dark_room break]-> a
	// entry -[d2]-> b
	gated := func(vanillaKey bool) *Definition {
		def := &Definition{
			ID:    "palace",
			Entry: "entry",
			Nodes: []string{"entry", "a", "b"},
			Doors: []Door{
				{ID: "d1", From: "entry", To: "a", Requirement: requirement.AnyOf(
					requirement.AtLeast("hookshot", 1), requirement.SequenceBreak{Name: "dark_room"})},
				{ID: "d2", From: "entry", To: "b"},
			},
			Placements: []Placement{
				{ID: "a_chest", Node: "a", Kind: Chest},
				{ID: "b_chest", Node: "b", Kind: Chest},
			},
		}
		if vanillaKey {
			def.Placements = append(def.Placements, Placement{ID: "entry_chest", Node: "entry", Kind: Chest, Key: true})
			def.SmallKeys = 1
		}
		return def
	}

	tests := []struct {
		name     string
		shuffled bool
		heldKeys int
		hookshot bool
		darkRoom bool
		d1, d2   bool
		wantA    access.Level
		wantB    access.Level
	}{
		{"shuffled, door blocked", true, 1, false, false, false, true, access.None, access.Normal},
		{"shuffled, door passable", true, 1, true, false, true, false, access.Normal, access.None},
		{"shuffled, two keys", true, 2, false, false, false, true, access.None, access.Normal},
		{"shuffled, door passable with a break", true, 1, false, true, true, false, access.SequenceBreak, access.None},
		{"vanilla, door blocked", false, 0, false, false, false, true, access.None, access.Normal},
		{"vanilla, door passable", false, 0, true, false, true, false, access.Normal, access.None},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, ev := newEvaluator(t)
			if tt.hookshot {
				_, err := st.SetItem("hookshot", 1)
				require.NoError(t, err)
			}
			if tt.darkRoom {
				_, err := st.SetSequenceBreak("dark_room", true)
				require.NoError(t, err)
			}
			in, err := NewInstance(gated(!tt.shuffled), Config{SmallKeyShuffle: tt.shuffled})
			require.NoError(t, err)

			in.Solve(ev, access.Normal, tt.heldKeys, false)

			assert.Equal(t, tt.d1, unlocked(t, in, "d1"), "d1")
			assert.Equal(t, tt.d2, unlocked(t, in, "d2"), "d2")
			assert.Equal(t, tt.wantA, level(t, in, "a"))
			assert.Equal(t, tt.wantB, level(t, in, "b"))
		})
	}
}

func TestSolve_BigKey(t *testing.T) {
	_, ev := newEvaluator(t)
	def := &Definition{
		ID:    "palace",
		Entry: "entry",
		Nodes: []string{"entry", "side", "boss_room"},
		Connections: []Connection{
			{From: "entry", To: "side", Requirement: requirement.AtLeast("hookshot", 1)},
			{From: "entry", To: "boss_room", BigKey: true},
		},
		Placements: []Placement{
			{ID: "big_chest", Node: "side", Kind: BigKey},
			{ID: "map_chest", Node: "entry", Kind: Map},
		},
		Boss: &Boss{Node: "boss_room"},
	}

	in, err := NewInstance(def, Config{})
	require.NoError(t, err)
	in.Solve(ev, access.Normal, 0, false)
	assert.Equal(t, access.None, in.BossLevel())

	in.Solve(ev, access.Normal, 0, true)
	assert.Equal(t, access.Normal, in.BossLevel(), "a held big key opens the big key door")

	shuffled, err := NewInstance(def, Config{BigKeyShuffle: true})
	require.NoError(t, err)
	shuffled.Solve(ev, access.Normal, 0, false)
	assert.Equal(t, access.None, shuffled.BossLevel())
	assert.Equal(t, 1, shuffled.Total(), "big key chest counts once big keys are shuffled")
	assert.Equal(t, 0, in.Total())
}

func TestSolve_BigKeyFromPlacement(t *testing.T) {
	st, ev := newEvaluator(t)
	def := &Definition{
		ID:    "palace",
		Entry: "entry",
		Nodes: []string{"entry", "side", "boss_room"},
		Connections: []Connection{
			{From: "entry", To: "side", Requirement: requirement.AtLeast("hookshot", 1)},
			{From: "entry", To: "boss_room", BigKey: true},
		},
		Placements: []Placement{{ID: "big_chest", Node: "side", Kind: BigKey}},
		Boss:       &Boss{Node: "boss_room", Requirement: requirement.AtLeast("lamp", 1)},
	}
	in, err := NewInstance(def, Config{})
	require.NoError(t, err)

	_, err = st.SetItem("hookshot", 1)
	require.NoError(t, err)
	in.Solve(ev, access.Normal, 0, false)
	assert.Equal(t, access.Normal, level(t, in, "boss_room"))
	assert.Equal(t, access.None, in.BossLevel(), "boss requirement still applies")

	_, err = st.SetItem("lamp", 1)
	require.NoError(t, err)
	in.Solve(ev, access.Normal, 0, false)
	assert.Equal(t, access.Normal, in.BossLevel())
}

func TestOverrides(t *testing.T) {
	_, ev := newEvaluator(t)
	in, err := NewInstance(twoDoorDungeon(), Config{SmallKeyShuffle: true})
	require.NoError(t, err)

	open := true
	changed, err := in.SetOverride("d2", &open)
	require.NoError(t, err)
	assert.True(t, changed)

	in.Solve(ev, access.Normal, 1, false)
	assert.True(t, unlocked(t, in, "d2"))
	assert.False(t, unlocked(t, in, "d1"), "the pinned door spent the only key")

	shut := false
	_, err = in.SetOverride("d1", &shut)
	require.NoError(t, err)
	in.Solve(ev, access.Normal, 3, false)
	assert.False(t, unlocked(t, in, "d1"))
	assert.Equal(t, map[string]bool{"d1": false, "d2": true}, in.Overrides())

	changed, err = in.SetOverride("d1", nil)
	require.NoError(t, err)
	assert.True(t, changed)
	in.Solve(ev, access.Normal, 3, false)
	assert.True(t, unlocked(t, in, "d1"))

	_, err = in.SetOverride("d9", &open)
	assert.ErrorIs(t, err, ErrUnknownDoor)
}

func TestConfig_CountedItems(t *testing.T) {
	def := &Definition{
		ID:    "swamp",
		Entry: "entry",
		Nodes: []string{"entry"},
		Placements: []Placement{
			{ID: "a", Node: "entry", Kind: Chest},
			{ID: "b", Node: "entry", Kind: Chest, Key: true},
			{ID: "c", Node: "entry", Kind: KeyDrop},
			{ID: "d", Node: "entry", Kind: BigKey},
			{ID: "e", Node: "entry", Kind: Map},
			{ID: "f", Node: "entry", Kind: Compass},
		},
	}

	tests := []struct {
		cfg  Config
		want int
	}{
		{Config{}, 1},
		{Config{SmallKeyShuffle: true}, 2},
		{Config{KeyDropShuffle: true}, 1},
		{Config{SmallKeyShuffle: true, KeyDropShuffle: true}, 3},
		{Config{BigKeyShuffle: true, MapCompassShuffle: true}, 4},
		{Config{SmallKeyShuffle: true, BigKeyShuffle: true, MapCompassShuffle: true, KeyDropShuffle: true}, 6},
	}
	for _, tt := range tests {
		in, err := NewInstance(def, tt.cfg)
		require.NoError(t, err)
		assert.Equal(t, tt.want, in.Total(), "%+v", tt.cfg)
	}
}

func TestConfigFromSettings(t *testing.T) {
	st, _ := newEvaluator(t)
	assert.Equal(t, Config{}, ConfigFromSettings(st))

	_, err := st.SetSetting(SettingSmallKeyShuffle, On)
	require.NoError(t, err)
	assert.Equal(t, Config{SmallKeyShuffle: true}, ConfigFromSettings(st))
}

func TestDefinition_Validate(t *testing.T) {
	def := twoDoorDungeon()
	def.Doors = append(def.Doors, Door{ID: "d3", From: "hall", To: "attic"})
	def.Placements = append(def.Placements, Placement{ID: "drop", Node: "hall", Kind: KeyDrop, Key: true})

	err := def.Validate()
	assert.ErrorIs(t, err, ErrUnknownNode)
	assert.ErrorIs(t, err, ErrInvalidPlacement)

	_, err = NewInstance(def, Config{})
	assert.Error(t, err)
}

func TestDefinition_Inputs(t *testing.T) {
	def := &Definition{
		ID:        "cave",
		Entrances: []string{"cave_entrance"},
		Entry:     "entry",
		Nodes:     []string{"entry", "dark"},
		Connections: []Connection{
			{From: "entry", To: "dark", Requirement: requirement.AtLeast("lamp", 1)},
		},
	}
	inputs := def.Inputs(requirement.NewRegistry())
	assert.ElementsMatch(t, []state.Input{
		state.ItemInput("cave_small_key"),
		state.ItemInput("cave_big_key"),
		state.NodeInput("cave_entrance"),
		state.ItemInput("lamp"),
	}, inputs)
}
