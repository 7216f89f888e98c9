package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/tracker-engine/pkg/access"
	"github.com/jwebster45206/tracker-engine/pkg/requirement"
	"github.com/jwebster45206/tracker-engine/pkg/state"
)

type fixture struct {
	st  *state.State
	g   *Graph
	ev  *requirement.Evaluator
	reg *requirement.Registry
}

// newFixture builds a small light/dark world graph:
//
//	start -> light_world -> kakariko
//	light_world -(gloves)-> death_mountain -(hammer|break)-> dm_east
//	light_world -(moon pearl + dm_east reachable)-> dark_world
func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := state.New(
		[]state.ItemSpec{
			{Name: "gloves", Max: 2},
			{Name: "hammer", Max: 1},
			{Name: "moon_pearl", Max: 1},
			{Name: "lamp", Max: 1},
		},
		[]state.SettingSpec{{Name: "world_state", Options: []string{"open", "inverted"}, Default: "open"}},
		[]state.BreakSpec{{Name: "dark_room"}},
	)
	require.NoError(t, err)

	reg := requirement.NewRegistry()
	require.NoError(t, reg.Define("can_lift", requirement.AtLeast("gloves", 1)))
	require.NoError(t, reg.Define("dark_room_ok", requirement.AnyOf(
		requirement.AtLeast("lamp", 1),
		requirement.SequenceBreak{Name: "dark_room"},
	)))

	g, err := Build("start",
		[]string{"dark_world", "dm_east", "death_mountain", "kakariko", "light_world", "start"},
		[]Connection{
			{From: "start", To: "light_world", Requirement: requirement.Always},
			{From: "light_world", To: "kakariko", Requirement: requirement.Always},
			{From: "light_world", To: "death_mountain", Requirement: requirement.AllOf(
				requirement.Complex{Name: "can_lift"}, requirement.Complex{Name: "dark_room_ok"})},
			{From: "death_mountain", To: "dm_east", Requirement: requirement.AtLeast("hammer", 1)},
			{From: "light_world", To: "dark_world", Requirement: requirement.AllOf(
				requirement.AtLeast("moon_pearl", 1), requirement.Reach{Node: "dm_east"})},
		},
		reg,
	)
	require.NoError(t, err)

	ev := requirement.NewEvaluator(reg, st, g)
	g.Refresh(ev)
	return &fixture{st: st, g: g, ev: ev, reg: reg}
}

func (f *fixture) set(t *testing.T, name string, n int) []string {
	t.Helper()
	_, err := f.st.SetItem(name, n)
	require.NoError(t, err)
	return f.g.Propagate(f.ev, state.ItemInput(name))
}

func TestBuild_TopologicalOrder(t *testing.T) {
	f := newFixture(t)
	order := f.g.Nodes()

	pos := make(map[string]int)
	for i, id := range order {
		pos[id] = i
	}
	assert.Less(t, pos["start"], pos["light_world"])
	assert.Less(t, pos["light_world"], pos["death_mountain"])
	assert.Less(t, pos["dm_east"], pos["dark_world"], "reach dependencies are ordered too")
	assert.Equal(t, "start", f.g.Start())
}

func TestBuild_Rejects(t *testing.T) {
	always := requirement.Always
	tests := []struct {
		name  string
		nodes []string
		conns []Connection
		want  error
	}{
		{
			name:  "missing start",
			nodes: []string{"a"},
			want:  ErrMissingStart,
		},
		{
			name:  "duplicate node",
			nodes: []string{"start", "a", "a"},
			want:  ErrDuplicateNode,
		},
		{
			name:  "unknown endpoint",
			nodes: []string{"start", "a"},
			conns: []Connection{{From: "start", To: "b", Requirement: always}},
			want:  ErrUnknownNode,
		},
		{
			name:  "into start",
			nodes: []string{"start", "a"},
			conns: []Connection{{From: "a", To: "start", Requirement: always}},
			want:  ErrStartInbound,
		},
		{
			name:  "connection cycle",
			nodes: []string{"start", "a", "b"},
			conns: []Connection{
				{From: "start", To: "a", Requirement: always},
				{From: "a", To: "b", Requirement: always},
				{From: "b", To: "a", Requirement: always},
			},
			want: ErrCycle,
		},
		{
			name:  "reach cycle",
			nodes: []string{"start", "a", "b"},
			conns: []Connection{
				{From: "start", To: "a", Requirement: requirement.Reach{Node: "b"}},
				{From: "start", To: "b", Requirement: requirement.Reach{Node: "a"}},
			},
			want: ErrCycle,
		},
		{
			name:  "nil requirement",
			nodes: []string{"start", "a"},
			conns: []Connection{{From: "start", To: "a"}},
			want:  ErrNilRequirement,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build("start", tt.nodes, tt.conns, nil)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRefresh_InitialLevels(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, access.Normal, f.g.Level("start"))
	assert.Equal(t, access.Normal, f.g.Level("light_world"))
	assert.Equal(t, access.Normal, f.g.Level("kakariko"))
	assert.Equal(t, access.None, f.g.Level("death_mountain"))
	assert.Equal(t, access.None, f.g.Level("dm_east"))
	assert.Equal(t, access.None, f.g.Level("dark_world"))
}

func TestPropagate_Incremental(t *testing.T) {
	f := newFixture(t)

	changed := f.set(t, "gloves", 1)
	assert.Empty(t, changed, "gloves alone does not open the dark climb")
	assert.Equal(t, 1, f.g.Evaluated(), "only the subscriber of gloves is recomputed")

	changed = f.set(t, "lamp", 1)
	assert.Equal(t, []string{"death_mountain"}, changed)
	assert.Equal(t, access.Normal, f.g.Level("death_mountain"))

	changed = f.set(t, "moon_pearl", 1)
	assert.Empty(t, changed, "dark world still needs dm_east")

	changed = f.set(t, "hammer", 1)
	assert.Equal(t, []string{"dm_east", "dark_world"}, changed)
	assert.Equal(t, access.Normal, f.g.Level("dark_world"))

	changed = f.set(t, "gloves", 0)
	assert.Equal(t, []string{"death_mountain", "dm_east", "dark_world"}, changed)
	for _, id := range []string{"death_mountain", "dm_east", "dark_world"} {
		assert.Equal(t, access.None, f.g.Level(id), id)
	}
}

func TestPropagate_SequenceBreakLevel(t *testing.T) {
	f := newFixture(t)
	f.set(t, "gloves", 1)

	_, err := f.st.SetSequenceBreak("dark_room", true)
	require.NoError(t, err)
	changed := f.g.Propagate(f.ev, state.BreakInput("dark_room"))

	assert.Equal(t, []string{"death_mountain"}, changed)
	assert.Equal(t, access.SequenceBreak, f.g.Level("death_mountain"))

	f.set(t, "hammer", 1)
	assert.Equal(t, access.SequenceBreak, f.g.Level("dm_east"), "min of source and requirement")
}

func TestPropagate_MatchesFullRefresh(t *testing.T) {
	f := newFixture(t)
	steps := []struct {
		item string
		n    int
	}{
		{"gloves", 2}, {"lamp", 1}, {"hammer", 1}, {"moon_pearl", 1},
		{"lamp", 0}, {"hammer", 0}, {"gloves", 0}, {"lamp", 1}, {"gloves", 1},
	}

	for _, s := range steps {
		f.set(t, s.item, s.n)
		incremental := f.g.Levels()

		f.g.Reset()
		f.g.Refresh(f.ev)
		assert.Equal(t, incremental, f.g.Levels(), "after %s=%d", s.item, s.n)
	}
}

func TestRefresh_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.set(t, "gloves", 1)
	f.set(t, "lamp", 1)
	before := f.g.Levels()

	assert.Empty(t, f.g.Refresh(f.ev))
	assert.Empty(t, f.g.Propagate(f.ev, state.ItemInput("gloves"), state.ItemInput("lamp")))
	assert.Equal(t, before, f.g.Levels())
}

func TestStartIsAlwaysNormal(t *testing.T) {
	f := newFixture(t)
	for _, s := range []string{"gloves", "lamp", "hammer", "moon_pearl"} {
		f.set(t, s, 1)
		assert.Equal(t, access.Normal, f.g.Level("start"))
		f.set(t, s, 0)
		assert.Equal(t, access.Normal, f.g.Level("start"))
	}
	f.g.Reset()
	assert.Equal(t, access.Normal, f.g.Level("start"))
}

func TestSubscribers(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, []string{"death_mountain"}, f.g.Subscribers(state.ItemInput("gloves")))
	assert.Equal(t, []string{"dark_world"}, f.g.Subscribers(state.ItemInput("moon_pearl")))
	assert.Empty(t, f.g.Subscribers(state.SettingInput("world_state")))
}
