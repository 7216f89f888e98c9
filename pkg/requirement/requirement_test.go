package requirement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/tracker-engine/pkg/access"
	"github.com/jwebster45206/tracker-engine/pkg/state"
)

// mockStateView implements StateView for testing
type mockStateView struct {
	items    map[string]int
	settings map[string]string
	breaks   map[string]bool
}

func (m *mockStateView) ItemCount(name string) (int, bool) {
	v, ok := m.items[name]
	return v, ok
}

func (m *mockStateView) Setting(name string) (string, bool) {
	v, ok := m.settings[name]
	return v, ok
}

func (m *mockStateView) SequenceBreak(name string) (bool, bool) {
	v, ok := m.breaks[name]
	return v, ok
}

type mockNodeView map[string]access.Level

func (m mockNodeView) NodeLevel(id string) (access.Level, bool) {
	v, ok := m[id]
	return v, ok
}

func newMockState() *mockStateView {
	return &mockStateView{
		items: map[string]int{
			"sword": 0, "hammer": 0, "gloves": 0, "flippers": 0,
			PrizeCrystal: 0, PrizeRedCrystal: 0, PrizePendant: 0, PrizeGreenPendant: 0,
		},
		settings: map[string]string{"world_state": "open"},
		breaks:   map[string]bool{"fake_flipper": false},
	}
}

func TestEval_Leaves(t *testing.T) {
	st := newMockState()
	ev := NewEvaluator(nil, st, nil)

	tests := []struct {
		name  string
		setup func()
		req   Requirement
		want  access.Level
	}{
		{"static", func() {}, Static{Level: access.Inspect}, access.Inspect},
		{"setting match", func() {}, Setting{Name: "world_state", Value: "open"}, access.Normal},
		{"setting mismatch", func() {}, Setting{Name: "world_state", Value: "inverted"}, access.None},
		{"item below threshold", func() { st.items["gloves"] = 1 }, AtLeast("gloves", 2), access.None},
		{"item at threshold", func() { st.items["gloves"] = 2 }, AtLeast("gloves", 2), access.Normal},
		{"sequence break off", func() {}, SequenceBreak{Name: "fake_flipper"}, access.None},
		{"sequence break on", func() { st.breaks["fake_flipper"] = true }, SequenceBreak{Name: "fake_flipper"}, access.SequenceBreak},
		{"crystals short", func() { st.items[PrizeCrystal] = 4 }, Prize{Kind: Crystals, Count: 7}, access.None},
		{"crystals with red", func() { st.items[PrizeRedCrystal] = 3 }, Prize{Kind: Crystals, Count: 7}, access.Normal},
		{"pendants", func() { st.items[PrizePendant] = 2; st.items[PrizeGreenPendant] = 1 }, Prize{Kind: Pendants, Count: 3}, access.Normal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			ev.Reset()
			assert.Equal(t, tt.want, ev.Eval(tt.req))
		})
	}
}

func TestEval_ExactAndThresholdAreIndependent(t *testing.T) {
	st := newMockState()
	ev := NewEvaluator(nil, st, nil)
	swordless := Exactly("sword", 0)
	master := AtLeast("sword", 2)

	for count, want := range map[int][2]access.Level{
		0: {access.Normal, access.None},
		1: {access.None, access.None},
		2: {access.None, access.Normal},
		4: {access.None, access.Normal},
	} {
		st.items["sword"] = count
		ev.Reset()
		assert.Equal(t, want[0], ev.Eval(swordless), "exact 0 with sword=%d", count)
		assert.Equal(t, want[1], ev.Eval(master), "threshold 2 with sword=%d", count)
	}
}

func TestEval_AggregateIsMinAlternativeIsMax(t *testing.T) {
	ev := NewEvaluator(nil, newMockState(), nil)
	levels := []access.Level{access.None, access.Inspect, access.SequenceBreak, access.Normal}

	// Every ordered pair and triple of static children.
	for _, a := range levels {
		for _, b := range levels {
			for _, c := range levels {
				children := []Requirement{Static{a}, Static{b}, Static{c}}
				assert.Equal(t, access.MinOf(a, b, c), ev.Eval(All{Children: children}))
				assert.Equal(t, access.MaxOf(a, b, c), ev.Eval(Any{Children: children}))
			}
		}
	}

	assert.Equal(t, access.Normal, ev.Eval(All{}), "empty aggregate is the top element")
	assert.Equal(t, access.None, ev.Eval(Any{}), "empty alternative is the bottom element")
}

func TestEval_SequenceBreakAlternative(t *testing.T) {
	st := newMockState()
	ev := NewEvaluator(nil, st, nil)
	swim := AnyOf(AtLeast("flippers", 1), SequenceBreak{Name: "fake_flipper"})

	assert.Equal(t, access.None, ev.Eval(swim))

	st.breaks["fake_flipper"] = true
	ev.Reset()
	assert.Equal(t, access.SequenceBreak, ev.Eval(swim))

	st.items["flippers"] = 1
	ev.Reset()
	assert.Equal(t, access.Normal, ev.Eval(swim))
}

func TestRegistry_DefineOrderAndCache(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Define("can_lift_rocks", AtLeast("gloves", 1)))
	require.NoError(t, reg.Define("can_lift_dark_rocks", AtLeast("gloves", 2)))
	require.NoError(t, reg.Define("can_reach_dark_world",
		AnyOf(AllOf(Complex{"can_lift_rocks"}, AtLeast("hammer", 1)), Complex{"can_lift_dark_rocks"})))

	err := reg.Define("loop", Complex{Name: "later"})
	assert.ErrorIs(t, err, ErrUndefinedComplex)
	err = reg.Define("can_lift_rocks", Static{access.Normal})
	assert.ErrorIs(t, err, ErrDuplicateComplex)

	assert.Equal(t, []string{"can_lift_rocks", "can_lift_dark_rocks", "can_reach_dark_world"}, reg.Names())
	assert.Equal(t, []state.Input{state.ItemInput("gloves"), state.ItemInput("hammer")},
		reg.Inputs(Complex{Name: "can_reach_dark_world"}))

	st := newMockState()
	ev := NewEvaluator(reg, st, nil)
	st.items["gloves"] = 1
	assert.Equal(t, access.None, ev.Eval(Complex{"can_reach_dark_world"}))

	ev.Reset()
	shared := AllOf(Complex{"can_lift_rocks"}, Complex{"can_lift_rocks"}, Complex{"can_lift_rocks"})
	assert.Equal(t, access.Normal, ev.Eval(shared))
	assert.Equal(t, 2, ev.CacheHits(), "repeated complex lookups are served from the pass cache")

	// Cache must not leak across passes.
	st.items["gloves"] = 0
	ev.Reset()
	assert.Equal(t, access.None, ev.Eval(Complex{"can_lift_rocks"}))
}

func TestRegistry_NodeReadingComplexIsNotCached(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Define("at_pyramid", Reach{Node: "pyramid"}))

	nodes := mockNodeView{"pyramid": access.None}
	ev := NewEvaluator(reg, newMockState(), nodes)
	assert.Equal(t, access.None, ev.Eval(Complex{"at_pyramid"}))

	nodes["pyramid"] = access.Normal
	assert.Equal(t, access.Normal, ev.Eval(Complex{"at_pyramid"}), "node-reading complex re-evaluates within a pass")
	assert.Equal(t, []state.Input{state.NodeInput("pyramid")}, reg.Inputs(Complex{"at_pyramid"}))
}

func TestEval_CatalogErrorsPanic(t *testing.T) {
	ev := NewEvaluator(nil, newMockState(), nil)

	assert.Panics(t, func() { ev.Eval(Complex{Name: "missing"}) })
	assert.Panics(t, func() { ev.Eval(AtLeast("boomerang", 1)) })
	assert.Panics(t, func() { ev.Eval(Setting{Name: "goal", Value: "ganon"}) })
	assert.Panics(t, func() { ev.Eval(SequenceBreak{Name: "hover"}) })
	assert.Panics(t, func() { ev.Eval(Reach{Node: "pyramid"}) })
}
