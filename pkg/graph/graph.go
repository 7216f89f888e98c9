// Package graph holds the overworld node/connection graph and propagates
// accessibility through it incrementally.
//
// A node's level is the maximum over its inbound connections of
// min(source level, requirement level). The start node is fixed at Normal.
// The graph must be acyclic, counting both connection sources and nodes read
// through Reach requirements as dependencies.
package graph

import (
	"errors"
	"fmt"
	"slices"

	"github.com/zyedidia/generic/heap"
	"github.com/zyedidia/generic/mapset"

	"github.com/jwebster45206/tracker-engine/pkg/access"
	"github.com/jwebster45206/tracker-engine/pkg/requirement"
	"github.com/jwebster45206/tracker-engine/pkg/state"
)

var (
	ErrCycle          = errors.New("graph: cycle detected")
	ErrUnknownNode    = errors.New("graph: unknown node")
	ErrDuplicateNode  = errors.New("graph: duplicate node")
	ErrStartInbound   = errors.New("graph: connection into start node")
	ErrMissingStart   = errors.New("graph: start node not declared")
	ErrNilRequirement = errors.New("graph: connection without requirement")
)

// Connection is a directed edge gated by a requirement.
type Connection struct {
	From        string
	To          string
	Requirement requirement.Requirement
}

type inbound struct {
	from int
	req  requirement.Requirement
}

// Graph is built once per session from the catalog. Nodes are addressed
// internally by their topological index.
type Graph struct {
	start int

	ids     []string // topological order
	index   map[string]int
	levels  []access.Level
	inbound [][]inbound

	// dependents[i] lists nodes whose level reads node i.
	dependents [][]int
	// subscribers maps a non-node input to the nodes whose inbound
	// requirements read it.
	subscribers map[state.Input][]int

	evaluated int
}

// Build validates the nodes and connections and returns a graph with every
// node at None except start. Call Refresh before reading levels.
func Build(start string, nodes []string, connections []Connection, registry *requirement.Registry) (*Graph, error) {
	if registry == nil {
		registry = requirement.NewRegistry()
	}

	declared := make(map[string]int, len(nodes))
	for i, id := range nodes {
		if _, exists := declared[id]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateNode, id)
		}
		declared[id] = i
	}
	startDecl, ok := declared[start]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingStart, start)
	}

	// Dependency edges and inputs per declared index.
	deps := make([][]int, len(nodes)) // deps[to] = nodes read by to
	reads := make([][]state.Input, len(nodes))
	for _, c := range connections {
		from, ok := declared[c.From]
		if !ok {
			return nil, fmt.Errorf("%w: %s (connection %s -> %s)", ErrUnknownNode, c.From, c.From, c.To)
		}
		to, ok := declared[c.To]
		if !ok {
			return nil, fmt.Errorf("%w: %s (connection %s -> %s)", ErrUnknownNode, c.To, c.From, c.To)
		}
		if to == startDecl {
			return nil, fmt.Errorf("%w: %s -> %s", ErrStartInbound, c.From, c.To)
		}
		if c.Requirement == nil {
			return nil, fmt.Errorf("%w: %s -> %s", ErrNilRequirement, c.From, c.To)
		}
		deps[to] = append(deps[to], from)
		for _, in := range registry.Inputs(c.Requirement) {
			if in.Kind != state.KindNode {
				reads[to] = append(reads[to], in)
				continue
			}
			src, ok := declared[in.Name]
			if !ok {
				return nil, fmt.Errorf("%w: %s (reached from %s -> %s)", ErrUnknownNode, in.Name, c.From, c.To)
			}
			deps[to] = append(deps[to], src)
		}
	}

	order, err := topoSort(nodes, deps)
	if err != nil {
		return nil, err
	}

	g := &Graph{
		ids:         make([]string, len(nodes)),
		index:       make(map[string]int, len(nodes)),
		levels:      make([]access.Level, len(nodes)),
		inbound:     make([][]inbound, len(nodes)),
		dependents:  make([][]int, len(nodes)),
		subscribers: make(map[state.Input][]int),
	}
	topo := make([]int, len(nodes)) // declared index -> topological index
	for pos, decl := range order {
		topo[decl] = pos
		g.ids[pos] = nodes[decl]
		g.index[nodes[decl]] = pos
	}
	g.start = topo[startDecl]

	for _, c := range connections {
		to := g.index[c.To]
		g.inbound[to] = append(g.inbound[to], inbound{from: g.index[c.From], req: c.Requirement})
	}
	for decl := range nodes {
		to := topo[decl]
		seen := mapset.New[int]()
		for _, d := range deps[decl] {
			if seen.Has(d) {
				continue
			}
			seen.Put(d)
			g.dependents[topo[d]] = append(g.dependents[topo[d]], to)
		}
		subscribed := mapset.New[state.Input]()
		for _, in := range reads[decl] {
			if subscribed.Has(in) {
				continue
			}
			subscribed.Put(in)
			g.subscribers[in] = append(g.subscribers[in], to)
		}
	}

	g.Reset()
	return g, nil
}

// topoSort orders declared indices with Kahn's algorithm. Ties keep
// declaration order so that the result is deterministic.
func topoSort(nodes []string, deps [][]int) ([]int, error) {
	inDegree := make([]int, len(nodes))
	requiredBy := make([][]int, len(nodes))
	for to, ds := range deps {
		for _, from := range ds {
			inDegree[to]++
			requiredBy[from] = append(requiredBy[from], to)
		}
	}

	ready := heap.New(func(a, b int) bool { return a < b })
	for i, deg := range inDegree {
		if deg == 0 {
			ready.Push(i)
		}
	}

	order := make([]int, 0, len(nodes))
	for ready.Size() > 0 {
		curr, _ := ready.Pop()
		order = append(order, curr)
		for _, dep := range requiredBy[curr] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				ready.Push(dep)
			}
		}
	}

	if len(order) != len(nodes) {
		var stuck []string
		for i, deg := range inDegree {
			if deg > 0 {
				stuck = append(stuck, nodes[i])
			}
		}
		return nil, fmt.Errorf("%w: %v", ErrCycle, stuck)
	}
	return order, nil
}

// Start returns the ID of the start node.
func (g *Graph) Start() string { return g.ids[g.start] }

// Nodes returns node IDs in topological order.
func (g *Graph) Nodes() []string { return slices.Clone(g.ids) }

// Has reports whether a node exists.
func (g *Graph) Has(id string) bool {
	_, ok := g.index[id]
	return ok
}

// Level returns the level of a node. Unknown IDs are catalog errors.
func (g *Graph) Level(id string) access.Level {
	i, ok := g.index[id]
	if !ok {
		panic(fmt.Sprintf("graph: unknown node %q", id))
	}
	return g.levels[i]
}

// NodeLevel implements requirement.NodeView.
func (g *Graph) NodeLevel(id string) (access.Level, bool) {
	i, ok := g.index[id]
	if !ok {
		return access.None, false
	}
	return g.levels[i], true
}

// Levels returns a copy of every node level.
func (g *Graph) Levels() map[string]access.Level {
	out := make(map[string]access.Level, len(g.ids))
	for i, id := range g.ids {
		out[id] = g.levels[i]
	}
	return out
}

// Subscribers returns the nodes that read an input directly.
func (g *Graph) Subscribers(in state.Input) []string {
	var out []string
	for _, i := range g.subscribers[in] {
		out = append(out, g.ids[i])
	}
	return out
}

// Reset puts every node back to its initial level.
func (g *Graph) Reset() {
	for i := range g.levels {
		g.levels[i] = access.None
	}
	g.levels[g.start] = access.Normal
}

// Evaluated reports how many nodes the last Refresh or Propagate recomputed.
func (g *Graph) Evaluated() int { return g.evaluated }

// Refresh recomputes every node in topological order and returns the IDs
// whose level changed.
func (g *Graph) Refresh(ev *requirement.Evaluator) []string {
	ev.Reset()
	g.evaluated = 0
	var changed []string
	for i := range g.ids {
		if g.recompute(ev, i) {
			changed = append(changed, g.ids[i])
		}
	}
	return changed
}

// Propagate recomputes only the nodes that read the given inputs, plus the
// nodes downstream of any node whose level changed. Every dirty node is
// recomputed once, in topological order. It returns the changed IDs in that
// order.
func (g *Graph) Propagate(ev *requirement.Evaluator, inputs ...state.Input) []string {
	ev.Reset()
	g.evaluated = 0

	dirty := heap.New(func(a, b int) bool { return a < b })
	queued := mapset.New[int]()
	push := func(i int) {
		if !queued.Has(i) {
			queued.Put(i)
			dirty.Push(i)
		}
	}

	for _, in := range inputs {
		if in.Kind == state.KindNode {
			if i, ok := g.index[in.Name]; ok {
				for _, d := range g.dependents[i] {
					push(d)
				}
			}
			continue
		}
		for _, i := range g.subscribers[in] {
			push(i)
		}
	}

	var changed []string
	for dirty.Size() > 0 {
		i, _ := dirty.Pop()
		if !g.recompute(ev, i) {
			continue
		}
		changed = append(changed, g.ids[i])
		for _, d := range g.dependents[i] {
			push(d)
		}
	}
	return changed
}

func (g *Graph) recompute(ev *requirement.Evaluator, i int) bool {
	if i == g.start {
		return false
	}
	g.evaluated++

	level := access.None
	for _, in := range g.inbound[i] {
		src := g.levels[in.from]
		if src <= level {
			continue
		}
		level = access.Max(level, access.Min(src, ev.Eval(in.req)))
		if level == access.Normal {
			break
		}
	}

	if level == g.levels[i] {
		return false
	}
	g.levels[i] = level
	return true
}
