package requirement

import (
	"fmt"

	"github.com/jwebster45206/tracker-engine/pkg/access"
)

// StateView is the read side of the tracker state that requirements need.
// It keeps this package free of a dependency on how state is stored.
type StateView interface {
	ItemCount(name string) (int, bool)
	Setting(name string) (string, bool)
	SequenceBreak(name string) (bool, bool)
}

// NodeView exposes computed node accessibility to Reach requirements.
type NodeView interface {
	NodeLevel(id string) (access.Level, bool)
}

// Evaluator evaluates requirements against one state snapshot.
//
// Complex values are cached for the duration of a pass; call Reset before
// evaluating against changed state. Complexes that read node levels are never
// cached because node levels move during a pass.
type Evaluator struct {
	registry *Registry
	state    StateView
	nodes    NodeView
	cache    map[string]access.Level
	hits     int
}

// NewEvaluator returns an evaluator. nodes may be nil when no requirement
// uses Reach.
func NewEvaluator(registry *Registry, st StateView, nodes NodeView) *Evaluator {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Evaluator{
		registry: registry,
		state:    st,
		nodes:    nodes,
		cache:    make(map[string]access.Level),
	}
}

// Registry returns the complex registry backing the evaluator.
func (e *Evaluator) Registry() *Registry { return e.registry }

// SetNodes replaces the node view.
func (e *Evaluator) SetNodes(nodes NodeView) { e.nodes = nodes }

// Reset drops cached complex values and starts a new pass.
func (e *Evaluator) Reset() {
	clear(e.cache)
	e.hits = 0
}

// CacheHits reports how many complex lookups were served from the cache in
// the current pass.
func (e *Evaluator) CacheHits() int { return e.hits }

// Eval evaluates a requirement. Unknown names are catalog errors and panic.
func (e *Evaluator) Eval(req Requirement) access.Level {
	switch v := req.(type) {
	case Static:
		return v.Level

	case Setting:
		value, ok := e.state.Setting(v.Name)
		if !ok {
			panic(fmt.Sprintf("requirement: unknown setting %q", v.Name))
		}
		if value == v.Value {
			return access.Normal
		}
		return access.None

	case Item:
		count := e.itemCount(v.Name)
		if v.Exact {
			if count == v.Count {
				return access.Normal
			}
			return access.None
		}
		if count >= v.Count {
			return access.Normal
		}
		return access.None

	case Prize:
		total := 0
		for _, name := range prizeItems(v.Kind) {
			total += e.itemCount(name)
		}
		if total >= v.Count {
			return access.Normal
		}
		return access.None

	case SequenceBreak:
		enabled, ok := e.state.SequenceBreak(v.Name)
		if !ok {
			panic(fmt.Sprintf("requirement: unknown sequence break %q", v.Name))
		}
		if enabled {
			return access.SequenceBreak
		}
		return access.None

	case All:
		out := access.Normal
		for _, c := range v.Children {
			out = access.Min(out, e.Eval(c))
			if out == access.None {
				break
			}
		}
		return out

	case Any:
		out := access.None
		for _, c := range v.Children {
			out = access.Max(out, e.Eval(c))
			if out == access.Normal {
				break
			}
		}
		return out

	case Complex:
		return e.evalComplex(v.Name)

	case Reach:
		if e.nodes == nil {
			panic(fmt.Sprintf("requirement: reach %q evaluated without a node view", v.Node))
		}
		level, ok := e.nodes.NodeLevel(v.Node)
		if !ok {
			panic(fmt.Sprintf("requirement: unknown node %q", v.Node))
		}
		return level

	default:
		panic(fmt.Sprintf("requirement: unknown variant %T", req))
	}
}

func (e *Evaluator) itemCount(name string) int {
	count, ok := e.state.ItemCount(name)
	if !ok {
		panic(fmt.Sprintf("requirement: unknown item %q", name))
	}
	return count
}

func (e *Evaluator) evalComplex(name string) access.Level {
	def, ok := e.registry.defs[name]
	if !ok {
		panic(fmt.Sprintf("requirement: %v: %s", ErrUndefinedComplex, name))
	}
	if def.readsNodes {
		return e.Eval(def.req)
	}
	if level, cached := e.cache[name]; cached {
		e.hits++
		return level
	}
	level := e.Eval(def.req)
	e.cache[name] = level
	return level
}
