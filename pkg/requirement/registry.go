package requirement

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/zyedidia/generic/mapset"

	"github.com/jwebster45206/tracker-engine/pkg/state"
)

var (
	// ErrUndefinedComplex is returned when a definition references a complex
	// requirement that has not been registered yet. Registering in dependency
	// order is what keeps the complex definitions acyclic.
	ErrUndefinedComplex = errors.New("undefined complex requirement")
	ErrDuplicateComplex = errors.New("duplicate complex requirement")
	ErrEmptyName        = errors.New("complex requirement name must not be empty")
)

type complexDef struct {
	req        Requirement
	inputs     []state.Input
	readsNodes bool
}

// Registry holds the named complex requirements of one world.
type Registry struct {
	defs  map[string]*complexDef
	order []string
}

func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*complexDef)}
}

// Define registers a complex requirement. Every Complex it references must
// already be defined.
func (r *Registry) Define(name string, req Requirement) error {
	if name == "" {
		return ErrEmptyName
	}
	if _, exists := r.defs[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateComplex, name)
	}
	if req == nil {
		return fmt.Errorf("complex requirement %s: nil expression", name)
	}

	var missing []string
	walk(req, func(n Requirement) {
		if c, ok := n.(Complex); ok {
			if _, defined := r.defs[c.Name]; !defined {
				missing = append(missing, c.Name)
			}
		}
	})
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s references %v", ErrUndefinedComplex, name, missing)
	}

	inputs := r.Inputs(req)
	def := &complexDef{req: req, inputs: inputs}
	for _, in := range inputs {
		if in.Kind == state.KindNode {
			def.readsNodes = true
			break
		}
	}
	r.defs[name] = def
	r.order = append(r.order, name)
	return nil
}

// Lookup returns a complex requirement by name.
func (r *Registry) Lookup(name string) (Requirement, bool) {
	def, ok := r.defs[name]
	if !ok {
		return nil, false
	}
	return def.req, true
}

// Names returns the complex names in definition order.
func (r *Registry) Names() []string {
	return slices.Clone(r.order)
}

// Inputs returns every state input and node a requirement reads, following
// complex references. The result is sorted and free of duplicates.
func (r *Registry) Inputs(req Requirement) []state.Input {
	set := mapset.New[state.Input]()
	r.collect(req, &set)

	out := make([]state.Input, 0, set.Size())
	set.Each(func(in state.Input) {
		out = append(out, in)
	})
	slices.SortFunc(out, func(a, b state.Input) int {
		if c := cmp.Compare(a.Kind, b.Kind); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return out
}

func (r *Registry) collect(req Requirement, set *mapset.Set[state.Input]) {
	switch v := req.(type) {
	case Static:
	case Setting:
		set.Put(state.SettingInput(v.Name))
	case Item:
		set.Put(state.ItemInput(v.Name))
	case Prize:
		for _, name := range prizeItems(v.Kind) {
			set.Put(state.ItemInput(name))
		}
	case SequenceBreak:
		set.Put(state.BreakInput(v.Name))
	case All:
		for _, c := range v.Children {
			r.collect(c, set)
		}
	case Any:
		for _, c := range v.Children {
			r.collect(c, set)
		}
	case Complex:
		def, ok := r.defs[v.Name]
		if !ok {
			panic(fmt.Sprintf("requirement: %v: %s", ErrUndefinedComplex, v.Name))
		}
		for _, in := range def.inputs {
			set.Put(in)
		}
	case Reach:
		set.Put(state.NodeInput(v.Node))
	default:
		panic(fmt.Sprintf("requirement: unknown variant %T", req))
	}
}

// walk visits every node of an expression without following complex references.
func walk(req Requirement, visit func(Requirement)) {
	visit(req)
	switch v := req.(type) {
	case All:
		for _, c := range v.Children {
			walk(c, visit)
		}
	case Any:
		for _, c := range v.Children {
			walk(c, visit)
		}
	}
}

// Walk visits every node of an expression, without following complex
// references. Catalog validation uses it to check names.
func Walk(req Requirement, visit func(Requirement)) {
	walk(req, visit)
}

func prizeItems(kind PrizeKind) []string {
	switch kind {
	case Crystals:
		return []string{PrizeCrystal, PrizeRedCrystal}
	case Pendants:
		return []string{PrizePendant, PrizeGreenPendant}
	default:
		panic(fmt.Sprintf("requirement: unknown prize kind %d", kind))
	}
}
