// Package catalog loads world definitions from YAML: items, settings,
// sequence breaks, complex requirements, the overworld graph, dungeons and
// locations. A loaded World is fully validated; everything it references
// exists.
package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/jwebster45206/tracker-engine/pkg/dungeon"
	"github.com/jwebster45206/tracker-engine/pkg/graph"
	"github.com/jwebster45206/tracker-engine/pkg/location"
	"github.com/jwebster45206/tracker-engine/pkg/requirement"
	"github.com/jwebster45206/tracker-engine/pkg/state"
)

var (
	ErrInvalidWorld   = errors.New("invalid world")
	ErrComplexCycle   = errors.New("complex requirements form a cycle")
	ErrUnknownRef     = errors.New("unknown reference")
	ErrDuplicateID    = errors.New("duplicate id")
	ErrInvalidID      = errors.New("invalid id")
	ErrInvalidSection = errors.New("invalid section")
)

var idPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// SectionDef describes one section of a location.
//
// Item and entrance sections read an overworld node through Requirement;
// item sections have Count slots. Dungeon, boss and prize sections read
// the named dungeon.
type SectionDef struct {
	ID          string
	Name        string
	Kind        location.Kind
	Node        string
	Dungeon     string
	Count       int
	Requirement requirement.Requirement
}

type LocationDef struct {
	ID       string
	Name     string
	Sections []SectionDef
}

// World is a validated catalog. It is immutable once loaded and may be
// shared by any number of engines.
type World struct {
	Name           string
	Start          string
	Items          []state.ItemSpec
	Settings       []state.SettingSpec
	SequenceBreaks []state.BreakSpec
	Registry       *requirement.Registry
	Nodes          []string
	Connections    []graph.Connection
	Dungeons       []*dungeon.Definition
	Locations      []LocationDef

	names map[string]string
}

// DisplayName returns the declared name of an item, setting, break,
// dungeon, location or section, falling back to the title-cased ID.
func (w *World) DisplayName(id string) string {
	if name, ok := w.names[id]; ok {
		return name
	}
	return titleCase(id)
}

// Dungeon looks up a dungeon definition.
func (w *World) Dungeon(id string) (*dungeon.Definition, bool) {
	for _, d := range w.Dungeons {
		if d.ID == id {
			return d, true
		}
	}
	return nil, false
}

func titleCase(id string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(id, "_", " "))
}

// LoadFile reads a world from a YAML file.
func LoadFile(path string) (*World, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read world file %s: %w", path, err)
	}
	w, err := Load(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return w, nil
}

// Load reads and validates a world. Unknown YAML fields are rejected.
func Load(r io.Reader) (*World, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f fileWorld
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWorld, err)
	}
	return build(&f)
}

// builder accumulates validation errors so that one load reports every
// problem at once.
type builder struct {
	f    *fileWorld
	errs []error

	items    map[string]int // id -> max
	settings map[string][]string
	breaks   map[string]bool
	nodes    map[string]bool
	complex  map[string]bool
	names    map[string]string
}

func (b *builder) fail(format string, args ...any) {
	b.errs = append(b.errs, fmt.Errorf(format, args...))
}

func (b *builder) checkID(what, id string) {
	if !idPattern.MatchString(id) {
		b.fail("%w: %s %q must be lowercase snake_case", ErrInvalidID, what, id)
	}
}

func (b *builder) name(id, declared string) {
	if declared != "" {
		b.names[id] = declared
	}
}

func build(f *fileWorld) (*World, error) {
	b := &builder{
		f:        f,
		items:    make(map[string]int),
		settings: make(map[string][]string),
		breaks:   make(map[string]bool),
		nodes:    make(map[string]bool),
		complex:  make(map[string]bool),
		names:    make(map[string]string),
	}
	w := &World{Name: f.Name, Start: f.Start, names: b.names}

	b.declareInputs(w)
	for _, n := range f.Nodes {
		b.checkID("node", n)
		if b.nodes[n] {
			b.fail("%w: node %s", ErrDuplicateID, n)
		}
		b.nodes[n] = true
	}
	if !b.nodes[f.Start] {
		b.fail("%w: start node %q", ErrUnknownRef, f.Start)
	}
	w.Nodes = slices.Clone(f.Nodes)

	w.Registry = b.complexes()
	w.Connections = b.connections()
	w.Dungeons = b.dungeons()
	w.Locations = b.locations(w)

	if len(b.errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidWorld, errors.Join(b.errs...))
	}

	// Build the graph once to reject cycles at load time.
	if _, err := graph.Build(w.Start, w.Nodes, w.Connections, w.Registry); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidWorld, err)
	}
	for _, d := range w.Dungeons {
		if _, err := dungeon.NewInstance(d, dungeon.Config{}); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidWorld, err)
		}
	}
	return w, nil
}

// declareInputs registers items, settings and breaks, including the items
// and settings every world gets for its dungeons and prizes.
func (b *builder) declareInputs(w *World) {
	addItem := func(spec state.ItemSpec, declared string) {
		b.checkID("item", spec.Name)
		if _, dup := b.items[spec.Name]; dup {
			b.fail("%w: item %s", ErrDuplicateID, spec.Name)
			return
		}
		if spec.Max < 1 || spec.Start < 0 || spec.Start > spec.Max {
			b.fail("item %s: start %d and max %d out of range", spec.Name, spec.Start, spec.Max)
		}
		b.items[spec.Name] = spec.Max
		b.name(spec.Name, declared)
		w.Items = append(w.Items, spec)
	}

	for _, it := range b.f.Items {
		addItem(state.ItemSpec{Name: it.ID, Max: it.Max, Start: it.Start}, it.Name)
	}

	prizeDungeons := 0
	for _, d := range b.f.Dungeons {
		if d.Prize {
			prizeDungeons++
		}
		if d.SmallKeys > 0 {
			addItem(state.ItemSpec{Name: dungeon.SmallKeyItem(d.ID), Max: d.SmallKeys}, "")
		}
		addItem(state.ItemSpec{Name: dungeon.BigKeyItem(d.ID), Max: 1}, "")
		addItem(state.ItemSpec{Name: dungeon.MapItem(d.ID), Max: 1}, "")
		addItem(state.ItemSpec{Name: dungeon.CompassItem(d.ID), Max: 1}, "")
	}
	for _, p := range requirement.PrizeItems {
		if _, declared := b.items[p]; !declared {
			addItem(state.ItemSpec{Name: p, Max: max(prizeDungeons, 1)}, "")
		}
	}

	for _, s := range b.f.Settings {
		b.checkID("setting", s.ID)
		if _, dup := b.settings[s.ID]; dup {
			b.fail("%w: setting %s", ErrDuplicateID, s.ID)
			continue
		}
		if !slices.Contains(s.Options, s.Default) {
			b.fail("setting %s: default %q not in %v", s.ID, s.Default, s.Options)
		}
		b.settings[s.ID] = s.Options
		b.name(s.ID, s.Name)
		w.Settings = append(w.Settings, state.SettingSpec{Name: s.ID, Options: s.Options, Default: s.Default})
	}
	for _, name := range dungeon.ConfigSettings {
		if _, declared := b.settings[name]; declared {
			continue
		}
		opts := []string{dungeon.Off, dungeon.On}
		b.settings[name] = opts
		w.Settings = append(w.Settings, state.SettingSpec{Name: name, Options: opts, Default: dungeon.Off})
	}

	for _, br := range b.f.SequenceBreaks {
		b.checkID("sequence break", br.ID)
		if b.breaks[br.ID] {
			b.fail("%w: sequence break %s", ErrDuplicateID, br.ID)
			continue
		}
		b.breaks[br.ID] = true
		b.name(br.ID, br.Name)
		w.SequenceBreaks = append(w.SequenceBreaks, state.BreakSpec{Name: br.ID, Default: br.Default})
	}
}

// complexes parses the complex requirements, orders them so that each one
// comes after everything it references, and registers them.
func (b *builder) complexes() *requirement.Registry {
	reg := requirement.NewRegistry()

	parsed := make(map[string]requirement.Requirement, len(b.f.Complex))
	var order []string
	for _, c := range b.f.Complex {
		b.checkID("complex", c.ID)
		if _, dup := parsed[c.ID]; dup {
			b.fail("%w: complex %s", ErrDuplicateID, c.ID)
			continue
		}
		if c.Requires.IsZero() {
			b.fail("complex %s: missing requires", c.ID)
			continue
		}
		req, err := c.Requires.Parse()
		if err != nil {
			b.fail("complex %s: %w", c.ID, err)
			continue
		}
		parsed[c.ID] = req
		order = append(order, c.ID)
		b.complex[c.ID] = true
	}

	for _, id := range order {
		b.checkExpr("complex "+id, parsed[id])
	}

	sorted, err := sortComplexes(order, parsed)
	if err != nil {
		b.errs = append(b.errs, err)
		return reg
	}
	for _, id := range sorted {
		if err := reg.Define(id, parsed[id]); err != nil {
			// Unknown references were reported by checkExpr.
			if !errors.Is(err, requirement.ErrUndefinedComplex) {
				b.errs = append(b.errs, err)
			}
			return requirement.NewRegistry()
		}
	}
	return reg
}

// sortComplexes orders complex definitions by their references with Kahn's
// algorithm, keeping file order among independent definitions.
func sortComplexes(order []string, parsed map[string]requirement.Requirement) ([]string, error) {
	inDegree := make(map[string]int, len(order))
	usedBy := make(map[string][]string, len(order))
	for _, id := range order {
		inDegree[id] += 0
		seen := make(map[string]bool)
		requirement.Walk(parsed[id], func(r requirement.Requirement) {
			c, ok := r.(requirement.Complex)
			if !ok || seen[c.Name] {
				return
			}
			seen[c.Name] = true
			if _, known := parsed[c.Name]; !known {
				return
			}
			inDegree[id]++
			usedBy[c.Name] = append(usedBy[c.Name], id)
		})
	}

	var queue, sorted []string
	for _, id := range order {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		sorted = append(sorted, curr)
		for _, dep := range usedBy[curr] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if len(sorted) != len(order) {
		var stuck []string
		for _, id := range order {
			if inDegree[id] > 0 {
				stuck = append(stuck, id)
			}
		}
		return nil, fmt.Errorf("%w: %v", ErrComplexCycle, stuck)
	}
	return sorted, nil
}

// checkExpr reports every dangling name in an expression. Reach may only
// name overworld nodes, also inside dungeons.
func (b *builder) checkExpr(where string, req requirement.Requirement) {
	requirement.Walk(req, func(r requirement.Requirement) {
		switch v := r.(type) {
		case requirement.Item:
			limit, ok := b.items[v.Name]
			switch {
			case !ok:
				b.fail("%s: %w: item %s", where, ErrUnknownRef, v.Name)
			case v.Count > limit:
				b.fail("%s: item %s count %d exceeds max %d", where, v.Name, v.Count, limit)
			}
		case requirement.Setting:
			opts, ok := b.settings[v.Name]
			switch {
			case !ok:
				b.fail("%s: %w: setting %s", where, ErrUnknownRef, v.Name)
			case !slices.Contains(opts, v.Value):
				b.fail("%s: setting %s has no option %q", where, v.Name, v.Value)
			}
		case requirement.SequenceBreak:
			if !b.breaks[v.Name] {
				b.fail("%s: %w: sequence break %s", where, ErrUnknownRef, v.Name)
			}
		case requirement.Complex:
			if !b.complex[v.Name] {
				b.fail("%s: %w: complex %s", where, ErrUnknownRef, v.Name)
			}
		case requirement.Reach:
			if !b.nodes[v.Node] {
				b.fail("%s: %w: node %s", where, ErrUnknownRef, v.Node)
			}
		}
	})
}

func (b *builder) parse(where string, e Expr) requirement.Requirement {
	req, err := e.Parse()
	if err != nil {
		b.fail("%s: %w", where, err)
		return requirement.Always
	}
	b.checkExpr(where, req)
	return req
}

func (b *builder) connections() []graph.Connection {
	out := make([]graph.Connection, 0, len(b.f.Connections))
	for _, c := range b.f.Connections {
		where := fmt.Sprintf("connection %s -> %s", c.From, c.To)
		if !b.nodes[c.From] {
			b.fail("%s: %w: node %s", where, ErrUnknownRef, c.From)
		}
		if !b.nodes[c.To] {
			b.fail("%s: %w: node %s", where, ErrUnknownRef, c.To)
		}
		if c.BigKey {
			b.fail("%s: big_key only applies inside dungeons", where)
		}
		out = append(out, graph.Connection{From: c.From, To: c.To, Requirement: b.parse(where, c.Requires)})
	}
	return out
}

func (b *builder) dungeons() []*dungeon.Definition {
	var out []*dungeon.Definition
	seen := make(map[string]bool)
	for _, fd := range b.f.Dungeons {
		b.checkID("dungeon", fd.ID)
		if seen[fd.ID] {
			b.fail("%w: dungeon %s", ErrDuplicateID, fd.ID)
			continue
		}
		seen[fd.ID] = true
		b.name(fd.ID, fd.Name)

		if len(fd.Entrances) == 0 {
			b.fail("dungeon %s: no entrances", fd.ID)
		}
		for _, e := range fd.Entrances {
			if !b.nodes[e] {
				b.fail("dungeon %s: %w: entrance node %s", fd.ID, ErrUnknownRef, e)
			}
		}
		if fd.SmallKeys < 0 {
			b.fail("dungeon %s: negative small_keys", fd.ID)
		}

		d := &dungeon.Definition{
			ID:        fd.ID,
			Name:      fd.Name,
			Entrances: slices.Clone(fd.Entrances),
			Entry:     fd.Entry,
			Nodes:     slices.Clone(fd.Nodes),
			Prize:     fd.Prize,
			SmallKeys: fd.SmallKeys,
		}
		for _, c := range fd.Connections {
			where := fmt.Sprintf("dungeon %s connection %s -> %s", fd.ID, c.From, c.To)
			d.Connections = append(d.Connections, dungeon.Connection{
				From: c.From, To: c.To, BigKey: c.BigKey,
				Requirement: b.parse(where, c.Requires),
			})
		}
		for _, door := range fd.Doors {
			d.Doors = append(d.Doors, dungeon.Door{
				ID: door.ID, From: door.From, To: door.To,
				Requirement: b.parse(fmt.Sprintf("dungeon %s door %s", fd.ID, door.ID), door.Requires),
			})
		}
		for _, p := range fd.Placements {
			var req requirement.Requirement
			if !p.Requires.IsZero() {
				req = b.parse(fmt.Sprintf("dungeon %s placement %s", fd.ID, p.ID), p.Requires)
			}
			d.Placements = append(d.Placements, dungeon.Placement{
				ID: p.ID, Node: p.Node, Kind: dungeon.PlacementKind(p.Kind), Key: p.Key, Requirement: req,
			})
		}
		if fd.Boss != nil {
			d.Boss = &dungeon.Boss{
				Node:        fd.Boss.Node,
				Requirement: b.parse(fmt.Sprintf("dungeon %s boss", fd.ID), fd.Boss.Requires),
			}
		} else if fd.Prize {
			b.fail("dungeon %s: a prize needs a boss", fd.ID)
		}

		if err := d.Validate(); err != nil {
			b.errs = append(b.errs, err)
		}
		out = append(out, d)
	}
	return out
}

func (b *builder) locations(w *World) []LocationDef {
	dungeons := make(map[string]*dungeon.Definition, len(w.Dungeons))
	for _, d := range w.Dungeons {
		dungeons[d.ID] = d
	}

	var out []LocationDef
	seen := make(map[string]bool)
	for _, fl := range b.f.Locations {
		b.checkID("location", fl.ID)
		if seen[fl.ID] {
			b.fail("%w: location %s", ErrDuplicateID, fl.ID)
			continue
		}
		seen[fl.ID] = true
		b.name(fl.ID, fl.Name)
		if len(fl.Sections) == 0 {
			b.fail("location %s: no sections", fl.ID)
		}

		loc := LocationDef{ID: fl.ID, Name: fl.Name}
		sectionIDs := make(map[string]bool)
		for _, fs := range fl.Sections {
			where := fmt.Sprintf("location %s section %s", fl.ID, fs.ID)
			b.checkID("section", fs.ID)
			if sectionIDs[fs.ID] {
				b.fail("%w: %s", ErrDuplicateID, where)
			}
			sectionIDs[fs.ID] = true
			b.name(fl.ID+"/"+fs.ID, fs.Name)

			kind, err := location.ParseKind(fs.Kind)
			if err != nil {
				b.fail("%s: %w", where, err)
				continue
			}
			sd := SectionDef{ID: fs.ID, Name: fs.Name, Kind: kind, Node: fs.Node, Dungeon: fs.Dungeon, Count: fs.Count}

			switch kind {
			case location.KindItem, location.KindEntrance:
				if !b.nodes[fs.Node] {
					b.fail("%s: %w: node %q", where, ErrUnknownRef, fs.Node)
				}
				if fs.Dungeon != "" {
					b.fail("%s: %w: %s sections read a node, not a dungeon", where, ErrInvalidSection, kind)
				}
				if kind == location.KindItem && sd.Count == 0 {
					sd.Count = 1
				}
				if kind == location.KindEntrance && sd.Count != 0 {
					b.fail("%s: %w: entrances have no count", where, ErrInvalidSection)
				}
				if sd.Count < 0 {
					b.fail("%s: %w: negative count", where, ErrInvalidSection)
				}
				sd.Requirement = b.parse(where, fs.Requires)

			case location.KindDungeon, location.KindBoss, location.KindPrize:
				d, ok := dungeons[fs.Dungeon]
				if !ok {
					b.fail("%s: %w: dungeon %q", where, ErrUnknownRef, fs.Dungeon)
					break
				}
				if fs.Node != "" || fs.Count != 0 || !fs.Requires.IsZero() {
					b.fail("%s: %w: %s sections only name a dungeon", where, ErrInvalidSection, kind)
				}
				if kind == location.KindBoss && d.Boss == nil {
					b.fail("%s: %w: dungeon %s has no boss", where, ErrInvalidSection, d.ID)
				}
				if kind == location.KindPrize && !d.Prize {
					b.fail("%s: %w: dungeon %s has no prize", where, ErrInvalidSection, d.ID)
				}
			}
			loc.Sections = append(loc.Sections, sd)
		}
		out = append(out, loc)
	}
	return out
}
