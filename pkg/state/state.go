// Package state holds the per-session inputs of the tracker: item counts,
// settings and sequence-break toggles. It replaces process-wide singletons
// with one explicit value owned by an engine instance.
package state

import (
	"errors"
	"fmt"
	"slices"
)

var (
	ErrUnknownItem          = errors.New("unknown item")
	ErrUnknownSetting       = errors.New("unknown setting")
	ErrUnknownSequenceBreak = errors.New("unknown sequence break")
	ErrOutOfRange           = errors.New("item count out of range")
	ErrInvalidValue         = errors.New("invalid setting value")
	ErrDuplicate            = errors.New("duplicate definition")
)

// ItemSpec declares a trackable item. Counts range over 0..Max.
type ItemSpec struct {
	Name  string
	Max   int
	Start int
}

// SettingSpec declares a named setting and its closed option list.
type SettingSpec struct {
	Name    string
	Options []string
	Default string
}

// BreakSpec declares a toggleable sequence break.
type BreakSpec struct {
	Name    string
	Default bool
}

type item struct {
	spec  ItemSpec
	count int
}

type setting struct {
	spec  SettingSpec
	value string
}

type seqBreak struct {
	spec    BreakSpec
	enabled bool
}

// State is not safe for concurrent use; callers serialize access through
// the engine session.
type State struct {
	items    map[string]*item
	settings map[string]*setting
	breaks   map[string]*seqBreak

	itemOrder    []string
	settingOrder []string
	breakOrder   []string
}

// New validates the declarations and returns a State at its start values.
func New(items []ItemSpec, settings []SettingSpec, breaks []BreakSpec) (*State, error) {
	s := &State{
		items:    make(map[string]*item, len(items)),
		settings: make(map[string]*setting, len(settings)),
		breaks:   make(map[string]*seqBreak, len(breaks)),
	}

	for _, spec := range items {
		if _, exists := s.items[spec.Name]; exists {
			return nil, fmt.Errorf("%w: item %s", ErrDuplicate, spec.Name)
		}
		if spec.Max < 1 || spec.Start < 0 || spec.Start > spec.Max {
			return nil, fmt.Errorf("%w: item %s start %d max %d", ErrOutOfRange, spec.Name, spec.Start, spec.Max)
		}
		s.items[spec.Name] = &item{spec: spec, count: spec.Start}
		s.itemOrder = append(s.itemOrder, spec.Name)
	}

	for _, spec := range settings {
		if _, exists := s.settings[spec.Name]; exists {
			return nil, fmt.Errorf("%w: setting %s", ErrDuplicate, spec.Name)
		}
		if !slices.Contains(spec.Options, spec.Default) {
			return nil, fmt.Errorf("%w: setting %s default %q not in %v", ErrInvalidValue, spec.Name, spec.Default, spec.Options)
		}
		s.settings[spec.Name] = &setting{spec: spec, value: spec.Default}
		s.settingOrder = append(s.settingOrder, spec.Name)
	}

	for _, spec := range breaks {
		if _, exists := s.breaks[spec.Name]; exists {
			return nil, fmt.Errorf("%w: sequence break %s", ErrDuplicate, spec.Name)
		}
		s.breaks[spec.Name] = &seqBreak{spec: spec, enabled: spec.Default}
		s.breakOrder = append(s.breakOrder, spec.Name)
	}

	return s, nil
}

// ItemCount returns the current count of an item.
func (s *State) ItemCount(name string) (int, bool) {
	it, ok := s.items[name]
	if !ok {
		return 0, false
	}
	return it.count, true
}

// ItemMax returns the maximum count of an item.
func (s *State) ItemMax(name string) (int, bool) {
	it, ok := s.items[name]
	if !ok {
		return 0, false
	}
	return it.spec.Max, true
}

// Setting returns the current value of a setting.
func (s *State) Setting(name string) (string, bool) {
	st, ok := s.settings[name]
	if !ok {
		return "", false
	}
	return st.value, true
}

// SettingOptions returns the allowed values of a setting.
func (s *State) SettingOptions(name string) ([]string, bool) {
	st, ok := s.settings[name]
	if !ok {
		return nil, false
	}
	return slices.Clone(st.spec.Options), true
}

// SequenceBreak reports whether a sequence break is enabled.
func (s *State) SequenceBreak(name string) (bool, bool) {
	b, ok := s.breaks[name]
	if !ok {
		return false, false
	}
	return b.enabled, true
}

// SetItem sets an item count. It reports whether the count changed.
func (s *State) SetItem(name string, count int) (bool, error) {
	it, ok := s.items[name]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownItem, name)
	}
	if count < 0 || count > it.spec.Max {
		return false, fmt.Errorf("%w: %s=%d (max %d)", ErrOutOfRange, name, count, it.spec.Max)
	}
	if it.count == count {
		return false, nil
	}
	it.count = count
	return true, nil
}

// CycleItem moves an item count by delta, wrapping around 0..Max, and
// returns the new count.
func (s *State) CycleItem(name string, delta int) (int, error) {
	it, ok := s.items[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownItem, name)
	}
	span := it.spec.Max + 1
	it.count = ((it.count+delta)%span + span) % span
	return it.count, nil
}

// SetSetting changes a setting value. It reports whether the value changed.
func (s *State) SetSetting(name, value string) (bool, error) {
	st, ok := s.settings[name]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownSetting, name)
	}
	if !slices.Contains(st.spec.Options, value) {
		return false, fmt.Errorf("%w: %s=%q (options %v)", ErrInvalidValue, name, value, st.spec.Options)
	}
	if st.value == value {
		return false, nil
	}
	st.value = value
	return true, nil
}

// SetSequenceBreak enables or disables a sequence break.
func (s *State) SetSequenceBreak(name string, enabled bool) (bool, error) {
	b, ok := s.breaks[name]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownSequenceBreak, name)
	}
	if b.enabled == enabled {
		return false, nil
	}
	b.enabled = enabled
	return true, nil
}

// Reset restores every input to its declared start value and returns the
// inputs that actually changed.
func (s *State) Reset() []Input {
	var changed []Input
	for _, name := range s.itemOrder {
		it := s.items[name]
		if it.count != it.spec.Start {
			it.count = it.spec.Start
			changed = append(changed, ItemInput(name))
		}
	}
	for _, name := range s.settingOrder {
		st := s.settings[name]
		if st.value != st.spec.Default {
			st.value = st.spec.Default
			changed = append(changed, SettingInput(name))
		}
	}
	for _, name := range s.breakOrder {
		b := s.breaks[name]
		if b.enabled != b.spec.Default {
			b.enabled = b.spec.Default
			changed = append(changed, BreakInput(name))
		}
	}
	return changed
}

// ItemNames returns item names in declaration order.
func (s *State) ItemNames() []string { return slices.Clone(s.itemOrder) }

// SettingNames returns setting names in declaration order.
func (s *State) SettingNames() []string { return slices.Clone(s.settingOrder) }

// SequenceBreakNames returns sequence break names in declaration order.
func (s *State) SequenceBreakNames() []string { return slices.Clone(s.breakOrder) }

// Items returns a copy of every item count.
func (s *State) Items() map[string]int {
	out := make(map[string]int, len(s.items))
	for name, it := range s.items {
		out[name] = it.count
	}
	return out
}

// Settings returns a copy of every setting value.
func (s *State) Settings() map[string]string {
	out := make(map[string]string, len(s.settings))
	for name, st := range s.settings {
		out[name] = st.value
	}
	return out
}

// SequenceBreaks returns a copy of every sequence break toggle.
func (s *State) SequenceBreaks() map[string]bool {
	out := make(map[string]bool, len(s.breaks))
	for name, b := range s.breaks {
		out[name] = b.enabled
	}
	return out
}
