package location

import "github.com/jwebster45206/tracker-engine/pkg/access"

// Location is a player-facing place holding one or more sections. All of
// its values are derived from the sections.
type Location struct {
	ID       string
	Name     string
	Sections []*Section
}

// Level is Cleared once no collectible section has anything left. Otherwise
// it summarizes every available section. Entrance sections take part in the
// summary but never keep a location from being cleared.
func (l *Location) Level() access.Level {
	pending := false
	var levels []access.Level
	for _, s := range l.Sections {
		if s.Available() == 0 {
			continue
		}
		if s.Kind.Collectible() {
			pending = true
		}
		levels = append(levels, s.Level())
	}
	if !pending {
		return access.Cleared
	}
	return access.Summarize(levels)
}

// Accessible sums the reachable remaining slots of item-bearing sections.
func (l *Location) Accessible() int {
	n := 0
	for _, s := range l.Sections {
		if s.Kind.Counted() {
			n += s.Accessible()
		}
	}
	return n
}

// Available sums the uncollected slots of item-bearing sections.
func (l *Location) Available() int {
	n := 0
	for _, s := range l.Sections {
		if s.Kind.Counted() {
			n += s.Available()
		}
	}
	return n
}

// Total sums the slots of item-bearing sections.
func (l *Location) Total() int {
	n := 0
	for _, s := range l.Sections {
		if s.Kind.Counted() {
			n += s.Total()
		}
	}
	return n
}

// Section returns a section by ID.
func (l *Location) Section(id string) (*Section, bool) {
	for _, s := range l.Sections {
		if s.ID == id {
			return s, true
		}
	}
	return nil, false
}

// Summary is a read-only copy of a location for collaborators.
type Summary struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Level      access.Level     `json:"level"`
	Accessible int              `json:"accessible"`
	Available  int              `json:"available"`
	Total      int              `json:"total"`
	Sections   []SectionSummary `json:"sections"`
}

// SectionSummary is a read-only copy of a section.
type SectionSummary struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	Kind            Kind         `json:"kind"`
	Level           access.Level `json:"level"`
	Accessible      int          `json:"accessible"`
	Available       int          `json:"available"`
	Total           int          `json:"total"`
	Marking         string       `json:"marking,omitempty"`
	UserManipulated bool         `json:"user_manipulated,omitempty"`
	Prize           Prize        `json:"prize,omitempty"`
}

func (s *Section) Summary() SectionSummary {
	out := SectionSummary{
		ID:              s.ID,
		Name:            s.Name,
		Kind:            s.Kind,
		Level:           s.Level(),
		Accessible:      s.Accessible(),
		Available:       s.Available(),
		Total:           s.Total(),
		Marking:         s.marking,
		UserManipulated: s.userManipulated,
	}
	if s.Kind == KindPrize {
		out.Prize = s.prize
	}
	return out
}

func (l *Location) Summary() Summary {
	out := Summary{
		ID:         l.ID,
		Name:       l.Name,
		Level:      l.Level(),
		Accessible: l.Accessible(),
		Available:  l.Available(),
		Total:      l.Total(),
	}
	for _, s := range l.Sections {
		out.Sections = append(out.Sections, s.Summary())
	}
	return out
}
