// Package snapshot defines the in-memory shape an engine exports for an
// external persister and accepts back on restore.
package snapshot

import (
	"errors"
	"fmt"
	"strings"
)

// Version is bumped whenever the shape changes incompatibly.
const Version = 1

// ErrInvalid is wrapped by every structural or semantic snapshot error.
var ErrInvalid = errors.New("invalid snapshot")

// Snapshot is everything needed to rebuild an engine's state without
// replaying history. Computed values are never stored.
type Snapshot struct {
	Version        int                     `json:"version"`
	World          string                  `json:"world"`
	Items          map[string]int          `json:"items"`
	Settings       map[string]string       `json:"settings"`
	SequenceBreaks map[string]bool         `json:"sequence_breaks"`
	Dungeons       map[string]DungeonState `json:"dungeons"`
	Sections       map[string]SectionState `json:"sections"` // keyed by "location/section"
}

// DungeonState holds the per-dungeon inputs. Doors lists manual door
// overrides; doors the solver decides are not stored.
type DungeonState struct {
	SmallKeys int             `json:"small_keys"`
	Doors     map[string]bool `json:"doors,omitempty"`
}

// SectionState holds the player state of one section.
type SectionState struct {
	Available       int    `json:"available"`
	UserManipulated bool   `json:"user_manipulated,omitempty"`
	Marking         string `json:"marking,omitempty"`
	Prize           string `json:"prize,omitempty"`
}

// SectionKey builds the Sections map key.
func SectionKey(locationID, sectionID string) string {
	return locationID + "/" + sectionID
}

// SplitSectionKey is the inverse of SectionKey.
func SplitSectionKey(key string) (locationID, sectionID string, ok bool) {
	locationID, sectionID, ok = strings.Cut(key, "/")
	if !ok || locationID == "" || sectionID == "" {
		return "", "", false
	}
	return locationID, sectionID, true
}

// Validate checks the structure only. Whether the names exist in a world
// is checked by the engine on restore.
func (s *Snapshot) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: nil snapshot", ErrInvalid)
	}
	var errs []error
	if s.Version != Version {
		errs = append(errs, fmt.Errorf("unsupported version %d (want %d)", s.Version, Version))
	}
	if s.Items == nil {
		errs = append(errs, errors.New("missing items"))
	}
	if s.Settings == nil {
		errs = append(errs, errors.New("missing settings"))
	}
	for name, n := range s.Items {
		if n < 0 {
			errs = append(errs, fmt.Errorf("item %s: negative count %d", name, n))
		}
	}
	for id, d := range s.Dungeons {
		if d.SmallKeys < 0 {
			errs = append(errs, fmt.Errorf("dungeon %s: negative small keys %d", id, d.SmallKeys))
		}
	}
	for key, sec := range s.Sections {
		if _, _, ok := SplitSectionKey(key); !ok {
			errs = append(errs, fmt.Errorf("section key %q is not location/section", key))
		}
		if sec.Available < 0 {
			errs = append(errs, fmt.Errorf("section %s: negative available %d", key, sec.Available))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}
