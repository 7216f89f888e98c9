// Package autotrack reads item state out of a running ALttP game and turns
// it into tracker mutations.
package autotrack

import (
	"fmt"

	"github.com/jwebster45206/tracker-engine/pkg/catalog"
)

// Inventory block in save RAM, as mirrored into WRAM bank $7E.
const (
	InventoryBase uint32 = 0x7EF340
	InventorySize        = 0x1C
)

// ItemRule decodes one inventory byte into the count of a tracker item.
type ItemRule struct {
	Item   string
	Offset uint32 // from InventoryBase
	Decode func(b byte) int
}

func flag(b byte) int {
	if b > 0 {
		return 1
	}
	return 0
}

func raw(b byte) int { return int(b) }

func atLeast(min byte) func(byte) int {
	return func(b byte) int {
		if b >= min {
			return 1
		}
		return 0
	}
}

// ALttPItems maps the vanilla inventory layout onto the built-in item IDs.
var ALttPItems = []ItemRule{
	{"bow", 0x00, func(b byte) int {
		switch {
		case b >= 3:
			return 2 // silver arrows
		case b > 0:
			return 1
		}
		return 0
	}},
	{"boomerang", 0x01, raw},
	{"hookshot", 0x02, flag},
	{"bombs", 0x03, flag},
	{"fire_rod", 0x05, flag},
	{"ice_rod", 0x06, flag},
	{"lamp", 0x0A, flag},
	{"hammer", 0x0B, flag},
	{"shovel", 0x0C, func(b byte) int {
		if b == 1 {
			return 1
		}
		return 0
	}},
	{"flute", 0x0C, atLeast(2)},
	{"net", 0x0D, flag},
	{"book", 0x0E, flag},
	{"somaria", 0x10, flag},
	{"byrna", 0x11, flag},
	{"cape", 0x12, flag},
	{"mirror", 0x13, atLeast(2)}, // 1 is the mirror scroll
	{"gloves", 0x14, raw},
	{"boots", 0x15, flag},
	{"flippers", 0x16, flag},
	{"moon_pearl", 0x17, flag},
	{"sword", 0x19, func(b byte) int {
		if b == 0xFF {
			return 0
		}
		return int(b)
	}},
	{"shield", 0x1A, raw},
	{"armor", 0x1B, raw},
}

// Decode turns an inventory block into item counts. Counts are clamped to
// [0, max] when limits is non-nil and names an item.
func Decode(rules []ItemRule, block []byte, limits map[string]int) (map[string]int, error) {
	out := make(map[string]int, len(rules))
	for _, r := range rules {
		if int(r.Offset) >= len(block) {
			return nil, fmt.Errorf("inventory block too short for %s: %d bytes", r.Item, len(block))
		}
		n := r.Decode(block[r.Offset])
		if limit, ok := limits[r.Item]; ok && n > limit {
			n = limit
		}
		out[r.Item] = n
	}
	return out, nil
}

// ForWorld keeps the rules whose item the world declares and returns the
// item limits to clamp against.
func ForWorld(rules []ItemRule, w *catalog.World) ([]ItemRule, map[string]int) {
	limits := make(map[string]int, len(w.Items))
	for _, it := range w.Items {
		limits[it.Name] = it.Max
	}
	var kept []ItemRule
	for _, r := range rules {
		if _, ok := limits[r.Item]; ok {
			kept = append(kept, r)
		}
	}
	return kept, limits
}
