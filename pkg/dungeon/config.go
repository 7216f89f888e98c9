package dungeon

import "github.com/jwebster45206/tracker-engine/pkg/requirement"

// Setting names that make up a dungeon Config. A setting counts as enabled
// when its value is "on".
const (
	SettingSmallKeyShuffle   = "small_key_shuffle"
	SettingBigKeyShuffle     = "big_key_shuffle"
	SettingMapCompassShuffle = "map_compass_shuffle"
	SettingKeyDropShuffle    = "key_drop_shuffle"

	On  = "on"
	Off = "off"
)

// ConfigSettings lists the settings a Config is derived from.
var ConfigSettings = []string{
	SettingSmallKeyShuffle,
	SettingBigKeyShuffle,
	SettingMapCompassShuffle,
	SettingKeyDropShuffle,
}

// Config is the item-placement configuration that shapes an instance.
// Changing it requires a new instance.
type Config struct {
	SmallKeyShuffle   bool `json:"small_key_shuffle"`
	BigKeyShuffle     bool `json:"big_key_shuffle"`
	MapCompassShuffle bool `json:"map_compass_shuffle"`
	KeyDropShuffle    bool `json:"key_drop_shuffle"`
}

// ConfigFromSettings reads a Config. Undeclared settings count as off.
func ConfigFromSettings(view requirement.StateView) Config {
	on := func(name string) bool {
		v, ok := view.Setting(name)
		return ok && v == On
	}
	return Config{
		SmallKeyShuffle:   on(SettingSmallKeyShuffle),
		BigKeyShuffle:     on(SettingBigKeyShuffle),
		MapCompassShuffle: on(SettingMapCompassShuffle),
		KeyDropShuffle:    on(SettingKeyDropShuffle),
	}
}

// counts reports whether a placement is an item the player is looking for
// under this config, as opposed to fixed dungeon equipment.
func (c Config) counts(p Placement) bool {
	switch p.Kind {
	case Chest:
		return !p.Key || c.SmallKeyShuffle
	case KeyDrop:
		return c.KeyDropShuffle && c.SmallKeyShuffle
	case BigKey:
		return c.BigKeyShuffle
	case Map, Compass:
		return c.MapCompassShuffle
	}
	return false
}

// holdsFixedKey reports whether a placement contributes to the vanilla key
// budget.
func (c Config) holdsFixedKey(p Placement) bool {
	if c.SmallKeyShuffle {
		return false
	}
	return p.Key || p.Kind == KeyDrop
}
