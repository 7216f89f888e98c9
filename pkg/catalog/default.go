package catalog

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"
)

//go:embed worlds/*.yaml
var builtin embed.FS

// DefaultWorld is the name of the world used when none is configured.
const DefaultWorld = "alttp_lite"

var (
	defaultOnce  sync.Once
	defaultWorld *World
	defaultErr   error
)

// Default returns the embedded default world. It is loaded once.
func Default() (*World, error) {
	defaultOnce.Do(func() {
		defaultWorld, defaultErr = Builtin(DefaultWorld)
	})
	return defaultWorld, defaultErr
}

// Builtin loads an embedded world by name.
func Builtin(name string) (*World, error) {
	data, err := builtin.ReadFile(path.Join("worlds", name+".yaml"))
	if err != nil {
		return nil, fmt.Errorf("unknown builtin world %q: %w", name, err)
	}
	return Load(bytes.NewReader(data))
}

// BuiltinNames lists the embedded worlds.
func BuiltinNames() []string {
	entries, err := fs.ReadDir(builtin, "worlds")
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	return names
}

// Resolve loads a world from a file path, or from the embedded worlds when
// ref is empty or names one of them.
func Resolve(ref string) (*World, error) {
	switch {
	case ref == "":
		return Default()
	case !strings.ContainsAny(ref, "/.\\"):
		return Builtin(ref)
	default:
		return LoadFile(ref)
	}
}
