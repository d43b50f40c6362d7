package engine

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Factory builds a ready-to-use strategy. Construction may fail, for example
// on an invalid selector override.
type Factory func() (Strategy, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register binds a strategy factory to an identifier. Identifiers are
// case-insensitive; registering the same identifier twice replaces the
// earlier factory. Registration happens once at startup.
func Register(identifier string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strings.ToLower(identifier)] = f
}

// New resolves an identifier and builds the strategy.
func New(identifier string) (Strategy, error) {
	registryMu.RLock()
	f, ok := registry[strings.ToLower(identifier)]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (known: %s)", identifier, strings.Join(Names(), ", "))
	}
	return f()
}

// Names returns the registered identifiers, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
