package provider

import (
	"fmt"
	"sync"
)

// Factory builds a provider from a configuration map.
type Factory func(config map[string]any) (Provider, error)

var (
	factoryMu sync.RWMutex
	factories = make(map[string]Factory)
)

// RegisterFactory registers a provider factory under a name. Providers
// register themselves from init so the set is configuration-driven.
func RegisterFactory(name string, f Factory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	factories[name] = f
}

// Create builds a provider by factory name.
func Create(name string, config map[string]any) (Provider, error) {
	factoryMu.RLock()
	f, ok := factories[name]
	factoryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("provider %q not registered", name)
	}
	return f(config)
}

// Has reports whether a factory is registered.
func Has(name string) bool {
	factoryMu.RLock()
	defer factoryMu.RUnlock()
	_, ok := factories[name]
	return ok
}
