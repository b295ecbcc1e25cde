package transports

import (
	"fmt"
	"sort"
	"sync"

	"activ-subscriber/src/interfaces"
)

// The global registry map. Key is the transport name (e.g., "websocket"), value is the constructor function.
var (
	registry = make(map[string]interfaces.IConnectionConstructor)
	mu       sync.RWMutex
)

// Register is called by each transport's init() function to add itself to the map.
func Register(name string, constructor interfaces.IConnectionConstructor) error {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := registry[name]; exists {
		return fmt.Errorf("transport constructor already registered for name: %s", name)
	}
	registry[name] = constructor
	return nil
}

// GetConstructor is used by the session factory to retrieve the constructor.
func GetConstructor(name string) (interfaces.IConnectionConstructor, error) {
	mu.RLock()
	defer mu.RUnlock()
	constructor, exists := registry[name]
	if !exists {
		return nil, fmt.Errorf("unknown transport type: %s", name)
	}
	return constructor, nil
}

// Names lists the registered transports, sorted
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
