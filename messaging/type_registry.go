package messaging

import (
	"fmt"
	"sort"
	"sync"

	"github.com/scopehal/halbus/contracts"
)

// builtinTypes is the set of message types known at startup.
var builtinTypes = []string{
	contracts.TypeAddToUI,
	contracts.TypeCloseEvent,
	contracts.TypeConfigure1,
	contracts.TypeConfigure2,
	contracts.TypeCurrentParameters,
	contracts.TypeModule,
	contracts.TypeNewDirectory,
	contracts.TypeNewParametersFile,
	contracts.TypeNewShuttersFile,
	contracts.TypeStart,
	contracts.TypeSync,
}

// TypeRegistry tracks the set of recognized message type names. The set only
// grows; there is no removal. It is a guard against typos in type strings,
// not a type system.
type TypeRegistry struct {
	mu    sync.RWMutex
	names map[string]struct{}
}

// NewTypeRegistry creates a registry seeded with the built-in types.
func NewTypeRegistry() *TypeRegistry {
	r := &TypeRegistry{
		names: make(map[string]struct{}, len(builtinTypes)),
	}
	for _, name := range builtinTypes {
		r.names[name] = struct{}{}
	}
	return r
}

// Register adds a type name to the registry. Registering an existing name
// fails with ErrDuplicateMessageType.
func (r *TypeRegistry) Register(name string) error {
	if name == "" {
		return fmt.Errorf("type name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.names[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateMessageType, name)
	}

	r.names[name] = struct{}{}
	return nil
}

// Ensure adds a type name to the registry, silently accepting one that is
// already present.
func (r *TypeRegistry) Ensure(name string) {
	if name == "" {
		return
	}

	r.mu.Lock()
	r.names[name] = struct{}{}
	r.mu.Unlock()
}

// IsRegistered reports whether a type name is in the registry.
func (r *TypeRegistry) IsRegistered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.names[name]
	return exists
}

// RegisteredTypes returns all registered type names, sorted.
func (r *TypeRegistry) RegisteredTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.names))
	for name := range r.names {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Global type registry shared by the process.
var globalRegistry = NewTypeRegistry()

// Register adds a type name to the global registry. Modules should call this
// at initialization to add the types they send.
func Register(name string) error {
	return globalRegistry.Register(name)
}

// Ensure adds a type name to the global registry, silently accepting one
// that is already present.
func Ensure(name string) {
	globalRegistry.Ensure(name)
}

// IsRegistered reports whether a type name is in the global registry.
func IsRegistered(name string) bool {
	return globalRegistry.IsRegistered(name)
}

// DefaultTypeRegistry returns the global type registry.
func DefaultTypeRegistry() *TypeRegistry {
	return globalRegistry
}
