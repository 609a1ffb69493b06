package model

import (
	"fmt"
	"sort"
	"sync"
)

// Factory creates a new model instance.
type Factory func() Model

// registryEntry caches the identity of a registered model so that
// identifier and capability queries need no instance.
type registryEntry struct {
	factory      Factory
	id           ModelIdentifier
	subscription bool
	publication  bool
}

// Registry is a closed set of named model types.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]registryEntry
}

// NewRegistry creates a registry containing the foundation models.
func NewRegistry() *Registry {
	r := &Registry{entries: make(map[string]registryEntry)}

	_ = r.Register("config-server", func() Model { return ConfigurationServer })
	_ = r.Register("config-client", func() Model { return ConfigurationClient })
	_ = r.Register("health-server", func() Model { return HealthServer })
	_ = r.Register("health-client", func() Model { return HealthClient })

	return r
}

// Register adds a named model type.
func (r *Registry) Register(name string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateModel, name)
	}

	m := factory()
	r.entries[name] = registryEntry{
		factory:      factory,
		id:           m.Identifier(),
		subscription: m.SupportsSubscription(),
		publication:  m.SupportsPublication(),
	}
	return nil
}

// New instantiates the named model.
func (r *Registry) New(name string) (Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, name)
	}
	return entry.factory(), nil
}

// Identifier returns the identifier of the named model.
func (r *Registry) Identifier(name string) (ModelIdentifier, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[name]
	if !ok {
		return ModelIdentifier{}, fmt.Errorf("%w: %s", ErrModelNotFound, name)
	}
	return entry.id, nil
}

// Capabilities reports whether the named model supports subscription and
// publication.
func (r *Registry) Capabilities(name string) (subscription, publication bool, err error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[name]
	if !ok {
		return false, false, fmt.Errorf("%w: %s", ErrModelNotFound, name)
	}
	return entry.subscription, entry.publication, nil
}

// Lookup returns the first name, in sorted order, registered with the given identifier.
func (r *Registry) Lookup(id ModelIdentifier) (string, bool) {
	for _, name := range r.Names() {
		r.mu.RLock()
		entry := r.entries[name]
		r.mu.RUnlock()

		if entry.id == id {
			return name, true
		}
	}
	return "", false
}

// Names returns the registered model names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
