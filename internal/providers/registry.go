// Package providers wires chat provider adapters into a registry and exposes
// the gateway used by the HTTP layer.
package providers

import (
	"fmt"
	"strings"
	"sync"

	"chatbridge/internal/core"
)

// Registry maps provider names to adapters in registration order.
// Names are case-insensitive. It is filled once at startup and read-only afterwards.
type Registry struct {
	mu        sync.RWMutex
	order     []string
	providers map[string]core.Provider
	primary   string
}

// NewRegistry creates an empty registry whose default provider is primary.
func NewRegistry(primary string) *Registry {
	return &Registry{
		providers: make(map[string]core.Provider),
		primary:   normalize(primary),
	}
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Register adds p under p.Name(). Registering a name twice is an error.
func (r *Registry) Register(p core.Provider) error {
	name := normalize(p.Name())
	if name == "" {
		return fmt.Errorf("provider name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("provider %q already registered", name)
	}
	r.providers[name] = p
	r.order = append(r.order, name)
	return nil
}

// Resolve returns the adapter for name, or the primary adapter when name is
// empty. A miss is an ErrorTypeUnavailable error naming the requested provider.
func (r *Registry) Resolve(name string) (core.Provider, error) {
	key := normalize(name)

	r.mu.RLock()
	defer r.mu.RUnlock()
	if key == "" {
		key = r.primaryLocked()
	}
	if p, ok := r.providers[key]; ok {
		return p, nil
	}
	if name == "" {
		name = key
	}
	return nil, core.NewUnavailableError(name)
}

// ListProviders returns the registered names in registration order.
func (r *Registry) ListProviders() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Primary returns the default provider name. When the configured primary was
// never registered the first registered provider stands in; with nothing
// registered the configured name is returned.
func (r *Registry) Primary() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.primaryLocked()
}

func (r *Registry) primaryLocked() string {
	if _, ok := r.providers[r.primary]; ok || len(r.order) == 0 {
		return r.primary
	}
	return r.order[0]
}

// ConfiguredPrimary returns the primary name given at construction.
func (r *Registry) ConfiguredPrimary() string {
	return r.primary
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
