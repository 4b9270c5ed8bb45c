package providers

import (
	"fmt"
	"sort"
	"sync"

	"chatbridge/internal/core"
	"chatbridge/internal/llmclient"
)

// Builder creates a provider adapter from its resolved configuration.
type Builder func(cfg ProviderConfig, hooks llmclient.Hooks) (core.Provider, error)

// Registration lets an adapter package describe how to build itself.
type Registration struct {
	Type string
	New  Builder
}

// ProviderFactory maps provider types to builders and carries the
// instrumentation hooks handed to every adapter it builds.
type ProviderFactory struct {
	mu       sync.RWMutex
	builders map[string]Builder
	hooks    llmclient.Hooks
}

func NewProviderFactory() *ProviderFactory {
	return &ProviderFactory{builders: make(map[string]Builder)}
}

// Register associates a provider type with a builder.
func (f *ProviderFactory) Register(providerType string, builder Builder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builders[providerType] = builder
}

// Add registers reg.
func (f *ProviderFactory) Add(reg Registration) {
	f.Register(reg.Type, reg.New)
}

// SetHooks sets the hooks passed to builders. Call before Create.
func (f *ProviderFactory) SetHooks(hooks llmclient.Hooks) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hooks = hooks
}

func (f *ProviderFactory) GetHooks() llmclient.Hooks {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.hooks
}

// Create builds the adapter for cfg.Type.
func (f *ProviderFactory) Create(cfg ProviderConfig) (core.Provider, error) {
	f.mu.RLock()
	builder, ok := f.builders[cfg.Type]
	hooks := f.hooks
	f.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Type)
	}
	return builder(cfg, hooks)
}

// ListRegistered returns the registered provider types, sorted.
func (f *ProviderFactory) ListRegistered() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	types := make([]string, 0, len(f.builders))
	for t := range f.builders {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
