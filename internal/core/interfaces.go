// Package core defines the core interfaces and types for the chat gateway.
package core

import "context"

// Provider is the capability every chat backend adapter implements.
// Implementations must be safe for concurrent use; they keep no per-call state.
type Provider interface {
	// Name returns the registry key of the provider (e.g. "gemini").
	Name() string

	// Model returns the upstream model the adapter talks to.
	Model() string

	// Chat executes a single-turn request and returns the full answer text.
	Chat(ctx context.Context, req *ChatRequest) (string, error)

	// StreamChat opens a streaming call. The returned channel yields text deltas
	// as they arrive and is closed when the provider stream ends. A failure
	// is delivered as exactly one Delta with Err set, after which the channel
	// is closed. Cancelling ctx aborts the upstream call and closes the channel.
	StreamChat(ctx context.Context, req *ChatRequest) <-chan Delta
}

// ProviderLookup resolves provider names to adapters.
type ProviderLookup interface {
	// Resolve returns the adapter registered under name, or the primary
	// adapter when name is empty. A miss returns an ErrorTypeUnavailable error.
	Resolve(name string) (Provider, error)

	// ListProviders returns registered provider names in configuration order.
	ListProviders() []string

	// Primary returns the default provider name.
	Primary() string
}
