package providers

import (
	"context"
	"errors"
	"net/http"

	"chatbridge/internal/core"
	"chatbridge/internal/streaming"
)

// Gateway routes chat turns to the adapter a request names, or the primary
// adapter, and re-segments streamed answers into chunks.
type Gateway struct {
	lookup core.ProviderLookup
	policy streaming.Policy
}

// NewGateway creates a gateway over lookup.
func NewGateway(lookup core.ProviderLookup, policy streaming.Policy) *Gateway {
	return &Gateway{lookup: lookup, policy: policy}
}

// Resolve returns the adapter for name ("" = primary).
func (g *Gateway) Resolve(name string) (core.Provider, error) {
	return g.lookup.Resolve(name)
}

// Chat runs a single-turn request. Failures are *core.GatewayError values
// tagged with the provider; core.UserMessage renders them for chat users.
func (g *Gateway) Chat(ctx context.Context, req *core.ChatRequest, name string) (string, error) {
	p, err := g.lookup.Resolve(name)
	if err != nil {
		return "", err
	}
	text, err := p.Chat(ctx, req)
	if err != nil {
		return "", asGatewayError(p.Name(), err)
	}
	return text, nil
}

// StreamChat runs a streaming request and returns aggregated chunks. The
// channel always ends with exactly one final chunk unless ctx is cancelled
// first; an unknown provider yields a single final error chunk.
func (g *Gateway) StreamChat(ctx context.Context, req *core.ChatRequest, name string) <-chan core.StreamChunk {
	p, err := g.lookup.Resolve(name)
	if err != nil {
		return streaming.Single(err)
	}
	return streaming.Aggregate(ctx, p.StreamChat(ctx, req), g.policy)
}

// ListProviders returns available provider names in configuration order.
func (g *Gateway) ListProviders() []string {
	return g.lookup.ListProviders()
}

// Primary returns the default provider name.
func (g *Gateway) Primary() string {
	return g.lookup.Primary()
}

func asGatewayError(provider string, err error) error {
	var gwErr *core.GatewayError
	if errors.As(err, &gwErr) {
		return err
	}
	return core.NewProviderError(provider, http.StatusBadGateway, err.Error(), err)
}
