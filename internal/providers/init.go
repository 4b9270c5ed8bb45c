package providers

import (
	"fmt"
	"log/slog"

	"chatbridge/config"
	"chatbridge/internal/streaming"
)

// InitResult holds the initialized provider infrastructure.
type InitResult struct {
	Registry *Registry
	Gateway  *Gateway
	Factory  *ProviderFactory
}

// PolicyFromConfig builds the stream chunking policy.
func PolicyFromConfig(cfg config.GatewayConfig) streaming.Policy {
	return streaming.Policy{
		BatchSize:   cfg.BatchSize,
		Terminators: cfg.Terminators,
		EmptyFinal:  cfg.EmptyFinal,
	}
}

// Init builds one adapter per configured provider that has a credential and
// registers them in configuration order. An empty registry is not an error:
// the gateway then answers every request with an unavailable sentinel.
func Init(cfg *config.Config, factory *ProviderFactory) (*InitResult, error) {
	if factory == nil {
		return nil, fmt.Errorf("provider factory is required")
	}

	registry := NewRegistry(cfg.Gateway.Primary)
	for _, pCfg := range resolveProviders(cfg) {
		p, err := factory.Create(pCfg)
		if err != nil {
			slog.Error("failed to initialize provider", "name", pCfg.Name, "type", pCfg.Type, "error", err)
			continue
		}
		if err := registry.Register(p); err != nil {
			slog.Error("failed to register provider", "name", pCfg.Name, "error", err)
			continue
		}
		slog.Info("provider initialized", "name", p.Name(), "model", p.Model())
	}

	switch {
	case registry.Len() == 0:
		slog.Warn("no llm providers configured",
			"hint", "set GEMINI_API_KEY, DEEPSEEK_API_KEY or OPENAI_API_KEY")
	case registry.Primary() != registry.ConfiguredPrimary():
		slog.Warn("primary provider not available, falling back",
			"configured", registry.ConfiguredPrimary(),
			"primary", registry.Primary())
	default:
		slog.Info("providers ready", "count", registry.Len(), "primary", registry.Primary())
	}

	return &InitResult{
		Registry: registry,
		Gateway:  NewGateway(registry, PolicyFromConfig(cfg.Gateway)),
		Factory:  factory,
	}, nil
}
