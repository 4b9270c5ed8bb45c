package openaicompat

import (
	"chatbridge/internal/core"
	"chatbridge/internal/llmclient"
	"chatbridge/internal/providers"
)

// Defaults are applied where a provider entry leaves a field empty.
type Defaults struct {
	BaseURL string
	Model   string
}

// Builder returns a providers.Builder for an OpenAI-compatible endpoint.
func Builder(defaults Defaults) providers.Builder {
	return func(cfg providers.ProviderConfig, hooks llmclient.Hooks) (core.Provider, error) {
		opts := Options{
			Name:        cfg.Name,
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
		}
		if opts.BaseURL == "" {
			opts.BaseURL = defaults.BaseURL
		}
		if opts.Model == "" {
			opts.Model = defaults.Model
		}
		breaker := cfg.Resilience.CircuitBreaker
		return New(opts, llmclient.Config{
			Retry:          cfg.Resilience.Retry,
			CircuitBreaker: &breaker,
			Hooks:          hooks,
		}), nil
	}
}
