package providers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatbridge/internal/core"
	"chatbridge/internal/llmclient"
)

func TestProviderFactory_Create_UnknownType(t *testing.T) {
	factory := NewProviderFactory()

	_, err := factory.Create(ProviderConfig{Type: "unknown-type", APIKey: "k"})
	require.Error(t, err)
	assert.Equal(t, "unknown provider type: unknown-type", err.Error())
}

func TestProviderFactory_Create(t *testing.T) {
	factory := NewProviderFactory()

	var captured ProviderConfig
	factory.Add(Registration{
		Type: "mock",
		New: func(cfg ProviderConfig, _ llmclient.Hooks) (core.Provider, error) {
			captured = cfg
			return &mockProvider{name: cfg.Name}, nil
		},
	})

	p, err := factory.Create(ProviderConfig{Name: "mine", Type: "mock", APIKey: "k", BaseURL: "https://x.example/v1"})
	require.NoError(t, err)
	assert.Equal(t, "mine", p.Name())
	assert.Equal(t, "https://x.example/v1", captured.BaseURL)
}

func TestProviderFactory_ListRegistered(t *testing.T) {
	factory := NewProviderFactory()
	noop := func(ProviderConfig, llmclient.Hooks) (core.Provider, error) { return nil, nil }
	factory.Register("openai", noop)
	factory.Register("deepseek", noop)
	factory.Register("gemini", noop)

	assert.Equal(t, []string{"deepseek", "gemini", "openai"}, factory.ListRegistered())
}

func TestProviderFactory_HooksPassedToBuilder(t *testing.T) {
	factory := NewProviderFactory()
	assert.Nil(t, factory.GetHooks().OnRequestStart)

	factory.SetHooks(llmclient.Hooks{
		OnRequestStart: func(ctx context.Context, _ llmclient.RequestInfo) context.Context { return ctx },
	})

	var received llmclient.Hooks
	factory.Register("test", func(_ ProviderConfig, hooks llmclient.Hooks) (core.Provider, error) {
		received = hooks
		return &mockProvider{name: "test"}, nil
	})

	_, err := factory.Create(ProviderConfig{Type: "test"})
	require.NoError(t, err)
	assert.NotNil(t, received.OnRequestStart)
}
