package xai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatbridge/config"
	"chatbridge/internal/llmclient"
	"chatbridge/internal/providers"
)

func TestRegistration(t *testing.T) {
	assert.Equal(t, "xai", Registration.Type)

	p, err := Registration.New(providers.ProviderConfig{
		Name:       "xai",
		Type:       "xai",
		APIKey:     "sk",
		Resilience: config.DefaultResilience(),
	}, llmclient.Hooks{})
	require.NoError(t, err)
	assert.Equal(t, "xai", p.Name())
	assert.Equal(t, defaultModel, p.Model())
}
