package deepseek

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatbridge/config"
	"chatbridge/internal/llmclient"
	"chatbridge/internal/providers"
)

func TestRegistration(t *testing.T) {
	assert.Equal(t, "deepseek", Registration.Type)

	p, err := Registration.New(providers.ProviderConfig{
		Name:       "deepseek",
		Type:       "deepseek",
		APIKey:     "sk",
		Resilience: config.DefaultResilience(),
	}, llmclient.Hooks{})
	require.NoError(t, err)
	assert.Equal(t, "deepseek", p.Name())
	assert.Equal(t, defaultModel, p.Model())
}
