// Package xai registers the xAI chat provider, reached through its
// OpenAI-compatible endpoint.
package xai

import (
	"chatbridge/internal/providers"
	"chatbridge/internal/providers/openaicompat"
)

const (
	defaultBaseURL = "https://api.x.ai/v1"
	defaultModel   = "grok-2-latest"
)

// Registration provides factory registration for the xAI provider.
var Registration = providers.Registration{
	Type: "xai",
	New: openaicompat.Builder(openaicompat.Defaults{
		BaseURL: defaultBaseURL,
		Model:   defaultModel,
	}),
}
