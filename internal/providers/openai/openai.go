// Package openai registers the OpenAI chat provider.
package openai

import (
	"chatbridge/internal/providers"
	"chatbridge/internal/providers/openaicompat"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-3.5-turbo"
)

// Registration provides factory registration for the OpenAI provider.
var Registration = providers.Registration{
	Type: "openai",
	New: openaicompat.Builder(openaicompat.Defaults{
		BaseURL: defaultBaseURL,
		Model:   defaultModel,
	}),
}
