// Package groq registers the Groq chat provider, reached through its
// OpenAI-compatible endpoint.
package groq

import (
	"chatbridge/internal/providers"
	"chatbridge/internal/providers/openaicompat"
)

const (
	defaultBaseURL = "https://api.groq.com/openai/v1"
	defaultModel   = "llama-3.1-8b-instant"
)

// Registration provides factory registration for the Groq provider.
var Registration = providers.Registration{
	Type: "groq",
	New: openaicompat.Builder(openaicompat.Defaults{
		BaseURL: defaultBaseURL,
		Model:   defaultModel,
	}),
}
