// Package deepseek registers the DeepSeek chat provider, which speaks the
// OpenAI chat completions protocol.
package deepseek

import (
	"chatbridge/internal/providers"
	"chatbridge/internal/providers/openaicompat"
)

const (
	defaultBaseURL = "https://api.deepseek.com/v1"
	defaultModel   = "deepseek-chat"
)

// Registration provides factory registration for the DeepSeek provider.
var Registration = providers.Registration{
	Type: "deepseek",
	New: openaicompat.Builder(openaicompat.Defaults{
		BaseURL: defaultBaseURL,
		Model:   defaultModel,
	}),
}
