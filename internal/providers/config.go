package providers

import (
	"os"
	"slices"
	"sort"
	"strings"

	"chatbridge/config"
)

// ProviderConfig is the fully resolved configuration of one adapter.
type ProviderConfig struct {
	Name        string
	Type        string
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	Resilience  config.ResilienceConfig
}

// knownProviderEnvs maps well-known provider names to their environment variables.
var knownProviderEnvs = []struct {
	name       string
	apiKeyEnv  string
	baseURLEnv string
	modelEnv   string
}{
	{"gemini", "GEMINI_API_KEY", "GEMINI_BASE_URL", "GEMINI_MODEL"},
	{"deepseek", "DEEPSEEK_API_KEY", "DEEPSEEK_BASE_URL", "DEEPSEEK_MODEL"},
	{"openai", "OPENAI_API_KEY", "OPENAI_BASE_URL", "OPENAI_MODEL"},
	{"groq", "GROQ_API_KEY", "GROQ_BASE_URL", "GROQ_MODEL"},
	{"xai", "XAI_API_KEY", "XAI_BASE_URL", "XAI_MODEL"},
}

// resolveProviders overlays provider env vars on the YAML entries, drops
// entries without a usable credential and returns the rest in
// registration order.
func resolveProviders(cfg *config.Config) []ProviderConfig {
	merged := applyProviderEnvVars(cfg.Providers)
	filtered := filterEmptyProviders(merged)

	out := make([]ProviderConfig, 0, len(filtered))
	for _, name := range orderedNames(filtered, cfg.Gateway.ProviderOrder) {
		raw := filtered[name]
		providerType := raw.Type
		if providerType == "" {
			providerType = name
		}
		out = append(out, ProviderConfig{
			Name:        name,
			Type:        providerType,
			APIKey:      raw.APIKey,
			BaseURL:     raw.BaseURL,
			Model:       raw.Model,
			MaxTokens:   cfg.Gateway.MaxTokens,
			Temperature: cfg.Gateway.Temperature,
			Resilience:  cfg.Resilience,
		})
	}
	return out
}

// applyProviderEnvVars overlays well-known provider env vars onto the YAML map.
// Env values win over YAML values for the same provider.
func applyProviderEnvVars(raw map[string]config.RawProviderConfig) map[string]config.RawProviderConfig {
	result := make(map[string]config.RawProviderConfig, len(raw))
	for k, v := range raw {
		result[normalize(k)] = v
	}

	for _, kp := range knownProviderEnvs {
		apiKey := os.Getenv(kp.apiKeyEnv)
		baseURL := os.Getenv(kp.baseURLEnv)
		model := os.Getenv(kp.modelEnv)

		existing, exists := result[kp.name]
		if !exists && apiKey == "" {
			continue
		}
		if !exists {
			existing.Type = kp.name
		}
		if apiKey != "" {
			existing.APIKey = apiKey
		}
		if baseURL != "" {
			existing.BaseURL = baseURL
		}
		if model != "" {
			existing.Model = model
		}
		result[kp.name] = existing
	}
	return result
}

// filterEmptyProviders removes providers without a credential, including
// ones whose key is an unresolved ${VAR} placeholder.
func filterEmptyProviders(raw map[string]config.RawProviderConfig) map[string]config.RawProviderConfig {
	result := make(map[string]config.RawProviderConfig, len(raw))
	for name, p := range raw {
		if p.APIKey != "" && !strings.Contains(p.APIKey, "${") {
			result[name] = p
		}
	}
	return result
}

// orderedNames lists names in the configured order first, then the rest sorted.
func orderedNames(providers map[string]config.RawProviderConfig, order []string) []string {
	names := make([]string, 0, len(providers))
	for _, n := range order {
		n = normalize(n)
		if _, ok := providers[n]; ok && !slices.Contains(names, n) {
			names = append(names, n)
		}
	}
	var rest []string
	for n := range providers {
		if !slices.Contains(names, n) {
			rest = append(rest, n)
		}
	}
	sort.Strings(rest)
	return append(names, rest...)
}
