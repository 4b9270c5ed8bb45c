// Package gemini provides Google Gemini integration through the native
// generateContent API.
package gemini

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"chatbridge/internal/core"
	"chatbridge/internal/llmclient"
	"chatbridge/internal/providers"
)

// Registration provides factory registration for the Gemini provider.
var Registration = providers.Registration{
	Type: "gemini",
	New:  New,
}

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel   = "gemini-pro"
)

// Provider implements core.Provider for Google Gemini.
type Provider struct {
	client      *llmclient.Client
	name        string
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
}

// New creates a Gemini provider from its resolved configuration.
func New(cfg providers.ProviderConfig, hooks llmclient.Hooks) (core.Provider, error) {
	p := newProvider(cfg)
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	breaker := cfg.Resilience.CircuitBreaker
	p.client = llmclient.New(llmclient.Config{
		ProviderName:   p.name,
		BaseURL:        baseURL,
		Retry:          cfg.Resilience.Retry,
		CircuitBreaker: &breaker,
		Hooks:          hooks,
	}, p.setHeaders)
	return p, nil
}

// NewWithHTTPClient creates a Gemini provider with a custom HTTP client.
// If httpClient is nil, http.DefaultClient is used.
func NewWithHTTPClient(cfg providers.ProviderConfig, httpClient *http.Client, hooks llmclient.Hooks) *Provider {
	p := newProvider(cfg)
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	clientCfg := llmclient.DefaultConfig(p.name, baseURL)
	clientCfg.Hooks = hooks
	p.client = llmclient.NewWithHTTPClient(httpClient, clientCfg, p.setHeaders)
	return p
}

func newProvider(cfg providers.ProviderConfig) *Provider {
	name := cfg.Name
	if name == "" {
		name = "gemini"
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	return &Provider{
		name:        name,
		apiKey:      cfg.APIKey,
		model:       model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}
}

func (p *Provider) Name() string  { return p.name }
func (p *Provider) Model() string { return p.model }

// SetBaseURL allows configuring a custom base URL for the provider
func (p *Provider) SetBaseURL(url string) {
	p.client.SetBaseURL(url)
}

func (p *Provider) setHeaders(req *http.Request) {
	req.Header.Set("x-goog-api-key", p.apiKey)
	if requestID := core.GetRequestID(req.Context()); requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}
}

func (p *Provider) endpoint(method string) string {
	return "/models/" + url.PathEscape(p.model) + ":" + method
}

// buildBody renders a generateContent payload. Gemini has no system role in
// contents, so the system prompt is prepended to the final user turn.
func (p *Provider) buildBody(req *core.ChatRequest) ([]byte, error) {
	body := []byte(`{"contents":[]}`)
	var err error
	for _, m := range req.History {
		role := "user"
		if m.Role == core.RoleAssistant {
			role = "model"
		} else if m.Role == core.RoleSystem {
			continue
		}
		if body, err = sjson.SetBytes(body, "contents.-1", map[string]any{
			"role":  role,
			"parts": []map[string]string{{"text": m.Content}},
		}); err != nil {
			return nil, err
		}
	}

	prompt := req.Message
	if req.SystemPrompt != "" {
		prompt = req.SystemPrompt + "\n\n" + req.Message
	}
	if body, err = sjson.SetBytes(body, "contents.-1", map[string]any{
		"role":  "user",
		"parts": []map[string]string{{"text": prompt}},
	}); err != nil {
		return nil, err
	}

	if p.maxTokens > 0 {
		if body, err = sjson.SetBytes(body, "generationConfig.maxOutputTokens", p.maxTokens); err != nil {
			return nil, err
		}
	}
	if body, err = sjson.SetBytes(body, "generationConfig.temperature", p.temperature); err != nil {
		return nil, err
	}
	return body, nil
}

// candidateText joins the text parts of the first candidate.
func candidateText(payload []byte) string {
	var sb strings.Builder
	gjson.GetBytes(payload, "candidates.0.content.parts.#.text").ForEach(func(_, v gjson.Result) bool {
		sb.WriteString(v.String())
		return true
	})
	return sb.String()
}

func (p *Provider) blocked(payload []byte) error {
	reason := gjson.GetBytes(payload, "promptFeedback.blockReason")
	if !reason.Exists() {
		return nil
	}
	return core.NewProviderError(p.name, http.StatusBadGateway,
		fmt.Sprintf("prompt blocked: %s", reason.String()), nil)
}

// Chat sends a generateContent request and returns the first candidate's text.
func (p *Provider) Chat(ctx context.Context, req *core.ChatRequest) (string, error) {
	if p.apiKey == "" {
		return "", core.NewNotConfiguredError(p.name)
	}
	body, err := p.buildBody(req)
	if err != nil {
		return "", core.NewInvalidRequestError("failed to build request", err)
	}

	resp, err := p.client.DoRaw(ctx, llmclient.Request{
		Method:   http.MethodPost,
		Endpoint: p.endpoint("generateContent"),
		Model:    p.model,
		Body:     body,
	})
	if err != nil {
		return "", err
	}
	if err := p.blocked(resp.Body); err != nil {
		return "", err
	}
	if !gjson.GetBytes(resp.Body, "candidates.0").Exists() {
		return "", core.NewProviderError(p.name, http.StatusBadGateway, "response has no candidates", nil)
	}
	return candidateText(resp.Body), nil
}

// StreamChat opens a streamGenerateContent SSE stream. Each event's candidate
// text becomes one delta.
func (p *Provider) StreamChat(ctx context.Context, req *core.ChatRequest) <-chan core.Delta {
	out := make(chan core.Delta)
	go func() {
		defer close(out)
		if err := p.stream(ctx, req, out); err != nil && ctx.Err() == nil {
			select {
			case out <- core.Delta{Err: core.AsStreamError(p.name, err)}:
			case <-ctx.Done():
			}
		}
	}()
	return out
}

func (p *Provider) stream(ctx context.Context, req *core.ChatRequest, out chan<- core.Delta) error {
	if p.apiKey == "" {
		return core.NewNotConfiguredError(p.name)
	}
	body, err := p.buildBody(req)
	if err != nil {
		return core.NewInvalidRequestError("failed to build request", err)
	}

	rc, err := p.client.DoStream(ctx, llmclient.Request{
		Method:   http.MethodPost,
		Endpoint: p.endpoint("streamGenerateContent") + "?alt=sse",
		Model:    p.model,
		Body:     body,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = rc.Close()
	}()

	var eventErr error
	scanErr := llmclient.ScanEvents(ctx, rc, func(data []byte) bool {
		if msg := gjson.GetBytes(data, "error.message"); msg.Exists() {
			eventErr = core.NewProviderError(p.name, http.StatusBadGateway, msg.String(), nil)
			return false
		}
		if eventErr = p.blocked(data); eventErr != nil {
			return false
		}
		text := candidateText(data)
		if text == "" {
			return true
		}
		select {
		case out <- core.Delta{Text: text}:
			return true
		case <-ctx.Done():
			return false
		}
	})
	if eventErr != nil {
		return eventErr
	}
	if scanErr != nil {
		return core.NewProviderError(p.name, http.StatusBadGateway, "stream read failed: "+scanErr.Error(), scanErr)
	}
	return nil
}
