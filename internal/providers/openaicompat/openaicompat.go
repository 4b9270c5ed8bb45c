// Package openaicompat implements core.Provider for chat APIs that speak the
// OpenAI /chat/completions protocol.
package openaicompat

import (
	"context"
	"net/http"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"chatbridge/internal/core"
	"chatbridge/internal/llmclient"
)

// Options describes one OpenAI-compatible endpoint.
type Options struct {
	// Name is the registry key and the provider tag on errors.
	Name        string
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
}

// Provider talks to an OpenAI-compatible chat endpoint.
type Provider struct {
	client      *llmclient.Client
	name        string
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
}

// New creates a provider using the shared pooled HTTP client.
func New(opts Options, cfg llmclient.Config) *Provider {
	p := newProvider(opts)
	cfg.ProviderName = opts.Name
	cfg.BaseURL = opts.BaseURL
	p.client = llmclient.New(cfg, p.setHeaders)
	return p
}

// NewWithHTTPClient creates a provider with a custom HTTP client.
func NewWithHTTPClient(opts Options, httpClient *http.Client, hooks llmclient.Hooks) *Provider {
	p := newProvider(opts)
	cfg := llmclient.DefaultConfig(opts.Name, opts.BaseURL)
	cfg.Hooks = hooks
	p.client = llmclient.NewWithHTTPClient(httpClient, cfg, p.setHeaders)
	return p
}

func newProvider(opts Options) *Provider {
	return &Provider{
		name:        opts.Name,
		apiKey:      opts.APIKey,
		model:       opts.Model,
		maxTokens:   opts.MaxTokens,
		temperature: opts.Temperature,
	}
}

func (p *Provider) Name() string  { return p.name }
func (p *Provider) Model() string { return p.model }

// SetBaseURL allows configuring a custom base URL for the provider
func (p *Provider) SetBaseURL(url string) {
	p.client.SetBaseURL(url)
}

func (p *Provider) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	if requestID := core.GetRequestID(req.Context()); requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}
}

// buildBody renders the chat completion payload.
func (p *Provider) buildBody(req *core.ChatRequest, stream bool) ([]byte, error) {
	body := []byte(`{}`)
	var err error
	if body, err = sjson.SetBytes(body, "model", p.model); err != nil {
		return nil, err
	}
	if body, err = sjson.SetBytes(body, "messages", req.Messages()); err != nil {
		return nil, err
	}
	if p.maxTokens > 0 {
		if body, err = sjson.SetBytes(body, "max_tokens", p.maxTokens); err != nil {
			return nil, err
		}
	}
	if body, err = sjson.SetBytes(body, "temperature", p.temperature); err != nil {
		return nil, err
	}
	if stream {
		if body, err = sjson.SetBytes(body, "stream", true); err != nil {
			return nil, err
		}
	}
	return body, nil
}

// Chat sends a non-streaming chat completion and returns the first choice.
func (p *Provider) Chat(ctx context.Context, req *core.ChatRequest) (string, error) {
	if p.apiKey == "" {
		return "", core.NewNotConfiguredError(p.name)
	}
	body, err := p.buildBody(req, false)
	if err != nil {
		return "", core.NewInvalidRequestError("failed to build request", err)
	}

	resp, err := p.client.DoRaw(ctx, llmclient.Request{
		Method:   http.MethodPost,
		Endpoint: "/chat/completions",
		Model:    p.model,
		Body:     body,
	})
	if err != nil {
		return "", err
	}

	content := gjson.GetBytes(resp.Body, "choices.0.message.content")
	if !content.Exists() {
		return "", core.NewProviderError(p.name, http.StatusBadGateway, "response has no choices", nil)
	}
	return content.String(), nil
}

// StreamChat opens a streaming chat completion. Each non-empty
// choices[0].delta.content becomes one delta.
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
	body, err := p.buildBody(req, true)
	if err != nil {
		return core.NewInvalidRequestError("failed to build request", err)
	}

	rc, err := p.client.DoStream(ctx, llmclient.Request{
		Method:   http.MethodPost,
		Endpoint: "/chat/completions",
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
		text := gjson.GetBytes(data, "choices.0.delta.content").String()
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
