// Package llmclient is the shared HTTP plumbing behind every provider adapter:
// JSON requests, retries with exponential backoff for non-streaming calls,
// provider error parsing, circuit breaking and instrumentation hooks.
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"time"

	"chatbridge/config"
	"chatbridge/internal/core"
	"chatbridge/internal/httpclient"
)

// Config holds configuration for the LLM client
type Config struct {
	// ProviderName identifies the provider for error messages
	ProviderName string
	// BaseURL is the API base URL
	BaseURL string

	Retry config.RetryConfig
	// CircuitBreaker is disabled when nil.
	CircuitBreaker *config.CircuitBreakerConfig
	Hooks          Hooks
}

// DefaultConfig returns default client configuration
func DefaultConfig(providerName, baseURL string) Config {
	resilience := config.DefaultResilience()
	return Config{
		ProviderName:   providerName,
		BaseURL:        baseURL,
		Retry:          resilience.Retry,
		CircuitBreaker: &resilience.CircuitBreaker,
	}
}

// HeaderSetter is a function that sets headers on an HTTP request
type HeaderSetter func(req *http.Request)

// Client is a base HTTP client for LLM providers
type Client struct {
	httpClient     *http.Client
	config         Config
	headerSetter   HeaderSetter
	circuitBreaker *circuitBreaker
}

// New creates a client backed by the shared pooled HTTP client.
func New(cfg Config, headerSetter HeaderSetter) *Client {
	return NewWithHTTPClient(httpclient.NewDefaultHTTPClient(), cfg, headerSetter)
}

// NewWithHTTPClient creates a client with a custom HTTP client.
func NewWithHTTPClient(httpClient *http.Client, cfg Config, headerSetter HeaderSetter) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c := &Client{
		httpClient:   httpClient,
		config:       cfg,
		headerSetter: headerSetter,
	}
	if cfg.CircuitBreaker != nil {
		c.circuitBreaker = newCircuitBreaker(*cfg.CircuitBreaker)
	}
	return c
}

// SetBaseURL updates the base URL
func (c *Client) SetBaseURL(url string) {
	c.config.BaseURL = url
}

// BaseURL returns the current base URL
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// Request represents an HTTP request to be made
type Request struct {
	Method   string
	Endpoint string
	// Model is reported to hooks only.
	Model string
	// Body is sent verbatim when it is []byte or json.RawMessage and JSON
	// marshaled otherwise.
	Body    any
	Headers map[string]string
}

// Response represents an HTTP response
type Response struct {
	StatusCode int
	Body       []byte
}

// DoRaw executes a request with retries and circuit breaking, returning the raw response
func (c *Client) DoRaw(ctx context.Context, req Request) (resp *Response, err error) {
	info := c.requestInfo(req, false)
	ctx = c.config.Hooks.start(ctx, info)
	started := time.Now()
	defer func() {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		c.config.Hooks.end(ctx, info, status, started, err)
	}()

	if !c.allow() {
		return nil, c.circuitOpenError()
	}

	var lastErr error
	maxAttempts := max(c.config.Retry.MaxRetries+1, 1)

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.calculateBackoff(attempt)):
			}
		}

		r, err := c.doRequest(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			lastErr = err
			c.recordFailure()
			continue
		}

		if isRetryable(r.StatusCode) {
			c.recordFailure()
			lastErr = core.ParseProviderError(c.config.ProviderName, r.StatusCode, r.Body, nil)
			continue
		}

		if r.StatusCode != http.StatusOK {
			if r.StatusCode >= http.StatusInternalServerError {
				c.recordFailure()
			}
			return nil, core.ParseProviderError(c.config.ProviderName, r.StatusCode, r.Body, nil)
		}

		c.recordSuccess()
		return r, nil
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, core.NewProviderError(c.config.ProviderName, http.StatusBadGateway, "request failed after retries", nil)
}

// DoStream executes a streaming request and returns the open response body.
// Streams are never retried since part of the answer may already be delivered.
// The caller must close the body.
func (c *Client) DoStream(ctx context.Context, req Request) (body io.ReadCloser, err error) {
	info := c.requestInfo(req, true)
	ctx = c.config.Hooks.start(ctx, info)
	started := time.Now()
	status := 0
	defer func() {
		c.config.Hooks.end(ctx, info, status, started, err)
	}()

	if !c.allow() {
		return nil, c.circuitOpenError()
	}

	httpReq, err := c.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.recordFailure()
		return nil, core.NewProviderError(c.config.ProviderName, http.StatusBadGateway, "failed to send request: "+err.Error(), err)
	}
	status = resp.StatusCode

	if resp.StatusCode != http.StatusOK {
		respBody, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			respBody = []byte("failed to read error response")
		}
		_ = resp.Body.Close()

		if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
			c.recordFailure()
		}
		return nil, core.ParseProviderError(c.config.ProviderName, resp.StatusCode, respBody, nil)
	}

	c.recordSuccess()
	return resp.Body, nil
}

func (c *Client) requestInfo(req Request, stream bool) RequestInfo {
	return RequestInfo{
		Provider: c.config.ProviderName,
		Model:    req.Model,
		Endpoint: req.Endpoint,
		Stream:   stream,
	}
}

// doRequest executes a single HTTP request without retries
func (c *Client) doRequest(ctx context.Context, req Request) (*Response, error) {
	httpReq, err := c.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, core.NewProviderError(c.config.ProviderName, http.StatusBadGateway, "failed to send request: "+err.Error(), err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.NewProviderError(c.config.ProviderName, http.StatusBadGateway, "failed to read response: "+err.Error(), err)
	}

	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}

func (c *Client) buildRequest(ctx context.Context, req Request) (*http.Request, error) {
	var bodyReader io.Reader
	if req.Body != nil {
		var bodyBytes []byte
		switch b := req.Body.(type) {
		case []byte:
			bodyBytes = b
		case json.RawMessage:
			bodyBytes = b
		default:
			var err error
			if bodyBytes, err = json.Marshal(req.Body); err != nil {
				return nil, core.NewInvalidRequestError("failed to marshal request", err)
			}
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.config.BaseURL+req.Endpoint, bodyReader)
	if err != nil {
		return nil, core.NewInvalidRequestError("failed to create request", err)
	}

	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.headerSetter != nil {
		c.headerSetter(httpReq)
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	return httpReq, nil
}

// calculateBackoff returns the wait before the given retry attempt (1-based).
func (c *Client) calculateBackoff(attempt int) time.Duration {
	r := c.config.Retry
	backoff := float64(r.InitialBackoff) * math.Pow(r.BackoffFactor, float64(attempt-1))
	if r.MaxBackoff > 0 && backoff > float64(r.MaxBackoff) {
		backoff = float64(r.MaxBackoff)
	}
	if r.JitterFactor > 0 {
		backoff += backoff * r.JitterFactor * (rand.Float64()*2 - 1)
	}
	return time.Duration(max(backoff, 0))
}

func isRetryable(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests ||
		statusCode == http.StatusServiceUnavailable ||
		statusCode == http.StatusBadGateway ||
		statusCode == http.StatusGatewayTimeout
}

func (c *Client) allow() bool {
	return c.circuitBreaker == nil || c.circuitBreaker.Allow()
}

func (c *Client) recordFailure() {
	if c.circuitBreaker != nil {
		c.circuitBreaker.RecordFailure()
	}
}

func (c *Client) recordSuccess() {
	if c.circuitBreaker != nil {
		c.circuitBreaker.RecordSuccess()
	}
}

func (c *Client) circuitOpenError() error {
	return core.NewProviderError(c.config.ProviderName, http.StatusServiceUnavailable,
		"circuit breaker is open - provider temporarily unavailable", nil)
}
