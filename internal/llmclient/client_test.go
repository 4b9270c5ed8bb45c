package llmclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"chatbridge/config"
	"chatbridge/internal/core"
)

func fastConfig(url string) Config {
	cfg := DefaultConfig("test", url)
	cfg.Retry.InitialBackoff = 5 * time.Millisecond
	cfg.Retry.MaxBackoff = 20 * time.Millisecond
	cfg.Retry.JitterFactor = 0
	return cfg
}

func TestClient_DoRaw_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":"hello"}`))
	}))
	defer server.Close()

	client := New(fastConfig(server.URL), func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer key")
	})

	resp, err := client.DoRaw(context.Background(), Request{Method: http.MethodGet, Endpoint: "/test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if string(resp.Body) != `{"message":"hello"}` {
		t.Errorf("Body = %s", resp.Body)
	}
}

func TestClient_DoRaw_RawBodyIsSentVerbatim(t *testing.T) {
	var received string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
		}
		body, _ := io.ReadAll(r.Body)
		received = string(body)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := New(fastConfig(server.URL), nil)
	raw := []byte(`{"model":"m","stream":true}`)
	if _, err := client.DoRaw(context.Background(), Request{Method: http.MethodPost, Endpoint: "/x", Body: raw}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if received != string(raw) {
		t.Errorf("body = %s, want %s", received, raw)
	}
}

func TestClient_DoRaw_MarshalsStructBody(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &received)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := New(fastConfig(server.URL), nil)
	_, err := client.DoRaw(context.Background(), Request{
		Method:   http.MethodPost,
		Endpoint: "/x",
		Body:     map[string]string{"input": "test"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if received["input"] != "test" {
		t.Errorf("input = %v, want test", received["input"])
	}
}

func TestClient_DoRaw_ErrorParsing(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantType core.ErrorType
	}{
		{"unauthorized", http.StatusUnauthorized, core.ErrorTypeAuthentication},
		{"bad request", http.StatusBadRequest, core.ErrorTypeInvalidRequest},
		{"internal error", http.StatusInternalServerError, core.ErrorTypeProvider},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"nope"}}`))
			}))
			defer server.Close()

			cfg := fastConfig(server.URL)
			cfg.Retry.MaxRetries = 0
			_, err := New(cfg, nil).DoRaw(context.Background(), Request{Method: http.MethodGet, Endpoint: "/"})

			var gwErr *core.GatewayError
			if !errors.As(err, &gwErr) {
				t.Fatalf("expected GatewayError, got %T", err)
			}
			if gwErr.Type != tt.wantType {
				t.Errorf("Type = %s, want %s", gwErr.Type, tt.wantType)
			}
			if gwErr.Message != "nope" {
				t.Errorf("Message = %q, want nope", gwErr.Message)
			}
		})
	}
}

func TestClient_DoRaw_Retries(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	resp, err := New(fastConfig(server.URL), nil).DoRaw(context.Background(), Request{Method: http.MethodGet, Endpoint: "/"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(resp.Body) != `{"ok":true}` {
		t.Errorf("Body = %s", resp.Body)
	}
	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}

func TestClient_DoRaw_RetriesExhausted(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down"}}`))
	}))
	defer server.Close()

	cfg := fastConfig(server.URL)
	cfg.Retry.MaxRetries = 2
	cfg.CircuitBreaker = nil
	_, err := New(cfg, nil).DoRaw(context.Background(), Request{Method: http.MethodGet, Endpoint: "/"})

	var gwErr *core.GatewayError
	if !errors.As(err, &gwErr) || gwErr.Type != core.ErrorTypeRateLimit {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}

func TestClient_NonRetryableErrors(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	_, _ = New(fastConfig(server.URL), nil).DoRaw(context.Background(), Request{Method: http.MethodGet, Endpoint: "/"})
	if got := atomic.LoadInt32(&attempts); got != 1 {
		t.Errorf("attempts = %d, want 1", got)
	}
}

func TestClient_DoStream_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "text/event-stream" {
			t.Errorf("Accept = %q", r.Header.Get("Accept"))
		}
		_, _ = w.Write([]byte("data: {\"x\":1}\n\ndata: [DONE]\n\n"))
	}))
	defer server.Close()

	body, err := New(fastConfig(server.URL), nil).DoStream(context.Background(), Request{Method: http.MethodPost, Endpoint: "/s", Body: []byte(`{}`)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer body.Close()

	data, _ := io.ReadAll(body)
	if !strings.Contains(string(data), "[DONE]") {
		t.Errorf("unexpected body %q", data)
	}
}

func TestClient_DoStream_ErrorIsNotRetried(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded"}}`))
	}))
	defer server.Close()

	_, err := New(fastConfig(server.URL), nil).DoStream(context.Background(), Request{Method: http.MethodPost, Endpoint: "/s"})
	var gwErr *core.GatewayError
	if !errors.As(err, &gwErr) || gwErr.Message != "overloaded" {
		t.Fatalf("expected provider error, got %v", err)
	}
	if got := atomic.LoadInt32(&attempts); got != 1 {
		t.Errorf("attempts = %d, want 1", got)
	}
}

func TestClient_Hooks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	type ctxKey struct{}
	var started RequestInfo
	var ended ResponseInfo
	var sawCtx bool

	cfg := fastConfig(server.URL)
	cfg.Hooks = Hooks{
		OnRequestStart: func(ctx context.Context, info RequestInfo) context.Context {
			started = info
			return context.WithValue(ctx, ctxKey{}, true)
		},
		OnRequestEnd: func(ctx context.Context, info ResponseInfo) {
			sawCtx = ctx.Value(ctxKey{}) == true
			ended = info
		},
	}

	_, err := New(cfg, nil).DoRaw(context.Background(), Request{Method: http.MethodPost, Endpoint: "/chat", Model: "m1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if started.Provider != "test" || started.Model != "m1" || started.Endpoint != "/chat" {
		t.Errorf("start info = %+v", started)
	}
	if ended.StatusCode != http.StatusOK || ended.Err != nil {
		t.Errorf("end info = %+v", ended)
	}
	if !sawCtx {
		t.Error("OnRequestEnd did not receive the context returned by OnRequestStart")
	}
}

func TestCircuitBreaker_OpensAfterFailures(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := fastConfig(server.URL)
	cfg.Retry.MaxRetries = 0
	cfg.CircuitBreaker = &config.CircuitBreakerConfig{FailureThreshold: 3, SuccessThreshold: 1, Timeout: time.Minute}
	client := New(cfg, nil)

	for i := 0; i < 5; i++ {
		_, _ = client.DoRaw(context.Background(), Request{Method: http.MethodGet, Endpoint: "/"})
	}

	_, err := client.DoRaw(context.Background(), Request{Method: http.MethodGet, Endpoint: "/"})
	var gwErr *core.GatewayError
	if !errors.As(err, &gwErr) || !strings.Contains(gwErr.Message, "circuit breaker") {
		t.Fatalf("expected circuit breaker error, got %v", err)
	}
	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}

func TestCircuitBreaker_HalfOpenAfterTimeout(t *testing.T) {
	now := time.Now()
	cb := newCircuitBreaker(config.CircuitBreakerConfig{FailureThreshold: 2, SuccessThreshold: 1, Timeout: time.Second})
	cb.now = func() time.Time { return now }

	cb.RecordFailure()
	cb.RecordFailure()
	if cb.State() != "open" || cb.Allow() {
		t.Fatalf("expected open circuit, got %s", cb.State())
	}

	now = now.Add(2 * time.Second)
	if !cb.Allow() {
		t.Fatal("expected probe to be allowed after timeout")
	}
	if cb.State() != "half-open" {
		t.Errorf("state = %s, want half-open", cb.State())
	}

	cb.RecordSuccess()
	if cb.State() != "closed" {
		t.Errorf("state = %s, want closed", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Now()
	cb := newCircuitBreaker(config.CircuitBreakerConfig{FailureThreshold: 1, SuccessThreshold: 1, Timeout: time.Second})
	cb.now = func() time.Time { return now }

	cb.RecordFailure()
	now = now.Add(2 * time.Second)
	cb.Allow()
	cb.RecordFailure()

	if cb.State() != "open" {
		t.Errorf("state = %s, want open", cb.State())
	}
}

func TestClient_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := New(fastConfig(server.URL), nil).DoRaw(ctx, Request{Method: http.MethodGet, Endpoint: "/"})
	if err == nil {
		t.Fatal("expected context cancellation error")
	}
	if time.Since(start) > 900*time.Millisecond {
		t.Error("cancelled request kept retrying")
	}
}

func TestBackoffCalculation(t *testing.T) {
	client := New(Config{Retry: config.RetryConfig{
		InitialBackoff: time.Second,
		MaxBackoff:     5 * time.Second,
		BackoffFactor:  2,
	}}, nil)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 5 * time.Second},
	}
	for _, tt := range tests {
		if got := client.calculateBackoff(tt.attempt); got != tt.want {
			t.Errorf("calculateBackoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestClient_SetBaseURL(t *testing.T) {
	client := New(DefaultConfig("test", "https://a.example"), nil)
	client.SetBaseURL("https://b.example")
	if client.BaseURL() != "https://b.example" {
		t.Errorf("BaseURL() = %s", client.BaseURL())
	}
}
