package core

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"unicode/utf8"
)

func TestGatewayError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *GatewayError
		expected string
	}{
		{
			name: "error with provider",
			err: &GatewayError{
				Type:     ErrorTypeProvider,
				Message:  "upstream error",
				Provider: "openai",
			},
			expected: "[openai] provider_error: upstream error",
		},
		{
			name: "error without provider",
			err: &GatewayError{
				Type:    ErrorTypeInvalidRequest,
				Message: "bad request",
			},
			expected: "invalid_request_error: bad request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestGatewayError_Unwrap(t *testing.T) {
	originalErr := errors.New("original error")
	gatewayErr := &GatewayError{Type: ErrorTypeProvider, Message: "wrapped", Err: originalErr}

	if !errors.Is(gatewayErr, originalErr) {
		t.Errorf("errors.Is() = false, want true")
	}
}

func TestGatewayError_HTTPStatusCode(t *testing.T) {
	tests := []struct {
		name     string
		err      *GatewayError
		expected int
	}{
		{"explicit status code", &GatewayError{Type: ErrorTypeProvider, StatusCode: http.StatusServiceUnavailable}, http.StatusServiceUnavailable},
		{"unavailable default", &GatewayError{Type: ErrorTypeUnavailable}, http.StatusServiceUnavailable},
		{"rate limit default", &GatewayError{Type: ErrorTypeRateLimit}, http.StatusTooManyRequests},
		{"invalid request default", &GatewayError{Type: ErrorTypeInvalidRequest}, http.StatusBadRequest},
		{"authentication default", &GatewayError{Type: ErrorTypeAuthentication}, http.StatusUnauthorized},
		{"provider error default", &GatewayError{Type: ErrorTypeProvider}, http.StatusBadGateway},
		{"unknown error type", &GatewayError{Type: ErrorType("unknown")}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.HTTPStatusCode(); got != tt.expected {
				t.Errorf("HTTPStatusCode() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestParseProviderError(t *testing.T) {
	tests := []struct {
		name        string
		statusCode  int
		body        string
		wantType    ErrorType
		wantStatus  int
		wantMessage string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"bad key"}}`, ErrorTypeAuthentication, http.StatusUnauthorized, "bad key"},
		{"forbidden", http.StatusForbidden, `{"error":{"message":"denied"}}`, ErrorTypeAuthentication, http.StatusUnauthorized, "denied"},
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, ErrorTypeRateLimit, http.StatusTooManyRequests, "slow down"},
		{"client error keeps status", http.StatusUnprocessableEntity, `{"error":{"message":"bad field"}}`, ErrorTypeInvalidRequest, http.StatusUnprocessableEntity, "bad field"},
		{"server error", http.StatusInternalServerError, `{"error":{"message":"boom"}}`, ErrorTypeProvider, http.StatusBadGateway, "boom"},
		{"non-json body", http.StatusServiceUnavailable, "upstream down", ErrorTypeProvider, http.StatusBadGateway, "upstream down"},
		{"empty body", http.StatusBadGateway, "", ErrorTypeProvider, http.StatusBadGateway, "Bad Gateway"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ParseProviderError("deepseek", tt.statusCode, []byte(tt.body), nil)
			if err.Type != tt.wantType {
				t.Errorf("Type = %v, want %v", err.Type, tt.wantType)
			}
			if err.HTTPStatusCode() != tt.wantStatus {
				t.Errorf("HTTPStatusCode() = %v, want %v", err.HTTPStatusCode(), tt.wantStatus)
			}
			if err.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", err.Message, tt.wantMessage)
			}
			if err.Provider != "deepseek" {
				t.Errorf("Provider = %q, want deepseek", err.Provider)
			}
		})
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"unknown provider", NewUnavailableError("unknown"), "❌ Provider 'unknown' not available"},
		{"missing credential", NewNotConfiguredError("gemini"), "❌ Gemini client not available"},
		{"provider failure", NewProviderError("openai", http.StatusBadGateway, "quota exceeded", nil), "❌ OpenAI error: quota exceeded"},
		{"stream failure", AsStreamError("deepseek", errors.New("connection reset")), "❌ DeepSeek stream error: connection reset"},
		{"wrapped gateway error", fmt.Errorf("turn: %w", NewRateLimitError("deepseek", "slow down")), "❌ DeepSeek error: slow down"},
		{"plain error", errors.New("boom"), "❌ Error: boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.want {
				t.Errorf("UserMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAsStreamError_DoesNotMutateOriginal(t *testing.T) {
	orig := NewProviderError("openai", http.StatusBadGateway, "boom", nil)
	streamErr := AsStreamError("openai", orig)

	if orig.Stream {
		t.Error("original error was marked as stream error")
	}
	if !streamErr.Stream {
		t.Error("AsStreamError() did not set Stream")
	}
}

func TestIsSentinel(t *testing.T) {
	if !IsSentinel(UserMessage(NewUnavailableError("x"))) {
		t.Error("IsSentinel() = false for flattened error")
	}
	if IsSentinel("Hello there") {
		t.Error("IsSentinel() = true for an answer")
	}
}

func TestDisplayName(t *testing.T) {
	tests := map[string]string{
		"gemini":   "Gemini",
		"DeepSeek": "DeepSeek",
		"openai":   "OpenAI",
		"mistral":  "Mistral",
		"élan":     "Élan",
		"ünsal-ai": "Ünsal-ai",
		"":         "Provider",
	}
	for in, want := range tests {
		got := DisplayName(in)
		if got != want {
			t.Errorf("DisplayName(%q) = %q, want %q", in, got, want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("DisplayName(%q) = %q is not valid UTF-8", in, got)
		}
	}
}
