// Package core provides core types and interfaces for the chat gateway.
package core

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

// SentinelPrefix marks user-visible failure text produced in place of an answer.
const SentinelPrefix = "❌ "

// ErrorType represents the type of error that occurred
type ErrorType string

const (
	// ErrorTypeUnavailable indicates a provider that is not registered or not configured
	ErrorTypeUnavailable ErrorType = "unavailable"
	// ErrorTypeProvider indicates an upstream provider error (5xx or transport)
	ErrorTypeProvider ErrorType = "provider_error"
	// ErrorTypeRateLimit indicates a rate limit error (429)
	ErrorTypeRateLimit ErrorType = "rate_limit_error"
	// ErrorTypeInvalidRequest indicates a client error (4xx)
	ErrorTypeInvalidRequest ErrorType = "invalid_request_error"
	// ErrorTypeAuthentication indicates an authentication error (401)
	ErrorTypeAuthentication ErrorType = "authentication_error"
)

// GatewayError is the base error type for all gateway errors
type GatewayError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	StatusCode int       `json:"status_code"`
	Provider   string    `json:"provider,omitempty"`
	// Stream marks failures raised while a streaming call was in flight.
	Stream bool `json:"-"`
	// Original error for debugging (not exposed to clients)
	Err error `json:"-"`
}

// Error implements the error interface
func (e *GatewayError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Provider, e.Type, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the error unwrapping interface
func (e *GatewayError) Unwrap() error {
	return e.Err
}

// HTTPStatusCode returns the appropriate HTTP status code for this error
func (e *GatewayError) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}
	switch e.Type {
	case ErrorTypeUnavailable:
		return http.StatusServiceUnavailable
	case ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	case ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case ErrorTypeProvider:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// NewUnavailableError reports a provider name that does not resolve to a registered adapter.
func NewUnavailableError(provider string) *GatewayError {
	return &GatewayError{
		Type:     ErrorTypeUnavailable,
		Message:  fmt.Sprintf("provider '%s' not available", provider),
		Provider: provider,
	}
}

// NewNotConfiguredError reports an adapter that was asked to call out without a credential.
func NewNotConfiguredError(provider string) *GatewayError {
	return &GatewayError{
		Type:     ErrorTypeUnavailable,
		Message:  "client not available",
		Provider: provider,
		Err:      ErrNotConfigured,
	}
}

// ErrNotConfigured is wrapped by errors for adapters built without a credential.
var ErrNotConfigured = errors.New("client not configured")

// NewProviderError creates a new provider error (upstream 5xx)
func NewProviderError(provider string, statusCode int, message string, err error) *GatewayError {
	return &GatewayError{
		Type:       ErrorTypeProvider,
		Message:    message,
		StatusCode: statusCode,
		Provider:   provider,
		Err:        err,
	}
}

// NewRateLimitError creates a new rate limit error (429)
func NewRateLimitError(provider string, message string) *GatewayError {
	return &GatewayError{
		Type:       ErrorTypeRateLimit,
		Message:    message,
		StatusCode: http.StatusTooManyRequests,
		Provider:   provider,
	}
}

// NewInvalidRequestError creates a new invalid request error (400)
func NewInvalidRequestError(message string, err error) *GatewayError {
	return &GatewayError{
		Type:       ErrorTypeInvalidRequest,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Err:        err,
	}
}

// NewAuthenticationError creates a new authentication error (401)
func NewAuthenticationError(provider string, message string) *GatewayError {
	return &GatewayError{
		Type:       ErrorTypeAuthentication,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
		Provider:   provider,
	}
}

// ParseProviderError maps an upstream error response to a GatewayError.
// OpenAI-compatible and Gemini bodies both carry error.message.
func ParseProviderError(provider string, statusCode int, body []byte, originalErr error) *GatewayError {
	message := strings.TrimSpace(string(body))
	if gjson.ValidBytes(body) {
		if m := gjson.GetBytes(body, "error.message"); m.Exists() && m.String() != "" {
			message = m.String()
		}
	}
	if message == "" {
		message = http.StatusText(statusCode)
	}

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return NewAuthenticationError(provider, message)
	case statusCode == http.StatusTooManyRequests:
		return NewRateLimitError(provider, message)
	case statusCode >= 400 && statusCode < 500:
		err := NewInvalidRequestError(message, originalErr)
		err.StatusCode = statusCode
		err.Provider = provider
		return err
	default:
		return NewProviderError(provider, http.StatusBadGateway, message, originalErr)
	}
}

var displayNames = map[string]string{
	"gemini":   "Gemini",
	"deepseek": "DeepSeek",
	"openai":   "OpenAI",
	"groq":     "Groq",
	"xai":      "xAI",
}

// DisplayName returns the human-facing name of a provider.
func DisplayName(provider string) string {
	if name, ok := displayNames[strings.ToLower(provider)]; ok {
		return name
	}
	if provider == "" {
		return "Provider"
	}
	r, size := utf8.DecodeRuneInString(provider)
	return string(unicode.ToUpper(r)) + provider[size:]
}

// UserMessage flattens err into the text shown to a chat user in place of an
// answer. The result always starts with SentinelPrefix.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var gwErr *GatewayError
	if !errors.As(err, &gwErr) {
		return SentinelPrefix + "Error: " + err.Error()
	}
	switch {
	case errors.Is(gwErr, ErrNotConfigured):
		return fmt.Sprintf("%s%s client not available", SentinelPrefix, DisplayName(gwErr.Provider))
	case gwErr.Type == ErrorTypeUnavailable:
		return fmt.Sprintf("%sProvider '%s' not available", SentinelPrefix, gwErr.Provider)
	case gwErr.Provider == "":
		return SentinelPrefix + "Error: " + gwErr.Message
	case gwErr.Stream:
		return fmt.Sprintf("%s%s stream error: %s", SentinelPrefix, DisplayName(gwErr.Provider), gwErr.Message)
	default:
		return fmt.Sprintf("%s%s error: %s", SentinelPrefix, DisplayName(gwErr.Provider), gwErr.Message)
	}
}

// IsSentinel reports whether text is a flattened failure rather than an answer.
func IsSentinel(text string) bool {
	return strings.HasPrefix(text, SentinelPrefix)
}

// AsStreamError marks err as raised during a stream. Non-gateway errors are
// wrapped as provider errors for the given provider.
func AsStreamError(provider string, err error) *GatewayError {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		cp := *gwErr
		cp.Stream = true
		return &cp
	}
	e := NewProviderError(provider, http.StatusBadGateway, err.Error(), err)
	e.Stream = true
	return e
}
