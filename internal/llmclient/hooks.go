package llmclient

import (
	"context"
	"time"
)

// RequestInfo describes an outgoing provider call.
type RequestInfo struct {
	Provider string
	Model    string
	Endpoint string
	Stream   bool
}

// ResponseInfo describes the outcome of a provider call. For streams it is
// reported once the response headers arrive.
type ResponseInfo struct {
	Provider   string
	Model      string
	Endpoint   string
	Stream     bool
	StatusCode int
	Duration   time.Duration
	Err        error
}

// Hooks lets callers observe provider traffic without wrapping the client.
// Both callbacks are optional.
type Hooks struct {
	// OnRequestStart runs before the first attempt. The returned context is
	// used for the call.
	OnRequestStart func(ctx context.Context, info RequestInfo) context.Context
	// OnRequestEnd runs after the final attempt.
	OnRequestEnd func(ctx context.Context, info ResponseInfo)
}

func (h Hooks) start(ctx context.Context, info RequestInfo) context.Context {
	if h.OnRequestStart == nil {
		return ctx
	}
	if next := h.OnRequestStart(ctx, info); next != nil {
		return next
	}
	return ctx
}

func (h Hooks) end(ctx context.Context, info RequestInfo, status int, started time.Time, err error) {
	if h.OnRequestEnd == nil {
		return
	}
	h.OnRequestEnd(ctx, ResponseInfo{
		Provider:   info.Provider,
		Model:      info.Model,
		Endpoint:   info.Endpoint,
		Stream:     info.Stream,
		StatusCode: status,
		Duration:   time.Since(started),
		Err:        err,
	})
}
