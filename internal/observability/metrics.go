// Package observability exposes Prometheus metrics for provider calls,
// chat turns and streamed chunks.
package observability

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"chatbridge/internal/core"
	"chatbridge/internal/llmclient"
)

const namespace = "chatbridge"

// Metrics holds every collector. Create one per registry.
type Metrics struct {
	gatherer prometheus.Gatherer

	providerRequests *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec
	inFlight         *prometheus.GaugeVec
	turns            *prometheus.CounterVec
	turnDuration     *prometheus.HistogramVec
	chunks           *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		gatherer: reg,
		providerRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Upstream provider calls by outcome.",
		}, []string{"provider", "model", "stream", "status"}),
		providerDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Time until an upstream call completed, or for streams until headers arrived.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"provider", "stream"}),
		inFlight: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "provider_requests_in_flight",
			Help:      "Upstream provider calls currently in progress.",
		}, []string{"provider"}),
		turns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_turns_total",
			Help:      "Chat turns served, by provider and outcome.",
		}, []string{"provider", "stream", "outcome"}),
		turnDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chat_turn_duration_seconds",
			Help:      "End-to-end chat turn latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider", "stream"}),
		chunks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_chunks_total",
			Help:      "Aggregated chunks written to streaming clients.",
		}, []string{"provider"}),
	}
}

// Hooks returns llmclient hooks that record provider call metrics.
func (m *Metrics) Hooks() llmclient.Hooks {
	return llmclient.Hooks{
		OnRequestStart: func(ctx context.Context, info llmclient.RequestInfo) context.Context {
			m.inFlight.WithLabelValues(info.Provider).Inc()
			return ctx
		},
		OnRequestEnd: func(_ context.Context, info llmclient.ResponseInfo) {
			m.inFlight.WithLabelValues(info.Provider).Dec()
			stream := strconv.FormatBool(info.Stream)
			m.providerRequests.WithLabelValues(info.Provider, info.Model, stream, statusLabel(info)).Inc()
			m.providerDuration.WithLabelValues(info.Provider, stream).Observe(info.Duration.Seconds())
		},
	}
}

// statusLabel is the HTTP status, or the error type when no response arrived.
func statusLabel(info llmclient.ResponseInfo) string {
	if info.StatusCode != 0 {
		return strconv.Itoa(info.StatusCode)
	}
	if info.Err == nil {
		return "ok"
	}
	var gwErr *core.GatewayError
	if errors.As(info.Err, &gwErr) {
		return string(gwErr.Type)
	}
	if errors.Is(info.Err, context.Canceled) || errors.Is(info.Err, context.DeadlineExceeded) {
		return "cancelled"
	}
	return "error"
}

// ObserveTurn records one finished chat turn.
func (m *Metrics) ObserveTurn(provider string, stream bool, outcome string, d time.Duration) {
	s := strconv.FormatBool(stream)
	m.turns.WithLabelValues(provider, s, outcome).Inc()
	m.turnDuration.WithLabelValues(provider, s).Observe(d.Seconds())
}

// AddChunks records n chunks sent to a streaming client.
func (m *Metrics) AddChunks(provider string, n int) {
	if n > 0 {
		m.chunks.WithLabelValues(provider).Add(float64(n))
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
