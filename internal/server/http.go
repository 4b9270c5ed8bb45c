// Package server provides the HTTP and WebSocket front end of the chat bridge.
package server

import (
	"context"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"chatbridge/config"
)

const defaultBodyLimit = "10M"

// Server wraps the Echo server
type Server struct {
	echo    *echo.Echo
	handler *Handler
}

// Config holds server configuration options
type Config struct {
	AllowedOrigins []string
	BodyLimit      string
	RateLimit      config.RateLimitConfig
	// ChatTimeout bounds each provider call. Zero disables it.
	ChatTimeout time.Duration

	MetricsEnabled  bool
	MetricsEndpoint string
}

// ConfigFrom maps application configuration onto server options.
func ConfigFrom(cfg *config.Config) *Config {
	return &Config{
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		BodyLimit:       cfg.Server.BodyLimit,
		RateLimit:       cfg.Server.RateLimit,
		ChatTimeout:     cfg.Server.ChatTimeout,
		MetricsEnabled:  cfg.Metrics.Enabled,
		MetricsEndpoint: cfg.Metrics.Endpoint,
	}
}

// New creates the HTTP server. A nil cfg uses defaults.
func New(handler *Handler, cfg *Config) *Server {
	if cfg == nil {
		cfg = &Config{}
	}
	handler.chatTimeout = cfg.ChatTimeout
	handler.allowedOrigins = cfg.AllowedOrigins

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler

	// order matters: ids first so every later log line carries one
	e.Use(requestID())
	e.Use(requestLogger())
	e.Use(middleware.Recover())
	e.Use(secureHeaders())
	e.Use(cors(cfg.AllowedOrigins))

	bodyLimit := cfg.BodyLimit
	if bodyLimit == "" {
		bodyLimit = defaultBodyLimit
	}
	e.Use(middleware.BodyLimit(bodyLimit))

	if cfg.RateLimit.Enabled {
		e.Use(rateLimiter(cfg.RateLimit))
	}

	e.GET("/health", handler.Health)
	if cfg.MetricsEnabled && handler.metrics != nil {
		e.GET(metricsPath(cfg.MetricsEndpoint), echo.WrapHandler(handler.metrics.Handler()))
	}

	api := e.Group("/api/v1")
	api.POST("/chat", handler.Chat)
	api.GET("/chat/ws", handler.ChatWebSocket)
	api.GET("/providers", handler.Providers)
	api.POST("/recommendations", handler.Recommendations)
	api.POST("/comparison", handler.Comparison)
	api.GET("/conversations/:id", handler.GetConversation)
	api.DELETE("/conversations/:id", handler.DeleteConversation)

	return &Server{
		echo:    e,
		handler: handler,
	}
}

// metricsPath normalizes the configured path. Paths under /api are refused
// so metrics can never shadow an API route.
func metricsPath(endpoint string) string {
	if endpoint == "" {
		return "/metrics"
	}
	p := path.Clean("/" + endpoint)
	if p == "/" || p == "/api" || strings.HasPrefix(p, "/api/") {
		return "/metrics"
	}
	return p
}

// Start starts the HTTP server on the given address
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// ServeHTTP implements the http.Handler interface, allowing Server to be used with httptest
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
