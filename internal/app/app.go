// Package app provides the main application struct for centralized dependency management
// and lifecycle control of the chat bridge.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"chatbridge/config"
	"chatbridge/internal/auditlog"
	"chatbridge/internal/history"
	"chatbridge/internal/observability"
	"chatbridge/internal/prompt"
	"chatbridge/internal/providers"
	"chatbridge/internal/providers/deepseek"
	"chatbridge/internal/providers/gemini"
	"chatbridge/internal/providers/groq"
	"chatbridge/internal/providers/openai"
	"chatbridge/internal/providers/xai"
	"chatbridge/internal/server"
	"chatbridge/internal/version"
)

// App represents the main application with all its dependencies.
// It provides centralized lifecycle management for all components.
type App struct {
	config    *config.Config
	providers *providers.InitResult
	history   history.Store
	audit     *auditlog.Result
	metrics   *observability.Metrics
	server    *server.Server

	shutdownMu sync.Mutex
	shutdown   bool
}

// Config holds the configuration options for creating an App.
type Config struct {
	// AppConfig is the configuration produced by config.Load.
	AppConfig *config.Config

	// Factory builds provider adapters. Nil uses NewFactory.
	Factory *providers.ProviderFactory
}

// NewFactory returns a factory that knows every built-in provider type.
func NewFactory() *providers.ProviderFactory {
	f := providers.NewProviderFactory()
	f.Add(gemini.Registration)
	f.Add(deepseek.Registration)
	f.Add(openai.Registration)
	f.Add(groq.Registration)
	f.Add(xai.Registration)
	return f
}

// New creates a new App with all dependencies initialized.
// The caller must call Shutdown to release resources.
func New(ctx context.Context, cfg Config) (*App, error) {
	if cfg.AppConfig == nil {
		return nil, fmt.Errorf("app config is required")
	}
	appCfg := cfg.AppConfig

	factory := cfg.Factory
	if factory == nil {
		factory = NewFactory()
	}

	app := &App{config: appCfg}

	// hooks must be in place before adapters are built
	if appCfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		app.metrics = observability.New(reg)
		factory.SetHooks(app.metrics.Hooks())
	}

	providerResult, err := providers.Init(appCfg, factory)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize providers: %w", err)
	}
	app.providers = providerResult

	catalog, err := prompt.LoadCatalog(appCfg.Prompt.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	historyStore, err := history.NewStore(ctx, appCfg.History)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize history store: %w", err)
	}
	app.history = historyStore

	auditResult, err := auditlog.New(ctx, appCfg)
	if err != nil {
		if closeErr := app.history.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize turn logging: %w (also: history close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize turn logging: %w", err)
	}
	app.audit = auditResult

	app.logStartupInfo(len(catalog.Products))

	handler := server.NewHandler(server.Deps{
		Gateway: providerResult.Gateway,
		Prompts: prompt.NewBuilder(appCfg.Prompt.StoreName, catalog),
		History: historyStore,
		Audit:   auditResult.Logger,
		Metrics: app.metrics,
		Version: version.Version,
	})
	app.server = server.New(handler, server.ConfigFrom(appCfg))

	return app, nil
}

// Gateway returns the provider gateway.
func (a *App) Gateway() *providers.Gateway {
	if a.providers == nil {
		return nil
	}
	return a.providers.Gateway
}

// Handler returns the HTTP handler serving the API.
func (a *App) Handler() http.Handler {
	return a.server
}

// Start starts the HTTP server on the given address.
// This is a blocking call that returns when the server stops.
func (a *App) Start(addr string) error {
	if a.server == nil {
		return fmt.Errorf("server is not initialized")
	}
	slog.Info("starting server", "address", addr)
	if err := a.server.Start(addr); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			slog.Info("server stopped gracefully")
			return nil
		}
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}

// Shutdown gracefully tears down app components in dependency order:
// the HTTP server first so no new turns start, then the history store,
// then the turn logger, which flushes pending entries.
//
// Shutdown is idempotent. It attempts every step and returns the joined
// failures.
func (a *App) Shutdown(ctx context.Context) error {
	a.shutdownMu.Lock()
	if a.shutdown {
		a.shutdownMu.Unlock()
		return nil
	}
	a.shutdown = true
	a.shutdownMu.Unlock()

	slog.Info("shutting down application...")

	var errs []error

	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			slog.Error("server shutdown error", "error", err)
			errs = append(errs, fmt.Errorf("server shutdown: %w", err))
		}
	}

	if a.history != nil {
		if err := a.history.Close(); err != nil {
			slog.Error("history store close error", "error", err)
			errs = append(errs, fmt.Errorf("history close: %w", err))
		}
	}

	if a.audit != nil {
		if err := a.audit.Close(); err != nil {
			slog.Error("turn logger close error", "error", err)
			errs = append(errs, fmt.Errorf("audit close: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}

	slog.Info("application shutdown complete")
	return nil
}

func (a *App) logStartupInfo(products int) {
	cfg := a.config

	slog.Info("starting chatbridge",
		"version", version.Version,
		"commit", version.Commit,
		"build_date", version.Date,
	)

	if cfg.Metrics.Enabled {
		slog.Info("prometheus metrics enabled", "endpoint", cfg.Metrics.Endpoint)
	} else {
		slog.Info("prometheus metrics disabled")
	}

	if cfg.Server.RateLimit.Enabled {
		slog.Info("rate limiting enabled",
			"requests", cfg.Server.RateLimit.Requests,
			"window", cfg.Server.RateLimit.Window,
		)
	}

	slog.Info("history configured", "backend", cfg.History.Backend, "max_messages", cfg.History.MaxMessages)

	if cfg.Audit.Enabled {
		slog.Info("turn logging enabled",
			"storage_type", cfg.Storage.Type,
			"log_bodies", cfg.Audit.LogBodies,
			"retention_days", cfg.Audit.RetentionDays,
		)
	} else {
		slog.Info("turn logging disabled")
	}

	slog.Info("catalog loaded", "path", cfg.Prompt.CatalogPath, "products", products)
}
