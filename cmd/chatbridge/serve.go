package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatbridge/config"
	"chatbridge/internal/app"
	"chatbridge/internal/logging"
)

const shutdownTimeout = 30 * time.Second

// ServeCmd runs the HTTP server until SIGINT or SIGTERM.
type ServeCmd struct {
	Port string `help:"Override the listen port"`
}

// Run executes the serve command.
func (c *ServeCmd) Run(cli *CLI) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if c.Port != "" {
		cfg.Server.Port = c.Port
	}

	if _, err := logging.Setup(cfg.Logging.Format, cfg.Logging.Level, os.Stderr); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, app.Config{AppConfig: cfg})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.Start(":" + cfg.Server.Port)
	}()

	select {
	case err := <-errCh:
		// the server never came up; release what New acquired
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if shutdownErr := a.Shutdown(shutdownCtx); shutdownErr != nil {
			slog.Error("shutdown after start failure", "error", shutdownErr)
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
