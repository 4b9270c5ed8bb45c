package history

import (
	"context"
	"fmt"
	"log/slog"

	"chatbridge/config"
)

// NewStore builds the store selected by cfg.Backend.
func NewStore(ctx context.Context, cfg config.HistoryConfig) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		slog.Info("using in-memory history store", "max_messages", cfg.MaxMessages)
		return NewMemoryStore(cfg.MaxMessages), nil
	case "redis":
		if cfg.Redis.URL == "" {
			return nil, fmt.Errorf("history backend redis requires a redis url")
		}
		return NewRedisStore(ctx, RedisConfig{
			URL:         cfg.Redis.URL,
			KeyPrefix:   cfg.Redis.KeyPrefix,
			TTL:         cfg.TTL,
			MaxMessages: cfg.MaxMessages,
		})
	default:
		return nil, fmt.Errorf("unknown history backend: %s", cfg.Backend)
	}
}
