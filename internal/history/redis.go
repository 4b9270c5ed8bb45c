package history

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"chatbridge/internal/core"
)

const (
	// DefaultRedisKeyPrefix namespaces history lists in Redis.
	DefaultRedisKeyPrefix = "chatbridge:history:"

	// DefaultRedisTTL expires idle conversations.
	DefaultRedisTTL = 24 * time.Hour
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	// URL is the Redis connection URL (e.g. "redis://:password@host:6379/0")
	URL       string
	KeyPrefix string
	// TTL is refreshed on every append.
	TTL         time.Duration
	MaxMessages int
}

// RedisStore keeps each history as a Redis list of JSON messages so several
// gateway instances can share conversations.
type RedisStore struct {
	client      *redis.Client
	prefix      string
	ttl         time.Duration
	maxMessages int
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	s := NewRedisStoreWithClient(client, cfg)
	slog.Info("redis history store connected", "prefix", s.prefix, "ttl", s.ttl)
	return s, nil
}

// NewRedisStoreWithClient wraps an existing client. The store owns it and
// closes it on Close.
func NewRedisStoreWithClient(client *redis.Client, cfg RedisConfig) *RedisStore {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultRedisKeyPrefix
	}
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = DefaultRedisTTL
	}
	return &RedisStore{
		client:      client,
		prefix:      prefix,
		ttl:         ttl,
		maxMessages: cfg.MaxMessages,
	}
}

func (s *RedisStore) key(session string) string {
	return s.prefix + session
}

func (s *RedisStore) Load(ctx context.Context, session string) ([]core.Message, error) {
	if session == "" {
		return nil, ErrInvalidSession
	}
	raw, err := s.client.LRange(ctx, s.key(session), 0, -1).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to load history from redis: %w", err)
	}

	msgs := make([]core.Message, 0, len(raw))
	for _, item := range raw {
		var m core.Message
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			return nil, fmt.Errorf("failed to parse history entry: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func (s *RedisStore) Append(ctx context.Context, session string, msgs ...core.Message) error {
	if session == "" {
		return ErrInvalidSession
	}
	if len(msgs) == 0 {
		return nil
	}

	values := make([]any, 0, len(msgs))
	for _, m := range msgs {
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("failed to marshal message: %w", err)
		}
		values = append(values, data)
	}

	key := s.key(session)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, values...)
		if s.maxMessages > 0 {
			pipe.LTrim(ctx, key, int64(-s.maxMessages), -1)
		}
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append history in redis: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, session string) error {
	if session == "" {
		return ErrInvalidSession
	}
	if err := s.client.Del(ctx, s.key(session)).Err(); err != nil {
		return fmt.Errorf("failed to clear history in redis: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
