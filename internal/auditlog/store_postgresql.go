package auditlog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const insertTurnSQL = `
	INSERT INTO chat_turns (id, timestamp, duration_ns, provider, model, stream, outcome, error_type,
		conversation_id, request_id, chunk_count, message_chars, response_chars, data)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	ON CONFLICT (id) DO NOTHING`

// PostgreSQLStore implements LogStore for PostgreSQL databases.
type PostgreSQLStore struct {
	pool          *pgxpool.Pool
	retentionDays int
	stopCleanup   chan struct{}
	closeOnce     sync.Once
}

// NewPostgreSQLStore creates the chat_turns table if needed and starts
// retention cleanup when retentionDays is positive.
func NewPostgreSQLStore(ctx context.Context, pool *pgxpool.Pool, retentionDays int) (*PostgreSQLStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("connection pool is required")
	}

	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS chat_turns (
			id TEXT PRIMARY KEY,
			timestamp TIMESTAMPTZ NOT NULL,
			duration_ns BIGINT DEFAULT 0,
			provider TEXT,
			model TEXT,
			stream BOOLEAN DEFAULT FALSE,
			outcome TEXT,
			error_type TEXT,
			conversation_id TEXT,
			request_id TEXT,
			chunk_count INTEGER DEFAULT 0,
			message_chars INTEGER DEFAULT 0,
			response_chars INTEGER DEFAULT 0,
			data JSONB
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat_turns table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_turns_timestamp ON chat_turns(timestamp)",
		"CREATE INDEX IF NOT EXISTS idx_turns_provider ON chat_turns(provider)",
		"CREATE INDEX IF NOT EXISTS idx_turns_outcome ON chat_turns(outcome)",
		"CREATE INDEX IF NOT EXISTS idx_turns_conversation ON chat_turns(conversation_id)",
	}
	for _, idx := range indexes {
		if _, err := pool.Exec(ctx, idx); err != nil {
			slog.Warn("failed to create index", "error", err)
		}
	}

	store := &PostgreSQLStore{
		pool:          pool,
		retentionDays: retentionDays,
		stopCleanup:   make(chan struct{}),
	}
	if retentionDays > 0 {
		go RunCleanupLoop(store.stopCleanup, store.cleanup)
	}
	return store, nil
}

// WriteBatch sends all inserts in one pgx batch round trip.
func (s *PostgreSQLStore) WriteBatch(ctx context.Context, entries []*LogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(insertTurnSQL,
			e.ID, e.Timestamp, e.DurationNs, e.Provider, e.Model, e.Stream, e.Outcome, e.ErrorType,
			e.ConversationID, e.RequestID, e.ChunkCount, e.MessageChars, e.ResponseChars, marshalData(e))
	}

	results := s.pool.SendBatch(ctx, batch)
	for range entries {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("failed to insert chat turn: %w", err)
		}
	}
	return results.Close()
}

// Flush is a no-op; writes are synchronous.
func (s *PostgreSQLStore) Flush(_ context.Context) error {
	return nil
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (s *PostgreSQLStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopCleanup)
	})
	return nil
}

func (s *PostgreSQLStore) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	result, err := s.pool.Exec(ctx, "DELETE FROM chat_turns WHERE timestamp < $1", retentionCutoff(s.retentionDays))
	if err != nil {
		slog.Error("failed to clean up old chat turns", "error", err)
		return
	}
	if result.RowsAffected() > 0 {
		slog.Info("cleaned up old chat turns", "deleted", result.RowsAffected())
	}
}
