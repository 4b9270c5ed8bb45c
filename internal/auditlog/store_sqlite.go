package auditlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// SQLite allows 999 bound parameters per statement; batches are chunked
// to stay under it.
const (
	maxSQLiteParams    = 999
	columnsPerEntry    = 14
	maxEntriesPerBatch = maxSQLiteParams / columnsPerEntry
)

// SQLiteStore implements LogStore for SQLite databases.
type SQLiteStore struct {
	db            *sql.DB
	retentionDays int
	stopCleanup   chan struct{}
	closeOnce     sync.Once
}

// NewSQLiteStore creates the chat_turns table if needed and starts
// retention cleanup when retentionDays is positive.
func NewSQLiteStore(db *sql.DB, retentionDays int) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS chat_turns (
			id TEXT PRIMARY KEY,
			timestamp DATETIME NOT NULL,
			duration_ns INTEGER DEFAULT 0,
			provider TEXT,
			model TEXT,
			stream INTEGER DEFAULT 0,
			outcome TEXT,
			error_type TEXT,
			conversation_id TEXT,
			request_id TEXT,
			chunk_count INTEGER DEFAULT 0,
			message_chars INTEGER DEFAULT 0,
			response_chars INTEGER DEFAULT 0,
			data JSON
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
		if _, err := db.Exec(idx); err != nil {
			slog.Warn("failed to create index", "error", err)
		}
	}

	store := &SQLiteStore{
		db:            db,
		retentionDays: retentionDays,
		stopCleanup:   make(chan struct{}),
	}
	if retentionDays > 0 {
		go RunCleanupLoop(store.stopCleanup, store.cleanup)
	}
	return store, nil
}

// WriteBatch inserts entries with multi-row INSERTs. Duplicate ids are ignored.
func (s *SQLiteStore) WriteBatch(ctx context.Context, entries []*LogEntry) error {
	for i := 0; i < len(entries); i += maxEntriesPerBatch {
		chunk := entries[i:min(i+maxEntriesPerBatch, len(entries))]

		placeholders := make([]string, len(chunk))
		values := make([]any, 0, len(chunk)*columnsPerEntry)
		for j, e := range chunk {
			placeholders[j] = "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"

			stream := 0
			if e.Stream {
				stream = 1
			}
			values = append(values,
				e.ID,
				e.Timestamp.UTC().Format(time.RFC3339Nano),
				e.DurationNs,
				e.Provider,
				e.Model,
				stream,
				e.Outcome,
				e.ErrorType,
				e.ConversationID,
				e.RequestID,
				e.ChunkCount,
				e.MessageChars,
				e.ResponseChars,
				marshalData(e),
			)
		}

		query := `INSERT OR IGNORE INTO chat_turns (id, timestamp, duration_ns, provider, model, stream,
			outcome, error_type, conversation_id, request_id, chunk_count, message_chars, response_chars, data) VALUES ` +
			strings.Join(placeholders, ",")
		if _, err := s.db.ExecContext(ctx, query, values...); err != nil {
			return fmt.Errorf("failed to insert chat turns batch %d: %w", i/maxEntriesPerBatch, err)
		}
	}
	return nil
}

// Flush is a no-op; writes are synchronous.
func (s *SQLiteStore) Flush(_ context.Context) error {
	return nil
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (s *SQLiteStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopCleanup)
	})
	return nil
}

func (s *SQLiteStore) cleanup() {
	cutoff := retentionCutoff(s.retentionDays).Format(time.RFC3339Nano)

	result, err := s.db.Exec("DELETE FROM chat_turns WHERE timestamp < ?", cutoff)
	if err != nil {
		slog.Error("failed to clean up old chat turns", "error", err)
		return
	}
	if n, err := result.RowsAffected(); err == nil && n > 0 {
		slog.Info("cleaned up old chat turns", "deleted", n)
	}
}

// marshalData returns the JSON for e.Data, or nil (SQL NULL) when absent.
func marshalData(e *LogEntry) any {
	if e.Data == nil {
		return nil
	}
	b, err := json.Marshal(e.Data)
	if err != nil {
		slog.Warn("failed to marshal turn data", "error", err, "id", e.ID)
		return nil
	}
	return string(b)
}
