// Package auditlog records every chat turn to a database. Entries are
// buffered in memory and written in batches by a background goroutine.
package auditlog

import (
	"context"
	"time"

	"github.com/google/uuid"

	"chatbridge/config"
)

// Outcome values for LogEntry.Outcome.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// LogStore defines the interface for turn log storage backends.
// Implementations must be safe for concurrent use.
type LogStore interface {
	// WriteBatch writes multiple entries. Called by the Logger on flush.
	WriteBatch(ctx context.Context, entries []*LogEntry) error

	// Flush forces any pending writes to complete.
	Flush(ctx context.Context) error

	// Close stops background work. The underlying connection is owned by
	// the storage layer and is not closed here.
	Close() error
}

// LogEntry is one chat turn. Scalar fields are stored as columns so they
// can be filtered on.
type LogEntry struct {
	ID         string    `json:"id" bson:"_id"`
	Timestamp  time.Time `json:"timestamp" bson:"timestamp"`
	DurationNs int64     `json:"duration_ns" bson:"duration_ns"`

	Provider string `json:"provider" bson:"provider"`
	Model    string `json:"model,omitempty" bson:"model,omitempty"`
	Stream   bool   `json:"stream" bson:"stream"`

	// Outcome is OutcomeSuccess or OutcomeError.
	Outcome   string `json:"outcome" bson:"outcome"`
	ErrorType string `json:"error_type,omitempty" bson:"error_type,omitempty"`

	ConversationID string `json:"conversation_id,omitempty" bson:"conversation_id,omitempty"`
	RequestID      string `json:"request_id,omitempty" bson:"request_id,omitempty"`

	ChunkCount    int `json:"chunk_count,omitempty" bson:"chunk_count,omitempty"`
	MessageChars  int `json:"message_chars" bson:"message_chars"`
	ResponseChars int `json:"response_chars" bson:"response_chars"`

	Data *LogData `json:"data,omitempty" bson:"data,omitempty"`
}

// LogData holds the free-form part of an entry. Bodies are only present
// when body logging is enabled and are PII-redacted.
type LogData struct {
	ClientIP  string `json:"client_ip,omitempty" bson:"client_ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty" bson:"user_agent,omitempty"`
	Message   string `json:"message,omitempty" bson:"message,omitempty"`
	Response  string `json:"response,omitempty" bson:"response,omitempty"`
}

// NewEntry starts an entry for a turn beginning now.
func NewEntry(provider string, stream bool) *LogEntry {
	return &LogEntry{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Provider:  provider,
		Stream:    stream,
		Outcome:   OutcomeSuccess,
	}
}

// Finish stamps the duration since Timestamp.
func (e *LogEntry) Finish() {
	e.DurationNs = time.Since(e.Timestamp).Nanoseconds()
}

// Config holds turn logging configuration
type Config struct {
	Enabled       bool
	LogBodies     bool
	BufferSize    int
	FlushInterval time.Duration
	RetentionDays int
}

// ConfigFrom converts the application config, applying defaults.
func ConfigFrom(cfg config.AuditConfig) Config {
	c := Config{
		Enabled:       cfg.Enabled,
		LogBodies:     cfg.LogBodies,
		BufferSize:    cfg.BufferSize,
		FlushInterval: cfg.FlushInterval,
		RetentionDays: cfg.RetentionDays,
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 1000
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = 5 * time.Second
	}
	return c
}
