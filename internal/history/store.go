package history

import (
	"context"
	"errors"
	"sync"

	"chatbridge/internal/core"
)

// ErrInvalidSession is returned for an empty session ID.
var ErrInvalidSession = errors.New("session id is required")

// Store keeps histories keyed by session ID.
// Implementations must be safe for concurrent use.
type Store interface {
	// Load returns a snapshot of the session's messages, oldest first.
	// An unknown session yields an empty slice.
	Load(ctx context.Context, session string) ([]core.Message, error)

	// Append adds msgs to the end of the session's history.
	Append(ctx context.Context, session string, msgs ...core.Message) error

	// Clear drops the session's history.
	Clear(ctx context.Context, session string) error

	// Close releases any resources held by the store.
	Close() error
}

// MemoryStore keeps histories in process memory.
type MemoryStore struct {
	mu          sync.Mutex
	sessions    map[string]*History
	maxMessages int
}

// NewMemoryStore creates an in-memory store. maxMessages caps each history,
// dropping the oldest messages; zero means unbounded.
func NewMemoryStore(maxMessages int) *MemoryStore {
	return &MemoryStore{
		sessions:    make(map[string]*History),
		maxMessages: maxMessages,
	}
}

func (s *MemoryStore) get(session string, create bool) *History {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.sessions[session]
	if !ok && create {
		h = New()
		s.sessions[session] = h
	}
	return h
}

func (s *MemoryStore) Load(_ context.Context, session string) ([]core.Message, error) {
	if session == "" {
		return nil, ErrInvalidSession
	}
	h := s.get(session, false)
	if h == nil {
		return []core.Message{}, nil
	}
	return h.Snapshot(), nil
}

func (s *MemoryStore) Append(_ context.Context, session string, msgs ...core.Message) error {
	if session == "" {
		return ErrInvalidSession
	}
	h := s.get(session, true)
	h.AppendMessages(msgs...)
	h.keepLast(s.maxMessages)
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, session string) error {
	if session == "" {
		return ErrInvalidSession
	}
	s.mu.Lock()
	delete(s.sessions, session)
	s.mu.Unlock()
	return nil
}

// Sessions returns the number of sessions held.
func (s *MemoryStore) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *MemoryStore) Close() error { return nil }
