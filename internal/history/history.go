// Package history keeps per-session conversation logs.
package history

import (
	"sync"

	"chatbridge/internal/core"
)

// History is an ordered, append-only message log for one conversation.
// Messages are never reordered; Clear is the only way to remove them.
type History struct {
	mu       sync.RWMutex
	messages []core.Message
}

// New returns an empty history, optionally seeded with msgs.
func New(msgs ...core.Message) *History {
	h := &History{}
	h.messages = append(h.messages, msgs...)
	return h
}

// Append adds a message at the end.
func (h *History) Append(role core.Role, content string) {
	h.mu.Lock()
	h.messages = append(h.messages, core.Message{Role: role, Content: content})
	h.mu.Unlock()
}

// AppendMessages adds msgs at the end in order.
func (h *History) AppendMessages(msgs ...core.Message) {
	h.mu.Lock()
	h.messages = append(h.messages, msgs...)
	h.mu.Unlock()
}

// Clear removes every message.
func (h *History) Clear() {
	h.mu.Lock()
	h.messages = nil
	h.mu.Unlock()
}

// Snapshot returns a copy of the messages, oldest first. Later appends do
// not affect a returned snapshot.
func (h *History) Snapshot() []core.Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]core.Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// Len returns the number of messages.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.messages)
}

// keepLast drops the oldest messages beyond n. n <= 0 keeps everything.
func (h *History) keepLast(n int) {
	if n <= 0 {
		return
	}
	h.mu.Lock()
	if extra := len(h.messages) - n; extra > 0 {
		h.messages = append([]core.Message(nil), h.messages[extra:]...)
	}
	h.mu.Unlock()
}
