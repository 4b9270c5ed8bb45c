package core

// Role tags the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Message represents a single message in a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the provider-neutral input of a chat turn.
type ChatRequest struct {
	// Message is the new user message for this turn.
	Message string
	// SystemPrompt is optional; adapters prepend it as a system message or
	// fold it into the prompt body.
	SystemPrompt string
	// History is prior conversation, oldest first. Adapters never modify it.
	History []Message
}

// Messages returns the role-tagged message list for providers with a
// system-role concept: system prompt, history, then the new user message.
func (r *ChatRequest) Messages() []Message {
	msgs := make([]Message, 0, len(r.History)+2)
	if r.SystemPrompt != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: r.SystemPrompt})
	}
	msgs = append(msgs, r.History...)
	msgs = append(msgs, Message{Role: RoleUser, Content: r.Message})
	return msgs
}

// Delta is one incremental fragment of a provider stream, or the terminal
// failure of that stream when Err is set.
type Delta struct {
	Text string
	Err  error
}

// StreamChunk is an aggregated, client-facing unit of streamed text.
type StreamChunk struct {
	Text string
	// Index increments per emitted chunk starting at 0.
	Index int
	// DeltaCount is the number of provider deltas consumed when the chunk was emitted.
	DeltaCount int
	IsFinal    bool
	// Err is set on the final chunk of a turn that failed.
	Err error
}
