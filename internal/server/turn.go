package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"chatbridge/internal/auditlog"
	"chatbridge/internal/core"
)

const historyWriteTimeout = 5 * time.Second

type clientInfo struct {
	ip        string
	userAgent string
}

// turn is the state of one chat exchange from request to log entry.
type turn struct {
	body     chatRequest
	req      *core.ChatRequest
	provider string
	entry    *auditlog.LogEntry
}

func (h *Handler) newTurn(ctx context.Context, body chatRequest, client clientInfo) *turn {
	provider := body.Provider
	if provider == "" {
		provider = h.gateway.Primary()
	}

	req := &core.ChatRequest{
		Message:      body.Message,
		SystemPrompt: h.systemPrompt(body),
	}
	if body.ConversationID != "" {
		msgs, err := h.history.Load(ctx, body.ConversationID)
		if err != nil {
			slog.Warn("failed to load conversation history",
				"conversation_id", body.ConversationID,
				"error", err,
			)
		}
		req.History = msgs
	}

	entry := auditlog.NewEntry(provider, body.Stream)
	entry.RequestID = core.GetRequestID(ctx)
	entry.ConversationID = body.ConversationID
	entry.MessageChars = utf8.RuneCountInString(body.Message)
	entry.Data = &auditlog.LogData{ClientIP: client.ip, UserAgent: client.userAgent}
	if h.logBodies {
		entry.Data.Message = auditlog.Redact(body.Message)
	}

	return &turn{body: body, req: req, provider: provider, entry: entry}
}

func (h *Handler) systemPrompt(body chatRequest) string {
	system := h.prompts.Contextual(body.CustomerContext)
	if body.ProductID == nil {
		return system
	}
	p, ok := h.prompts.Catalog().Find(*body.ProductID)
	if !ok {
		return system
	}
	return system + fmt.Sprintf("\nThe customer is currently viewing: %s (ID %d).\n", p.Name, p.ID)
}

// turnContext bounds the provider call by the chat timeout.
func (h *Handler) turnContext(parent context.Context) (context.Context, context.CancelFunc) {
	if h.chatTimeout > 0 {
		return context.WithTimeout(parent, h.chatTimeout)
	}
	return context.WithCancel(parent)
}

// finishTurn records the outcome. History is only extended by successful
// turns so failure text never becomes model context.
func (h *Handler) finishTurn(ctx context.Context, t *turn, answer string, err error) {
	e := t.entry
	e.Finish()

	shown := answer
	outcome := auditlog.OutcomeSuccess
	if err != nil {
		outcome = auditlog.OutcomeError
		e.ErrorType = errorType(err)
		shown = core.UserMessage(err)
	}
	e.Outcome = outcome
	e.ResponseChars = utf8.RuneCountInString(shown)
	if h.logBodies {
		e.Data.Response = auditlog.Redact(shown)
	}
	h.audit.Write(e)

	if h.metrics != nil {
		h.metrics.ObserveTurn(t.provider, e.Stream, outcome, time.Duration(e.DurationNs))
		h.metrics.AddChunks(t.provider, e.ChunkCount)
	}

	if err != nil || t.body.ConversationID == "" {
		return
	}
	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historyWriteTimeout)
	defer cancel()
	if err := h.history.Append(hctx, t.body.ConversationID,
		core.Message{Role: core.RoleUser, Content: t.body.Message},
		core.Message{Role: core.RoleAssistant, Content: answer},
	); err != nil {
		slog.Warn("failed to append conversation history",
			"conversation_id", t.body.ConversationID,
			"error", err,
		)
	}
}

func errorType(err error) string {
	var gwErr *core.GatewayError
	switch {
	case errors.As(err, &gwErr):
		return string(gwErr.Type)
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "error"
	}
}

// runStream forwards chunks to send until the stream ends. When send fails
// the client is gone: the upstream call is cancelled and the channel drained.
func (h *Handler) runStream(ctx context.Context, cancel context.CancelFunc, t *turn, send func(core.StreamChunk) error) {
	var (
		answer    strings.Builder
		streamErr error
		sent      int
		gone      bool
		final     bool
	)

	for chunk := range h.gateway.StreamChat(ctx, t.req, t.body.Provider) {
		if gone {
			continue
		}
		if chunk.Err != nil {
			streamErr = chunk.Err
		} else {
			answer.WriteString(chunk.Text)
		}
		if err := send(chunk); err != nil {
			slog.Debug("stream client went away", "request_id", t.entry.RequestID, "error", err)
			gone = true
			streamErr = err
			cancel()
			continue
		}
		sent++
		final = chunk.IsFinal
	}

	// a timed-out stream ends without a final chunk from the gateway
	if !gone && !final && ctx.Err() != nil {
		streamErr = ctx.Err()
		if err := send(core.StreamChunk{Text: core.UserMessage(streamErr), Index: sent, IsFinal: true, Err: streamErr}); err == nil {
			sent++
		}
	}
	if streamErr == nil && ctx.Err() != nil {
		streamErr = ctx.Err()
	}
	t.entry.ChunkCount = sent
	h.finishTurn(ctx, t, answer.String(), streamErr)
}
