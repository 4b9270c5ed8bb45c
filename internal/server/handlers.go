package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"chatbridge/internal/auditlog"
	"chatbridge/internal/core"
	"chatbridge/internal/history"
	"chatbridge/internal/observability"
	"chatbridge/internal/prompt"
	"chatbridge/internal/streaming"
)

const (
	serviceName = "chatbridge"

	statusSuccess = "success"
	statusError   = "error"
)

// Gateway is the slice of providers.Gateway the handlers use.
type Gateway interface {
	Chat(ctx context.Context, req *core.ChatRequest, provider string) (string, error)
	StreamChat(ctx context.Context, req *core.ChatRequest, provider string) <-chan core.StreamChunk
	ListProviders() []string
	Primary() string
}

// Deps are the collaborators of Handler. Only Gateway is required.
type Deps struct {
	Gateway Gateway
	Prompts *prompt.Builder
	History history.Store
	Audit   auditlog.Recorder
	Metrics *observability.Metrics
	Version string
}

// Handler holds the HTTP handlers
type Handler struct {
	gateway   Gateway
	prompts   *prompt.Builder
	history   history.Store
	audit     auditlog.Recorder
	metrics   *observability.Metrics
	version   string
	logBodies bool

	chatTimeout    time.Duration
	allowedOrigins []string
}

// NewHandler creates a handler, filling optional dependencies with
// in-memory or no-op defaults.
func NewHandler(d Deps) *Handler {
	h := &Handler{
		gateway: d.Gateway,
		prompts: d.Prompts,
		history: d.History,
		audit:   d.Audit,
		metrics: d.Metrics,
		version: d.Version,
	}
	if h.prompts == nil {
		h.prompts = prompt.NewBuilder("Furniture Store", nil)
	}
	if h.history == nil {
		h.history = history.NewMemoryStore(0)
	}
	if h.audit == nil {
		h.audit = auditlog.NoopLogger{}
	}
	if h.version == "" {
		h.version = "dev"
	}
	h.logBodies = h.audit.Config().LogBodies
	return h
}

// chatRequest is the body of POST /api/v1/chat and of each WebSocket frame.
type chatRequest struct {
	Message         string                  `json:"message"`
	Provider        string                  `json:"provider,omitempty"`
	Stream          bool                    `json:"stream,omitempty"`
	CustomerContext *prompt.CustomerContext `json:"customer_context,omitempty"`
	ConversationID  string                  `json:"conversation_id,omitempty"`
	UserID          string                  `json:"user_id,omitempty"`
	ProductID       *int                    `json:"product_id,omitempty"`
}

type chatResponse struct {
	ID        string `json:"id"`
	Message   string `json:"message"`
	Provider  string `json:"provider"`
	Timestamp string `json:"timestamp"`
	Status    string `json:"status"`
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"error": message})
}

// historyError maps a history store failure onto a gateway error so the
// error handler can pick the status.
func historyError(err error) error {
	if errors.Is(err, history.ErrInvalidSession) {
		return core.NewInvalidRequestError("conversation id is required", err)
	}
	return &core.GatewayError{
		Type:       core.ErrorTypeProvider,
		Message:    "conversation history unavailable",
		StatusCode: http.StatusServiceUnavailable,
		Err:        err,
	}
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// Health handles GET /health
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":              "healthy",
		"timestamp":           timestamp(),
		"service":             serviceName,
		"version":             h.version,
		"available_providers": h.providerNames(),
		"primary_provider":    h.gateway.Primary(),
	})
}

// Providers handles GET /api/v1/providers
func (h *Handler) Providers(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"available_providers": h.providerNames(),
		"primary_provider":    h.gateway.Primary(),
		"timestamp":           timestamp(),
	})
}

func (h *Handler) providerNames() []string {
	names := h.gateway.ListProviders()
	if names == nil {
		return []string{}
	}
	return names
}

// Chat handles POST /api/v1/chat. Provider failures are answered with
// HTTP 200, status "error" and the failure text in place of the answer.
func (h *Handler) Chat(c echo.Context) error {
	var body chatRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "Invalid request format")
	}
	if strings.TrimSpace(body.Message) == "" {
		return badRequest(c, "message field is required")
	}

	t := h.newTurn(c.Request().Context(), body, clientInfo{ip: c.RealIP(), userAgent: c.Request().UserAgent()})

	if body.Stream {
		return h.streamChat(c, t)
	}

	ctx, cancel := h.turnContext(c.Request().Context())
	defer cancel()

	answer, err := h.gateway.Chat(ctx, t.req, body.Provider)
	h.finishTurn(ctx, t, answer, err)

	resp := chatResponse{
		ID:        t.entry.ID,
		Message:   answer,
		Provider:  t.provider,
		Timestamp: timestamp(),
		Status:    statusSuccess,
	}
	if err != nil {
		resp.Message = core.UserMessage(err)
		resp.Status = statusError
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) streamChat(c echo.Context, t *turn) error {
	ctx, cancel := h.turnContext(c.Request().Context())
	defer cancel()

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, streaming.ContentType)
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)

	enc := streaming.NewEncoder(res)
	h.runStream(ctx, cancel, t, enc.Encode)
	return nil
}

// Recommendations handles POST /api/v1/recommendations
func (h *Handler) Recommendations(c echo.Context) error {
	var body struct {
		prompt.Preferences
		Provider string `json:"provider,omitempty"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "Invalid request format")
	}

	system := h.prompts.Base() + "\n\n" + prompt.Recommendation(body.Preferences)
	text := h.singleShot(c, system, "Recommend the best products for these preferences.", body.Provider)

	return c.JSON(http.StatusOK, map[string]any{
		"recommendations": text,
		"preferences":     body.Preferences,
		"timestamp":       timestamp(),
	})
}

// Comparison handles POST /api/v1/comparison
func (h *Handler) Comparison(c echo.Context) error {
	var body struct {
		ProductIDs []int  `json:"product_ids"`
		Provider   string `json:"provider,omitempty"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "Invalid request format")
	}
	if len(body.ProductIDs) == 0 {
		return badRequest(c, "product_ids is required")
	}

	system := h.prompts.Base() + "\n\n" + prompt.Comparison(body.ProductIDs)
	text := h.singleShot(c, system, "Compare these products.", body.Provider)

	return c.JSON(http.StatusOK, map[string]any{
		"comparison":  text,
		"product_ids": body.ProductIDs,
		"timestamp":   timestamp(),
	})
}

// singleShot runs a history-less turn and returns the answer or its
// failure text.
func (h *Handler) singleShot(c echo.Context, system, message, provider string) string {
	t := h.newTurn(c.Request().Context(), chatRequest{Message: message, Provider: provider},
		clientInfo{ip: c.RealIP(), userAgent: c.Request().UserAgent()})
	t.req.SystemPrompt = system

	ctx, cancel := h.turnContext(c.Request().Context())
	defer cancel()

	answer, err := h.gateway.Chat(ctx, t.req, provider)
	h.finishTurn(ctx, t, answer, err)
	if err != nil {
		return core.UserMessage(err)
	}
	return answer
}

// GetConversation handles GET /api/v1/conversations/:id
func (h *Handler) GetConversation(c echo.Context) error {
	id := c.Param("id")
	msgs, err := h.history.Load(c.Request().Context(), id)
	if err != nil {
		return historyError(err)
	}
	if msgs == nil {
		msgs = []core.Message{}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"conversation_id": id,
		"messages":        msgs,
		"count":           len(msgs),
	})
}

// DeleteConversation handles DELETE /api/v1/conversations/:id
func (h *Handler) DeleteConversation(c echo.Context) error {
	id := c.Param("id")
	if err := h.history.Clear(c.Request().Context(), id); err != nil {
		return historyError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"conversation_id": id,
		"cleared":         true,
	})
}
