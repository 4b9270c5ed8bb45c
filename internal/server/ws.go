package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/url"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/labstack/echo/v4"

	"chatbridge/internal/core"
	"chatbridge/internal/streaming"
)

const wsReadLimit = 1 << 20

// ChatWebSocket handles GET /api/v1/chat/ws. Each text frame is a chat
// request; the answer is streamed back as chunk frames, the last of which
// has is_final set. Invalid frames are answered with an error frame and the
// connection stays open.
func (h *Handler) ChatWebSocket(c echo.Context) error {
	opts := &websocket.AcceptOptions{}
	patterns, anyOrigin := originPatterns(h.allowedOrigins)
	if anyOrigin {
		opts.InsecureSkipVerify = true
	} else {
		opts.OriginPatterns = patterns
	}

	conn, err := websocket.Accept(c.Response(), c.Request(), opts)
	if err != nil {
		// Accept has already written the rejection
		slog.Warn("websocket upgrade failed", "error", err, "remote_ip", c.RealIP())
		return nil
	}
	defer conn.CloseNow()
	conn.SetReadLimit(wsReadLimit)

	ctx := c.Request().Context()
	client := clientInfo{ip: c.RealIP(), userAgent: c.Request().UserAgent()}

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				if !errors.Is(err, ctx.Err()) {
					slog.Debug("websocket read ended", "error", err)
				}
			}
			return nil
		}
		if typ != websocket.MessageText {
			if err := wsjson.Write(ctx, conn, map[string]string{"error": "text frames only"}); err != nil {
				return nil
			}
			continue
		}

		var body chatRequest
		if err := json.Unmarshal(data, &body); err != nil {
			if err := wsjson.Write(ctx, conn, map[string]string{"error": "Invalid request format"}); err != nil {
				return nil
			}
			continue
		}
		if strings.TrimSpace(body.Message) == "" {
			if err := wsjson.Write(ctx, conn, map[string]string{"error": "message field is required"}); err != nil {
				return nil
			}
			continue
		}
		body.Stream = true

		t := h.newTurn(ctx, body, client)
		tctx, cancel := h.turnContext(ctx)
		h.runStream(tctx, cancel, t, func(chunk core.StreamChunk) error {
			return wsjson.Write(ctx, conn, streaming.LineFromChunk(chunk))
		})
		cancel()

		if ctx.Err() != nil {
			return nil
		}
	}
}

// originPatterns converts CORS origins to host patterns. It reports true
// when any origin is allowed.
func originPatterns(origins []string) ([]string, bool) {
	if len(origins) == 0 {
		return nil, true
	}
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			return nil, true
		}
		u, err := url.Parse(o)
		if err != nil || u.Host == "" {
			patterns = append(patterns, o)
			continue
		}
		patterns = append(patterns, u.Host)
	}
	return patterns, false
}
