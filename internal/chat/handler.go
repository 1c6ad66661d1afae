package chat

import (
	"context"
	"log/slog"
	"time"

	"github.com/coder/websocket"
	"github.com/labstack/echo/v4"

	"github.com/kestrelchat/kestrel/internal/hub"
	"github.com/kestrelchat/kestrel/internal/presence"
	"github.com/kestrelchat/kestrel/internal/pubsub"
)

// Handler upgrades HTTP requests to websocket connections and runs one
// Session per connection.
type Handler struct {
	tokens Verifier
	hub    *hub.Hub[Message]
	events pubsub.Publisher
}

// NewHandler creates the websocket endpoint handler. events may carry
// presence notifications; sessions never depend on it succeeding.
func NewHandler(tokens Verifier, h *hub.Hub[Message], events pubsub.Publisher) *Handler {
	return &Handler{tokens: tokens, hub: h, events: events}
}

// Serve handles GET /api/ws. The handler blocks for the life of the
// session; each connection runs on its own goroutine courtesy of the HTTP
// server.
func (h *Handler) Serve(c echo.Context) error {
	conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
		InsecureSkipVerify: true, // Same-origin is enforced by the deployment, not here.
	})
	if err != nil {
		slog.Error("Failed to upgrade connection to websocket", "error", err)
		return err
	}

	sess := NewSession(NewWebsocketConn(conn), h.tokens, h.hub)

	// The request context is tied to the pre-upgrade HTTP exchange; the
	// session runs on its own context and ends when the transport
	// closes.
	ctx := context.Background()

	presence.Publish(ctx, h.events, presence.TopicConnected, presence.Event{
		SessionID: sess.ID(),
		Timestamp: time.Now().UTC(),
	})
	sess.OnAuthenticated(func(username string) {
		presence.Publish(ctx, h.events, presence.TopicAuthenticated, presence.Event{
			SessionID: sess.ID(),
			Username:  username,
			Timestamp: time.Now().UTC(),
		})
	})

	sess.Run(ctx)

	presence.Publish(ctx, h.events, presence.TopicDisconnected, presence.Event{
		SessionID: sess.ID(),
		Username:  sess.Username(),
		Timestamp: time.Now().UTC(),
	})

	return nil
}
