package http

import (
	"log/slog"
	"net/http"

	gorilla "github.com/gorilla/websocket"

	"github.com/bitlifehost4tvegesdgames/flux-keyauth/internal/websocket"
)

// EventsHandler upgrades admin dashboard connections onto the event hub.
type EventsHandler struct {
	hub      *websocket.Hub
	upgrader gorilla.Upgrader
	logger   *slog.Logger
}

// NewEventsHandler creates the events handler. The upgrader keeps the
// default same-origin check since the feed is mounted behind admin auth.
func NewEventsHandler(hub *websocket.Hub, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{
		hub: hub,
		upgrader: gorilla.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger.With(slog.String("handler", "events")),
	}
}

// Events handles GET /api/events. The connection is write-only from the
// server side; a reader goroutine drains client frames solely to detect
// disconnects.
func (h *EventsHandler) Events(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WarnContext(r.Context(), "websocket upgrade failed",
			slog.String("error", err.Error()))
		return
	}

	h.hub.Register(conn)

	go func() {
		defer h.hub.Unregister(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
