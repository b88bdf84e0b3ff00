// Package websocket implements the admin live event feed: a hub that
// broadcasts license lifecycle events (created, revoked, deleted,
// activated) to connected dashboard clients.
package websocket

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Event types pushed to the dashboard.
const (
	EventLicenseCreated   = "license_created"
	EventLicenseRevoked   = "license_revoked"
	EventLicenseDeleted   = "license_deleted"
	EventMachineActivated = "machine_activated"
)

// Event is a single dashboard notification.
type Event struct {
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// Hub fans license events out to all connected dashboard clients. Emit
// never blocks: slow or dead clients are dropped rather than backing up
// the validation path.
type Hub struct {
	logger *slog.Logger

	mu      sync.Mutex
	clients map[*websocket.Conn]*sync.Mutex // per-connection write lock
}

// NewHub creates an event hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:  logger.With(slog.String("component", "event_hub")),
		clients: make(map[*websocket.Conn]*sync.Mutex),
	}
}

// Register adds a connected client to the broadcast set.
func (h *Hub) Register(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = &sync.Mutex{}
	h.logger.Info("dashboard client connected", slog.Int("total_clients", len(h.clients)))
}

// Unregister removes a client and closes its connection.
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
		h.logger.Info("dashboard client disconnected", slog.Int("total_clients", len(h.clients)))
	}
}

// Emit broadcasts an event to every connected client. Write failures
// unregister the client.
func (h *Hub) Emit(eventType string, details map[string]interface{}) {
	event := Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Details:   details,
	}

	h.mu.Lock()
	conns := make(map[*websocket.Conn]*sync.Mutex, len(h.clients))
	for conn, writeMu := range h.clients {
		conns[conn] = writeMu
	}
	h.mu.Unlock()

	for conn, writeMu := range conns {
		writeMu.Lock()
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		err := conn.WriteJSON(event)
		writeMu.Unlock()
		if err != nil {
			h.logger.Warn("dropping dashboard client after write failure",
				slog.String("error", err.Error()))
			h.Unregister(conn)
		}
	}
}

// ClientCount returns the number of connected dashboard clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
