package api

import (
	"context"
	"sync"

	"github.com/nerrad567/edgelink-core/internal/infrastructure/logging"
)

// Hub tracks every open connection. It is the only owner of the
// id-to-connection mapping.
type Hub struct {
	logger  *logging.Logger
	clients map[string]*Conn
	mu      sync.RWMutex
}

// NewHub creates a new connection hub.
func NewHub(logger *logging.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[string]*Conn),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds a connection to the hub.
func (h *Hub) Register(c *Conn) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "conn_id", c.id, "clients", h.ClientCount())
}

// Unregister removes a connection, stops its subscription worker and
// closes its send buffer. Only the call that actually removes the
// connection tears it down, so repeated calls are harmless.
func (h *Hub) Unregister(c *Conn) {
	h.mu.Lock()
	existing, ok := h.clients[c.id]
	existed := ok && existing == c
	if existed {
		delete(h.clients, c.id)
	}
	h.mu.Unlock()

	if existed {
		c.teardown()
	}
	h.logger.Debug("websocket client disconnected", "conn_id", c.id, "clients", h.ClientCount())
}

// Get returns the connection with the given id.
func (h *Hub) Get(id string) (*Conn, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[id]
	return c, ok
}

// Contains reports whether c is still registered.
func (h *Hub) Contains(c *Conn) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	existing, ok := h.clients[c.id]
	return ok && existing == c
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends a notification to every connection, each in its own
// encoding. It returns the number of connections that accepted it.
func (h *Hub) Broadcast(severity Severity, message string) int {
	// Snapshot under the hub lock, send after releasing it.
	h.mu.RLock()
	clients := make([]*Conn, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	sent := 0
	for _, c := range clients {
		if c.notify(severity, message) {
			sent++
		}
	}
	if sent > 0 {
		h.logger.Debug("broadcast sent", "severity", severity, "recipients", sent)
	}
	return sent
}

// closeAll disconnects every client.
func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := make([]*Conn, 0, len(h.clients))
	for id, c := range h.clients {
		clients = append(clients, c)
		delete(h.clients, id)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.teardown()
		if c.ws != nil {
			c.ws.Close()
		}
	}
}
