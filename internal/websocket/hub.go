package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Message is pushed to every browser after each render. Seq only grows, so a
// browser can ignore a push older than the one it already shows.
type Message struct {
	Type string `json:"type"`
	Seq  uint64 `json:"seq"`
	HTML string `json:"html"`
}

const typeRender = "render"

// Hub maintains the set of connected browsers and fans renders out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	last    []byte
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a client and queues the latest render for it, so a browser
// that connects between renders still catches up.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	if h.last != nil {
		select {
		case c.send <- h.last:
		default:
		}
	}
	h.mu.Unlock()
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Publish sends a rendered app fragment to all connected clients.
func (h *Hub) Publish(seq uint64, fragment []byte) {
	data, err := json.Marshal(Message{Type: typeRender, Seq: seq, HTML: string(fragment)})
	if err != nil {
		h.logger.Error("marshal render", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.last = data
	dropped := 0
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// Slow browser; the next render supersedes this one anyway.
			dropped++
		}
	}
	if dropped > 0 {
		h.logger.Warn("render dropped for slow clients", "seq", seq, "dropped", dropped)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
