package stream

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/dpup/prefab/logging"

	"github.com/dpup/campusnav/server/internal/lib/navigation"
)

const sendBuffer = 64

// Hub fans navigation events out to connected WebSocket clients
type Hub struct {
	ctx     context.Context
	clients map[*Client]struct{}
	mu      sync.RWMutex
}

// Client is a single connected observer
type Client struct {
	ID   string
	Send chan []byte
}

// NewHub creates an empty hub. Broadcasts are not tied to a request, so the
// hub logs through ctx.
func NewHub(ctx context.Context) *Hub {
	return &Hub{
		ctx:     logging.EnsureLogger(ctx),
		clients: map[*Client]struct{}{},
	}
}

// Register adds a client
func (h *Hub) Register(id string) *Client {
	client := &Client{
		ID:   id,
		Send: make(chan []byte, sendBuffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = struct{}{}
	return client
}

// Unregister removes a client and closes its send channel
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.Send)
}

// Count returns the number of connected clients
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues payload for every client. Slow clients drop messages
// rather than stall the engine.
func (h *Hub) Broadcast(payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		select {
		case client.Send <- payload:
		default:
			logging.Warnw(h.ctx, "Stream: dropping message for slow client", "client", client.ID)
		}
	}
}

// HandleEvent implements navigation.Listener
func (h *Hub) HandleEvent(event navigation.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		logging.Errorw(h.ctx, "Stream: failed to encode event", "event", event.Type, "error", err)
		return
	}
	h.Broadcast(payload)
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		delete(h.clients, client)
		close(client.Send)
	}
}
