package websocket

import (
	"encoding/json"
	"sync"

	"github.com/shoptalk-ai/shoptalk/logger"
)

// Hub maintains the set of active clients and broadcasts telemetry
// events to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu   sync.RWMutex
	log  *logger.Logger
	done chan struct{}
}

// NewHub creates a hub. Call Run in a goroutine before serving clients.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		log:        logger.New("ws-hub"),
		done:       make(chan struct{}),
	}
}

// Run processes register/unregister/broadcast events until Stop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.log.Debugf("client connected, total=%d", h.ClientCount())

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// slow consumer, drop it
					go func(c *Client) { h.unregister <- c }(client)
				}
			}
			h.mu.RUnlock()

		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Stop shuts the hub down and disconnects all clients.
func (h *Hub) Stop() {
	close(h.done)
}

// Broadcast queues a raw message for all connected clients. Messages
// are dropped when the hub's queue is full rather than blocking the
// caller.
func (h *Hub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	default:
		h.log.Warn("broadcast queue full, dropping event")
	}
}

// BroadcastJSON marshals v and broadcasts it. Marshal failures are
// logged and dropped; telemetry must never fail a turn.
func (h *Hub) BroadcastJSON(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		h.log.Warnf("failed to marshal event: %v", err)
		return
	}
	h.Broadcast(data)
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
