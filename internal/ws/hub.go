package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/speedfriending/backend/internal/game"
	"github.com/speedfriending/backend/internal/pubsub"
)

const sendBuffer = 256

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS is enforced on the HTTP routes
	},
}

// Hub maintains the set of live connections, keyed by connection id.
type Hub struct {
	mgr *game.Manager

	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
}

// NewHub creates a hub and attaches it to the manager as its notifier.
func NewHub(mgr *game.Manager) *Hub {
	h := &Hub{
		mgr:        mgr,
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
	mgr.SetNotifier(h)
	return h
}

// Run processes registrations and forwards bus events to every client until
// ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	events := h.mgr.State().Subscribe()
	defer h.mgr.State().Unsubscribe(events)
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			n := len(h.clients)
			h.mu.Unlock()
			log.Printf("[WS] Connection %s opened (%d live)", client.id, n)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				close(client.send)
			}
			h.mu.Unlock()
			h.mgr.HandleDisconnect(ctx, client.id)

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			h.Broadcast(flatten(ev))
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		close(c.send)
		delete(h.clients, id)
	}
}

// flatten turns a bus event into the flat {"type": ...} message clients expect.
func flatten(ev pubsub.Event) map[string]interface{} {
	msg := make(map[string]interface{}, len(ev.Payload)+1)
	for k, v := range ev.Payload {
		msg[k] = v
	}
	msg["type"] = ev.Type
	return msg
}

// SendToConnection queues a message for one connection. It reports false when
// the connection is gone or its buffer is full.
func (h *Hub) SendToConnection(connID string, message interface{}) bool {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("[WS] Error marshaling message: %v", err)
		return false
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	client, exists := h.clients[connID]
	if !exists {
		return false
	}
	select {
	case client.send <- data:
		return true
	default:
		log.Printf("[WS] Dropped message for connection %s (buffer full)", connID)
		return false
	}
}

// Connected reports whether connID is a live connection.
func (h *Hub) Connected(connID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[connID]
	return ok
}

// Broadcast sends a message to every live connection and returns how many
// accepted it.
func (h *Hub) Broadcast(message interface{}) int {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("[WS] Error marshaling broadcast: %v", err)
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for id, client := range h.clients {
		select {
		case client.send <- data:
			sent++
		default:
			log.Printf("[WS] Broadcast dropped for connection %s (buffer full)", id)
		}
	}
	return sent
}

// Len returns the number of live connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
