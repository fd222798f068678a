package realtime

import (
	"encoding/json"
	"sync"
)

// Client is one websocket connection. The network conn itself is owned
// by the ws handler; the hub only needs to push bytes and close.
type Client interface {
	Send(message []byte) bool
	Close()
}

// Event is a realtime notification pushed to a user's connected clients
// when tasks, schedules or the timer change.
type Event struct {
	Type    string         `json:"type"`
	Version int            `json:"version"`
	Data    map[string]any `json:"data,omitempty"`
}

// Hub tracks connected clients per user and fans events out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[Client]struct{}
}

var hubInstance *Hub
var once sync.Once

// GetHub returns the singleton hub instance.
func GetHub() *Hub {
	once.Do(func() {
		hubInstance = &Hub{
			clients: make(map[string]map[Client]struct{}),
		}
	})
	return hubInstance
}

// Register adds a client under a user ID.
func (h *Hub) Register(userID string, client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[userID]; !ok {
		h.clients[userID] = make(map[Client]struct{})
	}
	h.clients[userID][client] = struct{}{}
}

// Unregister removes a client, dropping the user's bucket when empty.
func (h *Hub) Unregister(userID string, client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if clients, ok := h.clients[userID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.clients, userID)
		}
	}
}

// Publish marshals the event and sends it to all of the user's clients.
func (h *Hub) Publish(userID string, evt Event) {
	if evt.Version == 0 {
		evt.Version = 1
	}
	message, err := json.Marshal(evt)
	if err != nil {
		return
	}
	h.Broadcast(userID, message)
}

// Broadcast sends a raw message to all clients of a user.
func (h *Hub) Broadcast(userID string, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[userID] {
		// A failed write is left for the handler's reader loop to clean up.
		_ = c.Send(message)
	}
}
