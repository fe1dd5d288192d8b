// Package ws pushes poll snapshots to browsers over websockets.
package ws

import (
	"context"
	"encoding/json"
	"sync"

	"socdash/dashboard/services/monitor/internal/models"
)

// Message is the envelope written to clients.
type Message struct {
	Type string          `json:"type"`
	Data models.Snapshot `json:"data"`
}

// MessageSnapshot is the only message type sent today.
const MessageSnapshot = "snapshot"

// Hub tracks connected clients.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewHub builds an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

// Add registers new client.
func (h *Hub) Add(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ID()] = c
}

// Remove removes client.
func (h *Hub) Remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, id)
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish broadcasts snap to every client.
func (h *Hub) Publish(_ context.Context, snap models.Snapshot) error {
	payload, err := Encode(snap)
	if err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		c.Send(payload)
	}
	return nil
}

// Encode wraps snap in a Message.
func Encode(snap models.Snapshot) ([]byte, error) {
	return json.Marshal(Message{Type: MessageSnapshot, Data: snap})
}
