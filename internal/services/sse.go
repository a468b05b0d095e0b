package services

import (
	"sync"

	"github.com/launchpad/backend/internal/models"
)

type sseClient struct {
	userID uint
	ch     chan models.Notification
}

// SSEHub fans notifications out to the connected streams of their recipient
type SSEHub struct {
	clients map[string]*sseClient
	mu      sync.RWMutex
}

// NewSSEHub creates a new SSE hub instance
func NewSSEHub() *SSEHub {
	return &SSEHub{
		clients: make(map[string]*sseClient),
	}
}

// Subscribe registers a stream for userID and returns its event channel
func (h *SSEHub) Subscribe(clientID string, userID uint) <-chan models.Notification {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan models.Notification, 100)
	h.clients[clientID] = &sseClient{userID: userID, ch: ch}
	return ch
}

// Unsubscribe removes a client from the hub
func (h *SSEHub) Unsubscribe(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c, ok := h.clients[clientID]; ok {
		close(c.ch)
		delete(h.clients, clientID)
	}
}

// Publish sends n to every stream of its recipient
func (h *SSEHub) Publish(n models.Notification) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.clients {
		if c.userID != n.RecipientID {
			continue
		}
		// Drop the event for slow clients; it is still persisted
		select {
		case c.ch <- n:
		default:
		}
	}
}

// ClientCount returns the number of connected clients
func (h *SSEHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Global SSE Hub instance
var globalSSEHub *SSEHub
var sseHubOnce sync.Once

// GetSSEHub returns the global SSE hub singleton
func GetSSEHub() *SSEHub {
	sseHubOnce.Do(func() {
		globalSSEHub = NewSSEHub()
	})
	return globalSSEHub
}
