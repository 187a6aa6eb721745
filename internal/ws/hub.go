package ws

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/joshua-takyi/staylink/internal/store"
)

const MessageStoreChanged = "store.changed"

// Client is one live connection of a signed-in user.
type Client struct {
	UserID uuid.UUID
	Send   chan []byte
	hub    *Hub

	mu     sync.Mutex
	closed bool
}

func NewClient(userID uuid.UUID, buffer int) *Client {
	return &Client{UserID: userID, Send: make(chan []byte, buffer)}
}

// trySend drops the message when the client is slow or already gone.
func (c *Client) trySend(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.Send)
	hub := c.hub
	c.mu.Unlock()

	if hub != nil {
		hub.unregister(c)
	}
}

// Hub tracks live connections per user. One user can hold several.
type Hub struct {
	logger *slog.Logger

	mu     sync.RWMutex
	byUser map[uuid.UUID]map[*Client]struct{}
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger: logger,
		byUser: make(map[uuid.UUID]map[*Client]struct{}),
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c.hub = h
	if h.byUser[c.UserID] == nil {
		h.byUser[c.UserID] = make(map[*Client]struct{})
	}
	h.byUser[c.UserID][c] = struct{}{}
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m := h.byUser[c.UserID]; m != nil {
		delete(m, c)
		if len(m) == 0 {
			delete(h.byUser, c.UserID)
		}
	}
}

// SendToUser queues payload on every connection of the user and returns how many took it.
func (h *Hub) SendToUser(userID uuid.UUID, payload interface{}) int {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("failed to encode websocket message", "user_id", userID, "error", err)
		return 0
	}

	h.mu.RLock()
	m := h.byUser[userID]
	clients := make([]*Client, 0, len(m))
	for c := range m {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	sent := 0
	for _, c := range clients {
		if c.trySend(data) {
			sent++
		}
	}
	return sent
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, m := range h.byUser {
		n += len(m)
	}
	return n
}

func (h *Hub) Connected(userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser[userID]) > 0
}

type storeChanged struct {
	Type string `json:"type"`
	store.Change
}

// Follow pushes cache changes of every session to that user's connections.
func (h *Hub) Follow(registry *store.Registry) {
	registry.Listen(func(userID uuid.UUID, c store.Change) {
		if c.Kind == store.ChangeLoading {
			return
		}
		h.SendToUser(userID, storeChanged{Type: MessageStoreChanged, Change: c})
	})
}
