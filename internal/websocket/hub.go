package websocket

import (
	"encoding/json"
	"sync"
)

// BalanceUpdate is pushed to dashboard subscribers whenever a user's
// remaining rights change (consume or credit).
type BalanceUpdate struct {
	UserID          int64  `json:"user_id"`
	RemainingRights int    `json:"remaining_rights"`
	PackageType     string `json:"package_type,omitempty"`
}

type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = struct{}{}
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, client)
}

// BroadcastBalance fans the update out to every connected dashboard. Slow
// consumers are skipped rather than blocking a ledger caller.
func (h *Hub) BroadcastBalance(userID int64, update BalanceUpdate) {
	payload, _ := json.Marshal(update)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.send <- payload:
		default:
		}
	}
}
