// Package notify fans out game events to live client connections.
// Delivery is best-effort: a principal with no open connection simply
// misses the push and recovers state through the pull endpoints.
package notify

import (
	"log/slog"
	"sync"
)

type Kind string

const (
	KindMatchFound   Kind = "match_found"
	KindSettled      Kind = "settled"
	KindAborted      Kind = "aborted"
	KindQueueTimeout Kind = "queue_timeout"
)

// Event is one push payload. Balances are keyed "player1"/"player2" on
// settlement events.
type Event struct {
	Kind      Kind             `json:"kind"`
	ContestID string           `json:"contestId,omitempty"`
	Status    string           `json:"status,omitempty"`
	Stake     int64            `json:"stake,omitempty"`
	Opponent  int64            `json:"opponent,omitempty"`
	Winner    int64            `json:"winner,omitempty"`
	Outcome   string           `json:"outcome,omitempty"`
	Reason    string           `json:"reason,omitempty"`
	Balances  map[string]int64 `json:"balances,omitempty"`
}

const subscriberBuffer = 8

type Hub struct {
	mu   sync.RWMutex
	subs map[int64][]chan Event
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int64][]chan Event)}
}

// Subscribe registers a live connection for principalID. The returned cancel
// func must be called when the connection closes.
func (h *Hub) Subscribe(principalID int64) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	h.subs[principalID] = append(h.subs[principalID], ch)
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()

		chans := h.subs[principalID]
		for i, c := range chans {
			if c == ch {
				h.subs[principalID] = append(chans[:i], chans[i+1:]...)
				break
			}
		}

		if len(h.subs[principalID]) == 0 {
			delete(h.subs, principalID)
		}
	}

	return ch, cancel
}

// Push delivers ev to every live connection of principalID without blocking.
// Slow or absent consumers drop the event.
func (h *Hub) Push(principalID int64, ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subs[principalID] {
		select {
		case ch <- ev:
		default:
			slog.Debug("dropping event for slow subscriber",
				"principal_id", principalID,
				"kind", ev.Kind,
			)
		}
	}
}
