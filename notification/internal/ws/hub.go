// Package ws fans low-stock notifications out to subscribed WebSocket
// clients. The hub keeps a bidirectional index (seller to clients, client
// to sellers) so both delivery and disconnect cleanup are direct lookups.
package ws

import (
	"context"
	"sync"

	"log/slog"

	"product-catalog-platform/shared/logx"
	"product-catalog-platform/shared/metricsx"
)

type Hub struct {
	mu       sync.RWMutex
	bySeller map[string]map[*Client]bool
	byClient map[*Client]map[string]bool
	logger   logx.Logger
}

func NewHub(logger logx.Logger) *Hub {
	return &Hub{
		bySeller: make(map[string]map[*Client]bool),
		byClient: make(map[*Client]map[string]bool),
		logger:   logger,
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.byClient[c] = make(map[string]bool)
	h.mu.Unlock()
	metricsx.AddWSConnections(1)
}

// unregister removes the client from every seller set it subscribed to and
// prunes sellers left with no subscribers, so the index never holds empty
// sets. The client's send channel is closed here, under the lock, so a
// concurrent Broadcast can never send on a closed channel.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	sellers, registered := h.byClient[c]
	delete(h.byClient, c)
	for sellerID := range sellers {
		clients := h.bySeller[sellerID]
		delete(clients, c)
		if len(clients) == 0 {
			delete(h.bySeller, sellerID)
		}
	}
	if registered {
		close(c.send)
	}
	subs := h.subscriptionCountLocked()
	h.mu.Unlock()

	if !registered {
		return
	}
	metricsx.AddWSConnections(-1)
	metricsx.SetWSSubscriptions(subs)
}

func (h *Hub) subscribe(c *Client, sellerID string) {
	h.mu.Lock()
	if _, ok := h.byClient[c]; !ok {
		h.mu.Unlock()
		return
	}
	h.byClient[c][sellerID] = true
	if h.bySeller[sellerID] == nil {
		h.bySeller[sellerID] = make(map[*Client]bool)
	}
	h.bySeller[sellerID][c] = true
	subs := h.subscriptionCountLocked()
	h.mu.Unlock()

	metricsx.SetWSSubscriptions(subs)
}

func (h *Hub) unsubscribe(c *Client, sellerID string) {
	h.mu.Lock()
	delete(h.byClient[c], sellerID)
	clients := h.bySeller[sellerID]
	delete(clients, c)
	if len(clients) == 0 {
		delete(h.bySeller, sellerID)
	}
	subs := h.subscriptionCountLocked()
	h.mu.Unlock()

	metricsx.SetWSSubscriptions(subs)
}

// Broadcast delivers a message to every client subscribed to the seller.
// Slow clients are skipped, not waited on: a full send buffer drops the
// message for that client and counts it. Sends happen under the read lock,
// so no client's send channel can be closed mid-delivery.
func (h *Hub) Broadcast(ctx context.Context, sellerID string, message []byte) int {
	h.mu.RLock()
	delivered := 0
	dropped := 0
	for c := range h.bySeller[sellerID] {
		select {
		case c.send <- message:
			delivered++
		default:
			dropped++
		}
	}
	h.mu.RUnlock()

	for i := 0; i < dropped; i++ {
		metricsx.IncWSDropped()
		h.logger.Warn(ctx, "ws_message_dropped", "client send buffer full",
			slog.String("seller_id", sellerID),
		)
	}
	return delivered
}

// Subscribers reports how many clients are subscribed to the seller.
func (h *Hub) Subscribers(sellerID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.bySeller[sellerID])
}

// Connections reports how many clients are connected.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byClient)
}

func (h *Hub) subscriptionCountLocked() int {
	n := 0
	for _, sellers := range h.byClient {
		n += len(sellers)
	}
	return n
}
