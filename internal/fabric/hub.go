// Package fabric implements the WebSocket fabric (C9): long-lived
// bidirectional connections framed as typed JSON messages, authenticated
// against the session store and multiplexed over colon-namespaced
// channels.
package fabric

import (
	"strings"
	"sync"

	"browserctl/pkg/models"
)

// Event is one source event considered for fan-out: a browser/page
// lifecycle change, a session transition, or a performance sample.
type Event struct {
	Channel   string
	UserID    string
	SessionID string
	Payload   any
}

// Hub tracks every authenticated connection's subscriptions and fans
// source events out to the ones that match. It keeps no memory across
// reconnects: a Connection re-subscribes from scratch every time.
type Hub struct {
	mu    sync.RWMutex
	conns map[*Connection]map[string]*models.Subscription // connection -> subscription id -> sub
}

func newHub() *Hub {
	return &Hub{conns: make(map[*Connection]map[string]*models.Subscription)}
}

func (h *Hub) register(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c] = make(map[string]*models.Subscription)
}

func (h *Hub) unregister(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, c)
}

func (h *Hub) subscribe(c *Connection, sub *models.Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.conns[c]; ok {
		subs[sub.ID] = sub
	}
}

func (h *Hub) unsubscribe(c *Connection, subID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.conns[c]
	if !ok {
		return false
	}
	if _, ok := subs[subID]; !ok {
		return false
	}
	delete(subs, subID)
	return true
}

// subscriptionCount reports the total number of live subscriptions across
// every connection, used for the fabric_subscriptions gauge.
func (h *Hub) subscriptionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, subs := range h.conns {
		n += len(subs)
	}
	return n
}

func (h *Hub) connectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// publish evaluates every connection's subscriptions against ev and
// enqueues it on every match. Delivery is best-effort: a full send queue
// evicts that connection's oldest queued event to make room rather than
// blocking the publisher.
func (h *Hub) publish(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for conn, subs := range h.conns {
		for _, sub := range subs {
			if !channelMatch(sub.Channel, ev.Channel) {
				continue
			}
			if !filterMatch(sub.Filters, ev) {
				continue
			}
			conn.deliver(ev)
			break
		}
	}
}

// channelMatch reports whether a subscription pattern covers an event's
// channel. A trailing "*" subscribes to every channel sharing that prefix;
// otherwise the match is exact.
func channelMatch(pattern, channel string) bool {
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(channel, strings.TrimSuffix(pattern, "*"))
	}
	return pattern == channel
}

// filterMatch narrows delivery by the subscription's optional field
// filters (e.g. {"sessionId": "..."}), matched against the event's own
// session/user identity.
func filterMatch(filters map[string]string, ev Event) bool {
	if len(filters) == 0 {
		return true
	}
	for k, v := range filters {
		switch k {
		case "sessionId":
			if v != ev.SessionID {
				return false
			}
		case "userId":
			if v != ev.UserID {
				return false
			}
		}
	}
	return true
}
