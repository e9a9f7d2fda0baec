package stream

import (
	"sync"
	"sync/atomic"

	"backend-pathgreen/internal/fleet"
	"backend-pathgreen/internal/metrics"

	"github.com/rs/zerolog/log"
)

const DefaultQueueSize = 256

type Hub struct {
	clients   map[*Client]struct{}
	queueSize int
	closed    bool
	mu        sync.RWMutex
}

type Client struct {
	ID     string
	Send   chan Message
	resync atomic.Bool
}

// NeedsResync reports and clears the overflow marker.
func (c *Client) NeedsResync() bool {
	return c.resync.Swap(false)
}

func NewHub(queueSize int) *Hub {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Hub{
		clients:   map[*Client]struct{}{},
		queueSize: queueSize,
	}
}

func (h *Hub) Register(id string) *Client {
	client := &Client{
		ID:   id,
		Send: make(chan Message, h.queueSize),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(client.Send)
		return client
	}
	h.clients[client] = struct{}{}
	metrics.ActiveSessions.Set(float64(len(h.clients)))
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.Send)
	metrics.ActiveSessions.Set(float64(len(h.clients)))
}

// Broadcast enqueues msg for every client without blocking. A client whose
// queue is full loses its oldest message and is marked for resync.
func (h *Hub) Broadcast(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		select {
		case client.Send <- msg:
			continue
		default:
		}

		select {
		case <-client.Send:
			metrics.QueueDrops.Inc()
		default:
		}
		client.resync.Store(true)
		select {
		case client.Send <- msg:
		default:
			metrics.QueueDrops.Inc()
		}
	}
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close ends every client queue; clients registered afterwards start closed.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for client := range h.clients {
		delete(h.clients, client)
		close(client.Send)
	}
	metrics.ActiveSessions.Set(0)
}

func (h *Hub) PublishRecord(seq uint64, rec fleet.EmissionRecord) {
	h.publish(TypeEmissionUpdate, seq, rec)
}

func (h *Hub) PublishAlert(seq uint64, alert fleet.Alert) {
	h.publish(TypeAlert, seq, alert)
}

func (h *Hub) publish(typ string, seq uint64, data any) {
	msg, err := Encode(typ, seq, data)
	if err != nil {
		log.Error().Err(err).Str("type", typ).Msg("encode broadcast")
		return
	}
	h.Broadcast(msg)
}
