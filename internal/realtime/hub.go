package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/neboloop/hearth/internal/logging"
)

// Message is the envelope for every frame in both directions.
type Message struct {
	Type      string         `json:"type"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Hub tracks connected browser clients and fans out broadcasts.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}

	mu sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
	}
}

// Run services the hub until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			logging.Debugf("[Hub] client %s connected", c.ID)

		case c := <-h.unregister:
			h.mu.Lock()
			if h.clients[c] {
				delete(h.clients, c)
				c.Close()
			}
			h.mu.Unlock()
			logging.Debugf("[Hub] client %s disconnected", c.ID)

		case data := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				if err := c.sendRaw(data); err == ErrClientSendBufferFull {
					logging.Warnf("[Hub] dropping frame for slow client %s", c.ID)
				}
			}
			h.mu.RUnlock()

		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				c.Close()
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Broadcast queues msg for every connected client. It never blocks.
func (h *Hub) Broadcast(msg *Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		logging.Errorf("[Hub] marshal %s: %v", msg.Type, err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		logging.Warnf("[Hub] broadcast buffer full, dropping %s", msg.Type)
	}
}

