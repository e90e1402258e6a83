package realtime

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/neboloop/hearth/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10 // must stay below pongWait
	maxMessageSize = 32 << 10
	sendQueueSize  = 256
)

var (
	ErrClientSendBufferFull = errors.New("client send buffer full")
	ErrClientClosed         = errors.New("client connection closed")
)

// MessageHandler handles one inbound frame.
type MessageHandler func(c *Client, msg *Message)

// Client is one browser connection. Outbound frames are queued on send and
// written by writePump; the queue is never closed, done signals shutdown.
type Client struct {
	ID string

	conn    *websocket.Conn
	hub     *Hub
	handler MessageHandler

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func NewClient(conn *websocket.Conn, hub *Hub, id string, handler MessageHandler) *Client {
	return &Client{
		ID:      id,
		conn:    conn,
		hub:     hub,
		handler: handler,
		send:    make(chan []byte, sendQueueSize),
		done:    make(chan struct{}),
	}
}

// readPump decodes frames until the connection fails, then leaves the hub.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
			c.Close()
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Warnf("[WS] client %s read: %v", c.ID, err)
			}
			return
		}
		c.dispatch(raw)
	}
}

// writePump drains the send queue and keeps the connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logging.Debugf("[WS] client %s write: %v", c.ID, err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *Client) dispatch(raw []byte) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		logging.Warnf("[WS] client %s sent invalid frame: %v", c.ID, err)
		return
	}
	switch {
	case msg.Type == "ping":
		c.SendMessage(&Message{Type: "pong"})
	case c.handler == nil:
		logging.Warnf("[WS] no handler for %s", msg.Type)
	default:
		c.handler(c, &msg)
	}
}

// SendMessage queues msg for this client only.
func (c *Client) SendMessage(msg *Message) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return c.sendRaw(data)
}

func (c *Client) sendRaw(data []byte) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrClientClosed
	default:
		return ErrClientSendBufferFull
	}
}

// Close stops the pumps. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// ServeWS registers conn with hub and starts its pumps.
func ServeWS(hub *Hub, conn *websocket.Conn, clientID string, handler MessageHandler) *Client {
	client := NewClient(conn, hub, clientID, handler)
	select {
	case hub.register <- client:
	case <-hub.done:
		conn.Close()
		return client
	}

	go client.writePump()
	go client.readPump()
	return client
}
