package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"tunemux/logger"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// MessageType tags websocket messages.
type MessageType string

const (
	MsgTypeQueue  MessageType = "queue"
	MsgTypeStatus MessageType = "status"
	MsgTypeError  MessageType = "error"
	MsgTypePing   MessageType = "ping"
	MsgTypePong   MessageType = "pong"

	// Player commands sent by clients.
	MsgTypePlay    MessageType = "play"
	MsgTypePause   MessageType = "pause"
	MsgTypeNext    MessageType = "next"
	MsgTypePrev    MessageType = "prev"
	MsgTypeSeek    MessageType = "seek"
	MsgTypeVolume  MessageType = "volume"
	MsgTypeShuffle MessageType = "shuffle"
	MsgTypeRepeat  MessageType = "repeat"
	MsgTypeSelect  MessageType = "select"
)

const (
	sendBuffer   = 64
	readLimit    = 4096
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
)

// WSMessage is the envelope for every websocket frame.
type WSMessage struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

func encodeMessage(t MessageType, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(&WSMessage{Type: t, Data: raw, Timestamp: time.Now().UnixMilli()})
}

// Client is one websocket connection.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub tracks connected clients and fans broadcasts out to them. A client whose
// buffer is full is dropped rather than allowed to stall the others.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	mu   sync.RWMutex
	done chan struct{}
	log  *zap.Logger
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
		log:        logger.Named("hub"),
	}
}

// Run owns the client set until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.log.Debug("client registered", logger.Int("clients", h.Count()))

		case client := <-h.unregister:
			h.mu.Lock()
			h.removeLocked(client)
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- msg:
				default:
					h.log.Warn("dropping slow websocket client")
					h.removeLocked(client)
				}
			}
			h.mu.Unlock()

		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				h.removeLocked(client)
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) removeLocked(client *Client) {
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Register adds a client. It returns false once the hub has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Broadcast queues msg for every client.
func (h *Hub) Broadcast(t MessageType, data interface{}) {
	msg, err := encodeMessage(t, data)
	if err != nil {
		h.log.Warn("encode broadcast failed", logger.ErrorField(err))
		return
	}
	select {
	case h.broadcast <- msg:
	case <-h.done:
	}
}

// Send queues msg for this client only, dropping it when the buffer is full
// or the client is no longer registered.
func (c *Client) Send(t MessageType, data interface{}) {
	msg, err := encodeMessage(t, data)
	if err != nil {
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if !c.hub.clients[c] {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

// ReadPump reads client commands until the connection fails.
func (c *Client) ReadPump(ctx context.Context, handler func(ctx context.Context, c *Client, msg *WSMessage)) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(readLimit)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn("websocket read error", logger.ErrorField(err))
			}
			return
		}
		if ctx.Err() != nil {
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.Send(MsgTypeError, map[string]string{"error": "invalid message"})
			continue
		}
		if msg.Type == MsgTypePing {
			c.Send(MsgTypePong, nil)
			continue
		}
		handler(ctx, c, &msg)
	}
}

// WritePump writes queued messages and keeps the connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
