package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/assistpro/shopsync/internal/logging"
	syncpkg "github.com/assistpro/shopsync/internal/sync"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     localOrigin,
}

// localOrigin accepts same-host clients and pages served from localhost.
func localOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return u.Host == r.Host
}

// WSClient is one status-indicator connection.
type WSClient struct {
	id            string
	conn          *websocket.Conn
	send          chan []byte
	hub           *WSHub
	mu            sync.Mutex
	subscriptions map[string]bool
	closed        bool
}

// WSHub fans sync events out to connected clients.
type WSHub struct {
	clients    map[string]*WSClient
	broadcast  chan []byte
	register   chan *WSClient
	unregister chan *WSClient
	done       chan struct{}
	mu         sync.RWMutex
}

// WSEnvelope wraps all WebSocket messages.
type WSEnvelope struct {
	Type      string            `json:"type"`
	Data      syncpkg.SyncEvent `json:"data"`
	Timestamp int64             `json:"timestamp"`
}

// NewWSHub creates a hub and starts its loop.
func NewWSHub() *WSHub {
	hub := &WSHub{
		clients:    make(map[string]*WSClient),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
		done:       make(chan struct{}),
	}
	go hub.run()
	return hub
}

func (h *WSHub) run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for id, client := range h.clients {
				client.close()
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			n := len(h.clients)
			h.mu.Unlock()
			logging.Debug("[WS] Client connected", zap.String("client_id", client.id), zap.Int("total", n))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				client.close()
			}
			n := len(h.clients)
			h.mu.Unlock()
			logging.Debug("[WS] Client disconnected", zap.String("client_id", client.id), zap.Int("total", n))

		case message := <-h.broadcast:
			eventType := envelopeType(message)
			h.mu.Lock()
			for id, client := range h.clients {
				if !client.wants(eventType) {
					continue
				}
				if !client.trySend(message) {
					// slow client
					client.close()
					delete(h.clients, id)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Close disconnects every client and stops the hub.
func (h *WSHub) Close() {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}

// ClientCount returns the number of connected clients.
func (h *WSHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// OnSyncEvent implements syncpkg.SyncEventHandler. It never blocks the sync
// goroutine: when the broadcast buffer is full the event is dropped.
func (h *WSHub) OnSyncEvent(event syncpkg.SyncEvent) {
	bytes, err := json.Marshal(WSEnvelope{
		Type:      string(event.Type),
		Data:      event,
		Timestamp: event.Timestamp.Unix(),
	})
	if err != nil {
		logging.Warn("[WS] Failed to marshal event", zap.Error(err))
		return
	}
	select {
	case h.broadcast <- bytes:
	default:
		logging.Warn("[WS] Broadcast buffer full, dropping event", zap.String("type", string(event.Type)))
	}
}

func envelopeType(message []byte) string {
	var head struct {
		Type string `json:"type"`
	}
	_ = json.Unmarshal(message, &head)
	return head.Type
}

// wants reports whether the client subscribed to eventType. Clients that
// never subscribed receive everything.
func (c *WSClient) wants(eventType string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subscriptions) == 0 || c.subscriptions[eventType]
}

type clientMessage struct {
	Action string   `json:"action"`
	Events []string `json:"events"`
}

func (c *WSClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Debug("[WS] Read error", zap.String("client_id", c.id), zap.Error(err))
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			logging.Debug("[WS] Invalid message format", zap.Error(err))
			continue
		}

		switch msg.Action {
		case "subscribe":
			c.mu.Lock()
			for _, e := range msg.Events {
				c.subscriptions[e] = true
			}
			c.mu.Unlock()
			c.reply(map[string]any{"action": "subscribe_ack", "subscribed": msg.Events})

		case "unsubscribe":
			c.mu.Lock()
			for _, e := range msg.Events {
				delete(c.subscriptions, e)
			}
			c.mu.Unlock()

		case "ping":
			c.reply(map[string]any{"action": "pong"})
		}
	}
}

func (c *WSClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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

// reply queues a direct response to the client.
func (c *WSClient) reply(payload map[string]any) {
	payload["timestamp"] = time.Now().Unix()
	bytes, err := json.Marshal(payload)
	if err != nil {
		return
	}
	c.trySend(bytes)
}

// trySend queues message without blocking. It reports false when the
// client is closed or its buffer is full.
func (c *WSClient) trySend(message []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

// close closes the send channel once.
func (c *WSClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// HandleWebSocket upgrades GET /ws.
func (h *WSHub) HandleWebSocket(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logging.FromEcho(c).Warn("[WS] Failed to upgrade", zap.Error(err))
		return nil
	}

	client := &WSClient{
		id:            uuid.NewString(),
		conn:          conn,
		send:          make(chan []byte, sendBuffer),
		hub:           h,
		subscriptions: make(map[string]bool),
	}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return nil
	}

	go client.writePump()
	go client.readPump()
	return nil
}
