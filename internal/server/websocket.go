package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"
)

// ProfileEvent is broadcast to connected clients when enrichment updates a
// profile, so UIs can refresh without polling.
type ProfileEvent struct {
	Type      string `json:"type"`
	OwnerID   string `json:"owner_id"`
	Timestamp int64  `json:"timestamp"`
}

// WebSocketHub manages WebSocket connections and broadcasts profile events.
type WebSocketHub struct {
	clients    map[*wsClient]bool
	broadcast  chan any
	register   chan *wsClient
	unregister chan *wsClient
	mu         sync.Mutex
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

type wsClient struct {
	hub  *WebSocketHub
	conn *websocket.Conn
	send chan []byte
}

// NewWebSocketHub creates a new WebSocket hub.
func NewWebSocketHub() *WebSocketHub {
	ctx, cancel := context.WithCancel(context.Background())
	return &WebSocketHub{
		clients:    make(map[*wsClient]bool),
		broadcast:  make(chan any, 256),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Run starts the hub's message processing loop. The loop is the only place
// that closes client send channels, so a queued broadcast can never race a
// shutdown onto a closed channel.
func (h *WebSocketHub) Run() {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("server: websocket client connected (total: %d)", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("server: websocket client disconnected (total: %d)", count)

		case message := <-h.broadcast:
			data, err := json.Marshal(message)
			if err != nil {
				log.Printf("server: failed to marshal websocket message: %v", err)
				continue
			}
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- data:
				default:
					// Slow client, disconnect it.
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()

		case <-h.ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				if client.conn != nil {
					_ = client.conn.Close(websocket.StatusNormalClosure, "")
				}
			}
			h.clients = make(map[*wsClient]bool)
			h.mu.Unlock()
			return
		}
	}
}

// Stop shuts down the hub and waits for the loop to finish closing clients.
func (h *WebSocketHub) Stop() {
	h.cancel()
	select {
	case <-h.done:
	case <-time.After(2 * time.Second):
		log.Println("server: websocket hub did not stop in time")
	}
}

// Broadcast sends a message to all connected clients without blocking.
func (h *WebSocketHub) Broadcast(message any) {
	select {
	case h.broadcast <- message:
	default:
		log.Println("server: websocket broadcast channel full, dropping message")
	}
}

// BroadcastProfileUpdated notifies clients that an owner's profile changed.
func (h *WebSocketHub) BroadcastProfileUpdated(ownerID string) {
	h.Broadcast(ProfileEvent{
		Type:      "profile_updated",
		OwnerID:   ownerID,
		Timestamp: time.Now().UnixMilli(),
	})
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *WebSocketHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Printf("server: websocket upgrade failed: %v", err)
		return
	}

	client := &wsClient{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 256),
	}

	select {
	case h.register <- client:
	case <-h.done:
		_ = conn.Close(websocket.StatusGoingAway, "shutting down")
		return
	}

	go client.writePump()
	go client.readPump()
}

// writePump sends messages to the WebSocket connection.
func (c *wsClient) writePump() {
	defer func() {
		c.unregister()
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for message := range c.send {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := c.conn.Write(ctx, websocket.MessageText, message)
		cancel()
		if err != nil {
			return
		}
	}
}

// readPump drains messages to detect disconnections.
func (c *wsClient) readPump() {
	defer func() {
		c.unregister()
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		if _, _, err := c.conn.Read(context.Background()); err != nil {
			return
		}
	}
}

// unregister hands the client back to the hub loop, unless the hub has
// already shut down and taken every client with it.
func (c *wsClient) unregister() {
	select {
	case c.hub.unregister <- c:
	case <-c.hub.done:
	}
}
