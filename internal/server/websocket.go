package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket" //nolint:staticcheck // TODO: migrate to github.com/coder/websocket

	"github.com/scrypster/mneme/internal/notify"
)

// Hub fans store-updated events out to websocket clients. It implements
// notify.Observer so it can be registered with the engine directly.
type Hub struct {
	origins    []string
	clients    map[*client]bool
	broadcast  chan interface{}
	register   chan *client
	unregister chan *client
	mu         sync.RWMutex
	ctx        context.Context
	cancel     context.CancelFunc
}

type client struct {
	hub  *Hub
	conn *websocket.Conn //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
	send chan []byte
}

// NewHub creates a hub accepting upgrades from the given origin host
// patterns (for example "127.0.0.1:6464"). Requests without an Origin
// header are always accepted.
func NewHub(origins ...string) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		origins:    origins,
		clients:    make(map[*client]bool),
		broadcast:  make(chan interface{}, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run processes registrations and broadcasts until Stop.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("WebSocket client connected (total: %d)", count)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("WebSocket client disconnected (total: %d)", count)

		case message := <-h.broadcast:
			data, err := json.Marshal(message)
			if err != nil {
				log.Printf("ERROR: Failed to marshal WebSocket message: %v", err)
				continue
			}

			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- data:
				default:
					// slow client
					close(c.send)
					delete(h.clients, c)
				}
			}
			h.mu.Unlock()

		case <-h.ctx.Done():
			return
		}
	}
}

// Stop shuts the hub down and closes every client.
func (h *Hub) Stop() {
	h.cancel()

	h.mu.Lock()
	for c := range h.clients {
		close(c.send)
		_ = c.conn.Close(websocket.StatusGoingAway, "server shutting down") //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
	}
	h.clients = make(map[*client]bool)
	h.mu.Unlock()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues message for every client. It never blocks.
func (h *Hub) Broadcast(message interface{}) {
	select {
	case h.broadcast <- message:
	default:
		log.Println("WARNING: WebSocket broadcast channel full, dropping message")
	}
}

// StoreUpdated implements notify.Observer.
func (h *Hub) StoreUpdated(evt notify.Event) {
	h.Broadcast(evt)
}

func (h *Hub) add(c *client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.ctx.Done():
		return false
	}
}

func (h *Hub) remove(c *client) {
	select {
	case h.unregister <- c:
	case <-h.ctx.Done():
	}
}

// ServeHTTP upgrades the request and streams events to the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{ //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
		OriginPatterns: h.origins,
	})
	if err != nil {
		log.Printf("ERROR: WebSocket upgrade failed: %v", err)
		return
	}

	c := &client{hub: h, conn: conn, send: make(chan []byte, 64)}
	if !h.add(c) {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down") //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
		return
	}

	go c.writePump()
	go c.readPump()
}

// writePump sends queued events to the connection.
func (c *client) writePump() {
	defer c.hub.remove(c)

	for message := range c.send {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := c.conn.Write(ctx, websocket.MessageText, message) //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
		cancel()
		if err != nil {
			log.Printf("WARNING: WebSocket write failed: %v", err)
			return
		}
	}
}

// readPump drains client messages to detect disconnects.
func (c *client) readPump() {
	defer func() {
		c.hub.remove(c)
		_ = c.conn.Close(websocket.StatusNormalClosure, "") //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
	}()

	for {
		if _, _, err := c.conn.Read(c.hub.ctx); err != nil { //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
			return
		}
	}
}
