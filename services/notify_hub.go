package services

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocket hub configuration
const (
	MaxWebSocketClients   = 100
	WebSocketWriteTimeout = 10 * time.Second
	WebSocketPongTimeout  = 60 * time.Second
	WebSocketPingInterval = 30 * time.Second
)

// hubClient is one connected WebSocket client bound to a user
type hubClient struct {
	userID string
	conn   *websocket.Conn
	send   chan []byte
}

// NotifyHub is a NotificationSink that pushes each user's notifications
// to that user's connected WebSocket clients as JSON frames.
type NotifyHub struct {
	clients    map[*hubClient]bool
	register   chan *hubClient
	unregister chan *hubClient
	broadcast  chan Notification
	shutdown   chan struct{}
	mu         sync.RWMutex
	upgrader   websocket.Upgrader
}

// NewNotifyHub creates the hub and starts its dispatch loop
func NewNotifyHub() *NotifyHub {
	hub := &NotifyHub{
		clients:    make(map[*hubClient]bool),
		register:   make(chan *hubClient),
		unregister: make(chan *hubClient),
		broadcast:  make(chan Notification, 256),
		shutdown:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	go hub.run()
	return hub
}

// Send queues a notification for the owning user's clients. A full queue
// drops the notification rather than blocking the scheduler.
func (h *NotifyHub) Send(n Notification) error {
	select {
	case h.broadcast <- n:
	default:
		log.Printf("Notify hub queue full, dropping %s notification for user %s", n.Type, n.UserID)
	}
	return nil
}

// ClientCount reports the number of attached clients
func (h *NotifyHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown closes every client connection and stops the dispatch loop
func (h *NotifyHub) Shutdown() {
	close(h.shutdown)

	h.mu.Lock()
	for client := range h.clients {
		close(client.send)
		client.conn.Close()
	}
	h.clients = make(map[*hubClient]bool)
	h.mu.Unlock()

	log.Println("Notify hub shutdown complete")
}

// run dispatches register/unregister/broadcast events
func (h *NotifyHub) run() {
	for {
		select {
		case <-h.shutdown:
			return

		case client := <-h.register:
			h.mu.Lock()
			if len(h.clients) >= MaxWebSocketClients {
				h.mu.Unlock()
				client.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "Server at capacity"))
				client.conn.Close()
				log.Printf("WebSocket client rejected: max clients reached (%d)", MaxWebSocketClients)
				continue
			}
			h.clients[client] = true
			clientCount := len(h.clients)
			h.mu.Unlock()
			log.Printf("WebSocket client connected for user %s. Total clients: %d", client.userID, clientCount)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			clientCount := len(h.clients)
			h.mu.Unlock()
			log.Printf("WebSocket client disconnected. Total clients: %d", clientCount)

		case n := <-h.broadcast:
			data, err := json.Marshal(n)
			if err != nil {
				log.Printf("Error marshaling notification: %v", err)
				continue
			}

			h.mu.Lock()
			deadClients := make([]*hubClient, 0)
			for client := range h.clients {
				if client.userID != n.UserID {
					continue
				}
				select {
				case client.send <- data:
				default:
					// Client buffer full, mark for removal
					deadClients = append(deadClients, client)
				}
			}
			for _, client := range deadClients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
		}
	}
}

// HandleWebSocket upgrades the connection and attaches it to the hub.
// The userId query parameter binds the connection to a user.
func (h *NotifyHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return
	}

	h.mu.RLock()
	atCapacity := len(h.clients) >= MaxWebSocketClients
	h.mu.RUnlock()
	if atCapacity {
		http.Error(w, "Server at capacity", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := &hubClient{
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, 256),
	}

	// The dispatch loop is the only receiver; once Shutdown closes it
	// the connection is refused instead of blocking here forever.
	select {
	case h.register <- client:
	case <-h.shutdown:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump(h)
}

// writePump writes queued frames and keepalive pings to the connection
func (c *hubClient) writePump() {
	ticker := time.NewTicker(WebSocketPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(WebSocketWriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(WebSocketWriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains the connection and keeps the pong deadline fresh
func (c *hubClient) readPump(h *NotifyHub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.shutdown:
			// Shutdown already closed and dropped every client
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(WebSocketPongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(WebSocketPongTimeout))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket read error: %v", err)
			}
			break
		}
	}
}
