package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Event types pushed to browsers.
const (
	EventSubmissionMoved = "submission.moved"
	EventSprintItemMoved = "sprint.item_moved"
	EventSprintUpdated   = "sprint.updated"
)

// Event is one realtime notification. It is only delivered to clients of
// the same org.
type Event struct {
	Type     string      `json:"type"`
	OrgID    string      `json:"org_id"`
	EntityID string      `json:"entity_id"`
	Payload  interface{} `json:"payload,omitempty"`
}

type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	pong       chan *Client
	broadcast  chan Event
	done       chan struct{}
	mu         sync.RWMutex
}

type Client struct {
	Hub    *Hub
	Conn   *websocket.Conn
	Send   chan []byte
	ID     string
	UserID string
	OrgID  string
}

type clientMessage struct {
	Type string `json:"type"`
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		pong:       make(chan *Client),
		broadcast:  make(chan Event, 256),
		done:       make(chan struct{}),
	}
}

var pongMessage = []byte(`{"type":"pong"}`)

// Run owns every client's Send channel: it is the only goroutine that
// writes to or closes it.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.Send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			slog.Info("Client registered", "user_id", client.UserID, "org_id", client.OrgID, "client_id", client.ID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mu.Unlock()
			slog.Info("Client unregistered", "user_id", client.UserID, "client_id", client.ID)

		case client := <-h.pong:
			h.mu.RLock()
			if h.clients[client] {
				select {
				case client.Send <- pongMessage:
				default:
				}
			}
			h.mu.RUnlock()

		case evt := <-h.broadcast:
			message, err := json.Marshal(evt)
			if err != nil {
				slog.Error("Failed to marshal event", "error", err, "type", evt.Type)
				continue
			}
			h.mu.Lock()
			for client := range h.clients {
				if client.OrgID != evt.OrgID {
					continue
				}
				select {
				case client.Send <- message:
				default:
					close(client.Send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish queues evt for delivery. Events are dropped when the queue is
// full so request handlers never block on slow sockets.
func (h *Hub) Publish(evt Event) {
	select {
	case h.broadcast <- evt:
	default:
		slog.Warn("Dropping realtime event, broadcast queue full", "type", evt.Type, "org_id", evt.OrgID)
	}
}

// ClientCount returns the number of connected clients for orgID.
func (h *Hub) ClientCount(orgID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for c := range h.clients {
		if c.OrgID == orgID {
			n++
		}
	}
	return n
}

func (h *Hub) RegisterClient(conn *websocket.Conn, userID, orgID string) *Client {
	client := &Client{
		Hub:    h,
		Conn:   conn,
		Send:   make(chan []byte, 256),
		ID:     uuid.New().String(),
		UserID: userID,
		OrgID:  orgID,
	}

	select {
	case h.register <- client:
	case <-h.done:
		close(client.Send)
	}
	return client
}

// ReadPump drains client frames until the socket closes. Clients may send
// {"type":"ping"} and get {"type":"pong"} back.
func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.Hub.unregister <- c:
		case <-c.Hub.done:
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(64 * 1024)
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, messageBytes, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("WebSocket error", "error", err)
			}
			break
		}

		var msg clientMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			slog.Error("Failed to unmarshal message", "error", err)
			continue
		}
		switch msg.Type {
		case "ping":
			select {
			case c.Hub.pong <- c:
			case <-c.Hub.done:
			}
		default:
			slog.Warn("Unknown message type", "type", msg.Type)
		}
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			n := len(c.Send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.Send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
