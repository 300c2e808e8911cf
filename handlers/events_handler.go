// handlers/events_handler.go
package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"audittool/utils"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// RecordEvent is pushed to every connected client whenever an audit plan,
// non-conformity or organization document changes.
type RecordEvent struct {
	Type      string      `json:"type"` // created | updated | deleted
	Entity    string      `json:"entity"`
	EntityID  string      `json:"entityId"`
	Data      interface{} `json:"data,omitempty"`
	UserName  string      `json:"userName,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	mutex      sync.Mutex
}

type Client struct {
	userID   string
	userRole string
	conn     *websocket.Conn
	send     chan []byte
	hub      *Hub
}

var hub = &Hub{
	clients:    make(map[*Client]bool),
	broadcast:  make(chan []byte),
	register:   make(chan *Client),
	unregister: make(chan *Client),
}

// InitEventHub starts the broadcast loop. Call once during startup.
func InitEventHub() {
	go hub.Run()
}

func (h *Hub) Run() {
	log.Println("record event hub started")
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.mutex.Unlock()

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mutex.Unlock()

		case message := <-h.broadcast:
			h.mutex.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mutex.Unlock()
		}
	}
}

// BroadcastRecordEvent fans a record change out to all connected clients.
func BroadcastRecordEvent(eventType, entity, entityID, userName string, data interface{}) {
	event := RecordEvent{
		Type:      eventType,
		Entity:    entity,
		EntityID:  entityID,
		Data:      data,
		UserName:  userName,
		Timestamp: time.Now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("failed to marshal record event: %v", err)
		return
	}

	select {
	case hub.broadcast <- payload:
	default:
		// Hub not running (e.g. in tests); drop the event.
	}
}

// HandleEvents upgrades an authenticated connection to the record event
// stream. The token arrives as a query parameter since browsers cannot set
// headers on WebSocket dials.
func HandleEvents(w http.ResponseWriter, r *http.Request) {
	tokenString := r.URL.Query().Get("token")
	if tokenString == "" {
		authHeader := r.Header.Get("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			tokenString = strings.TrimPrefix(authHeader, "Bearer ")
		}
	}
	if tokenString == "" {
		http.Error(w, "Authentication token required", http.StatusUnauthorized)
		return
	}

	claims, err := utils.ValidateJWT(tokenString)
	if err != nil || claims == nil {
		http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "WebSocket upgrade failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	client := &Client{
		userID:   claims.UserID,
		userRole: claims.Role,
		conn:     conn,
		send:     make(chan []byte, 256),
		hub:      hub,
	}
	client.hub.register <- client

	welcome, _ := json.Marshal(map[string]interface{}{
		"type":      "welcome",
		"message":   "Connected to record event stream",
		"userID":    claims.UserID,
		"role":      claims.Role,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	client.send <- welcome

	// Write pump. Owns every write on the connection, pings included, so
	// broadcasts and keepalives never interleave; the ticker dies with it.
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer func() {
			ticker.Stop()
			client.hub.unregister <- client
			conn.Close()
		}()
		for {
			select {
			case message, ok := <-client.send:
				if !ok {
					conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
					return
				}
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	// Read pump: refreshes the deadline on pongs and detects disconnects.
	go func() {
		defer func() {
			client.hub.unregister <- client
			conn.Close()
		}()

		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			return nil
		})

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}
