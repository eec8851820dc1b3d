// Package realtime fans ledger snapshots out to connected websocket clients.
package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"example.com/fittrack/internal/domain"
)

// SnapshotMessage is the wire payload pushed to clients after every applied
// snapshot: the whole workout collection, matching the document semantics.
type SnapshotMessage struct {
	Type     string                 `json:"type"`
	Workouts []domain.WorkoutRecord `json:"workouts"`
}

// Client is one websocket connection owned by a user.
type Client struct {
	UserID string
	Conn   *websocket.Conn

	writeMu sync.Mutex
}

func (c *Client) write(messageType int, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.Conn.WriteMessage(messageType, payload)
}

// Hub tracks connected clients per user.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

// NewHub constructs an empty Hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[string]map[*Client]struct{})}
}

// Register adds a client to its user's set.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.clients[c.UserID] == nil {
		h.clients[c.UserID] = make(map[*Client]struct{})
	}
	h.clients[c.UserID][c] = struct{}{}
	h.mu.Unlock()
}

// Unregister drops a client and closes its connection. Safe to call twice.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if set := h.clients[c.UserID]; set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.UserID)
		}
	}
	h.mu.Unlock()
	_ = c.Conn.Close()
}

// ClientCount reports how many connections a user currently holds.
func (h *Hub) ClientCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// BroadcastSnapshot pushes the given workout collection to every connection
// the user holds. Write failures are left to the read loop to detect.
func (h *Hub) BroadcastSnapshot(userID string, workouts []domain.WorkoutRecord) {
	msg, err := json.Marshal(SnapshotMessage{Type: "ledger.snapshot", Workouts: workouts})
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[userID] {
		_ = c.write(websocket.TextMessage, msg)
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const pingInterval = 25 * time.Second

// ServeWS upgrades the request and parks the connection in the hub until the
// client disconnects. Blocks for the lifetime of the connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	client := &Client{UserID: userID, Conn: conn}
	h.Register(client)

	// Keep the connection alive through intermediaries.
	go func() {
		t := time.NewTicker(pingInterval)
		defer t.Stop()
		for range t.C {
			if err := client.write(websocket.PingMessage, nil); err != nil {
				h.Unregister(client)
				return
			}
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.Unregister(client)
			return
		}
	}
}
