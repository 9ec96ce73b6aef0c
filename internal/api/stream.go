package api

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// IssueEvent describes websocket payloads emitted when issues are stored.
type IssueEvent struct {
	Type      string    `json:"type"`
	Issue     *IssueDTO `json:"issue,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// wsClient wraps a websocket connection with write locking.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// IssueNotifier keeps track of active websocket clients and broadcasts new issues.
type IssueNotifier struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

// NewIssueNotifier constructs a notifier instance.
func NewIssueNotifier() *IssueNotifier {
	return &IssueNotifier{clients: make(map[*wsClient]struct{})}
}

// Register attaches a websocket connection and returns a client handle.
func (n *IssueNotifier) Register(conn *websocket.Conn) *wsClient {
	client := &wsClient{conn: conn}
	n.mu.Lock()
	n.clients[client] = struct{}{}
	n.mu.Unlock()
	return client
}

// Unregister removes the websocket client from the notifier and closes the socket.
func (n *IssueNotifier) Unregister(client *wsClient) {
	if client == nil {
		return
	}
	n.mu.Lock()
	delete(n.clients, client)
	n.mu.Unlock()
	_ = client.conn.Close()
}

// Clients reports how many sockets are attached.
func (n *IssueNotifier) Clients() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.clients)
}

// Broadcast sends the supplied event to all registered websocket clients.
// Clients that fail a write are dropped.
func (n *IssueNotifier) Broadcast(event IssueEvent) {
	event.Timestamp = time.Now().UTC()

	n.mu.Lock()
	defer n.mu.Unlock()
	for client := range n.clients {
		if err := client.writeJSON(event); err != nil {
			delete(n.clients, client)
			_ = client.conn.Close()
		}
	}
}

func (c *wsClient) writeJSON(payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(payload)
}
