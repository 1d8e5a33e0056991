// internal/handler/websocket_types.go
package handler

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"plc-monitor/internal/model"
)

// Client represents a WebSocket client
type Client struct {
	ID          string          `json:"id"`
	Connection  *websocket.Conn `json:"-"`
	Send        chan []byte     `json:"-"`
	UserAgent   string          `json:"user_agent"`
	RemoteAddr  string          `json:"remote_addr"`
	ConnectedAt time.Time       `json:"connected_at"`

	mu     sync.RWMutex
	topics map[model.EventType]bool
}

// Subscribe limits the client to the given event type in addition to any
// already chosen. A client without topics receives every event.
func (c *Client) Subscribe(topic model.EventType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.topics == nil {
		c.topics = make(map[model.EventType]bool)
	}
	c.topics[topic] = true
}

// Unsubscribe removes a topic
func (c *Client) Unsubscribe(topic model.EventType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.topics, topic)
}

// Wants reports whether the client receives events of type t
func (c *Client) Wants(t model.EventType) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.topics) == 0 || c.topics[t]
}

// Topics returns the client's explicit subscriptions
func (c *Client) Topics() []model.EventType {
	c.mu.RLock()
	defer c.mu.RUnlock()
	topics := make([]model.EventType, 0, len(c.topics))
	for t := range c.topics {
		topics = append(topics, t)
	}
	return topics
}

// WebSocketMessage represents a WebSocket message
type WebSocketMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
}

// ConnectionManager manages WebSocket connections
type ConnectionManager struct {
	clients map[string]*Client
	mutex   sync.RWMutex
}

// NewConnectionManager creates a new connection manager
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		clients: make(map[string]*Client),
	}
}

// Register registers a new client
func (cm *ConnectionManager) Register(client *Client) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()
	cm.clients[client.ID] = client
}

// Unregister removes a client and closes its send channel. Safe to call
// more than once.
func (cm *ConnectionManager) Unregister(client *Client) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()
	if _, ok := cm.clients[client.ID]; ok {
		delete(cm.clients, client.ID)
		close(client.Send)
	}
}

// CloseAll unregisters every client
func (cm *ConnectionManager) CloseAll() {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()
	for id, client := range cm.clients {
		delete(cm.clients, id)
		close(client.Send)
	}
}

// Broadcast queues message for every client that wants events of type t
// and returns how many clients were too slow to take it. Sends happen under
// the read lock so Unregister cannot close a channel mid-send.
func (cm *ConnectionManager) Broadcast(t model.EventType, message []byte) int {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	dropped := 0
	for _, client := range cm.clients {
		if !client.Wants(t) {
			continue
		}
		select {
		case client.Send <- message:
		default:
			dropped++
		}
	}
	return dropped
}

// SendTo queues message for one registered client
func (cm *ConnectionManager) SendTo(client *Client, message []byte) bool {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	if _, ok := cm.clients[client.ID]; !ok {
		return false
	}
	select {
	case client.Send <- message:
		return true
	default:
		return false
	}
}

// GetStats returns connection statistics
func (cm *ConnectionManager) GetStats() *ConnectionStats {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	stats := &ConnectionStats{
		TotalConnections: len(cm.clients),
		ByTopic:          make(map[string]int),
		Clients:          make([]*Client, 0, len(cm.clients)),
	}

	for _, client := range cm.clients {
		topics := client.Topics()
		if len(topics) == 0 {
			stats.ByTopic["all"]++
		}
		for _, t := range topics {
			stats.ByTopic[string(t)]++
		}
		stats.Clients = append(stats.Clients, client)
	}

	return stats
}

// ConnectionStats represents connection statistics
type ConnectionStats struct {
	TotalConnections int            `json:"total_connections"`
	ByTopic          map[string]int `json:"by_topic"`
	Clients          []*Client      `json:"clients"`
	DroppedEvents    uint64         `json:"dropped_events"`
}
