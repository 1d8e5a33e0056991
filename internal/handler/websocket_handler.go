// internal/handler/websocket_handler.go
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"plc-monitor/internal/model"
	"plc-monitor/internal/service"
	"plc-monitor/internal/utils"
)

const (
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 54 * time.Second
	wsWriteWait  = 10 * time.Second
)

// WebSocketHandler streams monitor events to WebSocket clients
type WebSocketHandler struct {
	upgrader       websocket.Upgrader
	connections    *ConnectionManager
	monitorService *service.MonitorService
	bus            *EventBus
	events         <-chan model.Event
	logger         *utils.ServiceLogger
}

// NewWebSocketHandler creates a new WebSocket handler subscribed to bus
func NewWebSocketHandler(
	monitorService *service.MonitorService,
	bus *EventBus,
	allowedOrigins []string,
	logger *zap.Logger,
) *WebSocketHandler {
	return &WebSocketHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		connections:    NewConnectionManager(),
		monitorService: monitorService,
		bus:            bus,
		events:         bus.Subscribe(model.EventTrigger, model.EventStateChanged, model.EventTargetSet),
		logger:         utils.NewServiceLogger(logger, "websocket-handler"),
	}
}

// originChecker accepts requests without an Origin header and origins in
// the allow list; "*" allows everything.
func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}

// RegisterRoutes registers WebSocket routes
func (h *WebSocketHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/events", h.HandleEventConnection)
}

// Run forwards bus events to clients until ctx is done or the bus stops,
// then disconnects every client.
func (h *WebSocketHandler) Run(ctx context.Context) {
	defer h.connections.CloseAll()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-h.events:
			if !ok {
				return
			}
			h.broadcast(event)
		}
	}
}

// HandleEventConnection upgrades to a WebSocket streaming monitor events
// @Summary Monitor event stream
// @Description WebSocket stream of trigger, state_changed and target_set messages. topics narrows the stream.
// @Tags WebSocket
// @Param topics query string false "Comma separated event types"
// @Router /ws/events [get]
func (h *WebSocketHandler) HandleEventConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}

	client := &Client{
		ID:          uuid.New().String(),
		Connection:  conn,
		Send:        make(chan []byte, 256),
		UserAgent:   c.Request.UserAgent(),
		RemoteAddr:  c.Request.RemoteAddr,
		ConnectedAt: time.Now(),
	}
	if topics := c.Query("topics"); topics != "" {
		for _, t := range strings.Split(topics, ",") {
			if t = strings.TrimSpace(t); t != "" {
				client.Subscribe(model.EventType(t))
			}
		}
	}

	h.connections.Register(client)
	h.logger.Info("Event WebSocket client connected",
		zap.String("client_id", client.ID),
		zap.String("remote_addr", client.RemoteAddr),
	)

	h.sendMessage(client, &WebSocketMessage{
		Type:      "initial_status",
		Data:      h.monitorService.Status(),
		Timestamp: time.Now(),
	})

	go h.handleClientRead(client)
	go h.handleClientWrite(client)
}

// handleClientRead handles reading messages from WebSocket client
func (h *WebSocketHandler) handleClientRead(client *Client) {
	defer func() {
		h.connections.Unregister(client)
		client.Connection.Close()
	}()

	client.Connection.SetReadDeadline(time.Now().Add(wsPongWait))
	client.Connection.SetPongHandler(func(string) error {
		client.Connection.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		_, messageBytes, err := client.Connection.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Error("WebSocket read error",
					zap.Error(err),
					zap.String("client_id", client.ID),
				)
			}
			break
		}

		var message WebSocketMessage
		if err := json.Unmarshal(messageBytes, &message); err != nil {
			h.sendError(client, "invalid message")
			continue
		}

		h.handleClientMessage(client, &message)
	}
}

// handleClientWrite handles writing messages to WebSocket client
func (h *WebSocketHandler) handleClientWrite(client *Client) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		client.Connection.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			client.Connection.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				client.Connection.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := client.Connection.WriteMessage(websocket.TextMessage, message); err != nil {
				h.logger.Error("WebSocket write error",
					zap.Error(err),
					zap.String("client_id", client.ID),
				)
				return
			}

		case <-ticker.C:
			client.Connection.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := client.Connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleClientMessage handles incoming client messages
func (h *WebSocketHandler) handleClientMessage(client *Client, message *WebSocketMessage) {
	switch message.Type {
	case "subscribe", "unsubscribe":
		topic, ok := messageTopic(message)
		if !ok {
			h.sendError(client, "topic is required")
			return
		}
		if message.Type == "subscribe" {
			client.Subscribe(topic)
		} else {
			client.Unsubscribe(topic)
		}
		h.sendMessage(client, &WebSocketMessage{
			Type:      message.Type + "d",
			Data:      map[string]interface{}{"topic": topic},
			Timestamp: time.Now(),
			RequestID: message.RequestID,
		})
	case "status":
		h.sendMessage(client, &WebSocketMessage{
			Type:      "status",
			Data:      h.monitorService.Status(),
			Timestamp: time.Now(),
			RequestID: message.RequestID,
		})
	case "ping":
		h.sendMessage(client, &WebSocketMessage{
			Type:      "pong",
			Timestamp: time.Now(),
			RequestID: message.RequestID,
		})
	default:
		h.logger.Warn("Unknown message type",
			zap.String("type", message.Type),
			zap.String("client_id", client.ID),
		)
		h.sendError(client, "unknown message type: "+message.Type)
	}
}

func messageTopic(message *WebSocketMessage) (model.EventType, bool) {
	data, ok := message.Data.(map[string]interface{})
	if !ok {
		return "", false
	}
	topic, ok := data["topic"].(string)
	if !ok || topic == "" {
		return "", false
	}
	return model.EventType(topic), true
}

// sendMessage sends a message to a client
func (h *WebSocketHandler) sendMessage(client *Client, message *WebSocketMessage) {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("Failed to marshal WebSocket message", zap.Error(err))
		return
	}

	if !h.connections.SendTo(client, messageBytes) {
		h.logger.Warn("Client send channel full, dropping message",
			zap.String("client_id", client.ID),
		)
	}
}

// sendError sends an error message to a client
func (h *WebSocketHandler) sendError(client *Client, errorMsg string) {
	h.sendMessage(client, &WebSocketMessage{
		Type:      "error",
		Data:      map[string]interface{}{"error": errorMsg},
		Timestamp: time.Now(),
	})
}

// broadcast sends a bus event to every interested client
func (h *WebSocketHandler) broadcast(event model.Event) {
	messageBytes, err := json.Marshal(&WebSocketMessage{
		Type:      string(event.Type),
		Data:      event.Data,
		Timestamp: event.Timestamp,
	})
	if err != nil {
		h.logger.Error("Failed to marshal broadcast message", zap.Error(err))
		return
	}

	if dropped := h.connections.Broadcast(event.Type, messageBytes); dropped > 0 {
		h.logger.Warn("Client send channel full during broadcast",
			zap.String("event_type", string(event.Type)),
			zap.Int("dropped", dropped),
		)
	}
}

// GetConnectionStats returns connection statistics and the number of
// events the bus dropped on overflow
func (h *WebSocketHandler) GetConnectionStats() *ConnectionStats {
	stats := h.connections.GetStats()
	stats.DroppedEvents = h.bus.Dropped()
	return stats
}
