// internal/handler/websocket_handler_test.go
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap/zaptest"

	"plc-monitor/internal/model"
	"plc-monitor/internal/service"
)

func startEventServer(t *testing.T, svc *service.MonitorService, origins []string) (*httptest.Server, *WebSocketHandler) {
	t.Helper()
	logger := zaptest.NewLogger(t)

	ctx, cancel := context.WithCancel(context.Background())
	bus := NewEventBus(logger)
	ws := NewWebSocketHandler(svc, bus, origins, logger)
	svc.Subscribe(bus.Publish)
	go bus.Start(ctx)
	go ws.Run(ctx)

	router := gin.New()
	ws.RegisterRoutes(router.Group("/ws"))
	server := httptest.NewServer(router)
	t.Cleanup(func() {
		cancel()
		server.Close()
	})
	return server, ws
}

func dial(t *testing.T, server *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/events" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg map[string]interface{}
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode %q: %v", data, err)
	}
	return msg
}

func waitForClients(t *testing.T, ws *WebSocketHandler, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for ws.GetConnectionStats().TotalConnections != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, have %d", n, ws.GetConnectionStats().TotalConnections)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebSocket_InitialStatusAndBroadcast(t *testing.T) {
	svc, _ := newTestMonitor(t)
	server, ws := startEventServer(t, svc, []string{"*"})

	conn := dial(t, server, "")
	if msg := readMessage(t, conn); msg["type"] != "initial_status" {
		t.Fatalf("first message = %v", msg["type"])
	}
	waitForClients(t, ws, 1)

	if err := svc.SetTarget(&service.TargetRequest{Address: "D100", Value: uint16Ptr(5)}); err != nil {
		t.Fatalf("SetTarget: %v", err)
	}

	msg := readMessage(t, conn)
	if msg["type"] != "target_set" {
		t.Fatalf("broadcast type = %v", msg["type"])
	}
	data, _ := msg["data"].(map[string]interface{})
	if data["address"] != "D100" {
		t.Fatalf("broadcast data = %v", data)
	}
}

func TestWebSocket_TopicFilter(t *testing.T) {
	svc, client := newTestMonitor(t)
	server, ws := startEventServer(t, svc, nil)

	conn := dial(t, server, "?topics=trigger")
	readMessage(t, conn)
	waitForClients(t, ws, 1)

	if stats := ws.GetConnectionStats(); stats.ByTopic["trigger"] != 1 {
		t.Fatalf("by_topic = %v", stats.ByTopic)
	}

	// target_set is filtered out; the first message seen must be the trigger
	if err := svc.SetTarget(&service.TargetRequest{Address: "M20", Value: uint16Ptr(1)}); err != nil {
		t.Fatalf("SetTarget: %v", err)
	}
	client.Respond(0)
	client.Respond(1)

	msg := readMessage(t, conn)
	if msg["type"] != "trigger" {
		t.Fatalf("message type = %v", msg["type"])
	}
}

func TestWebSocket_ClientMessages(t *testing.T) {
	svc, _ := newTestMonitor(t)
	server, _ := startEventServer(t, svc, nil)

	conn := dial(t, server, "")
	readMessage(t, conn)

	send := func(v interface{}) {
		if err := conn.WriteJSON(v); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	send(map[string]interface{}{"type": "ping", "request_id": "r1"})
	if msg := readMessage(t, conn); msg["type"] != "pong" || msg["request_id"] != "r1" {
		t.Fatalf("ping reply = %v", msg)
	}

	send(map[string]interface{}{"type": "subscribe", "data": map[string]string{"topic": "trigger"}})
	if msg := readMessage(t, conn); msg["type"] != "subscribed" {
		t.Fatalf("subscribe reply = %v", msg)
	}

	send(map[string]interface{}{"type": "subscribe"})
	if msg := readMessage(t, conn); msg["type"] != "error" {
		t.Fatalf("subscribe without topic = %v", msg)
	}

	send(map[string]interface{}{"type": "status"})
	if msg := readMessage(t, conn); msg["type"] != "status" {
		t.Fatalf("status reply = %v", msg)
	}

	send(map[string]interface{}{"type": "reboot"})
	if msg := readMessage(t, conn); msg["type"] != "error" {
		t.Fatalf("unknown type reply = %v", msg)
	}
}

func TestWebSocket_RejectsForeignOrigin(t *testing.T) {
	svc, _ := newTestMonitor(t)
	server, _ := startEventServer(t, svc, []string{"http://hmi.local"})

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/events"
	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err == nil {
		t.Fatalf("expected handshake failure")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("unexpected response %v", resp)
	}

	header.Set("Origin", "http://hmi.local")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("allowed origin: %v", err)
	}
	conn.Close()
}

func TestWebSocket_StatsReportDroppedEvents(t *testing.T) {
	svc, _ := newTestMonitor(t)
	logger := zaptest.NewLogger(t)
	bus := NewEventBus(logger)
	ws := NewWebSocketHandler(svc, bus, nil, logger)

	// the bus is never started, so its queue fills up
	for i := 0; i < cap(bus.events)+3; i++ {
		bus.Publish(model.Event{Type: model.EventTrigger})
	}

	stats := ws.GetConnectionStats()
	if stats.DroppedEvents != 3 || stats.TotalConnections != 0 {
		t.Fatalf("stats = %+v", stats)
	}
}

func uint16Ptr(v uint16) *uint16 { return &v }
