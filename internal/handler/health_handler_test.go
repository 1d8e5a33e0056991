// internal/handler/health_handler_test.go
package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"

	"plc-monitor/internal/config"
	"plc-monitor/pkg/mcclient"
)

func TestHealthHandler(t *testing.T) {
	svc, client := newTestMonitor(t)
	cfg := &config.Config{App: config.AppConfig{Name: "plc-monitor", Version: "test"}}

	router := gin.New()
	NewHealthHandler(nil, svc, cfg, zaptest.NewLogger(t)).RegisterRoutes(router.Group(""))

	get := func(path string) (int, map[string]interface{}) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		var body map[string]interface{}
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("%s: invalid JSON %q", path, w.Body.String())
		}
		return w.Code, body
	}

	tests := []struct {
		state      mcclient.State
		health     string
		healthCode int
		readyCode  int
	}{
		{mcclient.StateIdle, "degraded", http.StatusOK, http.StatusOK},
		{mcclient.StateRetrying, "degraded", http.StatusOK, http.StatusOK},
		{mcclient.StateConnected, "healthy", http.StatusOK, http.StatusOK},
		{mcclient.StateStopped, "unhealthy", http.StatusServiceUnavailable, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		client.SetState(tt.state)

		code, body := get("/health")
		if code != tt.healthCode || body["status"] != tt.health {
			t.Fatalf("%s: /health = %d %v", tt.state, code, body["status"])
		}
		checks, _ := body["checks"].(map[string]interface{})
		if _, ok := checks["database"]; ok {
			t.Fatalf("%s: database check reported while disabled", tt.state)
		}

		if code, _ := get("/ready"); code != tt.readyCode {
			t.Fatalf("%s: /ready = %d", tt.state, code)
		}
	}

	if code, _ := get("/health/db"); code != http.StatusNotFound {
		t.Fatalf("/health/db = %d, want 404", code)
	}
	if code, body := get("/live"); code != http.StatusOK || body["status"] != "alive" {
		t.Fatalf("/live = %d %v", code, body)
	}
}
