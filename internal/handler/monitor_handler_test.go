// internal/handler/monitor_handler_test.go
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"

	"plc-monitor/internal/config"
	"plc-monitor/internal/driver/melsec"
	"plc-monitor/internal/repository"
	"plc-monitor/internal/service"
	"plc-monitor/pkg/mcclient/mcclienttest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Details string `json:"details"`
	} `json:"error"`
}

func newTestMonitor(t *testing.T) (*service.MonitorService, *mcclienttest.Client) {
	t.Helper()
	client := mcclienttest.New()
	cfg := &config.Config{
		App: config.AppConfig{Name: "plc-monitor", Version: "test"},
		PLC: config.PLCConfig{Host: "127.0.0.1", Port: 5000},
	}
	svc := service.NewMonitorService(client, repository.NewMemoryTriggerEventRepository(100), cfg, zaptest.NewLogger(t))
	t.Cleanup(svc.Stop)
	return svc, client
}

func newMonitorRouter(t *testing.T, svc *service.MonitorService) *gin.Engine {
	router := gin.New()
	NewMonitorHandler(svc, zaptest.NewLogger(t)).RegisterRoutes(router.Group("/api/v1"))
	return router
}

func do(t *testing.T, router http.Handler, method, path, body string) (int, apiResponse) {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp apiResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("%s %s: invalid JSON %q: %v", method, path, w.Body.String(), err)
	}
	return w.Code, resp
}

func TestMonitorHandler_SetTarget(t *testing.T) {
	svc, _ := newTestMonitor(t)
	router := newMonitorRouter(t, svc)

	code, resp := do(t, router, http.MethodPut, "/api/v1/monitor/target",
		`{"address":"zr1a","value":3,"mask":7,"name":"door","unit":"state"}`)
	if code != http.StatusOK || !resp.Success {
		t.Fatalf("status=%d resp=%+v", code, resp)
	}

	var status service.MonitorStatus
	if err := json.Unmarshal(resp.Data, &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !status.HasTarget || status.Address != "ZR1A" || status.TargetValue != 3 || status.Mask != 7 {
		t.Fatalf("unexpected status %+v", status.Status)
	}
	if status.Label.Name != "door" || status.Label.Unit != "state" {
		t.Fatalf("unexpected label %+v", status.Label)
	}
}

func TestMonitorHandler_SetTargetErrors(t *testing.T) {
	svc, _ := newTestMonitor(t)
	router := newMonitorRouter(t, svc)

	cases := []struct {
		name string
		body string
		code string
	}{
		{"unknown device", `{"address":"Q100","value":1}`, "UNKNOWN_DEVICE_TYPE"},
		{"malformed", `{"address":"D12X","value":1}`, "MALFORMED_ADDRESS"},
		{"offset range", `{"address":"D99999999","value":1}`, "OFFSET_OUT_OF_RANGE"},
		{"missing value", `{"address":"D100"}`, "BAD_REQUEST"},
		{"bad scale", `{"address":"D100","value":1,"scale":"abc"}`, "VALIDATION_ERROR"},
	}
	for _, tc := range cases {
		code, resp := do(t, router, http.MethodPut, "/api/v1/monitor/target", tc.body)
		if code != http.StatusBadRequest || resp.Success || resp.Error == nil || resp.Error.Code != tc.code {
			t.Fatalf("%s: status=%d resp=%+v", tc.name, code, resp)
		}
	}

	if svc.Status().HasTarget {
		t.Fatalf("rejected targets must not install a target")
	}
}

func TestMonitorHandler_WaitTimeout(t *testing.T) {
	svc, _ := newTestMonitor(t)
	router := newMonitorRouter(t, svc)

	do(t, router, http.MethodPut, "/api/v1/monitor/target", `{"address":"D100","value":100}`)
	code, resp := do(t, router, http.MethodPost, "/api/v1/monitor/wait", `{"timeout_ms":20}`)
	if code != http.StatusOK {
		t.Fatalf("status=%d", code)
	}
	var result service.WaitResult
	json.Unmarshal(resp.Data, &result)
	if result.Matched {
		t.Fatalf("matched without a response")
	}
}

func TestMonitorHandler_WaitMatchAndEvents(t *testing.T) {
	svc, client := newTestMonitor(t)
	router := newMonitorRouter(t, svc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.AnswerEachTarget(ctx)

	do(t, router, http.MethodPut, "/api/v1/monitor/target", `{"address":"D100","value":100,"scale":"0.5"}`)
	code, resp := do(t, router, http.MethodPost, "/api/v1/monitor/wait", `{"timeout_ms":2000}`)
	if code != http.StatusOK {
		t.Fatalf("status=%d", code)
	}
	var result service.WaitResult
	json.Unmarshal(resp.Data, &result)
	if !result.Matched || result.Value != 100 {
		t.Fatalf("unexpected wait result %+v", result)
	}

	_, resp = do(t, router, http.MethodGet, "/api/v1/monitor/value", "")
	var value ValueResponse
	json.Unmarshal(resp.Data, &value)
	if value.Value != 100 {
		t.Fatalf("value=%d want 100", value.Value)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		_, resp = do(t, router, http.MethodGet, "/api/v1/events?address=D100&limit=10", "")
		var events []struct {
			Address     string `json:"address"`
			RawValue    uint16 `json:"raw_value"`
			ScaledValue string `json:"scaled_value"`
		}
		json.Unmarshal(resp.Data, &events)
		if len(events) == 1 {
			if events[0].RawValue != 100 || events[0].ScaledValue != "50" {
				t.Fatalf("unexpected event %+v", events[0])
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("event never stored")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestMonitorHandler_EventsValidation(t *testing.T) {
	svc, _ := newTestMonitor(t)
	router := newMonitorRouter(t, svc)

	for _, q := range []string{"limit=abc", "limit=-1", "since=yesterday"} {
		code, resp := do(t, router, http.MethodGet, "/api/v1/events?"+q, "")
		if code != http.StatusBadRequest || resp.Error == nil || resp.Error.Code != "VALIDATION_ERROR" {
			t.Fatalf("%s: status=%d resp=%+v", q, code, resp)
		}
	}
}

func TestMonitorHandler_Status(t *testing.T) {
	svc, _ := newTestMonitor(t)
	router := newMonitorRouter(t, svc)

	code, resp := do(t, router, http.MethodGet, "/api/v1/monitor", "")
	if code != http.StatusOK {
		t.Fatalf("status=%d", code)
	}
	var status struct {
		State     string `json:"state"`
		HasTarget bool   `json:"has_target"`
	}
	json.Unmarshal(resp.Data, &status)
	if status.State != "idle" || status.HasTarget {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestMonitorHandler_DeviceTypes(t *testing.T) {
	svc, _ := newTestMonitor(t)
	router := newMonitorRouter(t, svc)

	code, resp := do(t, router, http.MethodGet, "/api/v1/device-types", "")
	if code != http.StatusOK || !resp.Success {
		t.Fatalf("status=%d resp=%+v", code, resp)
	}

	var types []struct {
		Mnemonic string `json:"mnemonic"`
		Code     int    `json:"code"`
		Base     int    `json:"base"`
	}
	if err := json.Unmarshal(resp.Data, &types); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(types) != len(melsec.DeviceTypes()) {
		t.Fatalf("got %d device types, want %d", len(types), len(melsec.DeviceTypes()))
	}

	want := map[string]struct{ code, base int }{
		"D":  {0xA8, 10},
		"X":  {0x9C, 16},
		"ZR": {0xB0, 16},
	}
	for _, dt := range types {
		if w, ok := want[dt.Mnemonic]; ok {
			if dt.Code != w.code || dt.Base != w.base {
				t.Fatalf("%s = code %#x base %d", dt.Mnemonic, dt.Code, dt.Base)
			}
			delete(want, dt.Mnemonic)
		}
	}
	if len(want) != 0 {
		t.Fatalf("missing device types %v", want)
	}
}
