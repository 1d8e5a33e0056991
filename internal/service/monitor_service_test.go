// internal/service/monitor_service_test.go
package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"plc-monitor/internal/config"
	"plc-monitor/internal/driver/melsec"
	"plc-monitor/internal/model"
	"plc-monitor/internal/repository"
	"plc-monitor/pkg/mcclient"
	"plc-monitor/pkg/mcclient/mcclienttest"
)

func testConfig() *config.Config {
	return &config.Config{
		PLC:      config.PLCConfig{Host: "127.0.0.1", Port: 5000},
		Database: config.DatabaseConfig{Retention: time.Hour},
	}
}

func newTestService(t *testing.T) (*MonitorService, *mcclienttest.Client, repository.TriggerEventRepository) {
	t.Helper()
	client := mcclienttest.New()
	repo := repository.NewMemoryTriggerEventRepository(100)
	svc := NewMonitorService(client, repo, testConfig(), zaptest.NewLogger(t))
	return svc, client, repo
}

func u16(v uint16) *uint16 { return &v }

// eventually polls cond because match hooks run after the waiter wakes
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestMonitorService_RunSequence(t *testing.T) {
	svc, client, repo := newTestService(t)

	var mu sync.Mutex
	seen := map[model.EventType]int{}
	svc.Subscribe(func(e model.Event) {
		mu.Lock()
		seen[e.Type]++
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.AnswerEachTarget(ctx)

	results, err := svc.RunSequence(ctx, []config.TargetConfig{
		{Name: "ready", Address: "D100", Value: 100, Mask: 0xFFFF, Timeout: 2 * time.Second},
		{Name: "pressure", Address: "D200", Value: 200, Mask: 0xFFFF, Timeout: 2 * time.Second, Scale: "0.1", Unit: "bar"},
	})
	if err != nil {
		t.Fatalf("RunSequence err=%v", err)
	}
	cancel()
	svc.Stop()

	if len(results) != 2 || !results[0].Matched || !results[1].Matched {
		t.Fatalf("unexpected results %+v", results)
	}
	if results[0].Value != 100 || results[1].Value != 200 {
		t.Fatalf("unexpected values %+v", results)
	}

	var events []*model.TriggerEvent
	eventually(t, "two stored events", func() bool {
		var err error
		events, err = svc.ListEvents(context.Background(), nil)
		return err == nil && len(events) == 2
	})
	pressure, ready := events[0], events[1]
	if pressure.Name != "pressure" || pressure.Address != "D200" || pressure.Unit != "bar" {
		t.Fatalf("unexpected newest event %+v", pressure)
	}
	if pressure.ScaledValue.String() != "20" {
		t.Fatalf("scaled=%s want 20", pressure.ScaledValue)
	}
	if ready.Name != "ready" || ready.RawValue != 100 || ready.ScaledValue.String() != "100" {
		t.Fatalf("unexpected oldest event %+v", ready)
	}

	eventually(t, "published events", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return seen[model.EventTrigger] == 2 && seen[model.EventTargetSet] == 2
	})

	stored, _ := repo.List(context.Background(), nil)
	if len(stored) != 2 {
		t.Fatalf("repository holds %d events", len(stored))
	}
}

func TestMonitorService_StepTimeoutMovesOn(t *testing.T) {
	svc, _, _ := newTestService(t)

	results, err := svc.RunSequence(context.Background(), []config.TargetConfig{
		{Name: "never", Address: "D300", Value: 1, Mask: 0xFFFF, Timeout: 30 * time.Millisecond},
		{Name: "also-never", Address: "M5", Value: 1, Mask: 1, Timeout: 30 * time.Millisecond},
	})
	if err != nil {
		t.Fatalf("RunSequence err=%v", err)
	}
	if len(results) != 2 || results[0].Matched || results[1].Matched {
		t.Fatalf("unexpected results %+v", results)
	}
}

func TestMonitorService_ConfiguredSequenceStopsOnCancel(t *testing.T) {
	client := mcclienttest.New()
	cfg := testConfig()
	cfg.Monitor = config.MonitorConfig{
		Repeat:   true,
		Sequence: []config.TargetConfig{{Name: "forever", Address: "D1", Value: 1, Mask: 0xFFFF}},
	}
	svc := NewMonitorService(client, repository.NewMemoryTriggerEventRepository(10), cfg, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.RunConfiguredSequence(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("RunConfiguredSequence err=%v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("RunConfiguredSequence did not return after cancel")
	}
}

func TestMonitorService_SetTargetErrors(t *testing.T) {
	svc, _, _ := newTestService(t)

	if err := svc.SetTarget(&TargetRequest{Address: "D100", Value: u16(1), Name: "first"}); err != nil {
		t.Fatalf("SetTarget err=%v", err)
	}

	err := svc.SetTarget(&TargetRequest{Address: "Q100", Value: u16(1), Name: "second"})
	if !errors.Is(err, melsec.ErrUnknownDeviceType) {
		t.Fatalf("expected ErrUnknownDeviceType, got %v", err)
	}
	err = svc.SetTarget(&TargetRequest{Address: "D100", Value: u16(1), Scale: "x"})
	if !errors.Is(err, ErrInvalidScale) {
		t.Fatalf("expected ErrInvalidScale, got %v", err)
	}

	if st := svc.Status(); st.Label.Name != "first" {
		t.Fatalf("label=%q want first", st.Label.Name)
	}
}

func TestMonitorService_WaitTimeout(t *testing.T) {
	svc, _, _ := newTestService(t)
	svc.SetTarget(&TargetRequest{Address: "D1", Value: u16(1)})

	res := svc.Wait(context.Background(), 20*time.Millisecond)
	if res.Matched {
		t.Fatalf("matched without a response")
	}
	if res.WaitedMs < 15 {
		t.Fatalf("waited only %dms", res.WaitedMs)
	}
}

func TestMonitorService_StaleMatchUsesDefaultLabel(t *testing.T) {
	svc, client, _ := newTestService(t)

	var mu sync.Mutex
	var got *model.TriggerEvent
	svc.Subscribe(func(e model.Event) {
		if e.Type == model.EventTrigger {
			mu.Lock()
			got = e.Data.(*model.TriggerEvent)
			mu.Unlock()
		}
	})

	svc.SetTarget(&TargetRequest{Address: "D1", Value: u16(7), Name: "labelled"})
	// replace the target behind the service's back
	client.SetTargetMasked("D2", 7, 0xFFFF)
	client.Respond(0)
	client.Respond(7)
	svc.Stop()

	mu.Lock()
	defer mu.Unlock()
	if got == nil || got.Address != "D2" || got.Name != "manual" {
		t.Fatalf("unexpected event %+v", got)
	}
}

func TestMonitorService_StateChangesPublished(t *testing.T) {
	svc, _, _ := newTestService(t)

	var mu sync.Mutex
	var states []string
	svc.Subscribe(func(e model.Event) {
		if e.Type == model.EventStateChanged {
			mu.Lock()
			states = append(states, e.Data.(*model.StateChangedEventData).State)
			mu.Unlock()
		}
	})

	if err := svc.Start(); err != nil {
		t.Fatalf("Start err=%v", err)
	}
	svc.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(states) != 2 || states[0] != mcclient.StateConnected.String() || states[1] != mcclient.StateStopped.String() {
		t.Fatalf("unexpected states %v", states)
	}
}

func TestMonitorService_Cleanup(t *testing.T) {
	svc, _, repo := newTestService(t)
	ctx := context.Background()

	old := model.NewTriggerEvent(model.DefaultLabel(), "D1", 1, 0xFFFF, 1, time.Now().Add(-2*time.Hour))
	fresh := model.NewTriggerEvent(model.DefaultLabel(), "D1", 1, 0xFFFF, 1, time.Now())
	repo.Create(ctx, old)
	repo.Create(ctx, fresh)

	svc.cleanup(ctx, time.Hour)

	events, _ := repo.List(ctx, nil)
	if len(events) != 1 || events[0].ID != fresh.ID {
		t.Fatalf("unexpected events after cleanup %+v", events)
	}
}
