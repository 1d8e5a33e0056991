// internal/service/monitor_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"plc-monitor/internal/config"
	"plc-monitor/internal/driver/melsec"
	"plc-monitor/internal/model"
	"plc-monitor/internal/repository"
	"plc-monitor/internal/trigger"
	"plc-monitor/internal/utils"
	"plc-monitor/pkg/mcclient"
)

// ErrInvalidScale is returned for a scale that is not a decimal number
var ErrInvalidScale = errors.New("invalid scale")

const (
	persistTimeout = 5 * time.Second
	// recent targets keep their labels so a late hook still finds them
	maxLabels = 16
)

// TargetRequest replaces the watched target
type TargetRequest struct {
	Address string  `json:"address" binding:"required" example:"D100"`
	Value   *uint16 `json:"value" binding:"required" example:"100"`
	Mask    *uint16 `json:"mask,omitempty" example:"65535"`
	Name    string  `json:"name,omitempty" example:"ready"`
	Scale   string  `json:"scale,omitempty" example:"0.1"`
	Unit    string  `json:"unit,omitempty" example:"bar"`
}

// WaitResult is the outcome of a bounded wait
type WaitResult struct {
	Matched  bool   `json:"matched"`
	Value    uint16 `json:"value"`
	WaitedMs int64  `json:"waited_ms"`
}

// StepResult is the outcome of one sequence step
type StepResult struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Matched bool   `json:"matched"`
	Value   uint16 `json:"value"`
}

// MonitorStatus is the client status plus the label of the current target
type MonitorStatus struct {
	mcclient.Status
	Label model.Label `json:"label"`
}

// MonitorService ties the trigger client to event storage and live subscribers
type MonitorService struct {
	client    mcclient.TriggerClient
	repo      repository.TriggerEventRepository
	config    *config.Config
	logger    *utils.ServiceLogger
	plcLogger *utils.PLCLogger

	mu          sync.RWMutex
	label       model.Label
	labels      map[trigger.Target]model.Label
	subscribers []func(model.Event)

	started atomic.Bool
	persist sync.WaitGroup
}

// NewMonitorService creates a monitor service and hooks it to the client
func NewMonitorService(
	client mcclient.TriggerClient,
	repo repository.TriggerEventRepository,
	config *config.Config,
	logger *zap.Logger,
) *MonitorService {
	s := &MonitorService{
		client:    client,
		repo:      repo,
		config:    config,
		logger:    utils.NewServiceLogger(logger, "monitor-service"),
		plcLogger: utils.NewPLCLogger(logger, config.PLC.Host, config.PLC.Port),
		label:     model.DefaultLabel(),
		labels:    make(map[trigger.Target]model.Label),
	}

	client.OnMatch(s.handleMatch)
	client.OnStateChange(s.handleStateChange)
	return s
}

// Start starts polling the controller
func (s *MonitorService) Start() error {
	if err := s.client.Start(); err != nil {
		return fmt.Errorf("failed to start monitor: %w", err)
	}
	s.started.Store(true)
	return nil
}

// Stop stops polling and waits for pending event writes
func (s *MonitorService) Stop() {
	s.client.Stop()
	if s.started.Load() {
		<-s.client.Done()
	}
	s.persist.Wait()
}

// SetTarget replaces the watched target. On error the previous target and
// its label stay in effect.
func (s *MonitorService) SetTarget(req *TargetRequest) error {
	mask := mcclient.DefaultMask
	if req.Mask != nil {
		mask = *req.Mask
	}
	var value uint16
	if req.Value != nil {
		value = *req.Value
	}

	label := model.DefaultLabel()
	if req.Name != "" {
		label.Name = req.Name
	}
	label.Unit = req.Unit
	if req.Scale != "" {
		scale, err := decimal.NewFromString(req.Scale)
		if err != nil {
			return fmt.Errorf("%w %q: %w", ErrInvalidScale, req.Scale, err)
		}
		label.Scale = scale
	}

	address, err := melsec.ParseAddress(req.Address)
	if err != nil {
		s.plcLogger.LogTarget(req.Address, value, mask, err)
		return err
	}

	s.mu.Lock()
	if err := s.client.SetTargetMasked(req.Address, value, mask); err != nil {
		s.mu.Unlock()
		s.plcLogger.LogTarget(req.Address, value, mask, err)
		return err
	}
	if len(s.labels) >= maxLabels {
		clear(s.labels)
	}
	s.label = label
	s.labels[trigger.Target{Address: address, Value: value, Mask: mask}] = label
	s.mu.Unlock()

	s.plcLogger.LogTarget(address.String(), value, mask, nil)
	s.publish(model.Event{
		Type: model.EventTargetSet,
		Data: &model.TargetSetEventData{
			Address: address.String(),
			Value:   value,
			Mask:    mask,
			Label:   label,
		},
		Timestamp: time.Now(),
	})
	return nil
}

// Wait blocks until the current target matches, the timeout elapses or ctx
// is done. timeout <= 0 waits on ctx alone.
func (s *MonitorService) Wait(ctx context.Context, timeout time.Duration) *WaitResult {
	start := time.Now()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	matched := s.client.Wait(ctx)
	return &WaitResult{
		Matched:  matched,
		Value:    s.client.CurrentValue(),
		WaitedMs: time.Since(start).Milliseconds(),
	}
}

// CurrentValue returns the reading that raised the last match
func (s *MonitorService) CurrentValue() uint16 {
	return s.client.CurrentValue()
}

// Status returns the monitor status
func (s *MonitorService) Status() *MonitorStatus {
	s.mu.RLock()
	label := s.label
	s.mu.RUnlock()

	return &MonitorStatus{
		Status: s.client.Status(),
		Label:  label,
	}
}

// ListEvents returns stored trigger events newest first
func (s *MonitorService) ListEvents(ctx context.Context, filter *repository.TriggerEventFilter) ([]*model.TriggerEvent, error) {
	events, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list trigger events: %w", err)
	}
	return events, nil
}

// Subscribe registers fn for every published event. fn runs on the
// publishing goroutine and must not block.
func (s *MonitorService) Subscribe(fn func(model.Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// RunSequence sets each step's target in turn and waits for it. A step that
// times out is logged and the sequence moves on.
func (s *MonitorService) RunSequence(ctx context.Context, steps []config.TargetConfig) ([]StepResult, error) {
	results := make([]StepResult, 0, len(steps))

	for _, step := range steps {
		value, mask := step.Value, step.Mask
		if mask == 0 {
			mask = mcclient.DefaultMask
		}
		err := s.SetTarget(&TargetRequest{
			Address: step.Address,
			Value:   &value,
			Mask:    &mask,
			Name:    step.Name,
			Scale:   step.Scale,
			Unit:    step.Unit,
		})
		if err != nil {
			return results, fmt.Errorf("step %s: %w", step.Name, err)
		}

		stepLogger := utils.NewStepLogger(s.logger.Logger, step.Name, step.Address)
		stepLogger.Start(
			zap.Uint16("value", value),
			zap.String("mask", fmt.Sprintf("0x%04X", mask)),
			zap.Duration("timeout", step.Timeout),
		)

		res := s.Wait(ctx, step.Timeout)
		if !res.Matched && ctx.Err() != nil {
			return results, ctx.Err()
		}

		if res.Matched {
			stepLogger.Matched(res.Value)
		} else {
			stepLogger.TimedOut(step.Timeout)
		}

		results = append(results, StepResult{
			Name:    step.Name,
			Address: step.Address,
			Matched: res.Matched,
			Value:   res.Value,
		})
	}

	return results, nil
}

// RunConfiguredSequence runs monitor.sequence once, or until ctx is done when
// monitor.repeat is set. Cancellation is not an error.
func (s *MonitorService) RunConfiguredSequence(ctx context.Context) error {
	steps := s.config.Monitor.Sequence
	if len(steps) == 0 {
		return nil
	}

	for {
		results, err := s.RunSequence(ctx, steps)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		if err != nil {
			return err
		}

		matched := 0
		for _, r := range results {
			if r.Matched {
				matched++
			}
		}
		s.logger.Info("Target sequence finished",
			zap.Int("steps", len(results)),
			zap.Int("matched", matched),
		)

		if !s.config.Monitor.Repeat {
			return nil
		}
	}
}

// RunCleanup deletes events older than database.retention on every interval
// until ctx is done.
func (s *MonitorService) RunCleanup(ctx context.Context, interval time.Duration) {
	retention := s.config.Database.Retention
	if retention <= 0 || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("Cleanup service started",
		zap.Duration("interval", interval),
		zap.Duration("retention", retention),
	)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cleanup(ctx, retention)
		}
	}
}

func (s *MonitorService) cleanup(ctx context.Context, retention time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	deleted, err := s.repo.DeleteOlderThan(ctx, time.Now().Add(-retention))
	if err != nil {
		s.logger.Error("Failed to cleanup old trigger events", zap.Error(err))
		return
	}
	if deleted > 0 {
		s.logger.Info("Cleaned up old trigger events", zap.Int64("deleted", deleted))
	}
}

// handleMatch runs on the engine goroutine after every raise
func (s *MonitorService) handleMatch(m mcclient.Match) {
	s.mu.RLock()
	label, ok := s.labels[m.Target]
	s.mu.RUnlock()
	if !ok {
		label = model.DefaultLabel()
	}

	event := model.NewTriggerEvent(label, m.Target.Address.String(), m.Target.Value, m.Target.Mask, m.Value, m.At)
	s.plcLogger.LogTrigger(event.Address, event.RawValue, event.MatchedAt)

	s.persist.Add(1)
	go func() {
		defer s.persist.Done()

		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()

		if err := s.repo.Create(ctx, event); err != nil {
			s.logger.Error("Failed to store trigger event",
				zap.Error(err),
				zap.String("event_id", event.ID.String()),
			)
		}
	}()

	s.publish(model.Event{Type: model.EventTrigger, Data: event, Timestamp: m.At})
}

func (s *MonitorService) handleStateChange(state mcclient.State) {
	s.plcLogger.LogStateChange(state)

	now := time.Now()
	s.publish(model.Event{
		Type:      model.EventStateChanged,
		Data:      &model.StateChangedEventData{State: state.String(), At: now},
		Timestamp: now,
	})
}

func (s *MonitorService) publish(event model.Event) {
	s.mu.RLock()
	subscribers := append([]func(model.Event){}, s.subscribers...)
	s.mu.RUnlock()

	for _, fn := range subscribers {
		fn(event)
	}
}
