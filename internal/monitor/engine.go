// internal/monitor/engine.go
package monitor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"plc-monitor/internal/driver/melsec"
	"plc-monitor/internal/protocol"
	"plc-monitor/internal/trigger"
)

const (
	DefaultPollInterval         = 500 * time.Millisecond
	DefaultRetryDelay           = 2 * time.Second
	DefaultResponseTimeoutTicks = 100

	readBufferSize = 1024
)

// Config holds the engine timing parameters. Zero values take the defaults.
type Config struct {
	PollInterval         time.Duration
	RetryDelay           time.Duration
	ResponseTimeoutTicks int
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.ResponseTimeoutTicks <= 0 {
		c.ResponseTimeoutTicks = DefaultResponseTimeoutTicks
	}
	return c
}

// Engine owns the controller session: it connects, polls the watched word
// once per tick with at most one request outstanding, feeds responses to the
// trigger controller and reconnects after a fixed delay when the link drops.
type Engine struct {
	cfg        Config
	trigger    *trigger.Controller
	transports protocol.Factory
	logger     *zap.Logger
	metrics    *Metrics

	state    atomic.Int32
	started  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}

	requests       atomic.Uint64
	responses      atomic.Uint64
	protocolErrors atomic.Uint64
	timeouts       atomic.Uint64
	reconnects     atomic.Uint64
	triggers       atomic.Uint64

	mu             sync.Mutex
	connectedSince time.Time
	lastError      string
	transport      protocol.Transport
	listeners      []func(ConnectionState)
}

// poll is the per-session request bookkeeping, touched only by Run
type poll struct {
	assembler   melsec.FrameAssembler
	outstanding bool
	waitTicks   int
}

func (p *poll) reset() {
	p.assembler.Reset()
	p.outstanding = false
	p.waitTicks = 0
}

// NewEngine creates an engine in the idle state. metrics may be nil.
func NewEngine(cfg Config, ctrl *trigger.Controller, transports protocol.Factory, logger *zap.Logger, metrics *Metrics) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		cfg:        cfg.withDefaults(),
		trigger:    ctrl,
		transports: transports,
		logger:     logger.With(zap.String("component", "engine")),
		metrics:    metrics,
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
	}
	e.metrics.recordState(StateIdle)
	return e
}

// Run connects and polls until Stop is called or ctx is done. It may only be
// called once per engine.
func (e *Engine) Run(ctx context.Context) error {
	if !e.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	e.run(ctx)
	return nil
}

// Start is Run on a new goroutine
func (e *Engine) Start(ctx context.Context) error {
	if !e.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	go e.run(ctx)
	return nil
}

func (e *Engine) run(ctx context.Context) {
	defer close(e.done)
	defer e.setState(StateStopped)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-e.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	for !e.stopping() && ctx.Err() == nil {
		e.setState(StateConnecting)
		err := e.session(ctx)
		if ctx.Err() != nil {
			break
		}

		e.recordError(err)
		e.reconnects.Add(1)
		e.metrics.recordReconnect()
		e.setState(StateRetrying)
		e.logger.Warn("PLC connection down, retrying",
			zap.Error(err),
			zap.Duration("retry_delay", e.cfg.RetryDelay),
		)

		timer := time.NewTimer(e.cfg.RetryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}

	e.logger.Info("PLC monitor stopped")
}

// Stop asks the engine to close the session and leave Run. Safe to call from
// any goroutine, any number of times, before or after Run.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
}

func (e *Engine) stopping() bool {
	select {
	case <-e.stopCh:
		return true
	default:
		return false
	}
}

// Done is closed once Run has returned
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// State returns the current connection state
func (e *Engine) State() ConnectionState {
	return ConnectionState(e.state.Load())
}

// OnStateChange registers fn to be called from the engine goroutine on every
// state transition.
func (e *Engine) OnStateChange(fn func(ConnectionState)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, fn)
}

// Stats returns the engine counters
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Stats{
		Requests:       e.requests.Load(),
		Responses:      e.responses.Load(),
		ProtocolErrors: e.protocolErrors.Load(),
		Timeouts:       e.timeouts.Load(),
		Reconnects:     e.reconnects.Load(),
		Triggers:       e.triggers.Load(),
		ConnectedSince: e.connectedSince,
		LastError:      e.lastError,
	}
}

// TransportStats returns the statistics of the most recent session's transport
func (e *Engine) TransportStats() protocol.ProtocolStats {
	e.mu.Lock()
	t := e.transport
	e.mu.Unlock()
	if t == nil {
		return protocol.ProtocolStats{}
	}
	return t.Stats()
}

// session runs one connection until it is lost or ctx ends
func (e *Engine) session(ctx context.Context) error {
	t := e.transports()
	if err := t.Open(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}
	defer t.Close()

	e.mu.Lock()
	e.transport = t
	e.connectedSince = time.Now()
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.connectedSince = time.Time{}
		e.mu.Unlock()
	}()

	e.trigger.ResetObservation()
	e.setState(StateConnected)
	e.logger.Info("Connected to PLC")

	sessCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	chunks := make(chan []byte)
	lost := make(chan error, 1)
	go e.readLoop(sessCtx, t, chunks, lost)

	var p poll
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-lost:
			return fmt.Errorf("%w: %w", ErrConnectionLost, err)
		case chunk := <-chunks:
			e.receive(&p, chunk)
		case <-timer.C:
			if e.stopping() {
				return nil
			}
			if err := e.tick(ctx, t, &p); err != nil {
				return fmt.Errorf("%w: %w", ErrConnectionLost, err)
			}
			timer.Reset(e.cfg.PollInterval)
		}
	}
}

// readLoop only moves bytes; framing happens on the engine goroutine
func (e *Engine) readLoop(ctx context.Context, t protocol.Transport, chunks chan<- []byte, lost chan<- error) {
	for {
		data, err := t.Read(ctx, readBufferSize)
		if err != nil {
			if ctx.Err() == nil {
				lost <- err
			}
			return
		}
		select {
		case chunks <- data:
		case <-ctx.Done():
			return
		}
	}
}

func (e *Engine) tick(ctx context.Context, t protocol.Transport, p *poll) error {
	if !p.outstanding {
		target, generation, ok := e.trigger.Snapshot()
		if !ok {
			return nil
		}
		if err := t.Write(ctx, melsec.BuildReadWordRequest(target.Address)); err != nil {
			return err
		}
		e.trigger.MarkSent(generation)
		p.assembler.Reset()
		p.outstanding = true
		p.waitTicks = 0

		e.requests.Add(1)
		e.metrics.recordRequest()
		e.logger.Debug("Request sent", zap.String("address", target.Address.String()))
		return nil
	}

	p.waitTicks++
	if p.waitTicks > e.cfg.ResponseTimeoutTicks {
		e.logger.Error("No response from PLC, reissuing request",
			zap.Error(ErrResponseTimeout),
			zap.Int("ticks", p.waitTicks),
		)
		p.reset()
		e.timeouts.Add(1)
		e.metrics.recordTimeout()
		e.recordError(ErrResponseTimeout)
	}
	return nil
}

func (e *Engine) receive(p *poll, chunk []byte) {
	if !p.outstanding {
		e.logger.Debug("Discarding data with no request outstanding", zap.Int("bytes", len(chunk)))
		return
	}

	value, ok, err := p.assembler.Feed(chunk)
	switch {
	case err != nil:
		p.reset()
		e.protocolErrors.Add(1)
		e.metrics.recordProtocolError(err)
		e.recordError(err)
		e.logger.Error("Discarded PLC response", zap.Error(err))
	case ok:
		p.reset()
		e.responses.Add(1)
		e.metrics.recordResponse(value)
		if e.trigger.Observe(value) {
			e.triggers.Add(1)
			e.metrics.recordTrigger()
			e.logger.Info("Trigger raised", zap.Uint16("value", value))
		}
	}
}

func (e *Engine) setState(s ConnectionState) {
	prev := ConnectionState(e.state.Swap(int32(s)))
	if prev == s {
		return
	}
	e.metrics.recordState(s)
	e.logger.Debug("Connection state changed",
		zap.Stringer("from", prev),
		zap.Stringer("to", s),
	)

	e.mu.Lock()
	listeners := e.listeners
	e.mu.Unlock()
	for _, fn := range listeners {
		fn(s)
	}
}

func (e *Engine) recordError(err error) {
	if err == nil {
		return
	}
	e.mu.Lock()
	e.lastError = err.Error()
	e.mu.Unlock()
}
