// pkg/mcclient/client.go
package mcclient

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"plc-monitor/internal/monitor"
	"plc-monitor/internal/protocol"
	"plc-monitor/internal/trigger"
)

type options struct {
	engine     monitor.Config
	tcp        protocol.TCPConfig
	logger     *zap.Logger
	registerer prometheus.Registerer
	namespace  string
}

// Option configures a Client
type Option func(*options)

// WithPollInterval sets the delay between poll ticks (default 500ms)
func WithPollInterval(d time.Duration) Option {
	return func(o *options) { o.engine.PollInterval = d }
}

// WithRetryDelay sets the fixed delay before a reconnect attempt (default 2s)
func WithRetryDelay(d time.Duration) Option {
	return func(o *options) { o.engine.RetryDelay = d }
}

// WithResponseTimeoutTicks sets how many ticks an unanswered request is kept
// before it is reissued (default 100)
func WithResponseTimeoutTicks(n int) Option {
	return func(o *options) { o.engine.ResponseTimeoutTicks = n }
}

// WithDialTimeout bounds each connect attempt
func WithDialTimeout(d time.Duration) Option {
	return func(o *options) { o.tcp.Timeout = d }
}

// WithKeepAlive toggles TCP keep-alive probes
func WithKeepAlive(enabled bool) Option {
	return func(o *options) { o.tcp.KeepAlive = enabled }
}

// WithLogger sets the logger; the default discards everything
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics registers engine metrics on reg under namespace
func WithMetrics(reg prometheus.Registerer, namespace string) Option {
	return func(o *options) {
		o.registerer = reg
		o.namespace = namespace
	}
}

// Client polls one word of an MC protocol controller and signals waiters
// when the masked value matches the configured target. Each client owns its
// own engine and stop signal; any number can run side by side.
type Client struct {
	host   string
	port   int
	ctrl   *trigger.Controller
	engine *monitor.Engine
}

// New creates a client for host:port. Nothing is dialled until Start or Run.
func New(host string, port int, opts ...Option) *Client {
	o := options{
		tcp:    protocol.DefaultTCPConfig(host, port),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	logger := o.logger.With(zap.String("plc", o.tcp.Host), zap.Int("port", o.tcp.Port))
	ctrl := trigger.NewController()
	metrics := monitor.NewMetrics(o.registerer, o.namespace)
	engine := monitor.NewEngine(o.engine, ctrl, protocol.NewTCPFactory(o.tcp, logger), logger, metrics)

	return &Client{
		host:   host,
		port:   port,
		ctrl:   ctrl,
		engine: engine,
	}
}

// SetTarget watches address for value with all bits compared. A match not
// yet consumed by Wait is discarded, even when the new target equals the
// current one.
func (c *Client) SetTarget(address string, value uint16) error {
	return c.ctrl.SetTarget(address, value, DefaultMask)
}

// SetTargetMasked watches address for value after applying mask. On a parse
// error the previous target stays in effect. Otherwise an unconsumed match is
// discarded as with SetTarget.
func (c *Client) SetTargetMasked(address string, value, mask uint16) error {
	return c.ctrl.SetTarget(address, value, mask)
}

// Wait blocks until a match is raised or ctx is done
func (c *Client) Wait(ctx context.Context) bool {
	return c.ctrl.Wait(ctx)
}

// WaitTimeout blocks until a match or timeout; timeout <= 0 waits forever
func (c *Client) WaitTimeout(timeout time.Duration) bool {
	return c.ctrl.WaitTimeout(timeout)
}

// CurrentValue returns the reading that raised the last match
func (c *Client) CurrentValue() uint16 {
	return c.ctrl.CurrentValue()
}

// Start runs the engine in its own goroutine
func (c *Client) Start() error {
	return c.engine.Start(context.Background())
}

// Run runs the engine on the calling goroutine until Stop or ctx is done
func (c *Client) Run(ctx context.Context) error {
	return c.engine.Run(ctx)
}

// Stop ends the engine; idempotent and safe from any goroutine
func (c *Client) Stop() {
	c.engine.Stop()
}

// Done is closed once the engine has exited
func (c *Client) Done() <-chan struct{} {
	return c.engine.Done()
}

// State returns the current connection state
func (c *Client) State() State {
	return c.engine.State()
}

// OnMatch registers fn to run after every raised match
func (c *Client) OnMatch(fn func(Match)) {
	c.ctrl.OnMatch(fn)
}

// OnStateChange registers fn to run on every connection state transition
func (c *Client) OnStateChange(fn func(State)) {
	c.engine.OnStateChange(fn)
}

// Status returns a snapshot of the target, trigger and engine counters
func (c *Client) Status() Status {
	st := c.ctrl.State()
	status := Status{
		Host:         c.host,
		Port:         c.port,
		State:        c.engine.State(),
		HasTarget:    st.HasTarget,
		Changing:     st.Changing,
		LastObserved: st.LastObserved,
		CurrentValue: st.CurrentValue,
		Engine:       c.engine.Stats(),
		Transport:    c.engine.TransportStats(),
	}
	if st.HasTarget {
		status.Address = st.Target.Address.String()
		status.TargetValue = st.Target.Value
		status.Mask = st.Target.Mask
	}
	if !st.LastMatchAt.IsZero() {
		at := st.LastMatchAt
		status.LastMatchAt = &at
	}
	return status
}
