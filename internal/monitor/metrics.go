// internal/monitor/metrics.go
package monitor

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"plc-monitor/internal/driver/melsec"
)

// Metrics exports engine activity to Prometheus. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	requests       prometheus.Counter
	responses      prometheus.Counter
	protocolErrors *prometheus.CounterVec
	timeouts       prometheus.Counter
	reconnects     prometheus.Counter
	triggers       prometheus.Counter
	state          prometheus.Gauge
	lastValue      prometheus.Gauge
}

// NewMetrics registers the engine metrics on reg
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	if reg == nil {
		return nil
	}
	factory := promauto.With(reg)

	return &Metrics{
		requests: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Read requests written to the controller",
		}),
		responses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responses_total",
			Help:      "Responses decoded into a word value",
		}),
		protocolErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_errors_total",
			Help:      "Responses discarded by the frame assembler",
		}, []string{"kind"}),
		timeouts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "response_timeouts_total",
			Help:      "Outstanding requests abandoned after the wait threshold",
		}),
		reconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnects_total",
			Help:      "Transitions into the retrying state",
		}),
		triggers: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "triggers_total",
			Help:      "Target matches raised to waiters",
		}),
		state: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_state",
			Help:      "0 idle, 1 connecting, 2 connected, 3 retrying, 4 stopped",
		}),
		lastValue: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_value",
			Help:      "Last word value read from the watched address",
		}),
	}
}

func (m *Metrics) recordRequest() {
	if m != nil {
		m.requests.Inc()
	}
}

func (m *Metrics) recordResponse(value uint16) {
	if m != nil {
		m.responses.Inc()
		m.lastValue.Set(float64(value))
	}
}

func (m *Metrics) recordProtocolError(err error) {
	if m != nil {
		m.protocolErrors.WithLabelValues(protocolErrorKind(err)).Inc()
	}
}

func (m *Metrics) recordTimeout() {
	if m != nil {
		m.timeouts.Inc()
	}
}

func (m *Metrics) recordReconnect() {
	if m != nil {
		m.reconnects.Inc()
	}
}

func (m *Metrics) recordTrigger() {
	if m != nil {
		m.triggers.Inc()
	}
}

func (m *Metrics) recordState(s ConnectionState) {
	if m != nil {
		m.state.Set(float64(s))
	}
}

func protocolErrorKind(err error) string {
	var endErr *melsec.EndCodeError
	switch {
	case errors.Is(err, melsec.ErrUnexpectedHeader):
		return "unexpected_header"
	case errors.Is(err, melsec.ErrPayloadLengthMismatch):
		return "payload_length_mismatch"
	case errors.Is(err, melsec.ErrUnexpectedPayloadSize):
		return "unexpected_payload_size"
	case errors.As(err, &endErr):
		return "end_code"
	default:
		return "other"
	}
}
