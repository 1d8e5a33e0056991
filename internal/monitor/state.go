// internal/monitor/state.go
package monitor

import (
	"errors"
	"fmt"
	"time"
)

// ConnectionState describes where the engine is in its connect/poll cycle
type ConnectionState int32

const (
	StateIdle ConnectionState = iota
	StateConnecting
	StateConnected
	StateRetrying
	StateStopped
)

func (s ConnectionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateRetrying:
		return "retrying"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON payloads
func (s ConnectionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts the names produced by MarshalText
func (s *ConnectionState) UnmarshalText(text []byte) error {
	for c := StateIdle; c <= StateStopped; c++ {
		if c.String() == string(text) {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("monitor: unknown connection state %q", text)
}

var (
	ErrConnectFailed   = errors.New("monitor: connect failed")
	ErrConnectionLost  = errors.New("monitor: connection lost")
	ErrResponseTimeout = errors.New("monitor: response timeout")
	ErrAlreadyRunning  = errors.New("monitor: engine already started")
)

// Stats counts engine activity since construction
type Stats struct {
	Requests       uint64    `json:"requests"`
	Responses      uint64    `json:"responses"`
	ProtocolErrors uint64    `json:"protocol_errors"`
	Timeouts       uint64    `json:"timeouts"`
	Reconnects     uint64    `json:"reconnects"`
	Triggers       uint64    `json:"triggers"`
	ConnectedSince time.Time `json:"connected_since,omitempty"`
	LastError      string    `json:"last_error,omitempty"`
}
