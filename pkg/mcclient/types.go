// pkg/mcclient/types.go
package mcclient

import (
	"time"

	"plc-monitor/internal/monitor"
	"plc-monitor/internal/protocol"
	"plc-monitor/internal/trigger"
)

// State is the connection state of a client
type State = monitor.ConnectionState

const (
	StateIdle       = monitor.StateIdle
	StateConnecting = monitor.StateConnecting
	StateConnected  = monitor.StateConnected
	StateRetrying   = monitor.StateRetrying
	StateStopped    = monitor.StateStopped
)

// Match describes a raised trigger
type Match = trigger.Match

// DefaultMask compares all 16 bits
const DefaultMask = trigger.DefaultMask

// Status is a snapshot of a client for diagnostics and APIs
type Status struct {
	Host         string                 `json:"host"`
	Port         int                    `json:"port"`
	State        State                  `json:"state"`
	HasTarget    bool                   `json:"has_target"`
	Address      string                 `json:"address,omitempty"`
	TargetValue  uint16                 `json:"target_value"`
	Mask         uint16                 `json:"mask"`
	Changing     bool                   `json:"changing"`
	LastObserved uint16                 `json:"last_observed"`
	CurrentValue uint16                 `json:"current_value"`
	LastMatchAt  *time.Time             `json:"last_match_at,omitempty"`
	Engine       monitor.Stats          `json:"engine"`
	Transport    protocol.ProtocolStats `json:"transport"`
}
