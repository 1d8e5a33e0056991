// internal/protocol/protocol.go
package protocol

import (
	"context"
	"errors"
	"time"
)

// ErrNotOpen is returned by Read and Write on a closed transport
var ErrNotOpen = errors.New("transport not open")

// Transport is a byte stream to a controller
type Transport interface {
	// Connection lifecycle
	Open(ctx context.Context) error
	Close() error
	IsOpen() bool

	// Data communication. Read blocks until at least one byte arrives, the
	// transport is closed or ctx is done.
	Write(ctx context.Context, data []byte) error
	Read(ctx context.Context, maxBytes int) ([]byte, error)

	// Diagnostics
	Stats() ProtocolStats
}

// Factory creates a fresh, unopened transport for every session
type Factory func() Transport

// ProtocolStats provides protocol-level statistics
type ProtocolStats struct {
	BytesWritten   int64         `json:"bytes_written"`
	BytesRead      int64         `json:"bytes_read"`
	OperationCount int64         `json:"operation_count"`
	ErrorCount     int64         `json:"error_count"`
	LastActivity   time.Time     `json:"last_activity"`
	AverageLatency time.Duration `json:"average_latency"`
	IsConnected    bool          `json:"is_connected"`
}
