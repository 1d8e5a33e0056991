// internal/protocol/tcp_connection.go
package protocol

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TCPConnection implements Transport over plain TCP
type TCPConnection struct {
	config TCPConfig
	conn   net.Conn
	logger *zap.Logger
	mutex  sync.RWMutex
	isOpen bool

	statsMu sync.Mutex
	stats   ProtocolStats
}

// NewTCPConnection creates a new TCP connection
func NewTCPConnection(config TCPConfig, logger *zap.Logger) *TCPConnection {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TCPConnection{
		config: config,
		logger: logger.With(
			zap.String("protocol", "tcp"),
			zap.String("host", config.Host),
			zap.Int("port", config.Port),
		),
	}
}

// Address returns the host:port this connection dials
func (tc *TCPConnection) Address() string {
	return net.JoinHostPort(tc.config.Host, strconv.Itoa(tc.config.Port))
}

// Open opens the TCP connection
func (tc *TCPConnection) Open(ctx context.Context) error {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()

	if tc.isOpen {
		return nil
	}

	tc.logger.Debug("Opening TCP connection")

	dialer := &net.Dialer{
		Timeout:   tc.config.Timeout,
		KeepAlive: 30 * time.Second,
	}

	address := tc.Address()
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		tc.recordError()
		return fmt.Errorf("failed to connect to %s: %w", address, err)
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		tcpConn.SetNoDelay(true)
		if tc.config.KeepAlive {
			tcpConn.SetKeepAlive(true)
			tcpConn.SetKeepAlivePeriod(30 * time.Second)
		}
	}

	tc.conn = conn
	tc.isOpen = true

	tc.statsMu.Lock()
	tc.stats.IsConnected = true
	tc.stats.LastActivity = time.Now()
	tc.statsMu.Unlock()

	tc.logger.Info("TCP connection opened", zap.String("local", conn.LocalAddr().String()))
	return nil
}

// Close closes the TCP connection. Safe to call while a Read is blocked.
func (tc *TCPConnection) Close() error {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()

	if !tc.isOpen || tc.conn == nil {
		return nil
	}

	err := tc.conn.Close()
	tc.conn = nil
	tc.isOpen = false

	tc.statsMu.Lock()
	tc.stats.IsConnected = false
	tc.statsMu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to close TCP connection: %w", err)
	}
	tc.logger.Debug("TCP connection closed")
	return nil
}

// IsOpen returns whether the connection is open
func (tc *TCPConnection) IsOpen() bool {
	tc.mutex.RLock()
	defer tc.mutex.RUnlock()
	return tc.isOpen && tc.conn != nil
}

func (tc *TCPConnection) current() (net.Conn, error) {
	tc.mutex.RLock()
	defer tc.mutex.RUnlock()
	if !tc.isOpen || tc.conn == nil {
		return nil, ErrNotOpen
	}
	return tc.conn, nil
}

// Write writes data to the TCP connection
func (tc *TCPConnection) Write(ctx context.Context, data []byte) error {
	conn, err := tc.current()
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if tc.config.WriteTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(tc.config.WriteTimeout))
	}

	startTime := time.Now()
	n, err := conn.Write(data)
	if err != nil {
		tc.recordError()
		return fmt.Errorf("failed to write to TCP connection: %w", err)
	}
	if n != len(data) {
		tc.recordError()
		return fmt.Errorf("incomplete write: wrote %d of %d bytes", n, len(data))
	}

	tc.statsMu.Lock()
	tc.stats.BytesWritten += int64(n)
	tc.stats.OperationCount++
	tc.stats.LastActivity = time.Now()
	tc.updateAverageLatency(time.Since(startTime))
	tc.statsMu.Unlock()

	tc.logger.Debug("TCP write completed", zap.Int("bytes", n))
	return nil
}

// Read reads whatever is available, up to maxBytes
func (tc *TCPConnection) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	conn, err := tc.current()
	if err != nil {
		return nil, err
	}
	if maxBytes <= 0 {
		maxBytes = tc.config.BufferSize
	}

	// unblock the read when ctx ends
	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Unix(1, 0))
	})
	defer stop()

	buffer := make([]byte, maxBytes)
	n, err := conn.Read(buffer)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		tc.recordError()
		return nil, fmt.Errorf("failed to read from TCP connection: %w", err)
	}

	tc.statsMu.Lock()
	tc.stats.BytesRead += int64(n)
	tc.stats.OperationCount++
	tc.stats.LastActivity = time.Now()
	tc.statsMu.Unlock()

	return buffer[:n], nil
}

// Stats returns a copy of the connection statistics
func (tc *TCPConnection) Stats() ProtocolStats {
	tc.statsMu.Lock()
	defer tc.statsMu.Unlock()
	return tc.stats
}

func (tc *TCPConnection) recordError() {
	tc.statsMu.Lock()
	tc.stats.ErrorCount++
	tc.statsMu.Unlock()
}

// updateAverageLatency updates the running average latency, statsMu held
func (tc *TCPConnection) updateAverageLatency(newLatency time.Duration) {
	if tc.stats.AverageLatency == 0 {
		tc.stats.AverageLatency = newLatency
	} else {
		tc.stats.AverageLatency = (tc.stats.AverageLatency + newLatency) / 2
	}
}
