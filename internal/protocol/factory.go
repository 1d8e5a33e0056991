// internal/protocol/factory.go
package protocol

import (
	"fmt"

	"go.uber.org/zap"
)

// NewTCPFactory returns a Factory that creates TCP connections from config
func NewTCPFactory(config TCPConfig, logger *zap.Logger) Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func() Transport {
		return NewTCPConnection(config, logger)
	}
}

// ValidateTCPConfig validates TCP configuration
func ValidateTCPConfig(config TCPConfig) error {
	if config.Host == "" {
		return fmt.Errorf("TCP host is required")
	}
	if config.Port < 1 || config.Port > 65535 {
		return fmt.Errorf("invalid port number: %d", config.Port)
	}
	if config.Timeout < 0 || config.WriteTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	return nil
}
