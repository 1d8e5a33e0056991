// internal/protocol/connection.go
package protocol

import "time"

// TCPConfig represents TCP connection configuration
type TCPConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	KeepAlive    bool          `json:"keep_alive"`
	BufferSize   int           `json:"buffer_size"`
	Timeout      time.Duration `json:"timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// DefaultTCPConfig returns the settings used for MC protocol controllers
func DefaultTCPConfig(host string, port int) TCPConfig {
	return TCPConfig{
		Host:         host,
		Port:         port,
		KeepAlive:    true,
		BufferSize:   1024,
		Timeout:      5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
}
