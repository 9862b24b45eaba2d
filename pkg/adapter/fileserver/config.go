package fileserver

import (
	"fmt"
	"net"
	"time"
)

// Serving modes.
const (
	// ModePath resolves the locator as a path relative to the served folder.
	ModePath = "path"

	// ModeIndex resolves the locator as a file ID through the index.
	ModeIndex = "index"
)

const (
	// DefaultAddress is used when no listen address is configured.
	DefaultAddress = "127.0.0.1:8080"

	// DefaultRequestBufferSize is the size of the single read that must hold
	// the whole request line.
	DefaultRequestBufferSize = 512

	maxRequestBufferSize = 64 * 1024
)

// FileServerConfig holds configuration parameters for the file server.
//
// Default values (applied by New if zero):
//   - Address: 127.0.0.1:8080
//   - Mode: path
//   - MaxConnections: 0 (unlimited)
//   - MaxConnectionsPerSecond: 0 (unlimited)
//   - RequestBufferSize: 512 bytes
//   - ReadTimeout: 30s
//   - WriteTimeout: 30s
//   - ShutdownTimeout: 30s
//   - MetricsLogInterval: 5m
type FileServerConfig struct {
	// Address is the host:port to listen on. Port 0 picks a free port.
	Address string `mapstructure:"address" validate:"required"`

	// Mode selects how a request locator is mapped to a file: "path" serves
	// files by relative path, "index" serves them by ID.
	Mode string `mapstructure:"mode" validate:"omitempty,oneof=path index"`

	// MaxConnections limits the number of concurrent client connections.
	// When reached, the accept loop waits until a connection closes.
	// 0 means unlimited.
	MaxConnections int `mapstructure:"max_connections" validate:"min=0"`

	// MaxConnectionsPerSecond limits how fast new connections are admitted.
	// Connections over the limit receive a 503 and are closed.
	// 0 means unlimited.
	MaxConnectionsPerSecond int `mapstructure:"max_connections_per_second" validate:"min=0"`

	// RequestBufferSize is the size of the buffer for the request read.
	// A request line that does not fit is rejected.
	RequestBufferSize int `mapstructure:"request_buffer_size" validate:"min=0,max=65536"`

	// ReadTimeout bounds the wait for the request line.
	ReadTimeout time.Duration `mapstructure:"read_timeout" validate:"min=0"`

	// WriteTimeout bounds writing the response.
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"min=0"`

	// ShutdownTimeout is the maximum time to wait for active connections
	// during graceful shutdown before they are force-closed.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=0"`

	// MetricsLogInterval is the interval at which the active connection count
	// is logged.
	MetricsLogInterval time.Duration `mapstructure:"metrics_log_interval" validate:"min=0"`
}

// applyDefaults fills in zero values with sensible defaults.
func (c *FileServerConfig) applyDefaults() {
	if c.Address == "" {
		c.Address = DefaultAddress
	}
	if c.Mode == "" {
		c.Mode = ModePath
	}
	if c.RequestBufferSize == 0 {
		c.RequestBufferSize = DefaultRequestBufferSize
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
	if c.MetricsLogInterval == 0 {
		c.MetricsLogInterval = 5 * time.Minute
	}
}

// validate checks that the configuration can be served.
func (c *FileServerConfig) validate() error {
	if _, _, err := net.SplitHostPort(c.Address); err != nil {
		return fmt.Errorf("invalid address %q: %w", c.Address, err)
	}
	if c.Mode != ModePath && c.Mode != ModeIndex {
		return fmt.Errorf("invalid mode %q: must be %q or %q", c.Mode, ModePath, ModeIndex)
	}
	if c.MaxConnections < 0 {
		return fmt.Errorf("invalid MaxConnections %d: must be >= 0", c.MaxConnections)
	}
	if c.MaxConnectionsPerSecond < 0 {
		return fmt.Errorf("invalid MaxConnectionsPerSecond %d: must be >= 0", c.MaxConnectionsPerSecond)
	}
	if c.RequestBufferSize < 16 || c.RequestBufferSize > maxRequestBufferSize {
		return fmt.Errorf("invalid RequestBufferSize %d: must be 16-%d", c.RequestBufferSize, maxRequestBufferSize)
	}
	if c.ReadTimeout < 0 {
		return fmt.Errorf("invalid ReadTimeout %v: must be >= 0", c.ReadTimeout)
	}
	if c.WriteTimeout < 0 {
		return fmt.Errorf("invalid WriteTimeout %v: must be >= 0", c.WriteTimeout)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid ShutdownTimeout %v: must be > 0", c.ShutdownTimeout)
	}
	return nil
}
