package config

import (
	"strings"
	"time"

	"github.com/marmos91/medioxide/pkg/adapter/fileserver"
)

const (
	// DefaultServedFolder is the managed folder when none is configured.
	DefaultServedFolder = "./files"

	// DefaultMetricsPort is the /metrics port when none is configured.
	DefaultMetricsPort = 9090
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Default Strategy:
//   - Zero values (0, "", nil) are replaced with defaults
//   - Explicit values are preserved
//   - Booleans keep their zero value; GetDefaultConfig sets the ones a fresh
//     install should enable
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyStorageDefaults(&cfg.Storage)
	applyReplicationDefaults(&cfg.Replication)
	applyFileServerDefaults(&cfg.Adapters.FileServer)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyServerDefaults sets server defaults.
func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = DefaultMetricsPort
	}
}

// applyStorageDefaults sets managed folder and index defaults.
func applyStorageDefaults(cfg *StorageConfig) {
	if cfg.ServedFolder == "" {
		cfg.ServedFolder = DefaultServedFolder
	}
	if cfg.Index.Type == "" {
		cfg.Index.Type = "text"
	}
	if cfg.Index.Badger == nil {
		cfg.Index.Badger = make(map[string]any)
	}
	if _, ok := cfg.Index.Badger["db_path"]; !ok {
		cfg.Index.Badger["db_path"] = ""
	}
	if _, ok := cfg.Index.Badger["in_memory"]; !ok {
		cfg.Index.Badger["in_memory"] = false
	}
}

// applyReplicationDefaults fills the S3 section so generated files show every
// option.
func applyReplicationDefaults(cfg *ReplicationConfig) {
	if cfg.S3 == nil {
		cfg.S3 = make(map[string]any)
	}
	defaults := map[string]any{
		"region":            "us-east-1",
		"bucket":            "",
		"key_prefix":        "",
		"endpoint":          "",
		"access_key_id":     "",
		"secret_access_key": "",
		"max_retries":       10,
	}
	for key, value := range defaults {
		if _, ok := cfg.S3[key]; !ok {
			cfg.S3[key] = value
		}
	}
}

// applyFileServerDefaults sets file server defaults.
func applyFileServerDefaults(cfg *fileserver.FileServerConfig) {
	if cfg.Address == "" {
		cfg.Address = fileserver.DefaultAddress
	}
	if cfg.Mode == "" {
		cfg.Mode = fileserver.ModePath
	}

	// MaxConnections and MaxConnectionsPerSecond default to 0 (unlimited)

	if cfg.RequestBufferSize == 0 {
		cfg.RequestBufferSize = fileserver.DefaultRequestBufferSize
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 30 * time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.MetricsLogInterval == 0 {
		cfg.MetricsLogInterval = 5 * time.Minute
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{
		Storage: StorageConfig{
			CreateIfMissing: true,
			Index: IndexConfig{
				Type: "text",
			},
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
