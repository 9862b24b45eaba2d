package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/medioxide/pkg/adapter/fileserver"
	"github.com/spf13/viper"
)

// Config represents the complete medioxide configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (MEDIOXIDE_*)
//  3. Configuration file (YAML or TOML)
//  4. Default values (lowest priority)
//
// Pluggable components (index store, replication target) carry their
// type-specific options as maps, decoded by the factory that builds them.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// Server contains process-wide settings
	Server ServerConfig `mapstructure:"server"`

	// Storage describes the managed folder and its index
	Storage StorageConfig `mapstructure:"storage"`

	// Replication optionally mirrors added files to object storage
	Replication ReplicationConfig `mapstructure:"replication"`

	// Adapters contains network front end configurations
	Adapters AdaptersConfig `mapstructure:"adapters"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required"`
}

// ServerConfig contains process-wide settings.
type ServerConfig struct {
	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`

	// Metrics configures the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// MetricsConfig controls the Prometheus metrics endpoint.
type MetricsConfig struct {
	// Enabled turns on metrics collection and the /metrics HTTP endpoint
	Enabled bool `mapstructure:"enabled"`

	// Port is the HTTP port for /metrics
	Port int `mapstructure:"port" validate:"min=0,max=65535"`
}

// StorageConfig describes the managed folder.
type StorageConfig struct {
	// ServedFolder is the folder whose files are served and indexed
	ServedFolder string `mapstructure:"served_folder" validate:"required"`

	// CreateIfMissing creates ServedFolder and an empty index on startup
	CreateIfMissing bool `mapstructure:"create_if_missing"`

	// Index selects how the ID to path index is persisted
	Index IndexConfig `mapstructure:"index"`
}

// IndexConfig specifies the index store.
//
// The Type field determines which store implementation is used.
// Only the corresponding type-specific section is used.
type IndexConfig struct {
	// Type specifies which index store implementation to use
	// Valid values: text, badger
	Type string `mapstructure:"type" validate:"required,oneof=text badger"`

	// Badger contains BadgerDB-specific configuration
	// Only used when Type = "badger"
	Badger map[string]any `mapstructure:"badger"`
}

// ReplicationConfig controls mirroring of added files.
type ReplicationConfig struct {
	// Enabled turns replication on
	Enabled bool `mapstructure:"enabled"`

	// S3 contains the bucket, region, credentials and endpoint
	S3 map[string]any `mapstructure:"s3"`
}

// AdaptersConfig contains all network front end configurations.
type AdaptersConfig struct {
	// FileServer is the raw TCP file server.
	// Uses the fileserver.FileServerConfig type directly to avoid duplication.
	FileServer fileserver.FileServerConfig `mapstructure:"fileserver"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (MEDIOXIDE_*)
//  2. Configuration file
//  3. Default values
//
// A missing configuration file is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Example: MEDIOXIDE_STORAGE_SERVED_FOLDER=/srv/files
	v.SetEnvPrefix("MEDIOXIDE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only applies to keys viper already knows about.
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default location: $XDG_CONFIG_HOME/medioxide/config.{yaml,toml}
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// envKeys lists the settings that can be set purely from the environment.
var envKeys = []string{
	"logging.level",
	"logging.format",
	"logging.output",
	"server.shutdown_timeout",
	"server.metrics.enabled",
	"server.metrics.port",
	"storage.served_folder",
	"storage.create_if_missing",
	"storage.index.type",
	"replication.enabled",
	"adapters.fileserver.address",
	"adapters.fileserver.mode",
	"adapters.fileserver.max_connections",
	"adapters.fileserver.max_connections_per_second",
	"adapters.fileserver.request_buffer_size",
	"adapters.fileserver.read_timeout",
	"adapters.fileserver.write_timeout",
	"adapters.fileserver.shutdown_timeout",
	"adapters.fileserver.metrics_log_interval",
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to the
// current directory if the home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "medioxide")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "medioxide")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}
