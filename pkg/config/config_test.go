package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/marmos91/medioxide/pkg/adapter/fileserver"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoad_DefaultConfig(t *testing.T) {
	configPath := writeConfig(t, `
logging:
  level: "info"

storage:
  served_folder: "/srv/files"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected normalized level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default output 'stdout', got %q", cfg.Logging.Output)
	}
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown_timeout 30s, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Storage.ServedFolder != "/srv/files" {
		t.Errorf("Expected served_folder '/srv/files', got %q", cfg.Storage.ServedFolder)
	}
	if cfg.Storage.Index.Type != "text" {
		t.Errorf("Expected default index type 'text', got %q", cfg.Storage.Index.Type)
	}
	if cfg.Adapters.FileServer.Address != fileserver.DefaultAddress {
		t.Errorf("Expected default address %q, got %q", fileserver.DefaultAddress, cfg.Adapters.FileServer.Address)
	}
	if cfg.Adapters.FileServer.RequestBufferSize != 512 {
		t.Errorf("Expected default request buffer 512, got %d", cfg.Adapters.FileServer.RequestBufferSize)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	// An explicit path keeps the user's own config out of the test
	nonExistentPath := filepath.Join(t.TempDir(), "nonexistent.yaml")

	cfg, err := Load(nonExistentPath)
	if err != nil {
		t.Fatalf("Expected no error with missing config file, got: %v", err)
	}

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Storage.ServedFolder != DefaultServedFolder {
		t.Errorf("Expected default served_folder %q, got %q", DefaultServedFolder, cfg.Storage.ServedFolder)
	}
	if cfg.Adapters.FileServer.Mode != fileserver.ModePath {
		t.Errorf("Expected default mode 'path', got %q", cfg.Adapters.FileServer.Mode)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, `
logging:
  level: "INFO"
  format: [unclosed
`)

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected error for invalid YAML")
	}
}

func TestLoad_FileServerSection(t *testing.T) {
	configPath := writeConfig(t, `
adapters:
  fileserver:
    address: "0.0.0.0:9000"
    mode: "index"
    max_connections: 64
    max_connections_per_second: 10
    request_buffer_size: 1024
    read_timeout: 5s
    write_timeout: 1m
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	fs := cfg.Adapters.FileServer
	if fs.Address != "0.0.0.0:9000" {
		t.Errorf("Expected address '0.0.0.0:9000', got %q", fs.Address)
	}
	if fs.Mode != fileserver.ModeIndex {
		t.Errorf("Expected mode 'index', got %q", fs.Mode)
	}
	if fs.MaxConnections != 64 {
		t.Errorf("Expected max_connections 64, got %d", fs.MaxConnections)
	}
	if fs.MaxConnectionsPerSecond != 10 {
		t.Errorf("Expected max_connections_per_second 10, got %d", fs.MaxConnectionsPerSecond)
	}
	if fs.RequestBufferSize != 1024 {
		t.Errorf("Expected request_buffer_size 1024, got %d", fs.RequestBufferSize)
	}
	if fs.ReadTimeout != 5*time.Second {
		t.Errorf("Expected read_timeout 5s, got %v", fs.ReadTimeout)
	}
	if fs.WriteTimeout != time.Minute {
		t.Errorf("Expected write_timeout 1m, got %v", fs.WriteTimeout)
	}
	// Unset values still get defaults
	if fs.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown_timeout 30s, got %v", fs.ShutdownTimeout)
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	configPath := writeConfig(t, `
storage:
  served_folder: "/from/file"
adapters:
  fileserver:
    mode: "path"
`)

	t.Setenv("MEDIOXIDE_STORAGE_SERVED_FOLDER", "/from/env")
	t.Setenv("MEDIOXIDE_ADAPTERS_FILESERVER_MODE", "index")
	t.Setenv("MEDIOXIDE_LOGGING_LEVEL", "debug")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Storage.ServedFolder != "/from/env" {
		t.Errorf("Expected env served_folder '/from/env', got %q", cfg.Storage.ServedFolder)
	}
	if cfg.Adapters.FileServer.Mode != fileserver.ModeIndex {
		t.Errorf("Expected env mode 'index', got %q", cfg.Adapters.FileServer.Mode)
	}
	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected env level 'DEBUG', got %q", cfg.Logging.Level)
	}
}

func TestLoad_EnvironmentOnly(t *testing.T) {
	t.Setenv("MEDIOXIDE_ADAPTERS_FILESERVER_ADDRESS", "127.0.0.1:7070")
	t.Setenv("MEDIOXIDE_ADAPTERS_FILESERVER_READ_TIMEOUT", "2s")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Adapters.FileServer.Address != "127.0.0.1:7070" {
		t.Errorf("Expected env address, got %q", cfg.Adapters.FileServer.Address)
	}
	if cfg.Adapters.FileServer.ReadTimeout != 2*time.Second {
		t.Errorf("Expected env read_timeout 2s, got %v", cfg.Adapters.FileServer.ReadTimeout)
	}
}

func TestLoad_BadgerIndex(t *testing.T) {
	configPath := writeConfig(t, `
storage:
  index:
    type: badger
    badger:
      db_path: /var/lib/medioxide/index
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Storage.Index.Type != "badger" {
		t.Errorf("Expected index type 'badger', got %q", cfg.Storage.Index.Type)
	}
	if cfg.Storage.Index.Badger["db_path"] != "/var/lib/medioxide/index" {
		t.Errorf("Expected db_path to be preserved, got %v", cfg.Storage.Index.Badger["db_path"])
	}
	if cfg.Storage.Index.Badger["in_memory"] != false {
		t.Errorf("Expected default in_memory false, got %v", cfg.Storage.Index.Badger["in_memory"])
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	configPath := writeConfig(t, `
adapters:
  fileserver:
    mode: "ftp"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Expected validation error for unknown mode")
	}
	if !strings.Contains(err.Error(), "validation failed") {
		t.Errorf("Expected validation error, got: %v", err)
	}
}

func TestGetConfigDir_XDG(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	if got := GetConfigDir(); got != filepath.Join(tmpDir, "medioxide") {
		t.Errorf("Expected config dir under XDG_CONFIG_HOME, got %q", got)
	}
	if got := GetDefaultConfigPath(); got != filepath.Join(tmpDir, "medioxide", "config.yaml") {
		t.Errorf("Unexpected default config path %q", got)
	}
	if ConfigExists() {
		t.Error("Expected no config in a fresh directory")
	}
}

func TestGetConfigDir_Home(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", tmpDir)

	if got := GetConfigDir(); got != filepath.Join(tmpDir, ".config", "medioxide") {
		t.Errorf("Expected config dir under HOME, got %q", got)
	}
}
