package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func isolateConfigDir(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("XDG_CONFIG_HOME", "")
	return tmpDir
}

func TestInitConfig_Success(t *testing.T) {
	tmpDir := isolateConfigDir(t)

	configPath, err := InitConfig(false)
	if err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}

	if configPath != filepath.Join(tmpDir, ".config", "medioxide", "config.yaml") {
		t.Errorf("Unexpected config path %q", configPath)
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("Failed to read config file: %v", err)
	}

	contentStr := string(content)
	expectedSections := []string{
		"# Medioxide Configuration File",
		"logging:",
		"server:",
		"storage:",
		"replication:",
		"adapters:",
		"fileserver:",
	}

	for _, section := range expectedSections {
		if !strings.Contains(contentStr, section) {
			t.Errorf("Config file missing section: %s", section)
		}
	}

	if !ConfigExists() {
		t.Error("Expected ConfigExists to report the new file")
	}
}

func TestInitConfig_AlreadyExists(t *testing.T) {
	isolateConfigDir(t)

	if _, err := InitConfig(false); err != nil {
		t.Fatalf("First InitConfig failed: %v", err)
	}

	_, err := InitConfig(false)
	if err == nil {
		t.Fatal("Expected error when config already exists")
	}
	if !strings.Contains(err.Error(), "already exists") {
		t.Errorf("Expected 'already exists' error, got: %v", err)
	}
}

func TestInitConfig_Force(t *testing.T) {
	isolateConfigDir(t)

	configPath, err := InitConfig(false)
	if err != nil {
		t.Fatalf("First InitConfig failed: %v", err)
	}

	if err := os.WriteFile(configPath, []byte("stale: true\n"), 0644); err != nil {
		t.Fatalf("Failed to overwrite config: %v", err)
	}

	if _, err := InitConfig(true); err != nil {
		t.Fatalf("InitConfig with force failed: %v", err)
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("Failed to read config file: %v", err)
	}
	if strings.Contains(string(content), "stale") {
		t.Error("Expected forced init to replace the file")
	}
}

func TestInitConfigToPath_CreatesParents(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "dir", "medioxide.yaml")

	if err := InitConfigToPath(configPath, false); err != nil {
		t.Fatalf("InitConfigToPath failed: %v", err)
	}

	if _, err := os.Stat(configPath); err != nil {
		t.Fatalf("Config file was not created: %v", err)
	}
}

func TestInitConfigToPath_Loadable(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	if err := InitConfigToPath(configPath, false); err != nil {
		t.Fatalf("InitConfigToPath failed: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Generated config should load, got: %v", err)
	}

	defaults := GetDefaultConfig()
	if cfg.Storage.ServedFolder != defaults.Storage.ServedFolder {
		t.Errorf("Expected served folder %q, got %q", defaults.Storage.ServedFolder, cfg.Storage.ServedFolder)
	}
	if !cfg.Storage.CreateIfMissing {
		t.Error("Expected create_if_missing to round-trip as true")
	}
	if cfg.Adapters.FileServer.ReadTimeout != defaults.Adapters.FileServer.ReadTimeout {
		t.Errorf("Expected read timeout %v, got %v", defaults.Adapters.FileServer.ReadTimeout, cfg.Adapters.FileServer.ReadTimeout)
	}
	if cfg.Adapters.FileServer.Address != defaults.Adapters.FileServer.Address {
		t.Errorf("Expected address %q, got %q", defaults.Adapters.FileServer.Address, cfg.Adapters.FileServer.Address)
	}
}

func TestGenerateYAMLWithComments(t *testing.T) {
	content, err := generateYAMLWithComments(GetDefaultConfig())
	if err != nil {
		t.Fatalf("generateYAMLWithComments failed: %v", err)
	}

	var parsed map[string]any
	if err := yaml.Unmarshal([]byte(content), &parsed); err != nil {
		t.Fatalf("Generated YAML is invalid: %v", err)
	}

	adapters, ok := parsed["adapters"].(map[string]any)
	if !ok {
		t.Fatalf("Expected adapters mapping, got %T", parsed["adapters"])
	}
	fs, ok := adapters["fileserver"].(map[string]any)
	if !ok {
		t.Fatalf("Expected fileserver mapping, got %T", adapters["fileserver"])
	}
	if fs["address"] != "127.0.0.1:8080" {
		t.Errorf("Expected default address, got %v", fs["address"])
	}
	if fs["read_timeout"] != "30s" {
		t.Errorf("Expected durations rendered as strings, got %v", fs["read_timeout"])
	}
	if fs["request_buffer_size"] != 512 {
		t.Errorf("Expected request_buffer_size 512, got %v", fs["request_buffer_size"])
	}

	// Every setting carries a comment
	for _, comment := range []string{
		"# Raw TCP file server",
		"# host:port to listen on",
		"# text (index.txt in the folder) or badger (embedded database)",
	} {
		if !strings.Contains(content, comment) {
			t.Errorf("Expected comment %q in generated YAML", comment)
		}
	}
}
