package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const configHeader = `# Medioxide Configuration File
#
# Values can be overridden with MEDIOXIDE_* environment variables, e.g.
# MEDIOXIDE_STORAGE_SERVED_FOLDER=/srv/files or
# MEDIOXIDE_ADAPTERS_FILESERVER_ADDRESS=0.0.0.0:8080.
`

// InitConfig writes a default configuration file to the default location and
// returns its path. An existing file is only replaced when force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a default configuration file to path, creating
// parent directories as needed.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	content, err := generateYAMLWithComments(GetDefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to generate config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// field is one key of the generated file, with the comment written above it.
type field struct {
	key     string
	comment string
	value   any
}

// generateYAMLWithComments renders cfg as YAML with an explanatory comment
// above every setting.
func generateYAMLWithComments(cfg *Config) (string, error) {
	fsCfg := cfg.Adapters.FileServer

	doc := []field{
		{"logging", "Logging output", []field{
			{"level", "DEBUG, INFO, WARN or ERROR", cfg.Logging.Level},
			{"format", "text or json", cfg.Logging.Format},
			{"output", "stdout, stderr or a file path", cfg.Logging.Output},
		}},
		{"server", "Process-wide settings", []field{
			{"shutdown_timeout", "Maximum time to wait for graceful shutdown", cfg.Server.ShutdownTimeout},
			{"metrics", "Prometheus endpoint", []field{
				{"enabled", "Expose /metrics over HTTP", cfg.Server.Metrics.Enabled},
				{"port", "HTTP port for /metrics", cfg.Server.Metrics.Port},
			}},
		}},
		{"storage", "Managed folder and its index", []field{
			{"served_folder", "Folder whose files are stored and served", cfg.Storage.ServedFolder},
			{"create_if_missing", "Create the folder and an empty index on startup", cfg.Storage.CreateIfMissing},
			{"index", "Index persistence", []field{
				{"type", "text (index.txt in the folder) or badger (embedded database)", cfg.Storage.Index.Type},
				{"badger", "Only used when type is badger", cfg.Storage.Index.Badger},
			}},
		}},
		{"replication", "Mirror added files to S3 or an S3-compatible store", []field{
			{"enabled", "Upload every added file after it is indexed", cfg.Replication.Enabled},
			{"s3", "Bucket, region, credentials and optional custom endpoint", cfg.Replication.S3},
		}},
		{"adapters", "Network front ends", []field{
			{"fileserver", "Raw TCP file server", []field{
				{"address", "host:port to listen on", fsCfg.Address},
				{"mode", "path (serve by relative path) or index (serve by file ID)", fsCfg.Mode},
				{"max_connections", "Concurrent connection cap, 0 for unlimited", fsCfg.MaxConnections},
				{"max_connections_per_second", "Admission rate, 0 for unlimited; excess gets 503", fsCfg.MaxConnectionsPerSecond},
				{"request_buffer_size", "Bytes read for the request line", fsCfg.RequestBufferSize},
				{"read_timeout", "Maximum wait for the request line", fsCfg.ReadTimeout},
				{"write_timeout", "Maximum time to write the response", fsCfg.WriteTimeout},
				{"shutdown_timeout", "Wait for active connections before force-closing them", fsCfg.ShutdownTimeout},
				{"metrics_log_interval", "How often to log the active connection count", fsCfg.MetricsLogInterval},
			}},
		}},
	}

	root, err := mappingNode(doc)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	buf.WriteString(configHeader)
	buf.WriteString("\n")

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}

	return buf.String(), nil
}

func mappingNode(fields []field) (*yaml.Node, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}

	for _, f := range fields {
		key := &yaml.Node{Kind: yaml.ScalarNode, Value: f.key, HeadComment: f.comment}

		var value *yaml.Node
		if nested, ok := f.value.([]field); ok {
			var err error
			if value, err = mappingNode(nested); err != nil {
				return nil, err
			}
		} else {
			value = &yaml.Node{}
			if err := value.Encode(f.value); err != nil {
				return nil, fmt.Errorf("encode %s: %w", f.key, err)
			}
		}

		node.Content = append(node.Content, key, value)
	}

	return node, nil
}
