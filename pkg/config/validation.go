package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/marmos91/medioxide/pkg/adapter/fileserver"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// Note: Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	fs := cfg.Adapters.FileServer

	_, portStr, err := net.SplitHostPort(fs.Address)
	if err != nil {
		return fmt.Errorf("adapters.fileserver.address: %w", err)
	}

	if fs.RequestBufferSize != 0 && fs.RequestBufferSize < 16 {
		return fmt.Errorf("adapters.fileserver.request_buffer_size: must be at least 16 bytes, got %d", fs.RequestBufferSize)
	}

	if cfg.Server.Metrics.Enabled {
		if port, err := strconv.Atoi(portStr); err == nil && port != 0 && port == cfg.Server.Metrics.Port {
			return fmt.Errorf("server.metrics.port: %d is already used by adapters.fileserver.address", port)
		}
	}

	if cfg.Storage.Index.Type == "badger" {
		if _, err := decodeBadgerOptions(cfg.Storage.Index.Badger); err != nil {
			return fmt.Errorf("storage.index.badger: %w", err)
		}
	}

	if cfg.Replication.Enabled {
		opts, err := decodeS3Options(cfg.Replication.S3)
		if err != nil {
			return fmt.Errorf("replication.s3: %w", err)
		}
		if opts.Bucket == "" {
			return errors.New("replication.s3: bucket is required when replication is enabled")
		}
		if opts.Region == "" {
			return errors.New("replication.s3: region is required when replication is enabled")
		}
	}

	if fs.Mode != fileserver.ModePath && fs.Mode != fileserver.ModeIndex {
		return fmt.Errorf("adapters.fileserver.mode: unknown mode %q", fs.Mode)
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
