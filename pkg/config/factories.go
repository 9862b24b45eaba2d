package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/marmos91/medioxide/internal/logger"
	"github.com/marmos91/medioxide/pkg/adapter/fileserver"
	"github.com/marmos91/medioxide/pkg/filemanager"
	"github.com/marmos91/medioxide/pkg/index"
	"github.com/marmos91/medioxide/pkg/metrics"
	replicationS3 "github.com/marmos91/medioxide/pkg/replication/s3"
	"github.com/mitchellh/mapstructure"
)

// s3Options is the replication.s3 section.
type s3Options struct {
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	KeyPrefix       string `mapstructure:"key_prefix"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	MaxRetries      int    `mapstructure:"max_retries"`
}

func decodeS3Options(options map[string]any) (s3Options, error) {
	var opts s3Options
	if err := mapstructure.WeakDecode(options, &opts); err != nil {
		return s3Options{}, fmt.Errorf("failed to decode S3 replication config: %w", err)
	}
	return opts, nil
}

func decodeBadgerOptions(options map[string]any) (index.BadgerStoreConfig, error) {
	var opts index.BadgerStoreConfig
	if err := mapstructure.WeakDecode(options, &opts); err != nil {
		return index.BadgerStoreConfig{}, fmt.Errorf("failed to decode badger index config: %w", err)
	}
	return opts, nil
}

// IndexStoreOpener returns the function that opens the configured index
// store inside the managed folder.
//
// Supported types:
//   - "text": index.txt inside the folder (pkg/index.TextStore)
//   - "badger": embedded BadgerDB (pkg/index.BadgerStore)
func IndexStoreOpener(cfg *IndexConfig) (func(ctx context.Context, root string) (index.Store, error), error) {
	switch cfg.Type {
	case "text":
		return func(_ context.Context, root string) (index.Store, error) {
			return index.OpenTextStore(root), nil
		}, nil
	case "badger":
		opts, err := decodeBadgerOptions(cfg.Badger)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, root string) (index.Store, error) {
			store, err := index.OpenBadgerStore(ctx, root, opts)
			if err != nil {
				return nil, err
			}
			logger.Info("BadgerDB index opened")
			return store, nil
		}, nil
	default:
		return nil, fmt.Errorf("unknown index store type: %q", cfg.Type)
	}
}

// CreateReplicator builds the S3 replicator, or returns nil when replication
// is disabled.
func CreateReplicator(ctx context.Context, cfg *ReplicationConfig) (filemanager.Replicator, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	opts, err := decodeS3Options(cfg.S3)
	if err != nil {
		return nil, err
	}
	if opts.Bucket == "" {
		return nil, fmt.Errorf("S3 replication: bucket is required")
	}
	if opts.Region == "" {
		return nil, fmt.Errorf("S3 replication: region is required")
	}

	client, err := newS3Client(ctx, opts)
	if err != nil {
		return nil, err
	}

	replicator, err := replicationS3.New(ctx, replicationS3.Config{
		Client:    client,
		Bucket:    opts.Bucket,
		KeyPrefix: opts.KeyPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 replicator: %w", err)
	}

	logger.Info("S3 replication enabled: bucket=%s, region=%s, prefix=%s",
		opts.Bucket, opts.Region, opts.KeyPrefix)

	return replicator, nil
}

// newS3Client builds an S3 client from the replication options.
func newS3Client(ctx context.Context, opts s3Options) (*s3.Client, error) {
	var configOptions []func(*awsConfig.LoadOptions) error

	configOptions = append(configOptions, awsConfig.WithRegion(opts.Region))

	// Static credentials if provided, otherwise the default credential chain
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		credProvider := credentials.NewStaticCredentialsProvider(
			opts.AccessKeyID,
			opts.SecretAccessKey,
			"",
		)
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(credProvider))
	}

	maxRetries := opts.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// Custom endpoints (MinIO, Localstack) need path-style addressing
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// CreateFileManager opens the managed folder with the configured index store
// and replication.
func CreateFileManager(ctx context.Context, cfg *Config, indexMetrics metrics.IndexMetrics) (*filemanager.FileManager, error) {
	openStore, err := IndexStoreOpener(&cfg.Storage.Index)
	if err != nil {
		return nil, err
	}

	replicator, err := CreateReplicator(ctx, &cfg.Replication)
	if err != nil {
		return nil, err
	}

	return filemanager.New(ctx, filemanager.Config{
		Root:            cfg.Storage.ServedFolder,
		CreateIfMissing: cfg.Storage.CreateIfMissing,
		OpenStore:       openStore,
		Replicator:      replicator,
		Metrics:         indexMetrics,
	})
}

// CreateResolver picks the locator resolution for the configured mode.
//
// Supported modes:
//   - "path": locators are paths relative to the managed folder
//   - "index": locators are file IDs looked up in the index
func CreateResolver(cfg *fileserver.FileServerConfig, fm *filemanager.FileManager) (fileserver.Resolver, error) {
	switch cfg.Mode {
	case fileserver.ModePath, "":
		return fileserver.NewPathResolver(fm.Root())
	case fileserver.ModeIndex:
		return fileserver.NewIndexResolver(fm), nil
	default:
		return nil, fmt.Errorf("unknown file server mode: %q", cfg.Mode)
	}
}

// CreateAdapter builds the file server adapter in front of fm.
func CreateAdapter(cfg *Config, fm *filemanager.FileManager, serverMetrics metrics.ServerMetrics) (*fileserver.FileServerAdapter, error) {
	resolver, err := CreateResolver(&cfg.Adapters.FileServer, fm)
	if err != nil {
		return nil, err
	}
	return fileserver.New(cfg.Adapters.FileServer, resolver, serverMetrics), nil
}
