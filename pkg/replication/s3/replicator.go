// Package s3 mirrors committed files into an S3 (or S3-compatible) bucket.
//
// Object keys follow the folder layout: the index path of a file, with an
// optional prefix, so the bucket can be inspected and the folder rebuilt from
// it. The file ID travels as object metadata.
package s3

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"
	"github.com/marmos91/medioxide/internal/logger"
	"github.com/marmos91/medioxide/pkg/index"
)

// IDMetadataKey is the object metadata key carrying the file ID.
const IDMetadataKey = "medioxide-id"

// Client is the subset of *s3.Client the replicator uses.
type Client interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Config contains configuration for the replicator.
type Config struct {
	// Client is the configured S3 client.
	Client Client

	// Bucket is the destination bucket. It must already exist.
	Bucket string

	// KeyPrefix is prepended to every object key, e.g. "medioxide/".
	KeyPrefix string
}

// Replicator uploads files to S3. It is safe for concurrent use.
type Replicator struct {
	client    Client
	bucket    string
	keyPrefix string
}

// New creates a replicator and verifies that the bucket is reachable.
func New(ctx context.Context, cfg Config) (*Replicator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	_, err := cfg.Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, err)
	}

	return &Replicator{
		client:    cfg.Client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
	}, nil
}

// ObjectKey returns the key a file with the given index path is stored under.
func (r *Replicator) ObjectKey(path string) string {
	return r.keyPrefix + path
}

// Replicate uploads the file at localPath as the object for entry.
func (r *Replicator) Replicate(ctx context.Context, entry index.Entry, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s for replication: %w", localPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s for replication: %w", localPath, err)
	}

	contentType := "application/octet-stream"
	if mt, err := mimetype.DetectFile(localPath); err == nil {
		contentType = mt.String()
	}

	key := r.ObjectKey(entry.Path)
	_, err = r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(r.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(contentType),
		Metadata:      map[string]string{IDMetadataKey: entry.ID},
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s to s3://%s/%s: %w", entry.ID, r.bucket, key, err)
	}

	logger.Debug("Replicated %s to s3://%s/%s (%d bytes)", entry.ID, r.bucket, key, info.Size())
	return nil
}
