// Package s3store implements kvstore.Store on an S3-compatible object
// store, for operators who want durable Request blobs and KV records
// shared across multiple crawl processes without going through the
// abstracted remote platform API.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/scrapeforge/crawlcore/internal/corekit"
)

// Config configures a Store backed by an S3-compatible bucket.
type Config struct {
	Bucket          string
	Region          string
	Endpoint        string // non-empty for S3-compatible providers (MinIO, R2, ...)
	Prefix          string // key prefix, e.g. "requests/"
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// Store is a kvstore.Store backed by S3. One key maps to one object, keyed
// as Prefix+key.
type Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// New builds a Store from cfg, resolving AWS credentials via the standard
// chain unless AccessKeyID/SecretAccessKey are set explicitly.
func New(ctx context.Context, cfg Config) (*Store, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, corekit.NewTransientError("failed to load AWS config", cfg.Bucket, err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &Store{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (s *Store) key(k string) string {
	return s.prefix + k
}

// GetRecord implements kvstore.Store.
func (s *Store) GetRecord(ctx context.Context, key string) ([]byte, bool, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(key)),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, false, nil
		}
		return nil, false, corekit.NewTransientError("failed to get S3 object", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, false, corekit.NewTransientError("failed to read S3 object body", key, err)
	}
	return data, true, nil
}

// SetRecord implements kvstore.Store.
func (s *Store) SetRecord(ctx context.Context, key string, value []byte, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(key)),
		Body:   bytes.NewReader(value),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return corekit.NewTransientError("failed to put S3 object", key, err)
	}
	return nil
}

// DeleteRecord implements kvstore.Store. Deleting an absent key is not an
// error, matching S3's own DeleteObject semantics.
func (s *Store) DeleteRecord(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(key)),
	})
	if err != nil {
		return corekit.NewTransientError("failed to delete S3 object", key, err)
	}
	return nil
}

// ListKeys implements kvstore.Store, paginating through every object under
// the configured prefix and stripping it back off each returned key.
func (s *Store) ListKeys(ctx context.Context) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, corekit.NewTransientError("failed to list S3 objects", s.bucket, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, (*obj.Key)[len(s.prefix):])
		}
	}
	return keys, nil
}
