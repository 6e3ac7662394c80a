// Package s3 implements storage.Provider on any S3-compatible endpoint via
// the MinIO client. Staged objects live under a fixed key prefix so sweeps
// never touch foreign data in a shared bucket.
package s3

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// objectPrefix namespaces every staged object inside the bucket.
const objectPrefix = "inbound/"

// Provider stores staged media in an S3-compatible bucket.
type Provider struct {
	logger *slog.Logger
	mc     *minio.Client
	bucket string
}

// New connects to an S3-compatible endpoint.
func New(log *slog.Logger, endpoint, accessKey, secretKey, bucket string, useTLS bool) (*Provider, error) {
	if log == nil {
		log = slog.Default()
	}
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("storage endpoint is required")
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, fmt.Errorf("storage bucket is required")
	}
	mc, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("connect object storage: %w", err)
	}
	return &Provider{
		logger: log.With(slog.String("component", "storage")),
		mc:     mc,
		bucket: bucket,
	}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (p *Provider) EnsureBucket(ctx context.Context) error {
	exists, err := p.mc.BucketExists(ctx, p.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := p.mc.MakeBucket(ctx, p.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}
	p.logger.Info("bucket created", slog.String("bucket", p.bucket))
	return nil
}

// Put writes data under the staged prefix.
func (p *Provider) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	_, err := p.mc.PutObject(ctx, p.bucket, objectPrefix+key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

// URL returns a presigned GET link that expires after ttl.
func (p *Provider) URL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	u, err := p.mc.PresignedGetObject(ctx, p.bucket, objectPrefix+key, ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign object: %w", err)
	}
	return u.String(), nil
}

// Delete removes a staged object.
func (p *Provider) Delete(ctx context.Context, key string) error {
	if err := p.mc.RemoveObject(ctx, p.bucket, objectPrefix+key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object: %w", err)
	}
	return nil
}

// ListOlderThan returns keys of staged objects last modified before cutoff.
// Returned keys have the staged prefix already trimmed.
func (p *Provider) ListOlderThan(ctx context.Context, cutoff time.Time) ([]string, error) {
	var keys []string
	for obj := range p.mc.ListObjects(ctx, p.bucket, minio.ListObjectsOptions{
		Prefix:    objectPrefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list objects: %w", obj.Err)
		}
		if obj.LastModified.Before(cutoff) {
			keys = append(keys, strings.TrimPrefix(obj.Key, objectPrefix))
		}
	}
	return keys, nil
}
