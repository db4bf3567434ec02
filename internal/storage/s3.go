// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/tomtom215/mangashelf/internal/config"
	"github.com/tomtom215/mangashelf/internal/logging"
	"github.com/tomtom215/mangashelf/internal/metrics"
)

// S3Store keeps objects in an S3-compatible bucket.
type S3Store struct {
	client  *minio.Client
	bucket  string
	baseURL string
}

// NewS3Store connects to the bucket, creating it when it does not exist.
// An empty baseURL derives object URLs from the endpoint.
func NewS3Store(ctx context.Context, cfg *config.S3StorageConfig, baseURL string) (*S3Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %q: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %q: %w", cfg.Bucket, err)
		}
		logging.Info().Str("bucket", cfg.Bucket).Msg("Created object storage bucket")
	}

	if baseURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		baseURL = fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.Bucket)
	}
	return &S3Store{client: client, bucket: cfg.Bucket, baseURL: baseURL}, nil
}

// Put uploads r. A negative size streams with multipart upload.
func (s *S3Store) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (err error) {
	start := time.Now()
	defer func() { metrics.RecordStorageOp("s3", "put", time.Since(start), err) }()

	if key, err = CleanKey(key); err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: "public, max-age=31536000, immutable",
	})
	if err != nil {
		return fmt.Errorf("failed to put object %s: %w", key, err)
	}
	return nil
}

// Get streams the object. Missing objects yield ErrNotFound.
func (s *S3Store) Get(ctx context.Context, key string) (rc io.ReadCloser, err error) {
	start := time.Now()
	defer func() { metrics.RecordStorageOp("s3", "get", time.Since(start), err) }()

	if key, err = CleanKey(key); err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.mapError(key, err)
	}
	// GetObject is lazy; Stat surfaces a missing key before the caller starts reading.
	if _, err = obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, s.mapError(key, err)
	}
	return obj, nil
}

// Delete removes the object. S3 treats missing keys as success.
func (s *S3Store) Delete(ctx context.Context, key string) (err error) {
	start := time.Now()
	defer func() { metrics.RecordStorageOp("s3", "delete", time.Since(start), err) }()

	if key, err = CleanKey(key); err != nil {
		return err
	}
	if err = s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}

// Exists stats the object.
func (s *S3Store) Exists(ctx context.Context, key string) (bool, error) {
	key, err := CleanKey(key)
	if err != nil {
		return false, err
	}
	_, err = s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if minio.ToErrorResponse(err).StatusCode == http.StatusNotFound {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat object %s: %w", key, err)
}

// URL returns the public URL for key.
func (s *S3Store) URL(key string) string {
	return publicURL(s.baseURL, key)
}

func (s *S3Store) mapError(key string, err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.StatusCode == http.StatusNotFound || resp.Code == "NoSuchKey" {
		return fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return fmt.Errorf("failed to get object %s: %w", key, err)
}
