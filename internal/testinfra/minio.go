// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

//go:build integration

package testinfra

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/tomtom215/mangashelf/internal/config"
)

const (
	DefaultMinIOImage = "minio/minio:RELEASE.2024-11-07T00-52-20Z"
	minioPort         = "9000"

	DefaultMinIOUser     = "mangashelf"
	DefaultMinIOPassword = "mangashelf-secret"
)

// MinIOContainer is a running MinIO server.
type MinIOContainer struct {
	testcontainers.Container
	Endpoint  string
	AccessKey string
	SecretKey string
}

// MinIOOption configures the container.
type MinIOOption func(*minioConfig)

type minioConfig struct {
	image        string
	startTimeout time.Duration
}

// WithMinIOImage overrides the image tag.
func WithMinIOImage(image string) MinIOOption {
	return func(c *minioConfig) { c.image = image }
}

// WithStartTimeout bounds how long startup may take.
func WithStartTimeout(timeout time.Duration) MinIOOption {
	return func(c *minioConfig) { c.startTimeout = timeout }
}

// NewMinIOContainer starts MinIO and waits for its health endpoint.
//
//	minio, err := testinfra.NewMinIOContainer(ctx)
//	if err != nil {
//	    t.Fatal(err)
//	}
//	defer testinfra.CleanupContainer(t, ctx, minio)
//	store, err := storage.NewS3Store(ctx, minio.S3Config("pages"), "")
func NewMinIOContainer(ctx context.Context, opts ...MinIOOption) (*MinIOContainer, error) {
	cfg := &minioConfig{image: DefaultMinIOImage, startTimeout: 60 * time.Second}
	for _, opt := range opts {
		opt(cfg)
	}

	req := testcontainers.ContainerRequest{
		Image:        cfg.image,
		ExposedPorts: []string{minioPort + "/tcp"},
		Env: map[string]string{
			"MINIO_ROOT_USER":     DefaultMinIOUser,
			"MINIO_ROOT_PASSWORD": DefaultMinIOPassword,
		},
		Cmd: []string{"server", "/data"},
		WaitingFor: wait.ForHTTP("/minio/health/live").
			WithPort(minioPort + "/tcp").
			WithStartupTimeout(cfg.startTimeout),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, minioPort)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get mapped port: %w", err)
	}

	return &MinIOContainer{
		Container: container,
		Endpoint:  fmt.Sprintf("%s:%s", host, port.Port()),
		AccessKey: DefaultMinIOUser,
		SecretKey: DefaultMinIOPassword,
	}, nil
}

// S3Config returns storage settings pointing at bucket on this server.
func (m *MinIOContainer) S3Config(bucket string) *config.S3StorageConfig {
	return &config.S3StorageConfig{
		Endpoint:  m.Endpoint,
		Bucket:    bucket,
		Region:    "us-east-1",
		AccessKey: m.AccessKey,
		SecretKey: m.SecretKey,
	}
}
