// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

// Package storage holds chapter page images and covers in an object store.
//
// Backends implement Store. LocalStore writes below a directory; S3Store
// talks to any S3-compatible service through minio-go. New wraps the chosen
// backend in a BreakerStore so an unreachable object store fails fast with
// ErrStorageUnavailable instead of stalling uploads.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/tomtom215/mangashelf/internal/config"
)

var (
	// ErrNotFound is returned when an object does not exist.
	ErrNotFound = errors.New("object not found")
	// ErrInvalidKey is returned for empty, absolute or traversing keys.
	ErrInvalidKey = errors.New("invalid object key")
	// ErrStorageUnavailable is returned while the circuit breaker is open.
	ErrStorageUnavailable = errors.New("object storage unavailable")
)

// Store is an object store addressed by slash-separated keys.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	URL(key string) string
}

// New builds the configured backend wrapped in a circuit breaker.
func New(ctx context.Context, cfg *config.StorageConfig) (Store, error) {
	var (
		backend Store
		err     error
	)
	switch cfg.Backend {
	case "local", "":
		backend, err = NewLocalStore(cfg.LocalPath, cfg.PublicBaseURL)
	case "s3":
		backend, err = NewS3Store(ctx, &cfg.S3, cfg.PublicBaseURL)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return NewBreakerStore(backend, "storage-"+backendName(cfg.Backend)), nil
}

func backendName(b string) string {
	if b == "" {
		return "local"
	}
	return b
}

// CleanKey validates key and returns its canonical form.
func CleanKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." || part == "." || part == "" {
			return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return path.Clean(key), nil
}

func publicURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}
