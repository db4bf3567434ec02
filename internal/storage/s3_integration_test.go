// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

//go:build integration

package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/mangashelf/internal/testinfra"
)

func TestS3StoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	testinfra.SkipIfNoDocker(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	minio, err := testinfra.NewMinIOContainer(ctx)
	if err != nil {
		t.Fatalf("NewMinIOContainer: %v", err)
	}
	defer testinfra.CleanupContainer(t, context.Background(), minio)

	store, err := NewS3Store(ctx, minio.S3Config("chapters"), "")
	if err != nil {
		t.Fatalf("NewS3Store: %v", err)
	}
	// A second connection sees the bucket and does not recreate it.
	if _, err := NewS3Store(ctx, minio.S3Config("chapters"), ""); err != nil {
		t.Fatalf("NewS3Store on existing bucket: %v", err)
	}

	key := ChapterPageKey("m1", "c1", 0, "")
	payload := []byte("RIFF----WEBPVP8 fake page")
	if err := store.Put(ctx, key, bytes.NewReader(payload), int64(len(payload)), "image/webp"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	ok, err := store.Exists(ctx, key)
	if err != nil || !ok {
		t.Fatalf("Exists = %v, %v; want true", ok, err)
	}

	rc, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	got, err := io.ReadAll(rc)
	_ = rc.Close()
	if err != nil || !bytes.Equal(got, payload) {
		t.Fatalf("Get body = %q, %v", got, err)
	}

	if url := store.URL(key); !strings.HasSuffix(url, "/chapters/"+key) {
		t.Errorf("URL = %q", url)
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete = %v, want ErrNotFound", err)
	}
	if err := store.Delete(ctx, key); err != nil {
		t.Errorf("second Delete = %v, want nil", err)
	}
}
