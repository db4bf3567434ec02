// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

/*
Package testinfra starts Docker containers for integration tests with
testcontainers-go.

Everything here is behind the integration build tag:

	go test -tags integration ./internal/storage/...

# MinIO

NewMinIOContainer runs an S3-compatible server so the S3Store can be
exercised end to end, including bucket creation on first use:

	func TestS3Store(t *testing.T) {
	    testinfra.SkipIfNoDocker(t)
	    ctx := context.Background()
	    minio, err := testinfra.NewMinIOContainer(ctx)
	    if err != nil {
	        t.Fatal(err)
	    }
	    defer testinfra.CleanupContainer(t, ctx, minio)
	    ...
	}

Tests skip themselves when Docker is unavailable, so the tag can be set in
CI unconditionally.
*/
package testinfra
