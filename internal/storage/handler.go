// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package storage

import (
	"errors"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/tomtom215/mangashelf/internal/logging"
)

// Handler serves objects from store. It expects the media prefix to be
// stripped already, so the request path is the object key.
func Handler(store Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		key := strings.TrimPrefix(r.URL.Path, "/")
		rc, err := store.Get(r.Context(), key)
		switch {
		case err == nil:
		case errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalidKey):
			http.NotFound(w, r)
			return
		case errors.Is(err, ErrStorageUnavailable):
			w.Header().Set("Retry-After", "30")
			http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
			return
		default:
			logging.Ctx(r.Context()).Error().Err(err).Str("key", key).Msg("Failed to read object")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		defer rc.Close()

		w.Header().Set("Content-Type", contentTypeFor(key))
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		if r.Method == http.MethodHead {
			return
		}
		if _, err := io.Copy(w, rc); err != nil {
			logging.Ctx(r.Context()).Debug().Err(err).Str("key", key).Msg("Object stream interrupted")
		}
	})
}

func contentTypeFor(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".webp":
		return "image/webp"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	default:
		return "application/octet-stream"
	}
}
