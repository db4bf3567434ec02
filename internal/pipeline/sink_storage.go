// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package pipeline

import (
	"bytes"
	"context"
	"errors"

	"github.com/tomtom215/mangashelf/internal/storage"
)

// StorageSink writes pages straight to an object store. The server's bulk
// upload endpoint uses it.
type StorageSink struct {
	store   storage.Store
	mangaID string
}

// NewStorageSink creates a sink that keys pages under mangaID.
func NewStorageSink(store storage.Store, mangaID string) *StorageSink {
	return &StorageSink{store: store, mangaID: mangaID}
}

// Upload implements Sink.
func (s *StorageSink) Upload(ctx context.Context, p Page) (string, error) {
	key := storage.ChapterPageKey(s.mangaID, p.ChapterID, p.Index, p.Token)
	err := s.store.Put(ctx, key, bytes.NewReader(p.Data), int64(len(p.Data)), "image/webp")
	if err != nil {
		if errors.Is(err, storage.ErrInvalidKey) {
			return "", Permanent(err)
		}
		return "", err
	}
	return key, nil
}
