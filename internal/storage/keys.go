// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// ChapterPageKey is the object key of one converted page. The suffix keeps
// replaced pages from colliding with cached URLs. It is derived from token
// when one is given, so repeated uploads with the same token share a key;
// an empty token gets a random suffix.
func ChapterPageKey(mangaID, chapterID string, page int, token string) string {
	suffix := shortID()
	if token != "" {
		sum := sha256.Sum256([]byte(fmt.Sprintf("%s/%d/%s", chapterID, page, token)))
		suffix = hex.EncodeToString(sum[:4])
	}
	return fmt.Sprintf("manga/%s/chapters/%s/%03d-%s.webp", mangaID, chapterID, page, suffix)
}

// CoverKey is the object key of a cover image.
func CoverKey(mangaID string) string {
	return fmt.Sprintf("manga/%s/cover-%s.webp", mangaID, shortID())
}

func shortID() string {
	return uuid.New().String()[:8]
}
