// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package database

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/tomtom215/mangashelf/internal/models"
)

// ReplaceChapterImages swaps a chapter's whole page set in one transaction
// and updates page_count. Pages are renumbered 0..n-1 in the given order.
// It returns the object keys of the pages that were replaced so the caller
// can remove them from storage.
func (db *DB) ReplaceChapterImages(ctx context.Context, chapterID string, pages []models.ChapterImage) ([]string, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var old []string
	err := db.withTx(ctx, "replace_chapter_images", func(tx *sql.Tx) error {
		if err := requireLiveChapter(ctx, tx, chapterID); err != nil {
			return err
		}
		var err error
		old, err = chapterObjectKeys(ctx, tx, chapterID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM chapter_images WHERE chapter_id = ?`, chapterID); err != nil {
			return fmt.Errorf("failed to clear chapter images: %w", err)
		}
		for i, p := range pages {
			if _, err := tx.ExecContext(ctx, `INSERT INTO chapter_images (chapter_id, page, object_key, width, height, bytes)
				VALUES (?, ?, ?, ?, ?, ?)`, chapterID, i, p.ObjectKey, p.Width, p.Height, p.Bytes); err != nil {
				return fmt.Errorf("failed to insert page %d: %w", i, err)
			}
		}
		return setPageCount(ctx, tx, chapterID, len(pages))
	})
	if err != nil {
		return nil, err
	}
	return staleKeys(old, pages), nil
}

// PutChapterImage replaces page img.Page or appends it when img.Page equals
// the current page count. Any other index returns ErrInvalidPage, keeping
// pages contiguous. The replaced object key, if any, is returned.
func (db *DB) PutChapterImage(ctx context.Context, img models.ChapterImage) (string, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var replaced string
	err := db.withTx(ctx, "put_chapter_image", func(tx *sql.Tx) error {
		if err := requireLiveChapter(ctx, tx, img.ChapterID); err != nil {
			return err
		}
		var count int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM chapter_images WHERE chapter_id = ?`, img.ChapterID).Scan(&count); err != nil {
			return fmt.Errorf("failed to count pages: %w", err)
		}
		if img.Page < 0 || img.Page > count {
			return fmt.Errorf("page %d of %d: %w", img.Page, count, ErrInvalidPage)
		}
		if img.Page < count {
			if err := tx.QueryRowContext(ctx, `SELECT object_key FROM chapter_images WHERE chapter_id = ? AND page = ?`,
				img.ChapterID, img.Page).Scan(&replaced); err != nil {
				return fmt.Errorf("failed to load page: %w", err)
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM chapter_images WHERE chapter_id = ? AND page = ?`, img.ChapterID, img.Page); err != nil {
				return fmt.Errorf("failed to remove page: %w", err)
			}
		} else {
			count++
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO chapter_images (chapter_id, page, object_key, width, height, bytes)
			VALUES (?, ?, ?, ?, ?, ?)`, img.ChapterID, img.Page, img.ObjectKey, img.Width, img.Height, img.Bytes); err != nil {
			return fmt.Errorf("failed to insert page: %w", err)
		}
		return setPageCount(ctx, tx, img.ChapterID, count)
	})
	if err != nil {
		return "", err
	}
	if replaced == img.ObjectKey {
		replaced = ""
	}
	return replaced, nil
}

// ListChapterImages returns pages in reading order.
func (db *DB) ListChapterImages(ctx context.Context, chapterID string) ([]models.ChapterImage, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer db.observe("list_chapter_images")()

	rows, err := db.conn.QueryContext(ctx, `SELECT chapter_id, page, object_key, width, height, bytes
		FROM chapter_images WHERE chapter_id = ? ORDER BY page`, chapterID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chapter images: %w", err)
	}
	defer rows.Close()

	pages := make([]models.ChapterImage, 0)
	for rows.Next() {
		var p models.ChapterImage
		if err := rows.Scan(&p.ChapterID, &p.Page, &p.ObjectKey, &p.Width, &p.Height, &p.Bytes); err != nil {
			return nil, fmt.Errorf("failed to scan chapter image: %w", err)
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

func requireLiveChapter(ctx context.Context, tx *sql.Tx, chapterID string) error {
	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM chapters WHERE id = ? AND deleted_at IS NULL`, chapterID).Scan(&n); err != nil {
		return fmt.Errorf("failed to check chapter: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("chapter %s: %w", chapterID, ErrNotFound)
	}
	return nil
}

func chapterObjectKeys(ctx context.Context, tx *sql.Tx, chapterID string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `SELECT object_key FROM chapter_images WHERE chapter_id = ?`, chapterID)
	if err != nil {
		return nil, fmt.Errorf("failed to load object keys: %w", err)
	}
	defer rows.Close()
	keys := make([]string, 0)
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("failed to scan object key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func setPageCount(ctx context.Context, tx *sql.Tx, chapterID string, n int) error {
	if _, err := tx.ExecContext(ctx, `UPDATE chapters SET page_count = ?, updated_at = ? WHERE id = ?`, n, now(), chapterID); err != nil {
		return fmt.Errorf("failed to update page count: %w", err)
	}
	return nil
}

// staleKeys returns keys in old that are not referenced by pages.
func staleKeys(old []string, pages []models.ChapterImage) []string {
	keep := make(map[string]bool, len(pages))
	for _, p := range pages {
		keep[p.ObjectKey] = true
	}
	stale := make([]string, 0)
	for _, k := range old {
		if !keep[k] {
			stale = append(stale, k)
		}
	}
	sort.Strings(stale)
	return stale
}
