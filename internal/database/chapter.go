// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/mangashelf/internal/database/query"
	"github.com/tomtom215/mangashelf/internal/models"
)

const chapterColumns = `c.id, c.manga_id, c.number, c.title, c.is_premium, c.published, c.published_at,
	c.page_count, c.views, c.created_at, c.updated_at, c.deleted_at`

// CreateChapter inserts an unpublished chapter for a live manga. Chapter
// numbers are unique per manga among live chapters.
func (db *DB) CreateChapter(ctx context.Context, c *models.Chapter) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	ts := now()
	c.CreatedAt, c.UpdatedAt = ts, ts
	c.PageCount = 0

	return db.withTx(ctx, "create_chapter", func(tx *sql.Tx) error {
		var live int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM manga WHERE id = ? AND deleted_at IS NULL`, c.MangaID).Scan(&live); err != nil {
			return fmt.Errorf("failed to check manga: %w", err)
		}
		if live == 0 {
			return fmt.Errorf("manga %s: %w", c.MangaID, ErrNotFound)
		}
		if err := chapterNumberAvailable(ctx, tx, c.MangaID, c.Number, ""); err != nil {
			return err
		}
		var publishedAt *time.Time
		if c.Published {
			publishedAt = &ts
		}
		c.PublishedAt = publishedAt
		_, err := tx.ExecContext(ctx, `INSERT INTO chapters (
			id, manga_id, number, title, is_premium, published, published_at, page_count, views, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, 0, 0, ?, ?)`,
			c.ID, c.MangaID, c.Number, c.Title, c.IsPremium, c.Published, nullTime(publishedAt), c.CreatedAt, c.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to create chapter: %w", err)
		}
		return touchManga(ctx, tx, c.MangaID, ts)
	})
}

// UpdateChapter changes number, title and premium flag of a live chapter.
func (db *DB) UpdateChapter(ctx context.Context, c *models.Chapter) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	c.UpdatedAt = now()
	return db.withTx(ctx, "update_chapter", func(tx *sql.Tx) error {
		if err := chapterNumberAvailable(ctx, tx, c.MangaID, c.Number, c.ID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `UPDATE chapters SET number = ?, title = ?, is_premium = ?, updated_at = ?
			WHERE id = ? AND deleted_at IS NULL`,
			c.Number, c.Title, c.IsPremium, c.UpdatedAt, c.ID)
		return rowsAffectedOrNotFound(res, err, "update chapter")
	})
}

func chapterNumberAvailable(ctx context.Context, tx *sql.Tx, mangaID string, number float64, exceptID string) error {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM chapters
		WHERE manga_id = ? AND number = ? AND id <> ? AND deleted_at IS NULL`,
		mangaID, number, exceptID).Scan(&n)
	if err != nil {
		return fmt.Errorf("failed to check chapter number: %w", err)
	}
	if n > 0 {
		return fmt.Errorf("chapter %v: %w", number, ErrConflict)
	}
	return nil
}

func touchManga(ctx context.Context, tx *sql.Tx, mangaID string, at time.Time) error {
	if _, err := tx.ExecContext(ctx, `UPDATE manga SET updated_at = ? WHERE id = ?`, at, mangaID); err != nil {
		return fmt.Errorf("failed to touch manga: %w", err)
	}
	return nil
}

// PublishChapter marks a chapter published. It returns the chapter and
// whether this call made the transition; republishing is a no-op.
func (db *DB) PublishChapter(ctx context.Context, id string) (*models.Chapter, bool, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var changed bool
	err := db.withTx(ctx, "publish_chapter", func(tx *sql.Tx) error {
		at := now()
		res, err := tx.ExecContext(ctx, `UPDATE chapters SET published = true, published_at = ?, updated_at = ?
			WHERE id = ? AND deleted_at IS NULL AND published = false`, at, at, id)
		if err != nil {
			return fmt.Errorf("failed to publish chapter: %w", err)
		}
		n, _ := res.RowsAffected()
		changed = n > 0
		if changed {
			_, err = tx.ExecContext(ctx, `UPDATE manga SET updated_at = ? WHERE id = (SELECT manga_id FROM chapters WHERE id = ?)`, at, id)
			if err != nil {
				return fmt.Errorf("failed to touch manga: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	c, err := db.GetChapter(ctx, id, query.ScopeDefault)
	if err != nil {
		return nil, false, err
	}
	return c, changed, nil
}

// UnpublishChapter hides a chapter from readers again.
func (db *DB) UnpublishChapter(ctx context.Context, id string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	res, err := db.conn.ExecContext(ctx, `UPDATE chapters SET published = false, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`, now(), id)
	return rowsAffectedOrNotFound(res, err, "unpublish chapter")
}

// GetChapter loads a chapter by ID under the given scope.
func (db *DB) GetChapter(ctx context.Context, id string, scope query.Scope) (*models.Chapter, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer db.observe("get_chapter")()

	where, args := query.NewScopedWhere(scope, "c").AddClause("c.id = ?", id).BuildWithPrefix()
	return scanChapter(db.conn.QueryRowContext(ctx, `SELECT `+chapterColumns+` FROM chapters c `+where, args...))
}

// ListChapters returns a manga's chapters ordered by number. Unpublished
// chapters are included only when includeUnpublished is set.
func (db *DB) ListChapters(ctx context.Context, mangaID string, includeUnpublished bool, scope query.Scope) ([]models.Chapter, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer db.observe("list_chapters")()

	wb := query.NewScopedWhere(scope, "c").AddClause("c.manga_id = ?", mangaID)
	if !includeUnpublished {
		wb.AddClause("c.published = true")
	}
	where, args := wb.BuildWithPrefix()
	rows, err := db.conn.QueryContext(ctx, `SELECT `+chapterColumns+` FROM chapters c `+where+` ORDER BY c.number ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list chapters: %w", err)
	}
	defer rows.Close()

	chapters := make([]models.Chapter, 0)
	for rows.Next() {
		c, err := scanChapter(rows)
		if err != nil {
			return nil, err
		}
		chapters = append(chapters, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chapters: %w", err)
	}
	return chapters, nil
}

// ListDeletedChapters is the chapter trash view across all manga.
func (db *DB) ListDeletedChapters(ctx context.Context, limit, offset int) ([]models.Chapter, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	limit, offset = clampPage(limit, offset)
	where, args := query.NewScopedWhere(query.ScopeOnlyDeleted, "c").BuildWithPrefix()
	rows, err := db.conn.QueryContext(ctx, `SELECT `+chapterColumns+` FROM chapters c `+where+
		` ORDER BY c.deleted_at DESC LIMIT ? OFFSET ?`, append(args, limit, offset)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list deleted chapters: %w", err)
	}
	defer rows.Close()

	chapters := make([]models.Chapter, 0)
	for rows.Next() {
		c, err := scanChapter(rows)
		if err != nil {
			return nil, err
		}
		chapters = append(chapters, *c)
	}
	return chapters, rows.Err()
}

// DeleteChapter soft-deletes one chapter.
func (db *DB) DeleteChapter(ctx context.Context, id string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	return softDelete(ctx, db.conn, "chapters", id, now())
}

// RestoreChapter restores a chapter whose manga is live.
func (db *DB) RestoreChapter(ctx context.Context, id string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	return db.withTx(ctx, "restore_chapter", func(tx *sql.Tx) error {
		var mangaID string
		var number float64
		err := tx.QueryRowContext(ctx, `SELECT c.manga_id, c.number FROM chapters c
			JOIN manga m ON m.id = c.manga_id
			WHERE c.id = ? AND c.deleted_at IS NOT NULL AND m.deleted_at IS NULL`, id).Scan(&mangaID, &number)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load chapter: %w", err)
		}
		if err := chapterNumberAvailable(ctx, tx, mangaID, number, id); err != nil {
			return err
		}
		return restore(ctx, tx, "chapters", id, now())
	})
}

// IncrementChapterViews bumps view counters on the chapter and its manga.
func (db *DB) IncrementChapterViews(ctx context.Context, c *models.Chapter) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	return db.withTx(ctx, "chapter_views", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE chapters SET views = views + 1 WHERE id = ?`, c.ID); err != nil {
			return fmt.Errorf("failed to increment chapter views: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE manga SET views = views + 1 WHERE id = ?`, c.MangaID); err != nil {
			return fmt.Errorf("failed to increment manga views: %w", err)
		}
		return nil
	})
}

func scanChapter(row rowScanner) (*models.Chapter, error) {
	var (
		c           models.Chapter
		publishedAt sql.NullTime
		deletedAt   sql.NullTime
	)
	err := row.Scan(&c.ID, &c.MangaID, &c.Number, &c.Title, &c.IsPremium, &c.Published, &publishedAt,
		&c.PageCount, &c.Views, &c.CreatedAt, &c.UpdatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan chapter: %w", err)
	}
	c.PublishedAt = ptrTime(publishedAt)
	c.DeletedAt = ptrTime(deletedAt)
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return &c, nil
}
