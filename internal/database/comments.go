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

	"github.com/google/uuid"

	"github.com/tomtom215/mangashelf/internal/database/query"
	"github.com/tomtom215/mangashelf/internal/models"
)

const commentColumns = `c.id, c.user_id, COALESCE(u.username, ''), c.manga_id, c.chapter_id, c.parent_id,
	c.body, c.hidden, c.hidden_by, c.hidden_reason, c.hidden_at, c.created_at, c.updated_at, c.deleted_at`

const commentFrom = ` FROM comments c LEFT JOIN users u ON u.id = c.user_id `

// CreateComment inserts a comment on a live manga. A parent, when given,
// must be a live comment on the same manga.
func (db *DB) CreateComment(ctx context.Context, c *models.Comment) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	ts := now()
	c.CreatedAt, c.UpdatedAt = ts, ts

	return db.withTx(ctx, "create_comment", func(tx *sql.Tx) error {
		var n int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM manga WHERE id = ? AND deleted_at IS NULL`,
			c.MangaID).Scan(&n); err != nil {
			return fmt.Errorf("failed to check manga: %w", err)
		}
		if n == 0 {
			return ErrNotFound
		}
		if c.ChapterID != nil {
			if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM chapters
				WHERE id = ? AND manga_id = ? AND deleted_at IS NULL`, *c.ChapterID, c.MangaID).Scan(&n); err != nil {
				return fmt.Errorf("failed to check chapter: %w", err)
			}
			if n == 0 {
				return ErrNotFound
			}
		}
		if c.ParentID != nil {
			if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM comments
				WHERE id = ? AND manga_id = ? AND deleted_at IS NULL`, *c.ParentID, c.MangaID).Scan(&n); err != nil {
				return fmt.Errorf("failed to check parent comment: %w", err)
			}
			if n == 0 {
				return ErrNotFound
			}
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO comments (
			id, user_id, manga_id, chapter_id, parent_id, body, hidden, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, false, ?, ?)`,
			c.ID, c.UserID, c.MangaID, nullString(c.ChapterID), nullString(c.ParentID), c.Body, c.CreatedAt, c.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to create comment: %w", err)
		}
		return nil
	})
}

// GetComment loads one comment under the given scope.
func (db *DB) GetComment(ctx context.Context, id string, scope query.Scope) (*models.Comment, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	where, args := query.NewScopedWhere(scope, "c").AddClause("c.id = ?", id).BuildWithPrefix()
	return scanComment(db.conn.QueryRowContext(ctx, `SELECT `+commentColumns+commentFrom+where, args...))
}

// ListComments returns a page of comments, oldest first. Deleted comments
// with live replies are returned as tombstones so threads keep their shape.
// Hidden comments appear only for staff or their own author.
func (db *DB) ListComments(ctx context.Context, f models.CommentFilter) ([]models.Comment, int, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer db.observe("list_comments")()

	limit, offset := clampPage(f.Limit, f.Offset)
	wb := query.NewWhereBuilder().
		AddClause(`(c.deleted_at IS NULL OR EXISTS (
			SELECT 1 FROM comments r WHERE r.parent_id = c.id AND r.deleted_at IS NULL))`).
		AddEquals("c.manga_id", f.MangaID).
		AddEquals("c.chapter_id", f.ChapterID)
	if !f.IncludeHidden {
		if f.ViewerID != "" {
			wb.AddClause("(c.hidden = false OR c.user_id = ?)", f.ViewerID)
		} else {
			wb.AddClause("c.hidden = false")
		}
	}
	where, args := wb.BuildWithPrefix()

	var total int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM comments c `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count comments: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx, `SELECT `+commentColumns+commentFrom+where+
		` ORDER BY c.created_at, c.id LIMIT ? OFFSET ?`, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	comments := make([]models.Comment, 0)
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, 0, err
		}
		if c.DeletedAt != nil {
			c.Tombstone()
		}
		comments = append(comments, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating comments: %w", err)
	}
	return comments, total, nil
}

// HideComment hides a live comment with a moderator and reason.
func (db *DB) HideComment(ctx context.Context, id, moderatorID, reason string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	ts := now()
	res, err := db.conn.ExecContext(ctx, `UPDATE comments SET hidden = true, hidden_by = ?, hidden_reason = ?,
		hidden_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`, moderatorID, reason, ts, ts, id)
	return rowsAffectedOrNotFound(res, err, "hide comment")
}

// UnhideComment clears the hidden flag and its metadata.
func (db *DB) UnhideComment(ctx context.Context, id string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx, `UPDATE comments SET hidden = false, hidden_by = NULL, hidden_reason = '',
		hidden_at = NULL, updated_at = ? WHERE id = ? AND deleted_at IS NULL`, now(), id)
	return rowsAffectedOrNotFound(res, err, "unhide comment")
}

// DeleteComment soft-deletes a comment.
func (db *DB) DeleteComment(ctx context.Context, id string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	return softDelete(ctx, db.conn, "comments", id, now())
}

// RestoreComment restores a deleted comment while its manga is live. A
// missing or live comment returns ErrNotFound; a comment whose manga is
// deleted returns ErrInvalidState.
func (db *DB) RestoreComment(ctx context.Context, id string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	return db.withTx(ctx, "restore_comment", func(tx *sql.Tx) error {
		var deleted, mangaLive bool
		err := tx.QueryRowContext(ctx, `SELECT c.deleted_at IS NOT NULL, (m.id IS NOT NULL AND m.deleted_at IS NULL)
			FROM comments c LEFT JOIN manga m ON m.id = c.manga_id WHERE c.id = ?`, id).Scan(&deleted, &mangaLive)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to check comment: %w", err)
		}
		if !deleted {
			return ErrNotFound
		}
		if !mangaLive {
			return ErrInvalidState
		}
		return restore(ctx, tx, "comments", id, now())
	})
}

func scanComment(row rowScanner) (*models.Comment, error) {
	var (
		c                       models.Comment
		chapterID, parentID, by sql.NullString
		hiddenAt, deletedAtCol  sql.NullTime
	)
	err := row.Scan(&c.ID, &c.UserID, &c.Username, &c.MangaID, &chapterID, &parentID, &c.Body,
		&c.Hidden, &by, &c.HiddenReason, &hiddenAt, &c.CreatedAt, &c.UpdatedAt, &deletedAtCol)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan comment: %w", err)
	}
	c.ChapterID = ptrString(chapterID)
	c.ParentID = ptrString(parentID)
	c.HiddenBy = ptrString(by)
	c.HiddenAt = ptrTime(hiddenAt)
	c.DeletedAt = ptrTime(deletedAtCol)
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return &c, nil
}
