// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/tomtom215/mangashelf/internal/models"
)

// CreateNotifications inserts a batch of notifications in one transaction.
// IDs and timestamps are filled in place.
func (db *DB) CreateNotifications(ctx context.Context, ns []models.Notification) error {
	if len(ns) == 0 {
		return nil
	}
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	ts := now()
	for i := range ns {
		if ns[i].ID == "" {
			ns[i].ID = uuid.New().String()
		}
		ns[i].CreatedAt = ts
	}

	return db.withTx(ctx, "create_notifications", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO notifications (id, user_id, kind, title, body, link, read, created_at)
			VALUES (?, ?, ?, ?, ?, ?, false, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare notification insert: %w", err)
		}
		defer closeQuietly(stmt)

		for _, n := range ns {
			if _, err := stmt.ExecContext(ctx, n.ID, n.UserID, string(n.Kind), n.Title, n.Body, n.Link, n.CreatedAt); err != nil {
				return fmt.Errorf("failed to insert notification: %w", err)
			}
		}
		return nil
	})
}

// ListNotifications returns a user's notifications newest first and the
// total matching count.
func (db *DB) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]models.Notification, int, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	limit, offset = clampPage(limit, offset)
	where := `WHERE user_id = ?`
	if unreadOnly {
		where += ` AND read = false`
	}

	var total int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications `+where, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx, `SELECT id, user_id, kind, title, body, link, read, created_at
		FROM notifications `+where+` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	out := make([]models.Notification, 0)
	for rows.Next() {
		var (
			n    models.Notification
			kind string
		)
		if err := rows.Scan(&n.ID, &n.UserID, &kind, &n.Title, &n.Body, &n.Link, &n.Read, &n.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.Kind = models.NotificationKind(kind)
		n.CreatedAt = n.CreatedAt.UTC()
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating notifications: %w", err)
	}
	return out, total, nil
}

// CountUnread returns the number of unread notifications for a user.
func (db *DB) CountUnread(ctx context.Context, userID string) (int, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = ? AND read = false`,
		userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return n, nil
}

// MarkNotificationRead marks one of the user's notifications read. Another
// user's notification is reported as ErrNotFound.
func (db *DB) MarkNotificationRead(ctx context.Context, userID, id string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx, `UPDATE notifications SET read = true WHERE id = ? AND user_id = ?`, id, userID)
	return rowsAffectedOrNotFound(res, err, "mark notification read")
}

// MarkAllNotificationsRead marks every unread notification read and returns how many changed.
func (db *DB) MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx, `UPDATE notifications SET read = true WHERE user_id = ? AND read = false`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return res.RowsAffected()
}
