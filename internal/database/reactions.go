// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package database

import (
	"context"
	"database/sql"
	"fmt"
)

// AddLike records a like on a live manga. Liking twice is a no-op.
func (db *DB) AddLike(ctx context.Context, userID, mangaID string) error {
	return db.addReaction(ctx, "likes", userID, mangaID)
}

// RemoveLike removes a like. Removing a missing like is a no-op.
func (db *DB) RemoveLike(ctx context.Context, userID, mangaID string) error {
	return db.removeReaction(ctx, "likes", userID, mangaID)
}

// HasLiked reports whether userID likes mangaID.
func (db *DB) HasLiked(ctx context.Context, userID, mangaID string) (bool, error) {
	return db.hasReaction(ctx, "likes", userID, mangaID)
}

// AddFollow subscribes a user to a live manga.
func (db *DB) AddFollow(ctx context.Context, userID, mangaID string) error {
	return db.addReaction(ctx, "follows", userID, mangaID)
}

// RemoveFollow unsubscribes a user.
func (db *DB) RemoveFollow(ctx context.Context, userID, mangaID string) error {
	return db.removeReaction(ctx, "follows", userID, mangaID)
}

// IsFollowing reports whether userID follows mangaID.
func (db *DB) IsFollowing(ctx context.Context, userID, mangaID string) (bool, error) {
	return db.hasReaction(ctx, "follows", userID, mangaID)
}

// ListFollowerIDs returns live, unbanned followers of a manga.
func (db *DB) ListFollowerIDs(ctx context.Context, mangaID string) ([]string, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `SELECT f.user_id FROM follows f
		JOIN users u ON u.id = f.user_id
		WHERE f.manga_id = ? AND u.deleted_at IS NULL AND u.banned = false
		ORDER BY f.created_at`, mangaID)
	if err != nil {
		return nil, fmt.Errorf("failed to list followers: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan follower: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListFollowedMangaIDs returns the manga a user follows, most recent first.
func (db *DB) ListFollowedMangaIDs(ctx context.Context, userID string) ([]string, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `SELECT f.manga_id FROM follows f
		JOIN manga m ON m.id = f.manga_id
		WHERE f.user_id = ? AND m.deleted_at IS NULL
		ORDER BY f.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list follows: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan follow: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (db *DB) addReaction(ctx context.Context, table, userID, mangaID string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	return db.withTx(ctx, "add_"+table, func(tx *sql.Tx) error {
		var n int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM manga WHERE id = ? AND deleted_at IS NULL`,
			mangaID).Scan(&n); err != nil {
			return fmt.Errorf("failed to check manga: %w", err)
		}
		if n == 0 {
			return ErrNotFound
		}
		q := fmt.Sprintf(`INSERT INTO %s (user_id, manga_id, created_at) VALUES (?, ?, ?) ON CONFLICT DO NOTHING`, table)
		if _, err := tx.ExecContext(ctx, q, userID, mangaID, now()); err != nil {
			return fmt.Errorf("failed to insert into %s: %w", table, err)
		}
		return nil
	})
}

func (db *DB) removeReaction(ctx context.Context, table, userID, mangaID string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	q := fmt.Sprintf(`DELETE FROM %s WHERE user_id = ? AND manga_id = ?`, table)
	if _, err := db.conn.ExecContext(ctx, q, userID, mangaID); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	return nil
}

func (db *DB) hasReaction(ctx context.Context, table, userID, mangaID string) (bool, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var n int
	q := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE user_id = ? AND manga_id = ?`, table)
	if err := db.conn.QueryRowContext(ctx, q, userID, mangaID).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to query %s: %w", table, err)
	}
	return n > 0, nil
}
