// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// softDeletable names the tables that carry deleted_at.
var softDeletable = map[string]bool{
	"manga":    true,
	"chapters": true,
	"users":    true,
	"comments": true,
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// softDelete marks a live row deleted. Deleting an already deleted or
// missing row returns ErrNotFound.
func softDelete(ctx context.Context, ex execer, table, id string, at time.Time) error {
	if !softDeletable[table] {
		return fmt.Errorf("table %s is not soft-deletable", table)
	}
	q := fmt.Sprintf(`UPDATE %s SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`, table)
	res, err := ex.ExecContext(ctx, q, at, at, id)
	return rowsAffectedOrNotFound(res, err, "soft delete "+table)
}

// restore clears deleted_at on a deleted row. Restoring a live or missing
// row returns ErrNotFound.
func restore(ctx context.Context, ex execer, table, id string, at time.Time) error {
	if !softDeletable[table] {
		return fmt.Errorf("table %s is not soft-deletable", table)
	}
	q := fmt.Sprintf(`UPDATE %s SET deleted_at = NULL, updated_at = ? WHERE id = ? AND deleted_at IS NOT NULL`, table)
	res, err := ex.ExecContext(ctx, q, at, id)
	return rowsAffectedOrNotFound(res, err, "restore "+table)
}

// PurgeResult counts hard-deleted rows per table.
type PurgeResult map[string]int64

// Row sets removed by a purge. Each takes one cutoff argument per "?".
const (
	purgedManga    = `SELECT id FROM manga WHERE deleted_at < ?`
	purgedChapters = `SELECT id FROM chapters WHERE deleted_at < ? OR manga_id IN (` + purgedManga + `)`
	purgedUsers    = `SELECT id FROM users WHERE deleted_at < ?`
)

// purgeStep deletes one table's share of a purge.
type purgeStep struct {
	table string
	query string
	args  int
}

// Dependent rows go before the rows they reference, since the row sets
// above are evaluated against the tables as they stand.
var purgeSteps = []purgeStep{
	{"chapter_images", `DELETE FROM chapter_images WHERE chapter_id IN (` + purgedChapters + `)`, 2},
	// A deleted comment with live or recently deleted replies stays as a
	// tombstone until its replies go.
	{"comments", `DELETE FROM comments WHERE manga_id IN (` + purgedManga + `)
		OR chapter_id IN (` + purgedChapters + `)
		OR (deleted_at < ? AND NOT EXISTS (SELECT 1 FROM comments r
			WHERE r.parent_id = comments.id AND (r.deleted_at IS NULL OR r.deleted_at >= ?)))`, 5},
	{"likes", `DELETE FROM likes WHERE manga_id IN (` + purgedManga + `) OR user_id IN (` + purgedUsers + `)`, 2},
	{"follows", `DELETE FROM follows WHERE manga_id IN (` + purgedManga + `) OR user_id IN (` + purgedUsers + `)`, 2},
	{"notifications", `DELETE FROM notifications WHERE user_id IN (` + purgedUsers + `)`, 1},
	{"payments", `DELETE FROM payments WHERE user_id IN (` + purgedUsers + `)`, 1},
	{"chapters", `DELETE FROM chapters WHERE id IN (` + purgedChapters + `)`, 2},
	{"manga_genres", `DELETE FROM manga_genres WHERE manga_id IN (` + purgedManga + `)`, 1},
	{"manga", `DELETE FROM manga WHERE deleted_at < ?`, 1},
	{"users", `DELETE FROM users WHERE deleted_at < ?`, 1},
}

// PurgeDeleted hard-deletes rows soft-deleted before now-retention together
// with every row that depends on them: pages, genres, comments, likes and
// follows of purged manga and chapters, and the reactions, payments and
// notifications of purged users. Comments written by a purged user stay
// and render without an author. It returns the object keys of the purged
// pages and covers; removing them from storage is up to the caller.
func (db *DB) PurgeDeleted(ctx context.Context, retention time.Duration) (PurgeResult, []string, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	cutoff := now().Add(-retention)
	result := PurgeResult{}
	var keys []string

	err := db.withTx(ctx, "purge_deleted", func(tx *sql.Tx) error {
		for k := range result {
			delete(result, k)
		}
		var err error
		keys, err = purgedObjectKeys(ctx, tx, cutoff)
		if err != nil {
			return err
		}
		for _, s := range purgeSteps {
			res, err := tx.ExecContext(ctx, s.query, cutoffArgs(cutoff, s.args)...)
			if err != nil {
				return fmt.Errorf("failed to purge %s: %w", s.table, err)
			}
			n, _ := res.RowsAffected()
			result[s.table] = n
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return result, keys, nil
}

// purgedObjectKeys lists the stored objects of pages and covers a purge at
// cutoff removes.
func purgedObjectKeys(ctx context.Context, tx *sql.Tx, cutoff time.Time) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `SELECT object_key FROM chapter_images WHERE chapter_id IN (`+purgedChapters+`)
		UNION ALL
		SELECT cover_key FROM manga WHERE deleted_at < ? AND cover_key <> ''
		ORDER BY 1`, cutoffArgs(cutoff, 3)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list purged objects: %w", err)
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
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating object keys: %w", err)
	}
	return keys, nil
}

func cutoffArgs(cutoff time.Time, n int) []interface{} {
	args := make([]interface{}, n)
	for i := range args {
		args[i] = cutoff
	}
	return args
}
