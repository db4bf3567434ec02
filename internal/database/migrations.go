// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/mangashelf/internal/logging"
)

// Migration is a versioned schema change applied exactly once.
type Migration struct {
	Version     int
	Name        string
	Description string
	SQL         string
	AppliedAt   time.Time
}

const schemaMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	name VARCHAR NOT NULL,
	description VARCHAR,
	applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// getMigrations is append-only: never edit or remove an entry once released.
// Indexes only cover columns that are never updated.
func (db *DB) getMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "idx_chapters_manga", Description: "Chapter lookups by manga",
			SQL: `CREATE INDEX IF NOT EXISTS idx_chapters_manga ON chapters(manga_id)`},
		{Version: 2, Name: "idx_comments_manga", Description: "Comment listing by manga",
			SQL: `CREATE INDEX IF NOT EXISTS idx_comments_manga ON comments(manga_id)`},
		{Version: 3, Name: "idx_notifications_user", Description: "Notification inbox by user",
			SQL: `CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id)`},
		{Version: 4, Name: "idx_images_chapter", Description: "Page lookups by chapter",
			SQL: `CREATE INDEX IF NOT EXISTS idx_images_chapter ON chapter_images(chapter_id)`},
		{Version: 5, Name: "idx_genres_manga", Description: "Genre filter join",
			SQL: `CREATE INDEX IF NOT EXISTS idx_genres_manga ON manga_genres(manga_id)`},
	}
}

func (db *DB) getAppliedMigrations(ctx context.Context) (map[int]Migration, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT version, name, COALESCE(description, ''), applied_at FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]Migration)
	for rows.Next() {
		var m Migration
		if err := rows.Scan(&m.Version, &m.Name, &m.Description, &m.AppliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[m.Version] = m
	}
	return applied, rows.Err()
}

func (db *DB) runVersionedMigrations() error {
	ctx, cancel := schemaContext()
	defer cancel()

	if _, err := db.conn.ExecContext(ctx, schemaMigrationsTable); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := db.getAppliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	count := 0
	for _, m := range db.getMigrations() {
		if _, ok := applied[m.Version]; ok {
			continue
		}
		if _, err := db.conn.ExecContext(ctx, m.SQL); err != nil {
			return fmt.Errorf("failed to execute migration v%d (%s): %w", m.Version, m.Name, err)
		}
		if _, err := db.conn.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, name, description) VALUES (?, ?, ?)`,
			m.Version, m.Name, m.Description); err != nil {
			return fmt.Errorf("failed to record migration v%d: %w", m.Version, err)
		}
		count++
	}

	if count > 0 {
		logging.Info().Int("count", count).Msg("Applied database migrations")
	}
	return nil
}

// GetCurrentSchemaVersion returns the highest applied migration version.
func (db *DB) GetCurrentSchemaVersion(ctx context.Context) (int, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var version int
	if err := db.conn.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
