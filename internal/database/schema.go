// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package database

import (
	"context"
	"fmt"
	"time"
)

func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// Tables avoid UNIQUE constraints on updatable columns: DuckDB's ART
// indexes reject some in-transaction updates, and uniqueness of slugs,
// usernames and emails only applies to live rows anyway.
func getTableCreationQueries() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS users (
			id VARCHAR PRIMARY KEY,
			username VARCHAR NOT NULL,
			email VARCHAR NOT NULL,
			password_hash VARCHAR NOT NULL,
			role VARCHAR NOT NULL DEFAULT 'reader',
			subscription_end TIMESTAMP,
			subscription_notified_end TIMESTAMP,
			subscription_warned_end TIMESTAMP,
			banned BOOLEAN NOT NULL DEFAULT false,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			deleted_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS manga (
			id VARCHAR PRIMARY KEY,
			slug VARCHAR NOT NULL,
			title VARCHAR NOT NULL,
			alt_titles VARCHAR NOT NULL DEFAULT '[]',
			description VARCHAR NOT NULL DEFAULT '',
			author VARCHAR NOT NULL DEFAULT '',
			artist VARCHAR NOT NULL DEFAULT '',
			cover_key VARCHAR NOT NULL DEFAULT '',
			status VARCHAR NOT NULL,
			type VARCHAR NOT NULL,
			views BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			deleted_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS manga_genres (
			manga_id VARCHAR NOT NULL,
			genre VARCHAR NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS chapters (
			id VARCHAR PRIMARY KEY,
			manga_id VARCHAR NOT NULL,
			number DOUBLE NOT NULL,
			title VARCHAR NOT NULL DEFAULT '',
			is_premium BOOLEAN NOT NULL DEFAULT false,
			published BOOLEAN NOT NULL DEFAULT false,
			published_at TIMESTAMP,
			page_count INTEGER NOT NULL DEFAULT 0,
			views BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			deleted_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS chapter_images (
			chapter_id VARCHAR NOT NULL,
			page INTEGER NOT NULL,
			object_key VARCHAR NOT NULL,
			width INTEGER NOT NULL,
			height INTEGER NOT NULL,
			bytes BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS comments (
			id VARCHAR PRIMARY KEY,
			user_id VARCHAR NOT NULL,
			manga_id VARCHAR NOT NULL,
			chapter_id VARCHAR,
			parent_id VARCHAR,
			body VARCHAR NOT NULL,
			hidden BOOLEAN NOT NULL DEFAULT false,
			hidden_by VARCHAR,
			hidden_reason VARCHAR NOT NULL DEFAULT '',
			hidden_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			deleted_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS likes (
			user_id VARCHAR NOT NULL,
			manga_id VARCHAR NOT NULL,
			created_at TIMESTAMP NOT NULL,
			PRIMARY KEY (user_id, manga_id)
		)`,
		`CREATE TABLE IF NOT EXISTS follows (
			user_id VARCHAR NOT NULL,
			manga_id VARCHAR NOT NULL,
			created_at TIMESTAMP NOT NULL,
			PRIMARY KEY (user_id, manga_id)
		)`,
		`CREATE TABLE IF NOT EXISTS payments (
			id VARCHAR PRIMARY KEY,
			user_id VARCHAR NOT NULL,
			plan_id VARCHAR NOT NULL,
			amount BIGINT NOT NULL,
			reference VARCHAR NOT NULL,
			status VARCHAR NOT NULL,
			reviewed_by VARCHAR,
			reviewed_at TIMESTAMP,
			note VARCHAR NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id VARCHAR PRIMARY KEY,
			user_id VARCHAR NOT NULL,
			kind VARCHAR NOT NULL,
			title VARCHAR NOT NULL,
			body VARCHAR NOT NULL DEFAULT '',
			link VARCHAR NOT NULL DEFAULT '',
			read BOOLEAN NOT NULL DEFAULT false,
			created_at TIMESTAMP NOT NULL
		)`,
	}
}

func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, q := range getTableCreationQueries() {
		if _, err := db.conn.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}
