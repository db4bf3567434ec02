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
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/mangashelf/internal/database/query"
	"github.com/tomtom215/mangashelf/internal/models"
)

const mangaColumns = `m.id, m.slug, m.title, m.alt_titles, m.description, m.author, m.artist,
	m.cover_key, m.status, m.type, m.views, m.created_at, m.updated_at, m.deleted_at,
	(SELECT COUNT(*) FROM likes l WHERE l.manga_id = m.id) AS like_count`

// CreateManga inserts a series. The slug must be unused among live manga.
func (db *DB) CreateManga(ctx context.Context, m *models.Manga) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	ts := now()
	m.CreatedAt, m.UpdatedAt = ts, ts
	alt, err := json.Marshal(nonNil(m.AltTitles))
	if err != nil {
		return fmt.Errorf("failed to encode alt titles: %w", err)
	}

	return db.withTx(ctx, "create_manga", func(tx *sql.Tx) error {
		if err := slugAvailable(ctx, tx, m.Slug, ""); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO manga (
			id, slug, title, alt_titles, description, author, artist, cover_key,
			status, type, views, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
			m.ID, m.Slug, m.Title, string(alt), m.Description, m.Author, m.Artist, m.CoverKey,
			string(m.Status), string(m.Type), m.CreatedAt, m.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to create manga: %w", err)
		}
		return replaceGenres(ctx, tx, m.ID, m.Genres)
	})
}

// UpdateManga overwrites the editable fields of a live manga.
func (db *DB) UpdateManga(ctx context.Context, m *models.Manga) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	alt, err := json.Marshal(nonNil(m.AltTitles))
	if err != nil {
		return fmt.Errorf("failed to encode alt titles: %w", err)
	}
	m.UpdatedAt = now()

	return db.withTx(ctx, "update_manga", func(tx *sql.Tx) error {
		if err := slugAvailable(ctx, tx, m.Slug, m.ID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `UPDATE manga SET
			slug = ?, title = ?, alt_titles = ?, description = ?, author = ?, artist = ?,
			cover_key = ?, status = ?, type = ?, updated_at = ?
			WHERE id = ? AND deleted_at IS NULL`,
			m.Slug, m.Title, string(alt), m.Description, m.Author, m.Artist,
			m.CoverKey, string(m.Status), string(m.Type), m.UpdatedAt, m.ID)
		if err := rowsAffectedOrNotFound(res, err, "update manga"); err != nil {
			return err
		}
		return replaceGenres(ctx, tx, m.ID, m.Genres)
	})
}

func slugAvailable(ctx context.Context, tx *sql.Tx, slug, exceptID string) error {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM manga WHERE slug = ? AND id <> ? AND deleted_at IS NULL`,
		slug, exceptID).Scan(&n)
	if err != nil {
		return fmt.Errorf("failed to check slug: %w", err)
	}
	if n > 0 {
		return fmt.Errorf("slug %q: %w", slug, ErrConflict)
	}
	return nil
}

func replaceGenres(ctx context.Context, tx *sql.Tx, mangaID string, genres []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM manga_genres WHERE manga_id = ?`, mangaID); err != nil {
		return fmt.Errorf("failed to clear genres: %w", err)
	}
	seen := make(map[string]bool, len(genres))
	for _, g := range genres {
		g = strings.ToLower(strings.TrimSpace(g))
		if g == "" || seen[g] {
			continue
		}
		seen[g] = true
		if _, err := tx.ExecContext(ctx, `INSERT INTO manga_genres (manga_id, genre) VALUES (?, ?)`, mangaID, g); err != nil {
			return fmt.Errorf("failed to insert genre: %w", err)
		}
	}
	return nil
}

// GetManga loads a manga by ID under the given scope.
func (db *DB) GetManga(ctx context.Context, id string, scope query.Scope) (*models.Manga, error) {
	return db.getMangaBy(ctx, "m.id", id, scope)
}

// GetMangaBySlug loads a manga by slug under the given scope.
func (db *DB) GetMangaBySlug(ctx context.Context, slug string, scope query.Scope) (*models.Manga, error) {
	return db.getMangaBy(ctx, "m.slug", slug, scope)
}

func (db *DB) getMangaBy(ctx context.Context, column, value string, scope query.Scope) (*models.Manga, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer db.observe("get_manga")()

	wb := query.NewScopedWhere(scope, "m").AddClause(column+" = ?", value)
	where, args := wb.BuildWithPrefix()
	// A deleted slug may be reused, so prefer the live row when scope admits both.
	q := `SELECT ` + mangaColumns + ` FROM manga m ` + where + ` ORDER BY m.deleted_at NULLS FIRST LIMIT 1`

	m, err := scanManga(db.conn.QueryRowContext(ctx, q, args...))
	if err != nil {
		return nil, err
	}
	genres, err := db.mangaGenres(ctx, []string{m.ID})
	if err != nil {
		return nil, err
	}
	m.Genres = nonNil(genres[m.ID])
	return m, nil
}

// ListManga returns a filtered page of manga and the total match count.
func (db *DB) ListManga(ctx context.Context, f models.MangaFilter, scope query.Scope) ([]models.Manga, int, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer db.observe("list_manga")()

	wb := query.NewScopedWhere(scope, "m").
		AddEquals("m.status", string(f.Status)).
		AddEquals("m.type", string(f.Type)).
		AddSearch(f.Query, "m.title", "m.alt_titles", "m.author")
	if f.Genre != "" {
		wb.AddClause(`EXISTS (SELECT 1 FROM manga_genres g WHERE g.manga_id = m.id AND g.genre = ?)`,
			strings.ToLower(strings.TrimSpace(f.Genre)))
	}
	where, args := wb.BuildWithPrefix()

	var total int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM manga m `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count manga: %w", err)
	}

	limit, offset := clampPage(f.Limit, f.Offset)
	q := `SELECT ` + mangaColumns + ` FROM manga m ` + where + ` ORDER BY ` + mangaOrder(f.Sort) + ` LIMIT ? OFFSET ?`
	rows, err := db.conn.QueryContext(ctx, q, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list manga: %w", err)
	}
	defer rows.Close()

	list := make([]models.Manga, 0)
	ids := make([]string, 0)
	for rows.Next() {
		m, err := scanManga(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, *m)
		ids = append(ids, m.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating manga: %w", err)
	}

	genres, err := db.mangaGenres(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range list {
		list[i].Genres = nonNil(genres[list[i].ID])
	}
	return list, total, nil
}

func mangaOrder(sort string) string {
	switch sort {
	case "popular":
		return "m.views DESC, like_count DESC, m.id"
	case "title":
		return "lower(m.title) ASC, m.id"
	default:
		return "m.updated_at DESC, m.id"
	}
}

func (db *DB) mangaGenres(ctx context.Context, ids []string) (map[string][]string, error) {
	out := make(map[string][]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	wb := query.NewWhereBuilder().AddIn("manga_id", ids)
	where, args := wb.BuildWithPrefix()
	rows, err := db.conn.QueryContext(ctx, `SELECT manga_id, genre FROM manga_genres `+where+` ORDER BY genre`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load genres: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, g string
		if err := rows.Scan(&id, &g); err != nil {
			return nil, fmt.Errorf("failed to scan genre: %w", err)
		}
		out[id] = append(out[id], g)
	}
	return out, rows.Err()
}

// ListGenres returns every genre used by a live manga, alphabetically.
func (db *DB) ListGenres(ctx context.Context) ([]string, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `SELECT DISTINCT g.genre FROM manga_genres g
		JOIN manga m ON m.id = g.manga_id WHERE m.deleted_at IS NULL ORDER BY g.genre`)
	if err != nil {
		return nil, fmt.Errorf("failed to list genres: %w", err)
	}
	defer rows.Close()
	genres := make([]string, 0)
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, fmt.Errorf("failed to scan genre: %w", err)
		}
		genres = append(genres, g)
	}
	return genres, rows.Err()
}

// DeleteManga soft-deletes a manga and its live chapters with one timestamp.
func (db *DB) DeleteManga(ctx context.Context, id string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	at := now()
	return db.withTx(ctx, "delete_manga", func(tx *sql.Tx) error {
		if err := softDelete(ctx, tx, "manga", id, at); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`UPDATE chapters SET deleted_at = ?, updated_at = ? WHERE manga_id = ? AND deleted_at IS NULL`,
			at, at, id)
		if err != nil {
			return fmt.Errorf("failed to cascade delete chapters: %w", err)
		}
		return nil
	})
}

// RestoreManga restores a manga and exactly the chapters removed with it.
// Chapters deleted individually before the manga stay deleted.
func (db *DB) RestoreManga(ctx context.Context, id string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	return db.withTx(ctx, "restore_manga", func(tx *sql.Tx) error {
		var deletedAt sql.NullTime
		var slug string
		err := tx.QueryRowContext(ctx, `SELECT deleted_at, slug FROM manga WHERE id = ?`, id).Scan(&deletedAt, &slug)
		if errors.Is(err, sql.ErrNoRows) || (err == nil && !deletedAt.Valid) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load manga: %w", err)
		}
		if err := slugAvailable(ctx, tx, slug, id); err != nil {
			return err
		}

		at := now()
		if err := restore(ctx, tx, "manga", id, at); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE chapters SET deleted_at = NULL, updated_at = ? WHERE manga_id = ? AND deleted_at = ?`,
			at, id, deletedAt.Time)
		if err != nil {
			return fmt.Errorf("failed to cascade restore chapters: %w", err)
		}
		return nil
	})
}

// IncrementMangaViews bumps the series view counter.
func (db *DB) IncrementMangaViews(ctx context.Context, id string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	_, err := db.conn.ExecContext(ctx, `UPDATE manga SET views = views + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to increment manga views: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanManga(row rowScanner) (*models.Manga, error) {
	var (
		m         models.Manga
		alt       string
		status    string
		mtype     string
		deletedAt sql.NullTime
	)
	err := row.Scan(&m.ID, &m.Slug, &m.Title, &alt, &m.Description, &m.Author, &m.Artist,
		&m.CoverKey, &status, &mtype, &m.Views, &m.CreatedAt, &m.UpdatedAt, &deletedAt, &m.Likes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan manga: %w", err)
	}
	if err := json.Unmarshal([]byte(alt), &m.AltTitles); err != nil {
		return nil, fmt.Errorf("failed to decode alt titles for %s: %w", m.ID, err)
	}
	m.AltTitles = nonNil(m.AltTitles)
	m.Status = models.MangaStatus(status)
	m.Type = models.MangaType(mtype)
	m.CreatedAt = m.CreatedAt.UTC()
	m.UpdatedAt = m.UpdatedAt.UTC()
	m.DeletedAt = ptrTime(deletedAt)
	return &m, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
