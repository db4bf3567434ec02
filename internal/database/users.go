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
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/mangashelf/internal/database/query"
	"github.com/tomtom215/mangashelf/internal/models"
)

const userColumns = `u.id, u.username, u.email, u.password_hash, u.role, u.subscription_end,
	u.subscription_notified_end, u.subscription_warned_end, u.banned, u.created_at, u.updated_at, u.deleted_at`

// CreateUser inserts an account. Username and email are compared
// case-insensitively against live accounts only.
func (db *DB) CreateUser(ctx context.Context, u *models.User) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.Role == "" {
		u.Role = models.RoleReader
	}
	ts := now()
	u.CreatedAt, u.UpdatedAt = ts, ts

	return db.withTx(ctx, "create_user", func(tx *sql.Tx) error {
		var n int
		err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM users
			WHERE deleted_at IS NULL AND (lower(username) = lower(?) OR lower(email) = lower(?))`,
			u.Username, u.Email).Scan(&n)
		if err != nil {
			return fmt.Errorf("failed to check user uniqueness: %w", err)
		}
		if n > 0 {
			return fmt.Errorf("user %q: %w", u.Username, ErrConflict)
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO users (
			id, username, email, password_hash, role, subscription_end, banned, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, false, ?, ?)`,
			u.ID, u.Username, strings.ToLower(u.Email), u.PasswordHash, string(u.Role),
			nullTime(u.SubscriptionEnd), u.CreatedAt, u.UpdatedAt)
		if err != nil {
			if isUniqueConstraintError(err) {
				return ErrConflict
			}
			return fmt.Errorf("failed to create user: %w", err)
		}
		return nil
	})
}

// GetUser loads a user by ID under the given scope.
func (db *DB) GetUser(ctx context.Context, id string, scope query.Scope) (*models.User, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	where, args := query.NewScopedWhere(scope, "u").AddClause("u.id = ?", id).BuildWithPrefix()
	return scanUser(db.conn.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users u `+where, args...))
}

// GetUserByLogin finds a live user by username or email, case-insensitively.
func (db *DB) GetUserByLogin(ctx context.Context, login string) (*models.User, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	where, args := query.NewScopedWhere(query.ScopeDefault, "u").
		AddClause("(lower(u.username) = lower(?) OR lower(u.email) = lower(?))", login, login).
		BuildWithPrefix()
	return scanUser(db.conn.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users u `+where+` LIMIT 1`, args...))
}

// ListUsers returns a page of users, newest first.
func (db *DB) ListUsers(ctx context.Context, search string, limit, offset int, scope query.Scope) ([]models.User, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	limit, offset = clampPage(limit, offset)
	where, args := query.NewScopedWhere(scope, "u").AddSearch(search, "u.username", "u.email").BuildWithPrefix()
	rows, err := db.conn.QueryContext(ctx, `SELECT `+userColumns+` FROM users u `+where+
		` ORDER BY u.created_at DESC LIMIT ? OFFSET ?`, append(args, limit, offset)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()
	return collectUsers(rows)
}

// SetUserRole changes a live user's role.
func (db *DB) SetUserRole(ctx context.Context, id string, role models.Role) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	res, err := db.conn.ExecContext(ctx, `UPDATE users SET role = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		string(role), now(), id)
	return rowsAffectedOrNotFound(res, err, "set user role")
}

// SetUserBanned bans or unbans a live user.
func (db *DB) SetUserBanned(ctx context.Context, id string, banned bool) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	res, err := db.conn.ExecContext(ctx, `UPDATE users SET banned = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		banned, now(), id)
	return rowsAffectedOrNotFound(res, err, "set user banned")
}

// SetUserPassword stores a new password hash.
func (db *DB) SetUserPassword(ctx context.Context, id, hash string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	res, err := db.conn.ExecContext(ctx, `UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		hash, now(), id)
	return rowsAffectedOrNotFound(res, err, "set user password")
}

// DeleteUser soft-deletes an account.
func (db *DB) DeleteUser(ctx context.Context, id string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	return softDelete(ctx, db.conn, "users", id, now())
}

// RestoreUser restores an account unless its username or email was taken meanwhile.
func (db *DB) RestoreUser(ctx context.Context, id string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	return db.withTx(ctx, "restore_user", func(tx *sql.Tx) error {
		var n int
		err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM users live, users gone
			WHERE gone.id = ? AND live.deleted_at IS NULL AND live.id <> gone.id
			AND (lower(live.username) = lower(gone.username) OR lower(live.email) = lower(gone.email))`, id).Scan(&n)
		if err != nil {
			return fmt.Errorf("failed to check user uniqueness: %w", err)
		}
		if n > 0 {
			return ErrConflict
		}
		return restore(ctx, tx, "users", id, now())
	})
}

// CountUsers counts live accounts.
func (db *DB) CountUsers(ctx context.Context) (int, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE deleted_at IS NULL`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

// ListExpiredUnnotified returns live users whose subscription ended at or
// before now and who have not yet been told about that end date.
func (db *DB) ListExpiredUnnotified(ctx context.Context, at time.Time) ([]models.User, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	where, args := query.NewScopedWhere(query.ScopeDefault, "u").
		AddClause("u.subscription_end IS NOT NULL").
		AddClause("u.subscription_end <= ?", at.UTC()).
		AddClause("(u.subscription_notified_end IS NULL OR u.subscription_notified_end <> u.subscription_end)").
		BuildWithPrefix()
	rows, err := db.conn.QueryContext(ctx, `SELECT `+userColumns+` FROM users u `+where+` ORDER BY u.subscription_end`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired subscriptions: %w", err)
	}
	defer rows.Close()
	return collectUsers(rows)
}

// ListExpiringUnwarned returns live users whose subscription ends in (now, until]
// and who have not been warned for that end date.
func (db *DB) ListExpiringUnwarned(ctx context.Context, at, until time.Time) ([]models.User, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	where, args := query.NewScopedWhere(query.ScopeDefault, "u").
		AddClause("u.subscription_end > ?", at.UTC()).
		AddClause("u.subscription_end <= ?", until.UTC()).
		AddClause("(u.subscription_warned_end IS NULL OR u.subscription_warned_end <> u.subscription_end)").
		BuildWithPrefix()
	rows, err := db.conn.QueryContext(ctx, `SELECT `+userColumns+` FROM users u `+where+` ORDER BY u.subscription_end`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list expiring subscriptions: %w", err)
	}
	defer rows.Close()
	return collectUsers(rows)
}

// MarkExpiryNotified records that the expiry of end was announced. It only
// applies while the user's subscription_end still equals end.
func (db *DB) MarkExpiryNotified(ctx context.Context, userID string, end time.Time) (bool, error) {
	return db.markSubscriptionEvent(ctx, "subscription_notified_end", userID, end)
}

// MarkExpiryWarned records that the upcoming expiry of end was announced.
func (db *DB) MarkExpiryWarned(ctx context.Context, userID string, end time.Time) (bool, error) {
	return db.markSubscriptionEvent(ctx, "subscription_warned_end", userID, end)
}

func (db *DB) markSubscriptionEvent(ctx context.Context, column, userID string, end time.Time) (bool, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	q := fmt.Sprintf(`UPDATE users SET %s = subscription_end
		WHERE id = ? AND subscription_end = ? AND (%s IS NULL OR %s <> subscription_end)`, column, column, column)
	res, err := db.conn.ExecContext(ctx, q, userID, end.UTC())
	if err != nil {
		return false, fmt.Errorf("failed to mark %s: %w", column, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to mark %s: %w", column, err)
	}
	return n > 0, nil
}

func collectUsers(rows *sql.Rows) ([]models.User, error) {
	users := make([]models.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u                                      models.User
		role                                   string
		subEnd, notified, warned, deletedAtCol sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &role, &subEnd,
		&notified, &warned, &u.Banned, &u.CreatedAt, &u.UpdatedAt, &deletedAtCol)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	u.Role = models.Role(role)
	u.SubscriptionEnd = ptrTime(subEnd)
	u.SubscriptionNotifiedEnd = ptrTime(notified)
	u.SubscriptionWarnedEnd = ptrTime(warned)
	u.DeletedAt = ptrTime(deletedAtCol)
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}
