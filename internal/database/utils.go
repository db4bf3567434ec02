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
	"io"
	"strings"
	"time"

	"github.com/tomtom215/mangashelf/internal/logging"
	"github.com/tomtom215/mangashelf/internal/metrics"
)

// Sentinel errors returned by repository methods.
var (
	ErrNotFound     = errors.New("record not found")
	ErrConflict     = errors.New("record already exists")
	ErrInvalidState = errors.New("record is not in the required state")
	ErrInvalidPage  = errors.New("page index out of range")
)

// ensureContext adds a 30 second deadline when ctx has none.
func (db *DB) ensureContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return context.WithTimeout(context.Background(), 30*time.Second)
	}
	if _, ok := ctx.Deadline(); !ok {
		return context.WithTimeout(ctx, 30*time.Second)
	}
	return ctx, func() {}
}

// now returns UTC time truncated to DuckDB's microsecond precision so
// values written and read back compare equal.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// withTx runs fn in a transaction, retrying the whole transaction with
// exponential backoff when DuckDB reports a write-write conflict.
func (db *DB) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	start := time.Now()
	defer func() { metrics.DBQueryDuration.WithLabelValues(op).Observe(time.Since(start).Seconds()) }()

	var lastErr error
	for attempt := 0; attempt <= db.conflictRetries; attempt++ {
		if attempt > 0 {
			delay := db.conflictDelay * time.Duration(1<<uint(attempt-1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = db.runTx(ctx, fn)
		if lastErr == nil || !isTransactionConflict(lastErr) {
			return lastErr
		}
		logging.Debug().Str("op", op).Int("attempt", attempt+1).Msg("Transaction conflict, retrying")
	}
	return fmt.Errorf("%s: transaction conflict after %d retries: %w", op, db.conflictRetries, lastErr)
}

func (db *DB) runTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// observe records query latency for op; use as defer db.observe("op")().
func (db *DB) observe(op string) func() {
	start := time.Now()
	return func() {
		metrics.DBQueryDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}

func isTransactionConflict(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "Transaction conflict") ||
		strings.Contains(s, "Conflict on update") ||
		strings.Contains(s, "Conflict on tuple deletion")
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "Duplicate key") || strings.Contains(s, "violates primary key constraint")
}

func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close()
	}
}

func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func ptrString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func ptrTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

// rowsAffectedOrNotFound maps a zero-row update to ErrNotFound.
func rowsAffectedOrNotFound(res sql.Result, err error, op string) error {
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// clampPage applies page-size defaults shared by list queries.
func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 500 {
		limit = 500
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
