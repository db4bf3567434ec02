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

	"github.com/tomtom215/mangashelf/internal/models"
)

const paymentColumns = `id, user_id, plan_id, amount, reference, status, reviewed_by, reviewed_at, note, created_at`

// CreatePayment records a pending payment. A user may only have one
// pending payment at a time; a second returns ErrConflict.
func (db *DB) CreatePayment(ctx context.Context, p *models.Payment) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	p.Status = models.PaymentPending
	p.CreatedAt = now()

	return db.withTx(ctx, "create_payment", func(tx *sql.Tx) error {
		var n int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM payments WHERE user_id = ? AND status = ?`,
			p.UserID, string(models.PaymentPending)).Scan(&n); err != nil {
			return fmt.Errorf("failed to check pending payments: %w", err)
		}
		if n > 0 {
			return fmt.Errorf("pending payment exists: %w", ErrConflict)
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO payments (`+paymentColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, NULL, NULL, '', ?)`,
			p.ID, p.UserID, p.PlanID, p.Amount, p.Reference, string(p.Status), p.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to create payment: %w", err)
		}
		return nil
	})
}

// GetPayment loads a payment by ID.
func (db *DB) GetPayment(ctx context.Context, id string) (*models.Payment, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	return scanPayment(db.conn.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = ?`, id))
}

// PendingPaymentForUser returns the user's pending payment or ErrNotFound.
func (db *DB) PendingPaymentForUser(ctx context.Context, userID string) (*models.Payment, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	return scanPayment(db.conn.QueryRowContext(ctx, `SELECT `+paymentColumns+
		` FROM payments WHERE user_id = ? AND status = ? LIMIT 1`, userID, string(models.PaymentPending)))
}

// ListPayments returns payments newest first, optionally filtered by status and user.
func (db *DB) ListPayments(ctx context.Context, status models.PaymentStatus, userID string, limit, offset int) ([]models.Payment, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	limit, offset = clampPage(limit, offset)
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE (? = '' OR status = ?) AND (? = '' OR user_id = ?)
		ORDER BY created_at DESC LIMIT ? OFFSET ?`
	rows, err := db.conn.QueryContext(ctx, q, string(status), string(status), userID, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	payments := make([]models.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payments: %w", err)
	}
	return payments, nil
}

// ReviewPayment moves a pending payment to approved or rejected. For
// approvals, extend receives the user's current subscription end and returns
// the new one; the payment and the user's subscription change atomically.
// A payment that is not pending returns ErrInvalidState.
func (db *DB) ReviewPayment(ctx context.Context, id string, status models.PaymentStatus, reviewerID, note string,
	extend func(current *time.Time) time.Time) (*models.Payment, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if status != models.PaymentApproved && status != models.PaymentRejected {
		return nil, fmt.Errorf("cannot review payment to %q: %w", status, ErrInvalidState)
	}

	var out *models.Payment
	err := db.withTx(ctx, "review_payment", func(tx *sql.Tx) error {
		p, err := scanPayment(tx.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = ?`, id))
		if err != nil {
			return err
		}
		if p.Status != models.PaymentPending {
			return fmt.Errorf("payment is %s: %w", p.Status, ErrInvalidState)
		}

		ts := now()
		if _, err := tx.ExecContext(ctx, `UPDATE payments SET status = ?, reviewed_by = ?, reviewed_at = ?, note = ?
			WHERE id = ?`, string(status), reviewerID, ts, note, id); err != nil {
			return fmt.Errorf("failed to update payment: %w", err)
		}
		p.Status = status
		p.ReviewedBy = &reviewerID
		p.ReviewedAt = &ts
		p.Note = note

		if status == models.PaymentApproved && extend != nil {
			var current sql.NullTime
			err := tx.QueryRowContext(ctx, `SELECT subscription_end FROM users WHERE id = ? AND deleted_at IS NULL`,
				p.UserID).Scan(&current)
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("payment user: %w", ErrNotFound)
			}
			if err != nil {
				return fmt.Errorf("failed to load subscription: %w", err)
			}
			end := extend(ptrTime(current)).UTC().Truncate(time.Microsecond)
			if _, err := tx.ExecContext(ctx, `UPDATE users SET subscription_end = ?, updated_at = ? WHERE id = ?`,
				end, ts, p.UserID); err != nil {
				return fmt.Errorf("failed to extend subscription: %w", err)
			}
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SetSubscriptionEnd overwrites a user's subscription end; nil clears it.
func (db *DB) SetSubscriptionEnd(ctx context.Context, userID string, end *time.Time) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var v sql.NullTime
	if end != nil {
		v = sql.NullTime{Time: end.UTC().Truncate(time.Microsecond), Valid: true}
	}
	res, err := db.conn.ExecContext(ctx, `UPDATE users SET subscription_end = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		v, now(), userID)
	return rowsAffectedOrNotFound(res, err, "set subscription end")
}

func scanPayment(row rowScanner) (*models.Payment, error) {
	var (
		p          models.Payment
		status     string
		reviewedBy sql.NullString
		reviewedAt sql.NullTime
	)
	err := row.Scan(&p.ID, &p.UserID, &p.PlanID, &p.Amount, &p.Reference, &status,
		&reviewedBy, &reviewedAt, &p.Note, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan payment: %w", err)
	}
	p.Status = models.PaymentStatus(status)
	p.ReviewedBy = ptrString(reviewedBy)
	p.ReviewedAt = ptrTime(reviewedAt)
	p.CreatedAt = p.CreatedAt.UTC()
	return &p, nil
}
