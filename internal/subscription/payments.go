// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package subscription

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/mangashelf/internal/audit"
	"github.com/tomtom215/mangashelf/internal/database"
	"github.com/tomtom215/mangashelf/internal/database/query"
	"github.com/tomtom215/mangashelf/internal/events"
	"github.com/tomtom215/mangashelf/internal/logging"
	"github.com/tomtom215/mangashelf/internal/metrics"
	"github.com/tomtom215/mangashelf/internal/models"
)

var (
	// ErrInvalidTransition is returned when a payment is not pending.
	ErrInvalidTransition = errors.New("invalid payment transition")

	// ErrPendingPayment means the user already has a payment under review.
	ErrPendingPayment = errors.New("a payment is already pending review")

	// ErrBanned blocks banned users from paying.
	ErrBanned = errors.New("account is banned")
)

// PaymentStore is the persistence the payment flow needs.
type PaymentStore interface {
	CreatePayment(ctx context.Context, p *models.Payment) error
	GetPayment(ctx context.Context, id string) (*models.Payment, error)
	PendingPaymentForUser(ctx context.Context, userID string) (*models.Payment, error)
	ListPayments(ctx context.Context, status models.PaymentStatus, userID string, limit, offset int) ([]models.Payment, error)
	ReviewPayment(ctx context.Context, id string, status models.PaymentStatus, reviewerID, note string,
		extend func(current *time.Time) time.Time) (*models.Payment, error)
	GetUser(ctx context.Context, id string, scope query.Scope) (*models.User, error)
}

// AuditLog records staff actions.
type AuditLog interface {
	Log(event *audit.Event)
}

// Service runs the manual payment flow.
type Service struct {
	store PaymentStore
	plans Plans
	pub   events.Publisher
	audit AuditLog
	now   func() time.Time
}

// NewService creates a payment service. auditLog may be nil.
func NewService(store PaymentStore, plans Plans, pub events.Publisher, auditLog AuditLog) *Service {
	return &Service{store: store, plans: plans, pub: pub, audit: auditLog, now: time.Now}
}

// Plans returns the plan table.
func (s *Service) Plans() Plans { return s.plans }

// RequestPayment records a pending payment for planID.
func (s *Service) RequestPayment(ctx context.Context, u *models.User, planID, reference string) (*models.Payment, error) {
	if u.Banned {
		return nil, ErrBanned
	}
	plan, err := s.plans.Lookup(planID)
	if err != nil {
		return nil, err
	}

	p := &models.Payment{
		UserID:    u.ID,
		PlanID:    plan.ID,
		Amount:    plan.Price,
		Reference: strings.TrimSpace(reference),
	}
	if err := s.store.CreatePayment(ctx, p); err != nil {
		if errors.Is(err, database.ErrConflict) {
			return nil, ErrPendingPayment
		}
		return nil, err
	}
	logging.Ctx(ctx).Info().Str("payment_id", p.ID).Str("plan", plan.ID).Msg("Payment requested")
	return p, nil
}

// Status returns u's entitlement and any payment under review.
func (s *Service) Status(ctx context.Context, u *models.User) (models.SubscriptionStatus, error) {
	st := Status(u, s.now())
	pending, err := s.store.PendingPaymentForUser(ctx, u.ID)
	switch {
	case err == nil:
		st.PendingPayment = pending
	case !errors.Is(err, database.ErrNotFound):
		return st, err
	}
	return st, nil
}

// ListPayments returns payments for the review queue.
func (s *Service) ListPayments(ctx context.Context, status models.PaymentStatus, userID string, limit, offset int) ([]models.Payment, error) {
	return s.store.ListPayments(ctx, status, userID, limit, offset)
}

// ApprovePayment moves a pending payment to approved and extends the
// payer's subscription by the plan length.
func (s *Service) ApprovePayment(ctx context.Context, paymentID string, reviewer *models.User, note string) (*models.Payment, error) {
	existing, err := s.store.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if existing.Status != models.PaymentPending {
		return nil, fmt.Errorf("%w: payment is %s", ErrInvalidTransition, existing.Status)
	}
	plan, err := s.plans.Lookup(existing.PlanID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	p, err := s.store.ReviewPayment(ctx, paymentID, models.PaymentApproved, reviewer.ID, note,
		func(current *time.Time) time.Time { return Extend(current, now, plan.Days) })
	if err != nil {
		return nil, mapReviewError(err)
	}

	var end *time.Time
	if u, err := s.store.GetUser(ctx, p.UserID, query.ScopeWithDeleted); err == nil {
		end = u.SubscriptionEnd
	}
	s.afterReview(ctx, p, reviewer, events.TopicPaymentApproved, audit.EventPaymentApproved, end)
	return p, nil
}

// RejectPayment moves a pending payment to rejected.
func (s *Service) RejectPayment(ctx context.Context, paymentID string, reviewer *models.User, note string) (*models.Payment, error) {
	p, err := s.store.ReviewPayment(ctx, paymentID, models.PaymentRejected, reviewer.ID, note, nil)
	if err != nil {
		return nil, mapReviewError(err)
	}
	s.afterReview(ctx, p, reviewer, events.TopicPaymentRejected, audit.EventPaymentRejected, nil)
	return p, nil
}

// Review dispatches on the requested status.
func (s *Service) Review(ctx context.Context, paymentID string, status models.PaymentStatus, reviewer *models.User, note string) (*models.Payment, error) {
	switch status {
	case models.PaymentApproved:
		return s.ApprovePayment(ctx, paymentID, reviewer, note)
	case models.PaymentRejected:
		return s.RejectPayment(ctx, paymentID, reviewer, note)
	default:
		return nil, fmt.Errorf("%w: cannot move to %q", ErrInvalidTransition, status)
	}
}

func mapReviewError(err error) error {
	if errors.Is(err, database.ErrInvalidState) {
		return fmt.Errorf("%w: %v", ErrInvalidTransition, err)
	}
	return err
}

// afterReview runs once the review is committed.
func (s *Service) afterReview(ctx context.Context, p *models.Payment, reviewer *models.User, topic string, auditType audit.EventType, end *time.Time) {
	metrics.PaymentsReviewed.WithLabelValues(string(p.Status)).Inc()

	if s.audit != nil {
		s.audit.Log(&audit.Event{
			Type:      auditType,
			Actor:     audit.UserActor(reviewer),
			Target:    &audit.Target{ID: p.ID, Type: "payment"},
			Reason:    p.Note,
			RequestID: logging.RequestIDFromContext(ctx),
			Metadata:  audit.MetadataJSON(map[string]interface{}{"user_id": p.UserID, "plan_id": p.PlanID, "amount": p.Amount}),
		})
	}

	if s.pub == nil {
		return
	}
	err := s.pub.Publish(ctx, topic, events.PaymentReviewed{
		PaymentID:       p.ID,
		UserID:          p.UserID,
		PlanID:          p.PlanID,
		Status:          string(p.Status),
		Note:            p.Note,
		SubscriptionEnd: end,
	})
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("payment_id", p.ID).Msg("Failed to publish payment review")
	}
}
