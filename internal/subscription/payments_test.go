// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package subscription

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/mangashelf/internal/audit"
	"github.com/tomtom215/mangashelf/internal/database"
	"github.com/tomtom215/mangashelf/internal/database/query"
	"github.com/tomtom215/mangashelf/internal/events"
	"github.com/tomtom215/mangashelf/internal/models"
)

// fakeStore keeps payments and users in memory with the same transition
// rules as the database.
type fakeStore struct {
	mu       sync.Mutex
	seq      int
	payments map[string]*models.Payment
	users    map[string]*models.User
	notified map[string]bool
	warned   map[string]bool
	listErr  error
}

func newFakeStore(users ...*models.User) *fakeStore {
	s := &fakeStore{
		payments: make(map[string]*models.Payment),
		users:    make(map[string]*models.User),
		notified: make(map[string]bool),
		warned:   make(map[string]bool),
	}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *fakeStore) CreatePayment(_ context.Context, p *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.payments {
		if existing.UserID == p.UserID && existing.Status == models.PaymentPending {
			return database.ErrConflict
		}
	}
	s.seq++
	p.ID = fmt.Sprintf("p%d", s.seq)
	p.Status = models.PaymentPending
	p.CreatedAt = base
	cp := *p
	s.payments[p.ID] = &cp
	return nil
}

func (s *fakeStore) GetPayment(_ context.Context, id string) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *fakeStore) PendingPaymentForUser(_ context.Context, userID string) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.payments {
		if p.UserID == userID && p.Status == models.PaymentPending {
			cp := *p
			return &cp, nil
		}
	}
	return nil, database.ErrNotFound
}

func (s *fakeStore) ListPayments(_ context.Context, status models.PaymentStatus, userID string, _, _ int) ([]models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Payment
	for _, p := range s.payments {
		if (status == "" || p.Status == status) && (userID == "" || p.UserID == userID) {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *fakeStore) ReviewPayment(_ context.Context, id string, status models.PaymentStatus, reviewerID, note string,
	extend func(*time.Time) time.Time) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	if p.Status != models.PaymentPending {
		return nil, fmt.Errorf("payment is %s: %w", p.Status, database.ErrInvalidState)
	}
	p.Status = status
	p.ReviewedBy = &reviewerID
	p.Note = note
	if status == models.PaymentApproved && extend != nil {
		u := s.users[p.UserID]
		end := extend(u.SubscriptionEnd)
		u.SubscriptionEnd = &end
	}
	cp := *p
	return &cp, nil
}

func (s *fakeStore) GetUser(_ context.Context, id string, _ query.Scope) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *fakeStore) ListExpiredUnnotified(_ context.Context, at time.Time) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []models.User
	for _, u := range s.users {
		if u.SubscriptionEnd != nil && !u.SubscriptionEnd.After(at) && !s.notified[markKey(u.ID, *u.SubscriptionEnd)] {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (s *fakeStore) ListExpiringUnwarned(_ context.Context, at, until time.Time) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.User
	for _, u := range s.users {
		if u.SubscriptionEnd != nil && u.SubscriptionEnd.After(at) && !u.SubscriptionEnd.After(until) &&
			!s.warned[markKey(u.ID, *u.SubscriptionEnd)] {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (s *fakeStore) MarkExpiryNotified(_ context.Context, userID string, end time.Time) (bool, error) {
	return s.mark(s.notified, userID, end), nil
}

func (s *fakeStore) MarkExpiryWarned(_ context.Context, userID string, end time.Time) (bool, error) {
	return s.mark(s.warned, userID, end), nil
}

func (s *fakeStore) mark(m map[string]bool, userID string, end time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := markKey(userID, end)
	if m[k] {
		return false
	}
	m[k] = true
	return true
}

func markKey(userID string, end time.Time) string {
	return userID + "@" + end.UTC().Format(time.RFC3339Nano)
}

type published struct {
	topic string
	data  interface{}
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (p *fakePublisher) Publish(_ context.Context, topic string, data interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, published{topic, data})
	return nil
}

func (p *fakePublisher) topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.msgs))
	for i, m := range p.msgs {
		out[i] = m.topic
	}
	return out
}

type fakeAudit struct{ events []*audit.Event }

func (a *fakeAudit) Log(e *audit.Event) { a.events = append(a.events, e) }

var _ events.Publisher = (*fakePublisher)(nil)

func newTestService(store *fakeStore) (*Service, *fakePublisher, *fakeAudit) {
	pub := &fakePublisher{}
	aud := &fakeAudit{}
	svc := NewService(store, DefaultPlans(), pub, aud)
	svc.now = func() time.Time { return base }
	return svc, pub, aud
}

func TestRequestPayment(t *testing.T) {
	reader := &models.User{ID: "u1", Role: models.RoleReader}
	banned := &models.User{ID: "u2", Role: models.RoleReader, Banned: true}
	store := newFakeStore(reader, banned)
	svc, _, _ := newTestService(store)
	ctx := context.Background()

	p, err := svc.RequestPayment(ctx, reader, "monthly", "  TX-991 ")
	if err != nil {
		t.Fatalf("RequestPayment: %v", err)
	}
	if p.Amount != 500 || p.Reference != "TX-991" || p.Status != models.PaymentPending {
		t.Errorf("payment = %+v", p)
	}

	if _, err := svc.RequestPayment(ctx, reader, "yearly", ""); !errors.Is(err, ErrPendingPayment) {
		t.Errorf("second request err = %v, want ErrPendingPayment", err)
	}
	if _, err := svc.RequestPayment(ctx, banned, "monthly", ""); !errors.Is(err, ErrBanned) {
		t.Errorf("banned err = %v, want ErrBanned", err)
	}
	if _, err := svc.RequestPayment(ctx, &models.User{ID: "u3"}, "weekly", ""); !errors.Is(err, ErrUnknownPlan) {
		t.Errorf("unknown plan err = %v, want ErrUnknownPlan", err)
	}

	st, err := svc.Status(ctx, reader)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.State != models.EntitlementNone || st.PendingPayment == nil || st.PendingPayment.ID != p.ID {
		t.Errorf("Status = %+v", st)
	}
}

func TestApprovePaymentExtendsSubscription(t *testing.T) {
	current := base.AddDate(0, 0, 10)
	reader := &models.User{ID: "u1", Role: models.RoleReader, SubscriptionEnd: &current}
	admin := &models.User{ID: "a1", Role: models.RoleAdmin}
	store := newFakeStore(reader, admin)
	svc, pub, aud := newTestService(store)
	ctx := context.Background()

	p, err := svc.RequestPayment(ctx, reader, "monthly", "ref")
	if err != nil {
		t.Fatalf("RequestPayment: %v", err)
	}
	approved, err := svc.Review(ctx, p.ID, models.PaymentApproved, admin, "ok")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != models.PaymentApproved {
		t.Errorf("status = %s", approved.Status)
	}

	u, _ := store.GetUser(ctx, "u1", query.ScopeDefault)
	want := base.AddDate(0, 0, 40)
	if u.SubscriptionEnd == nil || !u.SubscriptionEnd.Equal(want) {
		t.Errorf("subscription end = %v, want %v", u.SubscriptionEnd, want)
	}

	if got := pub.topics(); len(got) != 1 || got[0] != events.TopicPaymentApproved {
		t.Fatalf("published = %v", got)
	}
	ev := pub.msgs[0].data.(events.PaymentReviewed)
	if ev.UserID != "u1" || ev.SubscriptionEnd == nil || !ev.SubscriptionEnd.Equal(want) {
		t.Errorf("event = %+v", ev)
	}
	if len(aud.events) != 1 || aud.events[0].Type != audit.EventPaymentApproved || aud.events[0].Actor.ID != "a1" {
		t.Errorf("audit = %+v", aud.events)
	}

	// A second review of the same payment changes nothing.
	for _, status := range []models.PaymentStatus{models.PaymentApproved, models.PaymentRejected} {
		if _, err := svc.Review(ctx, p.ID, status, admin, ""); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("re-review to %s err = %v, want ErrInvalidTransition", status, err)
		}
	}
	u, _ = store.GetUser(ctx, "u1", query.ScopeDefault)
	if !u.SubscriptionEnd.Equal(want) {
		t.Errorf("subscription end moved to %v", u.SubscriptionEnd)
	}
	if len(pub.topics()) != 1 {
		t.Errorf("extra events published: %v", pub.topics())
	}
}

func TestRejectPayment(t *testing.T) {
	reader := &models.User{ID: "u1", Role: models.RoleReader}
	admin := &models.User{ID: "a1", Role: models.RoleAdmin}
	store := newFakeStore(reader, admin)
	svc, pub, aud := newTestService(store)
	ctx := context.Background()

	p, _ := svc.RequestPayment(ctx, reader, "quarterly", "")
	rejected, err := svc.RejectPayment(ctx, p.ID, admin, "reference not found")
	if err != nil {
		t.Fatalf("RejectPayment: %v", err)
	}
	if rejected.Status != models.PaymentRejected || rejected.Note != "reference not found" {
		t.Errorf("payment = %+v", rejected)
	}
	u, _ := store.GetUser(ctx, "u1", query.ScopeDefault)
	if u.SubscriptionEnd != nil {
		t.Errorf("rejection extended subscription to %v", u.SubscriptionEnd)
	}
	if got := pub.topics(); len(got) != 1 || got[0] != events.TopicPaymentRejected {
		t.Errorf("published = %v", got)
	}
	if len(aud.events) != 1 || aud.events[0].Reason != "reference not found" {
		t.Errorf("audit = %+v", aud.events)
	}

	// The user may pay again once the earlier payment is settled.
	if _, err := svc.RequestPayment(ctx, reader, "monthly", ""); err != nil {
		t.Errorf("request after rejection: %v", err)
	}
}

func TestReviewErrors(t *testing.T) {
	admin := &models.User{ID: "a1", Role: models.RoleAdmin}
	svc, _, _ := newTestService(newFakeStore(admin))
	ctx := context.Background()

	if _, err := svc.ApprovePayment(ctx, "missing", admin, ""); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("approve missing err = %v", err)
	}
	if _, err := svc.Review(ctx, "missing", models.PaymentPending, admin, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("review to pending err = %v", err)
	}
}

func TestPublishFailureDoesNotUndoReview(t *testing.T) {
	reader := &models.User{ID: "u1", Role: models.RoleReader}
	admin := &models.User{ID: "a1", Role: models.RoleAdmin}
	store := newFakeStore(reader, admin)
	svc, pub, _ := newTestService(store)
	ctx := context.Background()

	p, _ := svc.RequestPayment(ctx, reader, "monthly", "")
	pub.err = errors.New("bus down")
	if _, err := svc.ApprovePayment(ctx, p.ID, admin, ""); err != nil {
		t.Fatalf("ApprovePayment: %v", err)
	}
	got, _ := store.GetPayment(ctx, p.ID)
	if got.Status != models.PaymentApproved {
		t.Errorf("status = %s, want approved", got.Status)
	}
}
