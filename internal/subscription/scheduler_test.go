// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package subscription

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/tomtom215/mangashelf/internal/config"
	"github.com/tomtom215/mangashelf/internal/events"
	"github.com/tomtom215/mangashelf/internal/models"
)

func newTestScheduler(store *fakeStore, pub *fakePublisher, warning time.Duration) *Scheduler {
	s := NewScheduler(store, pub, &config.SubscriptionConfig{CheckInterval: time.Hour, ExpiryWarning: warning})
	s.now = func() time.Time { return base }
	return s
}

func TestSchedulerRunOnce(t *testing.T) {
	store := newFakeStore(
		&models.User{ID: "expired", SubscriptionEnd: ptr(base.Add(-time.Hour))},
		&models.User{ID: "soon", SubscriptionEnd: ptr(base.Add(24 * time.Hour))},
		&models.User{ID: "later", SubscriptionEnd: ptr(base.AddDate(0, 0, 20))},
		&models.User{ID: "never"},
	)
	pub := &fakePublisher{}
	s := newTestScheduler(store, pub, 72*time.Hour)
	ctx := context.Background()

	res, err := s.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if diff := cmp.Diff(RunResult{Expired: 1, Expiring: 1}, res); diff != "" {
		t.Errorf("result (-want +got):\n%s", diff)
	}

	got := make(map[string]string)
	for _, m := range pub.msgs {
		got[m.data.(events.SubscriptionChanged).UserID] = m.topic
	}
	want := map[string]string{
		"expired": events.TopicSubscriptionExpired,
		"soon":    events.TopicSubscriptionExpiring,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("events (-want +got):\n%s", diff)
	}

	// The next pass finds nothing new.
	res, err = s.RunOnce(ctx)
	if err != nil {
		t.Fatalf("second RunOnce: %v", err)
	}
	if res.Expired+res.Expiring != 0 || len(pub.msgs) != 2 {
		t.Errorf("second pass emitted %+v, total %d", res, len(pub.msgs))
	}
}

func TestSchedulerRenewalIsAnnouncedAgain(t *testing.T) {
	u := &models.User{ID: "u1", SubscriptionEnd: ptr(base.Add(-time.Hour))}
	store := newFakeStore(u)
	pub := &fakePublisher{}
	s := newTestScheduler(store, pub, 0)
	ctx := context.Background()

	if _, err := s.RunOnce(ctx); err != nil {
		t.Fatal(err)
	}
	// Renewed and lapsed again: a new end date is a new expiry.
	store.mu.Lock()
	u.SubscriptionEnd = ptr(base.Add(-time.Minute))
	store.mu.Unlock()
	if _, err := s.RunOnce(ctx); err != nil {
		t.Fatal(err)
	}

	var ids []string
	for _, m := range pub.msgs {
		ids = append(ids, m.topic)
	}
	sort.Strings(ids)
	if diff := cmp.Diff([]string{events.TopicSubscriptionExpired, events.TopicSubscriptionExpired}, ids); diff != "" {
		t.Errorf("topics (-want +got):\n%s", diff)
	}
}

func TestSchedulerWarningDisabled(t *testing.T) {
	store := newFakeStore(&models.User{ID: "soon", SubscriptionEnd: ptr(base.Add(time.Hour))})
	pub := &fakePublisher{}
	s := newTestScheduler(store, pub, 0)

	res, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Expiring != 0 || len(pub.msgs) != 0 {
		t.Errorf("warning disabled but emitted %+v", res)
	}
}

func TestSchedulerStoreError(t *testing.T) {
	store := newFakeStore()
	store.listErr = errors.New("db gone")
	s := newTestScheduler(store, &fakePublisher{}, time.Hour)
	if _, err := s.RunOnce(context.Background()); err == nil {
		t.Fatal("expected error from store")
	}
}

func TestSchedulerPublishFailureNotCounted(t *testing.T) {
	store := newFakeStore(&models.User{ID: "expired", SubscriptionEnd: ptr(base.Add(-time.Hour))})
	pub := &fakePublisher{err: errors.New("bus down")}
	s := newTestScheduler(store, pub, 0)

	res, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if res.Expired != 0 {
		t.Errorf("Expired = %d, want 0", res.Expired)
	}
}

func TestSchedulerStartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := newFakeStore(&models.User{ID: "expired", SubscriptionEnd: ptr(base.Add(-time.Hour))})
	pub := &fakePublisher{}
	s := newTestScheduler(store, pub, 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Start(ctx); err == nil {
		t.Error("second Start should fail")
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(pub.topics()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if len(pub.topics()) != 1 {
		t.Errorf("initial pass published %v", pub.topics())
	}

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Errorf("second Stop: %v", err)
	}
}
