// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package subscription

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/mangashelf/internal/config"
	"github.com/tomtom215/mangashelf/internal/events"
	"github.com/tomtom215/mangashelf/internal/logging"
	"github.com/tomtom215/mangashelf/internal/metrics"
	"github.com/tomtom215/mangashelf/internal/models"
)

// ExpiryStore finds and marks subscriptions the scheduler announces.
type ExpiryStore interface {
	ListExpiredUnnotified(ctx context.Context, at time.Time) ([]models.User, error)
	ListExpiringUnwarned(ctx context.Context, at, until time.Time) ([]models.User, error)
	MarkExpiryNotified(ctx context.Context, userID string, end time.Time) (bool, error)
	MarkExpiryWarned(ctx context.Context, userID string, end time.Time) (bool, error)
}

// RunResult counts the events one pass emitted.
type RunResult struct {
	Expired  int
	Expiring int
}

// Scheduler emits subscription.expiring and subscription.expired.
type Scheduler struct {
	store    ExpiryStore
	pub      events.Publisher
	interval time.Duration
	warning  time.Duration
	now      func() time.Time
	logger   zerolog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewScheduler creates a scheduler from the subscription config section.
func NewScheduler(store ExpiryStore, pub events.Publisher, cfg *config.SubscriptionConfig) *Scheduler {
	interval := cfg.CheckInterval
	if interval <= 0 {
		interval = time.Hour
	}
	warning := cfg.ExpiryWarning
	if warning < 0 {
		warning = 0
	}
	return &Scheduler{
		store:    store,
		pub:      pub,
		interval: interval,
		warning:  warning,
		now:      time.Now,
		logger:   logging.With().Str("component", "subscription-scheduler").Logger(),
	}
}

// RunOnce performs one pass. Each (user, end date) is announced at most
// once: the marker is claimed before the event is published.
func (s *Scheduler) RunOnce(ctx context.Context) (RunResult, error) {
	var res RunResult
	now := s.now().UTC()

	expired, err := s.store.ListExpiredUnnotified(ctx, now)
	if err != nil {
		metrics.SubscriptionSchedulerRuns.WithLabelValues("error").Inc()
		return res, fmt.Errorf("list expired subscriptions: %w", err)
	}
	for i := range expired {
		u := &expired[i]
		ok, err := s.store.MarkExpiryNotified(ctx, u.ID, *u.SubscriptionEnd)
		if err != nil {
			s.logger.Warn().Err(err).Str("user_id", u.ID).Msg("Failed to mark expiry")
			continue
		}
		if !ok {
			continue
		}
		if s.emit(ctx, events.TopicSubscriptionExpired, u) {
			res.Expired++
			metrics.SubscriptionEvents.WithLabelValues("expired").Inc()
		}
	}

	if s.warning > 0 {
		expiring, err := s.store.ListExpiringUnwarned(ctx, now, now.Add(s.warning))
		if err != nil {
			metrics.SubscriptionSchedulerRuns.WithLabelValues("error").Inc()
			return res, fmt.Errorf("list expiring subscriptions: %w", err)
		}
		for i := range expiring {
			u := &expiring[i]
			ok, err := s.store.MarkExpiryWarned(ctx, u.ID, *u.SubscriptionEnd)
			if err != nil {
				s.logger.Warn().Err(err).Str("user_id", u.ID).Msg("Failed to mark expiry warning")
				continue
			}
			if !ok {
				continue
			}
			if s.emit(ctx, events.TopicSubscriptionExpiring, u) {
				res.Expiring++
				metrics.SubscriptionEvents.WithLabelValues("expiring").Inc()
			}
		}
	}

	metrics.SubscriptionSchedulerRuns.WithLabelValues("success").Inc()
	if res.Expired+res.Expiring > 0 {
		s.logger.Info().Int("expired", res.Expired).Int("expiring", res.Expiring).Msg("Subscription events emitted")
	}
	return res, nil
}

func (s *Scheduler) emit(ctx context.Context, topic string, u *models.User) bool {
	if s.pub == nil {
		return true
	}
	err := s.pub.Publish(ctx, topic, events.SubscriptionChanged{UserID: u.ID, EndsAt: u.SubscriptionEnd.UTC()})
	if err != nil {
		s.logger.Error().Err(err).Str("topic", topic).Str("user_id", u.ID).Msg("Failed to publish subscription event")
		return false
	}
	return true
}

// Start runs a pass immediately and then every interval until Stop or ctx ends.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	s.logger.Info().Dur("check_interval", s.interval).Dur("expiry_warning", s.warning).Msg("Starting subscription scheduler")
	go s.run(ctx)
	return nil
}

// Stop ends the loop and waits for the current pass.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	close(s.stopCh)
	<-s.doneCh

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	s.logger.Info().Msg("Subscription scheduler stopped")
	return nil
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.pass(ctx)
	for {
		select {
		case <-ticker.C:
			s.pass(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) pass(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Subscription scheduler pass failed")
	}
}
