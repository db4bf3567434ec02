// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package storage

import (
	"context"
	"errors"
	"io"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/mangashelf/internal/logging"
	"github.com/tomtom215/mangashelf/internal/metrics"
)

// BreakerSettings tunes the storage circuit breaker.
type BreakerSettings struct {
	MinRequests  uint32
	FailureRatio float64
	Interval     time.Duration
	Timeout      time.Duration
	MaxRequests  uint32
}

// DefaultBreakerSettings opens after 60% failures over at least 10 calls
// and probes again after 30 seconds.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MinRequests:  10,
		FailureRatio: 0.6,
		Interval:     time.Minute,
		Timeout:      30 * time.Second,
		MaxRequests:  3,
	}
}

// BreakerStore guards a Store with a circuit breaker. Missing objects and
// invalid keys are caller errors and do not count as failures.
type BreakerStore struct {
	next Store
	cb   *gobreaker.CircuitBreaker[any]
	name string
}

// NewBreakerStore wraps next with DefaultBreakerSettings.
func NewBreakerStore(next Store, name string) *BreakerStore {
	return NewBreakerStoreWithSettings(next, name, DefaultBreakerSettings())
}

// NewBreakerStoreWithSettings wraps next with explicit settings.
func NewBreakerStoreWithSettings(next Store, name string, s BreakerSettings) *BreakerStore {
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= s.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("Storage circuit breaker state transition")
			metrics.RecordCircuitBreakerTransition(name, from.String(), to.String())
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidKey) ||
				errors.Is(err, context.Canceled)
		},
	})
	return &BreakerStore{next: next, cb: cb, name: name}
}

// State returns the breaker state name.
func (b *BreakerStore) State() string {
	return b.cb.State().String()
}

func (b *BreakerStore) execute(fn func() (any, error)) (any, error) {
	res, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrStorageUnavailable
	}
	return res, err
}

// Put implements Store.
func (b *BreakerStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := b.execute(func() (any, error) {
		return nil, b.next.Put(ctx, key, r, size, contentType)
	})
	return err
}

// Get implements Store.
func (b *BreakerStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	res, err := b.execute(func() (any, error) {
		return b.next.Get(ctx, key)
	})
	if err != nil {
		return nil, err
	}
	return res.(io.ReadCloser), nil
}

// Delete implements Store.
func (b *BreakerStore) Delete(ctx context.Context, key string) error {
	_, err := b.execute(func() (any, error) {
		return nil, b.next.Delete(ctx, key)
	})
	return err
}

// Exists implements Store.
func (b *BreakerStore) Exists(ctx context.Context, key string) (bool, error) {
	res, err := b.execute(func() (any, error) {
		return b.next.Exists(ctx, key)
	})
	if err != nil {
		return false, err
	}
	return res.(bool), nil
}

// URL implements Store.
func (b *BreakerStore) URL(key string) string {
	return b.next.URL(key)
}
