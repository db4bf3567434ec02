// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package events

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/tomtom215/mangashelf/internal/cache"
	"github.com/tomtom215/mangashelf/internal/logging"
	"github.com/tomtom215/mangashelf/internal/metrics"
)

// HandlerFunc processes one event. A returned error triggers a retry.
type HandlerFunc func(ctx context.Context, ev *Event) error

// RouterConfig tunes retries and redelivery suppression.
type RouterConfig struct {
	CloseTimeout         time.Duration
	RetryMaxRetries      int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	DedupeCapacity       int
	DedupeWindow         time.Duration
}

// DefaultRouterConfig returns production defaults.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		CloseTimeout:         30 * time.Second,
		RetryMaxRetries:      3,
		RetryInitialInterval: 500 * time.Millisecond,
		RetryMaxInterval:     30 * time.Second,
		DedupeCapacity:       50000,
		DedupeWindow:         time.Hour,
	}
}

// Router dispatches events to handlers.
type Router struct {
	router     *message.Router
	subscriber message.Subscriber
	dedupe     *cache.Deduper
	handlers   int
}

// NewRouter creates a router reading from subscriber.
func NewRouter(subscriber message.Subscriber, cfg RouterConfig) (*Router, error) {
	logger := NewZerologAdapter()
	wm, err := message.NewRouter(message.RouterConfig{CloseTimeout: cfg.CloseTimeout}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill router: %w", err)
	}

	wm.AddMiddleware(middleware.Recoverer)
	wm.AddMiddleware(middleware.Retry{
		MaxRetries:      cfg.RetryMaxRetries,
		InitialInterval: cfg.RetryInitialInterval,
		MaxInterval:     cfg.RetryMaxInterval,
		Multiplier:      2,
		Logger:          logger,
	}.Middleware)

	return &Router{
		router:     wm,
		subscriber: subscriber,
		dedupe:     cache.NewDeduper(cfg.DedupeCapacity, cfg.DedupeWindow),
	}, nil
}

// Handle registers fn for topic. Handlers must be added before Serve.
// Each handler sees a given event ID at most once per dedupe window.
func (r *Router) Handle(name, topic string, fn HandlerFunc) {
	r.handlers++
	r.router.AddConsumerHandler(name, topic, r.subscriber, func(msg *message.Message) error {
		ev, err := Unmarshal(msg.Payload)
		if err != nil {
			// Malformed envelopes are acked; a retry cannot fix them.
			metrics.RecordEventProcessed(topic, err)
			logging.Warn().Err(err).Str("handler", name).Str("message_id", msg.UUID).Msg("Dropping malformed event")
			return nil
		}

		key := name + ":" + ev.ID
		if r.dedupe.Seen(key) {
			logging.Debug().Str("handler", name).Str("event_id", ev.ID).Msg("Skipping redelivered event")
			return nil
		}

		ctx := msg.Context()
		if rid := msg.Metadata.Get("request_id"); rid != "" {
			ctx = logging.ContextWithRequestID(ctx, rid)
		}
		handled := false
		defer func() {
			if !handled {
				r.dedupe.Forget(key)
			}
		}()
		if err := fn(ctx, ev); err != nil {
			metrics.RecordEventProcessed(topic, err)
			return err
		}
		handled = true
		metrics.RecordEventProcessed(topic, nil)
		return nil
	})
}

// Running is closed once every handler is subscribed.
func (r *Router) Running() chan struct{} {
	return r.router.Running()
}

// Serve runs the router until ctx is cancelled.
func (r *Router) Serve(ctx context.Context) error {
	logging.Info().Int("handlers", r.handlers).Msg("Event router starting")
	if err := r.router.Run(ctx); err != nil {
		return fmt.Errorf("event router: %w", err)
	}
	return ctx.Err()
}

func (r *Router) String() string { return "event-router" }

var _ watermill.LoggerAdapter = (*ZerologAdapter)(nil)
