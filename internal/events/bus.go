// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/mangashelf/internal/config"
	"github.com/tomtom215/mangashelf/internal/logging"
	"github.com/tomtom215/mangashelf/internal/metrics"
)

// Backends.
const (
	BackendMemory = "memory"
	BackendNATS   = "nats"
)

// Publisher is what producers depend on.
type Publisher interface {
	Publish(ctx context.Context, topic string, data interface{}) error
}

// Bus owns the watermill publisher and subscriber for the configured backend.
type Bus struct {
	backend    string
	publisher  message.Publisher
	subscriber message.Subscriber
	embedded   *EmbeddedServer
	logger     watermill.LoggerAdapter

	closeOnce sync.Once
	closeErr  error
}

// New builds the bus described by cfg. For the nats backend with
// embedded_nats set, an in-process nats-server is started first.
func New(ctx context.Context, cfg *config.EventsConfig) (*Bus, error) {
	logger := NewZerologAdapter()

	switch cfg.Backend {
	case "", BackendMemory:
		return newMemoryBus(logger), nil
	case BackendNATS:
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.Backend)
	}

	b := &Bus{backend: BackendNATS, logger: logger}
	url := cfg.NATSURL
	if cfg.EmbeddedNATS {
		srv, err := NewEmbeddedServer(cfg.EmbeddedStoreDir, cfg.EmbeddedPort)
		if err != nil {
			return nil, err
		}
		b.embedded = srv
		url = srv.ClientURL()
	}

	if err := EnsureStream(ctx, url); err != nil {
		b.shutdownEmbedded()
		return nil, err
	}

	pub, sub, err := newNATSPubSub(url, logger)
	if err != nil {
		b.shutdownEmbedded()
		return nil, err
	}
	b.publisher, b.subscriber = pub, sub

	logging.Info().Str("url", url).Bool("embedded", b.embedded != nil).Msg("Event bus connected to NATS")
	return b, nil
}

// NewMemoryBus returns an in-process bus.
func NewMemoryBus() *Bus {
	return newMemoryBus(NewZerologAdapter())
}

func newMemoryBus(logger watermill.LoggerAdapter) *Bus {
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, logger)
	return &Bus{backend: BackendMemory, publisher: pubSub, subscriber: pubSub, logger: logger}
}

// Backend reports "memory" or "nats".
func (b *Bus) Backend() string { return b.backend }

// Subscriber is handed to NewRouter.
func (b *Bus) Subscriber() message.Subscriber { return b.subscriber }

// Publish wraps data in an Event and sends it on topic.
func (b *Bus) Publish(ctx context.Context, topic string, data interface{}) error {
	ev, err := NewEvent(topic, data)
	if err != nil {
		return err
	}
	return b.PublishEvent(ctx, ev)
}

// PublishEvent sends a prepared envelope. The event ID doubles as the
// watermill message UUID and the JetStream Nats-Msg-Id.
func (b *Bus) PublishEvent(ctx context.Context, ev *Event) error {
	payload, err := ev.Marshal()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := message.NewMessage(ev.ID, payload)
	msg.Metadata.Set("type", ev.Type)
	msg.Metadata.Set(natsgo.MsgIdHdr, ev.ID)
	if rid := logging.RequestIDFromContext(ctx); rid != "" {
		msg.Metadata.Set("request_id", rid)
	}
	msg.SetContext(ctx)

	if err := b.publisher.Publish(ev.Type, msg); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	metrics.EventsPublished.WithLabelValues(ev.Type).Inc()
	logging.Ctx(ctx).Debug().Str("topic", ev.Type).Str("event_id", ev.ID).Msg("Event published")
	return nil
}

// Close stops the publisher, the subscriber and the embedded server.
func (b *Bus) Close() error {
	b.closeOnce.Do(func() {
		var errs []error
		if err := b.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close publisher: %w", err))
		}
		if b.subscriber != nil && any(b.subscriber) != any(b.publisher) {
			if err := b.subscriber.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close subscriber: %w", err))
			}
		}
		b.shutdownEmbedded()
		b.closeErr = errors.Join(errs...)
	})
	return b.closeErr
}

func (b *Bus) shutdownEmbedded() {
	if b.embedded != nil {
		b.embedded.Shutdown()
	}
}
