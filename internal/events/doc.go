// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

/*
Package events carries domain events between the parts of Mangashelf.

Producers call Bus.Publish with a topic and a payload struct. The payload is
wrapped in an Event envelope and serialized as JSON:

	{"id":"...","type":"chapter.published","occurred_at":"...","data":{...}}

Two transports are supported:

  - memory: a watermill gochannel. Delivery is in-process and lost on restart.
  - nats: NATS JetStream through watermill-nats. The broker is either external
    (events.nats_url) or an embedded nats-server started by New.

Consumers register handlers on a Router, which wraps the watermill router with
panic recovery, retries with backoff and per-handler redelivery suppression.
The Router implements suture.Service so the supervisor tree owns its lifetime.

Topics:

	chapter.published       ChapterPublished
	payment.approved        PaymentReviewed
	payment.rejected        PaymentReviewed
	subscription.expiring   SubscriptionChanged
	subscription.expired    SubscriptionChanged
	comment.hidden          CommentHidden
*/
package events
