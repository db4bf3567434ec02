// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

/*
Package subscription decides who may read premium chapters and manages the
manual payment flow that grants access.

Entitlement:

A user's subscription_end determines the state at a given time: none when
unset, active while now is before it, expired afterwards. Extend never loses
unexpired time: an active subscription is extended from its end, anything
else from now.

Payments:

Readers claim a bank transfer for a plan (RequestPayment). Staff approve or
reject it. Approval extends subscription_end in the same transaction as the
status change, then publishes payment.approved.

	pending ──approve──> approved
	   └─────reject────> rejected

Any other transition returns ErrInvalidTransition.

Expiry scheduler:

The Scheduler runs at start and every check_interval. It emits
subscription.expiring once per end date inside the warning window and
subscription.expired once per end date after it passes.
*/
package subscription
