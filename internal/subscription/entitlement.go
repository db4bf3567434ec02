// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package subscription

import (
	"errors"
	"math"
	"time"

	"github.com/tomtom215/mangashelf/internal/database"
	"github.com/tomtom215/mangashelf/internal/models"
)

var (
	// ErrPremiumChapter means the chapter needs an active subscription.
	ErrPremiumChapter = errors.New("premium chapter requires an active subscription")

	// ErrNotFound hides chapters the caller may not know about.
	ErrNotFound = database.ErrNotFound
)

// State returns the entitlement of u at now.
func State(u *models.User, now time.Time) models.EntitlementState {
	if u == nil || u.SubscriptionEnd == nil {
		return models.EntitlementNone
	}
	if now.Before(*u.SubscriptionEnd) {
		return models.EntitlementActive
	}
	return models.EntitlementExpired
}

// Extend returns the new end date after adding days. Unexpired time on an
// active subscription is kept.
func Extend(current *time.Time, now time.Time, days int) time.Time {
	base := now
	if current != nil && now.Before(*current) {
		base = *current
	}
	return base.AddDate(0, 0, days)
}

// Status summarizes u's access for display.
func Status(u *models.User, now time.Time) models.SubscriptionStatus {
	st := models.SubscriptionStatus{State: State(u, now)}
	if u != nil && u.SubscriptionEnd != nil {
		end := *u.SubscriptionEnd
		st.EndsAt = &end
		if st.State == models.EntitlementActive {
			st.DaysLeft = int(math.Ceil(end.Sub(now).Hours() / 24))
		}
	}
	return st
}

// isStaff reports whether the role sees unpublished and premium content.
func isStaff(u *models.User) bool {
	return u != nil && !u.Banned && u.Role.CanManageContent()
}

// CanRead checks whether u may open ch at now. u may be nil for anonymous
// readers; banned users are treated the same way.
func CanRead(u *models.User, ch *models.Chapter, now time.Time) error {
	if u != nil && u.Banned {
		u = nil
	}
	if ch == nil {
		return ErrNotFound
	}
	if !ch.Published || ch.DeletedAt != nil {
		if isStaff(u) {
			return nil
		}
		return ErrNotFound
	}
	if !ch.IsPremium || isStaff(u) {
		return nil
	}
	if State(u, now) == models.EntitlementActive {
		return nil
	}
	return ErrPremiumChapter
}

// Locked reports whether ch would be refused to u, for list rendering.
func Locked(u *models.User, ch *models.Chapter, now time.Time) bool {
	return errors.Is(CanRead(u, ch, now), ErrPremiumChapter)
}
