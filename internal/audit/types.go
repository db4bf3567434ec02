// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package audit

import (
	"context"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/mangashelf/internal/models"
)

// EventType categorizes audit events.
type EventType string

const (
	EventModerationHide    EventType = "moderation.hide"
	EventModerationUnhide  EventType = "moderation.unhide"
	EventModerationDelete  EventType = "moderation.delete"
	EventModerationRestore EventType = "moderation.restore"
	EventUserBanned        EventType = "user.banned"
	EventUserUnbanned      EventType = "user.unbanned"
	EventUserRoleChanged   EventType = "user.role_changed"

	EventPaymentApproved EventType = "payment.approved"
	EventPaymentRejected EventType = "payment.rejected"

	EventCatalogDelete  EventType = "catalog.delete"
	EventCatalogRestore EventType = "catalog.restore"
	EventCatalogPurge   EventType = "catalog.purge"

	EventAuthFailure EventType = "auth.failure"
	EventAuthzDenied EventType = "authz.denied"
)

// Severity indicates the importance of an audit event.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Actor is the user or process that performed the action.
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Role string `json:"role,omitempty"`
}

// SystemActor is used for scheduled and startup actions.
func SystemActor() Actor {
	return Actor{ID: "system", Name: "system", Role: "system"}
}

// UserActor builds an Actor from an account.
func UserActor(u *models.User) Actor {
	if u == nil {
		return Actor{ID: "anonymous"}
	}
	return Actor{ID: u.ID, Name: u.Username, Role: string(u.Role)}
}

// Target is the record the action was applied to.
type Target struct {
	ID   string `json:"id"`
	Type string `json:"type"` // "comment", "user", "manga", "chapter", "payment"
}

// Event is a single audit record.
type Event struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Type      EventType       `json:"type"`
	Severity  Severity        `json:"severity"`
	Actor     Actor           `json:"actor"`
	Target    *Target         `json:"target,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	SourceIP  string          `json:"source_ip,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

// Store persists audit events.
type Store interface {
	Save(ctx context.Context, event *Event) error
	Query(ctx context.Context, filter QueryFilter) ([]Event, error)
	Count(ctx context.Context, filter QueryFilter) (int64, error)
	Delete(ctx context.Context, olderThan time.Time) (int64, error)
}

// QueryFilter selects events. Zero fields do not filter.
type QueryFilter struct {
	Types      []EventType `json:"types,omitempty"`
	ActorID    string      `json:"actor_id,omitempty"`
	TargetID   string      `json:"target_id,omitempty"`
	TargetType string      `json:"target_type,omitempty"`
	StartTime  *time.Time  `json:"start_time,omitempty"`
	EndTime    *time.Time  `json:"end_time,omitempty"`
	Limit      int         `json:"limit,omitempty"`
	Offset     int         `json:"offset,omitempty"`
}

func (f *QueryFilter) matches(e *Event) bool {
	if len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if e.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.ActorID != "" && e.Actor.ID != f.ActorID {
		return false
	}
	if f.TargetID != "" && (e.Target == nil || e.Target.ID != f.TargetID) {
		return false
	}
	if f.TargetType != "" && (e.Target == nil || e.Target.Type != f.TargetType) {
		return false
	}
	if f.StartTime != nil && e.Timestamp.Before(*f.StartTime) {
		return false
	}
	if f.EndTime != nil && e.Timestamp.After(*f.EndTime) {
		return false
	}
	return true
}
