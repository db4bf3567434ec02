// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package moderation

import (
	"context"
	"errors"
	"strings"

	"github.com/tomtom215/mangashelf/internal/audit"
	"github.com/tomtom215/mangashelf/internal/authz"
	"github.com/tomtom215/mangashelf/internal/database/query"
	"github.com/tomtom215/mangashelf/internal/events"
	"github.com/tomtom215/mangashelf/internal/logging"
	"github.com/tomtom215/mangashelf/internal/metrics"
	"github.com/tomtom215/mangashelf/internal/models"
)

var (
	// ErrForbidden means the actor may not perform the action.
	ErrForbidden = errors.New("forbidden")

	// ErrReasonRequired is returned when hiding or banning without a reason.
	ErrReasonRequired = errors.New("a reason is required")

	// ErrSelfAction blocks staff from banning or re-roling themselves.
	ErrSelfAction = errors.New("cannot apply this action to your own account")
)

// Store is the persistence moderation needs.
type Store interface {
	GetComment(ctx context.Context, id string, scope query.Scope) (*models.Comment, error)
	HideComment(ctx context.Context, id, moderatorID, reason string) error
	UnhideComment(ctx context.Context, id string) error
	DeleteComment(ctx context.Context, id string) error
	RestoreComment(ctx context.Context, id string) error

	GetUser(ctx context.Context, id string, scope query.Scope) (*models.User, error)
	SetUserBanned(ctx context.Context, id string, banned bool) error
	SetUserRole(ctx context.Context, id string, role models.Role) error
}

// Authorizer answers role/object/action questions.
type Authorizer interface {
	Can(role models.Role, object, action string) bool
}

// AuditLog records moderation actions.
type AuditLog interface {
	Log(event *audit.Event)
}

// Service applies moderation actions.
type Service struct {
	store Store
	authz Authorizer
	pub   events.Publisher
	audit AuditLog
}

// NewService creates a moderation service. pub and auditLog may be nil.
func NewService(store Store, authorizer Authorizer, pub events.Publisher, auditLog AuditLog) *Service {
	return &Service{store: store, authz: authorizer, pub: pub, audit: auditLog}
}

func (s *Service) allowed(actor *models.User, object, action string) bool {
	return actor != nil && !actor.Banned && s.authz.Can(actor.Role, object, action)
}

// CanModerate reports whether actor may act on any comment.
func (s *Service) CanModerate(actor *models.User) bool {
	return s.allowed(actor, authz.ObjComments, authz.ActModerate)
}

// HideComment hides a live comment from public listings.
func (s *Service) HideComment(ctx context.Context, actor *models.User, commentID, reason string) (*models.Comment, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}
	if !s.CanModerate(actor) {
		return nil, ErrForbidden
	}
	if err := s.store.HideComment(ctx, commentID, actor.ID, reason); err != nil {
		return nil, err
	}
	c, err := s.store.GetComment(ctx, commentID, query.ScopeDefault)
	if err != nil {
		return nil, err
	}

	s.record(ctx, actor, audit.EventModerationHide, "hide", commentID, "comment", reason)
	if s.pub != nil {
		err := s.pub.Publish(ctx, events.TopicCommentHidden, events.CommentHidden{
			CommentID:   c.ID,
			AuthorID:    c.UserID,
			MangaID:     c.MangaID,
			ModeratorID: actor.ID,
			Reason:      reason,
		})
		if err != nil {
			logging.Ctx(ctx).Error().Err(err).Str("comment_id", c.ID).Msg("Failed to publish comment.hidden")
		}
	}
	return c, nil
}

// UnhideComment makes a hidden comment public again.
func (s *Service) UnhideComment(ctx context.Context, actor *models.User, commentID string) (*models.Comment, error) {
	if !s.CanModerate(actor) {
		return nil, ErrForbidden
	}
	if err := s.store.UnhideComment(ctx, commentID); err != nil {
		return nil, err
	}
	s.record(ctx, actor, audit.EventModerationUnhide, "unhide", commentID, "comment", "")
	return s.store.GetComment(ctx, commentID, query.ScopeDefault)
}

// DeleteComment soft-deletes a comment. Authors may delete their own.
func (s *Service) DeleteComment(ctx context.Context, actor *models.User, commentID, reason string) error {
	if actor == nil {
		return ErrForbidden
	}
	c, err := s.store.GetComment(ctx, commentID, query.ScopeDefault)
	if err != nil {
		return err
	}
	own := c.UserID == actor.ID
	if !own && !s.CanModerate(actor) {
		return ErrForbidden
	}
	if err := s.store.DeleteComment(ctx, commentID); err != nil {
		return err
	}
	if !own {
		s.record(ctx, actor, audit.EventModerationDelete, "delete", commentID, "comment", strings.TrimSpace(reason))
	}
	return nil
}

// RestoreComment undoes a soft delete.
func (s *Service) RestoreComment(ctx context.Context, actor *models.User, commentID string) (*models.Comment, error) {
	if !s.CanModerate(actor) {
		return nil, ErrForbidden
	}
	if err := s.store.RestoreComment(ctx, commentID); err != nil {
		return nil, err
	}
	s.record(ctx, actor, audit.EventModerationRestore, "restore", commentID, "comment", "")
	return s.store.GetComment(ctx, commentID, query.ScopeDefault)
}

// SetBanned bans or unbans target. Moderators may only ban readers.
func (s *Service) SetBanned(ctx context.Context, actor *models.User, targetID string, banned bool, reason string) (*models.User, error) {
	reason = strings.TrimSpace(reason)
	if banned && reason == "" {
		return nil, ErrReasonRequired
	}
	if !s.allowed(actor, authz.ObjUsers, authz.ActBan) {
		return nil, ErrForbidden
	}
	if actor.ID == targetID {
		return nil, ErrSelfAction
	}
	target, err := s.store.GetUser(ctx, targetID, query.ScopeDefault)
	if err != nil {
		return nil, err
	}
	if target.Role != models.RoleReader && !s.allowed(actor, authz.ObjUsers, authz.ActManage) {
		return nil, ErrForbidden
	}
	if err := s.store.SetUserBanned(ctx, targetID, banned); err != nil {
		return nil, err
	}
	target.Banned = banned

	typ, action := audit.EventUserUnbanned, "unban"
	if banned {
		typ, action = audit.EventUserBanned, "ban"
	}
	s.record(ctx, actor, typ, action, targetID, "user", reason)
	return target, nil
}

// SetRole changes target's role. Admin only.
func (s *Service) SetRole(ctx context.Context, actor *models.User, targetID string, role models.Role) (*models.User, error) {
	if !role.Valid() {
		return nil, errors.New("invalid role")
	}
	if !s.allowed(actor, authz.ObjUsers, authz.ActManage) {
		return nil, ErrForbidden
	}
	if actor.ID == targetID {
		return nil, ErrSelfAction
	}
	target, err := s.store.GetUser(ctx, targetID, query.ScopeDefault)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetUserRole(ctx, targetID, role); err != nil {
		return nil, err
	}
	previous := target.Role
	target.Role = role

	s.record(ctx, actor, audit.EventUserRoleChanged, "role", targetID, "user", string(previous)+" -> "+string(role))
	return target, nil
}

func (s *Service) record(ctx context.Context, actor *models.User, typ audit.EventType, action, targetID, targetType, reason string) {
	metrics.ModerationActions.WithLabelValues(action).Inc()
	logging.Ctx(ctx).Info().
		Str("action", action).
		Str("actor_id", actor.ID).
		Str("target_id", targetID).
		Msg("Moderation action")

	if s.audit == nil {
		return
	}
	severity := audit.SeverityInfo
	switch typ {
	case audit.EventUserBanned, audit.EventUserRoleChanged:
		severity = audit.SeverityWarning
	}
	s.audit.Log(&audit.Event{
		Type:      typ,
		Severity:  severity,
		Actor:     audit.UserActor(actor),
		Target:    &audit.Target{ID: targetID, Type: targetType},
		Reason:    reason,
		RequestID: logging.RequestIDFromContext(ctx),
	})
}
