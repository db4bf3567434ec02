// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package authz

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"github.com/tomtom215/mangashelf/internal/cache"
	"github.com/tomtom215/mangashelf/internal/config"
	"github.com/tomtom215/mangashelf/internal/metrics"
	"github.com/tomtom215/mangashelf/internal/models"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

// Objects.
const (
	ObjCatalog       = "catalog"
	ObjChapters      = "chapters"
	ObjPages         = "pages"
	ObjComments      = "comments"
	ObjReactions     = "reactions"
	ObjSubscription  = "subscription"
	ObjNotifications = "notifications"
	ObjPayments      = "payments"
	ObjUsers         = "users"
	ObjTrash         = "trash"
	ObjAudit         = "audit"
	ObjStats         = "stats"
)

// Actions.
const (
	ActRead            = "read"
	ActWrite           = "write"
	ActDelete          = "delete"
	ActRestore         = "restore"
	ActPublish         = "publish"
	ActReadUnpublished = "read_unpublished"
	ActModerate        = "moderate"
	ActBan             = "ban"
	ActReview          = "review"
	ActPurge           = "purge"
	ActManage          = "manage"
)

// Enforcer wraps the Casbin enforcer with a decision cache.
type Enforcer struct {
	enforcer *casbin.SyncedEnforcer
	cache    *cache.Cache
}

// NewEnforcer builds an enforcer from the embedded model and policy.
func NewEnforcer(cfg *config.CasbinConfig) (*Enforcer, error) {
	m, err := model.NewModelFromString(embeddedModel)
	if err != nil {
		return nil, fmt.Errorf("failed to load casbin model: %w", err)
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}
	if err := loadEmbeddedPolicy(enforcer, embeddedPolicy); err != nil {
		return nil, err
	}

	e := &Enforcer{enforcer: enforcer}
	if cfg != nil && cfg.CacheEnabled {
		e.cache = cache.New("authz", cfg.CacheTTL)
	}
	return e, nil
}

// loadEmbeddedPolicy parses the policy CSV into p and g rules.
func loadEmbeddedPolicy(enforcer *casbin.SyncedEnforcer, policy string) error {
	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}

		switch {
		case parts[0] == "p" && len(parts) == 4:
			if _, err := enforcer.AddPolicy(parts[1], parts[2], parts[3]); err != nil {
				return fmt.Errorf("failed to add policy %v: %w", parts[1:], err)
			}
		case parts[0] == "g" && len(parts) == 3:
			if _, err := enforcer.AddGroupingPolicy(parts[1], parts[2]); err != nil {
				return fmt.Errorf("failed to add grouping policy %v: %w", parts[1:], err)
			}
		default:
			return fmt.Errorf("malformed policy line %q", line)
		}
	}
	return nil
}

// Enforce reports whether role may perform action on object.
func (e *Enforcer) Enforce(role models.Role, object, action string) (bool, error) {
	key := string(role) + ":" + object + ":" + action
	if e.cache != nil {
		if v, ok := e.cache.Get(key); ok {
			return v.(bool), nil
		}
	}

	allowed, err := e.enforcer.Enforce(string(role), object, action)
	if err != nil {
		return false, fmt.Errorf("enforcement failed: %w", err)
	}
	if e.cache != nil {
		e.cache.Set(key, allowed)
	}

	decision := "deny"
	if allowed {
		decision = "allow"
	}
	metrics.AuthzDecisions.WithLabelValues(object, decision).Inc()
	return allowed, nil
}

// Can is Enforce with errors treated as a denial.
func (e *Enforcer) Can(role models.Role, object, action string) bool {
	allowed, err := e.Enforce(role, object, action)
	return err == nil && allowed
}

// RolesFor returns role plus every role it inherits.
func (e *Enforcer) RolesFor(role models.Role) []string {
	roles, err := e.enforcer.GetImplicitRolesForUser(string(role))
	if err != nil {
		return []string{string(role)}
	}
	return append([]string{string(role)}, roles...)
}

// Policy returns the loaded p rules.
func (e *Enforcer) Policy() [][]string {
	rules, err := e.enforcer.GetPolicy()
	if err != nil {
		return nil
	}
	return rules
}
