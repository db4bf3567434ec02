// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package query

import (
	"fmt"
	"strings"
)

// Scope selects which rows a query sees with respect to soft deletion.
type Scope int

const (
	// ScopeDefault hides soft-deleted rows.
	ScopeDefault Scope = iota
	// ScopeWithDeleted returns live and soft-deleted rows.
	ScopeWithDeleted
	// ScopeOnlyDeleted returns only soft-deleted rows (the trash view).
	ScopeOnlyDeleted
)

// String implements fmt.Stringer.
func (s Scope) String() string {
	switch s {
	case ScopeWithDeleted:
		return "with-deleted"
	case ScopeOnlyDeleted:
		return "only-deleted"
	default:
		return "default"
	}
}

// ParseScope maps the API's scope query parameter to a Scope. Empty is ScopeDefault.
func ParseScope(s string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default":
		return ScopeDefault, nil
	case "with-deleted", "with_deleted", "all":
		return ScopeWithDeleted, nil
	case "only-deleted", "only_deleted", "trash":
		return ScopeOnlyDeleted, nil
	default:
		return ScopeDefault, fmt.Errorf("unknown scope %q", s)
	}
}

// Predicate returns the deleted_at condition for alias, or "" for ScopeWithDeleted.
func (s Scope) Predicate(alias string) string {
	col := "deleted_at"
	if alias != "" {
		col = alias + ".deleted_at"
	}
	switch s {
	case ScopeWithDeleted:
		return ""
	case ScopeOnlyDeleted:
		return col + " IS NOT NULL"
	default:
		return col + " IS NULL"
	}
}
