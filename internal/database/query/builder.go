// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

// Package query builds parameterized WHERE clauses for the database
// package. Every builder carries a soft-delete Scope, so repository code
// never writes the deleted_at predicate by hand.
package query

import (
	"fmt"
	"strings"
)

// WhereBuilder accumulates AND-joined conditions and their arguments.
//
//	wb := query.NewScopedWhere(query.ScopeDefault, "m")
//	wb.AddClause("m.status = ?", status)
//	where, args := wb.BuildWithPrefix()
//	// WHERE m.deleted_at IS NULL AND m.status = ?
type WhereBuilder struct {
	clauses []string
	args    []interface{}
}

// NewWhereBuilder returns a builder with no scope applied. Use it for
// tables without a deleted_at column.
func NewWhereBuilder() *WhereBuilder {
	return &WhereBuilder{
		clauses: []string{},
		args:    []interface{}{},
	}
}

// NewScopedWhere returns a builder pre-seeded with the scope's deleted_at
// predicate for the given table alias (empty alias for unqualified columns).
func NewScopedWhere(scope Scope, alias string) *WhereBuilder {
	wb := NewWhereBuilder()
	if pred := scope.Predicate(alias); pred != "" {
		wb.clauses = append(wb.clauses, pred)
	}
	return wb
}

// AddClause appends a raw condition with its arguments.
func (wb *WhereBuilder) AddClause(clause string, args ...interface{}) *WhereBuilder {
	wb.clauses = append(wb.clauses, clause)
	wb.args = append(wb.args, args...)
	return wb
}

// AddEquals appends "column = ?" when value is non-empty.
func (wb *WhereBuilder) AddEquals(column, value string) *WhereBuilder {
	if value == "" {
		return wb
	}
	return wb.AddClause(column+" = ?", value)
}

// AddIn appends "column IN (?, ...)". An empty list is skipped.
func (wb *WhereBuilder) AddIn(column string, values []string) *WhereBuilder {
	if len(values) == 0 {
		return wb
	}
	placeholders := make([]string, len(values))
	for i, v := range values {
		placeholders[i] = "?"
		wb.args = append(wb.args, v)
	}
	wb.clauses = append(wb.clauses, fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ", ")))
	return wb
}

// AddSearch appends a case-insensitive substring match across the given
// columns, OR-joined. LIKE wildcards in term are escaped.
func (wb *WhereBuilder) AddSearch(term string, columns ...string) *WhereBuilder {
	term = strings.TrimSpace(term)
	if term == "" || len(columns) == 0 {
		return wb
	}
	pattern := "%" + escapeLike(term) + "%"
	parts := make([]string, len(columns))
	for i, c := range columns {
		parts[i] = c + ` ILIKE ? ESCAPE '\'`
		wb.args = append(wb.args, pattern)
	}
	wb.clauses = append(wb.clauses, "("+strings.Join(parts, " OR ")+")")
	return wb
}

// Build joins the clauses with AND. With no clauses it returns "1=1".
func (wb *WhereBuilder) Build() (string, []interface{}) {
	if len(wb.clauses) == 0 {
		return "1=1", []interface{}{}
	}
	return strings.Join(wb.clauses, " AND "), wb.args
}

// BuildWithPrefix is Build with a leading "WHERE ".
func (wb *WhereBuilder) BuildWithPrefix() (string, []interface{}) {
	where, args := wb.Build()
	return "WHERE " + where, args
}

// Count returns the number of clauses, including the scope predicate.
func (wb *WhereBuilder) Count() int {
	return len(wb.clauses)
}

// IsEmpty reports whether no clauses were added.
func (wb *WhereBuilder) IsEmpty() bool {
	return len(wb.clauses) == 0
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
