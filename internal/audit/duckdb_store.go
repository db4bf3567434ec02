// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/mangashelf/internal/database/query"
	"github.com/tomtom215/mangashelf/internal/logging"
)

// DuckDBStore implements Store on the application database.
type DuckDBStore struct {
	db *sql.DB
}

// NewDuckDBStore wraps an open DuckDB pool. Call CreateTable once at startup.
func NewDuckDBStore(db *sql.DB) *DuckDBStore {
	return &DuckDBStore{db: db}
}

// CreateTable creates the audit_events table and its indexes.
func (s *DuckDBStore) CreateTable(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS audit_events (
			id VARCHAR PRIMARY KEY,
			timestamp TIMESTAMP NOT NULL,
			type VARCHAR NOT NULL,
			severity VARCHAR NOT NULL,
			actor_id VARCHAR NOT NULL,
			actor_name VARCHAR NOT NULL DEFAULT '',
			actor_role VARCHAR NOT NULL DEFAULT '',
			target_id VARCHAR,
			target_type VARCHAR,
			reason VARCHAR NOT NULL DEFAULT '',
			source_ip VARCHAR NOT NULL DEFAULT '',
			request_id VARCHAR NOT NULL DEFAULT '',
			metadata VARCHAR
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_events(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_target ON audit_events(target_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create audit schema: %w", err)
		}
	}
	logging.Debug().Msg("Audit events table created/verified")
	return nil
}

// Save inserts one event.
func (s *DuckDBStore) Save(ctx context.Context, e *Event) error {
	var targetID, targetType sql.NullString
	if e.Target != nil {
		targetID = sql.NullString{String: e.Target.ID, Valid: true}
		targetType = sql.NullString{String: e.Target.Type, Valid: true}
	}
	var metadata sql.NullString
	if len(e.Metadata) > 0 {
		metadata = sql.NullString{String: string(e.Metadata), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO audit_events (
		id, timestamp, type, severity, actor_id, actor_name, actor_role,
		target_id, target_type, reason, source_ip, request_id, metadata
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Timestamp.UTC(), string(e.Type), string(e.Severity), e.Actor.ID, e.Actor.Name, e.Actor.Role,
		targetID, targetType, e.Reason, e.SourceIP, e.RequestID, metadata)
	if err != nil {
		return fmt.Errorf("failed to save audit event: %w", err)
	}
	return nil
}

func buildWhere(f QueryFilter) (string, []interface{}) {
	types := make([]string, len(f.Types))
	for i, t := range f.Types {
		types[i] = string(t)
	}
	wb := query.NewWhereBuilder().
		AddIn("type", types).
		AddEquals("actor_id", f.ActorID).
		AddEquals("target_id", f.TargetID).
		AddEquals("target_type", f.TargetType)
	if f.StartTime != nil {
		wb.AddClause("timestamp >= ?", f.StartTime.UTC())
	}
	if f.EndTime != nil {
		wb.AddClause("timestamp <= ?", f.EndTime.UTC())
	}
	return wb.BuildWithPrefix()
}

// Query returns matching events, newest first.
func (s *DuckDBStore) Query(ctx context.Context, f QueryFilter) ([]Event, error) {
	where, args := buildWhere(f)
	q := `SELECT id, timestamp, type, severity, actor_id, actor_name, actor_role,
		target_id, target_type, reason, source_ip, request_id, metadata
		FROM audit_events ` + where + ` ORDER BY timestamp DESC, id`
	if f.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", f.Limit)
	}
	if f.Offset > 0 {
		q += fmt.Sprintf(" OFFSET %d", f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0)
	for rows.Next() {
		var (
			e                    Event
			typ, severity        string
			targetID, targetType sql.NullString
			metadata             sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Timestamp, &typ, &severity, &e.Actor.ID, &e.Actor.Name, &e.Actor.Role,
			&targetID, &targetType, &e.Reason, &e.SourceIP, &e.RequestID, &metadata); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		e.Type = EventType(typ)
		e.Severity = Severity(severity)
		e.Timestamp = e.Timestamp.UTC()
		if targetID.Valid {
			e.Target = &Target{ID: targetID.String, Type: targetType.String}
		}
		if metadata.Valid && strings.TrimSpace(metadata.String) != "" {
			e.Metadata = []byte(metadata.String)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit events: %w", err)
	}
	return events, nil
}

// Count returns the number of matching events.
func (s *DuckDBStore) Count(ctx context.Context, f QueryFilter) (int64, error) {
	where, args := buildWhere(f)
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_events `+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count audit events: %w", err)
	}
	return n, nil
}

// Delete removes events older than olderThan.
func (s *DuckDBStore) Delete(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM audit_events WHERE timestamp < ?`, olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete audit events: %w", err)
	}
	return res.RowsAffected()
}
