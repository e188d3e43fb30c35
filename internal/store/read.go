package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// ReadRecentAudits returns the most recent audits, newest first,
// issues included. Returns an empty slice (not nil) when the log is
// empty.
func (s *Store) ReadRecentAudits(ctx context.Context, limit int) ([]Audit, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, correlation_id, entity_type, operation, valid, error_count, warning_count, duration_ms, created_at
		FROM audits
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audits: %w", err)
	}
	defer rows.Close()

	audits, err := s.collectAudits(ctx, rows)
	if err != nil {
		return nil, err
	}
	if audits == nil {
		audits = []Audit{}
	}
	return audits, nil
}

// ReadAuditsByCorrelation returns every audit recorded under a
// correlation ID, oldest first.
func (s *Store) ReadAuditsByCorrelation(ctx context.Context, correlationID string) ([]Audit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, correlation_id, entity_type, operation, valid, error_count, warning_count, duration_ms, created_at
		FROM audits
		WHERE correlation_id = ?
		ORDER BY created_at ASC, id ASC
	`, correlationID)
	if err != nil {
		return nil, fmt.Errorf("query audits by correlation: %w", err)
	}
	defer rows.Close()

	audits, err := s.collectAudits(ctx, rows)
	if err != nil {
		return nil, err
	}
	if audits == nil {
		audits = []Audit{}
	}
	return audits, nil
}

// ReadAudit retrieves one audit by ID. Returns sql.ErrNoRows if not
// found.
func (s *Store) ReadAudit(ctx context.Context, id string) (Audit, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, correlation_id, entity_type, operation, valid, error_count, warning_count, duration_ms, created_at
		FROM audits
		WHERE id = ?
	`, id)

	a, err := scanAudit(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return Audit{}, err
		}
		return Audit{}, fmt.Errorf("read audit: %w", err)
	}
	if err := s.attachIssues(ctx, &a); err != nil {
		return Audit{}, err
	}
	return a, nil
}

// Summarize aggregates the whole audit table.
func (s *Store) Summarize(ctx context.Context) (Summary, error) {
	var sum Summary
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN valid = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(error_count), 0),
			COALESCE(SUM(warning_count), 0)
		FROM audits
	`).Scan(&sum.Total, &sum.Invalid, &sum.Errors, &sum.Warnings)
	if err != nil {
		return Summary{}, fmt.Errorf("summarize audits: %w", err)
	}
	return sum, nil
}

// ReadLimiterEvents returns the most recent limiter decisions, newest
// first.
func (s *Store) ReadLimiterEvents(ctx context.Context, limit int) ([]LimiterEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, zone, endpoint, decision, queue_depth, created_at
		FROM limiter_events
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query limiter events: %w", err)
	}
	defer rows.Close()

	events := []LimiterEvent{}
	for rows.Next() {
		var ev LimiterEvent
		var created string
		if err := rows.Scan(&ev.ID, &ev.Zone, &ev.Endpoint, &ev.Decision, &ev.QueueDepth, &created); err != nil {
			return nil, fmt.Errorf("scan limiter event: %w", err)
		}
		ev.CreatedAt, err = time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, fmt.Errorf("parse limiter event time: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate limiter events: %w", err)
	}
	return events, nil
}

func (s *Store) collectAudits(ctx context.Context, rows *sql.Rows) ([]Audit, error) {
	var audits []Audit
	for rows.Next() {
		a, err := scanAudit(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		audits = append(audits, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audits: %w", err)
	}
	for i := range audits {
		if err := s.attachIssues(ctx, &audits[i]); err != nil {
			return nil, err
		}
	}
	return audits, nil
}

func (s *Store) attachIssues(ctx context.Context, a *Audit) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT severity, code, message, fields, rule_name
		FROM audit_issues
		WHERE audit_id = ?
		ORDER BY seq ASC
	`, a.ID)
	if err != nil {
		return fmt.Errorf("query audit issues: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var issue AuditIssue
		var fieldsJSON string
		if err := rows.Scan(&issue.Severity, &issue.Code, &issue.Message, &fieldsJSON, &issue.RuleName); err != nil {
			return fmt.Errorf("scan audit issue: %w", err)
		}
		if err := json.Unmarshal([]byte(fieldsJSON), &issue.Fields); err != nil {
			return fmt.Errorf("decode issue fields: %w", err)
		}
		a.Issues = append(a.Issues, issue)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate audit issues: %w", err)
	}
	return nil
}

func scanAudit(scan func(dest ...any) error) (Audit, error) {
	var a Audit
	var created string
	if err := scan(
		&a.ID,
		&a.CorrelationID,
		&a.EntityType,
		&a.Operation,
		&a.Valid,
		&a.ErrorCount,
		&a.WarningCount,
		&a.DurationMS,
		&created,
	); err != nil {
		return Audit{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return Audit{}, fmt.Errorf("parse audit time: %w", err)
	}
	a.CreatedAt = t
	return a, nil
}
