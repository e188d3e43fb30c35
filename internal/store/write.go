package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// WriteAudit inserts an audit and its issues atomically.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - a re-recorded audit
// with the same ID is silently ignored, issues included.
func (s *Store) WriteAudit(ctx context.Context, a Audit) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write audit: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	res, err := tx.ExecContext(ctx, `
		INSERT INTO audits
		(id, correlation_id, entity_type, operation, valid, error_count, warning_count, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		a.ID,
		a.CorrelationID,
		a.EntityType,
		a.Operation,
		a.Valid,
		a.ErrorCount,
		a.WarningCount,
		a.DurationMS,
		a.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("write audit: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("write audit: rows affected: %w", err)
	}
	if inserted == 0 {
		// Duplicate audit ID; issues were written with the original.
		return tx.Commit()
	}

	for seq, issue := range a.Issues {
		fieldsJSON, err := json.Marshal(issue.Fields)
		if err != nil {
			return fmt.Errorf("write audit issue %d: %w", seq, err)
		}
		if issue.Fields == nil {
			fieldsJSON = []byte("[]")
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO audit_issues
			(audit_id, seq, severity, code, message, fields, rule_name)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`,
			a.ID,
			seq,
			issue.Severity,
			issue.Code,
			issue.Message,
			string(fieldsJSON),
			issue.RuleName,
		); err != nil {
			return fmt.Errorf("write audit issue %d: %w", seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write audit: commit: %w", err)
	}
	return nil
}

// WriteLimiterEvent appends one admission decision.
func (s *Store) WriteLimiterEvent(ctx context.Context, ev LimiterEvent) error {
	createdAt := ev.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO limiter_events (zone, endpoint, decision, queue_depth, created_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		ev.Zone,
		ev.Endpoint,
		ev.Decision,
		ev.QueueDepth,
		createdAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("write limiter event: %w", err)
	}
	return nil
}
