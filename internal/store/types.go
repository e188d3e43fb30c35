package store

import (
	"time"

	"github.com/google/uuid"

	"github.com/roach88/vigil/rule"
	"github.com/roach88/vigil/validation"
)

// Audit is one recorded validation run.
type Audit struct {
	ID            string       `json:"id"`
	CorrelationID string       `json:"correlation_id"`
	EntityType    string       `json:"entity_type"`
	Operation     string       `json:"operation"`
	Valid         bool         `json:"valid"`
	ErrorCount    int          `json:"error_count"`
	WarningCount  int          `json:"warning_count"`
	DurationMS    int64        `json:"duration_ms"`
	CreatedAt     time.Time    `json:"created_at"`
	Issues        []AuditIssue `json:"issues,omitempty"`
}

// AuditIssue is one validation finding attached to an audit.
type AuditIssue struct {
	Severity string   `json:"severity"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Fields   []string `json:"fields,omitempty"`
	RuleName string   `json:"rule_name,omitempty"`
}

// LimiterEvent is one rate-limiter admission decision.
type LimiterEvent struct {
	ID         int64     `json:"id"`
	Zone       string    `json:"zone"`
	Endpoint   string    `json:"endpoint"`
	Decision   string    `json:"decision"`
	QueueDepth int       `json:"queue_depth"`
	CreatedAt  time.Time `json:"created_at"`
}

// Summary aggregates the audit table for reporting.
type Summary struct {
	Total    int64 `json:"total"`
	Invalid  int64 `json:"invalid"`
	Errors   int64 `json:"errors"`
	Warnings int64 `json:"warnings"`
}

// NewAudit converts an engine result into an audit row. The audit gets
// a fresh UUIDv7 so rows sort by creation time.
func NewAudit(entityType string, op rule.Operation, correlationID string, res *validation.Result, duration time.Duration) Audit {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	a := Audit{
		ID:            id.String(),
		CorrelationID: correlationID,
		EntityType:    entityType,
		Operation:     string(op),
		Valid:         res.IsValid(),
		ErrorCount:    res.ErrorCount(),
		WarningCount:  res.WarningCount(),
		DurationMS:    duration.Milliseconds(),
		CreatedAt:     time.Now().UTC(),
	}
	for _, issue := range res.Issues() {
		a.Issues = append(a.Issues, AuditIssue{
			Severity: string(issue.Severity),
			Code:     issue.Code,
			Message:  issue.Message,
			Fields:   issue.Fields,
			RuleName: issue.RuleName,
		})
	}
	return a
}
