package engine

import (
	"fmt"
	"sync"
	"time"
)

// RuleExecution captures one rule run for diagnostics.
type RuleExecution struct {
	RuleName     string        `json:"rule_name"`
	Duration     time.Duration `json:"duration"`
	Passed       bool          `json:"passed"`
	ErrorCount   int           `json:"error_count"`
	WarningCount int           `json:"warning_count"`
}

// statsRecorder accumulates per-rule execution records keyed by
// "<entityType>-<correlationID>".
//
// Records grow without bound until ClearStatistics is called; callers
// that enable stats own the pruning schedule.
type statsRecorder struct {
	mu      sync.Mutex
	records map[string][]RuleExecution
}

func newStatsRecorder() *statsRecorder {
	return &statsRecorder{records: make(map[string][]RuleExecution)}
}

func statsKey(entityType, correlationID string) string {
	return fmt.Sprintf("%s-%s", entityType, correlationID)
}

func (s *statsRecorder) record(entityType, correlationID string, exec RuleExecution) {
	key := statsKey(entityType, correlationID)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = append(s.records[key], exec)
}

// snapshot returns a copy of all recorded executions.
func (s *statsRecorder) snapshot() map[string][]RuleExecution {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]RuleExecution, len(s.records))
	for k, v := range s.records {
		execs := make([]RuleExecution, len(v))
		copy(execs, v)
		out[k] = execs
	}
	return out
}

func (s *statsRecorder) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string][]RuleExecution)
}
