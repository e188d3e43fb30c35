package validation

// Severity classifies a validation finding.
// Only error-severity issues make a result invalid; warnings and
// informational findings are advisory.
type Severity string

const (
	// SeverityError marks a finding that fails validation.
	SeverityError Severity = "error"
	// SeverityWarning marks an advisory finding that does not fail validation.
	SeverityWarning Severity = "warning"
	// SeverityInfo marks an informational finding.
	SeverityInfo Severity = "info"
)

// Issue is a single validation finding. Issues are immutable once added
// to a Result; build the full issue before appending it.
type Issue struct {
	Severity   Severity       `json:"severity"`
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Fields     []string       `json:"fields,omitempty"`
	Context    map[string]any `json:"context,omitempty"`
	RuleName   string         `json:"rule_name,omitempty"`
	Suggestion string         `json:"suggestion,omitempty"`
}

// IsError reports whether the issue has error severity.
func (i Issue) IsError() bool {
	return i.Severity == SeverityError
}
