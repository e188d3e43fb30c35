package validation

// Result aggregates validation issues for one entity.
//
// Issues are held in an ordered, append-only list. A result is valid
// exactly when it contains no error-severity issue; warnings and infos
// never fail validation.
//
// Results are NOT safe for concurrent mutation. The engine merges
// per-rule results from a single goroutine; callers that fan results
// out across goroutines must merge on one side.
type Result struct {
	issues   []Issue
	metadata map[string]any
}

// NewResult creates an empty, valid result.
func NewResult() *Result {
	return &Result{}
}

// IsValid reports whether the result contains no error-severity issues.
func (r *Result) IsValid() bool {
	for _, issue := range r.issues {
		if issue.IsError() {
			return false
		}
	}
	return true
}

// AddIssue appends a fully built issue.
func (r *Result) AddIssue(issue Issue) {
	r.issues = append(r.issues, issue)
}

// AddError appends an error-severity issue for the given fields.
func (r *Result) AddError(code, message string, fields ...string) {
	r.issues = append(r.issues, Issue{
		Severity: SeverityError,
		Code:     code,
		Message:  message,
		Fields:   fields,
	})
}

// AddWarning appends a warning-severity issue for the given fields.
func (r *Result) AddWarning(code, message string, fields ...string) {
	r.issues = append(r.issues, Issue{
		Severity: SeverityWarning,
		Code:     code,
		Message:  message,
		Fields:   fields,
	})
}

// AddInfo appends an info-severity issue for the given fields.
func (r *Result) AddInfo(code, message string, fields ...string) {
	r.issues = append(r.issues, Issue{
		Severity: SeverityInfo,
		Code:     code,
		Message:  message,
		Fields:   fields,
	})
}

// Issues returns the ordered issue list. The returned slice is a copy;
// mutating it does not affect the result.
func (r *Result) Issues() []Issue {
	out := make([]Issue, len(r.issues))
	copy(out, r.issues)
	return out
}

// Errors returns only the error-severity issues, in order.
func (r *Result) Errors() []Issue {
	return r.filter(SeverityError)
}

// Warnings returns only the warning-severity issues, in order.
func (r *Result) Warnings() []Issue {
	return r.filter(SeverityWarning)
}

// Infos returns only the info-severity issues, in order.
func (r *Result) Infos() []Issue {
	return r.filter(SeverityInfo)
}

func (r *Result) filter(sev Severity) []Issue {
	var out []Issue
	for _, issue := range r.issues {
		if issue.Severity == sev {
			out = append(out, issue)
		}
	}
	return out
}

// ErrorCount returns the number of error-severity issues.
func (r *Result) ErrorCount() int {
	n := 0
	for _, issue := range r.issues {
		if issue.Severity == SeverityError {
			n++
		}
	}
	return n
}

// WarningCount returns the number of warning-severity issues.
func (r *Result) WarningCount() int {
	n := 0
	for _, issue := range r.issues {
		if issue.Severity == SeverityWarning {
			n++
		}
	}
	return n
}

// Len returns the total issue count.
func (r *Result) Len() int {
	return len(r.issues)
}

// SetMetadata records a metadata key on the result.
func (r *Result) SetMetadata(key string, value any) {
	if r.metadata == nil {
		r.metadata = make(map[string]any)
	}
	r.metadata[key] = value
}

// Metadata returns the metadata value for key, if present.
func (r *Result) Metadata(key string) (any, bool) {
	v, ok := r.metadata[key]
	return v, ok
}

// MetadataMap returns a copy of the full metadata map.
func (r *Result) MetadataMap() map[string]any {
	out := make(map[string]any, len(r.metadata))
	for k, v := range r.metadata {
		out[k] = v
	}
	return out
}

// Merge appends every issue from other onto r, preserving order, and
// shallow-merges metadata with other's values winning on key collision.
//
// Merge is associative: merging a,b then c yields the same issue
// sequence as merging a with the merge of b,c.
func (r *Result) Merge(other *Result) {
	if other == nil {
		return
	}
	r.issues = append(r.issues, other.issues...)
	for k, v := range other.metadata {
		r.SetMetadata(k, v)
	}
}

// StampRuleName assigns name to every issue that does not already carry
// a rule name. Issues stamped by a composite sub-rule keep their own.
func (r *Result) StampRuleName(name string) {
	for i := range r.issues {
		if r.issues[i].RuleName == "" {
			r.issues[i].RuleName = name
		}
	}
}

// Clone returns a deep-enough copy: the issue slice and metadata map are
// copied, issue contents are shared (issues are immutable once added).
func (r *Result) Clone() *Result {
	out := &Result{
		issues: make([]Issue, len(r.issues)),
	}
	copy(out.issues, r.issues)
	if r.metadata != nil {
		out.metadata = make(map[string]any, len(r.metadata))
		for k, v := range r.metadata {
			out.metadata[k] = v
		}
	}
	return out
}
