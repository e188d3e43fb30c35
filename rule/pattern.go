package rule

import (
	"context"
	"fmt"
	"regexp"

	"github.com/roach88/vigil/validation"
)

// PatternRule matches the stringified field value against a regular
// expression. Absent, nil, and empty-string values are skipped.
type PatternRule struct {
	Meta
	field   string
	pattern *regexp.Regexp
}

// NewPattern builds a pattern rule from a pattern source string.
// The pattern is compiled once at construction.
func NewPattern(name, field, pattern string, opts ...Option) (*PatternRule, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("rule %s: compile pattern %q: %w", name, pattern, err)
	}
	return NewPatternCompiled(name, field, re, opts...), nil
}

// NewPatternCompiled builds a pattern rule from an already-compiled
// regular expression.
func NewPatternCompiled(name, field string, re *regexp.Regexp, opts ...Option) *PatternRule {
	return &PatternRule{
		Meta:    NewMeta(name, opts...),
		field:   field,
		pattern: re,
	}
}

// Validate matches the field value against the pattern.
func (r *PatternRule) Validate(_ context.Context, entity Entity, _ *Context) (*validation.Result, error) {
	result := validation.NewResult()

	v, found := Lookup(entity, r.field)
	if !IsPresent(v, found) {
		return result, nil
	}
	s := AsString(v)
	if s == "" {
		return result, nil
	}
	if !r.pattern.MatchString(s) {
		result.AddError(CodePatternMismatch,
			fmt.Sprintf("field %q does not match pattern %s", r.field, r.pattern.String()),
			r.field)
	}
	return result, nil
}
