package rule

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/roach88/vigil/validation"
)

// CompareOp is the operator set shared by the cross-field rules.
type CompareOp string

const (
	OpEquals             CompareOp = "equals"
	OpNotEquals          CompareOp = "notEquals"
	OpContains           CompareOp = "contains"
	OpGreaterThan        CompareOp = "greaterThan"
	OpGreaterThanOrEqual CompareOp = "greaterThanOrEqual"
	OpLessThan           CompareOp = "lessThan"
	OpLessThanOrEqual    CompareOp = "lessThanOrEqual"
)

// compare applies op to (actual, expected). Numeric comparison is used
// when both sides coerce to numbers; equals/notEquals fall back to
// string rendering, and contains matches substrings or slice members.
func compare(op CompareOp, actual, expected any) bool {
	an, aok := AsNumber(actual)
	en, eok := AsNumber(expected)
	numeric := aok && eok

	switch op {
	case OpEquals:
		if numeric {
			return an == en
		}
		return AsString(actual) == AsString(expected)
	case OpNotEquals:
		if numeric {
			return an != en
		}
		return AsString(actual) != AsString(expected)
	case OpContains:
		if list, ok := actual.([]any); ok {
			want := AsString(expected)
			for _, elem := range list {
				if AsString(elem) == want {
					return true
				}
			}
			return false
		}
		return strings.Contains(AsString(actual), AsString(expected))
	case OpGreaterThan:
		return numeric && an > en
	case OpGreaterThanOrEqual:
		return numeric && an >= en
	case OpLessThan:
		return numeric && an < en
	case OpLessThanOrEqual:
		return numeric && an <= en
	default:
		return false
	}
}

// ConditionalRequiredRule requires a set of fields whenever a trigger
// field satisfies an operator against a fixed value. When the trigger
// field is absent or the condition does not hold, the rule is silent.
type ConditionalRequiredRule struct {
	Meta
	triggerField string
	op           CompareOp
	triggerValue any
	required     []string
}

// NewConditionalRequired builds a conditional-required rule:
// when <triggerField> <op> <triggerValue>, all of required must be set.
func NewConditionalRequired(name, triggerField string, op CompareOp, triggerValue any, required []string, opts ...Option) *ConditionalRequiredRule {
	return &ConditionalRequiredRule{
		Meta:         NewMeta(name, opts...),
		triggerField: triggerField,
		op:           op,
		triggerValue: triggerValue,
		required:     required,
	}
}

// Validate checks the trigger condition and then the required fields.
func (r *ConditionalRequiredRule) Validate(_ context.Context, entity Entity, _ *Context) (*validation.Result, error) {
	result := validation.NewResult()

	trigger, found := Lookup(entity, r.triggerField)
	if !IsPresent(trigger, found) {
		return result, nil
	}
	if !compare(r.op, trigger, r.triggerValue) {
		return result, nil
	}
	for _, field := range r.required {
		v, ok := Lookup(entity, field)
		if IsEmpty(v, ok) {
			result.AddError(CodeConditionalRequired,
				fmt.Sprintf("field %q is required when %s %s %v", field, r.triggerField, r.op, r.triggerValue),
				field, r.triggerField)
		}
	}
	return result, nil
}

// DateRangeRule validates that an end-date field does not precede a
// start-date field, with optional minimum/maximum duration in days.
//
// Inclusive mode allows start == end; exclusive mode requires the end
// to be strictly after the start. The rule is silent unless both
// fields are present and parseable.
type DateRangeRule struct {
	Meta
	startField string
	endField   string
	inclusive  bool
	minDays    *float64
	maxDays    *float64
}

// DateRangeConfig configures a DateRangeRule.
type DateRangeConfig struct {
	Inclusive bool
	MinDays   *float64
	MaxDays   *float64
}

// NewDateRange builds a start/end ordering rule over two date fields.
func NewDateRange(name, startField, endField string, cfg DateRangeConfig, opts ...Option) *DateRangeRule {
	return &DateRangeRule{
		Meta:       NewMeta(name, opts...),
		startField: startField,
		endField:   endField,
		inclusive:  cfg.Inclusive,
		minDays:    cfg.MinDays,
		maxDays:    cfg.MaxDays,
	}
}

// Validate checks ordering and duration constraints.
func (r *DateRangeRule) Validate(_ context.Context, entity Entity, _ *Context) (*validation.Result, error) {
	result := validation.NewResult()

	startRaw, sok := Lookup(entity, r.startField)
	endRaw, eok := Lookup(entity, r.endField)
	if !IsPresent(startRaw, sok) || !IsPresent(endRaw, eok) {
		return result, nil
	}

	start, sok := AsTime(startRaw)
	end, eok := AsTime(endRaw)
	if !sok || !eok {
		result.AddError(CodeInvalidRangeValue,
			fmt.Sprintf("fields %q/%q are not parseable dates", r.startField, r.endField),
			r.startField, r.endField)
		return result, nil
	}

	ordered := end.After(start)
	if r.inclusive {
		ordered = ordered || end.Equal(start)
	}
	if !ordered {
		result.AddError(CodeInvalidDateRange,
			fmt.Sprintf("field %q must be after %q", r.endField, r.startField),
			r.startField, r.endField)
		return result, nil
	}

	days := end.Sub(start).Hours() / 24
	if r.minDays != nil && days < *r.minDays {
		result.AddError(CodeDateRangeTooShort,
			fmt.Sprintf("range %q..%q spans %.2f days, minimum is %v", r.startField, r.endField, days, *r.minDays),
			r.startField, r.endField)
	}
	if r.maxDays != nil && days > *r.maxDays {
		result.AddError(CodeDateRangeTooLong,
			fmt.Sprintf("range %q..%q spans %.2f days, maximum is %v", r.startField, r.endField, days, *r.maxDays),
			r.startField, r.endField)
	}
	return result, nil
}

// SumValidationRule compares the sum of a set of numeric fields against
// either a fixed value or another field on the same entity. Absent
// fields contribute zero; the rule is silent when none of the summed
// fields are present.
type SumValidationRule struct {
	Meta
	fields      []string
	op          CompareOp
	targetValue *float64
	targetField string
}

// NewSumAgainstValue builds a sum rule comparing against a constant.
func NewSumAgainstValue(name string, fields []string, op CompareOp, target float64, opts ...Option) *SumValidationRule {
	return &SumValidationRule{
		Meta:        NewMeta(name, opts...),
		fields:      fields,
		op:          op,
		targetValue: &target,
	}
}

// NewSumAgainstField builds a sum rule comparing against another field.
func NewSumAgainstField(name string, fields []string, op CompareOp, targetField string, opts ...Option) *SumValidationRule {
	return &SumValidationRule{
		Meta:        NewMeta(name, opts...),
		fields:      fields,
		op:          op,
		targetField: targetField,
	}
}

// Validate sums the fields and applies the comparison.
func (r *SumValidationRule) Validate(_ context.Context, entity Entity, _ *Context) (*validation.Result, error) {
	result := validation.NewResult()

	sum := 0.0
	any := false
	for _, field := range r.fields {
		v, found := Lookup(entity, field)
		if !IsPresent(v, found) {
			continue
		}
		n, ok := AsNumber(v)
		if !ok {
			result.AddError(CodeInvalidRangeValue,
				fmt.Sprintf("field %q is not numeric", field), field)
			return result, nil
		}
		sum += n
		any = true
	}
	if !any {
		return result, nil
	}

	var target float64
	if r.targetValue != nil {
		target = *r.targetValue
	} else {
		v, found := Lookup(entity, r.targetField)
		if !IsPresent(v, found) {
			return result, nil
		}
		n, ok := AsNumber(v)
		if !ok {
			result.AddError(CodeInvalidRangeValue,
				fmt.Sprintf("field %q is not numeric", r.targetField), r.targetField)
			return result, nil
		}
		target = n
	}

	if !compare(r.op, sum, target) {
		result.AddError(CodeInvalidSum,
			fmt.Sprintf("sum of %v is %v, expected %s %v", r.fields, sum, r.op, target),
			r.fields...)
	}
	return result, nil
}

// MutuallyExclusiveRule constrains how many of a field set may be
// present at once. In the default mode at most one may be set; with
// RequireOne exactly one must be set.
type MutuallyExclusiveRule struct {
	Meta
	fields     []string
	requireOne bool
}

// NewMutuallyExclusive builds an at-most-one rule over the field set.
func NewMutuallyExclusive(name string, fields []string, opts ...Option) *MutuallyExclusiveRule {
	return &MutuallyExclusiveRule{
		Meta:   NewMeta(name, opts...),
		fields: fields,
	}
}

// RequireOne upgrades the rule to exactly-one semantics: zero present
// fields is an error too. Returns the rule for chaining.
func (r *MutuallyExclusiveRule) RequireOne() *MutuallyExclusiveRule {
	r.requireOne = true
	return r
}

// Validate counts present fields and enforces the mode.
func (r *MutuallyExclusiveRule) Validate(_ context.Context, entity Entity, _ *Context) (*validation.Result, error) {
	result := validation.NewResult()

	var present []string
	for _, field := range r.fields {
		v, found := Lookup(entity, field)
		if IsPresent(v, found) {
			present = append(present, field)
		}
	}

	if len(present) > 1 {
		result.AddError(CodeMutuallyExclusive,
			fmt.Sprintf("fields %v are mutually exclusive, got %v", r.fields, present),
			present...)
	}
	if r.requireOne && len(present) == 0 {
		result.AddError(CodeMutuallyExclusive,
			fmt.Sprintf("exactly one of %v must be set", r.fields),
			r.fields...)
	}
	return result, nil
}

// DependentFieldsRule requires a set of fields whenever a primary field
// is present. The rule is silent when the primary field is absent.
type DependentFieldsRule struct {
	Meta
	primary    string
	dependents []string
}

// NewDependentFields builds a dependency rule: when primary is set,
// every dependent must be set too.
func NewDependentFields(name, primary string, dependents []string, opts ...Option) *DependentFieldsRule {
	return &DependentFieldsRule{
		Meta:       NewMeta(name, opts...),
		primary:    primary,
		dependents: dependents,
	}
}

// Validate checks dependents when the primary field is present.
func (r *DependentFieldsRule) Validate(_ context.Context, entity Entity, _ *Context) (*validation.Result, error) {
	result := validation.NewResult()

	v, found := Lookup(entity, r.primary)
	if !IsPresent(v, found) {
		return result, nil
	}
	for _, field := range r.dependents {
		dv, ok := Lookup(entity, field)
		if IsEmpty(dv, ok) {
			result.AddError(CodeMissingDependency,
				fmt.Sprintf("field %q is required when %q is set", field, r.primary),
				field, r.primary)
		}
	}
	return result, nil
}

// PercentageSumRule validates that a set of percentage fields sums to
// 100 within a tolerance band. The rule does not fire when every field
// is absent, so fully-empty allocations pass.
type PercentageSumRule struct {
	Meta
	fields    []string
	tolerance float64
}

// NewPercentageSum builds a tolerance-banded 100% check.
func NewPercentageSum(name string, fields []string, tolerance float64, opts ...Option) *PercentageSumRule {
	return &PercentageSumRule{
		Meta:      NewMeta(name, opts...),
		fields:    fields,
		tolerance: tolerance,
	}
}

// Validate sums the present fields and checks the 100% band.
func (r *PercentageSumRule) Validate(_ context.Context, entity Entity, _ *Context) (*validation.Result, error) {
	result := validation.NewResult()

	sum := 0.0
	any := false
	for _, field := range r.fields {
		v, found := Lookup(entity, field)
		if !IsPresent(v, found) {
			continue
		}
		n, ok := AsNumber(v)
		if !ok {
			result.AddError(CodeInvalidRangeValue,
				fmt.Sprintf("field %q is not numeric", field), field)
			return result, nil
		}
		sum += n
		any = true
	}
	if !any {
		return result, nil
	}

	if math.Abs(sum-100) > r.tolerance {
		result.AddError(CodeInvalidPercentageSum,
			fmt.Sprintf("fields %v sum to %v, expected 100 (±%v)", r.fields, sum, r.tolerance),
			r.fields...)
	}
	return result, nil
}
