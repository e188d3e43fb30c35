package rule

import (
	"context"

	"github.com/roach88/vigil/validation"
)

// Priority orders rule execution within a rule list. Lower values run
// first. The named bands below are guidance; any integer in between is
// legal.
type Priority int

const (
	// PriorityCritical rules run before everything else.
	PriorityCritical Priority = 0
	// PriorityHigh rules run after critical rules.
	PriorityHigh Priority = 250
	// PriorityNormal is the default when a rule does not set one.
	PriorityNormal Priority = 500
	// PriorityLow rules run late.
	PriorityLow Priority = 750
	// PriorityDeferred rules run last.
	PriorityDeferred Priority = 1000
)

// Issue codes shared by the built-in rule variants.
const (
	CodeRequiredField        = "REQUIRED_FIELD"
	CodeInvalidFieldValue    = "INVALID_FIELD_VALUE"
	CodePatternMismatch      = "PATTERN_MISMATCH"
	CodeBelowMinimum         = "BELOW_MINIMUM"
	CodeAboveMaximum         = "ABOVE_MAXIMUM"
	CodeInvalidRangeValue    = "INVALID_RANGE_VALUE"
	CodeConditionalRequired  = "CONDITIONALLY_REQUIRED_FIELD"
	CodeInvalidDateRange     = "INVALID_DATE_RANGE"
	CodeDateRangeTooShort    = "DATE_RANGE_TOO_SHORT"
	CodeDateRangeTooLong     = "DATE_RANGE_TOO_LONG"
	CodeInvalidSum           = "INVALID_SUM"
	CodeMutuallyExclusive    = "MUTUALLY_EXCLUSIVE_FIELDS"
	CodeMissingDependency    = "MISSING_DEPENDENT_FIELD"
	CodeInvalidPercentageSum = "INVALID_PERCENTAGE_SUM"
	CodeExpressionFailed     = "EXPRESSION_FAILED"
)

// Entity is the duck-typed record a rule validates. Field access uses
// dotted paths via Lookup; absent intermediates resolve to nil.
type Entity = map[string]any

// Condition gates whether a rule applies to a given entity. A nil
// condition means the rule always applies.
type Condition func(entity Entity, rctx *Context) bool

// Rule is a named, prioritized, conditionally-applicable validation
// unit over one entity. Identity is Name(): registering a second rule
// with the same name under the same entity type replaces the first.
//
// Validate returns findings as data. A non-nil error means the rule
// itself failed to execute; the engine isolates it as a
// RULE_EXECUTION_ERROR issue rather than aborting the run.
type Rule interface {
	Name() string
	Description() string
	Priority() Priority
	AppliesTo() []string
	Tags() []string
	Enabled() bool

	// Applies evaluates the rule's condition. Rules without a
	// condition apply to every entity.
	Applies(ctx context.Context, entity Entity, rctx *Context) bool

	// Validate runs the rule and returns its findings.
	Validate(ctx context.Context, entity Entity, rctx *Context) (*validation.Result, error)
}

// Mutable is implemented by rules whose metadata can be adjusted once
// at configuration-load time (enable/disable, priority, appliesTo).
// All built-in variants implement it via Meta.
type Mutable interface {
	SetEnabled(enabled bool)
	SetPriority(p Priority)
	SetAppliesTo(types []string)
}

// Meta carries the metadata fields common to every built-in variant.
// Embed it and set fields through NewMeta plus options.
type Meta struct {
	name        string
	description string
	priority    Priority
	appliesTo   []string
	tags        []string
	disabled    bool
	condition   Condition
}

// Option adjusts rule metadata at construction time.
type Option func(*Meta)

// WithDescription sets the human-readable description.
func WithDescription(desc string) Option {
	return func(m *Meta) { m.description = desc }
}

// WithPriority sets the execution priority.
func WithPriority(p Priority) Option {
	return func(m *Meta) { m.priority = p }
}

// WithAppliesTo declares the entity types this rule targets. The
// engine fans registration out to each listed type.
func WithAppliesTo(types ...string) Option {
	return func(m *Meta) { m.appliesTo = types }
}

// WithTags attaches free-form tags.
func WithTags(tags ...string) Option {
	return func(m *Meta) { m.tags = tags }
}

// WithCondition gates the rule on a predicate over the entity.
func WithCondition(cond Condition) Option {
	return func(m *Meta) { m.condition = cond }
}

// Disabled constructs the rule in the disabled state.
func Disabled() Option {
	return func(m *Meta) { m.disabled = true }
}

// NewMeta builds rule metadata with the given name and options applied.
func NewMeta(name string, opts ...Option) Meta {
	m := Meta{
		name:     name,
		priority: PriorityNormal,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Name returns the rule's unique name.
func (m *Meta) Name() string { return m.name }

// Description returns the human-readable description.
func (m *Meta) Description() string { return m.description }

// Priority returns the execution priority.
func (m *Meta) Priority() Priority { return m.priority }

// AppliesTo returns the declared entity types, if any.
func (m *Meta) AppliesTo() []string { return m.appliesTo }

// Tags returns the rule's tags.
func (m *Meta) Tags() []string { return m.tags }

// Enabled reports whether the rule should execute.
func (m *Meta) Enabled() bool { return !m.disabled }

// Applies evaluates the condition; rules without one always apply.
func (m *Meta) Applies(_ context.Context, entity Entity, rctx *Context) bool {
	if m.condition == nil {
		return true
	}
	return m.condition(entity, rctx)
}

// SetEnabled flips the enabled state. Configuration-load time only.
func (m *Meta) SetEnabled(enabled bool) { m.disabled = !enabled }

// SetPriority overrides the priority. Configuration-load time only.
func (m *Meta) SetPriority(p Priority) { m.priority = p }

// SetAppliesTo overrides the target types. Configuration-load time only.
func (m *Meta) SetAppliesTo(types []string) { m.appliesTo = types }
