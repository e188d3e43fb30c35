package rule

import (
	"context"

	"github.com/roach88/vigil/validation"
)

// CompositeRule AND-combines sub-rules into one unit.
//
// Condition gating is conjunctive: the composite applies only when it
// is enabled AND every sub-rule's condition holds. Validation runs
// sub-rules in order and merges their findings; each sub-rule's issues
// are stamped with that sub-rule's name so composite membership stays
// visible in the output.
type CompositeRule struct {
	Meta
	rules            []Rule
	stopOnFirstError bool
}

// CompositeOption adjusts composite-specific behavior.
type CompositeOption func(*CompositeRule)

// StopOnFirstError makes the composite stop running sub-rules once the
// merged result contains an error.
func StopOnFirstError() CompositeOption {
	return func(c *CompositeRule) { c.stopOnFirstError = true }
}

// NewComposite builds an AND-combinator over sub-rules.
func NewComposite(name string, rules []Rule, opts []Option, copts ...CompositeOption) *CompositeRule {
	c := &CompositeRule{
		Meta:  NewMeta(name, opts...),
		rules: rules,
	}
	for _, opt := range copts {
		opt(c)
	}
	return c
}

// Applies returns false when the composite is disabled or when any
// sub-rule's condition fails.
func (c *CompositeRule) Applies(ctx context.Context, entity Entity, rctx *Context) bool {
	if !c.Enabled() {
		return false
	}
	if !c.Meta.Applies(ctx, entity, rctx) {
		return false
	}
	for _, sub := range c.rules {
		if !sub.Applies(ctx, entity, rctx) {
			return false
		}
	}
	return true
}

// Validate runs sub-rules in order and merges their findings.
func (c *CompositeRule) Validate(ctx context.Context, entity Entity, rctx *Context) (*validation.Result, error) {
	merged := validation.NewResult()

	for _, sub := range c.rules {
		if !sub.Enabled() {
			continue
		}
		res, err := sub.Validate(ctx, entity, rctx)
		if err != nil {
			return merged, err
		}
		res.StampRuleName(sub.Name())
		merged.Merge(res)

		if c.stopOnFirstError && !merged.IsValid() {
			break
		}
	}
	return merged, nil
}

// Rules returns the sub-rules in declaration order.
func (c *CompositeRule) Rules() []Rule {
	return c.rules
}
