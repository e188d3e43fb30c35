package rule

import (
	"context"
	"fmt"

	"github.com/roach88/vigil/validation"
)

// RangeBounds configures a RangeRule. Min and Max are optional; leave
// one nil for a half-open range. Dates normalize to epoch milliseconds
// before comparison, so bounds for date fields are expressed the same
// way (or as time.Time via Bound).
type RangeBounds struct {
	Min       *float64
	Max       *float64
	Inclusive bool // true: value == bound passes; false: bound itself fails
}

// Bound is a convenience for taking the address of a literal.
func Bound(v float64) *float64 { return &v }

// RangeRule validates that a numeric or date field falls inside
// configured bounds. Values that cannot be coerced to a number produce
// an INVALID_RANGE_VALUE error and skip the bounds checks entirely.
type RangeRule struct {
	Meta
	field  string
	bounds RangeBounds
}

// NewRange builds a range rule over one field.
func NewRange(name, field string, bounds RangeBounds, opts ...Option) *RangeRule {
	return &RangeRule{
		Meta:   NewMeta(name, opts...),
		field:  field,
		bounds: bounds,
	}
}

// Validate checks the field value against the bounds.
func (r *RangeRule) Validate(_ context.Context, entity Entity, _ *Context) (*validation.Result, error) {
	result := validation.NewResult()

	v, found := Lookup(entity, r.field)
	if !IsPresent(v, found) {
		return result, nil
	}

	n, ok := AsNumber(v)
	if !ok {
		// Not numeric: accept date values by normalizing to epoch ms.
		if ts, tok := AsTime(v); tok {
			n = float64(ts.UnixMilli())
		} else {
			result.AddError(CodeInvalidRangeValue,
				fmt.Sprintf("field %q is not a number or date", r.field),
				r.field)
			return result, nil
		}
	}

	if r.bounds.Min != nil {
		below := n < *r.bounds.Min
		if !r.bounds.Inclusive {
			below = n <= *r.bounds.Min
		}
		if below {
			result.AddError(CodeBelowMinimum,
				fmt.Sprintf("field %q is below the minimum of %v", r.field, *r.bounds.Min),
				r.field)
		}
	}
	if r.bounds.Max != nil {
		above := n > *r.bounds.Max
		if !r.bounds.Inclusive {
			above = n >= *r.bounds.Max
		}
		if above {
			result.AddError(CodeAboveMaximum,
				fmt.Sprintf("field %q is above the maximum of %v", r.field, *r.bounds.Max),
				r.field)
		}
	}
	return result, nil
}
