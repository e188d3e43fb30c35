package rule

import (
	"context"
	"fmt"

	"github.com/roach88/vigil/validation"
)

// ValuePredicate tests a single field value. The full entity is passed
// for predicates that need sibling fields.
type ValuePredicate func(value any, entity Entity) bool

// FieldValueRule validates one field against a caller-supplied
// predicate. Absent or nil values pass silently; pair with a
// RequiredFieldRule when presence itself must be enforced.
type FieldValueRule struct {
	Meta
	field   string
	pred    ValuePredicate
	message string
}

// NewFieldValue builds a predicate rule for a single field. The message
// is used verbatim in the issue; an empty message gets a generic one.
func NewFieldValue(name, field string, pred ValuePredicate, message string, opts ...Option) *FieldValueRule {
	if message == "" {
		message = fmt.Sprintf("field %q has an invalid value", field)
	}
	return &FieldValueRule{
		Meta:    NewMeta(name, opts...),
		field:   field,
		pred:    pred,
		message: message,
	}
}

// Validate applies the predicate when the field is present.
func (r *FieldValueRule) Validate(_ context.Context, entity Entity, _ *Context) (*validation.Result, error) {
	result := validation.NewResult()

	v, found := Lookup(entity, r.field)
	if !IsPresent(v, found) {
		return result, nil
	}
	if !r.pred(v, entity) {
		result.AddError(CodeInvalidFieldValue, r.message, r.field)
	}
	return result, nil
}
