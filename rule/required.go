package rule

import (
	"context"
	"fmt"

	"github.com/roach88/vigil/validation"
)

// FieldPredicate decides whether a specific field is required for this
// entity. Returning false skips the requirement.
type FieldPredicate func(entity Entity, rctx *Context) bool

// RequiredFieldRule flags fields that are absent, nil, or empty string.
// Field paths are dotted; a missing intermediate counts as absent.
//
// Per-field predicates make requiredness conditional: when a predicate
// is registered for a field and returns false, that field is not
// required for this entity.
type RequiredFieldRule struct {
	Meta
	fields     []string
	predicates map[string]FieldPredicate
}

// NewRequiredField builds a required-field rule over the given paths.
func NewRequiredField(name string, fields []string, opts ...Option) *RequiredFieldRule {
	return &RequiredFieldRule{
		Meta:   NewMeta(name, opts...),
		fields: fields,
	}
}

// RequireIf attaches a predicate gating requiredness of one field.
// Returns the rule for chaining.
func (r *RequiredFieldRule) RequireIf(field string, pred FieldPredicate) *RequiredFieldRule {
	if r.predicates == nil {
		r.predicates = make(map[string]FieldPredicate)
	}
	r.predicates[field] = pred
	return r
}

// Validate checks each configured field for presence.
func (r *RequiredFieldRule) Validate(_ context.Context, entity Entity, rctx *Context) (*validation.Result, error) {
	result := validation.NewResult()

	for _, field := range r.fields {
		if pred, ok := r.predicates[field]; ok && !pred(entity, rctx) {
			continue
		}
		v, found := Lookup(entity, field)
		if IsEmpty(v, found) {
			result.AddError(CodeRequiredField, fmt.Sprintf("field %q is required", field), field)
		}
	}
	return result, nil
}
