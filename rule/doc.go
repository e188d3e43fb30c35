// Package rule defines the validation rule contract and the built-in
// variant family.
//
// A Rule is a named, prioritized, conditionally-applicable validation
// unit over one entity. Entities are map[string]any records addressed
// with dotted field paths ("billing.address.zip"); a missing
// intermediate resolves the whole path to absent.
//
// Built-in variants:
//
//   - RequiredFieldRule: presence checks with per-field conditional
//     requiredness
//   - FieldValueRule: caller-supplied predicate over one field
//   - PatternRule: regular expression match
//   - RangeRule: numeric/date bounds with independent inclusivity
//   - CompositeRule: AND-combinator with conjunctive condition gating
//   - Cross-field rules: conditional-required, date-range, sum,
//     mutually-exclusive, dependent-fields, percentage-sum
//   - ExprRule: CEL expression compiled from configuration, replacing
//     raw code-string execution with a cost-limited sandbox
//
// All variants are pure functions of (entity, context) plus their
// constructor-bound configuration; they hold no shared state and are
// safe for concurrent use after construction.
package rule
