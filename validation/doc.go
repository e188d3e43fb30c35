// Package validation defines the value types produced by rule evaluation:
// issues, severities, and the mergeable Result aggregate.
//
// A Result owns an ordered, append-only list of issues plus a small
// metadata map. Validity is derived, never stored: a result is valid
// exactly when no issue has error severity. Merge concatenates issues
// and shallow-merges metadata with the right-hand side winning, which
// makes merge associative and order-preserving.
//
// The package also provides HashEntity, the canonical content hash the
// engine uses to detect entity mutation between cached validations.
package validation
