// Package engine is the central rule dispatcher: it registers
// validation rules per entity type and globally, resolves the
// applicable set for a validation call, executes it sequentially or in
// fixed-size parallel batches, and returns one merged result.
//
// # Ordering contract
//
// Rule resolution returns global rules first (sorted by priority),
// then type-specific rules (sorted by priority). The two runs are NOT
// merged into a single priority order: a low-priority global rule
// still executes before a critical type-specific rule. Callers that
// need a rule ahead of all global rules must register it globally.
//
// # Failure isolation
//
// ValidateEntity never returns an error. Failures of the flow itself
// become a single VALIDATION_ERROR issue; a rule that returns an error
// or panics becomes a RULE_EXECUTION_ERROR issue while the remaining
// rules continue to run.
//
// # Caching
//
// When enabled, results are cached per entity keyed by
// "entityType:id" with a TTL and a content hash; a mutated entity
// misses even inside the TTL. Eviction is explicit FIFO on insertion
// order. The cache is best-effort only.
package engine
