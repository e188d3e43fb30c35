package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/vigil/rule"
	"github.com/roach88/vigil/validation"
)

// Issue codes emitted by the engine itself, as opposed to by rules.
const (
	// CodeValidationError tags a failure of the validation flow itself
	// (hashing, resolution). Returned as data, never as an error.
	CodeValidationError = "VALIDATION_ERROR"
	// CodeRuleExecutionError tags a rule whose own execution failed.
	// The failure is isolated: remaining rules still run.
	CodeRuleExecutionError = "RULE_EXECUTION_ERROR"
)

// Options configures engine behavior. The zero value disables caching,
// parallel execution, and stats; DefaultOptions supplies the usual
// production settings.
type Options struct {
	EnableCache      bool
	CacheTTL         time.Duration
	MaxCacheSize     int
	EnableParallel   bool
	MaxParallelRules int
	EnableStats      bool
	StopOnFirstError bool
}

// DefaultOptions returns the settings used when none are supplied.
func DefaultOptions() Options {
	return Options{
		EnableCache:      true,
		CacheTTL:         5 * time.Minute,
		MaxCacheSize:     1000,
		EnableParallel:   false,
		MaxParallelRules: 5,
	}
}

// Engine registers validation rules per entity type plus globally,
// resolves the applicable set for a validation call, executes it, and
// returns one merged result.
//
// Thread-safety: registration and validation may be called from any
// goroutine. Rule lists are guarded by an RWMutex; the cache and stats
// recorder lock internally. Rules themselves must be safe for
// concurrent Validate calls, which all built-in variants are.
//
// Note the cache is best-effort: two concurrent validations of the same
// never-cached entity can both miss and both execute rules, with the
// second write winning. That is acceptable for a cache, not a
// correctness mechanism.
type Engine struct {
	mu     sync.RWMutex
	typed  map[string][]rule.Rule
	global []rule.Rule

	opts    Options
	cache   *resultCache
	stats   *statsRecorder
	metrics *Metrics
}

// EngineOption adjusts engine construction.
type EngineOption func(*Engine)

// WithMetrics attaches a Prometheus instrument set. The caller
// registers it with their registry.
func WithMetrics(m *Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// New creates an engine with the given options.
func New(opts Options, eopts ...EngineOption) *Engine {
	e := &Engine{
		typed: make(map[string][]rule.Rule),
		opts:  opts,
	}
	if opts.EnableCache {
		e.cache = newResultCache(opts.CacheTTL, opts.MaxCacheSize)
	}
	if opts.EnableStats {
		e.stats = newStatsRecorder()
	}
	for _, opt := range eopts {
		opt(e)
	}
	return e
}

// Register inserts a rule under each named entity type, replacing any
// existing rule with the same name, then re-sorts that type's list by
// ascending priority (stable, so equal priorities keep insertion
// order).
//
// When the rule declares AppliesTo, registration additionally fans out
// to each declared type. Types already processed in this call are
// skipped, so a rule never lands twice in one bucket; the same rule
// OBJECT may legitimately appear under several type keys. For a rule
// that should run against every type, use RegisterGlobal instead.
func (e *Engine) Register(r rule.Rule, entityTypes ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	visited := make(map[string]bool, len(entityTypes))
	for _, et := range entityTypes {
		e.registerLocked(et, r)
		visited[et] = true
	}
	for _, et := range r.AppliesTo() {
		if visited[et] {
			continue
		}
		e.registerLocked(et, r)
		visited[et] = true
	}
	e.updateRuleGauge()
}

func (e *Engine) registerLocked(entityType string, r rule.Rule) {
	list := e.typed[entityType]
	replaced := false
	for i, existing := range list {
		if existing.Name() == r.Name() {
			list[i] = r
			replaced = true
			break
		}
	}
	if !replaced {
		list = append(list, r)
	}
	sortByPriority(list)
	e.typed[entityType] = list

	slog.Debug("rule registered",
		"rule", r.Name(),
		"entity_type", entityType,
		"priority", r.Priority(),
		"replaced", replaced,
	)
}

// RegisterGlobal inserts a rule into the global list with the same
// replace-or-append-then-sort semantics. Global rules are evaluated
// ahead of type-specific rules for every entity type.
func (e *Engine) RegisterGlobal(r rule.Rule) {
	e.mu.Lock()
	defer e.mu.Unlock()

	replaced := false
	for i, existing := range e.global {
		if existing.Name() == r.Name() {
			e.global[i] = r
			replaced = true
			break
		}
	}
	if !replaced {
		e.global = append(e.global, r)
	}
	sortByPriority(e.global)
	e.updateRuleGauge()

	slog.Debug("global rule registered", "rule", r.Name(), "replaced", replaced)
}

// Unregister removes a rule by name from one entity type's list.
// Returns whether the rule was found.
func (e *Engine) Unregister(entityType, name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	list := e.typed[entityType]
	for i, r := range list {
		if r.Name() == name {
			e.typed[entityType] = append(list[:i], list[i+1:]...)
			e.updateRuleGauge()
			return true
		}
	}
	return false
}

// UnregisterGlobal removes a global rule by name.
// Returns whether the rule was found.
func (e *Engine) UnregisterGlobal(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, r := range e.global {
		if r.Name() == name {
			e.global = append(e.global[:i], e.global[i+1:]...)
			e.updateRuleGauge()
			return true
		}
	}
	return false
}

// EntityTypes returns the entity types with at least one registered
// type-specific rule, sorted.
func (e *Engine) EntityTypes() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	types := make([]string, 0, len(e.typed))
	for et, rules := range e.typed {
		if len(rules) > 0 {
			types = append(types, et)
		}
	}
	sort.Strings(types)
	return types
}

// RulesFor returns the resolved rule list for an entity type:
// global rules first (sorted by priority), then type-specific rules
// (sorted by priority). This is two ordered runs, NOT a single
// merged-by-priority sequence across both lists — a deliberate
// ordering contract: a Deferred global rule still runs before a
// Critical type-specific rule.
func (e *Engine) RulesFor(entityType string) []rule.Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	typed := e.typed[entityType]
	out := make([]rule.Rule, 0, len(e.global)+len(typed))
	out = append(out, e.global...)
	out = append(out, typed...)
	return out
}

// ValidateEntity resolves and executes the rule set for entityType
// against entity, returning one merged result.
//
// The engine never returns an error: failures of the validation flow
// itself surface as a single VALIDATION_ERROR issue, and individual
// rule failures surface as RULE_EXECUTION_ERROR issues without
// stopping the remaining rules.
//
// A nil rctx is legal. The engine always works on a context copy with
// EntityType forced to the method argument, so a caller-supplied
// EntityType is overwritten, never trusted.
func (e *Engine) ValidateEntity(ctx context.Context, entityType string, entity rule.Entity, rctx *rule.Context) *validation.Result {
	start := time.Now()

	hash, err := validation.HashEntity(entity)
	if err != nil {
		return e.flowError(entityType, fmt.Errorf("hash entity: %w", err))
	}

	// Cache lookup: a hit returns the stored result unchanged, with no
	// rule re-execution and no stats.
	var key string
	if e.cache != nil {
		key = cacheKey(entityType, entity, hash)
		if cached, ok := e.cache.get(key, hash); ok {
			slog.Debug("validation cache hit", "entity_type", entityType, "key", key)
			if e.metrics != nil {
				e.metrics.CacheHits.Inc()
			}
			return cached
		}
		if e.metrics != nil {
			e.metrics.CacheMisses.Inc()
		}
	}

	rules := e.RulesFor(entityType)
	if len(rules) == 0 {
		return validation.NewResult()
	}

	rctx = rctx.WithEntityType(entityType)
	if rctx.CorrelationID == "" {
		rctx.CorrelationID = uuid.Must(uuid.NewV7()).String()
	}

	var merged *validation.Result
	if e.opts.EnableParallel && e.opts.MaxParallelRules > 1 {
		merged = e.executeParallel(ctx, rules, entity, rctx)
	} else {
		merged = e.executeSequential(ctx, rules, entity, rctx)
	}

	if e.cache != nil {
		e.cache.put(key, hash, merged)
	}

	outcome := "valid"
	if !merged.IsValid() {
		outcome = "invalid"
	}
	if e.metrics != nil {
		e.metrics.ValidationsTotal.WithLabelValues(entityType, outcome).Inc()
	}
	slog.Debug("entity validated",
		"entity_type", entityType,
		"outcome", outcome,
		"issues", merged.Len(),
		"duration", time.Since(start),
	)
	return merged
}

// flowError converts an engine-level failure into a single-error
// result. The engine contract is to return data, not errors.
func (e *Engine) flowError(entityType string, err error) *validation.Result {
	slog.Error("validation flow failed", "entity_type", entityType, "error", err)
	res := validation.NewResult()
	res.AddError(CodeValidationError, fmt.Sprintf("validation failed: %v", err))
	if e.metrics != nil {
		e.metrics.ValidationsTotal.WithLabelValues(entityType, "error").Inc()
	}
	return res
}

// executeSequential runs rules in resolved order, merging as it goes.
// With StopOnFirstError, execution stops as soon as the merged result
// contains any error.
func (e *Engine) executeSequential(ctx context.Context, rules []rule.Rule, entity rule.Entity, rctx *rule.Context) *validation.Result {
	merged := validation.NewResult()

	for _, r := range rules {
		res := e.executeRule(ctx, r, entity, rctx)
		if res == nil {
			continue // skipped: disabled or condition false
		}
		merged.Merge(res)
		if e.opts.StopOnFirstError && !merged.IsValid() {
			break
		}
	}
	return merged
}

// executeParallel partitions rules into fixed-size chunks and runs each
// chunk's rules concurrently, merging chunk results in rule order.
// StopOnFirstError is honored both when merging within a chunk and
// before starting the next chunk.
func (e *Engine) executeParallel(ctx context.Context, rules []rule.Rule, entity rule.Entity, rctx *rule.Context) *validation.Result {
	merged := validation.NewResult()
	chunkSize := e.opts.MaxParallelRules

	for lo := 0; lo < len(rules); lo += chunkSize {
		hi := lo + chunkSize
		if hi > len(rules) {
			hi = len(rules)
		}
		chunk := rules[lo:hi]

		results := make([]*validation.Result, len(chunk))
		var wg sync.WaitGroup
		for i, r := range chunk {
			wg.Add(1)
			go func(i int, r rule.Rule) {
				defer wg.Done()
				results[i] = e.executeRule(ctx, r, entity, rctx)
			}(i, r)
		}
		wg.Wait()

		stop := false
		for _, res := range results {
			if res == nil {
				continue
			}
			merged.Merge(res)
			if e.opts.StopOnFirstError && !merged.IsValid() {
				stop = true
				break
			}
		}
		if stop {
			break
		}
	}
	return merged
}

// executeRule runs one rule with full isolation. Returns nil when the
// rule is skipped (disabled or condition false). A rule that returns an
// error or panics contributes a single RULE_EXECUTION_ERROR issue and
// never aborts the batch.
func (e *Engine) executeRule(ctx context.Context, r rule.Rule, entity rule.Entity, rctx *rule.Context) (out *validation.Result) {
	if !r.Enabled() {
		return nil
	}

	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("rule panicked", "rule", r.Name(), "panic", rec)
			out = ruleFailure(r.Name(), fmt.Errorf("panic: %v", rec))
			e.recordExecution(r, rctx, start, out)
		}
	}()

	if !r.Applies(ctx, entity, rctx) {
		return nil
	}

	res, err := r.Validate(ctx, entity, rctx)
	if err != nil {
		slog.Warn("rule execution failed", "rule", r.Name(), "error", err)
		out = ruleFailure(r.Name(), err)
		e.recordExecution(r, rctx, start, out)
		return out
	}
	if res == nil {
		res = validation.NewResult()
	}
	res.StampRuleName(r.Name())

	e.recordExecution(r, rctx, start, res)
	return res
}

// ruleFailure builds the isolation issue for a failed rule.
func ruleFailure(name string, err error) *validation.Result {
	res := validation.NewResult()
	res.AddIssue(validation.Issue{
		Severity: validation.SeverityError,
		Code:     CodeRuleExecutionError,
		Message:  fmt.Sprintf("rule %q failed to execute: %v", name, err),
		RuleName: name,
		Context:  map[string]any{"error": err.Error()},
	})
	return res
}

func (e *Engine) recordExecution(r rule.Rule, rctx *rule.Context, start time.Time, res *validation.Result) {
	elapsed := time.Since(start)
	if e.metrics != nil {
		e.metrics.RuleDuration.WithLabelValues(r.Name()).Observe(elapsed.Seconds())
	}
	if e.stats == nil {
		return
	}
	e.stats.record(rctx.EntityType, rctx.CorrelationID, RuleExecution{
		RuleName:     r.Name(),
		Duration:     elapsed,
		Passed:       res.IsValid(),
		ErrorCount:   res.ErrorCount(),
		WarningCount: res.WarningCount(),
	})
}

// Statistics returns a snapshot of recorded rule executions, keyed by
// "<entityType>-<correlationID>". Empty when stats are disabled.
func (e *Engine) Statistics() map[string][]RuleExecution {
	if e.stats == nil {
		return map[string][]RuleExecution{}
	}
	return e.stats.snapshot()
}

// ClearStatistics drops all recorded executions. The stats map grows
// unbounded otherwise.
func (e *Engine) ClearStatistics() {
	if e.stats != nil {
		e.stats.clear()
	}
}

// ClearCache drops every cached validation result.
func (e *Engine) ClearCache() {
	if e.cache != nil {
		e.cache.clear()
	}
}

// CacheLen returns the number of cached results. Zero when caching is
// disabled.
func (e *Engine) CacheLen() int {
	if e.cache == nil {
		return 0
	}
	return e.cache.len()
}

// updateRuleGauge refreshes the registered-rules metric.
// Caller holds e.mu.
func (e *Engine) updateRuleGauge() {
	if e.metrics == nil {
		return
	}
	n := len(e.global)
	for _, list := range e.typed {
		n += len(list)
	}
	e.metrics.RegisteredRules.Set(float64(n))
}

// sortByPriority stable-sorts a rule list ascending by priority.
func sortByPriority(list []rule.Rule) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Priority() < list[j].Priority()
	})
}
