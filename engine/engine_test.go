package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vigil/rule"
	"github.com/roach88/vigil/validation"
)

// probeRule is a configurable test rule that counts Validate calls.
type probeRule struct {
	rule.Meta
	calls   atomic.Int64
	outcome func() *validation.Result
	err     error
	panics  bool
}

func newProbe(name string, outcome func() *validation.Result, opts ...rule.Option) *probeRule {
	return &probeRule{Meta: rule.NewMeta(name, opts...), outcome: outcome}
}

func (r *probeRule) Validate(_ context.Context, _ rule.Entity, _ *rule.Context) (*validation.Result, error) {
	r.calls.Add(1)
	if r.panics {
		panic("probe rule panic")
	}
	if r.err != nil {
		return nil, r.err
	}
	return r.outcome(), nil
}

func ok() *validation.Result { return validation.NewResult() }

func fail(code string) func() *validation.Result {
	return func() *validation.Result {
		res := validation.NewResult()
		res.AddError(code, "failed")
		return res
	}
}

func TestValidateEntity_NoRulesIsValid(t *testing.T) {
	e := New(Options{})

	res := e.ValidateEntity(context.Background(), "Ticket", rule.Entity{"id": 1}, nil)

	assert.True(t, res.IsValid())
	assert.Equal(t, 0, res.Len())
}

func TestRegister_ReplaceByName(t *testing.T) {
	e := New(Options{})
	first := newProbe("dup", fail("FIRST"))
	second := newProbe("dup", fail("SECOND"))

	e.Register(first, "Ticket")
	e.Register(second, "Ticket")

	rules := e.RulesFor("Ticket")
	require.Len(t, rules, 1)

	res := e.ValidateEntity(context.Background(), "Ticket", rule.Entity{}, nil)
	require.Equal(t, 1, res.ErrorCount())
	assert.Equal(t, "SECOND", res.Errors()[0].Code)
}

func TestRegister_PriorityOrdering(t *testing.T) {
	e := New(Options{})
	low := newProbe("low", fail("LOW"), rule.WithPriority(rule.PriorityLow))
	critical := newProbe("critical", fail("CRITICAL"), rule.WithPriority(rule.PriorityCritical))
	normal := newProbe("normal", fail("NORMAL"))

	// Register out of order; resolution must sort ascending by priority.
	e.Register(low, "Ticket")
	e.Register(critical, "Ticket")
	e.Register(normal, "Ticket")

	res := e.ValidateEntity(context.Background(), "Ticket", rule.Entity{}, nil)
	codes := make([]string, 0, 3)
	for _, issue := range res.Issues() {
		codes = append(codes, issue.Code)
	}
	assert.Equal(t, []string{"CRITICAL", "NORMAL", "LOW"}, codes)
}

func TestRegister_AppliesToFanOut(t *testing.T) {
	e := New(Options{})
	r := newProbe("shared", fail("X"), rule.WithAppliesTo("Ticket", "Task"))

	// Explicit registration under Ticket; AppliesTo adds Task but must
	// not duplicate Ticket.
	e.Register(r, "Ticket")

	assert.Len(t, e.RulesFor("Ticket"), 1)
	assert.Len(t, e.RulesFor("Task"), 1)
}

func TestRegisterGlobal_EvaluatedBeforeTyped(t *testing.T) {
	e := New(Options{})

	// A deferred-priority global rule still runs before a critical
	// type-specific rule: two ordered runs, not one merged sort.
	globalDeferred := newProbe("global", fail("GLOBAL"), rule.WithPriority(rule.PriorityDeferred))
	typedCritical := newProbe("typed", fail("TYPED"), rule.WithPriority(rule.PriorityCritical))

	e.RegisterGlobal(globalDeferred)
	e.Register(typedCritical, "Ticket")

	res := e.ValidateEntity(context.Background(), "Ticket", rule.Entity{}, nil)
	require.Equal(t, 2, res.ErrorCount())
	assert.Equal(t, "GLOBAL", res.Issues()[0].Code)
	assert.Equal(t, "TYPED", res.Issues()[1].Code)
}

func TestUnregister(t *testing.T) {
	e := New(Options{})
	e.Register(newProbe("r1", ok), "Ticket")
	e.RegisterGlobal(newProbe("g1", ok))

	assert.True(t, e.Unregister("Ticket", "r1"))
	assert.False(t, e.Unregister("Ticket", "r1"), "second removal finds nothing")
	assert.False(t, e.Unregister("Ticket", "missing"))

	assert.True(t, e.UnregisterGlobal("g1"))
	assert.False(t, e.UnregisterGlobal("g1"))
}

func TestValidateEntity_StopOnFirstError(t *testing.T) {
	e := New(Options{StopOnFirstError: true})

	failing := newProbe("always_fails", fail("E"), rule.WithPriority(rule.PriorityCritical))
	counter := newProbe("counter", ok, rule.WithPriority(rule.PriorityNormal))

	e.Register(failing, "Ticket")
	e.Register(counter, "Ticket")

	res := e.ValidateEntity(context.Background(), "Ticket", rule.Entity{}, nil)

	assert.False(t, res.IsValid())
	assert.Equal(t, int64(1), failing.calls.Load())
	assert.Equal(t, int64(0), counter.calls.Load(), "later rule must not run after an error")
}

func TestValidateEntity_SkipsDisabledAndConditionFalse(t *testing.T) {
	e := New(Options{})

	disabled := newProbe("disabled", fail("D"), rule.Disabled())
	gated := newProbe("gated", fail("G"), rule.WithCondition(func(entity rule.Entity, _ *rule.Context) bool {
		return entity["kind"] == "special"
	}))

	e.Register(disabled, "Ticket")
	e.Register(gated, "Ticket")

	res := e.ValidateEntity(context.Background(), "Ticket", rule.Entity{"kind": "plain"}, nil)
	assert.True(t, res.IsValid())
	assert.Equal(t, int64(0), disabled.calls.Load())
	assert.Equal(t, int64(0), gated.calls.Load())
}

func TestValidateEntity_RuleErrorIsolated(t *testing.T) {
	e := New(Options{})

	boom := newProbe("boom", ok, rule.WithPriority(rule.PriorityCritical))
	boom.err = errors.New("rule exploded")
	after := newProbe("after", ok, rule.WithPriority(rule.PriorityNormal))

	e.Register(boom, "Ticket")
	e.Register(after, "Ticket")

	res := e.ValidateEntity(context.Background(), "Ticket", rule.Entity{}, nil)

	require.Equal(t, 1, res.ErrorCount())
	issue := res.Errors()[0]
	assert.Equal(t, CodeRuleExecutionError, issue.Code)
	assert.Equal(t, "boom", issue.RuleName)
	assert.Equal(t, int64(1), after.calls.Load(), "later rules still run")
}

func TestValidateEntity_RulePanicIsolated(t *testing.T) {
	e := New(Options{})

	panicker := newProbe("panicker", ok)
	panicker.panics = true
	e.Register(panicker, "Ticket")

	res := e.ValidateEntity(context.Background(), "Ticket", rule.Entity{}, nil)

	require.Equal(t, 1, res.ErrorCount())
	assert.Equal(t, CodeRuleExecutionError, res.Errors()[0].Code)
}

func TestValidateEntity_StampsRuleName(t *testing.T) {
	e := New(Options{})
	e.Register(newProbe("stamper", fail("E")), "Ticket")

	res := e.ValidateEntity(context.Background(), "Ticket", rule.Entity{}, nil)
	require.Equal(t, 1, res.ErrorCount())
	assert.Equal(t, "stamper", res.Errors()[0].RuleName)
}

func TestValidateEntity_ContextEntityTypeForced(t *testing.T) {
	e := New(Options{})

	var seen string
	spy := newProbe("spy", ok, rule.WithCondition(func(_ rule.Entity, rctx *rule.Context) bool {
		seen = rctx.EntityType
		return false
	}))
	e.Register(spy, "Ticket")

	caller := &rule.Context{EntityType: "WrongType", Operation: rule.OpCreate}
	e.ValidateEntity(context.Background(), "Ticket", rule.Entity{}, caller)

	assert.Equal(t, "Ticket", seen, "method argument wins over caller-supplied entity type")
	assert.Equal(t, "WrongType", caller.EntityType, "caller's context is not mutated")
}

func TestValidateEntity_ParallelMatchesSequentialOrder(t *testing.T) {
	mk := func(parallel bool) *validation.Result {
		e := New(Options{EnableParallel: parallel, MaxParallelRules: 2})
		for _, spec := range []struct {
			name string
			code string
			prio rule.Priority
		}{
			{"a", "A", rule.PriorityCritical},
			{"b", "B", rule.PriorityHigh},
			{"c", "C", rule.PriorityNormal},
			{"d", "D", rule.PriorityLow},
			{"e", "E", rule.PriorityDeferred},
		} {
			e.Register(newProbe(spec.name, fail(spec.code), rule.WithPriority(spec.prio)), "Ticket")
		}
		return e.ValidateEntity(context.Background(), "Ticket", rule.Entity{}, nil)
	}

	seq := mk(false)
	par := mk(true)

	codes := func(res *validation.Result) []string {
		out := make([]string, 0, res.Len())
		for _, issue := range res.Issues() {
			out = append(out, issue.Code)
		}
		return out
	}

	assert.Equal(t, codes(seq), codes(par), "batched execution preserves merge order")
	assert.Equal(t, []string{"A", "B", "C", "D", "E"}, codes(seq))
}

func TestValidateEntity_ParallelStopOnFirstErrorAcrossChunks(t *testing.T) {
	e := New(Options{EnableParallel: true, MaxParallelRules: 2, StopOnFirstError: true})

	first := newProbe("first", fail("E"), rule.WithPriority(rule.PriorityCritical))
	second := newProbe("second", ok, rule.WithPriority(rule.PriorityHigh))
	third := newProbe("third", ok, rule.WithPriority(rule.PriorityNormal))

	e.Register(first, "Ticket")
	e.Register(second, "Ticket")
	e.Register(third, "Ticket")

	e.ValidateEntity(context.Background(), "Ticket", rule.Entity{}, nil)

	// first and second share a chunk, so both run; third's chunk must not start.
	assert.Equal(t, int64(1), first.calls.Load())
	assert.Equal(t, int64(0), third.calls.Load())
}

func TestStatistics(t *testing.T) {
	e := New(Options{EnableStats: true})
	e.Register(newProbe("tracked", fail("E")), "Ticket")

	rctx := &rule.Context{CorrelationID: "corr-1"}
	e.ValidateEntity(context.Background(), "Ticket", rule.Entity{}, rctx)

	stats := e.Statistics()
	execs, ok := stats["Ticket-corr-1"]
	require.True(t, ok)
	require.Len(t, execs, 1)
	assert.Equal(t, "tracked", execs[0].RuleName)
	assert.False(t, execs[0].Passed)
	assert.Equal(t, 1, execs[0].ErrorCount)

	e.ClearStatistics()
	assert.Empty(t, e.Statistics())
}

func TestStatistics_GeneratedCorrelationID(t *testing.T) {
	e := New(Options{EnableStats: true})
	e.Register(newProbe("tracked", ok), "Ticket")

	e.ValidateEntity(context.Background(), "Ticket", rule.Entity{}, nil)

	stats := e.Statistics()
	require.Len(t, stats, 1, "a correlation id is generated when the caller supplies none")
}
