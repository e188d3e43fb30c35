package engine

import (
	"fmt"
	"sort"

	"github.com/roach88/vigil/rule"
)

// RuleSetBuilder constructs the rule set for one entity type. Builders
// run once per Install, so the returned rules are fresh objects each
// time.
type RuleSetBuilder func() []rule.Rule

// RuleSetFactory maps entity type names to rule-set builders. It is an
// explicitly constructed registry: create one, register builders, and
// install it into an engine. There is no hidden process-wide instance.
type RuleSetFactory struct {
	builders map[string]RuleSetBuilder
}

// NewRuleSetFactory creates an empty factory.
func NewRuleSetFactory() *RuleSetFactory {
	return &RuleSetFactory{builders: make(map[string]RuleSetBuilder)}
}

// RegisterSet associates an entity type with a rule-set builder,
// replacing any previous builder for that type.
func (f *RuleSetFactory) RegisterSet(entityType string, builder RuleSetBuilder) {
	f.builders[entityType] = builder
}

// EntityTypes returns the registered type names, sorted.
func (f *RuleSetFactory) EntityTypes() []string {
	types := make([]string, 0, len(f.builders))
	for et := range f.builders {
		types = append(types, et)
	}
	sort.Strings(types)
	return types
}

// Build constructs the rule set for one entity type.
func (f *RuleSetFactory) Build(entityType string) ([]rule.Rule, error) {
	builder, ok := f.builders[entityType]
	if !ok {
		return nil, fmt.Errorf("no rule set registered for entity type %q", entityType)
	}
	return builder(), nil
}

// Install builds every registered rule set and registers the rules
// into the engine under their entity type.
func (f *RuleSetFactory) Install(e *Engine) {
	for _, entityType := range f.EntityTypes() {
		rules := f.builders[entityType]()
		for _, r := range rules {
			e.Register(r, entityType)
		}
	}
}
