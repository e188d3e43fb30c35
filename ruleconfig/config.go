package ruleconfig

import (
	"time"

	"github.com/roach88/vigil/engine"
)

// Config is the on-disk configuration shape: engine tuning, declarative
// rules (global and per entity type), per-rule overrides, and feature
// flags.
type Config struct {
	Engine      EngineConfig            `json:"engine" yaml:"engine"`
	GlobalRules []RuleConfig            `json:"globalRules" yaml:"globalRules"`
	EntityRules map[string][]RuleConfig `json:"entityRules" yaml:"entityRules"`
	Overrides   map[string]Override     `json:"overrides" yaml:"overrides"`
	Features    map[string]bool         `json:"features" yaml:"features"`
}

// EngineConfig mirrors engine.Options with optional fields so a file
// can set only what it cares about. CacheTTL is milliseconds.
type EngineConfig struct {
	EnableCache               *bool  `json:"enableCache" yaml:"enableCache"`
	CacheTTL                  *int64 `json:"cacheTTL" yaml:"cacheTTL"`
	MaxCacheSize              *int   `json:"maxCacheSize" yaml:"maxCacheSize"`
	EnableParallelExecution   *bool  `json:"enableParallelExecution" yaml:"enableParallelExecution"`
	MaxParallelRules          *int   `json:"maxParallelRules" yaml:"maxParallelRules"`
	EnablePerformanceTracking *bool  `json:"enablePerformanceTracking" yaml:"enablePerformanceTracking"`
	StopOnFirstError          *bool  `json:"stopOnFirstError" yaml:"stopOnFirstError"`
}

// Options merges the file's engine section over the given defaults.
func (c EngineConfig) Options(defaults engine.Options) engine.Options {
	opts := defaults
	if c.EnableCache != nil {
		opts.EnableCache = *c.EnableCache
	}
	if c.CacheTTL != nil {
		opts.CacheTTL = time.Duration(*c.CacheTTL) * time.Millisecond
	}
	if c.MaxCacheSize != nil {
		opts.MaxCacheSize = *c.MaxCacheSize
	}
	if c.EnableParallelExecution != nil {
		opts.EnableParallel = *c.EnableParallelExecution
	}
	if c.MaxParallelRules != nil {
		opts.MaxParallelRules = *c.MaxParallelRules
	}
	if c.EnablePerformanceTracking != nil {
		opts.EnableStats = *c.EnablePerformanceTracking
	}
	if c.StopOnFirstError != nil {
		opts.StopOnFirstError = *c.StopOnFirstError
	}
	return opts
}

// RuleConfig declares one rule. Type selects the variant; Config
// carries the variant's parameters. Expr builds a CEL expression rule
// instead — expression rules are only honored when the loader has
// expressions enabled.
type RuleConfig struct {
	Name        string         `json:"name" yaml:"name"`
	Type        string         `json:"type" yaml:"type"`
	Description string         `json:"description" yaml:"description"`
	Enabled     *bool          `json:"enabled" yaml:"enabled"`
	Priority    *int           `json:"priority" yaml:"priority"`
	AppliesTo   []string       `json:"appliesTo" yaml:"appliesTo"`
	Config      map[string]any `json:"config" yaml:"config"`
	Expr        string         `json:"expr" yaml:"expr"`
	Message     string         `json:"message" yaml:"message"`
}

// Override adjusts an already-declared rule in place at load time.
type Override struct {
	Enabled   *bool          `json:"enabled" yaml:"enabled"`
	Priority  *int           `json:"priority" yaml:"priority"`
	AppliesTo []string       `json:"appliesTo" yaml:"appliesTo"`
	Config    map[string]any `json:"config" yaml:"config"`
}

// Rule variant names accepted in RuleConfig.Type.
const (
	TypeRequired            = "required"
	TypePattern             = "pattern"
	TypeRange               = "range"
	TypeConditionalRequired = "conditionalRequired"
	TypeDateRange           = "dateRange"
	TypeSum                 = "sum"
	TypeMutuallyExclusive   = "mutuallyExclusive"
	TypeDependentFields     = "dependentFields"
	TypePercentageSum       = "percentageSum"
	TypeExpr                = "expr"
)
