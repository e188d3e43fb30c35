package ruleconfig

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/vigil/rule"
)

// Loader reads configuration from files, the environment, or plain
// maps, and builds rules from declarative RuleConfig entries.
//
// AllowExpressions gates CEL expression rules. Configuration files are
// a trust boundary: a file that can inject executable logic must be
// explicitly opted into, so expressions are rejected by default.
type Loader struct {
	AllowExpressions bool
}

// LoadFile reads a configuration file, validates it against the CUE
// schema, and returns the parsed Config. The format is chosen by
// extension: .yaml/.yml parse as YAML, anything else as JSON.
//
// A missing file is not an error: the prior configuration is returned
// unchanged with a warning logged. A file that exists but fails to
// parse or validate is an error that callers must handle.
func (l *Loader) LoadFile(path string, prior Config) (Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		slog.Warn("configuration file not found, keeping prior configuration", "path", path)
		return prior, nil
	}
	if err != nil {
		return prior, fmt.Errorf("read configuration %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		// Normalize YAML to JSON so schema validation has one input shape.
		var raw map[string]any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return prior, fmt.Errorf("parse YAML configuration %s: %w", path, err)
		}
		data, err = json.Marshal(raw)
		if err != nil {
			return prior, fmt.Errorf("normalize YAML configuration %s: %w", path, err)
		}
	}

	if err := ValidateSchema(data); err != nil {
		return prior, fmt.Errorf("validate configuration %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return prior, fmt.Errorf("decode configuration %s: %w", path, err)
	}

	slog.Info("configuration loaded", "path", path,
		"global_rules", len(cfg.GlobalRules),
		"entity_types", len(cfg.EntityRules),
	)
	return cfg, nil
}

// FromMap builds a Config from an in-memory object, applying the same
// schema validation as LoadFile.
func (l *Loader) FromMap(raw map[string]any) (Config, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return Config{}, fmt.Errorf("encode configuration object: %w", err)
	}
	if err := ValidateSchema(data); err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode configuration object: %w", err)
	}
	return cfg, nil
}

// Environment variable names consumed by LoadEnv.
const (
	EnvEnableCache         = "BUSINESS_RULES_ENABLE_CACHE"
	EnvCacheTTL            = "BUSINESS_RULES_CACHE_TTL"
	EnvMaxCacheSize        = "BUSINESS_RULES_MAX_CACHE_SIZE"
	EnvParallelExecution   = "BUSINESS_RULES_PARALLEL_EXECUTION"
	EnvMaxParallel         = "BUSINESS_RULES_MAX_PARALLEL"
	EnvPerformanceTracking = "BUSINESS_RULES_PERFORMANCE_TRACKING"
	EnvStopOnError         = "BUSINESS_RULES_STOP_ON_ERROR"
	envFeaturePrefix       = "BUSINESS_RULES_FEATURE_"
)

// LoadEnv overlays environment variables onto a configuration.
// Unset variables leave the corresponding field untouched; malformed
// values are skipped with a warning rather than failing the load.
func (l *Loader) LoadEnv(cfg Config) Config {
	if v, ok := envBool(EnvEnableCache); ok {
		cfg.Engine.EnableCache = &v
	}
	if v, ok := envInt64(EnvCacheTTL); ok {
		cfg.Engine.CacheTTL = &v
	}
	if v, ok := envInt(EnvMaxCacheSize); ok {
		cfg.Engine.MaxCacheSize = &v
	}
	if v, ok := envBool(EnvParallelExecution); ok {
		cfg.Engine.EnableParallelExecution = &v
	}
	if v, ok := envInt(EnvMaxParallel); ok {
		cfg.Engine.MaxParallelRules = &v
	}
	if v, ok := envBool(EnvPerformanceTracking); ok {
		cfg.Engine.EnablePerformanceTracking = &v
	}
	if v, ok := envBool(EnvStopOnError); ok {
		cfg.Engine.StopOnFirstError = &v
	}

	for _, kv := range os.Environ() {
		name, value, found := strings.Cut(kv, "=")
		if !found || !strings.HasPrefix(name, envFeaturePrefix) {
			continue
		}
		flag := strings.ToLower(strings.TrimPrefix(name, envFeaturePrefix))
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			slog.Warn("skipping malformed feature flag", "var", name, "value", value)
			continue
		}
		if cfg.Features == nil {
			cfg.Features = make(map[string]bool)
		}
		cfg.Features[flag] = enabled
	}
	return cfg
}

func envBool(name string) (bool, bool) {
	raw, ok := os.LookupEnv(name)
	if !ok {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		slog.Warn("skipping malformed environment variable", "var", name, "value", raw)
		return false, false
	}
	return v, true
}

func envInt(name string) (int, bool) {
	raw, ok := os.LookupEnv(name)
	if !ok {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		slog.Warn("skipping malformed environment variable", "var", name, "value", raw)
		return 0, false
	}
	return v, true
}

func envInt64(name string) (int64, bool) {
	raw, ok := os.LookupEnv(name)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		slog.Warn("skipping malformed environment variable", "var", name, "value", raw)
		return 0, false
	}
	return v, true
}

// BuildRule constructs a rule from a declarative entry.
func (l *Loader) BuildRule(rc RuleConfig) (rule.Rule, error) {
	if rc.Name == "" {
		return nil, fmt.Errorf("rule config missing name")
	}

	var opts []rule.Option
	if rc.Description != "" {
		opts = append(opts, rule.WithDescription(rc.Description))
	}
	if rc.Priority != nil {
		opts = append(opts, rule.WithPriority(rule.Priority(*rc.Priority)))
	}
	if len(rc.AppliesTo) > 0 {
		opts = append(opts, rule.WithAppliesTo(rc.AppliesTo...))
	}
	if rc.Enabled != nil && !*rc.Enabled {
		opts = append(opts, rule.Disabled())
	}

	ruleType := rc.Type
	if ruleType == "" && rc.Expr != "" {
		ruleType = TypeExpr
	}

	switch ruleType {
	case TypeRequired:
		fields, err := cfgStrings(rc.Config, "fields")
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", rc.Name, err)
		}
		return rule.NewRequiredField(rc.Name, fields, opts...), nil

	case TypePattern:
		field, err := cfgString(rc.Config, "field")
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", rc.Name, err)
		}
		pattern, err := cfgString(rc.Config, "pattern")
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", rc.Name, err)
		}
		return rule.NewPattern(rc.Name, field, pattern, opts...)

	case TypeRange:
		field, err := cfgString(rc.Config, "field")
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", rc.Name, err)
		}
		bounds := rule.RangeBounds{Inclusive: cfgBool(rc.Config, "inclusive", true)}
		if v, ok := cfgFloat(rc.Config, "min"); ok {
			bounds.Min = rule.Bound(v)
		}
		if v, ok := cfgFloat(rc.Config, "max"); ok {
			bounds.Max = rule.Bound(v)
		}
		return rule.NewRange(rc.Name, field, bounds, opts...), nil

	case TypeConditionalRequired:
		field, err := cfgString(rc.Config, "field")
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", rc.Name, err)
		}
		op, err := cfgString(rc.Config, "operator")
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", rc.Name, err)
		}
		required, err := cfgStrings(rc.Config, "required")
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", rc.Name, err)
		}
		return rule.NewConditionalRequired(rc.Name, field, rule.CompareOp(op), rc.Config["value"], required, opts...), nil

	case TypeDateRange:
		start, err := cfgString(rc.Config, "startField")
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", rc.Name, err)
		}
		end, err := cfgString(rc.Config, "endField")
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", rc.Name, err)
		}
		dcfg := rule.DateRangeConfig{Inclusive: cfgBool(rc.Config, "inclusive", true)}
		if v, ok := cfgFloat(rc.Config, "minDays"); ok {
			dcfg.MinDays = &v
		}
		if v, ok := cfgFloat(rc.Config, "maxDays"); ok {
			dcfg.MaxDays = &v
		}
		return rule.NewDateRange(rc.Name, start, end, dcfg, opts...), nil

	case TypeSum:
		fields, err := cfgStrings(rc.Config, "fields")
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", rc.Name, err)
		}
		op, err := cfgString(rc.Config, "operator")
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", rc.Name, err)
		}
		if target, ok := cfgFloat(rc.Config, "value"); ok {
			return rule.NewSumAgainstValue(rc.Name, fields, rule.CompareOp(op), target, opts...), nil
		}
		targetField, err := cfgString(rc.Config, "targetField")
		if err != nil {
			return nil, fmt.Errorf("rule %s: needs either value or targetField", rc.Name)
		}
		return rule.NewSumAgainstField(rc.Name, fields, rule.CompareOp(op), targetField, opts...), nil

	case TypeMutuallyExclusive:
		fields, err := cfgStrings(rc.Config, "fields")
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", rc.Name, err)
		}
		r := rule.NewMutuallyExclusive(rc.Name, fields, opts...)
		if cfgBool(rc.Config, "requireOne", false) {
			r.RequireOne()
		}
		return r, nil

	case TypeDependentFields:
		field, err := cfgString(rc.Config, "field")
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", rc.Name, err)
		}
		dependents, err := cfgStrings(rc.Config, "dependents")
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", rc.Name, err)
		}
		return rule.NewDependentFields(rc.Name, field, dependents, opts...), nil

	case TypePercentageSum:
		fields, err := cfgStrings(rc.Config, "fields")
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", rc.Name, err)
		}
		tolerance, ok := cfgFloat(rc.Config, "tolerance")
		if !ok {
			tolerance = 0.01
		}
		return rule.NewPercentageSum(rc.Name, fields, tolerance, opts...), nil

	case TypeExpr:
		if !l.AllowExpressions {
			return nil, fmt.Errorf("rule %s: expression rules are disabled; enable Loader.AllowExpressions to accept them", rc.Name)
		}
		if rc.Expr == "" {
			return nil, fmt.Errorf("rule %s: expr rule with empty expression", rc.Name)
		}
		return rule.NewExpr(rc.Name, rc.Expr, rc.Message, opts...)

	default:
		return nil, fmt.Errorf("rule %s: unknown rule type %q", rc.Name, rc.Type)
	}
}

func cfgString(m map[string]any, key string) (string, error) {
	v, ok := m[key]
	if !ok {
		return "", fmt.Errorf("config key %q is required", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("config key %q must be a non-empty string", key)
	}
	return s, nil
}

func cfgStrings(m map[string]any, key string) ([]string, error) {
	v, ok := m[key]
	if !ok {
		return nil, fmt.Errorf("config key %q is required", key)
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("config key %q must be a string list", key)
	}
	out := make([]string, 0, len(list))
	for _, elem := range list {
		s, ok := elem.(string)
		if !ok {
			return nil, fmt.Errorf("config key %q must contain only strings", key)
		}
		out = append(out, s)
	}
	return out, nil
}

func cfgFloat(m map[string]any, key string) (float64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func cfgBool(m map[string]any, key string, def bool) bool {
	v, ok := m[key]
	if !ok {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}
