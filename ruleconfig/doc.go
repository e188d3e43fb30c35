// Package ruleconfig loads declarative rule configuration from JSON or
// YAML files, environment variables, or in-memory maps, validates it
// against an embedded CUE schema, and applies it to an engine.
//
// The Loader turns RuleConfig entries into rule values. The Manager
// owns the lifecycle: it builds all rules, applies per-rule overrides,
// swaps the engine's registered set atomically from the caller's point
// of view, and installs feature flags. Expression rules are rejected
// unless the loader explicitly enables them, since configuration files
// are not trusted to carry executable logic by default.
package ruleconfig
