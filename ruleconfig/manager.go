package ruleconfig

import (
	"fmt"
	"log/slog"
	"maps"
	"sync"

	"github.com/roach88/vigil/engine"
	"github.com/roach88/vigil/reliability"
	"github.com/roach88/vigil/rule"
)

// Manager owns a configuration and applies it to an engine and flag
// set. Construct one per engine; there is no package-level instance.
type Manager struct {
	loader *Loader
	engine *engine.Engine
	flags  *reliability.FlagSet

	mu  sync.Mutex
	cfg Config
	// names of rules installed by the last Apply, so Reload can
	// replace them without touching rules registered out of band
	installedGlobal []string
	installedTyped  map[string][]string
}

// NewManager wires a loader to an engine and flag set. The flag set may
// be nil when the caller does not use feature flags.
func NewManager(loader *Loader, eng *engine.Engine, flags *reliability.FlagSet) *Manager {
	if loader == nil {
		loader = &Loader{}
	}
	return &Manager{
		loader:         loader,
		engine:         eng,
		flags:          flags,
		installedTyped: make(map[string][]string),
	}
}

// Config returns the configuration from the last successful Apply.
func (m *Manager) Config() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

// Apply builds every declared rule, applies overrides, registers the
// rules with the engine, and installs feature flags. Any rule that
// fails to build aborts the whole apply before the engine is touched,
// so a bad configuration never leaves the engine half-updated.
func (m *Manager) Apply(cfg Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	globals := make([]rule.Rule, 0, len(cfg.GlobalRules))
	for _, rc := range cfg.GlobalRules {
		r, err := m.buildWithOverride(rc, cfg.Overrides)
		if err != nil {
			return fmt.Errorf("global rule: %w", err)
		}
		globals = append(globals, r)
	}

	typed := make(map[string][]rule.Rule, len(cfg.EntityRules))
	for entityType, rcs := range cfg.EntityRules {
		for _, rc := range rcs {
			r, err := m.buildWithOverride(rc, cfg.Overrides)
			if err != nil {
				return fmt.Errorf("entity %s: %w", entityType, err)
			}
			typed[entityType] = append(typed[entityType], r)
		}
	}

	// All rules built; now swap out what the previous Apply installed.
	for _, name := range m.installedGlobal {
		m.engine.UnregisterGlobal(name)
	}
	for entityType, names := range m.installedTyped {
		for _, name := range names {
			m.engine.Unregister(entityType, name)
		}
	}
	m.installedGlobal = m.installedGlobal[:0]
	m.installedTyped = make(map[string][]string)

	for _, r := range globals {
		m.engine.RegisterGlobal(r)
		m.installedGlobal = append(m.installedGlobal, r.Name())
	}
	for entityType, rs := range typed {
		for _, r := range rs {
			m.engine.Register(r, entityType)
			m.installedTyped[entityType] = append(m.installedTyped[entityType], r.Name())
		}
	}

	if m.flags != nil {
		for name, enabled := range cfg.Features {
			m.flags.Set(name, enabled)
		}
	}

	m.cfg = cfg
	slog.Info("configuration applied",
		"global_rules", len(globals),
		"entity_types", len(typed),
		"features", len(cfg.Features),
	)
	return nil
}

// LoadAndApply reads a file, overlays the environment, and applies the
// result. A missing file still applies environment overrides on top of
// the current configuration.
func (m *Manager) LoadAndApply(path string) error {
	cfg, err := m.loader.LoadFile(path, m.Config())
	if err != nil {
		return err
	}
	return m.Apply(m.loader.LoadEnv(cfg))
}

// buildWithOverride merges the named override into the declaration
// before building. Override config keys shallow-merge over declared
// config; enabled, priority and appliesTo replace when present.
func (m *Manager) buildWithOverride(rc RuleConfig, overrides map[string]Override) (rule.Rule, error) {
	ov, ok := overrides[rc.Name]
	if !ok {
		return m.loader.BuildRule(rc)
	}
	if ov.Enabled != nil {
		rc.Enabled = ov.Enabled
	}
	if ov.Priority != nil {
		rc.Priority = ov.Priority
	}
	if len(ov.AppliesTo) > 0 {
		rc.AppliesTo = ov.AppliesTo
	}
	if len(ov.Config) > 0 {
		merged := make(map[string]any, len(rc.Config)+len(ov.Config))
		maps.Copy(merged, rc.Config)
		maps.Copy(merged, ov.Config)
		rc.Config = merged
	}
	return m.loader.BuildRule(rc)
}
