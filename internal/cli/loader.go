package cli

import (
	"encoding/json"
	"io"
	"os"

	"github.com/roach88/vigil/engine"
	"github.com/roach88/vigil/rule"
	"github.com/roach88/vigil/ruleconfig"
)

// buildEngine constructs an engine with the built-in entity rule sets
// installed and, when configPath is non-empty, the file's declared
// rules, overrides, and engine tuning applied on top. Environment
// overrides (BUSINESS_RULES_*) are always applied.
func buildEngine(configPath string) (*engine.Engine, error) {
	loader := &ruleconfig.Loader{}

	cfg := ruleconfig.Config{}
	if configPath != "" {
		loaded, err := loader.LoadFile(configPath, cfg)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "load configuration", err)
		}
		cfg = loaded
	}
	cfg = loader.LoadEnv(cfg)

	eng := engine.New(cfg.Engine.Options(engine.DefaultOptions()))
	engine.DefaultFactory().Install(eng)

	mgr := ruleconfig.NewManager(loader, eng, nil)
	if err := mgr.Apply(cfg); err != nil {
		return nil, WrapExitError(ExitCommandError, "apply configuration", err)
	}
	return eng, nil
}

// loadEntity reads a JSON object from a file, or from in when path is
// "-".
func loadEntity(path string, in io.Reader) (rule.Entity, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(in)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "read entity", err)
	}

	var entity rule.Entity
	if err := json.Unmarshal(data, &entity); err != nil {
		return nil, WrapExitError(ExitCommandError, "entity must be a JSON object", err)
	}
	return entity, nil
}
