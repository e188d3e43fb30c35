package ruleconfig

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cuejson "cuelang.org/go/encoding/json"
)

//go:embed schema.cue
var schemaCUE string

// ValidateSchema checks raw JSON configuration bytes against the
// embedded CUE schema. Returns a descriptive error on the first
// constraint violation.
func ValidateSchema(data []byte) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile embedded schema: %w", err)
	}
	configDef := schema.LookupPath(cue.ParsePath("#Config"))
	if err := configDef.Err(); err != nil {
		return fmt.Errorf("lookup #Config: %w", err)
	}

	expr, err := cuejson.Extract("config", data)
	if err != nil {
		return fmt.Errorf("parse configuration: %w", err)
	}
	value := ctx.BuildExpr(expr)
	if err := value.Err(); err != nil {
		return fmt.Errorf("build configuration value: %w", err)
	}

	unified := configDef.Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("configuration schema violation: %w", err)
	}
	return nil
}
