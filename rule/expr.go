package rule

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/roach88/vigil/validation"
)

// exprCostLimit caps CEL evaluation cost so a configuration-supplied
// expression cannot exhaust the process.
const exprCostLimit = 1_000_000

// ExprRule evaluates a CEL boolean expression against the entity.
//
// This is the sandboxed replacement for executing raw code strings from
// configuration files: expressions are compiled and type-checked once
// at construction, run inside the CEL interpreter with a cost limit,
// and can only read the declared variables.
//
// Declared variables:
//
//	entity  - the entity under validation (dyn)
//	ctx     - rule context view: entityType, operation, userId,
//	          environment, metadata (dyn)
//
// The expression must evaluate to true for the entity to pass.
// Non-boolean outputs are treated as false.
type ExprRule struct {
	Meta
	source  string
	program cel.Program
	message string
}

// NewExpr compiles a CEL expression into a rule. Compilation errors are
// returned immediately so configuration loading can reject bad
// expressions up front.
func NewExpr(name, expression, message string, opts ...Option) (*ExprRule, error) {
	env, err := cel.NewEnv(
		cel.Variable("entity", cel.DynType),
		cel.Variable("ctx", cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("rule %s: create CEL environment: %w", name, err)
	}

	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("rule %s: compile expression: %w", name, issues.Err())
	}

	prog, err := env.Program(ast, cel.CostLimit(exprCostLimit))
	if err != nil {
		return nil, fmt.Errorf("rule %s: build program: %w", name, err)
	}

	if message == "" {
		message = fmt.Sprintf("expression %q evaluated to false", expression)
	}

	return &ExprRule{
		Meta:    NewMeta(name, opts...),
		source:  expression,
		program: prog,
		message: message,
	}, nil
}

// Source returns the original expression text.
func (r *ExprRule) Source() string { return r.source }

// Validate runs the compiled expression against the entity.
func (r *ExprRule) Validate(_ context.Context, entity Entity, rctx *Context) (*validation.Result, error) {
	result := validation.NewResult()

	vars := map[string]any{
		"entity": map[string]any(entity),
		"ctx":    contextVars(rctx),
	}

	out, _, err := r.program.Eval(vars)
	if err != nil {
		return nil, fmt.Errorf("evaluate expression: %w", err)
	}

	passed, _ := out.Value().(bool)
	if !passed {
		result.AddError(CodeExpressionFailed, r.message)
	}
	return result, nil
}

// contextVars renders the rule context as a plain map for CEL.
func contextVars(rctx *Context) map[string]any {
	if rctx == nil {
		return map[string]any{}
	}
	vars := map[string]any{
		"entityType":  rctx.EntityType,
		"operation":   string(rctx.Operation),
		"userId":      rctx.UserID,
		"environment": rctx.Environment,
	}
	if rctx.Metadata != nil {
		vars["metadata"] = rctx.Metadata
	}
	return vars
}
