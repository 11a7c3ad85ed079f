// Package policy evaluates operator-defined build policies. Preflight and
// validation results are surfaced as data; whether a warning fails the build
// is a policy decision, expressed as CEL rules over the build report.
package policy

import (
	"fmt"

	"github.com/edupack/edupack/internal/models"
	"github.com/google/cel-go/cel"
)

// Engine is the policy evaluation engine using CEL
type Engine struct {
	env *cel.Env
}

func NewEngine() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("input", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{env: env}, nil
}

// Evaluate checks every rule against the build report input. Rule errors
// (compile, eval, non-boolean result) fail the rule rather than the engine,
// so one broken rule cannot make a policy silently pass.
func (e *Engine) Evaluate(config *models.PolicyConfig, input map[string]any) ([]models.PolicyResult, error) {
	results := make([]models.PolicyResult, 0, len(config.Rules))

	for _, rule := range config.Rules {
		results = append(results, e.evaluateRule(rule, input))
	}

	return results, nil
}

// ruleSeverity defaults an unset severity to error; a rule that fails
// closed must also fail loud.
func ruleSeverity(rule models.PolicyRule) models.PolicySeverity {
	if rule.Severity == models.PolicySeverityWarn {
		return models.PolicySeverityWarn
	}
	return models.PolicySeverityError
}

func (e *Engine) evaluateRule(rule models.PolicyRule, input map[string]any) models.PolicyResult {
	severity := ruleSeverity(rule)

	ast, issues := e.env.Compile(rule.Expr)
	if issues != nil && issues.Err() != nil {
		return models.PolicyResult{
			RuleName:   rule.Name,
			Passed:     false,
			FailureMsg: fmt.Sprintf("CEL compile error: %v", issues.Err()),
			Severity:   models.PolicySeverityError,
		}
	}

	prg, err := e.env.Program(ast)
	if err != nil {
		return models.PolicyResult{
			RuleName:   rule.Name,
			Passed:     false,
			FailureMsg: fmt.Sprintf("CEL program error: %v", err),
			Severity:   models.PolicySeverityError,
		}
	}

	out, _, err := prg.Eval(map[string]any{
		"input": input,
	})
	if err != nil {
		return models.PolicyResult{
			RuleName:   rule.Name,
			Passed:     false,
			FailureMsg: fmt.Sprintf("CEL evaluation error: %v", err),
			Severity:   models.PolicySeverityError,
		}
	}

	passed, ok := out.Value().(bool)
	if !ok {
		return models.PolicyResult{
			RuleName:   rule.Name,
			Passed:     false,
			FailureMsg: fmt.Sprintf("Rule expression must return boolean, got %T", out.Value()),
			Severity:   models.PolicySeverityError,
		}
	}

	result := models.PolicyResult{
		RuleName: rule.Name,
		Passed:   passed,
		Severity: severity,
	}
	if !passed {
		result.FailureMsg = rule.FailureMsg
	}

	return result
}
