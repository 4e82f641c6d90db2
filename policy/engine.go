// Package policy evaluates pathway-switch policy with OPA.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

// Decision is the outcome of a switch-policy evaluation.
type Decision string

const (
	DecisionAllow               Decision = "allow"
	DecisionRequireConfirmation Decision = "require_confirmation"
	DecisionBlock               Decision = "block"
)

// Engine is the OPA policy engine for pathway switches.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.switch_policy.decision"),
		rego.Module("switch_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// SwitchInput is the input document for a switch evaluation.
type SwitchInput struct {
	RiskLevel       string  `json:"risk_level"`
	ProgressLoss    float64 `json:"progress_loss"`
	UserConfirmed   bool    `json:"user_confirmed"`
	PathwaySwitches int     `json:"pathway_switches"`
}

// Evaluate returns the policy decision for a proposed pathway switch.
func (e *Engine) Evaluate(ctx context.Context, input SwitchInput) (Decision, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		// The policy defines a default; an empty result means the module is
		// broken, not that the switch is allowed.
		return "", fmt.Errorf("policy returned no decision")
	}

	val := results[0].Expressions[0].Value
	s, ok := val.(string)
	if !ok {
		return "", fmt.Errorf("policy returned unexpected type %T", val)
	}
	return Decision(s), nil
}

// DefaultPolicy is the default switch policy: confirmation for any non-low
// risk switch the user has not confirmed, and a hard block once a session
// degenerates into pathway thrashing.
const DefaultPolicy = `
package switch_policy

default decision = "allow"

decision = "require_confirmation" {
	input.risk_level != "low"
	not input.user_confirmed
	input.pathway_switches < 8
}

decision = "block" {
	input.pathway_switches >= 8
}
`
