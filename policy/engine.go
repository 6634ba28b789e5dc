package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

// Engine is the OPA policy engine for underwriting decisions.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.loan_policy.decision"),
		rego.Module("loan_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// NewDefaultEngine prepares DefaultPolicy.
func NewDefaultEngine(ctx context.Context) (*Engine, error) {
	return NewEngine(ctx, DefaultPolicy)
}

// Decide evaluates the decision for the given scores.
// Returns APPROVED, CONDITIONAL APPROVAL or REJECTED.
func (e *Engine) Decide(ctx context.Context, riskScore, verificationScore float64) (string, error) {
	input := map[string]interface{}{
		"risk_score":         riskScore,
		"verification_score": verificationScore,
	}
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return "", fmt.Errorf("policy produced no decision")
	}

	val := results[0].Expressions[0].Value
	s, ok := val.(string)
	if !ok {
		return "", fmt.Errorf("unexpected decision type %T", val)
	}
	return s, nil
}

// DefaultPolicy is the default underwriting policy content.
const DefaultPolicy = `
package loan_policy

default decision = "REJECTED"

approved {
	input.risk_score >= 80
	input.verification_score >= 80
}

decision = "APPROVED" {
	approved
}

decision = "CONDITIONAL APPROVAL" {
	not approved
	input.risk_score >= 60
	input.verification_score >= 60
}
`
