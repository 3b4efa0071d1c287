// Package policy evaluates submitted prompts against a Rego policy.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

// Decision values returned by the policy.
const (
	DecisionAllow = "allow"
	DecisionBlock = "block"
)

// Engine is the OPA prompt policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.prompt_policy.decision"),
		rego.Module("prompt_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Input is the evaluation input for a prompt submission.
type Input struct {
	Prompt string `json:"prompt"`
	User   string `json:"user"`
}

// Evaluate checks the prompt policy. Returns the decision (allow or block)
// and an optional reason.
func (e *Engine) Evaluate(ctx context.Context, input Input) (string, string, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		// The default policy defines a decision; an empty result means the
		// loaded policy does not, so fall open.
		return DecisionAllow, "default", nil
	}

	val := results[0].Expressions[0].Value
	switch v := val.(type) {
	case string:
		return v, "", nil
	case map[string]interface{}:
		decision, _ := v["decision"].(string)
		reason, _ := v["reason"].(string)
		if decision == "" {
			decision = DecisionAllow
		}
		return decision, reason, nil
	}

	return DecisionAllow, "unexpected return type", nil
}

// DefaultPolicy is the default prompt policy content.
const DefaultPolicy = `
package prompt_policy

default decision = "allow"

# Reject obvious prompt-injection attempts.
decision = "block" {
	contains(lower(input.prompt), "ignore previous instructions")
}

decision = "block" {
	contains(lower(input.prompt), "disregard your system prompt")
}
`
