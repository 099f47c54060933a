// Package policy authorizes party actions with an OPA rego policy.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/rego"
)

// Actions checked against the policy.
const (
	ActionPostMessage        = "post_message"
	ActionRecordPosition     = "record_position"
	ActionGenerateSettlement = "generate_settlement"
	ActionSetAmount          = "set_amount"
	ActionEdit               = "edit"
	ActionCancel             = "cancel"
	ActionFail               = "fail"
	ActionAdvanceStage       = "advance_stage"
	ActionRequestMediator    = "request_mediator"
	ActionCheckout           = "checkout"
	ActionCreateEnvelope     = "create_envelope"
)

// Input is the document the policy evaluates.
type Input struct {
	Action string `json:"action"`
	Role   string `json:"role"`
}

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.mediation.allow"),
		rego.Module("mediation.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Allowed reports whether the caller role may perform the action.
// An undefined result denies.
func (e *Engine) Allowed(ctx context.Context, in Input) (bool, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(in))
	if err != nil {
		return false, fmt.Errorf("failed to evaluate policy: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return false, nil
	}
	allowed, ok := results[0].Expressions[0].Value.(bool)
	return ok && allowed, nil
}

// DefaultPolicy is the default policy content.
const DefaultPolicy = `
package mediation

default allow := false

parties := {"party_a", "party_b"}

party_actions := {
	"post_message",
	"record_position",
	"generate_settlement",
	"set_amount",
	"edit",
	"cancel",
	"request_mediator",
	"checkout",
	"create_envelope",
}

allow if {
	input.role in parties
	input.action in party_actions
}

# Stage tracking is shared by everyone watching the session.
allow if {
	input.action == "advance_stage"
}

# Operators fail sessions from outside the party slots.
allow if {
	input.action == "fail"
}
`
