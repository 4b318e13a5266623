// Package reason wraps the external reasoning capability: a text-completion
// client plus strict-but-forgiving parsers for its structured outputs.
//
// Responses that fail schema validation are never errors; they degrade into
// near-empty structures that preserve the raw text as rationale, so a flaky
// model cannot fail a run on its own.
package reason

import "context"

// Client is the narrow interface to an external reasoning capability.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// PlanStep is one planned priced call.
type PlanStep struct {
	ActionID   string         `json:"action"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Rationale  string         `json:"rationale,omitempty"`
}

// Plan is the ordered spending plan for a run.
type Plan struct {
	Steps            []PlanStep `json:"steps"`
	EstimatedCostUSD float64    `json:"estimated_cost"`
	Rationale        string     `json:"rationale,omitempty"`

	// Degraded marks a plan recovered from an unparseable response; Raw
	// preserves the original text.
	Degraded bool   `json:"degraded,omitempty"`
	Raw      string `json:"raw,omitempty"`
}

// Verdict is the decision outcome.
type Verdict string

const (
	VerdictBuy  Verdict = "buy"
	VerdictSell Verdict = "sell"
	VerdictHold Verdict = "hold"
)

// Decision is the structured outcome of the Decide phase.
type Decision struct {
	Verdict     Verdict   `json:"verdict"`
	Confidence  float64   `json:"confidence"`
	Rationale   string    `json:"rationale"`
	FollowUp    *PlanStep `json:"follow_up,omitempty"`
	RiskFactors []string  `json:"risk_factors,omitempty"`

	Degraded bool   `json:"degraded,omitempty"`
	Raw      string `json:"raw,omitempty"`
}

// StepOutcome is what one executed step produced, as consumed by the Decide
// phase (external reasoner or the deterministic fallback).
type StepOutcome struct {
	ActionID string         `json:"action_id"`
	Success  bool           `json:"success"`
	CostUSD  float64        `json:"cost_usd"`
	Data     map[string]any `json:"data,omitempty"`
	Err      string         `json:"error,omitempty"`
}

// RunStats feeds the Report phase summarizer.
type RunStats struct {
	Objective     string  `json:"objective"`
	Steps         int     `json:"steps"`
	Succeeded     int     `json:"succeeded"`
	Failed        int     `json:"failed"`
	TotalSpendUSD float64 `json:"total_spend_usd"`
	BudgetUSD     float64 `json:"budget_usd"`
	Verdict       Verdict `json:"verdict"`
	Acted         bool    `json:"acted"`
}
