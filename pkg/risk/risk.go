// Package risk provides the per-action spend policy gate.
//
// The engine evaluates every proposed spend against a declarative Policy and
// tracks cumulative spend with fail-closed semantics: cumulative spend can
// never pass the daily limit through an approved assessment.
//
// Invariants:
//   - Assess never mutates engine state; RecordAction is the only mutator
//     and applies only approved spends
//   - replacing the Policy requires constructing a new Engine
package risk

import "time"

// Tier is the ordered severity attached to an assessment.
type Tier string

const (
	TierLow      Tier = "low"
	TierMedium   Tier = "medium"
	TierHigh     Tier = "high"
	TierCritical Tier = "critical"
)

// tierRank orders tiers so escalation never downgrades.
var tierRank = map[Tier]int{
	TierLow:      0,
	TierMedium:   1,
	TierHigh:     2,
	TierCritical: 3,
}

// Exceeds reports whether t outranks other.
func (t Tier) Exceeds(other Tier) bool {
	return tierRank[t] > tierRank[other]
}

// Policy is the immutable configuration of one Engine instance.
type Policy struct {
	DailyLimitUSD         float64       `json:"daily_limit_usd" yaml:"daily_limit_usd"`
	PerActionLimitUSD     float64       `json:"per_action_limit_usd" yaml:"per_action_limit_usd"`
	AutoApproveCeilingUSD float64       `json:"auto_approve_ceiling_usd" yaml:"auto_approve_ceiling_usd"`
	ApprovalThresholdUSD  float64       `json:"approval_threshold_usd" yaml:"approval_threshold_usd"`
	AllowedCategories     []string      `json:"allowed_categories" yaml:"allowed_categories"`
	AllowedTokens         []string      `json:"allowed_tokens" yaml:"allowed_tokens"`
	AllowedChains         []string      `json:"allowed_chains" yaml:"allowed_chains"`
	MaxSlippageBps        float64       `json:"max_slippage_bps" yaml:"max_slippage_bps"`
	Cooldown              time.Duration `json:"cooldown" yaml:"cooldown"`

	// GuardExpr is an optional CEL boolean over the proposed action
	// (`action.id`, `action.category`, `action.cost`, `action.token`,
	// `action.chain`). Evaluation errors and false results are both
	// violations (fail-closed).
	GuardExpr string `json:"guard_expr,omitempty" yaml:"guard_expr,omitempty"`
}

// DefaultPolicy returns conservative limits suitable for unattended runs.
func DefaultPolicy() Policy {
	return Policy{
		DailyLimitUSD:         50,
		PerActionLimitUSD:     5,
		AutoApproveCeilingUSD: 1,
		ApprovalThresholdUSD:  10,
		MaxSlippageBps:        100,
		Cooldown:              2 * time.Second,
	}
}

// Metadata carries the policy-relevant attributes of a proposed action.
// Zero-valued fields are treated as "not supplied" and skip their checks.
type Metadata struct {
	Category    string  `json:"category,omitempty"`
	Token       string  `json:"token,omitempty"`
	Chain       string  `json:"chain,omitempty"`
	SlippageBps float64 `json:"slippage_bps,omitempty"`
}

// BudgetImpact snapshots the budget effect of a proposed spend. It is always
// computed against pre-action spend, whether or not the action is approved.
type BudgetImpact struct {
	SpentBefore    float64 `json:"spent_before"`
	SpentAfter     float64 `json:"spent_after"`
	PercentOfDaily float64 `json:"percent_of_daily"`
}

// Assessment is the immutable result of evaluating one proposed spend.
type Assessment struct {
	ActionID      string       `json:"action_id"`
	EstimatedCost float64      `json:"estimated_cost"`
	Tier          Tier         `json:"tier"`
	Approved      bool         `json:"approved"`
	NeedsApproval bool         `json:"needs_approval"`
	Reason        string       `json:"reason"`
	Violations    []string     `json:"violations,omitempty"`
	Budget        BudgetImpact `json:"budget"`
	AssessedAt    time.Time    `json:"assessed_at"`
}

// BudgetStatus reports cumulative spend against the daily limit.
type BudgetStatus struct {
	LimitUSD     float64 `json:"limit_usd"`
	SpentUSD     float64 `json:"spent_usd"`
	RemainingUSD float64 `json:"remaining_usd"`
	PercentUsed  float64 `json:"percent_used"`
}
