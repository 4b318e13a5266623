package risk

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
)

// Violation messages are stable strings: they end up in the audit ledger and
// in operator-facing reports.
const (
	violationDailyLimit  = "Daily limit exceeded"
	violationPerAction   = "Per-transaction limit exceeded"
	violationCooldown    = "Cooldown period active"
	violationCategory    = "Category not in allowlist"
	violationToken       = "Token not in allowlist"
	violationChain       = "Chain not in allowlist"
	violationSlippage    = "Slippage above policy maximum"
	violationGuardDenied = "Policy guard rejected action"
)

// Engine is the stateful policy gate. State is mutated only through
// RecordAction; Assess is a pure read.
type Engine struct {
	mu         sync.RWMutex
	policy     Policy
	spent      float64
	lastAction time.Time

	guard cel.Program
	clock func() time.Time
}

// NewEngine constructs an Engine bound to an immutable policy snapshot.
// If the policy carries a guard expression it is compiled once here;
// a malformed expression is a construction error, not a runtime surprise.
func NewEngine(policy Policy) (*Engine, error) {
	e := &Engine{policy: policy, clock: time.Now}

	if strings.TrimSpace(policy.GuardExpr) != "" {
		env, err := cel.NewEnv(cel.Variable("action", cel.DynType))
		if err != nil {
			return nil, fmt.Errorf("risk: create guard environment: %w", err)
		}
		ast, issues := env.Compile(policy.GuardExpr)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("risk: compile guard expression: %w", issues.Err())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("risk: build guard program: %w", err)
		}
		e.guard = prg
	}
	return e, nil
}

// WithClock overrides the clock for deterministic testing.
func (e *Engine) WithClock(clock func() time.Time) *Engine {
	e.clock = clock
	return e
}

// Policy returns the engine's immutable policy snapshot.
func (e *Engine) Policy() Policy { return e.policy }

// Assess evaluates a proposed spend against the policy. It is idempotent:
// two calls with identical engine state yield identical assessments.
func (e *Engine) Assess(actionID string, estimatedCost float64, meta Metadata) Assessment {
	e.mu.RLock()
	spent := e.spent
	lastAction := e.lastAction
	e.mu.RUnlock()

	now := e.clock()
	p := e.policy

	var violations []string
	tier := TierLow

	escalate := func(to Tier) {
		if to.Exceeds(tier) {
			tier = to
		}
	}

	// 1. Daily limit.
	if spent+estimatedCost > p.DailyLimitUSD {
		violations = append(violations, violationDailyLimit)
		escalate(TierCritical)
	}

	// 2. Per-action limit.
	if estimatedCost > p.PerActionLimitUSD {
		violations = append(violations, violationPerAction)
		escalate(TierHigh)
	}

	// 3. Cooldown (skipped when no prior approved action exists). Does not
	// move the tier: a too-eager action is not a more dangerous one.
	if !lastAction.IsZero() && now.Sub(lastAction) < p.Cooldown {
		violations = append(violations, violationCooldown)
	}

	// 4. Allowlists, each independently.
	if !allowed(p.AllowedCategories, meta.Category) {
		violations = append(violations, violationCategory)
		escalate(TierHigh)
	}
	if !allowed(p.AllowedTokens, meta.Token) {
		violations = append(violations, violationToken)
		escalate(TierHigh)
	}
	if !allowed(p.AllowedChains, meta.Chain) {
		violations = append(violations, violationChain)
		escalate(TierHigh)
	}

	// 5. Slippage.
	if meta.SlippageBps > 0 && p.MaxSlippageBps > 0 && meta.SlippageBps > p.MaxSlippageBps {
		violations = append(violations, violationSlippage)
		escalate(TierMedium)
	}

	// Optional CEL guard, fail-closed.
	if e.guard != nil && !e.guardAllows(actionID, estimatedCost, meta) {
		violations = append(violations, violationGuardDenied)
		escalate(TierHigh)
	}

	// 6. With no violation-driven escalation, derive the tier from cost alone.
	if tier == TierLow {
		switch {
		case estimatedCost > p.ApprovalThresholdUSD:
			tier = TierHigh
		case estimatedCost > p.AutoApproveCeilingUSD:
			tier = TierMedium
		}
	}

	approved := len(violations) == 0
	needsApproval := approved && estimatedCost > p.AutoApproveCeilingUSD

	percent := 0.0
	if p.DailyLimitUSD > 0 {
		percent = (spent + estimatedCost) / p.DailyLimitUSD * 100
	}

	return Assessment{
		ActionID:      actionID,
		EstimatedCost: estimatedCost,
		Tier:          tier,
		Approved:      approved,
		NeedsApproval: needsApproval,
		Reason:        reasonFor(actionID, estimatedCost, violations, needsApproval),
		Violations:    violations,
		Budget: BudgetImpact{
			SpentBefore:    spent,
			SpentAfter:     spent + estimatedCost,
			PercentOfDaily: percent,
		},
		AssessedAt: now,
	}
}

// RecordAction updates cumulative spend and the last-action timestamp.
// Unapproved outcomes are accepted but change nothing, so callers can record
// every attempt through one path.
func (e *Engine) RecordAction(_ string, cost float64, approved bool) {
	if !approved {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.spent += cost
	e.lastAction = e.clock()
}

// BudgetStatus reports the engine's current position against the daily limit.
func (e *Engine) BudgetStatus() BudgetStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()

	remaining := e.policy.DailyLimitUSD - e.spent
	if remaining < 0 {
		remaining = 0
	}
	percent := 0.0
	if e.policy.DailyLimitUSD > 0 {
		percent = e.spent / e.policy.DailyLimitUSD * 100
	}
	return BudgetStatus{
		LimitUSD:     e.policy.DailyLimitUSD,
		SpentUSD:     e.spent,
		RemainingUSD: remaining,
		PercentUsed:  percent,
	}
}

func (e *Engine) guardAllows(actionID string, cost float64, meta Metadata) bool {
	out, _, err := e.guard.Eval(map[string]any{
		"action": map[string]any{
			"id":       actionID,
			"category": meta.Category,
			"cost":     cost,
			"token":    meta.Token,
			"chain":    meta.Chain,
		},
	})
	if err != nil {
		return false
	}
	allowed, ok := out.Value().(bool)
	return ok && allowed
}

// allowed treats an empty allowlist as "anything goes" and an empty value as
// "attribute not supplied".
func allowed(allowlist []string, value string) bool {
	if len(allowlist) == 0 || value == "" {
		return true
	}
	return slices.Contains(allowlist, value)
}

func reasonFor(actionID string, cost float64, violations []string, needsApproval bool) string {
	switch {
	case len(violations) > 0:
		return fmt.Sprintf("Blocked: %s (%s at $%.2f)", strings.Join(violations, "; "), actionID, cost)
	case needsApproval:
		return fmt.Sprintf("Requires approval: %s at $%.2f exceeds auto-approve ceiling", actionID, cost)
	default:
		return fmt.Sprintf("Auto-approved: %s at $%.2f within all limits", actionID, cost)
	}
}
