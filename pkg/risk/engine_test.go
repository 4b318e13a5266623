package risk_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stewardrun/steward/pkg/risk"
)

func testPolicy() risk.Policy {
	return risk.Policy{
		DailyLimitUSD:         50,
		PerActionLimitUSD:     5,
		AutoApproveCeilingUSD: 1,
		ApprovalThresholdUSD:  10,
		MaxSlippageBps:        100,
		Cooldown:              2 * time.Second,
	}
}

func newEngine(t *testing.T, p risk.Policy) *risk.Engine {
	t.Helper()
	e, err := risk.NewEngine(p)
	require.NoError(t, err)
	return e
}

func TestAssessAutoApprovesSmallSpend(t *testing.T) {
	e := newEngine(t, testPolicy())

	a := e.Assess("price-feed", 0.01, risk.Metadata{})
	assert.True(t, a.Approved)
	assert.False(t, a.NeedsApproval)
	assert.Equal(t, risk.TierLow, a.Tier)
	assert.Empty(t, a.Violations)
	assert.Contains(t, a.Reason, "Auto-approved")

	// Three identical approved spends accumulate exactly.
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	e.WithClock(func() time.Time { return now })
	for i := 0; i < 3; i++ {
		e.RecordAction("price-feed", 0.01, true)
		now = now.Add(5 * time.Second)
	}
	assert.InDelta(t, 0.03, e.BudgetStatus().SpentUSD, 1e-9)
}

func TestAssessPerActionLimit(t *testing.T) {
	e := newEngine(t, testPolicy())

	a := e.Assess("swap", 6, risk.Metadata{})
	assert.False(t, a.Approved)
	assert.Equal(t, risk.TierHigh, a.Tier)
	assert.Contains(t, a.Violations, "Per-transaction limit exceeded")
	assert.Contains(t, a.Reason, "Blocked")
}

func TestAssessDailyLimit(t *testing.T) {
	e := newEngine(t, testPolicy())

	// Drive cumulative spend to 49.5 through approved records.
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e.WithClock(func() time.Time { return now })
	for i := 0; i < 11; i++ {
		e.RecordAction("swap", 4.5, true)
		now = now.Add(time.Minute)
	}
	require.InDelta(t, 49.5, e.BudgetStatus().SpentUSD, 1e-9)

	a := e.Assess("swap", 1, risk.Metadata{})
	assert.False(t, a.Approved)
	assert.Equal(t, risk.TierCritical, a.Tier)
	assert.Contains(t, a.Violations, "Daily limit exceeded")
	assert.InDelta(t, 49.5, a.Budget.SpentBefore, 1e-9)
	assert.InDelta(t, 50.5, a.Budget.SpentAfter, 1e-9)
}

func TestAssessCooldown(t *testing.T) {
	e := newEngine(t, testPolicy())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e.WithClock(func() time.Time { return now })

	// No prior action: cooldown does not apply.
	first := e.Assess("swap", 0.5, risk.Metadata{})
	assert.True(t, first.Approved)

	e.RecordAction("swap", 0.5, true)
	now = now.Add(500 * time.Millisecond)

	second := e.Assess("swap", 0.5, risk.Metadata{})
	assert.False(t, second.Approved)
	assert.Contains(t, second.Violations, "Cooldown period active")
	// Cooldown alone does not escalate the tier.
	assert.Equal(t, risk.TierLow, second.Tier)

	now = now.Add(5 * time.Second)
	third := e.Assess("swap", 0.5, risk.Metadata{})
	assert.True(t, third.Approved)
}

func TestAssessAllowlists(t *testing.T) {
	p := testPolicy()
	p.AllowedCategories = []string{"data", "swap"}
	p.AllowedTokens = []string{"USDC"}
	p.AllowedChains = []string{"base", "solana"}
	e := newEngine(t, p)

	a := e.Assess("bridge", 0.5, risk.Metadata{Category: "bridge", Token: "PEPE", Chain: "tron"})
	assert.False(t, a.Approved)
	assert.Equal(t, risk.TierHigh, a.Tier)
	assert.Contains(t, a.Violations, "Category not in allowlist")
	assert.Contains(t, a.Violations, "Token not in allowlist")
	assert.Contains(t, a.Violations, "Chain not in allowlist")

	// Unset attributes skip their checks.
	b := e.Assess("feed", 0.5, risk.Metadata{})
	assert.True(t, b.Approved)
}

func TestAssessSlippage(t *testing.T) {
	e := newEngine(t, testPolicy())

	a := e.Assess("swap", 0.5, risk.Metadata{SlippageBps: 250})
	assert.False(t, a.Approved)
	assert.Equal(t, risk.TierMedium, a.Tier)
	assert.Contains(t, a.Violations, "Slippage above policy maximum")
}

func TestAssessCostDerivedTiers(t *testing.T) {
	e := newEngine(t, risk.Policy{
		DailyLimitUSD:         1000,
		PerActionLimitUSD:     100,
		AutoApproveCeilingUSD: 1,
		ApprovalThresholdUSD:  10,
	})

	tests := []struct {
		cost          float64
		tier          risk.Tier
		needsApproval bool
	}{
		{0.5, risk.TierLow, false},
		{5, risk.TierMedium, true},
		{50, risk.TierHigh, true},
	}
	for _, tt := range tests {
		a := e.Assess("action", tt.cost, risk.Metadata{})
		assert.True(t, a.Approved, "cost %v", tt.cost)
		assert.Equal(t, tt.tier, a.Tier, "cost %v", tt.cost)
		assert.Equal(t, tt.needsApproval, a.NeedsApproval, "cost %v", tt.cost)
		if tt.needsApproval {
			assert.Contains(t, a.Reason, "Requires approval")
		}
	}
}

func TestAssessIsIdempotent(t *testing.T) {
	e := newEngine(t, testPolicy())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e.WithClock(func() time.Time { return now })

	a := e.Assess("swap", 3, risk.Metadata{Category: "swap"})
	b := e.Assess("swap", 3, risk.Metadata{Category: "swap"})
	assert.Equal(t, a, b)
	// Reads leave state untouched.
	assert.Equal(t, 0.0, e.BudgetStatus().SpentUSD)
}

func TestRecordActionIgnoresUnapproved(t *testing.T) {
	e := newEngine(t, testPolicy())
	e.RecordAction("swap", 10, false)
	assert.Equal(t, 0.0, e.BudgetStatus().SpentUSD)
}

func TestBudgetStatus(t *testing.T) {
	e := newEngine(t, testPolicy())
	e.RecordAction("swap", 12.5, true)

	s := e.BudgetStatus()
	assert.Equal(t, 50.0, s.LimitUSD)
	assert.InDelta(t, 12.5, s.SpentUSD, 1e-9)
	assert.InDelta(t, 37.5, s.RemainingUSD, 1e-9)
	assert.InDelta(t, 25.0, s.PercentUsed, 1e-9)
}

func TestGuardExpression(t *testing.T) {
	p := testPolicy()
	p.GuardExpr = `action.category != "bridge" && action.cost < 4.0`
	e := newEngine(t, p)

	ok := e.Assess("swap", 0.5, risk.Metadata{Category: "swap"})
	assert.True(t, ok.Approved)

	denied := e.Assess("bridge-out", 0.5, risk.Metadata{Category: "bridge"})
	assert.False(t, denied.Approved)
	assert.Contains(t, denied.Violations, "Policy guard rejected action")
	assert.Equal(t, risk.TierHigh, denied.Tier)
}

func TestGuardExpressionCompileError(t *testing.T) {
	p := testPolicy()
	p.GuardExpr = `action.cost <<< 1`
	_, err := risk.NewEngine(p)
	require.Error(t, err)
}
