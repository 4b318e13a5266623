package reason_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stewardrun/steward/pkg/reason"
)

func TestParsePlanValid(t *testing.T) {
	text := `Here is my plan:
{"steps":[{"action":"price-feed","parameters":{"symbol":"SOL"},"rationale":"cheap baseline"},{"action":"swap-quote","rationale":"check impact"}],"estimated_cost":0.06,"rationale":"information first"}`

	plan := reason.ParsePlan(text)
	require.False(t, plan.Degraded)
	require.Len(t, plan.Steps, 2)
	assert.Equal(t, "price-feed", plan.Steps[0].ActionID)
	assert.Equal(t, "SOL", plan.Steps[0].Parameters["symbol"])
	assert.InDelta(t, 0.06, plan.EstimatedCostUSD, 1e-9)
}

func TestParsePlanDegradesOnProse(t *testing.T) {
	text := "I think you should probably look at the price first, then decide."

	plan := reason.ParsePlan(text)
	assert.True(t, plan.Degraded)
	assert.Empty(t, plan.Steps)
	assert.Equal(t, text, plan.Rationale)
	assert.Equal(t, text, plan.Raw)
}

func TestParsePlanDegradesOnSchemaViolation(t *testing.T) {
	// steps entries missing the required "action" field
	text := `{"steps":[{"rationale":"no action named"}],"estimated_cost":1}`

	plan := reason.ParsePlan(text)
	assert.True(t, plan.Degraded)
	assert.Empty(t, plan.Steps)
}

func TestParsePlanDegradesOnBrokenJSON(t *testing.T) {
	plan := reason.ParsePlan(`{"steps": [unterminated`)
	assert.True(t, plan.Degraded)
}

func TestParseDecisionValid(t *testing.T) {
	text := "```json\n" + `{"verdict":"buy","confidence":0.72,"rationale":"composite 0.31 with 2.4% momentum","follow_up":{"action":"swap","parameters":{"amount":1}},"risk_factors":["thin liquidity"]}` + "\n```"

	d := reason.ParseDecision(text)
	require.False(t, d.Degraded)
	assert.Equal(t, reason.VerdictBuy, d.Verdict)
	assert.InDelta(t, 0.72, d.Confidence, 1e-9)
	require.NotNil(t, d.FollowUp)
	assert.Equal(t, "swap", d.FollowUp.ActionID)
	assert.Equal(t, []string{"thin liquidity"}, d.RiskFactors)
}

func TestParseDecisionDegradesToHold(t *testing.T) {
	d := reason.ParseDecision("signals are mixed, hard to say")
	assert.True(t, d.Degraded)
	assert.Equal(t, reason.VerdictHold, d.Verdict)
	assert.Equal(t, 0.0, d.Confidence)
}

func TestParseDecisionRejectsUnknownVerdict(t *testing.T) {
	d := reason.ParseDecision(`{"verdict":"yolo","confidence":0.9}`)
	assert.True(t, d.Degraded)
	assert.Equal(t, reason.VerdictHold, d.Verdict)
}
