// Package heuristics is the deterministic fallback reasoner used when no
// external reasoning capability is configured or reachable.
//
// It is a rule engine, not a stub: fixed thresholds over the fields found in
// execution results, with a distinct, reproducible rationale per branch.
// Identical inputs always produce identical outputs, which is what makes the
// fallback path testable without a model.
package heuristics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/stewardrun/steward/pkg/catalog"
	"github.com/stewardrun/steward/pkg/reason"
)

// Decision thresholds. Exported nowhere: these are the rule engine, and
// changing them changes the engine's behavior contract.
const (
	buyCompositeMin     = 0.15 // composite sentiment above this favors buy
	buyChangeMinPct     = 2.0  // or 24h change above this percent
	bearCompositeMax    = -0.15
	maxConcentrationPct = 60.0
	maxImpactBps        = 50.0
	planBudgetFraction  = 0.5 // planned spend stays under half the budget
)

// Engine implements plan, decide, and summarize without external calls.
type Engine struct{}

// New returns the fallback rule engine.
func New() *Engine { return &Engine{} }

// Plan builds a cheapest-information-first plan from the data-category
// actions in the catalog, capped at half the remaining budget.
func (e *Engine) Plan(objective string, actions []catalog.Action, budgetUSD float64) reason.Plan {
	candidates := make([]catalog.Action, 0, len(actions))
	for _, a := range actions {
		if a.Category == "data" {
			candidates = append(candidates, a)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].CostUSD != candidates[j].CostUSD {
			return candidates[i].CostUSD < candidates[j].CostUSD
		}
		return candidates[i].ID < candidates[j].ID
	})

	spendCap := budgetUSD * planBudgetFraction
	var steps []reason.PlanStep
	var total float64
	for _, a := range candidates {
		if total+a.CostUSD > spendCap {
			break
		}
		total += a.CostUSD
		steps = append(steps, reason.PlanStep{
			ActionID:  a.ID,
			Rationale: fmt.Sprintf("Gather %s at $%.4f before committing funds", a.ID, a.CostUSD),
		})
	}

	return reason.Plan{
		Steps:            steps,
		EstimatedCostUSD: total,
		Rationale: fmt.Sprintf(
			"Deterministic plan for %q: %d data actions totalling $%.4f (cap $%.4f)",
			objective, len(steps), total, spendCap,
		),
	}
}

// Decide applies fixed thresholds to the numeric fields found in execution
// results. Field lookup spans all successful outcomes; the last occurrence
// wins.
func (e *Engine) Decide(outcomes []reason.StepOutcome) reason.Decision {
	change, hasChange := lookupNumber(outcomes, "price_change_h24")
	composite, hasComposite := lookupNumber(outcomes, "composite_score")
	concentration, hasConcentration := lookupNumber(outcomes, "concentration_pct")
	impact, hasImpact := lookupNumber(outcomes, "price_impact_bps")

	var factors []string
	if hasConcentration && concentration > maxConcentrationPct {
		factors = append(factors, fmt.Sprintf("position concentration %.1f%% above %.0f%% cap", concentration, maxConcentrationPct))
	}
	if hasImpact && impact >= maxImpactBps {
		factors = append(factors, fmt.Sprintf("route price impact %.1f bps at or above %.0f bps cap", impact, maxImpactBps))
	}

	bullish := (hasComposite && composite > buyCompositeMin) || (hasChange && change > buyChangeMinPct)
	bearish := hasComposite && composite < bearCompositeMax

	switch {
	case bullish && len(factors) == 0:
		// Only cite inputs that were actually measured; a missing field
		// printed as 0 would read as a real observation.
		details := make([]string, 0, 4)
		if hasComposite {
			details = append(details, fmt.Sprintf("composite %.2f", composite))
		}
		if hasChange {
			details = append(details, fmt.Sprintf("24h change %.2f%%", change))
		}
		if hasConcentration {
			details = append(details, fmt.Sprintf("concentration %.1f%%", concentration))
		}
		if hasImpact {
			details = append(details, fmt.Sprintf("impact %.1f bps", impact))
		}
		return reason.Decision{
			Verdict:    reason.VerdictBuy,
			Confidence: 0.7,
			Rationale:  "Buy: " + strings.Join(details, ", ") + " all within thresholds",
		}
	case bearish:
		return reason.Decision{
			Verdict:     reason.VerdictHold,
			Confidence:  0.6,
			Rationale:   fmt.Sprintf("Hold: bearish composite %.2f below %.2f", composite, bearCompositeMax),
			RiskFactors: factors,
		}
	case bullish && len(factors) > 0:
		return reason.Decision{
			Verdict:     reason.VerdictHold,
			Confidence:  0.6,
			Rationale:   "Hold despite bullish signals: " + strings.Join(factors, "; "),
			RiskFactors: factors,
		}
	default:
		return reason.Decision{
			Verdict:    reason.VerdictHold,
			Confidence: 0.5,
			Rationale: fmt.Sprintf(
				"Hold: mixed signals (composite %.2f, 24h change %.2f%%) clear no threshold",
				composite, change,
			),
			RiskFactors: factors,
		}
	}
}

// Summarize renders a fixed-format run summary.
func (e *Engine) Summarize(stats reason.RunStats) string {
	acted := "no follow-up action was taken"
	if stats.Acted {
		acted = "a follow-up action was executed"
	}
	return fmt.Sprintf(
		"Run for %q completed %d steps (%d succeeded, %d failed), spending $%.4f of a $%.2f budget. Verdict: %s; %s.",
		stats.Objective, stats.Steps, stats.Succeeded, stats.Failed,
		stats.TotalSpendUSD, stats.BudgetUSD, stats.Verdict, acted,
	)
}

// lookupNumber scans successful outcomes for a numeric field.
func lookupNumber(outcomes []reason.StepOutcome, key string) (float64, bool) {
	var value float64
	var found bool
	for _, o := range outcomes {
		if !o.Success || o.Data == nil {
			continue
		}
		if raw, ok := o.Data[key]; ok {
			switch v := raw.(type) {
			case float64:
				value, found = v, true
			case int:
				value, found = float64(v), true
			}
		}
	}
	return value, found
}
