package reason

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stewardrun/steward/pkg/catalog"
)

// Prompt builders. Outputs are plain text; the model is asked for a single
// JSON object matching the schemas in parse.go.

// PlanPrompt asks for an ordered spending plan within budget.
func PlanPrompt(objective string, actions []catalog.Action, budgetUSD float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Objective: %s\n", objective)
	fmt.Fprintf(&b, "Remaining budget: $%.2f USD\n\n", budgetUSD)
	b.WriteString("Available priced actions:\n")
	for _, a := range actions {
		fmt.Fprintf(&b, "- %s ($%.4f, %s): %s\n", a.ID, a.CostUSD, a.Category, a.Description)
	}
	b.WriteString(`
Respond with a single JSON object:
{"steps": [{"action": "<id>", "parameters": {}, "rationale": "<why>"}], "estimated_cost": <usd>, "rationale": "<overall>"}
Order steps cheapest-information-first and keep estimated_cost within budget.`)
	return b.String()
}

// DecidePrompt asks for a structured verdict over execution results.
func DecidePrompt(objective string, outcomes []StepOutcome) string {
	results, _ := json.MarshalIndent(outcomes, "", "  ")
	var b strings.Builder
	fmt.Fprintf(&b, "Objective: %s\n\nExecution results:\n%s\n", objective, results)
	b.WriteString(`
Respond with a single JSON object:
{"verdict": "buy"|"sell"|"hold", "confidence": <0..1>, "rationale": "<why, citing the numbers>", "follow_up": {"action": "<id>", "parameters": {}} | null, "risk_factors": ["..."]}`)
	return b.String()
}

// SummarizePrompt asks for the final run narrative.
func SummarizePrompt(stats RunStats) string {
	raw, _ := json.MarshalIndent(stats, "", "  ")
	return fmt.Sprintf(
		"Summarize this completed run for an operator in a short paragraph. Mention total spend, steps, and the verdict.\n\n%s",
		raw,
	)
}
