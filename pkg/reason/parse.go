package reason

import (
	"encoding/json"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Responses are validated against these schemas before being trusted. A
// response that fails extraction, decoding, or validation degrades into an
// empty structure carrying the raw text, never an error.

const planSchemaJSON = `{
	"type": "object",
	"required": ["steps"],
	"properties": {
		"steps": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["action"],
				"properties": {
					"action": {"type": "string", "minLength": 1},
					"parameters": {"type": "object"},
					"rationale": {"type": "string"}
				}
			}
		},
		"estimated_cost": {"type": "number", "minimum": 0},
		"rationale": {"type": "string"}
	}
}`

const decisionSchemaJSON = `{
	"type": "object",
	"required": ["verdict"],
	"properties": {
		"verdict": {"type": "string", "enum": ["buy", "sell", "hold"]},
		"confidence": {"type": "number", "minimum": 0, "maximum": 1},
		"rationale": {"type": "string"},
		"follow_up": {
			"type": ["object", "null"],
			"required": ["action"],
			"properties": {
				"action": {"type": "string", "minLength": 1},
				"parameters": {"type": "object"}
			}
		},
		"risk_factors": {"type": "array", "items": {"type": "string"}}
	}
}`

var (
	planSchema     = mustCompileSchema("plan.json", planSchemaJSON)
	decisionSchema = mustCompileSchema("decision.json", decisionSchemaJSON)
)

func mustCompileSchema(name, schema string) *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, strings.NewReader(schema)); err != nil {
		panic(err)
	}
	return c.MustCompile(name)
}

// ParsePlan extracts and validates a structured plan from a completion. Any
// failure yields an empty, degraded plan with the raw text as rationale.
func ParsePlan(text string) Plan {
	raw, ok := extractJSON(text)
	if !ok {
		return degradedPlan(text)
	}
	if err := validate(planSchema, raw); err != nil {
		return degradedPlan(text)
	}
	var plan Plan
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		return degradedPlan(text)
	}
	return plan
}

// ParseDecision extracts and validates a structured decision; failures
// degrade to a zero-confidence hold carrying the raw text.
func ParseDecision(text string) Decision {
	raw, ok := extractJSON(text)
	if !ok {
		return degradedDecision(text)
	}
	if err := validate(decisionSchema, raw); err != nil {
		return degradedDecision(text)
	}
	var decision Decision
	if err := json.Unmarshal([]byte(raw), &decision); err != nil {
		return degradedDecision(text)
	}
	return decision
}

func degradedPlan(text string) Plan {
	return Plan{Rationale: strings.TrimSpace(text), Degraded: true, Raw: text}
}

func degradedDecision(text string) Decision {
	return Decision{
		Verdict:   VerdictHold,
		Rationale: strings.TrimSpace(text),
		Degraded:  true,
		Raw:       text,
	}
}

func validate(schema *jsonschema.Schema, raw string) error {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return err
	}
	return schema.Validate(v)
}

// extractJSON pulls the outermost JSON object from a completion that may
// wrap it in prose or a markdown fence.
func extractJSON(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}
	candidate := text[start : end+1]
	if !json.Valid([]byte(candidate)) {
		return "", false
	}
	return candidate, true
}
