// Package signal fuses weighted, confidence-scored opinions from multiple
// market-data sources into a single composite score.
//
// Aggregation is a pure function: no provider I/O happens here. Sources that
// failed to produce data must be omitted from the input slice entirely.
// Omission lowers aggregate confidence, while a zero-score placeholder would
// drag the composite toward neutral with confidence intact.
package signal

// Label classifies a composite score.
type Label string

const (
	LabelPositive Label = "positive"
	LabelNegative Label = "negative"
	LabelNeutral  Label = "neutral"
)

// Signal is one source's opinion about the objective under evaluation.
type Signal struct {
	Source     string         `json:"source"`
	Score      float64        `json:"score"`      // [-1, +1]
	Confidence float64        `json:"confidence"` // [0, 1]
	Label      string         `json:"label,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
}

// Composite is the fused output of Aggregate.
type Composite struct {
	Score      float64 `json:"score"`
	Label      Label   `json:"label"`
	Confidence float64 `json:"confidence"`
	Sources    int     `json:"sources"`
}

// sourceWeights assigns a class weight per source name. Unrecognized sources
// fall back to defaultWeight so a new provider still contributes.
var sourceWeights = map[string]float64{
	"news":     0.35,
	"index":    0.30,
	"on-chain": 0.35,
}

const defaultWeight = 0.33

// labelThreshold is the absolute composite score beyond which the label
// leaves neutral.
const labelThreshold = 0.25

// Weight returns the class weight for a source name.
func Weight(source string) float64 {
	if w, ok := sourceWeights[source]; ok {
		return w
	}
	return defaultWeight
}

// Aggregate fuses signals into a Composite. With no usable signals (empty
// input, or all confidences zero) it returns the neutral floor rather than
// dividing by zero. The result is invariant to input order.
func Aggregate(signals []Signal) Composite {
	if len(signals) == 0 {
		return Composite{Score: 0, Label: LabelNeutral, Confidence: 0, Sources: 0}
	}

	var weightedSum, totalWeight float64
	for _, s := range signals {
		w := Weight(s.Source) * s.Confidence
		weightedSum += s.Score * w
		totalWeight += w
	}

	if totalWeight == 0 {
		return Composite{Score: 0, Label: LabelNeutral, Confidence: 0, Sources: len(signals)}
	}

	score := weightedSum / totalWeight
	return Composite{
		Score:      score,
		Label:      labelFor(score),
		Confidence: totalWeight / float64(len(signals)),
		Sources:    len(signals),
	}
}

func labelFor(score float64) Label {
	switch {
	case score > labelThreshold:
		return LabelPositive
	case score < -labelThreshold:
		return LabelNegative
	default:
		return LabelNeutral
	}
}
