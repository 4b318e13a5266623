// Package catalog discovers the priced actions available to a run.
//
// Discovery is free and side-effect-free, so results may be cached; the cache
// is injected state with an explicit TTL, never a process-global.
package catalog

import "context"

// ParamSpec describes one parameter an action accepts.
type ParamSpec struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// Action is one priced external capability.
type Action struct {
	ID          string      `json:"id"`
	Description string      `json:"description"`
	CostUSD     float64     `json:"cost_usd"`
	Category    string      `json:"category"`
	Parameters  []ParamSpec `json:"parameters,omitempty"`
}

// Provider lists the actions currently purchasable.
type Provider interface {
	ListActions(ctx context.Context) ([]Action, error)
}

// Static is a fixed catalog, used in tests and offline runs.
type Static struct {
	Actions []Action
}

func (s *Static) ListActions(_ context.Context) ([]Action, error) {
	out := make([]Action, len(s.Actions))
	copy(out, s.Actions)
	return out, nil
}
