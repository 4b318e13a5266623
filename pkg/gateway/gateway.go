// Package gateway defines the priced-action executor boundary.
//
// Settlement mechanics (signing, payment-required retries, on-chain
// confirmation) belong to the implementation behind this interface; the
// orchestrator only sees success-or-failure plus an optional settlement.
package gateway

import "context"

// Settlement describes how a priced call was paid for.
type Settlement struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	TxRef    string  `json:"tx_ref,omitempty"`
	Network  string  `json:"network,omitempty"`
}

// Result is the outcome of one executed priced action.
type Result struct {
	Success    bool           `json:"success"`
	Data       map[string]any `json:"data,omitempty"`
	Settlement *Settlement    `json:"settlement,omitempty"`
}

// PaymentGateway executes a priced action. Non-nil errors and Success=false
// are both failures from the orchestrator's point of view.
type PaymentGateway interface {
	Execute(ctx context.Context, actionID string, parameters map[string]any) (*Result, error)
}
