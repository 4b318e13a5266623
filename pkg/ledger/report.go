package ledger

import (
	"encoding/json"
	"fmt"
)

// Totals summarizes spend across the ledger.
type Totals struct {
	Entries      int     `json:"entries"`
	Receipts     int     `json:"receipts"`
	Assessments  int     `json:"assessments"`
	SettledUSD   float64 `json:"settled_usd"`
	PendingUSD   float64 `json:"pending_usd"`
	FailedUSD    float64 `json:"failed_usd"`
	SettledCount int     `json:"settled_count"`
}

// Report is a derived view over the ledger. Receipts and aggregates are
// rebuilt from the entry stream on every call so the ledger never carries
// stale numbers.
type Report struct {
	Totals          Totals             `json:"totals"`
	SpendByAction   map[string]float64 `json:"spend_by_action"`
	SpendByCategory map[string]float64 `json:"spend_by_category"`
	Receipts        []SpendReceipt     `json:"receipts"`
	Assessments     []json.RawMessage  `json:"assessments"`
	Entries         []Entry            `json:"entries"`
	HeadHash        string             `json:"head_hash"`
}

// Report rebuilds the derived view by replaying entries in insertion order.
func (l *Ledger) Report() (*Report, error) {
	entries := l.Entries()

	r := &Report{
		SpendByAction:   make(map[string]float64),
		SpendByCategory: make(map[string]float64),
		Entries:         entries,
		HeadHash:        l.Head(),
	}
	r.Totals.Entries = len(entries)

	for _, entry := range entries {
		switch entry.Type {
		case EntrySpend:
			var receipt SpendReceipt
			if err := json.Unmarshal(entry.Data, &receipt); err != nil {
				return nil, fmt.Errorf("ledger: replay entry %d: %w", entry.Sequence, err)
			}
			r.Receipts = append(r.Receipts, receipt)
			r.Totals.Receipts++

			switch receipt.Status {
			case SettlementSettled:
				r.Totals.SettledUSD += receipt.Amount
				r.Totals.SettledCount++
				r.SpendByAction[receipt.ActionID] += receipt.Amount
				if receipt.Category != "" {
					r.SpendByCategory[receipt.Category] += receipt.Amount
				}
			case SettlementPending:
				r.Totals.PendingUSD += receipt.Amount
			case SettlementFailed:
				r.Totals.FailedUSD += receipt.Amount
			}
		case EntryAssessment:
			r.Assessments = append(r.Assessments, entry.Data)
			r.Totals.Assessments++
		}
	}
	return r, nil
}
