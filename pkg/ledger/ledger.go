// Package ledger implements the append-only audit trail.
//
// Every spend receipt, risk assessment, and orchestration event lands here as
// a hash-chained entry. Entries are canonicalized (RFC 8785 JCS) before
// hashing so the chain survives re-marshaling. Nothing is ever removed or
// mutated after insertion; aggregates are recomputed from receipts on each
// Report call, never stored.
package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gowebpki/jcs"
)

// EntryType categorizes a ledger entry.
type EntryType string

const (
	EntryEvent      EntryType = "EVENT"
	EntrySpend      EntryType = "SPEND"
	EntryAssessment EntryType = "ASSESSMENT"
)

const genesisHash = "genesis"

// SettlementStatus tracks the lifecycle of a monetized action.
type SettlementStatus string

const (
	SettlementPending SettlementStatus = "pending"
	SettlementSettled SettlementStatus = "settled"
	SettlementFailed  SettlementStatus = "failed"
)

// SpendReceipt is the immutable record of a completed or failed monetized
// action.
type SpendReceipt struct {
	ID        string           `json:"id"`
	Timestamp time.Time        `json:"timestamp"`
	ActionID  string           `json:"action_id"`
	Category  string           `json:"category,omitempty"`
	Amount    float64          `json:"amount"`
	Currency  string           `json:"currency"`
	Status    SettlementStatus `json:"status"`
	TxRef     string           `json:"tx_ref,omitempty"`
}

// Entry is one immutable, hash-chained ledger record.
type Entry struct {
	Sequence    uint64          `json:"sequence"`
	Type        EntryType       `json:"type"`
	ContentHash string          `json:"content_hash"`
	PrevHash    string          `json:"prev_hash"`
	Timestamp   time.Time       `json:"timestamp"`
	Data        json.RawMessage `json:"data"`
}

// Ledger is an append-only, hash-chained audit log. Safe for concurrent use.
type Ledger struct {
	mu       sync.RWMutex
	entries  []Entry
	headHash string
	clock    func() time.Time
	store    Store
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{headHash: genesisHash, clock: time.Now}
}

// WithClock overrides the clock for deterministic testing.
func (l *Ledger) WithClock(clock func() time.Time) *Ledger {
	l.clock = clock
	return l
}

// WithStore mirrors every appended entry into a persistent store.
func (l *Ledger) WithStore(s Store) *Ledger {
	l.store = s
	return l
}

// Record appends a free-form event entry. The payload must marshal to JSON.
func (l *Ledger) Record(event string, payload any) error {
	return l.append(EntryEvent, map[string]any{"event": event, "payload": payload})
}

// RecordSpend appends a spend receipt. A zero ID is assigned one.
func (l *Ledger) RecordSpend(receipt SpendReceipt) error {
	if receipt.ID == "" {
		receipt.ID = uuid.New().String()
	}
	if receipt.Timestamp.IsZero() {
		receipt.Timestamp = l.clock()
	}
	return l.append(EntrySpend, receipt)
}

// RecordAssessment appends a risk assessment. The assessment type lives in
// pkg/risk; the ledger stores it as opaque canonical JSON so it has no
// dependency on the policy engine.
func (l *Ledger) RecordAssessment(assessment any) error {
	return l.append(EntryAssessment, assessment)
}

func (l *Ledger) append(entryType EntryType, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("ledger: marshal %s payload: %w", entryType, err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return fmt.Errorf("ledger: canonicalize %s payload: %w", entryType, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	seq := uint64(len(l.entries)) + 1
	entry := Entry{
		Sequence:    seq,
		Type:        entryType,
		ContentHash: contentHash(seq, entryType, canonical, l.headHash),
		PrevHash:    l.headHash,
		Timestamp:   l.clock(),
		Data:        canonical,
	}

	if l.store != nil {
		if err := l.store.Append(entry); err != nil {
			return fmt.Errorf("ledger: persist entry %d: %w", seq, err)
		}
	}

	l.entries = append(l.entries, entry)
	l.headHash = entry.ContentHash
	return nil
}

// contentHash binds sequence, type, canonical payload, and predecessor.
func contentHash(seq uint64, entryType EntryType, canonical []byte, prevHash string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d|%s|%s|", seq, entryType, prevHash)
	h.Write(canonical)
	return "sha256:" + hex.EncodeToString(h.Sum(nil))
}

// Entries returns a copy of all entries in insertion order.
func (l *Ledger) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Head returns the current chain head hash.
func (l *Ledger) Head() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.headHash
}

// Length returns the number of entries.
func (l *Ledger) Length() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Verify replays the chain and reports the first inconsistency found.
func (l *Ledger) Verify() (bool, string) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	prevHash := genesisHash
	for i, entry := range l.entries {
		if entry.PrevHash != prevHash {
			return false, fmt.Sprintf("chain broken at entry %d: expected prev %s, got %s", i+1, prevHash, entry.PrevHash)
		}
		if computed := contentHash(entry.Sequence, entry.Type, entry.Data, entry.PrevHash); computed != entry.ContentHash {
			return false, fmt.Sprintf("hash mismatch at entry %d", i+1)
		}
		prevHash = entry.ContentHash
	}
	return true, "chain verified"
}
