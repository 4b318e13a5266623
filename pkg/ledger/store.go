package ledger

import "errors"

// ErrSequenceGap is returned when a store's entries do not form a contiguous,
// 1-based sequence.
var ErrSequenceGap = errors.New("ledger: store entries have a sequence gap")

// Store persists ledger entries. Implementations must preserve insertion
// order and never mutate stored entries.
type Store interface {
	Append(entry Entry) error
	List() ([]Entry, error)
	Close() error
}

// Load rebuilds a ledger from a store and verifies the chain. The returned
// ledger continues to mirror new entries into the same store.
func Load(s Store) (*Ledger, error) {
	entries, err := s.List()
	if err != nil {
		return nil, err
	}

	l := New()
	for i, entry := range entries {
		if entry.Sequence != uint64(i)+1 {
			return nil, ErrSequenceGap
		}
		l.entries = append(l.entries, entry)
		l.headHash = entry.ContentHash
	}
	if ok, detail := l.Verify(); !ok {
		return nil, errors.New("ledger: " + detail)
	}
	l.store = s
	return l, nil
}

// MemoryStore keeps entries in process memory. Useful for tests and for
// runs that only need the in-ledger copy.
type MemoryStore struct {
	entries []Entry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(entry Entry) error {
	s.entries = append(s.entries, entry)
	return nil
}

func (s *MemoryStore) List() ([]Entry, error) {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
