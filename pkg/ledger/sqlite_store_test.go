package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stewardrun/steward/pkg/ledger"
)

func TestSQLiteStoreRoundTrip(t *testing.T) {
	store, err := ledger.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	l := ledger.New().WithStore(store)
	require.NoError(t, l.Record("run_started", map[string]any{"run_id": "r1"}))
	require.NoError(t, l.RecordSpend(ledger.SpendReceipt{
		ActionID: "swap", Category: "swap", Amount: 1.25, Currency: "USDC", Status: ledger.SettlementSettled,
	}))
	require.NoError(t, l.RecordAssessment(map[string]any{"action_id": "swap", "approved": true}))

	entries, err := store.List()
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, ledger.EntryEvent, entries[0].Type)
	assert.Equal(t, ledger.EntrySpend, entries[1].Type)
	assert.Equal(t, ledger.EntryAssessment, entries[2].Type)

	replayed, err := ledger.Load(store)
	require.NoError(t, err)
	assert.Equal(t, l.Head(), replayed.Head())

	r, err := replayed.Report()
	require.NoError(t, err)
	assert.InDelta(t, 1.25, r.Totals.SettledUSD, 1e-9)
}

func TestSQLiteStorePersistsAcrossHandles(t *testing.T) {
	path := t.TempDir() + "/ledger.db"

	store, err := ledger.NewSQLiteStore(path)
	require.NoError(t, err)

	l := ledger.New().WithStore(store)
	require.NoError(t, l.Record("run_started", nil))
	head := l.Head()
	require.NoError(t, store.Close())

	reopened, err := ledger.NewSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	replayed, err := ledger.Load(reopened)
	require.NoError(t, err)
	assert.Equal(t, head, replayed.Head())
	assert.Equal(t, 1, replayed.Length())
}
