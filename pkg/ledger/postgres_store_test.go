package ledger

import (
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresStoreAppend(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ledger_entries")).
		WithArgs(uint64(1), "SPEND", "sha256:abc", "genesis", ts, []byte(`{"amount":1}`)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = store.Append(Entry{
		Sequence:    1,
		Type:        EntrySpend,
		ContentHash: "sha256:abc",
		PrevHash:    "genesis",
		Timestamp:   ts,
		Data:        json.RawMessage(`{"amount":1}`),
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreList(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"sequence", "entry_type", "content_hash", "prev_hash", "recorded_at", "data"}).
		AddRow(1, "EVENT", "sha256:a", "genesis", ts, []byte(`{"event":"run_started"}`)).
		AddRow(2, "SPEND", "sha256:b", "sha256:a", ts, []byte(`{"amount":1}`))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT sequence, entry_type, content_hash, prev_hash, recorded_at, data FROM ledger_entries ORDER BY sequence ASC")).
		WillReturnRows(rows)

	entries, err := store.List()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, EntryEvent, entries[0].Type)
	assert.Equal(t, "sha256:a", entries[1].PrevHash)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreMigrate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS ledger_entries").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, NewPostgresStore(db).Migrate())
	assert.NoError(t, mock.ExpectationsWereMet())
}
