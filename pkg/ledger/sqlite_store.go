package ledger

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS ledger_entries (
	sequence     INTEGER PRIMARY KEY,
	entry_type   TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	prev_hash    TEXT NOT NULL,
	recorded_at  TIMESTAMP NOT NULL,
	data         BLOB NOT NULL
);`

// SQLiteStore persists entries in an embedded SQLite database. Single-writer
// by construction: the ledger serializes appends.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and migrates) a SQLite-backed store at path.
// Use ":memory:" for an ephemeral store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ledger: open sqlite store: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger: migrate sqlite store: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Append(entry Entry) error {
	_, err := s.db.Exec(
		"INSERT INTO ledger_entries (sequence, entry_type, content_hash, prev_hash, recorded_at, data) VALUES (?, ?, ?, ?, ?, ?)",
		entry.Sequence, string(entry.Type), entry.ContentHash, entry.PrevHash, entry.Timestamp, []byte(entry.Data),
	)
	if err != nil {
		return fmt.Errorf("ledger: insert entry %d: %w", entry.Sequence, err)
	}
	return nil
}

func (s *SQLiteStore) List() ([]Entry, error) {
	rows, err := s.db.Query(
		"SELECT sequence, entry_type, content_hash, prev_hash, recorded_at, data FROM ledger_entries ORDER BY sequence ASC",
	)
	if err != nil {
		return nil, fmt.Errorf("ledger: list entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var entryType string
		var data []byte
		if err := rows.Scan(&e.Sequence, &entryType, &e.ContentHash, &e.PrevHash, &e.Timestamp, &data); err != nil {
			return nil, fmt.Errorf("ledger: scan entry: %w", err)
		}
		e.Type = EntryType(entryType)
		e.Data = data
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
