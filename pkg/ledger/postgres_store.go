package ledger

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresStore persists entries in PostgreSQL for shared, durable audit
// trails across hosts.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an open *sql.DB. The caller owns connection
// lifecycle configuration; Close closes the handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the entries table if it does not exist.
func (s *PostgresStore) Migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS ledger_entries (
			sequence     BIGINT PRIMARY KEY,
			entry_type   TEXT NOT NULL,
			content_hash TEXT NOT NULL,
			prev_hash    TEXT NOT NULL,
			recorded_at  TIMESTAMPTZ NOT NULL,
			data         JSONB NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("ledger: migrate postgres store: %w", err)
	}
	return nil
}

func (s *PostgresStore) Append(entry Entry) error {
	_, err := s.db.Exec(
		"INSERT INTO ledger_entries (sequence, entry_type, content_hash, prev_hash, recorded_at, data) VALUES ($1, $2, $3, $4, $5, $6)",
		entry.Sequence, string(entry.Type), entry.ContentHash, entry.PrevHash, entry.Timestamp, []byte(entry.Data),
	)
	if err != nil {
		return fmt.Errorf("ledger: insert entry %d: %w", entry.Sequence, err)
	}
	return nil
}

func (s *PostgresStore) List() ([]Entry, error) {
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

func (s *PostgresStore) Close() error { return s.db.Close() }
