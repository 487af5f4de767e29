package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver
)

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	source_name   TEXT NOT NULL,
	external_id   TEXT NOT NULL,
	category      TEXT NOT NULL,
	kind          TEXT NOT NULL,
	title         TEXT NOT NULL,
	content       TEXT NOT NULL DEFAULT '',
	timestamp     TEXT NOT NULL,
	numeric_value REAL,
	unit          TEXT NOT NULL DEFAULT '',
	tags          TEXT NOT NULL DEFAULT '[]',
	created_at    TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
	UNIQUE (source_name, external_id)
);
CREATE INDEX IF NOT EXISTS idx_entries_timestamp ON entries (timestamp);
`

// Pragmas applied on open: WAL for concurrent readers, busy timeout so a
// scheduled sync and a manual sync never fail on a transient lock.
var pragmas = []string{
	"PRAGMA foreign_keys = ON",
	"PRAGMA journal_mode = WAL",
	"PRAGMA busy_timeout = 10000",
	"PRAGMA synchronous = NORMAL",
}

// SQLiteStore is the reference Store implementation backed by a local SQLite file
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (creating if needed) the journal database at path
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("store path cannot be empty")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply journal schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Put stores an entry, deduplicating on (source name, external id)
func (s *SQLiteStore) Put(ctx context.Context, entry *Entry) (bool, error) {
	if entry == nil {
		return false, fmt.Errorf("entry cannot be nil")
	}
	if entry.SourceName == "" || entry.ExternalID == "" {
		return false, fmt.Errorf("entry must have source name and external id")
	}

	tags, err := json.Marshal(entry.Tags)
	if err != nil {
		return false, fmt.Errorf("failed to encode tags: %w", err)
	}

	var numeric sql.NullFloat64
	if entry.NumericValue != nil {
		numeric = sql.NullFloat64{Float64: *entry.NumericValue, Valid: true}
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO entries (source_name, external_id, category, kind, title, content, timestamp, numeric_value, unit, tags)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (source_name, external_id) DO NOTHING`,
		entry.SourceName, entry.ExternalID, entry.Category, entry.Kind,
		entry.Title, entry.Content, entry.Timestamp.UTC().Format(time.RFC3339Nano),
		numeric, entry.Unit, string(tags),
	)
	if err != nil {
		return false, fmt.Errorf("failed to store entry: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}

	return n > 0, nil
}

// Get returns the entry for the given (source name, external id)
func (s *SQLiteStore) Get(ctx context.Context, sourceName, externalID string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT source_name, external_id, category, kind, title, content, timestamp, numeric_value, unit, tags
		FROM entries WHERE source_name = ? AND external_id = ?`,
		sourceName, externalID,
	)

	var (
		entry   Entry
		ts      string
		numeric sql.NullFloat64
		tags    string
	)
	err := row.Scan(&entry.SourceName, &entry.ExternalID, &entry.Category, &entry.Kind,
		&entry.Title, &entry.Content, &ts, &numeric, &entry.Unit, &tags)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load entry: %w", err)
	}

	entry.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil, fmt.Errorf("failed to parse entry timestamp: %w", err)
	}
	if numeric.Valid {
		v := numeric.Float64
		entry.NumericValue = &v
	}
	if err := json.Unmarshal([]byte(tags), &entry.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", err)
	}

	return &entry, nil
}

// Count returns the total number of stored entries
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return count, nil
}

// Prune removes entries older than the cutoff
func (s *SQLiteStore) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE timestamp < ?`,
		cutoff.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("failed to prune entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read prune result: %w", err)
	}
	return int(n), nil
}

// Close closes the underlying database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
