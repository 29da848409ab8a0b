package checkpoint

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	tkerrors "github.com/randalmurphal/trainkit/pkg/trainkit/errors"
	"modernc.org/sqlite" // Pure Go SQLite driver
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteBackend stores entries as rows of a single SQLite table.
// Every write is one statement, so each entry is replaced atomically.
type SQLiteBackend struct {
	db     *sql.DB
	path   string
	closed bool
}

// Compile-time interface check.
var _ Backend = (*SQLiteBackend)(nil)

// NewSQLiteBackend opens (creating if needed) the database at path.
// The path should be a file path (e.g., "./checkpoints.db") or ":memory:" for testing.
func NewSQLiteBackend(path string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS checkpoints (
			name TEXT PRIMARY KEY,
			timestamp TEXT NOT NULL,
			data BLOB NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	return &SQLiteBackend{db: db, path: path}, nil
}

// Root implements Backend.
func (s *SQLiteBackend) Root() string {
	return s.path
}

// Locate implements Backend. Rows are keyed by entry name.
func (s *SQLiteBackend) Locate(name string) string {
	return name
}

// Names implements Backend.
func (s *SQLiteBackend) Names() ([]string, error) {
	rows, err := s.db.Query(`SELECT name FROM checkpoints ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan checkpoint name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkpoints: %w", err)
	}
	return names, nil
}

// Exists implements Backend.
func (s *SQLiteBackend) Exists(loc string) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM checkpoints WHERE name = ?`, loc).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check checkpoint: %w", err)
	}
	return true, nil
}

// Ensure implements Backend. The table is created when the backend is opened.
func (s *SQLiteBackend) Ensure() (bool, error) {
	return false, nil
}

// Read implements Backend.
func (s *SQLiteBackend) Read(loc string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRow(`SELECT data FROM checkpoints WHERE name = ?`, loc).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tkerrors.ErrNotFound
	}
	if err != nil {
		return nil, classify(fmt.Errorf("load checkpoint: %w", err))
	}
	return data, nil
}

// Write implements Backend.
func (s *SQLiteBackend) Write(loc string, data []byte) error {
	_, err := s.db.Exec(`
		INSERT INTO checkpoints (name, timestamp, data)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			timestamp = excluded.timestamp,
			data = excluded.data
	`, loc, time.Now().UTC().Format(time.RFC3339Nano), data)
	if err != nil {
		return classify(fmt.Errorf("save checkpoint: %w", err))
	}
	return nil
}

// classify marks busy and locked database errors as transient.
func classify(err error) error {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return tkerrors.Transient(err)
		}
	}
	return err
}

// Close releases the database handle. Safe to call more than once.
func (s *SQLiteBackend) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
