// Package sqliteaudit is a durable audit.Store backed by an embedded
// sqlite3 database, grounded on the teacher's persistence.DgraphClient
// shape (a small mutex-guarded client behind a narrow interface) with the
// graph backend swapped for an embedded SQL one, since the audit log
// needs only append + read-all + clear, not a graph.
package sqliteaudit

import (
	"database/sql"
	"fmt"
	"os"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// Config holds connection settings for the audit store.
type Config struct {
	Path string
}

// DefaultConfig returns the default sqlite path, overridable via the
// SOULCORE_AUDIT_DB environment variable.
func DefaultConfig() Config {
	path := os.Getenv("SOULCORE_AUDIT_DB")
	if path == "" {
		path = "soulcore_audit.db"
	}
	return Config{Path: path}
}

// Store implements audit.Store against a single sqlite table of
// append-only encoded lines.
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// Open connects to (creating if necessary) the sqlite database at
// cfg.Path and ensures the audit_log table exists.
func Open(cfg Config) (*Store, error) {
	db, err := sql.Open("sqlite3", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("sqliteaudit: open: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		line TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqliteaudit: create table: %w", err)
	}
	return &Store{db: db, path: cfg.Path}, nil
}

// Append writes one encoded audit line, ordered by autoincrement id.
func (s *Store) Append(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`INSERT INTO audit_log (line) VALUES (?)`, line)
	if err != nil {
		return fmt.Errorf("sqliteaudit: append: %w", err)
	}
	return nil
}

// ReadAll returns every stored line in append order, for cache hydration.
func (s *Store) ReadAll() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query(`SELECT line FROM audit_log ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("sqliteaudit: read all: %w", err)
	}
	defer rows.Close()

	var lines []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("sqliteaudit: scan: %w", err)
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// Clear removes every stored line. Testing only, per audit.Log.Clear.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.Exec(`DELETE FROM audit_log`); err != nil {
		return fmt.Errorf("sqliteaudit: clear: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
