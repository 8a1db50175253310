// Package sqlite provides a LocalStore kept in a SQLite database file using
// the pure Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	ra "github.com/panyam/recipeauth"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS local_values (
  key   TEXT PRIMARY KEY,
  value BLOB NOT NULL
);`

var _ ra.LocalStore = (*LocalStore)(nil)

// LocalStore implements ra.LocalStore on a single key/value table
type LocalStore struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at dsn. ":memory:" works for tests.
func Open(ctx context.Context, dsn string) (*LocalStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}
	// one connection so ":memory:" databases are shared
	db.SetMaxOpenConns(1)

	store, err := NewLocalStore(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewLocalStore wraps an open database and ensures the table exists
func NewLocalStore(ctx context.Context, db *sql.DB) (*LocalStore, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to create local store table: %w", err)
	}
	return &LocalStore{db: db}, nil
}

func (s *LocalStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM local_values WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get local value[%s]: %w", key, err)
	}
	return value, nil
}

func (s *LocalStore) Set(ctx context.Context, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO local_values (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set local value[%s]: %w", key, err)
	}
	return nil
}

func (s *LocalStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM local_values WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete local value[%s]: %w", key, err)
	}
	return nil
}

// Keys lists stored keys in sorted order
func (s *LocalStore) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM local_values ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list local values: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan local value row: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate local value rows: %w", err)
	}
	return keys, nil
}

func (s *LocalStore) Close() error {
	return s.db.Close()
}
