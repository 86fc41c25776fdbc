package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps long-lived preferences in a local single-file database.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLiteStore opens (or creates) the database at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("repository: missing sqlite path")
	}
	p = filepath.Clean(p)
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return nil, fmt.Errorf("repository: create sqlite dir: %w", err)
	}

	// modernc.org/sqlite uses a file path as DSN.
	db, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, fmt.Errorf("repository: open sqlite: %w", err)
	}
	if err := initPrefsSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	// Single-process local DB.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &SQLiteStore{db: db, now: time.Now}, nil
}

func initPrefsSchema(db *sql.DB) error {
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS preferences (
  pref_key TEXT PRIMARY KEY,
  pref_value TEXT NOT NULL,
  updated_at_unix_ms INTEGER NOT NULL
)`)
	if err != nil {
		return fmt.Errorf("repository: init sqlite schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (string, bool, error) {
	if s == nil || s.db == nil {
		return "", false, errors.New("repository: sqlite store not initialized")
	}
	if err := validKey(key); err != nil {
		return "", false, err
	}
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT pref_value FROM preferences WHERE pref_key = ?`, key).Scan(&v)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("repository: Get %q: %w", key, err)
	}
	return v, true, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key, value string) error {
	if s == nil || s.db == nil {
		return errors.New("repository: sqlite store not initialized")
	}
	if err := validKey(key); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO preferences(pref_key, pref_value, updated_at_unix_ms) VALUES(?, ?, ?)
ON CONFLICT(pref_key) DO UPDATE SET pref_value = excluded.pref_value, updated_at_unix_ms = excluded.updated_at_unix_ms
`, key, value, s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("repository: Set %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if s == nil || s.db == nil {
		return errors.New("repository: sqlite store not initialized")
	}
	if err := validKey(key); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM preferences WHERE pref_key = ?`, key); err != nil {
		return fmt.Errorf("repository: Delete %q: %w", key, err)
	}
	return nil
}
