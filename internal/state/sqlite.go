package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // sqlite driver
)

// schemaVersion is stored in PRAGMA user_version. Bump it when the table
// layout changes.
const schemaVersion = 1

const sqliteBusyTimeout = 5000 // milliseconds

// SQLiteStorage keeps state in a single key-value table.
type SQLiteStorage struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and migrates it.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStorage, error) {
	if path == "" {
		return nil, errors.New("sqlite state: open: path is empty")
	}

	if path != ":memory:" {
		err := os.MkdirAll(filepath.Dir(path), dirPerms)
		if err != nil {
			return nil, fmt.Errorf("sqlite state: create dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite state: open: %w", err)
	}

	// One connection keeps :memory: databases coherent and avoids
	// SQLITE_BUSY between our own goroutines.
	db.SetMaxOpenConns(1)

	err = db.PingContext(ctx)
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("sqlite state: ping: %w", err)
	}

	s := &SQLiteStorage{db: db}

	err = s.migrate(ctx)
	if err != nil {
		_ = db.Close()

		return nil, err
	}

	return s, nil
}

func (s *SQLiteStorage) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout = %d", sqliteBusyTimeout))
	if err != nil {
		return fmt.Errorf("sqlite state: pragmas: %w", err)
	}

	var version int

	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version)
	if err != nil {
		return fmt.Errorf("sqlite state: read user_version: %w", err)
	}

	if version == schemaVersion {
		return nil
	}

	_, err = s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS state (
			key        TEXT PRIMARY KEY,
			value      BLOB NOT NULL,
			updated_at INTEGER NOT NULL
		) WITHOUT ROWID`)
	if err != nil {
		return fmt.Errorf("sqlite state: migrate: %w", err)
	}

	_, err = s.db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", schemaVersion))
	if err != nil {
		return fmt.Errorf("sqlite state: set user_version: %w", err)
	}

	return nil
}

// Load implements Storage.
func (s *SQLiteStorage) Load(ctx context.Context, key string) ([]byte, error) {
	err := validateKey(key)
	if err != nil {
		return nil, err
	}

	var data []byte

	err = s.db.QueryRowContext(ctx, "SELECT value FROM state WHERE key = ?", key).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}

		return nil, fmt.Errorf("sqlite state: load %s: %w", key, err)
	}

	return data, nil
}

// Save implements Storage.
func (s *SQLiteStorage) Save(ctx context.Context, key string, data []byte) error {
	err := validateKey(key)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, data, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("sqlite state: save %s: %w", key, err)
	}

	return nil
}

// Delete implements Storage.
func (s *SQLiteStorage) Delete(ctx context.Context, key string) error {
	err := validateKey(key)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, "DELETE FROM state WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("sqlite state: delete %s: %w", key, err)
	}

	return nil
}

// Close implements Storage.
func (s *SQLiteStorage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}

	err := s.db.Close()
	if err != nil {
		return fmt.Errorf("sqlite state: close: %w", err)
	}

	return nil
}
