// Package state persists small named blobs of client state (saved filters,
// the current filter set, page size) so they survive restarts. Three
// backends share one interface: a directory of JSON files, a SQLite
// key-value table and a Redis keyspace.
package state

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/calvinalkan/tk-desk/internal/ticket"
)

// Errors returned by every Storage implementation.
var (
	ErrNotFound   = errors.New("state not found")
	ErrInvalidKey = errors.New("invalid state key")
)

// Storage is a key-value store for serialized client state.
// Load returns ErrNotFound when key has never been saved.
type Storage interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Open returns the backend selected by cfg.Storage.
func Open(ctx context.Context, cfg ticket.Config) (Storage, error) {
	switch cfg.Storage {
	case ticket.StorageFile, "":
		return NewFileStorage(cfg.StateDirAbs)
	case ticket.StorageSQLite:
		return OpenSQLite(ctx, filepath.Join(cfg.StateDirAbs, "state.sqlite"))
	case ticket.StorageRedis:
		return DialRedis(ctx, cfg.RedisAddr)
	default:
		return nil, fmt.Errorf("open state: unknown storage %q", cfg.Storage)
	}
}

// validateKey rejects keys that would escape a directory or collide with
// lock files.
func validateKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	return nil
}
