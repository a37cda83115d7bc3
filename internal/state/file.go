package state

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
)

const (
	dirPerms  = 0o750
	filePerms = 0o600
)

// FileStorage keeps one <key>.json file per key in a directory. Writes are
// atomic (temp file plus rename) and serialized across processes with an
// flock per key.
type FileStorage struct {
	dir string
}

// NewFileStorage creates dir if needed.
func NewFileStorage(dir string) (*FileStorage, error) {
	if dir == "" {
		return nil, errors.New("file state: directory is empty")
	}

	err := os.MkdirAll(dir, dirPerms)
	if err != nil {
		return nil, fmt.Errorf("file state: create dir: %w", err)
	}

	return &FileStorage{dir: filepath.Clean(dir)}, nil
}

func (s *FileStorage) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// Load implements Storage.
func (s *FileStorage) Load(_ context.Context, key string) ([]byte, error) {
	err := validateKey(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}

		return nil, fmt.Errorf("file state: load %s: %w", key, err)
	}

	return data, nil
}

// Save implements Storage.
func (s *FileStorage) Save(_ context.Context, key string, data []byte) error {
	err := validateKey(key)
	if err != nil {
		return err
	}

	path := s.path(key)

	return withLock(path, func() error {
		writeErr := atomic.WriteFile(path, bytes.NewReader(data))
		if writeErr != nil {
			return fmt.Errorf("file state: save %s: %w", key, writeErr)
		}

		return nil
	})
}

// Delete implements Storage. Deleting a missing key is not an error.
func (s *FileStorage) Delete(_ context.Context, key string) error {
	err := validateKey(key)
	if err != nil {
		return err
	}

	path := s.path(key)

	return withLock(path, func() error {
		rmErr := os.Remove(path)
		if rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			return fmt.Errorf("file state: delete %s: %w", key, rmErr)
		}

		return nil
	})
}

// Close implements Storage.
func (s *FileStorage) Close() error { return nil }
