package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/calvinalkan/tk-desk/internal/state"
)

// FilterStateKey is the storage key for the filter store.
const FilterStateKey = "filter-store"

// Persistable is a store whose state can be saved and restored.
type Persistable[T any] interface {
	Observable
	Snapshot() T
	Restore(v T)
}

// Persist restores p from storage under key, then saves p's snapshot
// after every change. A missing key leaves p untouched. Save failures go
// to onError (which may be nil) and never reach the code that changed
// the store. The returned function stops saving.
func Persist[T any](ctx context.Context, p Persistable[T], storage state.Storage, key string, onError func(error)) (func(), error) {
	data, err := storage.Load(ctx, key)

	switch {
	case errors.Is(err, state.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("persist %s: load: %w", key, err)
	default:
		var v T

		err = json.Unmarshal(data, &v)
		if err != nil {
			return nil, fmt.Errorf("persist %s: decode: %w", key, err)
		}

		p.Restore(v)
	}

	if onError == nil {
		onError = func(error) {}
	}

	var (
		mu   sync.Mutex
		last []byte
	)

	last, _ = json.Marshal(p.Snapshot())

	// The snapshot is taken under mu so saves land in snapshot order.
	save := func() {
		mu.Lock()
		defer mu.Unlock()

		encoded, encErr := json.Marshal(p.Snapshot())
		if encErr != nil {
			onError(fmt.Errorf("persist %s: encode: %w", key, encErr))

			return
		}

		// Changes outside the snapshot (ephemeral fields) do not write.
		if bytes.Equal(encoded, last) {
			return
		}

		saveErr := storage.Save(ctx, key, encoded)
		if saveErr != nil {
			onError(fmt.Errorf("persist %s: save: %w", key, saveErr))

			return
		}

		last = encoded
	}

	return p.Subscribe(save), nil
}
