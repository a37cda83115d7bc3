package store

import (
	"context"
	"log/slog"
)

// LogChanges logs every change of o at debug level under the given store
// name. describe, if not nil, supplies extra attributes read from the
// store after the change.
func LogChanges(o Observable, logger *slog.Logger, name string, describe func() []any) func() {
	return o.Subscribe(func() {
		if !logger.Enabled(context.Background(), slog.LevelDebug) {
			return
		}

		args := []any{slog.String("store", name)}
		if describe != nil {
			args = append(args, describe()...)
		}

		logger.Debug("store changed", args...)
	})
}
