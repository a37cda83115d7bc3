package store

import "errors"

// Errors returned by the filter store.
var (
	ErrSavedFilterNotFound = errors.New("saved filter not found")
	ErrAmbiguousID         = errors.New("ambiguous saved filter id")
	ErrEmptyName           = errors.New("saved filter name cannot be empty")
	ErrInvalidPage         = errors.New("invalid pagination")
)

// errNoChange aborts an update without notifying subscribers.
var errNoChange = errors.New("no change")
