package store

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// newUUIDv7 generates time-ordered ids, so saved filters list in creation
// order and two saves in the same millisecond still get distinct ids.
func newUUIDv7() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuidv7: %w", err)
	}

	return id.String(), nil
}

// resolveID finds the single id in ids equal to or prefixed by query.
func resolveID(ids []string, query string) (string, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return "", fmt.Errorf("%w: empty id", ErrSavedFilterNotFound)
	}

	var match string

	for _, id := range ids {
		if id == query {
			return id, nil
		}

		if strings.HasPrefix(id, query) {
			if match != "" {
				return "", fmt.Errorf("%w: %s", ErrAmbiguousID, query)
			}

			match = id
		}
	}

	if match == "" {
		return "", fmt.Errorf("%w: %s", ErrSavedFilterNotFound, query)
	}

	return match, nil
}
