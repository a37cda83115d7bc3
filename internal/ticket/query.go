package ticket

import (
	"fmt"
	"slices"
)

// SortOrder is "asc" or "desc".
type SortOrder string

// Sort orders.
const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Sortable fields understood by the desk backend.
const (
	SortCreatedAt = "created_at"
	SortUpdatedAt = "updated_at"
	SortPriority  = "priority"
	SortDueDate   = "due_date"
	SortID        = "id"
	SortTitle     = "title"
)

//nolint:gochecknoglobals // package-level constant
var sortFields = []string{SortCreatedAt, SortUpdatedAt, SortPriority, SortDueDate, SortID, SortTitle}

// ValidateSort checks field and order.
func ValidateSort(field string, order SortOrder) error {
	if !slices.Contains(sortFields, field) {
		return fmt.Errorf("%w: field %q", ErrInvalidSort, field)
	}

	if order != SortAsc && order != SortDesc {
		return fmt.Errorf("%w: order %q", ErrInvalidSort, order)
	}

	return nil
}

// Query is one page request against the ticket source.
type Query struct {
	Criteria  Criteria  `json:"criteria"`
	Search    string    `json:"search,omitempty"`
	SortBy    string    `json:"sort_by"`
	SortOrder SortOrder `json:"sort_order"`
	Page      int       `json:"page"`
	PageSize  int       `json:"page_size"`
}

// Page is one page of results plus the total number of matches.
type Page struct {
	Tickets []Ticket `json:"tickets"`
	Total   int      `json:"total"`
}
