package store

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/calvinalkan/tk-desk/internal/clock"
	"github.com/calvinalkan/tk-desk/internal/ticket"
)

// DefaultPageSize is used when NewFilterStore gets a non-positive size.
const DefaultPageSize = 20

// Pagination is the paging position. Total is supplied by the ticket
// source and never computed locally.
type Pagination struct {
	Current  int `json:"current"`
	PageSize int `json:"page_size"`
	Total    int `json:"total"`
}

// PaginationPatch merges into Pagination; nil fields are kept.
type PaginationPatch struct {
	Current  *int
	PageSize *int
	Total    *int
}

// SavedFilter is a named snapshot of criteria.
type SavedFilter struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Filters   ticket.Criteria `json:"filters"`
	CreatedAt time.Time       `json:"created_at"`
}

// FilterState is the persisted part of a FilterStore.
type FilterState struct {
	Filters      ticket.Criteria  `json:"filters"`
	Pagination   Pagination       `json:"pagination"`
	SortBy       string           `json:"sort_by"`
	SortOrder    ticket.SortOrder `json:"sort_order"`
	SearchQuery  string           `json:"search_query"`
	SavedFilters []SavedFilter    `json:"saved_filters"`
}

// FilterStore holds filter criteria, search, sort, pagination and saved
// filters. Every change to criteria or search moves back to page 1.
type FilterStore struct {
	subscribers

	clock    clock.Clock
	pageSize int

	mu           sync.RWMutex
	st           FilterState
	showAdvanced bool
}

// NewFilterStore returns a store with no filters, newest first, on page 1.
func NewFilterStore(clk clock.Clock, pageSize int) *FilterStore {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}

	return &FilterStore{
		clock:    clk,
		pageSize: pageSize,
		st:       initialFilterState(pageSize),
	}
}

func initialFilterState(pageSize int) FilterState {
	return FilterState{
		Pagination: Pagination{Current: 1, PageSize: pageSize},
		SortBy:     ticket.SortCreatedAt,
		SortOrder:  ticket.SortDesc,
	}
}

func (s *FilterStore) update(fn func(st *FilterState) error) error {
	s.mu.Lock()
	err := fn(&s.st)
	s.mu.Unlock()

	if err != nil {
		return err
	}

	s.notify()

	return nil
}

// refilter applies fn to the criteria and resets to page 1.
func (s *FilterStore) refilter(fn func(st *FilterState) error) error {
	return s.update(func(st *FilterState) error {
		err := fn(st)
		if err != nil {
			return err
		}

		st.Pagination.Current = 1

		return nil
	})
}

// SetFilters replaces all criteria.
func (s *FilterStore) SetFilters(c ticket.Criteria) {
	_ = s.refilter(func(st *FilterState) error {
		st.Filters = c.Clone()

		return nil
	})
}

// UpdateFilters overlays the set dimensions of partial onto the criteria.
func (s *FilterStore) UpdateFilters(partial ticket.Criteria) {
	_ = s.refilter(func(st *FilterState) error {
		st.Filters = st.Filters.Merge(partial)

		return nil
	})
}

// AddFilter sets one dimension. On error nothing changes.
func (s *FilterStore) AddFilter(key ticket.FilterKey, value any) error {
	return s.refilter(func(st *FilterState) error {
		c, err := st.Filters.Set(key, value)
		if err != nil {
			return fmt.Errorf("add filter: %w", err)
		}

		st.Filters = c

		return nil
	})
}

// RemoveFilter clears one dimension.
func (s *FilterStore) RemoveFilter(key ticket.FilterKey) error {
	return s.refilter(func(st *FilterState) error {
		c, err := st.Filters.Remove(key)
		if err != nil {
			return fmt.Errorf("remove filter: %w", err)
		}

		st.Filters = c

		return nil
	})
}

// SetSearchQuery sets the free-text search.
func (s *FilterStore) SetSearchQuery(q string) {
	_ = s.refilter(func(st *FilterState) error {
		st.SearchQuery = q

		return nil
	})
}

// ClearSearch empties the free-text search.
func (s *FilterStore) ClearSearch() {
	s.SetSearchQuery("")
}

// ClearFilters drops all criteria. The search query is kept.
func (s *FilterStore) ClearFilters() {
	s.SetFilters(ticket.Criteria{})
}

// SetSort sets field and order. The page is not reset.
func (s *FilterStore) SetSort(field string, order ticket.SortOrder) error {
	err := ticket.ValidateSort(field, order)
	if err != nil {
		return fmt.Errorf("set sort: %w", err)
	}

	return s.update(func(st *FilterState) error {
		st.SortBy = field
		st.SortOrder = order

		return nil
	})
}

// ToggleSort switches to ascending only when field is already sorted
// descending. Any other case sorts field descending.
func (s *FilterStore) ToggleSort(field string) error {
	err := ticket.ValidateSort(field, ticket.SortDesc)
	if err != nil {
		return fmt.Errorf("toggle sort: %w", err)
	}

	return s.update(func(st *FilterState) error {
		order := ticket.SortDesc
		if st.SortBy == field && st.SortOrder == ticket.SortDesc {
			order = ticket.SortAsc
		}

		st.SortBy = field
		st.SortOrder = order

		return nil
	})
}

// SetPagination merges p into the pagination.
func (s *FilterStore) SetPagination(p PaginationPatch) error {
	return s.update(func(st *FilterState) error {
		next := st.Pagination

		if p.Current != nil {
			next.Current = *p.Current
		}

		if p.PageSize != nil {
			next.PageSize = *p.PageSize
		}

		if p.Total != nil {
			next.Total = *p.Total
		}

		if next.Current < 1 || next.PageSize < 1 || next.Total < 0 {
			return fmt.Errorf("%w: %+v", ErrInvalidPage, next)
		}

		st.Pagination = next

		return nil
	})
}

// UpdatePagination moves to page current, and changes the page size when
// pageSize is positive.
func (s *FilterStore) UpdatePagination(current, pageSize int) error {
	p := PaginationPatch{Current: &current}
	if pageSize > 0 {
		p.PageSize = &pageSize
	}

	return s.SetPagination(p)
}

// SetTotal records the match count reported by the ticket source.
func (s *FilterStore) SetTotal(total int) error {
	return s.SetPagination(PaginationPatch{Total: &total})
}

// SetPageSize changes the page size and returns to page 1.
func (s *FilterStore) SetPageSize(size int) error {
	first := 1

	return s.SetPagination(PaginationPatch{Current: &first, PageSize: &size})
}

// NextPage advances one page unless already on the last page.
func (s *FilterStore) NextPage() bool {
	return s.step(1)
}

// PrevPage goes back one page unless already on page 1.
func (s *FilterStore) PrevPage() bool {
	return s.step(-1)
}

func (s *FilterStore) step(delta int) bool {
	moved := false

	_ = s.update(func(st *FilterState) error {
		next := st.Pagination.Current + delta
		if next < 1 || next > totalPages(st.Pagination) {
			return errNoChange
		}

		st.Pagination.Current = next
		moved = true

		return nil
	})

	return moved
}

// TotalPages is the page count for the last reported total; at least 1.
func (s *FilterStore) TotalPages() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return totalPages(s.st.Pagination)
}

func totalPages(p Pagination) int {
	if p.Total <= 0 || p.PageSize <= 0 {
		return 1
	}

	return (p.Total + p.PageSize - 1) / p.PageSize
}

// SaveFilter stores the current criteria under name.
func (s *FilterStore) SaveFilter(name string) (SavedFilter, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return SavedFilter{}, ErrEmptyName
	}

	id, err := newUUIDv7()
	if err != nil {
		return SavedFilter{}, fmt.Errorf("save filter: %w", err)
	}

	var saved SavedFilter

	err = s.update(func(st *FilterState) error {
		saved = SavedFilter{
			ID:        id,
			Name:      name,
			Filters:   st.Filters.Clone(),
			CreatedAt: s.clock.Now(),
		}
		st.SavedFilters = append(slices.Clone(st.SavedFilters), saved)

		return nil
	})

	return saved, err
}

// ApplySavedFilter replaces the criteria with a saved snapshot and returns
// to page 1. id may be a unique prefix.
func (s *FilterStore) ApplySavedFilter(id string) (SavedFilter, error) {
	var applied SavedFilter

	err := s.refilter(func(st *FilterState) error {
		idx, err := st.savedIndex(id)
		if err != nil {
			return fmt.Errorf("apply saved filter: %w", err)
		}

		applied = st.SavedFilters[idx]
		st.Filters = applied.Filters.Clone()

		return nil
	})

	return applied, err
}

// DeleteSavedFilter removes a saved filter. id may be a unique prefix.
func (s *FilterStore) DeleteSavedFilter(id string) error {
	return s.update(func(st *FilterState) error {
		idx, err := st.savedIndex(id)
		if err != nil {
			return fmt.Errorf("delete saved filter: %w", err)
		}

		st.SavedFilters = slices.Delete(slices.Clone(st.SavedFilters), idx, idx+1)

		return nil
	})
}

func (st *FilterState) savedIndex(query string) (int, error) {
	ids := make([]string, len(st.SavedFilters))
	for i, f := range st.SavedFilters {
		ids[i] = f.ID
	}

	id, err := resolveID(ids, query)
	if err != nil {
		return -1, err
	}

	return slices.Index(ids, id), nil
}

// SavedFilters returns the saved filters in creation order.
func (s *FilterStore) SavedFilters() []SavedFilter {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.st.SavedFilters)
}

// SetShowAdvanced toggles the advanced filter panel. Never persisted.
func (s *FilterStore) SetShowAdvanced(v bool) {
	s.mu.Lock()
	s.showAdvanced = v
	s.mu.Unlock()

	s.notify()
}

// ShowAdvanced reports whether the advanced filter panel is open.
func (s *FilterStore) ShowAdvanced() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.showAdvanced
}

// Filters returns the active criteria.
func (s *FilterStore) Filters() ticket.Criteria {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.st.Filters.Clone()
}

// Pagination returns the paging position.
func (s *FilterStore) Pagination() Pagination {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.st.Pagination
}

// Query builds the fetch request for the current page.
func (s *FilterStore) Query() ticket.Query {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return ticket.Query{
		Criteria:  s.st.Filters.Clone(),
		Search:    s.st.SearchQuery,
		SortBy:    s.st.SortBy,
		SortOrder: s.st.SortOrder,
		Page:      s.st.Pagination.Current,
		PageSize:  s.st.Pagination.PageSize,
	}
}

// Snapshot returns the persisted state.
func (s *FilterStore) Snapshot() FilterState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := s.st
	st.Filters = st.Filters.Clone()
	st.SavedFilters = slices.Clone(st.SavedFilters)

	return st
}

// Restore replaces the persisted state, filling gaps with defaults.
func (s *FilterStore) Restore(st FilterState) {
	def := initialFilterState(s.pageSize)

	if st.Pagination.Current < 1 {
		st.Pagination.Current = def.Pagination.Current
	}

	if st.Pagination.PageSize < 1 {
		st.Pagination.PageSize = def.Pagination.PageSize
	}

	if ticket.ValidateSort(st.SortBy, st.SortOrder) != nil {
		st.SortBy, st.SortOrder = def.SortBy, def.SortOrder
	}

	st.Filters = st.Filters.Clone()
	st.SavedFilters = slices.Clone(st.SavedFilters)

	_ = s.update(func(cur *FilterState) error {
		*cur = st

		return nil
	})
}

// Reset restores the initial state. Saved filters are dropped too.
func (s *FilterStore) Reset() {
	s.mu.Lock()
	s.showAdvanced = false
	s.mu.Unlock()

	s.Restore(FilterState{})
}
