package store

import (
	"fmt"
	"maps"
	"slices"
	"sync"
)

// ViewMode is how the ticket list is laid out.
type ViewMode string

// View modes.
const (
	ViewTable  ViewMode = "table"
	ViewCard   ViewMode = "card"
	ViewKanban ViewMode = "kanban"
)

// Modal is the dialog currently open. Kind is empty when none is.
type Modal struct {
	Kind    string
	Payload any
}

// UIState is a read-only view of a UIStore.
type UIState struct {
	Selected []int64
	Modal    Modal
	ViewMode ViewMode
	Loading  map[string]bool
}

// UIStore holds transient UI state. Nothing here is persisted, and the
// selection is never pruned when tickets leave the collection; callers
// reconcile it (see PruneSelection).
type UIStore struct {
	subscribers

	mu sync.RWMutex
	st UIState
}

// NewUIStore returns a store in the initial state.
func NewUIStore() *UIStore {
	return &UIStore{st: initialUIState()}
}

func initialUIState() UIState {
	return UIState{ViewMode: ViewTable}
}

func (s *UIStore) update(fn func(st *UIState) bool) {
	s.mu.Lock()
	changed := fn(&s.st)
	s.mu.Unlock()

	if changed {
		s.notify()
	}
}

// Select adds id to the selection.
func (s *UIStore) Select(id int64) {
	s.update(func(st *UIState) bool {
		if slices.Contains(st.Selected, id) {
			return false
		}

		st.Selected = append(slices.Clone(st.Selected), id)

		return true
	})
}

// Deselect removes id from the selection.
func (s *UIStore) Deselect(id int64) {
	s.update(func(st *UIState) bool {
		idx := slices.Index(st.Selected, id)
		if idx < 0 {
			return false
		}

		st.Selected = slices.Delete(slices.Clone(st.Selected), idx, idx+1)

		return true
	})
}

// Toggle flips id in the selection.
func (s *UIStore) Toggle(id int64) {
	if s.IsSelected(id) {
		s.Deselect(id)

		return
	}

	s.Select(id)
}

// SetSelection replaces the selection, dropping duplicates.
func (s *UIStore) SetSelection(ids []int64) {
	s.update(func(st *UIState) bool {
		st.Selected = dedupe(ids)

		return true
	})
}

// SelectAll selects every id in ids, typically the visible page.
func (s *UIStore) SelectAll(ids []int64) {
	s.SetSelection(ids)
}

// ClearSelection empties the selection.
func (s *UIStore) ClearSelection() {
	s.update(func(st *UIState) bool {
		if len(st.Selected) == 0 {
			return false
		}

		st.Selected = nil

		return true
	})
}

// PruneSelection keeps only the selected ids for which exists returns
// true and reports how many were dropped.
func (s *UIStore) PruneSelection(exists func(id int64) bool) int {
	dropped := 0

	s.update(func(st *UIState) bool {
		kept := slices.DeleteFunc(slices.Clone(st.Selected), func(id int64) bool { return !exists(id) })
		dropped = len(st.Selected) - len(kept)

		if dropped == 0 {
			return false
		}

		st.Selected = kept

		return true
	})

	return dropped
}

// IsSelected reports whether id is selected.
func (s *UIStore) IsSelected(id int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Contains(s.st.Selected, id)
}

// SelectedIDs returns the selection in the order it was made.
func (s *UIStore) SelectedIDs() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.st.Selected)
}

// OpenModal shows a dialog of the given kind with an optional payload.
func (s *UIStore) OpenModal(kind string, payload any) {
	s.update(func(st *UIState) bool {
		st.Modal = Modal{Kind: kind, Payload: payload}

		return true
	})
}

// CloseModal hides the dialog.
func (s *UIStore) CloseModal() {
	s.update(func(st *UIState) bool {
		if st.Modal.Kind == "" {
			return false
		}

		st.Modal = Modal{}

		return true
	})
}

// SetViewMode switches the list layout.
func (s *UIStore) SetViewMode(m ViewMode) error {
	switch m {
	case ViewTable, ViewCard, ViewKanban:
	default:
		return fmt.Errorf("unknown view mode %q", m)
	}

	s.update(func(st *UIState) bool {
		changed := st.ViewMode != m
		st.ViewMode = m

		return changed
	})

	return nil
}

// SetActionLoading marks a named action (for example "batch") as in
// progress.
func (s *UIStore) SetActionLoading(action string, loading bool) {
	s.update(func(st *UIState) bool {
		if st.Loading[action] == loading {
			return false
		}

		next := maps.Clone(st.Loading)
		if next == nil {
			next = make(map[string]bool)
		}

		if loading {
			next[action] = true
		} else {
			delete(next, action)
		}

		st.Loading = next

		return true
	})
}

// IsActionLoading reports whether action is in progress.
func (s *UIStore) IsActionLoading(action string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.st.Loading[action]
}

// Snapshot returns the full state.
func (s *UIStore) Snapshot() UIState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := s.st
	st.Selected = slices.Clone(st.Selected)
	st.Loading = maps.Clone(st.Loading)

	return st
}

// ResetUI restores every field to its initial value.
func (s *UIStore) ResetUI() {
	s.update(func(st *UIState) bool {
		*st = initialUIState()

		return true
	})
}

func dedupe(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}

	out := make([]int64, 0, len(ids))

	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}

	return out
}
