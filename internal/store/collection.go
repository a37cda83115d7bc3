package store

import (
	"slices"
	"sync"
	"time"

	"github.com/calvinalkan/tk-desk/internal/clock"
	"github.com/calvinalkan/tk-desk/internal/ticket"
)

// DefaultCacheTTL is how long fetched tickets count as fresh.
const DefaultCacheTTL = 5 * time.Minute

// CollectionState is a read-only view of a CollectionStore.
type CollectionState struct {
	Tickets    []ticket.Ticket
	Stats      ticket.Stats
	Current    *ticket.Ticket
	Loading    bool
	Refreshing bool
	Error      string
	LastFetch  time.Time
}

// CollectionStore owns the ticket list and everything derived from it.
// Stats are recomputed inside every mutation that touches tickets, so a
// reader never sees tickets and stats out of step.
type CollectionStore struct {
	subscribers

	clock    clock.Clock
	cacheTTL time.Duration

	mu sync.RWMutex
	st CollectionState
}

// NewCollectionStore returns an empty store. A non-positive cacheTTL
// selects DefaultCacheTTL.
func NewCollectionStore(clk clock.Clock, cacheTTL time.Duration) *CollectionStore {
	if cacheTTL <= 0 {
		cacheTTL = DefaultCacheTTL
	}

	return &CollectionStore{clock: clk, cacheTTL: cacheTTL}
}

// update applies fn under the write lock and notifies subscribers if fn
// reports a change.
func (s *CollectionStore) update(fn func(st *CollectionState, now time.Time) bool) {
	s.mu.Lock()
	changed := fn(&s.st, s.clock.Now())
	s.mu.Unlock()

	if changed {
		s.notify()
	}
}

// SetTickets replaces the collection, stamps the fetch time and clears
// the error.
func (s *CollectionStore) SetTickets(list []ticket.Ticket) {
	s.update(func(st *CollectionState, now time.Time) bool {
		st.Tickets = cloneTickets(list)
		st.Stats = ticket.ComputeStats(st.Tickets, now)
		st.LastFetch = now
		st.Error = ""

		return true
	})
}

// AddTicket prepends t.
func (s *CollectionStore) AddTicket(t ticket.Ticket) {
	s.update(func(st *CollectionState, now time.Time) bool {
		tickets := make([]ticket.Ticket, 0, len(st.Tickets)+1)
		tickets = append(tickets, t.Clone())
		tickets = append(tickets, st.Tickets...)

		st.Tickets = tickets
		st.Stats = ticket.ComputeStats(tickets, now)
		st.Error = ""

		return true
	})
}

// UpdateTicket merges p into the ticket with the given id and into the
// current ticket if it is the same one. An unknown id is a no-op.
func (s *CollectionStore) UpdateTicket(id int64, p ticket.Patch) {
	s.update(func(st *CollectionState, now time.Time) bool {
		return st.replace(id, now, func(t ticket.Ticket) ticket.Ticket { return p.Apply(t, now) }, true)
	})
}

// AddComment appends c to the ticket's comments.
func (s *CollectionStore) AddComment(id int64, c ticket.Comment) {
	s.update(func(st *CollectionState, now time.Time) bool {
		return st.replace(id, now, func(t ticket.Ticket) ticket.Ticket { return t.WithComment(c, now) }, false)
	})
}

// AddAttachment appends a to the ticket's attachments.
func (s *CollectionStore) AddAttachment(id int64, a ticket.Attachment) {
	s.update(func(st *CollectionState, now time.Time) bool {
		return st.replace(id, now, func(t ticket.Ticket) ticket.Ticket { return t.WithAttachment(a, now) }, false)
	})
}

// replace swaps the ticket with the given id for fn(ticket) in a fresh
// slice. Returns false if id is not present.
func (st *CollectionState) replace(id int64, now time.Time, fn func(ticket.Ticket) ticket.Ticket, clearErr bool) bool {
	idx := slices.IndexFunc(st.Tickets, func(t ticket.Ticket) bool { return t.ID == id })
	if idx < 0 {
		return false
	}

	tickets := slices.Clone(st.Tickets)
	tickets[idx] = fn(tickets[idx])

	st.Tickets = tickets
	st.Stats = ticket.ComputeStats(tickets, now)

	if st.Current != nil && st.Current.ID == id {
		cur := fn(*st.Current)
		st.Current = &cur
	}

	if clearErr {
		st.Error = ""
	}

	return true
}

// RemoveTicket drops the ticket with the given id.
func (s *CollectionStore) RemoveTicket(id int64) {
	s.RemoveTickets([]int64{id})
}

// RemoveTickets drops every ticket whose id is in ids and clears the
// current ticket if it is among them.
func (s *CollectionStore) RemoveTickets(ids []int64) {
	s.update(func(st *CollectionState, now time.Time) bool {
		tickets := slices.DeleteFunc(slices.Clone(st.Tickets), func(t ticket.Ticket) bool {
			return slices.Contains(ids, t.ID)
		})

		if len(tickets) == len(st.Tickets) {
			return false
		}

		st.Tickets = tickets
		st.Stats = ticket.ComputeStats(tickets, now)

		if st.Current != nil && slices.Contains(ids, st.Current.ID) {
			st.Current = nil
		}

		return true
	})
}

// SetCurrentTicket sets the ticket shown in a detail view. nil clears it.
func (s *CollectionStore) SetCurrentTicket(t *ticket.Ticket) {
	s.update(func(st *CollectionState, _ time.Time) bool {
		if t == nil {
			st.Current = nil

			return true
		}

		cur := t.Clone()
		st.Current = &cur

		return true
	})
}

// SetLoading sets the initial-load flag.
func (s *CollectionStore) SetLoading(v bool) {
	s.update(func(st *CollectionState, _ time.Time) bool {
		changed := st.Loading != v
		st.Loading = v

		return changed
	})
}

// SetRefreshing sets the background-refresh flag.
func (s *CollectionStore) SetRefreshing(v bool) {
	s.update(func(st *CollectionState, _ time.Time) bool {
		changed := st.Refreshing != v
		st.Refreshing = v

		return changed
	})
}

// SetError records a fetch failure. The last write wins.
func (s *CollectionStore) SetError(msg string) {
	s.update(func(st *CollectionState, _ time.Time) bool {
		st.Error = msg

		return true
	})
}

// ClearError clears the error message.
func (s *CollectionStore) ClearError() {
	s.SetError("")
}

// UpdateCacheTime marks the current data as freshly fetched.
func (s *CollectionStore) UpdateCacheTime() {
	s.update(func(st *CollectionState, now time.Time) bool {
		st.LastFetch = now

		return true
	})
}

// IsCacheValid reports whether the last fetch is younger than the cache
// TTL. It never modifies the store.
func (s *CollectionStore) IsCacheValid() bool {
	s.mu.RLock()
	last := s.st.LastFetch
	s.mu.RUnlock()

	if last.IsZero() {
		return false
	}

	return s.clock.Now().Sub(last) < s.cacheTTL
}

// ClearCache drops tickets, stats and the fetch time. Loading, error and
// the current ticket are kept.
func (s *CollectionStore) ClearCache() {
	s.update(func(st *CollectionState, _ time.Time) bool {
		st.Tickets = nil
		st.Stats = ticket.Stats{}
		st.LastFetch = time.Time{}

		return true
	})
}

// ResetData restores the initial state, flags included.
func (s *CollectionStore) ResetData() {
	s.update(func(st *CollectionState, _ time.Time) bool {
		*st = CollectionState{}

		return true
	})
}

// Snapshot returns the full state. The ticket slice is shared with the
// store and must not be modified.
func (s *CollectionStore) Snapshot() CollectionState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := s.st
	if st.Current != nil {
		cur := *st.Current
		st.Current = &cur
	}

	return st
}

// Tickets returns the current ticket list. The slice must not be modified.
func (s *CollectionStore) Tickets() []ticket.Ticket {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.st.Tickets
}

// Stats returns the stats for the current ticket list.
func (s *CollectionStore) Stats() ticket.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.st.Stats
}

// Ticket returns the ticket with the given id.
func (s *CollectionStore) Ticket(id int64) (ticket.Ticket, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.st.Tickets {
		if t.ID == id {
			return t, true
		}
	}

	return ticket.Ticket{}, false
}

// TicketsByID returns the tickets for ids in the order given. Unknown ids
// are skipped.
func (s *CollectionStore) TicketsByID(ids []int64) []ticket.Ticket {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byID := make(map[int64]ticket.Ticket, len(s.st.Tickets))
	for _, t := range s.st.Tickets {
		byID[t.ID] = t
	}

	out := make([]ticket.Ticket, 0, len(ids))

	for _, id := range ids {
		if t, ok := byID[id]; ok {
			out = append(out, t)
		}
	}

	return out
}

// Current returns the current ticket, or nil.
func (s *CollectionStore) Current() *ticket.Ticket {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.st.Current == nil {
		return nil
	}

	cur := *s.st.Current

	return &cur
}

func cloneTickets(list []ticket.Ticket) []ticket.Ticket {
	if list == nil {
		return nil
	}

	out := make([]ticket.Ticket, len(list))
	for i, t := range list {
		out[i] = t.Clone()
	}

	return out
}
