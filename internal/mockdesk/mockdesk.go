// Package mockdesk is an in-memory service desk backend. It serves
// filtered, sorted pages of tickets and accepts per-ticket mutations,
// with optional failure injection for exercising partial batch failures.
package mockdesk

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/calvinalkan/tk-desk/internal/batch"
	"github.com/calvinalkan/tk-desk/internal/clock"
	"github.com/calvinalkan/tk-desk/internal/ticket"
)

// Errors returned by Backend mutations.
var (
	ErrTicketNotFound = errors.New("ticket not found")
	ErrInjected       = errors.New("injected failure")
)

// Sent is a notification delivered through NotifyTicket.
type Sent struct {
	TicketID int64
	batch.Notification
	At time.Time
}

// Backend is safe for concurrent use.
type Backend struct {
	clock clock.Clock

	mu      sync.Mutex
	tickets []ticket.Ticket
	fail    map[int64]bool
	sent    []Sent
	nextID  int64
}

// New returns a backend serving tickets.
func New(clk clock.Clock, tickets []ticket.Ticket) *Backend {
	b := &Backend{clock: clk, fail: make(map[int64]bool)}
	b.Load(tickets)

	return b
}

// Load replaces the data set.
func (b *Backend) Load(tickets []ticket.Ticket) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.tickets = make([]ticket.Ticket, len(tickets))
	b.nextID = 0

	for i, t := range tickets {
		b.tickets[i] = t.Clone()
		b.nextID = max(b.nextID, t.ID)
	}
}

// Tickets returns a copy of the whole data set in storage order.
func (b *Backend) Tickets() []ticket.Ticket {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]ticket.Ticket, len(b.tickets))
	for i, t := range b.tickets {
		out[i] = t.Clone()
	}

	return out
}

// FailOn makes every mutation of the given ids fail.
func (b *Backend) FailOn(ids ...int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, id := range ids {
		b.fail[id] = true
	}
}

// Sent returns the notifications delivered so far.
func (b *Backend) Sent() []Sent {
	b.mu.Lock()
	defer b.mu.Unlock()

	return slices.Clone(b.sent)
}

// FetchTickets returns one page of the tickets matching q.
func (b *Backend) FetchTickets(ctx context.Context, q ticket.Query) (ticket.Page, error) {
	err := ctx.Err()
	if err != nil {
		return ticket.Page{}, fmt.Errorf("fetch tickets: %w", err)
	}

	if q.Page < 1 || q.PageSize < 1 {
		return ticket.Page{}, fmt.Errorf("fetch tickets: invalid page %d size %d", q.Page, q.PageSize)
	}

	sortBy, order := q.SortBy, q.SortOrder
	if sortBy == "" {
		sortBy, order = ticket.SortCreatedAt, ticket.SortDesc
	}

	err = ticket.ValidateSort(sortBy, order)
	if err != nil {
		return ticket.Page{}, fmt.Errorf("fetch tickets: %w", err)
	}

	b.mu.Lock()
	matched := make([]ticket.Ticket, 0, len(b.tickets))

	for _, t := range b.tickets {
		if q.Criteria.Matches(t, q.Search) {
			matched = append(matched, t.Clone())
		}
	}
	b.mu.Unlock()

	sortTickets(matched, sortBy, order)

	start := min((q.Page-1)*q.PageSize, len(matched))
	end := min(start+q.PageSize, len(matched))

	return ticket.Page{Tickets: matched[start:end], Total: len(matched)}, nil
}

func sortTickets(tickets []ticket.Ticket, field string, order ticket.SortOrder) {
	compare := func(a, b ticket.Ticket) int {
		switch field {
		case ticket.SortUpdatedAt:
			return a.UpdatedAt.Compare(b.UpdatedAt)
		case ticket.SortPriority:
			return cmp.Compare(ticket.PriorityRank(a.Priority), ticket.PriorityRank(b.Priority))
		case ticket.SortDueDate:
			return compareDue(a.DueDate, b.DueDate)
		case ticket.SortID:
			return cmp.Compare(a.ID, b.ID)
		case ticket.SortTitle:
			return cmp.Compare(a.Title, b.Title)
		default:
			return a.CreatedAt.Compare(b.CreatedAt)
		}
	}

	slices.SortStableFunc(tickets, func(a, b ticket.Ticket) int {
		if field == ticket.SortDueDate && (a.DueDate == nil) != (b.DueDate == nil) {
			return compareDue(a.DueDate, b.DueDate)
		}

		c := compare(a, b)
		if order == ticket.SortDesc {
			c = -c
		}

		if c == 0 {
			return cmp.Compare(a.ID, b.ID)
		}

		return c
	})
}

// compareDue orders tickets without a due date after those with one,
// whatever the sort order.
func compareDue(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	default:
		return a.Compare(*b)
	}
}

// mutate applies fn to the ticket with the given id.
func (b *Backend) mutate(ctx context.Context, op string, id int64, fn func(t ticket.Ticket, now time.Time) ticket.Ticket) error {
	err := ctx.Err()
	if err != nil {
		return fmt.Errorf("%s %d: %w", op, id, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.fail[id] {
		return fmt.Errorf("%s %d: %w", op, id, ErrInjected)
	}

	idx := slices.IndexFunc(b.tickets, func(t ticket.Ticket) bool { return t.ID == id })
	if idx < 0 {
		return fmt.Errorf("%s %d: %w", op, id, ErrTicketNotFound)
	}

	b.tickets[idx] = fn(b.tickets[idx], b.clock.Now())

	return nil
}

// CreateTicket stores t under the next free id and returns it.
func (b *Backend) CreateTicket(_ context.Context, t ticket.Ticket) ticket.Ticket {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock.Now()

	b.nextID++
	t = t.Clone()
	t.ID = b.nextID

	if t.TicketNumber == "" {
		t.TicketNumber = ticketNumber(t.ID)
	}

	if t.Status == "" {
		t.Status = ticket.StatusNew
	}

	if t.Priority == "" {
		t.Priority = ticket.PriorityMedium
	}

	t.CreatedAt = now
	t.UpdatedAt = now
	b.tickets = append(b.tickets, t)

	return t.Clone()
}

// AssignTicket implements batch.MutationAPI. A non-empty comment is
// added as an internal note.
func (b *Backend) AssignTicket(ctx context.Context, id, assigneeID int64, comment string) error {
	return b.mutate(ctx, "assign", id, func(t ticket.Ticket, now time.Time) ticket.Ticket {
		t = ticket.Patch{AssigneeID: &assigneeID, AssigneeName: ticket.Ptr(agentName(assigneeID))}.Apply(t, now)

		if comment != "" {
			t = t.WithComment(ticket.Comment{
				ID:         int64(len(t.Comments) + 1),
				Content:    comment,
				AuthorName: "batch",
				CreatedAt:  now,
				IsInternal: true,
			}, now)
		}

		return t
	})
}

// UpdateTicket implements batch.MutationAPI.
func (b *Backend) UpdateTicket(ctx context.Context, id int64, p ticket.Patch) error {
	return b.mutate(ctx, "update", id, func(t ticket.Ticket, now time.Time) ticket.Ticket {
		return p.Apply(t, now)
	})
}

// AddTags implements batch.MutationAPI.
func (b *Backend) AddTags(ctx context.Context, id int64, tags []string) error {
	return b.mutate(ctx, "add tags", id, func(t ticket.Ticket, now time.Time) ticket.Ticket {
		return ticket.Patch{Tags: ticket.MergeTags(t.Tags, tags)}.Apply(t, now)
	})
}

// DeleteTicket implements batch.MutationAPI.
func (b *Backend) DeleteTicket(ctx context.Context, id int64) error {
	err := ctx.Err()
	if err != nil {
		return fmt.Errorf("delete %d: %w", id, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.fail[id] {
		return fmt.Errorf("delete %d: %w", id, ErrInjected)
	}

	idx := slices.IndexFunc(b.tickets, func(t ticket.Ticket) bool { return t.ID == id })
	if idx < 0 {
		return fmt.Errorf("delete %d: %w", id, ErrTicketNotFound)
	}

	b.tickets = slices.Delete(b.tickets, idx, idx+1)

	return nil
}

// NotifyTicket implements batch.MutationAPI.
func (b *Backend) NotifyTicket(ctx context.Context, id int64, n batch.Notification) error {
	return b.mutate(ctx, "notify", id, func(t ticket.Ticket, now time.Time) ticket.Ticket {
		b.sent = append(b.sent, Sent{TicketID: id, Notification: n, At: now})

		return t
	})
}

// ExportTickets implements batch.MutationAPI. Unknown ids are skipped.
func (b *Backend) ExportTickets(ctx context.Context, ids []int64, format string) (batch.Blob, error) {
	err := ctx.Err()
	if err != nil {
		return batch.Blob{}, fmt.Errorf("export: %w", err)
	}

	b.mu.Lock()
	selected := make([]ticket.Ticket, 0, len(ids))

	for _, id := range ids {
		idx := slices.IndexFunc(b.tickets, func(t ticket.Ticket) bool { return t.ID == id })
		if idx >= 0 {
			selected = append(selected, b.tickets[idx].Clone())
		}
	}
	now := b.clock.Now()
	b.mu.Unlock()

	return encodeExport(selected, format, now)
}
