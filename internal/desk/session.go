// Package desk wires the ticket stores, the batch executor and a ticket
// source into one working session: fetch a page for the current filters,
// keep the collection and pagination in step, and run batch operations
// over the selection.
package desk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"sync"
	"time"

	"github.com/calvinalkan/tk-desk/internal/batch"
	"github.com/calvinalkan/tk-desk/internal/clock"
	"github.com/calvinalkan/tk-desk/internal/state"
	"github.com/calvinalkan/tk-desk/internal/store"
	"github.com/calvinalkan/tk-desk/internal/ticket"
)

// ActionBatch is the UI loading flag held while a batch runs.
const ActionBatch = "batch"

// Source serves pages of tickets. The source does all filtering, sorting
// and paging.
type Source interface {
	FetchTickets(ctx context.Context, q ticket.Query) (ticket.Page, error)
}

// Options configures a Session.
type Options struct {
	Clock    clock.Clock
	Logger   *slog.Logger
	CacheTTL time.Duration
	PageSize int
	// Storage, if set, persists the filter store.
	Storage state.Storage
	// Batch configures the executor. Clock and Logger default to the
	// session's; OnDismiss is chained after the session's refresh.
	Batch   batch.Options
	Metrics *Metrics
}

// Session is safe for concurrent use.
type Session struct {
	Tickets *store.CollectionStore
	Filters *store.FilterStore
	UI      *store.UIStore
	Batch   *batch.Executor

	source Source
	log    *slog.Logger

	refreshMu sync.Mutex
	lastQuery *ticket.Query

	// batchTargets are the ids of the last batch, pruned from the
	// selection once the job is dismissed.
	targetsMu    sync.Mutex
	batchTargets []int64

	closers []func()
}

// New builds a session over src and api. With a Storage option the
// filter store is restored from it first.
func New(ctx context.Context, src Source, api batch.MutationAPI, opts Options) (*Session, error) {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}

	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	s := &Session{
		Tickets: store.NewCollectionStore(opts.Clock, opts.CacheTTL),
		Filters: store.NewFilterStore(opts.Clock, opts.PageSize),
		UI:      store.NewUIStore(),
		source:  src,
		log:     opts.Logger,
	}

	if opts.Storage != nil {
		stop, err := store.Persist[store.FilterState](ctx, s.Filters, opts.Storage, store.FilterStateKey,
			func(err error) {
				s.log.Warn("saving filter state failed", slog.String("error", err.Error()))
			})
		if err != nil {
			return nil, fmt.Errorf("restore filters: %w", err)
		}

		s.closers = append(s.closers, stop)
	}

	s.closers = append(s.closers,
		store.LogChanges(s.Tickets, s.log, "tickets", func() []any {
			st := s.Tickets.Snapshot()

			return []any{
				slog.Int("count", len(st.Tickets)),
				slog.Bool("loading", st.Loading),
				slog.Bool("refreshing", st.Refreshing),
			}
		}),
		store.LogChanges(s.Filters, s.log, "filters", func() []any {
			p := s.Filters.Pagination()

			return []any{slog.Int("page", p.Current), slog.Int("total", p.Total)}
		}),
		store.LogChanges(s.UI, s.log, "ui", func() []any {
			return []any{slog.Int("selected", len(s.UI.SelectedIDs()))}
		}),
	)

	if opts.Metrics != nil {
		s.closers = append(s.closers, s.Tickets.Subscribe(func() { opts.Metrics.observe(s.Tickets.Stats()) }))
	}

	bopts := opts.Batch
	if bopts.Clock == nil {
		bopts.Clock = opts.Clock
	}

	if bopts.Logger == nil {
		bopts.Logger = opts.Logger
	}

	next := bopts.OnDismiss
	bopts.OnDismiss = func() {
		s.afterBatch()

		if next != nil {
			next()
		}
	}

	s.Batch = batch.New(api, bopts)

	return s, nil
}

// Close stops persistence and logging subscriptions.
func (s *Session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}

	s.closers = nil
}

// Refresh fetches the page for the current filters. Without force the
// fetch is skipped while the cache is valid and the query is unchanged
// since the last fetch. It reports whether a fetch happened. A failed
// fetch is recorded in the collection's error and returned.
func (s *Session) Refresh(ctx context.Context, force bool) (bool, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	q := s.Filters.Query()

	if !force && s.Tickets.IsCacheValid() && s.lastQuery != nil && reflect.DeepEqual(*s.lastQuery, q) {
		return false, nil
	}

	// First load shows a spinner, later loads keep the old rows visible.
	initial := s.Tickets.Snapshot().LastFetch.IsZero()
	setBusy := s.Tickets.SetRefreshing

	if initial {
		setBusy = s.Tickets.SetLoading
	}

	setBusy(true)
	defer setBusy(false)

	page, err := s.source.FetchTickets(ctx, q)
	if err != nil {
		s.Tickets.SetError(err.Error())
		s.log.Warn("fetch tickets failed", slog.Int("page", q.Page), slog.String("error", err.Error()))

		return true, fmt.Errorf("refresh: %w", err)
	}

	s.Tickets.SetTickets(page.Tickets)

	err = s.Filters.SetTotal(page.Total)
	if err != nil {
		return true, fmt.Errorf("refresh: %w", err)
	}

	s.lastQuery = &q

	s.log.Debug("tickets fetched",
		slog.Int("page", q.Page),
		slog.Int("count", len(page.Tickets)),
		slog.Int("total", page.Total),
	)

	return true, nil
}

// Page moves to page n and fetches it.
func (s *Session) Page(ctx context.Context, n int) error {
	err := s.Filters.UpdatePagination(n, 0)
	if err != nil {
		return fmt.Errorf("page: %w", err)
	}

	_, err = s.Refresh(ctx, false)

	return err
}

// ErrEmptySelection is returned by RunBatch when no selected id is loaded.
var ErrEmptySelection = errors.New("no selected tickets are loaded")

// RunBatch runs kind over the selected tickets that are currently loaded.
// The selection itself is left alone until the job is dismissed; then
// targets that dropped out of the refreshed page are deselected. Selected
// tickets on other pages are kept.
func (s *Session) RunBatch(ctx context.Context, kind batch.Kind, p batch.Params) (batch.Result, error) {
	ids := s.UI.SelectedIDs()
	targets := s.Tickets.TicketsByID(ids)

	if len(targets) == 0 {
		return batch.Result{}, fmt.Errorf("batch %s: %w", kind, ErrEmptySelection)
	}

	if len(targets) < len(ids) {
		s.log.Warn("selection contains tickets that are not loaded",
			slog.Int("selected", len(ids)), slog.Int("loaded", len(targets)))
	}

	s.targetsMu.Lock()
	s.batchTargets = ticket.IDs(targets)
	s.targetsMu.Unlock()

	s.UI.SetActionLoading(ActionBatch, true)
	defer s.UI.SetActionLoading(ActionBatch, false)

	res, err := s.Batch.Run(ctx, kind, targets, p)
	if err != nil {
		return res, fmt.Errorf("batch %s: %w", kind, err)
	}

	return res, nil
}

func (s *Session) afterBatch() {
	s.targetsMu.Lock()
	targets := s.batchTargets
	s.batchTargets = nil
	s.targetsMu.Unlock()

	_, err := s.Refresh(context.Background(), true)
	if err != nil {
		s.log.Warn("refresh after batch failed", slog.String("error", err.Error()))

		return
	}

	pruned := s.UI.PruneSelection(func(id int64) bool {
		if !slices.Contains(targets, id) {
			return true
		}

		_, ok := s.Tickets.Ticket(id)

		return ok
	})

	s.log.Debug("selection reconciled after batch", slog.Int("pruned", pruned))
}
