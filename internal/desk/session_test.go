package desk_test

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/tk-desk/internal/batch"
	"github.com/calvinalkan/tk-desk/internal/clock"
	"github.com/calvinalkan/tk-desk/internal/desk"
	"github.com/calvinalkan/tk-desk/internal/mockdesk"
	"github.com/calvinalkan/tk-desk/internal/state"
	"github.com/calvinalkan/tk-desk/internal/store"
	"github.com/calvinalkan/tk-desk/internal/ticket"
)

var t0 = time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC)

// countingSource counts fetches and fails while err is set.
type countingSource struct {
	next  desk.Source
	calls atomic.Int32

	mu  sync.Mutex
	err error
}

func (c *countingSource) FetchTickets(ctx context.Context, q ticket.Query) (ticket.Page, error) {
	c.calls.Add(1)

	c.mu.Lock()
	err := c.err
	c.mu.Unlock()

	if err != nil {
		return ticket.Page{}, err
	}

	return c.next.FetchTickets(ctx, q)
}

func (c *countingSource) failWith(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}

type fixture struct {
	session *desk.Session
	backend *mockdesk.Backend
	source  *countingSource
	clock   *clock.FakeClock
}

func newFixture(t *testing.T, n int, opts desk.Options) fixture {
	t.Helper()

	clk := clock.Fake(t0)
	backend := mockdesk.New(clk, mockdesk.Generate(n, t0))
	src := &countingSource{next: backend}

	opts.Clock = clk
	opts.Batch.Delay = -1
	opts.Batch.DismissDelay = -1

	s, err := desk.New(context.Background(), src, backend, opts)
	require.NoError(t, err)
	t.Cleanup(s.Close)

	return fixture{session: s, backend: backend, source: src, clock: clk}
}

func Test_Session_Refresh_Loads_Page_And_Total_When_Called(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 50, desk.Options{PageSize: 10})

	fetched, err := f.session.Refresh(context.Background(), false)
	require.NoError(t, err)
	require.True(t, fetched)

	st := f.session.Tickets.Snapshot()
	require.Len(t, st.Tickets, 10)
	require.False(t, st.Loading)
	require.False(t, st.Refreshing)
	require.Empty(t, st.Error)
	require.True(t, f.session.Tickets.IsCacheValid())

	require.Equal(t, 50, f.session.Filters.Pagination().Total)
	require.Equal(t, 5, f.session.Filters.TotalPages())
}

func Test_Session_Refresh_Skips_Fetch_When_Cache_Valid_And_Query_Unchanged(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, 20, desk.Options{})

	_, err := f.session.Refresh(ctx, false)
	require.NoError(t, err)

	fetched, err := f.session.Refresh(ctx, false)
	require.NoError(t, err)
	require.False(t, fetched)
	require.Equal(t, int32(1), f.source.calls.Load())

	fetched, err = f.session.Refresh(ctx, true)
	require.NoError(t, err)
	require.True(t, fetched)
	require.Equal(t, int32(2), f.source.calls.Load())
}

func Test_Session_Refresh_Fetches_When_Filters_Change_Or_Cache_Expires(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, 20, desk.Options{CacheTTL: time.Minute})

	_, err := f.session.Refresh(ctx, false)
	require.NoError(t, err)

	require.NoError(t, f.session.Filters.AddFilter(ticket.KeyStatus, ticket.StatusOpen))

	fetched, err := f.session.Refresh(ctx, false)
	require.NoError(t, err)
	require.True(t, fetched)
	require.Equal(t, 5, f.session.Filters.Pagination().Total)

	f.clock.Advance(time.Minute)

	fetched, err = f.session.Refresh(ctx, false)
	require.NoError(t, err)
	require.True(t, fetched)
	require.Equal(t, int32(3), f.source.calls.Load())
}

func Test_Session_Refresh_Records_Error_And_Keeps_Tickets_When_Fetch_Fails(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, 5, desk.Options{})

	_, err := f.session.Refresh(ctx, false)
	require.NoError(t, err)

	boom := errors.New("desk unreachable")
	f.source.failWith(boom)

	_, err = f.session.Refresh(ctx, true)
	require.ErrorIs(t, err, boom)

	st := f.session.Tickets.Snapshot()
	require.Equal(t, "desk unreachable", st.Error)
	require.Len(t, st.Tickets, 5)
	require.False(t, st.Refreshing)

	f.source.failWith(nil)

	_, err = f.session.Refresh(ctx, true)
	require.NoError(t, err)
	require.Empty(t, f.session.Tickets.Snapshot().Error)
}

func Test_Session_Refresh_Sets_Loading_First_Then_Refreshing(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, 3, desk.Options{})

	var (
		mu    sync.Mutex
		flags []string
	)

	unsub := f.session.Tickets.Subscribe(func() {
		st := f.session.Tickets.Snapshot()

		mu.Lock()
		defer mu.Unlock()

		switch {
		case st.Loading:
			flags = append(flags, "loading")
		case st.Refreshing:
			flags = append(flags, "refreshing")
		}
	})
	defer unsub()

	_, err := f.session.Refresh(ctx, false)
	require.NoError(t, err)

	_, err = f.session.Refresh(ctx, true)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()

	// SetTickets notifies while the flag is still up.
	require.Equal(t, []string{"loading", "loading", "refreshing", "refreshing"}, flags)
}

func Test_Session_RunBatch_Refreshes_And_Prunes_Selection_When_Dismissed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, 6, desk.Options{})
	f.backend.FailOn(3)

	_, err := f.session.Refresh(ctx, false)
	require.NoError(t, err)

	f.session.UI.SetSelection([]int64{2, 3, 4})

	res, err := f.session.RunBatch(ctx, batch.KindDelete, batch.Params{})
	require.NoError(t, err)
	require.Equal(t, 2, res.SuccessCount)
	require.Equal(t, 1, res.FailCount)
	require.False(t, f.session.UI.IsActionLoading(desk.ActionBatch))

	// Nothing is refetched until the job is dismissed.
	require.Len(t, f.session.Tickets.Tickets(), 6)

	require.True(t, f.session.Batch.Dismiss())

	require.Equal(t, []int64{1, 3, 5, 6}, sortedIDs(f.session.Tickets.Tickets()))
	require.Equal(t, []int64{3}, f.session.UI.SelectedIDs())
}

func Test_Session_Keeps_Selection_Across_Pages_When_Paging(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, 12, desk.Options{PageSize: 5})

	_, err := f.session.Refresh(ctx, false)
	require.NoError(t, err)

	f.session.UI.SetSelection([]int64{1, 2})

	require.NoError(t, f.session.Page(ctx, 2))
	require.Equal(t, []int64{6, 7, 8, 9, 10}, sortedIDs(f.session.Tickets.Tickets()))
	require.Equal(t, []int64{1, 2}, f.session.UI.SelectedIDs())

	f.session.UI.Select(7)

	res, err := f.session.RunBatch(ctx, batch.KindDelete, batch.Params{})
	require.NoError(t, err)
	require.Equal(t, 1, res.SuccessCount)

	require.True(t, f.session.Batch.Dismiss())

	// Only the deleted target leaves the selection.
	require.Equal(t, []int64{1, 2}, f.session.UI.SelectedIDs())
	require.Len(t, f.backend.Tickets(), 11)
}

func Test_Session_RunBatch_Chains_Caller_OnDismiss_After_Refresh(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	var calls atomic.Int32

	f := newFixture(t, 3, desk.Options{Batch: batch.Options{OnDismiss: func() { calls.Add(1) }}})

	_, err := f.session.Refresh(ctx, false)
	require.NoError(t, err)

	f.session.UI.SelectAll([]int64{1, 2})

	_, err = f.session.RunBatch(ctx, batch.KindAddTags, batch.Params{Tags: []string{"vpn"}})
	require.NoError(t, err)

	f.session.Batch.Dismiss()

	require.Equal(t, int32(1), calls.Load())
	require.Equal(t, int32(2), f.source.calls.Load())
}

func Test_Session_RunBatch_Returns_Error_When_Selection_Not_Loaded(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 3, desk.Options{})

	f.session.UI.Select(99)

	_, err := f.session.RunBatch(context.Background(), batch.KindDelete, batch.Params{})
	require.ErrorIs(t, err, desk.ErrEmptySelection)
	require.Len(t, f.backend.Tickets(), 3)
}

func Test_Session_Restores_Filters_From_Storage_When_Reopened(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	storage, err := state.NewFileStorage(t.TempDir())
	require.NoError(t, err)

	first := newFixture(t, 10, desk.Options{Storage: storage})
	require.NoError(t, first.session.Filters.AddFilter(ticket.KeyPriority, ticket.PriorityHigh))
	first.session.Filters.SetSearchQuery("ticket")
	first.session.Close()

	second := newFixture(t, 10, desk.Options{Storage: storage})

	q := second.session.Filters.Query()
	require.Equal(t, []string{ticket.PriorityHigh}, q.Criteria.Priority)
	require.Equal(t, "ticket", q.Search)

	_, err = second.session.Refresh(ctx, false)
	require.NoError(t, err)
	require.Equal(t, 2, second.session.Filters.Pagination().Total)

	_, err = storage.Load(ctx, store.FilterStateKey)
	require.NoError(t, err)
}

func Test_Session_Metrics_Track_Loaded_Stats_When_Refreshed(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	f := newFixture(t, 5, desk.Options{Metrics: desk.NewMetrics(reg)})

	_, err := f.session.Refresh(context.Background(), false)
	require.NoError(t, err)

	want := `
# HELP tkdesk_loaded_tickets Loaded tickets per stats bucket.
# TYPE tkdesk_loaded_tickets gauge
tkdesk_loaded_tickets{bucket="due_today"} 0
tkdesk_loaded_tickets{bucket="high_priority"} 1
tkdesk_loaded_tickets{bucket="open"} 3
tkdesk_loaded_tickets{bucket="overdue"} 0
tkdesk_loaded_tickets{bucket="resolved"} 2
tkdesk_loaded_tickets{bucket="this_month"} 5
tkdesk_loaded_tickets{bucket="this_week"} 4
tkdesk_loaded_tickets{bucket="total"} 5
`

	err = testutil.GatherAndCompare(reg, strings.NewReader(want), "tkdesk_loaded_tickets")
	require.NoError(t, err)
}

func sortedIDs(tickets []ticket.Ticket) []int64 {
	ids := ticket.IDs(tickets)
	slices.Sort(ids)

	return ids
}
