package mockdesk_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/tk-desk/internal/batch"
	"github.com/calvinalkan/tk-desk/internal/clock"
	"github.com/calvinalkan/tk-desk/internal/mockdesk"
	"github.com/calvinalkan/tk-desk/internal/state"
	"github.com/calvinalkan/tk-desk/internal/ticket"
)

var t0 = time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC)

func newBackend(t *testing.T, n int) *mockdesk.Backend {
	t.Helper()

	return mockdesk.New(clock.Fake(t0), mockdesk.Generate(n, t0))
}

func fetch(t *testing.T, b *mockdesk.Backend, q ticket.Query) ticket.Page {
	t.Helper()

	if q.Page == 0 {
		q.Page = 1
	}

	if q.PageSize == 0 {
		q.PageSize = 100
	}

	page, err := b.FetchTickets(context.Background(), q)
	require.NoError(t, err)

	return page
}

func Test_Generate_Cycles_Status_And_Priority_When_Building_Tickets(t *testing.T) {
	t.Parallel()

	got := mockdesk.Generate(50, t0)
	require.Len(t, got, 50)

	first := got[0]
	require.Equal(t, int64(1), first.ID)
	require.Equal(t, "Ticket 1", first.Title)
	require.Equal(t, ticket.StatusOpen, first.Status)
	require.Equal(t, ticket.PriorityLow, first.Priority)
	require.NotNil(t, first.AssigneeID)
	require.Equal(t, t0, first.CreatedAt)
	require.Equal(t, t0.AddDate(0, 0, 1), *first.DueDate)

	sixth := got[5]
	require.Equal(t, ticket.StatusInProgress, sixth.Status)
	require.Equal(t, ticket.PriorityMedium, sixth.Priority)
	require.Nil(t, sixth.AssigneeID)
	require.Equal(t, t0.AddDate(0, 0, -5), sixth.CreatedAt)
	require.Equal(t, t0.Add(-60*time.Hour), sixth.UpdatedAt)

	require.Equal(t, ticket.StatusClosed, got[3].Status)
	require.Equal(t, ticket.PriorityUrgent, got[3].Priority)
}

func Test_FetchTickets_Reports_Total_Of_All_Matches_When_Paging(t *testing.T) {
	t.Parallel()

	b := newBackend(t, 50)

	page := fetch(t, b, ticket.Query{
		Criteria:  ticket.Criteria{Status: []string{ticket.StatusOpen}},
		SortBy:    ticket.SortID,
		SortOrder: ticket.SortAsc,
		Page:      2,
		PageSize:  5,
	})

	require.Equal(t, 13, page.Total)
	require.Equal(t, []int64{21, 25, 29, 33, 37}, ticket.IDs(page.Tickets))
}

func Test_FetchTickets_Returns_Empty_Page_When_Past_The_End(t *testing.T) {
	t.Parallel()

	b := newBackend(t, 7)

	page := fetch(t, b, ticket.Query{Page: 3, PageSize: 5})

	require.Equal(t, 7, page.Total)
	require.Empty(t, page.Tickets)
}

func Test_FetchTickets_Matches_Title_And_Description_When_Searching(t *testing.T) {
	t.Parallel()

	b := newBackend(t, 50)

	page := fetch(t, b, ticket.Query{Search: "TICKET 1"})

	// Ticket 1 and Ticket 10 through 19.
	require.Equal(t, 11, page.Total)
}

func Test_FetchTickets_Orders_By_Field_With_Id_Tiebreak_When_Sorting(t *testing.T) {
	t.Parallel()

	b := newBackend(t, 12)

	for _, tt := range []struct {
		name  string
		field string
		order ticket.SortOrder
		want  []int64
	}{
		{name: "default newest first", want: []int64{1, 2, 3}},
		{name: "created oldest first", field: ticket.SortCreatedAt, order: ticket.SortAsc, want: []int64{12, 11, 10}},
		{name: "priority desc", field: ticket.SortPriority, order: ticket.SortDesc, want: []int64{4, 8, 12}},
		{name: "priority asc", field: ticket.SortPriority, order: ticket.SortAsc, want: []int64{1, 5, 9}},
		{name: "due soonest", field: ticket.SortDueDate, order: ticket.SortAsc, want: []int64{1, 2, 3}},
		{name: "title", field: ticket.SortTitle, order: ticket.SortAsc, want: []int64{1, 10, 11}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			page := fetch(t, b, ticket.Query{SortBy: tt.field, SortOrder: tt.order, PageSize: 3})

			if diff := cmp.Diff(tt.want, ticket.IDs(page.Tickets)); diff != "" {
				t.Fatalf("order mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func Test_FetchTickets_Puts_Undated_Last_When_Sorting_By_Due_Date(t *testing.T) {
	t.Parallel()

	tickets := mockdesk.Generate(3, t0)
	tickets[0].DueDate = nil

	b := mockdesk.New(clock.Fake(t0), tickets)

	asc := fetch(t, b, ticket.Query{SortBy: ticket.SortDueDate, SortOrder: ticket.SortAsc})
	require.Equal(t, []int64{2, 3, 1}, ticket.IDs(asc.Tickets))

	desc := fetch(t, b, ticket.Query{SortBy: ticket.SortDueDate, SortOrder: ticket.SortDesc})
	require.Equal(t, []int64{3, 2, 1}, ticket.IDs(desc.Tickets))
}

func Test_FetchTickets_Returns_Error_When_Query_Invalid(t *testing.T) {
	t.Parallel()

	b := newBackend(t, 3)

	_, err := b.FetchTickets(context.Background(), ticket.Query{Page: 0, PageSize: 10})
	require.Error(t, err)

	_, err = b.FetchTickets(context.Background(), ticket.Query{Page: 1, PageSize: 10, SortBy: "colour", SortOrder: ticket.SortAsc})
	require.ErrorIs(t, err, ticket.ErrInvalidSort)
}

func Test_Backend_Applies_Mutations_When_Ticket_Exists(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	b := newBackend(t, 3)

	require.NoError(t, b.AssignTicket(ctx, 2, 3, "taking over"))
	require.NoError(t, b.AddTags(ctx, 2, []string{"tag2", "vpn"}))
	require.NoError(t, b.UpdateTicket(ctx, 3, ticket.Patch{Status: ticket.Ptr(ticket.StatusResolved)}))
	require.NoError(t, b.DeleteTicket(ctx, 1))
	require.NoError(t, b.NotifyTicket(ctx, 2, batch.Notification{Message: "ping", Assignee: true}))

	got := b.Tickets()
	require.Equal(t, []int64{2, 3}, ticket.IDs(got))

	second := got[0]
	require.Equal(t, int64(3), *second.AssigneeID)
	require.Equal(t, "Jo Chen", second.AssigneeName)
	require.Equal(t, []string{"tag1", "tag2", "vpn"}, second.Tags)
	require.Len(t, second.Comments, 1)
	require.True(t, second.Comments[0].IsInternal)
	require.Equal(t, ticket.StatusResolved, got[1].Status)

	sent := b.Sent()
	require.Len(t, sent, 1)
	require.Equal(t, "ping", sent[0].Message)
}

func Test_Backend_Rejects_Mutation_When_Id_Unknown_Or_Failing(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	b := newBackend(t, 3)
	b.FailOn(2)

	require.ErrorIs(t, b.DeleteTicket(ctx, 99), mockdesk.ErrTicketNotFound)
	require.ErrorIs(t, b.AssignTicket(ctx, 99, 1, ""), mockdesk.ErrTicketNotFound)
	require.ErrorIs(t, b.UpdateTicket(ctx, 2, ticket.Patch{}), mockdesk.ErrInjected)
	require.ErrorIs(t, b.DeleteTicket(ctx, 2), mockdesk.ErrInjected)
	require.Len(t, b.Tickets(), 3)
}

func Test_CreateTicket_Assigns_Next_Id_When_Called(t *testing.T) {
	t.Parallel()

	b := newBackend(t, 3)

	created := b.CreateTicket(context.Background(), ticket.Ticket{Title: "VPN down"})

	require.Equal(t, int64(4), created.ID)
	require.Equal(t, "INC-00004", created.TicketNumber)
	require.Equal(t, ticket.StatusNew, created.Status)
	require.Equal(t, t0, created.CreatedAt)
}

func Test_ExportTickets_Writes_Csv_With_Dated_Name_When_Format_Csv(t *testing.T) {
	t.Parallel()

	b := newBackend(t, 5)

	blob, err := b.ExportTickets(context.Background(), []int64{2, 4, 99}, batch.FormatCSV)
	require.NoError(t, err)

	require.Equal(t, "tickets_batch_2026-03-11.csv", blob.Name)
	require.Equal(t, "text/csv", blob.ContentType)

	rows, err := csv.NewReader(bytes.NewReader(blob.Data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, "id", rows[0][0])
	require.Equal(t, "INC-00002", rows[1][1])
	require.Equal(t, "tag1;tag2", rows[2][7])
}

func Test_ExportTickets_Returns_Error_When_Format_Unknown(t *testing.T) {
	t.Parallel()

	_, err := newBackend(t, 1).ExportTickets(context.Background(), []int64{1}, "xml")
	require.Error(t, err)
}

func Test_ParseFixture_Loads_Tickets_When_Yaml_Valid(t *testing.T) {
	t.Parallel()

	data := []byte(`
tickets:
  - id: 7
    title: Printer jammed
    status: open
    priority: high
    requester_id: 9
    tags: [printer]
    due_date: 2026-03-12T09:00:00Z
    created_at: 2026-03-10T09:00:00Z
    updated_at: 2026-03-10T09:00:00Z
`)

	got, err := mockdesk.ParseFixture(data)
	require.NoError(t, err)
	require.Len(t, got, 1)

	require.Equal(t, "INC-00007", got[0].TicketNumber)
	require.Equal(t, []string{"printer"}, got[0].Tags)
	require.True(t, got[0].DueDate.Equal(time.Date(2026, 3, 12, 9, 0, 0, 0, time.UTC)))
}

func Test_ParseFixture_Returns_Error_When_Tickets_Invalid(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		name string
		data string
	}{
		{name: "not yaml", data: "tickets: [:"},
		{name: "zero id", data: "tickets: [{id: 0, status: open, priority: low}]"},
		{name: "duplicate id", data: "tickets: [{id: 1, status: open, priority: low}, {id: 1, status: open, priority: low}]"},
		{name: "bad status", data: "tickets: [{id: 1, status: asleep, priority: low}]"},
		{name: "bad priority", data: "tickets: [{id: 1, status: open, priority: p0}]"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := mockdesk.ParseFixture([]byte(tt.data))
			if !errors.Is(err, mockdesk.ErrInvalidFixture) {
				t.Fatalf("err = %v, want ErrInvalidFixture", err)
			}
		})
	}
}

func Test_MarshalFixture_Output_Parses_Back_When_Generated(t *testing.T) {
	t.Parallel()

	want := mockdesk.Generate(4, t0)

	data, err := mockdesk.MarshalFixture(want)
	require.NoError(t, err)

	got, err := mockdesk.ParseFixture(data)
	require.NoError(t, err)

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("fixture mismatch (-want +got):\n%s", diff)
	}
}

func Test_Backend_Reports_Partial_Failure_When_Driven_By_Executor(t *testing.T) {
	t.Parallel()

	b := newBackend(t, 4)
	b.FailOn(3)

	exec := batch.New(b, batch.Options{Delay: -1, DismissDelay: -1, Clock: clock.Fake(t0)})

	res, err := exec.Run(context.Background(), batch.KindSetPriority, b.Tickets(), batch.Params{Priority: ticket.PriorityCritical})
	require.NoError(t, err)

	require.Equal(t, 3, res.SuccessCount)
	require.Equal(t, 1, res.FailCount)
	require.Equal(t, "INC-00003", res.Errors[0].TicketNumber)

	page := fetch(t, b, ticket.Query{Criteria: ticket.Criteria{Priority: []string{ticket.PriorityCritical}}})
	require.Equal(t, 3, page.Total)
}

func Test_SaveState_Then_LoadState_Returns_Mutated_Data_When_Reloaded(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	storage, err := state.NewFileStorage(t.TempDir())
	require.NoError(t, err)

	_, err = mockdesk.LoadState(ctx, storage)
	require.ErrorIs(t, err, state.ErrNotFound)

	b := newBackend(t, 3)
	require.NoError(t, b.DeleteTicket(ctx, 2))
	require.NoError(t, mockdesk.SaveState(ctx, storage, b))

	got, err := mockdesk.LoadState(ctx, storage)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 3}, ticket.IDs(got))
}
