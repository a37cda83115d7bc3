package ticket_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/calvinalkan/tk-desk/internal/ticket"
)

// Wednesday; the week started Sunday 2026-03-08, the month 2026-03-01.
var statsNow = time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC)

func at(t time.Time) *time.Time { return &t }

func Test_ComputeStats_Returns_Zero_When_No_Tickets(t *testing.T) {
	t.Parallel()

	got := ticket.ComputeStats(nil, statsNow)

	if diff := cmp.Diff(ticket.Stats{}, got); diff != "" {
		t.Fatalf("stats mismatch (-want +got):\n%s", diff)
	}
}

func Test_ComputeStats_Counts_Every_Bucket_When_Mixed_Tickets(t *testing.T) {
	t.Parallel()

	tickets := []ticket.Ticket{
		{ID: 1, Status: ticket.StatusOpen, Priority: ticket.PriorityHigh, CreatedAt: statsNow.Add(-time.Hour)},
		{ID: 2, Status: ticket.StatusResolved, Priority: ticket.PriorityLow, CreatedAt: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)},
		{ID: 3, Status: ticket.StatusClosed, Priority: ticket.PriorityCritical, CreatedAt: time.Date(2026, 2, 20, 9, 0, 0, 0, time.UTC)},
		{ID: 4, Status: ticket.StatusInProgress, Priority: ticket.PriorityUrgent, CreatedAt: time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC),
			DueDate: at(statsNow.AddDate(0, 0, -1))},
		{ID: 5, Status: ticket.StatusPending, Priority: ticket.PriorityMedium, CreatedAt: time.Date(2026, 3, 7, 23, 59, 59, 0, time.UTC),
			DueDate: at(time.Date(2026, 3, 11, 18, 0, 0, 0, time.UTC))},
		{ID: 6, Status: ticket.StatusOpen, Priority: ticket.PriorityMedium, CreatedAt: time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC),
			DueDate: at(statsNow.AddDate(0, 0, 3))},
	}

	got := ticket.ComputeStats(tickets, statsNow)

	want := ticket.Stats{
		Total:        6,
		Open:         4,
		Resolved:     2,
		HighPriority: 2,
		Overdue:      1,
		DueToday:     1,
		ThisWeek:     2,
		ThisMonth:    4,
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("stats mismatch (-want +got):\n%s", diff)
	}
}

func Test_ComputeStats_Partitions_Open_And_Resolved_When_Any_Status(t *testing.T) {
	t.Parallel()

	statuses := []string{
		ticket.StatusNew, ticket.StatusOpen, ticket.StatusInProgress, ticket.StatusPending,
		ticket.StatusResolved, ticket.StatusClosed, ticket.StatusCancelled, "unknown",
	}

	for n := range 40 {
		tickets := make([]ticket.Ticket, n)
		for i := range tickets {
			tickets[i] = ticket.Ticket{ID: int64(i + 1), Status: statuses[(i*7+n)%len(statuses)]}
		}

		s := ticket.ComputeStats(tickets, statsNow)

		if s.Open+s.Resolved != s.Total || s.Total != n {
			t.Fatalf("n=%d: open(%d)+resolved(%d) != total(%d)", n, s.Open, s.Resolved, s.Total)
		}
	}
}

func Test_ComputeStats_Counts_Overdue_When_Due_Yesterday(t *testing.T) {
	t.Parallel()

	tickets := []ticket.Ticket{
		{ID: 3, Status: ticket.StatusOpen, DueDate: at(statsNow.AddDate(0, 0, -1))},
	}

	s := ticket.ComputeStats(tickets, statsNow)

	if s.Overdue != 1 {
		t.Fatalf("overdue = %d, want 1", s.Overdue)
	}

	if s.DueToday != 0 {
		t.Fatalf("dueToday = %d, want 0", s.DueToday)
	}
}

func Test_ComputeStats_Counts_DueToday_Not_Overdue_When_Due_Earlier_Today(t *testing.T) {
	t.Parallel()

	tickets := []ticket.Ticket{
		{ID: 4, Status: ticket.StatusOpen, DueDate: at(time.Date(2026, 3, 11, 10, 0, 0, 0, time.UTC))},
	}

	s := ticket.ComputeStats(tickets, statsNow)

	if s.DueToday != 1 {
		t.Fatalf("dueToday = %d, want 1", s.DueToday)
	}

	if s.Overdue != 0 {
		t.Fatalf("overdue = %d, want 0", s.Overdue)
	}
}

func Test_ComputeStats_Ignores_Due_Buckets_When_No_Due_Date(t *testing.T) {
	t.Parallel()

	tickets := []ticket.Ticket{{ID: 1, Status: ticket.StatusOpen}, {ID: 2, Status: ticket.StatusOpen}}

	s := ticket.ComputeStats(tickets, statsNow)

	if s.Overdue != 0 || s.DueToday != 0 {
		t.Fatalf("overdue=%d dueToday=%d, want 0/0", s.Overdue, s.DueToday)
	}
}

func Test_ComputeStats_Uses_Location_Of_Now_When_Bucketing_Days(t *testing.T) {
	t.Parallel()

	// At 02:00 UTC it is still 2026-03-10 in New York, so a ticket due
	// 05:00 UTC (01:00 EDT on the 11th) is due tomorrow there.
	due := time.Date(2026, 3, 11, 5, 0, 0, 0, time.UTC)
	tickets := []ticket.Ticket{{ID: 1, Status: ticket.StatusOpen, DueDate: &due}}

	nowUTC := time.Date(2026, 3, 11, 2, 0, 0, 0, time.UTC)

	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	utcStats := ticket.ComputeStats(tickets, nowUTC)
	nyStats := ticket.ComputeStats(tickets, nowUTC.In(ny))

	if utcStats.DueToday != 1 {
		t.Fatalf("utc dueToday = %d, want 1", utcStats.DueToday)
	}

	if nyStats.DueToday != 0 {
		t.Fatalf("new york dueToday = %d, want 0", nyStats.DueToday)
	}
}

func Test_ComputeStats_Starts_Week_On_Sunday_When_Now_Is_Sunday(t *testing.T) {
	t.Parallel()

	sunday := time.Date(2026, 3, 8, 8, 0, 0, 0, time.UTC)
	tickets := []ticket.Ticket{
		{ID: 1, CreatedAt: time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)},
		{ID: 2, CreatedAt: time.Date(2026, 3, 7, 23, 0, 0, 0, time.UTC)},
	}

	s := ticket.ComputeStats(tickets, sunday)

	if s.ThisWeek != 1 {
		t.Fatalf("thisWeek = %d, want 1", s.ThisWeek)
	}
}

func Test_ComputeStats_Ends_DueToday_24h_After_Midnight_When_Day_Has_25_Hours(t *testing.T) {
	t.Parallel()

	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	// Clocks fall back on 2026-11-01, so midnight+24h is 23:00 local.
	now := time.Date(2026, 11, 1, 12, 0, 0, 0, ny)
	tickets := []ticket.Ticket{
		{ID: 1, Status: ticket.StatusOpen, DueDate: at(time.Date(2026, 11, 1, 22, 30, 0, 0, ny))},
		{ID: 2, Status: ticket.StatusOpen, DueDate: at(time.Date(2026, 11, 1, 23, 30, 0, 0, ny))},
	}

	s := ticket.ComputeStats(tickets, now)

	if s.DueToday != 1 {
		t.Fatalf("dueToday = %d, want 1", s.DueToday)
	}

	if s.Overdue != 0 {
		t.Fatalf("overdue = %d, want 0", s.Overdue)
	}
}
