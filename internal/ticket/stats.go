package ticket

import "time"

// Stats holds aggregate counts over a ticket list. It is always derived
// with ComputeStats and never set independently.
type Stats struct {
	Total        int `json:"total"`
	Open         int `json:"open"`
	Resolved     int `json:"resolved"`
	HighPriority int `json:"high_priority"`
	Overdue      int `json:"overdue"`
	DueToday     int `json:"due_today"`
	ThisWeek     int `json:"this_week"`
	ThisMonth    int `json:"this_month"`
}

// ComputeStats derives Stats from tickets as seen at now.
//
// Day, week and month boundaries come from now's location, so the same
// tickets evaluated in different time zones can produce different
// counts. Weeks start at Sunday midnight. Due today means due within 24
// hours of local midnight, which is not the whole calendar day when a
// DST switch makes it 23 or 25 hours long. Tickets without a due date
// never count as overdue or due today, and the two buckets are disjoint.
func ComputeStats(tickets []Ticket, now time.Time) Stats {
	today := midnight(now)
	dueTodayEnd := today.Add(24 * time.Hour)
	weekStart := today.AddDate(0, 0, -int(today.Weekday()))
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	var s Stats

	s.Total = len(tickets)

	for i := range tickets {
		t := &tickets[i]

		if t.IsResolved() {
			s.Resolved++
		}

		if t.IsHighPriority() {
			s.HighPriority++
		}

		if t.DueDate != nil {
			due := *t.DueDate
			dueToday := !due.Before(today) && due.Before(dueTodayEnd)

			// A ticket due earlier today is still "due today", not overdue.
			if dueToday {
				s.DueToday++
			} else if due.Before(now) {
				s.Overdue++
			}
		}

		if !t.CreatedAt.Before(weekStart) {
			s.ThisWeek++
		}

		if !t.CreatedAt.Before(monthStart) {
			s.ThisMonth++
		}
	}

	s.Open = s.Total - s.Resolved

	return s
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
