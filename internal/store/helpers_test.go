package store_test

import (
	"time"

	"github.com/calvinalkan/tk-desk/internal/ticket"
)

var t0 = time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC)

func sampleTickets() []ticket.Ticket {
	yesterday := t0.AddDate(0, 0, -1)

	return []ticket.Ticket{
		{ID: 1, Title: "Printer jammed", Status: ticket.StatusOpen, Priority: ticket.PriorityHigh, CreatedAt: t0.Add(-time.Hour)},
		{ID: 2, Title: "VPN drops", Status: ticket.StatusInProgress, Priority: ticket.PriorityMedium, CreatedAt: t0.AddDate(0, 0, -20)},
		{ID: 3, Title: "Laptop swap", Status: ticket.StatusResolved, Priority: ticket.PriorityLow, CreatedAt: t0.AddDate(0, -2, 0), DueDate: &yesterday},
	}
}
