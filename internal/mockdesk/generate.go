package mockdesk

import (
	"fmt"
	"time"

	"github.com/calvinalkan/tk-desk/internal/ticket"
)

//nolint:gochecknoglobals // package-level constant
var (
	statusCycle   = []string{ticket.StatusOpen, ticket.StatusInProgress, ticket.StatusResolved, ticket.StatusClosed}
	priorityCycle = []string{ticket.PriorityLow, ticket.PriorityMedium, ticket.PriorityHigh, ticket.PriorityUrgent}
	categoryCycle = []string{"hardware", "software", "network", "access"}
	agents        = map[int64]string{1: "Alex Morgan", 2: "Sam Rivera", 3: "Jo Chen"}
)

// DefaultRequesterID is the requester of every generated ticket.
const DefaultRequesterID = 2

// Generate returns n deterministic tickets relative to now. Ticket i
// (zero-based) gets id i+1, cycles status and priority with period four,
// is assigned to agent 1 when i is a multiple of three, was created i
// days and updated i*12 hours before now, and is due i+1 days after now.
func Generate(n int, now time.Time) []ticket.Ticket {
	out := make([]ticket.Ticket, n)

	for i := range out {
		id := int64(i + 1)
		due := now.AddDate(0, 0, i+1)

		t := ticket.Ticket{
			ID:           id,
			TicketNumber: ticketNumber(id),
			Title:        fmt.Sprintf("Ticket %d", id),
			Description:  fmt.Sprintf("Description for ticket %d", id),
			Status:       statusCycle[i%len(statusCycle)],
			Priority:     priorityCycle[i%len(priorityCycle)],
			Type:         "incident",
			Category:     categoryCycle[i%len(categoryCycle)],
			RequesterID:  DefaultRequesterID,
			TenantID:     1,
			Tags:         []string{"tag1", "tag2"},
			DueDate:      &due,
			CreatedAt:    now.AddDate(0, 0, -i),
			UpdatedAt:    now.Add(-time.Duration(i) * 12 * time.Hour),
		}

		if i%3 == 0 {
			assignee := int64(1)
			t.AssigneeID = &assignee
			t.AssigneeName = agentName(assignee)
		}

		out[i] = t
	}

	return out
}

func ticketNumber(id int64) string {
	return fmt.Sprintf("INC-%05d", id)
}

func agentName(id int64) string {
	if name, ok := agents[id]; ok {
		return name
	}

	return fmt.Sprintf("agent-%d", id)
}
