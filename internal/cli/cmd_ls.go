package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/calvinalkan/tk-desk/internal/store"
	"github.com/calvinalkan/tk-desk/internal/ticket"
)

// LsCmd returns the ls command.
func LsCmd(a *app) *Command {
	c := newCommand("ls [flags]", "List the current page of tickets",
		"Fetch the page selected by the saved filters, sort and pagination, and print it.\n" +
			"Page moves are remembered for the next run.")

	page := c.Flags.Int("page", 0, "Go to page `n` before listing")
	pageSize := c.Flags.Int("page-size", 0, "Change the page size (returns to page 1)")
	asJSON := c.Flags.Bool("json", false, "Print the page as JSON")

	c.Exec = func(ctx context.Context, o *IO, _ []string) error {
		if *pageSize > 0 {
			err := a.session.Filters.SetPageSize(*pageSize)
			if err != nil {
				return err
			}
		}

		if *page > 0 {
			err := a.session.Filters.UpdatePagination(*page, 0)
			if err != nil {
				return err
			}
		}

		_, err := a.session.Refresh(ctx, false)
		if err != nil {
			return err
		}

		if *asJSON {
			return printJSON(o, ticket.Page{
				Tickets: a.session.Tickets.Tickets(),
				Total:   a.session.Filters.Pagination().Total,
			})
		}

		printTickets(o, a)

		return nil
	}

	return c
}

func printTickets(o *IO, a *app) {
	tickets := a.session.Tickets.Tickets()
	ui := a.session.UI

	switch ui.Snapshot().ViewMode {
	case store.ViewKanban:
		var columns []string

		byStatus := make(map[string][]ticket.Ticket)

		for _, t := range tickets {
			if _, ok := byStatus[t.Status]; !ok {
				columns = append(columns, t.Status)
			}

			byStatus[t.Status] = append(byStatus[t.Status], t)
		}

		for _, status := range columns {
			o.Printf("== %s (%d)\n", status, len(byStatus[status]))

			for _, t := range byStatus[status] {
				o.Println(ticketLine(t, ui.IsSelected(t.ID)))
			}
		}
	case store.ViewCard:
		for _, t := range tickets {
			o.Println(ticketLine(t, ui.IsSelected(t.ID)))

			if t.Description != "" {
				o.Println("    " + t.Description)
			}

			o.Printf("    category=%s tags=%s created=%s\n",
				t.Category, strings.Join(t.Tags, ","), t.CreatedAt.Format(time.DateTime))
		}
	default:
		for _, t := range tickets {
			o.Println(ticketLine(t, ui.IsSelected(t.ID)))
		}
	}

	p := a.session.Filters.Pagination()
	o.Printf("page %d/%d, %d tickets\n", p.Current, a.session.Filters.TotalPages(), p.Total)
}

func ticketLine(t ticket.Ticket, selected bool) string {
	mark := " "
	if selected {
		mark = "*"
	}

	line := fmt.Sprintf("%s %-9s %-4d %-12s %-8s %s", mark, t.TicketNumber, t.ID, "["+t.Status+"]", t.Priority, t.Title)
	if t.AssigneeName != "" {
		line += " @" + t.AssigneeName
	}

	return line
}

// StatsCmd returns the stats command.
func StatsCmd(a *app) *Command {
	c := newCommand("stats [flags]", "Show counts for the loaded tickets",
		"Fetch the current page and print the derived counts: totals, open vs resolved, priority and due dates.")

	asJSON := c.Flags.Bool("json", false, "Print the stats as JSON")

	c.Exec = func(ctx context.Context, o *IO, _ []string) error {
		_, err := a.session.Refresh(ctx, false)
		if err != nil {
			return err
		}

		s := a.session.Tickets.Stats()

		if *asJSON {
			return printJSON(o, s)
		}

		o.Printf("total:         %d\n", s.Total)
		o.Printf("open:          %d\n", s.Open)
		o.Printf("resolved:      %d\n", s.Resolved)
		o.Printf("high_priority: %d\n", s.HighPriority)
		o.Printf("overdue:       %d\n", s.Overdue)
		o.Printf("due_today:     %d\n", s.DueToday)
		o.Printf("this_week:     %d\n", s.ThisWeek)
		o.Printf("this_month:    %d\n", s.ThisMonth)

		return nil
	}

	return c
}

func printJSON(o *IO, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}

	o.Println(string(data))

	return nil
}
