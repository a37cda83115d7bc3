package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/calvinalkan/tk-desk/internal/mockdesk"
	"github.com/calvinalkan/tk-desk/internal/store"
	"github.com/calvinalkan/tk-desk/internal/ticket"
)

// SeedCmd returns the seed command.
func SeedCmd(a *app) *Command {
	c := newCommand("seed [flags]", "Replace or dump the mock desk data set",
		"Replace the tickets served by the mock desk with generated tickets or a fixture file.\n" +
			"The data set is kept in the state directory between runs.")

	count := c.Flags.Int("count", ticket.DefaultMockTickets, "Number of tickets to generate")
	from := c.Flags.String("from", "", "Load tickets from a YAML fixture `file` instead")
	dump := c.Flags.Bool("dump", false, "Print the current data set as a YAML fixture and change nothing")

	c.Exec = func(ctx context.Context, o *IO, _ []string) error {
		if *dump {
			data, err := mockdesk.MarshalFixture(a.backend.Tickets())
			if err != nil {
				return err
			}

			o.Printf("%s", data)

			return nil
		}

		if *count < 0 {
			return fmt.Errorf("count cannot be negative: %d", *count)
		}

		tickets := mockdesk.Generate(*count, a.clock.Now())

		if *from != "" {
			path := *from
			if !filepath.IsAbs(path) {
				path = filepath.Join(a.cfg.EffectiveCwd, path)
			}

			loaded, err := mockdesk.LoadFixture(path)
			if err != nil {
				return err
			}

			tickets = loaded
		}

		a.backend.Load(tickets)
		a.session.Tickets.ResetData()
		a.session.UI.ResetUI()

		// Page and total refer to the old data set.
		err := a.session.Filters.SetPagination(store.PaginationPatch{Current: ticket.Ptr(1), Total: ticket.Ptr(0)})
		if err != nil {
			return err
		}

		o.Printf("seeded %d tickets\n", len(tickets))

		return nil
	}

	return c
}
