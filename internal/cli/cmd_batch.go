package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/tk-desk/internal/batch"
	"github.com/calvinalkan/tk-desk/internal/ticket"
)

// ErrNoSelection is returned when a batch has nothing to work on.
var ErrNoSelection = errors.New("no tickets selected")

// selectionFlags picks the batch targets on the current page.
type selectionFlags struct {
	ids []int64
	all bool
}

func (s *selectionFlags) register(fs *flag.FlagSet) {
	fs.Int64SliceVar(&s.ids, "ids", nil, "Ticket `ids` to select (comma separated)")
	fs.BoolVar(&s.all, "all", false, "Select every ticket on the current page")
}

// BatchCmd returns the batch command.
func BatchCmd(a *app) *Command {
	kinds := make([]string, len(batch.Kinds))
	for i, k := range batch.Kinds {
		kinds[i] = string(k)
	}

	c := newCommand("batch <kind> [flags]", "Apply one operation to many tickets",
		"Run an operation over the selected tickets of the current page, one ticket at a time.\n"+
			"A failing ticket does not stop the others.\n\n"+
			"Kinds: "+strings.Join(kinds, ", "))

	var (
		sel selectionFlags
		p   batch.Params
	)

	sel.register(c.Flags)
	c.Flags.Int64Var(&p.AssigneeID, "assignee", 0, "Assignee `id` (assign)")
	c.Flags.StringVar(&p.Comment, "comment", "", "Internal note added with the assignment (assign)")
	c.Flags.StringVar(&p.Status, "status", "", "New `status` (update_status)")
	c.Flags.StringVar(&p.Priority, "priority", "", "New `priority` (set_priority)")
	c.Flags.StringSliceVar(&p.Tags, "tags", nil, "Tags to add (add_tags)")
	c.Flags.StringVar(&p.Message, "message", "", "Notification text (notify)")
	c.Flags.BoolVar(&p.NotifyAssignee, "notify-assignee", false, "Notify the assignee (notify)")
	c.Flags.BoolVar(&p.NotifyRequester, "notify-requester", false, "Notify the requester (notify)")
	c.Flags.StringVar(&p.Format, "format", batch.FormatCSV, "Export `format`, csv or json (export)")

	c.Exec = func(ctx context.Context, o *IO, args []string) error {
		if len(args) != 1 {
			return fmt.Errorf("%w: kind", ErrMissingArgument)
		}

		kind, err := batch.ParseKind(args[0])
		if err != nil {
			return err
		}

		return runBatch(ctx, o, a, kind, sel, p)
	}

	return c
}

// ExportCmd returns the export command.
func ExportCmd(a *app) *Command {
	c := newCommand("export [flags]", "Export the selected tickets to a file",
		"Export the selected tickets of the current page as one file in the export directory.")

	var sel selectionFlags

	sel.register(c.Flags)
	format := c.Flags.String("format", batch.FormatCSV, "Export `format`, csv or json")

	c.Exec = func(ctx context.Context, o *IO, _ []string) error {
		return runBatch(ctx, o, a, batch.KindExport, sel, batch.Params{Format: *format})
	}

	return c
}

func runBatch(ctx context.Context, o *IO, a *app, kind batch.Kind, sel selectionFlags, p batch.Params) error {
	// Reject bad input before fetching anything.
	err := p.Validate(kind)
	if err != nil {
		return err
	}

	_, err = a.session.Refresh(ctx, false)
	if err != nil {
		return err
	}

	switch {
	case sel.all:
		a.session.UI.SelectAll(ticket.IDs(a.session.Tickets.Tickets()))
	case len(sel.ids) > 0:
		a.session.UI.SetSelection(sel.ids)
	case !a.interactive:
		return fmt.Errorf("%w: use --ids or --all", ErrNoSelection)
	}

	for _, id := range a.session.UI.SelectedIDs() {
		if _, ok := a.session.Tickets.Ticket(id); !ok {
			o.Warn(fmt.Sprintf("ticket %d is not on the current page", id), "change filters or page to include it")
		}
	}

	unsub := a.session.Batch.Subscribe(func(pr batch.Progress) {
		if pr.Phase == batch.PhaseRunning && pr.Current > 0 {
			o.Printf("[%d/%d] %s\n", pr.Current, pr.Total, pr.Status)
		}
	})
	defer unsub()

	res, err := a.session.RunBatch(ctx, kind, p)
	if err != nil {
		return err
	}

	if res.FailCount > 0 {
		o.Warn(fmt.Sprintf("%d of %d tickets failed", res.FailCount, res.SuccessCount+res.FailCount),
			"check the log output above and retry the failed tickets")
	}

	if !a.interactive && kind != batch.KindExport {
		a.session.Batch.Dismiss()
	}

	return nil
}
