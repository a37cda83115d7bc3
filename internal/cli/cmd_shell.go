package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/peterh/liner"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/term"

	"github.com/calvinalkan/tk-desk/internal/batch"
	"github.com/calvinalkan/tk-desk/internal/store"
	"github.com/calvinalkan/tk-desk/internal/ticket"
)

const shellPrompt = "tk-desk> "

const shellHelp = `Shell commands:
  ls | stats | filter | batch | export | seed | print-config
                          Same as the top-level commands; batch and export
                          use the selection when --ids and --all are missing
  next, prev              Move one page and list it
  select <id>...          Add tickets to the selection
  deselect <id>...        Remove tickets from the selection
  toggle <id>             Flip one ticket's selection
  select-all              Select every ticket on the page
  clear-selection         Empty the selection
  selected                Print the selection
  view <table|card|kanban>
                          Set the view mode
  job                     Show the batch job
  dismiss                 Dismiss a completed batch job and refresh
  help                    Show this help
  quit                    Leave the shell`

// lineReader is the prompt used by the shell: liner on a terminal, a
// plain scanner otherwise.
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(line string)
	Close() error
}

// ShellCmd returns the shell command. in is the shell's input.
func ShellCmd(a *app, in io.Reader) *Command {
	c := newCommand("shell [flags]", "Interactive session keeping selection and batch jobs",
		"Start an interactive session. Selection, view mode and batch jobs live for the whole\n" +
			"session; completed jobs are dismissed after dismiss_delay or with 'dismiss'.")

	metricsAddr := c.Flags.String("metrics-addr", "", "Serve Prometheus metrics on `addr` (for example 127.0.0.1:9464)")

	c.Exec = func(ctx context.Context, o *IO, _ []string) error {
		if *metricsAddr != "" {
			stop, err := serveMetrics(a, o, *metricsAddr)
			if err != nil {
				return err
			}

			defer stop()
		}

		r := newLineReader(in, filepath.Join(a.cfg.StateDirAbs, "shell_history"))
		defer func() { _ = r.Close() }()

		return runShell(ctx, o, a, r)
	}

	return c
}

func runShell(ctx context.Context, o *IO, a *app, r lineReader) error {
	o.Println("tk-desk shell. Type 'help' for commands.")

	for {
		if ctx.Err() != nil {
			return nil
		}

		line, err := r.Prompt(shellPrompt)
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				o.Println("bye")

				return nil
			}

			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		r.AppendHistory(line)

		fields := strings.Fields(line)
		if done := shellLine(ctx, o, a, fields[0], fields[1:]); done {
			o.Println("bye")

			return nil
		}
	}
}

// shellLine runs one command and reports whether the shell should exit.
//
//nolint:cyclop,funlen // one case per shell command
func shellLine(ctx context.Context, o *IO, a *app, name string, args []string) bool {
	ui := a.session.UI

	var err error

	switch name {
	case "quit", "exit", "q":
		return true
	case "help", "?":
		o.Println(shellHelp)
	case "next", "prev":
		moved := a.session.Filters.NextPage
		if name == "prev" {
			moved = a.session.Filters.PrevPage
		}

		if !moved() {
			o.Println("no", name, "page")

			return false
		}

		_, err = a.session.Refresh(ctx, false)
		if err == nil {
			printTickets(o, a)
		}
	case "select", "deselect":
		var ids []int64

		ids, err = parseArgIDs(args)
		for _, id := range ids {
			if name == "select" {
				ui.Select(id)
			} else {
				ui.Deselect(id)
			}
		}

		printSelection(o, ui)
	case "toggle":
		var ids []int64

		ids, err = parseArgIDs(args)
		if err == nil && len(ids) != 1 {
			err = fmt.Errorf("%w: toggle <id>", ErrMissingArgument)
		}

		if err == nil {
			ui.Toggle(ids[0])
			printSelection(o, ui)
		}
	case "select-all":
		ui.SelectAll(ticket.IDs(a.session.Tickets.Tickets()))
		printSelection(o, ui)
	case "clear-selection":
		ui.ClearSelection()
		printSelection(o, ui)
	case "selected":
		printSelection(o, ui)
	case "view":
		if len(args) != 1 {
			err = fmt.Errorf("%w: view <table|card|kanban>", ErrMissingArgument)

			break
		}

		err = ui.SetViewMode(store.ViewMode(args[0]))
		if err == nil {
			o.Println("view:", args[0])
		}
	case "job":
		printJob(o, a.session.Batch)
	case "dismiss":
		if !a.session.Batch.Dismiss() {
			o.Println("no completed job")
		} else {
			o.Println("dismissed")
		}
	default:
		cmd := appCommands(a).lookup(name)
		if cmd == nil {
			o.Println("unknown command:", name, "(type 'help' for commands)")

			return false
		}

		cmd.Run(ctx, o, args)
	}

	if err != nil {
		o.ErrPrintln("error:", err)
	}

	return false
}

func parseArgIDs(args []string) ([]int64, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: ticket ids", ErrMissingArgument)
	}

	ids := make([]int64, 0, len(args))

	for _, arg := range args {
		for part := range strings.SplitSeq(arg, ",") {
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid ticket id %q", part)
			}

			ids = append(ids, id)
		}
	}

	return ids, nil
}

func printSelection(o *IO, ui *store.UIStore) {
	ids := ui.SelectedIDs()
	if len(ids) == 0 {
		o.Println("selected: (none)")

		return
	}

	o.Println("selected:", strings.Join(formatIDs(ids), ","))
}

func printJob(o *IO, e *batch.Executor) {
	job, ok := e.Job()
	if !ok {
		o.Println("job: (none)")

		return
	}

	o.Printf("job: %s %s %d/%d (%d ok, %d failed)\n",
		job.Kind, job.Phase, job.Current, job.Total, job.SuccessCount, job.FailCount)

	for _, itemErr := range job.Errors {
		o.Println("  -", itemErr.String())
	}
}

func serveMetrics(a *app, o *IO, addr string) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		serveErr := srv.Serve(ln)
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			a.log.Error("metrics server stopped", "error", serveErr)
		}
	}()

	o.Printf("metrics on http://%s/metrics\n", ln.Addr())

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		_ = srv.Shutdown(shutdownCtx)
	}, nil
}

func newLineReader(in io.Reader, historyPath string) lineReader {
	if in == nil {
		in = strings.NewReader("")
	}

	if f, ok := in.(*os.File); ok && f == os.Stdin && term.IsTerminal(int(f.Fd())) {
		return newLinerReader(historyPath)
	}

	return &scanReader{sc: bufio.NewScanner(in)}
}

// linerReader keeps history in the state directory.
type linerReader struct {
	state       *liner.State
	historyPath string
}

func newLinerReader(historyPath string) *linerReader {
	l := liner.NewLiner()
	l.SetCtrlCAborts(true)

	if f, err := os.Open(historyPath); err == nil {
		_, _ = l.ReadHistory(f)
		_ = f.Close()
	}

	return &linerReader{state: l, historyPath: historyPath}
}

func (r *linerReader) Prompt(p string) (string, error) { return r.state.Prompt(p) }

func (r *linerReader) AppendHistory(line string) { r.state.AppendHistory(line) }

func (r *linerReader) Close() error {
	if f, err := os.Create(r.historyPath); err == nil {
		_, _ = r.state.WriteHistory(f)
		_ = f.Close()
	}

	return r.state.Close()
}

type scanReader struct {
	sc *bufio.Scanner
}

func (r *scanReader) Prompt(string) (string, error) {
	if r.sc.Scan() {
		return r.sc.Text(), nil
	}

	if err := r.sc.Err(); err != nil {
		return "", err
	}

	return "", io.EOF
}

func (*scanReader) AppendHistory(string) {}

func (*scanReader) Close() error { return nil }
