package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	flag "github.com/spf13/pflag"
)

// Command is one tk-desk subcommand: its flags, help text and body.
type Command struct {
	Flags *flag.FlagSet

	// Usage starts with the command name, e.g. "batch <kind> [flags]".
	Usage string
	Short string
	// Long replaces Short in "tk-desk <cmd> --help" when set.
	Long string

	Exec func(ctx context.Context, o *IO, args []string) error
}

// newCommand returns a command with an empty, quiet flag set named after
// the first word of usage. Callers register flags and set Exec.
func newCommand(usage, short, long string) *Command {
	c := &Command{Usage: usage, Short: short, Long: long}

	c.Flags = flag.NewFlagSet(c.Name(), flag.ContinueOnError)
	c.Flags.SortFlags = false
	c.Flags.SetOutput(io.Discard)

	return c
}

// Name returns the first word of Usage.
func (c *Command) Name() string {
	name, _, _ := strings.Cut(c.Usage, " ")

	return name
}

func (c *Command) writeHelp(printLine func(a ...any)) {
	printLine("Usage: tk-desk", c.Usage)
	printLine()

	if c.Long != "" {
		printLine(c.Long)
	} else {
		printLine(c.Short)
	}

	if c.Flags.HasFlags() {
		printLine()
		printLine("Flags:")
		printLine(strings.TrimRight(c.Flags.FlagUsages(), "\n"))
	}
}

// Run parses args and calls Exec. Errors are printed here and reported
// as exit code 1. Help asked for goes to stdout, help after a bad flag
// goes to stderr.
func (c *Command) Run(ctx context.Context, o *IO, args []string) int {
	err := c.Flags.Parse(args)

	switch {
	case errors.Is(err, flag.ErrHelp):
		c.writeHelp(o.Println)

		return 0
	case err != nil:
		o.ErrPrintln("error:", err)
		o.ErrPrintln()
		c.writeHelp(o.ErrPrintln)

		return 1
	}

	err = c.Exec(ctx, o, c.Flags.Args())
	if err != nil {
		o.ErrPrintln("error:", err)

		return 1
	}

	return 0
}

// commandSet builds the commands on every call. A FlagSet keeps the
// values it parsed and the shell runs the same command many times.
type commandSet func() []*Command

func (s commandSet) lookup(name string) *Command {
	for _, c := range s() {
		if c.Name() == name {
			return c
		}
	}

	return nil
}

func (s commandSet) writeList(w io.Writer) {
	cmds := s()

	width := 0
	for _, c := range cmds {
		width = max(width, len(c.Usage))
	}

	for _, c := range cmds {
		_, _ = fmt.Fprintf(w, "  %-*s  %s\n", width, c.Usage, c.Short)
	}
}
