package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/tk-desk/internal/logging"
	"github.com/calvinalkan/tk-desk/internal/ticket"
)

// Run is the main entry point. Returns exit code. A signal on sigCh
// cancels the running command.
func Run(in io.Reader, out io.Writer, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	globals := newGlobalFlags()

	err := globals.fs.Parse(args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			printUsage(out, globals.fs)

			return 0
		}

		fprintln(errOut, "error:", err)
		fprintln(errOut)
		printUsage(errOut, globals.fs)

		return 1
	}

	if globals.fs.Changed("state-dir") && globals.stateDir == "" {
		fprintln(errOut, "error:", ticket.ErrStateDirEmpty)
		fprintln(errOut)
		printUsage(errOut, globals.fs)

		return 1
	}

	rest := globals.fs.Args()
	if globals.help || len(rest) == 0 {
		printUsage(out, globals.fs)

		return 0
	}

	cfg, err := ticket.LoadConfig(ticket.LoadConfigInput{
		WorkDirOverride:  globals.workDir,
		ConfigPath:       globals.configPath,
		StateDirOverride: globals.stateDir,
		LogLevelOverride: globals.logLevel,
		Env:              env,
	})
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	log, err := logging.New(errOut, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if sigCh != nil {
		go func() {
			select {
			case <-sigCh:
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	o := NewIO(out, errOut)
	name, cmdArgs := rest[0], rest[1:]

	if name == "print-config" {
		code := PrintConfigCmd(&cfg).Run(ctx, o, cmdArgs)
		if code != 0 {
			return code
		}

		return o.Finish()
	}

	a, err := openApp(ctx, cfg, log, o, name == "shell")
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	var code int

	if name == "shell" {
		code = ShellCmd(a, in).Run(ctx, o, cmdArgs)
	} else {
		cmd := appCommands(a).lookup(name)
		if cmd == nil {
			fprintln(errOut, "error: unknown command:", name)
			printUsage(errOut, globals.fs)

			code = 1
		} else {
			code = cmd.Run(ctx, o, cmdArgs)
		}
	}

	// Saving uses a fresh context so an interrupt does not lose the data set.
	closeErr := a.close(context.Background())
	if closeErr != nil {
		fprintln(errOut, "error:", closeErr)

		return 1
	}

	// Warnings are reported even when the command failed.
	finishCode := o.Finish()
	if code != 0 {
		return code
	}

	return finishCode
}

type globalFlags struct {
	fs         *flag.FlagSet
	workDir    string
	configPath string
	stateDir   string
	logLevel   string
	help       bool
}

func newGlobalFlags() *globalFlags {
	g := &globalFlags{fs: flag.NewFlagSet("tk-desk", flag.ContinueOnError)}

	g.fs.SetInterspersed(false)
	g.fs.SetOutput(io.Discard)
	g.fs.SortFlags = false

	g.fs.StringVarP(&g.workDir, "cwd", "C", "", "Run as if started in `dir`")
	g.fs.StringVarP(&g.configPath, "config", "c", "", "Use specified config `file`")
	g.fs.StringVar(&g.stateDir, "state-dir", "", "Override the state `dir`")
	g.fs.StringVar(&g.logLevel, "log-level", "", "Log `level` (debug, info, warn, error)")
	g.fs.BoolVarP(&g.help, "help", "h", false, "Show help")

	return g
}

// appCommands returns every command except shell, bound to a.
func appCommands(a *app) commandSet {
	var cfg *ticket.Config
	if a != nil {
		cfg = &a.cfg
	}

	return func() []*Command {
		return []*Command{
			LsCmd(a),
			StatsCmd(a),
			FilterCmd(a),
			BatchCmd(a),
			ExportCmd(a),
			SeedCmd(a),
			PrintConfigCmd(cfg),
		}
	}
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

func printUsage(w io.Writer, globals *flag.FlagSet) {
	fprintln(w, `tk-desk - service desk ticket console

Usage: tk-desk [global flags] <command> [args]

Global flags:`)

	var buf strings.Builder

	globals.SetOutput(&buf)
	globals.PrintDefaults()
	globals.SetOutput(io.Discard)

	_, _ = io.WriteString(w, buf.String())

	fprintln(w)
	fprintln(w, "Commands:")

	all := appCommands(nil)
	commandSet(func() []*Command { return append(all(), ShellCmd(nil, nil)) }).writeList(w)
}
