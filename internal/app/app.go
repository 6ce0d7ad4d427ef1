// Package app implements the hexpeek command line.
package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"hexpeek/internal/config"
	"hexpeek/internal/session"
	"hexpeek/internal/task"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/sirupsen/logrus"
)

// ErrUsage marks invalid command line arguments.
var ErrUsage = errors.New("usage")

const usage = `Usage: hexpeek [-config file] [-log-level level] [-no-color] <command> [flags] args

Commands:
  dump     render a file as hex rows, or convert it to hex text or raw bytes
  search   find a text, hex, bit or decimal pattern
  diff     align two files and report the differing segments
  inspect  decode the bytes at an offset as numbers
  hash     print sha256, sha1 or xxh64 digests
`

// App is the hexpeek command. The zero value writes to the process streams.
type App struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Interactive enables the progress view for long operations.
	Interactive bool

	// Config overrides the configuration file when set.
	Config *config.Config

	cfg     *config.Config
	log     *logrus.Logger
	styles  *config.Styles
	session *session.Session
}

// Run parses args (without the program name) and executes a command.
func (a *App) Run(ctx context.Context, args []string) error {
	if a.Stdin == nil {
		a.Stdin = os.Stdin
	}
	if a.Stdout == nil {
		a.Stdout = os.Stdout
	}
	if a.Stderr == nil {
		a.Stderr = os.Stderr
	}

	fs := flag.NewFlagSet("hexpeek", flag.ContinueOnError)
	fs.SetOutput(a.Stderr)
	fs.Usage = func() { fmt.Fprint(a.Stderr, usage) }
	configPath := fs.String("config", "", "config file (default "+config.ConfigPath()+")")
	logLevel := fs.String("log-level", "", "log level: debug, info, warn, error")
	noColor := fs.Bool("no-color", false, "disable colored output")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return fmt.Errorf("%w: no command given", ErrUsage)
	}

	if err := a.setup(*configPath, *logLevel, *noColor); err != nil {
		return err
	}
	defer a.session.Close()

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	a.log.WithFields(logrus.Fields{"command": cmd, "args": rest}).Debug("running command")

	var err error
	switch cmd {
	case "dump":
		err = a.runDump(ctx, rest)
	case "search":
		err = a.runSearch(ctx, rest)
	case "diff":
		err = a.runDiff(ctx, rest)
	case "inspect":
		err = a.runInspect(ctx, rest)
	case "hash":
		err = a.runHash(ctx, rest)
	case "help":
		fs.Usage()
		return nil
	default:
		fs.Usage()
		return fmt.Errorf("%w: unknown command %q", ErrUsage, cmd)
	}
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	return err
}

func (a *App) setup(configPath, level string, noColor bool) error {
	cfg := a.Config
	if cfg == nil {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
	}
	a.cfg = cfg

	if level != "" {
		cfg.Logging.Level = level
	}
	log, err := newLogger(cfg.Logging, a.Stderr)
	if err != nil {
		return err
	}
	a.log = log

	var opts []termenv.OutputOption
	if noColor {
		opts = append(opts, termenv.WithProfile(termenv.Ascii))
	}
	a.styles = config.NewStyles(lipgloss.NewRenderer(a.Stdout, opts...), &cfg.Theme)

	a.session = session.New(session.Options{
		CacheBudget:     cfg.Engine.CacheBudget,
		PageSize:        cfg.Engine.PageSize,
		MemoryThreshold: cfg.Engine.MemoryThreshold,
		Logger:          log,
	})
	return nil
}

func newLogger(cfg config.Logging, w io.Writer) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(w)

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUsage, err)
	}
	log.SetLevel(level)

	switch cfg.Format {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	}
	return log, nil
}

// newFlagSet returns a subcommand flag set that reports errors instead of
// exiting.
func (a *App) newFlagSet(name, args string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.Stderr)
	fs.Usage = func() {
		fmt.Fprintf(a.Stderr, "Usage: hexpeek %s [flags] %s\n", name, args)
		fs.PrintDefaults()
	}
	return fs
}

func (a *App) parse(fs *flag.FlagSet, args []string, nargs int) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if nargs >= 0 && fs.NArg() != nargs {
		fs.Usage()
		return fmt.Errorf("%w: %s takes %d arguments, got %d", ErrUsage, fs.Name(), nargs, fs.NArg())
	}
	return nil
}

// runTask runs job behind the progress view when the app is interactive.
func runTask[T any](ctx context.Context, a *App, title string, job func(context.Context, task.Report) (T, error)) (T, error) {
	return task.Run(ctx, title, job, task.Options{
		Interactive: a.Interactive,
		Input:       a.Stdin,
		Output:      a.Stderr,
	})
}

// output opens the destination of a command: path, or stdout when empty.
func (a *App) output(path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return a.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

// parseNumber accepts decimal, 0x hex, 0o octal and 0b binary.
func parseNumber(s string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 0, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid number %q", ErrUsage, s)
	}
	return n, nil
}

// numberFlag is a flag.Value for int64 flags given in any base.
type numberFlag struct {
	v *int64
}

func (n numberFlag) String() string {
	if n.v == nil {
		return "0"
	}
	return strconv.FormatInt(*n.v, 10)
}

func (n numberFlag) Set(s string) error {
	v, err := parseNumber(s)
	if err != nil {
		return err
	}
	*n.v = v
	return nil
}

func numberVar(fs *flag.FlagSet, name string, value int64, usage string) *int64 {
	v := value
	fs.Var(numberFlag{&v}, name, usage)
	return &v
}
