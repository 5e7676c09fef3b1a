// Package cmd wires up the CLI flags and dispatches to the rdb modes.
package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	flag "github.com/spf13/pflag"

	"rdb/config"
	"rdb/internal/core"
	"rdb/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X rdb/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// flags holds raw flag values; only the ones the user set are applied
// on top of defaults, the config file and the environment.
type flags struct {
	listen, zeroIO, redirect bool
	host, configFile         string
	port, window, skew       int
	every, iterations        int
	interval                 time.Duration
	timeoutSec               int
	verbose                  int
	showVersion, showHelp    bool
	dryRun                   bool
}

// Execute parses args and runs the appropriate rdb mode.
func Execute(ctx context.Context, args []string) error {
	var f flags
	fs := flag.NewFlagSet("rdb", flag.ContinueOnError)

	// ── mode ─────────────────────────────────────────────────────
	fs.BoolVarP(&f.listen, "listen", "l", false, "Run the demo host program and break into sessions")
	fs.BoolVarP(&f.zeroIO, "zero-io", "z", false, "Probe the port window for waiting sessions")

	// ── session ──────────────────────────────────────────────────
	fs.StringVarP(&f.host, "host", "H", config.DefaultHost, "Bind/attach host")
	fs.IntVarP(&f.port, "port", "p", config.DefaultPort, "First port of the window")
	fs.IntVar(&f.window, "window", config.DefaultWindow, "Number of ports to try")
	fs.IntVar(&f.skew, "skew", config.DefaultSkew, "Offset added to every candidate port")
	fs.BoolVar(&f.redirect, "redirect-stdio", false, "Also swap os.Stdin/os.Stdout with the peer")
	fs.StringVar(&f.configFile, "config", "", "YAML config file")

	// ── demo host ────────────────────────────────────────────────
	fs.IntVar(&f.every, "every", config.DefaultEvery, "Break every N iterations (with -l)")
	fs.IntVar(&f.iterations, "iterations", 0, "Stop after N iterations, 0 = forever (with -l)")
	fs.DurationVar(&f.interval, "interval", config.DefaultInterval, "Pause between iterations (with -l)")

	// ── attach / probe ───────────────────────────────────────────
	fs.IntVarP(&f.timeoutSec, "wait", "w", 0, "Dial timeout in seconds")

	// ── output ───────────────────────────────────────────────────
	fs.CountVarP(&f.verbose, "verbose", "v", "Increase verbosity (repeatable)")

	fs.BoolVar(&f.showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&f.showHelp, "help", "h", false, "Show this help")
	fs.BoolVar(&f.dryRun, "dry-run", false, "Validate the configuration and exit")

	fs.Usage = func() { printUsage(fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return err
	}

	if f.showHelp || len(args) == 0 {
		printUsage(fs)
		return nil
	}
	if f.showVersion {
		fmt.Printf("rdb %s\n", version)
		return nil
	}

	// ── layered configuration ────────────────────────────────────
	cfg, err := load(fs, &f)
	if err != nil {
		return err
	}
	if err := parsePositional(cfg, fs.Args()); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if f.dryRun {
		fmt.Fprintf(os.Stderr, "rdb: configuration ok: %s %s ports %d-%d\n",
			modeName(cfg), cfg.Host, cfg.FirstPort(), cfg.LastPort())
		return nil
	}

	// ── build components ─────────────────────────────────────────
	logger := util.NewLogger(cfg.Verbose)

	mode, err := core.Build(cfg, logger)
	if err != nil {
		return err
	}
	return mode.Run(ctx)
}

// ── helpers ──────────────────────────────────────────────────────────

// load applies defaults, the config file, the environment, then every
// flag the user actually set.
func load(fs *flag.FlagSet, f *flags) (*config.Config, error) {
	cfg := config.Default()

	path := os.Getenv("RDB_CONFIG")
	if fs.Changed("config") {
		path = f.configFile
	}
	if path != "" {
		if err := config.LoadFile(path, cfg); err != nil {
			return nil, err
		}
	}
	config.LoadFromEnv(cfg)
	if path != "" {
		cfg.ConfigFile = path
	}

	if fs.Changed("listen") {
		cfg.Listen = f.listen
	}
	if fs.Changed("zero-io") {
		cfg.ZeroIO = f.zeroIO
	}
	if fs.Changed("host") {
		cfg.Host = f.host
	}
	if fs.Changed("port") {
		cfg.Port = f.port
	}
	if fs.Changed("window") {
		cfg.Window = f.window
	}
	if fs.Changed("skew") {
		cfg.Skew = f.skew
	}
	if fs.Changed("redirect-stdio") {
		cfg.RedirectStdio = f.redirect
	}
	if fs.Changed("every") {
		cfg.Every = f.every
	}
	if fs.Changed("iterations") {
		cfg.Iterations = f.iterations
	}
	if fs.Changed("interval") {
		cfg.Interval = f.interval
	}
	if fs.Changed("wait") {
		cfg.Timeout = time.Duration(f.timeoutSec) * time.Second
	}
	if fs.Changed("verbose") {
		cfg.Verbose = f.verbose
	}
	return cfg, nil
}

// parsePositional accepts "[host] [port]" in every mode.
func parsePositional(cfg *config.Config, remaining []string) error {
	switch len(remaining) {
	case 0:
	case 1:
		cfg.Host = remaining[0]
	case 2:
		cfg.Host = remaining[0]
		port, err := strconv.Atoi(remaining[1])
		if err != nil {
			return fmt.Errorf("invalid port %q", remaining[1])
		}
		cfg.Port = port
	default:
		return fmt.Errorf("too many arguments (use --help for usage)")
	}
	return nil
}

func modeName(cfg *config.Config) string {
	switch {
	case cfg.Listen:
		return "listen"
	case cfg.ZeroIO:
		return "probe"
	default:
		return "attach"
	}
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, `rdb - Remote Debugger v%s

Pause a Go program at a break point and drive it from any telnet-class
client over TCP.

Usage:
  rdb [options] [host] [port]                 Attach to a waiting session
  rdb -l [--every N] [--iterations N]         Run the demo host program
  rdb -z [options] [host] [port]              Probe the port window

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
Environment:
  RDB_HOST, RDB_PORT, RDB_PORT_WINDOW, RDB_PORT_SKEW, RDB_REDIRECT_STDIO,
  RDB_VERBOSE, RDB_CONFIG

Examples:
  rdb -l --every 3                            Break every third iteration
  rdb 127.0.0.1 8899                          Attach (or: telnet 127.0.0.1 8899)
  rdb -vz --window 10                         Which of 8899-8908 is waiting?
`)
}
