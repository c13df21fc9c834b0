// Package main provides the entry point for alphatx.
// alphatx translates Alpha guest code into IR and runs it on the
// reference executor.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/tebeka/atexit"

	"github.com/sarchlab/alphatx/cache"
	"github.com/sarchlab/alphatx/config"
	"github.com/sarchlab/alphatx/translate"
)

const usage = `Usage: alphatx [options] <command> [args]

Commands:
  models               List the supported CPU models
  translate <prog.elf> Translate the block at the entry point (or -pc)
  run <prog.elf>       Run a program in user-only mode
`

// options are the command-line settings shared by all commands.
type options struct {
	configPath string
	model      string
	pc         uint64
	maxInsns   uint64
	withCache  bool
	verbose    bool
	trace      bool
	logJSON    bool
	logFile    string
}

func main() {
	atexit.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command line and returns the process exit status.
func run(args []string, stdout, stderr io.Writer) int {
	opts, fs := newFlagSet(stderr)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if fs.NArg() < 1 {
		fmt.Fprint(stderr, usage)
		fmt.Fprintf(stderr, "\nOptions:\n")
		fs.PrintDefaults()
		return 2
	}

	if err := setupLogging(opts, stderr); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	cmd, cmdArgs := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "models":
		return listModels(stdout)
	case "translate":
		return translateBlock(cfg, opts, cmdArgs, stdout, stderr)
	case "run":
		return runProgram(cfg, opts, cmdArgs, stdout, stderr)
	}

	fmt.Fprintf(stderr, "Unknown command %q\n\n%s", cmd, usage)
	return 2
}

func newFlagSet(stderr io.Writer) (*options, *flag.FlagSet) {
	opts := &options{}
	fs := flag.NewFlagSet("alphatx", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&opts.configPath, "config", "", "Path to configuration JSON file")
	fs.StringVar(&opts.model, "model", "", "CPU model (overrides the config)")
	fs.Uint64Var(&opts.pc, "pc", 0, "Guest address to translate (default: entry point)")
	fs.Uint64Var(&opts.maxInsns, "max-instructions", 0, "Instruction budget of run (overrides the config)")
	fs.BoolVar(&opts.withCache, "cache", false, "Route guest loads and stores through the default L1 data cache")
	fs.BoolVar(&opts.verbose, "v", false, "Verbose output")
	fs.BoolVar(&opts.trace, "trace", false, "Log every translated instruction")
	fs.BoolVar(&opts.logJSON, "log-json", false, "Write logs as JSON")
	fs.StringVar(&opts.logFile, "log-file", "", "Write logs to a file instead of stderr")

	return opts, fs
}

// setupLogging installs the default slog handler. A log file is closed
// when the process exits through atexit.
func setupLogging(opts *options, stderr io.Writer) error {
	level := slog.LevelWarn
	switch {
	case opts.trace:
		level = translate.LevelTrace
	case opts.verbose:
		level = slog.LevelDebug
	}

	w := stderr
	if opts.logFile != "" {
		f, err := os.Create(opts.logFile)
		if err != nil {
			return fmt.Errorf("failed to create log file: %w", err)
		}
		atexit.Register(func() { _ = f.Close() })
		w = f
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if opts.logJSON {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}
	slog.SetDefault(slog.New(handler))

	return nil
}

// loadConfig reads the config file, if any, and applies the flag
// overrides.
func loadConfig(opts *options) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if opts.configPath != "" {
		var err error
		cfg, err = config.LoadConfig(opts.configPath)
		if err != nil {
			return nil, err
		}
	}

	if opts.model != "" {
		cfg.Model = opts.model
	}
	if opts.maxInsns != 0 {
		cfg.MaxInstructions = opts.maxInsns
	}
	if opts.withCache && cfg.Cache == nil {
		l1 := cache.DefaultL1DConfig()
		cfg.Cache = &l1
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}
