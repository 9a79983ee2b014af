// Command surface processes sampled height fields stored in .surf files and
// in a SQLite field store.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"

	"github.com/banshee-data/surface.report/internal/config"
	"github.com/banshee-data/surface.report/internal/surface/field"
	"github.com/banshee-data/surface.report/internal/surface/server"
	"github.com/banshee-data/surface.report/internal/surface/store"
	"github.com/banshee-data/surface.report/internal/version"
)

// env is what every subcommand gets to work with.
type env struct {
	cfg  *config.TuningConfig
	opts field.Options
	out  io.Writer
}

type command struct {
	usage string
	run   func(e *env, args []string) error
}

var commands = map[string]command{
	"gen":       {"generate a synthetic field", runGen},
	"info":      {"print geometry and statistics of a field", runInfo},
	"level":     {"remove planes, polynomials or row offsets", runLevel},
	"convolve":  {"convolve a field with a smoothing or edge kernel", runConvolve},
	"correlate": {"locate a region of a field by correlation", runCorrelate},
	"inpaint":   {"replace invalid pixels by a Laplace interpolation", runInpaint},
	"transform": {"flip, transpose or rotate a field", runTransform},
	"render":    {"draw a field or a distribution as PNG or HTML", runRender},
	"store":     {"put, get, list and delete fields in the database", runStore},
	"migrate":   {"manage the database schema", runMigrate},
	"serve":     {"serve the database over HTTP", runServe},
	"version":   {"print the build version", runVersion},
}

// errUsage reports bad command line usage; the usage text has already been
// printed.
var errUsage = errors.New("invalid usage")

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, errUsage) || errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Fatalf("surface: %v", err)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("surface", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "tuning config JSON file (defaults apply when empty)")
	verbose := fs.Bool("v", false, "log operational and diagnostic messages to stderr")
	trace := fs.Bool("trace", false, "also log per-call trace messages")
	fs.Usage = func() { printUsage(stderr, fs) }
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errUsage
	}

	cfg := config.DefaultTuningConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadTuningConfig(*configPath); err != nil {
			return err
		}
	}
	setupLogging(stderr, *verbose, *trace)

	name := fs.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n", name)
		fs.Usage()
		return errUsage
	}
	e := &env{cfg: cfg, opts: field.OptionsFromTuning(cfg), out: stdout}
	return cmd.run(e, fs.Args()[1:])
}

func setupLogging(w io.Writer, verbose, trace bool) {
	var ops, diag, tr io.Writer
	if verbose || trace {
		ops, diag = w, w
	}
	if trace {
		tr = w
	}
	field.SetLogWriters(ops, diag, tr)
	store.SetLogWriters(ops, diag, tr)
	server.SetLogWriters(ops, diag, tr)
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(w, "Usage: surface [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-10s %s\n", name, commands[name].usage)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fs.PrintDefaults()
}

func runVersion(e *env, args []string) error {
	fmt.Fprintln(e.out, version.String())
	return nil
}

// newFlagSet creates the flag set of a subcommand. Errors are returned
// rather than exiting.
func newFlagSet(name, usage string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: surface %s %s\n", name, usage)
		fs.PrintDefaults()
	}
	return fs
}

// parseArgs parses args and checks the number of positional arguments.
func parseArgs(fs *flag.FlagSet, args []string, npos int) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != npos {
		fs.Usage()
		return errUsage
	}
	return nil
}
