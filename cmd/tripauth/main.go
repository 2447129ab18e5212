// Command tripauth signs in to the travel planner backend from a terminal and
// calls it with the resulting session.
//
// Usage:
//
//	tripauth [-v] [-events] [-metrics] <command> [flags]
//
// Commands:
//
//	login    request a code by email and exchange it for a session
//	status   show the persisted session
//	logout   forget the persisted session
//	plan     generate an itinerary with the current session
//	health   check that the backend is reachable
//	security report how the configuration protects the session
//
// Configuration comes from TRIPAUTH_* environment variables and an optional .env file.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/travelplanner/tripauth"
	promexport "github.com/travelplanner/tripauth/metrics/export/prometheus"
	"go.uber.org/zap"
)

type app struct {
	engine *tripauth.Engine
	logger *zap.Logger
	in     io.Reader
	out    io.Writer
}

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, a *app, args []string) error
}

var commands = []command{
	{"login", "request a code by email and exchange it for a session", runLogin},
	{"status", "show the persisted session", runStatus},
	{"logout", "forget the persisted session", runLogout},
	{"plan", "generate an itinerary with the current session", runPlan},
	{"health", "check that the backend is reachable", runHealth},
	{"security", "report how the configuration protects the session", runSecurity},
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("tripauth", flag.ContinueOnError)
	fs.SetOutput(stderr)
	verbose := fs.Bool("v", false, "debug logging")
	showEvents := fs.Bool("events", false, "print session events as JSON to stderr")
	showMetrics := fs.Bool("metrics", false, "print engine metrics to stderr on exit")
	fs.Usage = func() { usage(fs, stderr) }
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		usage(fs, stderr)
		return 2
	}

	cmd, ok := lookup(fs.Arg(0))
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", fs.Arg(0))
		usage(fs, stderr)
		return 2
	}

	cfg, err := tripauth.LoadConfig()
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return 1
	}
	level := cfg.Log.Level
	if *verbose {
		level = "debug"
	} else if level == "info" {
		level = "warn"
	}
	logger, err := tripauth.NewLogger(level, true)
	if err != nil {
		fmt.Fprintf(stderr, "logger: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	builder := tripauth.New().WithConfig(cfg).WithLogger(logger)
	if *showEvents {
		builder = builder.WithSessionListener(tripauth.NewJSONWriterListener(stderr))
	}
	engine, err := builder.Build()
	if err != nil {
		fmt.Fprintf(stderr, "init: %v\n", err)
		return 1
	}
	defer func() {
		if err := engine.Close(); err != nil {
			logger.Warn("close engine", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{engine: engine, logger: logger, in: stdin, out: stdout}
	err = cmd.run(ctx, a, fs.Args()[1:])
	if *showMetrics {
		if werr := writeMetrics(stderr, engine); werr != nil {
			logger.Warn("write metrics", zap.Error(werr))
		}
	}
	if err != nil {
		fmt.Fprintf(stderr, "%s: %s\n", cmd.name, tripauth.UserMessage(err))
		logger.Debug("command failed", zap.String("command", cmd.name), zap.Error(err))
		return 1
	}
	return 0
}

func writeMetrics(w io.Writer, engine *tripauth.Engine) error {
	registry := prometheus.NewRegistry()
	if err := registry.Register(promexport.NewExporter(engine)); err != nil {
		return err
	}
	families, err := registry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}

func lookup(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func usage(fs *flag.FlagSet, w io.Writer) {
	fmt.Fprintln(w, "usage: tripauth [flags] <command> [command flags]")
	fmt.Fprintln(w, "\ncommands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-8s %s\n", c.name, c.summary)
	}
	fmt.Fprintln(w, "\nflags:")
	fs.PrintDefaults()
}
