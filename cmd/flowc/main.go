package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/ritzau/flowc/pkg/config"
	"github.com/ritzau/flowc/pkg/harness"
	"github.com/ritzau/flowc/pkg/logging"
	"github.com/ritzau/flowc/pkg/pipeline"
	"github.com/ritzau/flowc/pkg/templates"
	"github.com/ritzau/flowc/pkg/web"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("flowc", pflag.ContinueOnError)
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: flowc [flags] <flow.json|flow.yaml>\n\n")
		flags.PrintDefaults()
	}

	flags.String("config", "", "Config file (default ./"+config.DefaultFile+" when present)")
	flags.String("flow", "", "Flow file, or directory of flows, to compile (or pass it as the first argument)")
	flags.StringP("out", "o", "", "Write the script to this file instead of stdout")
	flags.Bool("run", false, "Execute the script after compiling")
	flags.String("python", "python3", "Python interpreter used by --run")
	flags.Bool("install", false, "pip install imported packages before running")
	flags.String("figures", "", "Directory for figures produced by --run")
	flags.BoolP("watch", "w", false, "Recompile when the flow file changes")
	flags.Bool("web", false, "Start the web server")
	flags.String("host", "127.0.0.1", "Interface for the web server; it runs posted flows with --run, so keep it local")
	flags.Int("port", 8080, "Port for the web server (only used with --web)")
	flags.String("verbosity", "", "Log level: trace, debug, info, warn, error")
	flags.CountP("verbose", "v", "Increase log verbosity (-v debug, -vv trace)")
	flags.Bool("json-logs", false, "Log as JSON")
	return flags
}

func run(args []string) error {
	flags := newFlagSet()
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	configPath, _ := flags.GetString("config")
	cfg, err := config.Load(flags, configPath)
	if err != nil {
		return err
	}
	if flags.NArg() > 0 {
		cfg.Flow = flags.Arg(0)
	}
	if err := cfg.Validate(); err != nil {
		flags.Usage()
		return err
	}

	level, err := logging.ParseLevel(cfg.Verbosity, cfg.VerboseCnt)
	if err != nil {
		return err
	}
	if cfg.JSONLogs {
		logging.SetJSONOutput(level)
	} else {
		logging.SetLevel(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var runner *harness.Runner
	if cfg.Run {
		runner = harness.NewRunner(harness.NewExecutor(cfg.Python), harness.RunnerOptions{
			Install:    cfg.Install,
			FiguresDir: cfg.Figures,
		})
	}

	if cfg.WebMode {
		return serve(ctx, cfg, runner)
	}
	return compile(ctx, cfg, runner)
}

// compile handles the command line modes. The script goes to stdout unless
// it is written to a file or the flow is being run, in which case stdout
// carries the run output.
func compile(ctx context.Context, cfg *config.Config, runner *harness.Runner) error {
	var script, report io.Writer = os.Stdout, os.Stderr
	if cfg.Run {
		script, report = nil, os.Stdout
	}

	p := pipeline.NewRunner(pipeline.Config{
		Harness: runner,
		Out:     cfg.Out,
		Script:  script,
		Report:  report,
	})

	_, err := p.ProcessPath(ctx, cfg.Flow, pipeline.Options{Run: cfg.Run, Reason: "initial compile"})
	if !cfg.Watch {
		return err
	}
	if err != nil {
		logging.Error("initial compile failed", "error", err)
	}

	logging.Info("watching for changes, press Ctrl+C to stop", "flow", cfg.Flow)
	if err := p.Watch(ctx, []string{cfg.Flow}, pipeline.WatchOptions{Run: cfg.Run}); !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// serve runs the web server. A flow given on the command line is compiled
// up front, and recompiled on change with --watch, so subscribers always
// see its latest script.
func serve(ctx context.Context, cfg *config.Config, runner *harness.Runner) error {
	catalog, err := templates.Load()
	if err != nil {
		return err
	}

	opts := []web.Option{web.WithHost(cfg.Host)}
	if runner != nil {
		opts = append(opts, web.WithHarness(runner))
	}
	server := web.NewServer(catalog, opts...)

	if cfg.Flow != "" {
		p := pipeline.NewRunner(pipeline.Config{Publisher: server, Out: cfg.Out})
		if _, err := p.ProcessPath(ctx, cfg.Flow, pipeline.Options{Reason: "initial compile"}); err != nil {
			logging.Error("initial compile failed", "error", err)
		}
		if cfg.Watch {
			go func() {
				if err := p.Watch(ctx, []string{cfg.Flow}, pipeline.WatchOptions{}); err != nil && !errors.Is(err, context.Canceled) {
					logging.Error("watch stopped", "error", err)
				}
			}()
		}
	}

	return server.Start(ctx, cfg.Port)
}
