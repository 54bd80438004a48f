package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/evansims/contentbuild/internal/build"
	"github.com/evansims/contentbuild/internal/config"
	"github.com/evansims/contentbuild/internal/watch"
)

// Exit codes: 0 clean (warnings allowed unless --strict), 1 build
// failures, 2 setup problems (unreadable config, unknown topic).
const (
	exitOK    = 0
	exitBuild = 1
	exitSetup = 2
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"contentbuild.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Build struct {
		Topic         string `short:"t" help:"Build only this topic"`
		IncludeDrafts bool   `help:"Build items flagged as drafts (never syndicated)"`
		Force         bool   `short:"f" help:"Ignore the cache and rebuild everything"`
		Output        string `short:"o" help:"Override the configured output directory"`
		SkipHTML      bool   `help:"Skip per-item HTML pages"`
		SkipJSON      bool   `help:"Skip per-item JSON records"`
		Strict        bool   `help:"Treat warnings as failures"`
		Workers       int    `short:"w" help:"Worker count (default: CPU count)"`
	} `cmd:"" help:"Build the content tree into records, derivatives and aggregates"`

	Watch struct {
		Topic         string        `short:"t" help:"Watch and build only this topic"`
		IncludeDrafts bool          `help:"Build items flagged as drafts"`
		Every         time.Duration `help:"Also rebuild on this interval (e.g. 10m)"`
		Metrics       string        `help:"Serve Prometheus metrics on this address (e.g. :9090)"`
	} `cmd:"" help:"Rebuild continuously on content changes"`

	Init struct {
		Force bool `help:"Overwrite an existing configuration file"`
	} `cmd:"" help:"Write a starter configuration file"`
}

func main() {
	ctx := kong.Parse(&CLI)

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	// Environment overrides (CONTENTBUILD_*) may come from a local .env.
	_ = godotenv.Load()

	switch ctx.Command() {
	case "build":
		os.Exit(runBuild())
	case "watch":
		os.Exit(runWatch())
	case "init":
		os.Exit(runInit())
	default:
		slog.Error("Unknown command", "command", ctx.Command())
		os.Exit(exitSetup)
	}
}

func loadConfig() (*config.Config, int) {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		slog.Error("Failed to load configuration", "path", CLI.Config, "error", err)
		return nil, exitSetup
	}
	return cfg, exitOK
}

func runBuild() int {
	cfg, code := loadConfig()
	if code != exitOK {
		return code
	}
	if CLI.Build.Output != "" {
		cfg.Output.Dir = CLI.Build.Output
	}
	if CLI.Build.Workers > 0 {
		cfg.Build.Workers = CLI.Build.Workers
	}

	report, err := build.New(cfg).Run(signalContext(), build.Options{
		Topic:         CLI.Build.Topic,
		IncludeDrafts: CLI.Build.IncludeDrafts || cfg.Build.IncludeDrafts,
		Force:         CLI.Build.Force,
		SkipHTML:      CLI.Build.SkipHTML,
		SkipJSON:      CLI.Build.SkipJSON,
		Strict:        CLI.Build.Strict,
		Workers:       cfg.Build.Workers,
	})
	if err != nil {
		slog.Error("Build setup failed", "error", err)
		return exitSetup
	}

	fmt.Fprintln(os.Stderr, report.Summary())

	switch report.Outcome() {
	case build.OutcomeFailed, build.OutcomeCanceled:
		return exitBuild
	default:
		return exitOK
	}
}

func runWatch() int {
	cfg, code := loadConfig()
	if code != exitOK {
		return code
	}

	w, err := watch.New(cfg, build.New(cfg), watch.Options{
		Build: build.Options{
			Topic:         CLI.Watch.Topic,
			IncludeDrafts: CLI.Watch.IncludeDrafts || cfg.Build.IncludeDrafts,
			Workers:       cfg.Build.Workers,
		},
		Every:       CLI.Watch.Every,
		MetricsAddr: CLI.Watch.Metrics,
	})
	if err != nil {
		slog.Error("Failed to start watcher", "error", err)
		return exitSetup
	}

	if err := w.Run(signalContext()); err != nil {
		slog.Error("Watch failed", "error", err)
		return exitBuild
	}
	return exitOK
}

func runInit() int {
	if err := config.WriteStarter(CLI.Config, CLI.Init.Force); err != nil {
		slog.Error("Init failed", "error", err)
		return exitSetup
	}
	fmt.Fprintf(os.Stderr, "wrote %s\n", CLI.Config)
	return exitOK
}

// signalContext cancels on SIGINT/SIGTERM so in-flight work finishes
// without recording partial cache entries.
func signalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		slog.Info("Shutting down")
		cancel()
	}()
	return ctx
}
