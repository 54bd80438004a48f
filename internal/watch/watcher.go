// Package watch rebuilds continuously: on file system changes under the
// content root, and optionally on a fixed schedule.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-co-op/gocron/v2"
	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/evansims/contentbuild/internal/build"
	"github.com/evansims/contentbuild/internal/config"
	"github.com/evansims/contentbuild/internal/metrics"
)

// Options configure a watch session.
type Options struct {
	// Build is applied to every triggered run.
	Build build.Options
	// Every schedules an unconditional rebuild on a fixed interval when
	// positive. The cache makes these cheap no-ops while nothing changed.
	Every time.Duration
	// MetricsAddr serves Prometheus metrics on this address when set,
	// e.g. ":9090".
	MetricsAddr string
}

// Watcher owns the event loop of one watch session.
type Watcher struct {
	cfg    *config.Config
	orch   *build.Orchestrator
	logger *slog.Logger
	opts   Options

	fsw       *fsnotify.Watcher
	scheduler gocron.Scheduler

	mu          sync.Mutex
	rebuildChan chan struct{}
	debounce    time.Duration
}

// New creates a watcher over the configured content root.
func New(cfg *config.Config, orch *build.Orchestrator, opts Options) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	return &Watcher{
		cfg:         cfg,
		orch:        orch,
		logger:      slog.Default(),
		opts:        opts,
		fsw:         fsw,
		rebuildChan: make(chan struct{}, 1),
		debounce:    500 * time.Millisecond,
	}, nil
}

// Run builds once, then blocks rebuilding on changes until ctx is
// canceled. It returns nil on a clean shutdown.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	if w.opts.MetricsAddr != "" {
		reg := prom.NewRegistry()
		w.orch.WithRecorder(metrics.NewPrometheusRecorder(reg))
		go w.serveMetrics(ctx, reg)
	}

	if err := w.watchTree(w.cfg.Content.Root); err != nil {
		return err
	}

	if w.opts.Every > 0 {
		scheduler, err := gocron.NewScheduler()
		if err != nil {
			return fmt.Errorf("create scheduler: %w", err)
		}
		_, err = scheduler.NewJob(
			gocron.DurationJob(w.opts.Every),
			gocron.NewTask(w.trigger),
			gocron.WithName("periodic-rebuild"),
		)
		if err != nil {
			return fmt.Errorf("schedule periodic rebuild: %w", err)
		}
		scheduler.Start()
		w.scheduler = scheduler
		defer func() {
			if err := w.scheduler.Shutdown(); err != nil {
				w.logger.Error("Scheduler shutdown failed", "error", err)
			}
		}()
		w.logger.Info("Periodic rebuild scheduled", "every", w.opts.Every.String())
	}

	// Initial build so the output tree exists before the first change.
	w.runBuild(ctx)

	go w.eventLoop(ctx)

	var debounceTimer *time.Timer
	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			w.logger.Info("Watch stopped")
			return nil
		case <-w.rebuildChan:
			// Collapse change bursts into one rebuild.
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounce, func() {
				w.runBuild(ctx)
			})
		}
	}
}

// eventLoop consumes file system events and converts relevant ones into
// rebuild triggers. New directories are added to the watch set as they
// appear.
func (w *Watcher) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ignoredPath(event.Name) {
				continue
			}
			if event.Op&fsnotify.Create == fsnotify.Create {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.watchTree(event.Name); err != nil {
						w.logger.Warn("Cannot watch new directory", "path", event.Name, "error", err)
					}
				}
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				w.logger.Debug("Change detected", "path", event.Name, "op", event.Op.String())
				w.trigger()
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("Watch error", "error", err)
		}
	}
}

// watchTree registers dir and every directory below it.
func (w *Watcher) watchTree(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() || ignoredPath(path) {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) trigger() {
	select {
	case w.rebuildChan <- struct{}{}:
	default:
		// Rebuild already pending.
	}
}

func (w *Watcher) runBuild(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if ctx.Err() != nil {
		return
	}
	report, err := w.orch.Run(ctx, w.opts.Build)
	if err != nil {
		w.logger.Error("Build failed", "error", err)
		return
	}
	fmt.Fprintln(os.Stderr, report.Summary())
}

func (w *Watcher) serveMetrics(ctx context.Context, reg *prom.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HTTPHandler(reg))
	srv := &http.Server{
		Addr:              w.opts.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	w.logger.Info("Metrics endpoint up", "addr", w.opts.MetricsAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		w.logger.Error("Metrics server failed", "error", err)
	}
}

// ignoredPath filters editor noise and hidden files out of the trigger
// stream.
func ignoredPath(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") && base != "." {
		return true
	}
	if strings.HasSuffix(base, "~") || strings.HasSuffix(base, ".swp") || strings.HasSuffix(base, ".tmp") {
		return true
	}
	return false
}
