// Package build coordinates a full run: index, plan against the cache,
// execute work units on a worker pool, then regenerate aggregates.
package build

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/evansims/contentbuild/internal/cache"
	"github.com/evansims/contentbuild/internal/config"
	"github.com/evansims/contentbuild/internal/content"
	"github.com/evansims/contentbuild/internal/metrics"
	"github.com/evansims/contentbuild/internal/render"
)

// State is the orchestrator's current phase. Transitions are strictly
// forward: Idle -> Indexing -> Planning -> Executing -> Aggregating ->
// Done, with Failed reachable from any phase on a setup error.
type State string

const (
	StateIdle        State = "idle"
	StateIndexing    State = "indexing"
	StatePlanning    State = "planning"
	StateExecuting   State = "executing"
	StateAggregating State = "aggregating"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// Options configure one run.
type Options struct {
	Topic         string
	IncludeDrafts bool
	Force         bool
	SkipHTML      bool
	SkipJSON      bool
	Strict        bool
	Workers       int
}

// Orchestrator drives builds for one configuration. Safe for sequential
// reuse; watch mode runs it once per change burst.
type Orchestrator struct {
	cfg      *config.Config
	logger   *slog.Logger
	recorder metrics.Recorder
	renderer *render.Renderer

	mu    sync.Mutex
	state State
}

// New creates an orchestrator with metrics disabled.
func New(cfg *config.Config) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		logger:   slog.Default(),
		recorder: metrics.NoopRecorder{},
		renderer: render.New(),
		state:    StateIdle,
	}
}

// WithRecorder injects a metrics recorder.
func (o *Orchestrator) WithRecorder(r metrics.Recorder) *Orchestrator {
	if r != nil {
		o.recorder = r
	}
	return o
}

// State returns the current phase.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
	o.logger.Debug("Build state", "state", string(s))
}

// Run executes one full build. The returned error is non-nil only for
// setup failures (unreadable content root, unknown topic); per-item
// problems land in the report and the run keeps going.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*Report, error) {
	start := time.Now()
	runID := uuid.NewString()[:8]
	report := NewReport(runID, opts.Strict)
	logger := o.logger.With("run_id", runID)

	logger.Info("Build started", "topic", opts.Topic, "force", opts.Force)

	o.setState(StateIndexing)
	scan, err := content.NewIndexer(o.cfg.Content.Root).Scan(content.ScanOptions{
		TopicFilter:   opts.Topic,
		IncludeDrafts: opts.IncludeDrafts,
	})
	if err != nil {
		o.setState(StateFailed)
		o.recorder.IncBuildOutcome(string(OutcomeFailed))
		return report, err
	}
	report.ItemsIndexed = len(scan.Items)
	report.DraftsSkipped = scan.DraftsSkipped
	for _, w := range scan.Warnings {
		report.AddWarning(w)
	}

	store, warn := cache.Open(o.cfg.CacheManifestPath())
	if warn != nil {
		logger.Warn("Cache unavailable, rebuilding everything", "error", warn.Error())
		report.AddWarning(warn)
	}
	if dropped := store.InvalidateMissingSources(); dropped > 0 {
		logger.Debug("Dropped cache entries for deleted sources", "count", dropped)
	}

	o.setState(StatePlanning)
	plan := BuildPlan(o.cfg, store, scan.Items, PlanOptions{
		Force:    opts.Force,
		SkipHTML: opts.SkipHTML,
		SkipJSON: opts.SkipJSON,
	}, report)
	report.CacheHits = len(plan.Replays)
	report.CacheMisses = len(plan.Units)
	for range plan.Replays {
		o.recorder.IncCacheLookup(true)
	}
	for range plan.Units {
		o.recorder.IncCacheLookup(false)
	}
	o.recorder.SetQueuedUnits(len(plan.Units))
	logger.Info("Plan ready", "fresh", len(plan.Units), "cached", len(plan.Replays))

	o.setState(StateExecuting)
	exec := newExecutor(o, opts, store, report, scan.Items)
	exec.run(ctx, plan)

	if ctx.Err() != nil {
		report.MarkCanceled()
	}

	if report.Outcome() != OutcomeCanceled {
		o.setState(StateAggregating)
		exec.aggregateAll(scan.Items)
	}

	if err := store.Flush(); err != nil {
		logger.Warn("Cache flush failed", "error", err)
	}

	report.Duration = time.Since(start)
	outcome := report.Outcome()
	o.recorder.ObserveBuildDuration(report.Duration)
	o.recorder.IncBuildOutcome(string(outcome))

	if outcome == OutcomeFailed {
		o.setState(StateFailed)
	} else {
		o.setState(StateDone)
	}
	logger.Info("Build finished", "outcome", string(outcome), "duration", report.Duration.Round(time.Millisecond).String())
	return report, nil
}
