package build

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/evansims/contentbuild/internal/errors"
)

// Outcome is the final classification of a build run.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeWarnings Outcome = "warnings"
	OutcomeFailed   Outcome = "failed"
	OutcomeCanceled Outcome = "canceled"
)

// Report accumulates per-run counters and problems. Workers append to it
// concurrently during execution.
type Report struct {
	RunID    string
	Duration time.Duration

	mu sync.Mutex

	ItemsIndexed  int
	DraftsSkipped int

	DocumentsRendered int
	DocumentsCached   int
	VariantsEncoded   int
	VariantsCached    int
	VariantsCapped    int

	CacheHits   int
	CacheMisses int

	warnings []*errors.BuildError
	failures []*errors.BuildError
	canceled bool
	strict   bool
}

// NewReport creates a report for one run. strict promotes a warnings-only
// run to a failed outcome.
func NewReport(runID string, strict bool) *Report {
	return &Report{RunID: runID, strict: strict}
}

// AddWarning records a non-fatal problem.
func (r *Report) AddWarning(e *errors.BuildError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, e)
}

// AddFailure records a per-item failure. The run continues but its outcome
// becomes failed.
func (r *Report) AddFailure(e *errors.BuildError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, e)
}

// MarkCanceled flags the run as interrupted.
func (r *Report) MarkCanceled() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.canceled = true
}

// Warnings returns the recorded warnings.
func (r *Report) Warnings() []*errors.BuildError {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*errors.BuildError(nil), r.warnings...)
}

// Failures returns the recorded failures.
func (r *Report) Failures() []*errors.BuildError {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*errors.BuildError(nil), r.failures...)
}

// Outcome classifies the run.
func (r *Report) Outcome() Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case r.canceled:
		return OutcomeCanceled
	case len(r.failures) > 0:
		return OutcomeFailed
	case len(r.warnings) > 0 && r.strict:
		return OutcomeFailed
	case len(r.warnings) > 0:
		return OutcomeWarnings
	default:
		return OutcomeSuccess
	}
}

// Summary renders a human-readable run summary for the CLI.
func (r *Report) Summary() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "run %s: %d items", r.RunID, r.ItemsIndexed)
	if r.DraftsSkipped > 0 {
		fmt.Fprintf(&b, " (%d drafts skipped)", r.DraftsSkipped)
	}
	fmt.Fprintf(&b, "\n  documents: %d rendered, %d cached", r.DocumentsRendered, r.DocumentsCached)
	fmt.Fprintf(&b, "\n  images:    %d encoded, %d cached", r.VariantsEncoded, r.VariantsCached)
	if r.VariantsCapped > 0 {
		fmt.Fprintf(&b, " (%d capped at source width)", r.VariantsCapped)
	}
	fmt.Fprintf(&b, "\n  cache:     %d hits, %d misses", r.CacheHits, r.CacheMisses)
	fmt.Fprintf(&b, "\n  elapsed:   %s", r.Duration.Round(time.Millisecond))

	for _, w := range r.warnings {
		fmt.Fprintf(&b, "\n  warning: %s", w.Error())
	}
	for _, f := range r.failures {
		fmt.Fprintf(&b, "\n  failed: %s", f.Error())
	}
	return b.String()
}
