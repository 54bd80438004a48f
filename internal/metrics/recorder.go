// Package metrics provides observability hooks for builds.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so metrics collection is optional and carries no overhead
// unless a real implementation (Prometheus) is injected. Watch mode with
// --metrics is the only place that wires the Prometheus recorder in.
package metrics

import "time"

// ResultLabel enumerates per-item result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultCached   ResultLabel = "cached"
	ResultWarning  ResultLabel = "warning"
	ResultFailed   ResultLabel = "failed"
	ResultCanceled ResultLabel = "canceled"
)

// Recorder defines observability hooks for build runs. All methods must be
// safe on the zero value so NoopRecorder can be embedded anywhere.
type Recorder interface {
	ObserveBuildDuration(d time.Duration)
	IncBuildOutcome(outcome string) // outcome: success|warnings|failed|canceled
	IncItemResult(kind string, result ResultLabel)
	IncCacheLookup(hit bool)
	IncVariant(format string)
	SetQueuedUnits(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not
// configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveBuildDuration(time.Duration) {}
func (NoopRecorder) IncBuildOutcome(string)             {}
func (NoopRecorder) IncItemResult(string, ResultLabel)  {}
func (NoopRecorder) IncCacheLookup(bool)                {}
func (NoopRecorder) IncVariant(string)                  {}
func (NoopRecorder) SetQueuedUnits(int)                 {}
