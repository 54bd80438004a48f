package metrics

import (
	"net/http"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once          sync.Once
	buildDuration prom.Histogram
	buildOutcome  *prom.CounterVec
	itemResults   *prom.CounterVec
	cacheLookups  *prom.CounterVec
	variants      *prom.CounterVec
	queuedUnits   prom.Gauge
}

// NewPrometheusRecorder constructs and registers build metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.buildDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "contentbuild",
			Name:      "build_duration_seconds",
			Help:      "Total build duration",
			Buckets:   prom.DefBuckets,
		})
		pr.buildOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "contentbuild",
			Name:      "build_outcomes_total",
			Help:      "Build outcomes by final status",
		}, []string{"outcome"})
		pr.itemResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "contentbuild",
			Name:      "item_results_total",
			Help:      "Work unit results by kind and outcome",
		}, []string{"kind", "result"})
		pr.cacheLookups = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "contentbuild",
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by hit/miss",
		}, []string{"result"})
		pr.variants = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "contentbuild",
			Name:      "image_variants_total",
			Help:      "Image variants encoded by format",
		}, []string{"format"})
		pr.queuedUnits = prom.NewGauge(prom.GaugeOpts{
			Namespace: "contentbuild",
			Name:      "queued_work_units",
			Help:      "Work units planned for the most recent build",
		})
		reg.MustRegister(pr.buildDuration, pr.buildOutcome, pr.itemResults, pr.cacheLookups, pr.variants, pr.queuedUnits)
	})
	return pr
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	if p == nil || p.buildDuration == nil {
		return
	}
	p.buildDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncBuildOutcome(outcome string) {
	if p == nil || p.buildOutcome == nil {
		return
	}
	p.buildOutcome.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) IncItemResult(kind string, result ResultLabel) {
	if p == nil || p.itemResults == nil {
		return
	}
	p.itemResults.WithLabelValues(kind, string(result)).Inc()
}

func (p *PrometheusRecorder) IncCacheLookup(hit bool) {
	if p == nil || p.cacheLookups == nil {
		return
	}
	res := "miss"
	if hit {
		res = "hit"
	}
	p.cacheLookups.WithLabelValues(res).Inc()
}

func (p *PrometheusRecorder) IncVariant(format string) {
	if p == nil || p.variants == nil {
		return
	}
	p.variants.WithLabelValues(format).Inc()
}

func (p *PrometheusRecorder) SetQueuedUnits(n int) {
	if p == nil || p.queuedUnits == nil {
		return
	}
	p.queuedUnits.Set(float64(n))
}

// HTTPHandler returns an http.Handler that serves Prometheus metrics for the
// provided registry.
func HTTPHandler(reg *prom.Registry) http.Handler {
	if reg == nil {
		reg = prom.DefaultRegisterer.(*prom.Registry)
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
