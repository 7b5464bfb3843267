// Package telemetry exposes processing counters in Prometheus format.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "jiraflow"

// Recorder counts what a report run did. Every Recorder owns its registry so
// several can coexist in one process (tests, reloads). A nil *Recorder is a
// valid no-op.
type Recorder struct {
	registry *prometheus.Registry

	processed *prometheus.CounterVec
	skipped   *prometheus.CounterVec
	unmapped  prometheus.Counter
	orphans   prometheus.Counter
	fetches   *prometheus.CounterVec
	runTime   *prometheus.HistogramVec
	leadTime  prometheus.Histogram
}

// NewRecorder registers every collector on a fresh registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		processed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entities_processed_total",
			Help:      "Entities turned into report rows, by report.",
		}, []string{"report"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entities_skipped_total",
			Help:      "Entities skipped because of inconsistent data, by report.",
		}, []string{"report"}),
		unmapped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unmapped_statuses_total",
			Help:      "Status transitions that referenced a status missing from the status map.",
		}),
		orphans: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orphan_sprints_total",
			Help:      "Sprint ids referenced by issues that match no known sprint.",
		}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Requests sent to upstream APIs, by source and outcome.",
		}, []string{"source", "outcome"}),
		runTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "report_duration_seconds",
			Help:      "Wall time of one report run.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}, []string{"report"}),
		leadTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "issue_lead_time_days",
			Help:      "Calendar lead time of resolved issues in days.",
			Buckets:   []float64{1, 3, 7, 14, 21, 28, 35, 60, 90},
		}),
	}

	r.registry.MustRegister(r.processed, r.skipped, r.unmapped, r.orphans, r.fetches, r.runTime, r.leadTime)
	return r
}

// Handler serves the registry for scraping.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) Processed(report string) {
	if r != nil {
		r.processed.WithLabelValues(report).Inc()
	}
}

func (r *Recorder) Skipped(report string) {
	if r != nil {
		r.skipped.WithLabelValues(report).Inc()
	}
}

func (r *Recorder) UnmappedStatuses(n int) {
	if r != nil && n > 0 {
		r.unmapped.Add(float64(n))
	}
}

func (r *Recorder) OrphanSprints(n int) {
	if r != nil && n > 0 {
		r.orphans.Add(float64(n))
	}
}

// Fetch records one upstream request. err == nil counts as success.
func (r *Recorder) Fetch(source string, err error) {
	if r == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.fetches.WithLabelValues(source, outcome).Inc()
}

func (r *Recorder) LeadTime(d time.Duration) {
	if r != nil {
		r.leadTime.Observe(d.Hours() / 24)
	}
}

// Time starts a timer for report and returns the function that stops it.
func (r *Recorder) Time(report string) func() {
	if r == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		r.runTime.WithLabelValues(report).Observe(time.Since(start).Seconds())
	}
}
