// Package metrics exposes Prometheus instrumentation for rankboard.
//
// Each [Metrics] owns a private registry so several boards can coexist in
// one process (and in tests) without duplicate-registration panics. All
// methods are safe on a nil *Metrics, which records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rankboard"

// Metrics groups the collectors updated on every reconciliation cycle.
type Metrics struct {
	registry *prometheus.Registry

	cycles      prometheus.Counter
	rejected    prometheus.Counter
	entities    prometheus.Gauge
	added       prometheus.Counter
	removed     prometheus.Counter
	duration    prometheus.Histogram
	subscribers prometheus.Gauge
	dropped     prometheus.Counter
	feedErrors  *prometheus.CounterVec
}

// New creates a [Metrics] backed by a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		cycles: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_cycles_total",
			Help:      "Total number of snapshot batches applied.",
		}),
		rejected: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_rejected_total",
			Help:      "Total number of snapshot batches rejected by validation.",
		}),
		entities: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "entities",
			Help:      "Number of entities currently held.",
		}),
		added: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entities_added_total",
			Help:      "Total number of entities inserted by reconciliation.",
		}),
		removed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entities_removed_total",
			Help:      "Total number of entities removed by reconciliation.",
		}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Time spent reconciling and ranking one batch.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1},
		}),
		subscribers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscribers",
			Help:      "Number of live frame subscribers.",
		}),
		dropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Frames dropped because a subscriber buffer was full.",
		}),
		feedErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_errors_total",
			Help:      "Snapshot fetch or decode failures by feed.",
		}, []string{"feed"}),
	}
}

// ObserveCycle records one applied batch.
func (m *Metrics) ObserveCycle(entities, added, removed int, d time.Duration) {
	if m == nil {
		return
	}
	m.cycles.Inc()
	m.entities.Set(float64(entities))
	m.added.Add(float64(added))
	m.removed.Add(float64(removed))
	m.duration.Observe(d.Seconds())
}

// ObserveRejected records a batch that failed validation.
func (m *Metrics) ObserveRejected() {
	if m == nil {
		return
	}
	m.rejected.Inc()
}

// SetSubscribers records the current subscriber count.
func (m *Metrics) SetSubscribers(n int) {
	if m == nil {
		return
	}
	m.subscribers.Set(float64(n))
}

// ObserveDropped records a frame dropped for a slow subscriber.
func (m *Metrics) ObserveDropped() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}

// ObserveFeedError records a failed fetch or decode for the named feed.
func (m *Metrics) ObserveFeedError(feed string) {
	if m == nil {
		return
	}
	m.feedErrors.WithLabelValues(feed).Inc()
}

// Handler returns the HTTP handler serving this registry in the Prometheus
// exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry, mainly for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}
