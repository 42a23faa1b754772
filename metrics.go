package walredo

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsRegistry is the narrow abstraction the manager reports through.
// Implementations must be safe for concurrent use.
type MetricsRegistry interface {
	// ObserveRedoTime records the duration of work done under the manager's
	// lock (external path) or of the whole call (in-process path).
	ObserveRedoTime(seconds float64)
	// ObserveWaitTime records lock acquisition latency. Only called on the
	// external path.
	ObserveWaitTime(seconds float64)
	// AddReplayedRecords increments the replayed-record counter. Called on
	// both paths.
	AddReplayedRecords(n int)
}

type prometheusRegistry struct {
	redoTime     prometheus.Histogram
	waitTime     prometheus.Histogram
	replayedRecs prometheus.Counter
}

func newPrometheusRegistry() *prometheusRegistry {
	return &prometheusRegistry{
		redoTime: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "pageserver_wal_redo_time_seconds",
			Help:    "Time spent performing WAL redo, in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
		}),
		waitTime: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "pageserver_wal_redo_wait_time_seconds",
			Help:    "Time spent waiting to acquire the external redo process lock, in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
		}),
		replayedRecs: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pageserver_wal_records_replayed_total",
			Help: "Number of WAL records replayed by the redo service.",
		}),
	}
}

func (r *prometheusRegistry) ObserveRedoTime(seconds float64) { r.redoTime.Observe(seconds) }
func (r *prometheusRegistry) ObserveWaitTime(seconds float64) { r.waitTime.Observe(seconds) }
func (r *prometheusRegistry) AddReplayedRecords(n int)        { r.replayedRecs.Add(float64(n)) }

var (
	defaultRegistry     MetricsRegistry
	defaultRegistryOnce sync.Once
)

// DefaultMetricsRegistry returns the process-wide Prometheus-backed metrics
// registry, creating and registering its collectors at most once.
func DefaultMetricsRegistry() MetricsRegistry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = newPrometheusRegistry()
	})
	return defaultRegistry
}

// NoopMetricsRegistry discards every observation. Tests install this to
// avoid registering collectors against the global Prometheus registry.
type NoopMetricsRegistry struct{}

func (NoopMetricsRegistry) ObserveRedoTime(float64) {}
func (NoopMetricsRegistry) ObserveWaitTime(float64) {}
func (NoopMetricsRegistry) AddReplayedRecords(int)  {}

var (
	_ MetricsRegistry = (*prometheusRegistry)(nil)
	_ MetricsRegistry = NoopMetricsRegistry{}
)
