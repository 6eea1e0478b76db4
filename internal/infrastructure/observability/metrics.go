// Package observability holds the Prometheus collectors of the service.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "portfolio_analytics"

// Summary kinds used as label values.
const (
	KindCoverage  = "coverage"
	KindPortfolio = "portfolio"
	KindSurvey    = "survey"
)

// Outcome label values.
const (
	OutcomeOK          = "ok"
	OutcomeIntegrity   = "integrity"
	OutcomeNotFound    = "not_found"
	OutcomeUnavailable = "unavailable"
	OutcomeError       = "error"
)

var (
	aggregationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "aggregations_total",
		Help:      "Summaries computed, labeled by kind and outcome.",
	}, []string{"kind", "outcome"})

	aggregationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "aggregation_duration_seconds",
		Help:      "Time spent loading a snapshot and computing a summary.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"kind"})

	cacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Summary cache lookups, labeled by kind and result (hit, miss, error).",
	}, []string{"kind", "result"})

	workerLastRefresh = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "worker",
		Name:      "last_refresh_timestamp_seconds",
		Help:      "Unix timestamp of the most recent completed refresh run.",
	})

	workerRefreshFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "worker",
		Name:      "trainee_refresh_failures_total",
		Help:      "Trainees whose summaries could not be refreshed.",
	})
)

func init() {
	prometheus.MustRegister(
		aggregationsTotal,
		aggregationDuration,
		cacheLookups,
		workerLastRefresh,
		workerRefreshFailures,
	)
}

// RecordAggregation counts one computed summary and observes its duration.
func RecordAggregation(kind, outcome string, elapsed time.Duration) {
	aggregationsTotal.WithLabelValues(kind, outcome).Inc()
	aggregationDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// RecordCacheLookup counts a cache lookup result: hit, miss or error.
func RecordCacheLookup(kind, result string) {
	cacheLookups.WithLabelValues(kind, result).Inc()
}

// RecordRefresh updates the refresh watermark.
func RecordRefresh(ts time.Time) {
	if ts.IsZero() {
		return
	}
	workerLastRefresh.Set(float64(ts.Unix()))
}

// RecordRefreshFailure counts a trainee that failed during a refresh run.
func RecordRefreshFailure() {
	workerRefreshFailures.Inc()
}
