// Package monitoring holds the Prometheus collectors for Census fetches and
// pipeline output.
package monitoring

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "acs_tracts"

// Metrics holds the Prometheus counters and histograms for a pipeline run.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	CensusRequests        *prometheus.CounterVec   // labels: endpoint={profile,label,states}, outcome={success,error}
	CensusRequestDuration *prometheus.HistogramVec // labels: endpoint
	LabelCache            *prometheus.CounterVec   // labels: result={hit,miss}

	RowsEmitted   prometheus.Counter
	RowsExcluded  *prometheus.CounterVec // labels: reason={malformed_name,join_mismatch}
	MissingValues prometheus.Counter
	RunDuration   prometheus.Histogram
	RunsFailed    *prometheus.CounterVec // labels: stage={request,fetch,assemble,geography,melt}

	HTTPRequests        *prometheus.CounterVec   // labels: method, path, status
	HTTPRequestDuration *prometheus.HistogramVec // labels: method, path
}

func newMetrics() *Metrics {
	return &Metrics{
		CensusRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "census_requests_total",
			Help:      "Census Data API requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		CensusRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "census_request_duration_seconds",
			Help:      "Census Data API request duration in seconds, retries included.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"endpoint"}),
		LabelCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "label_cache_total",
			Help:      "Variable label cache lookups by result.",
		}, []string{"result"}),
		RowsEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_emitted_total",
			Help:      "Final records produced by the pipeline.",
		}),
		RowsExcluded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_excluded_total",
			Help:      "Rows dropped from the final table by reason.",
		}, []string{"reason"}),
		MissingValues: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "missing_values_total",
			Help:      "Cells coerced to zero because they were null or non-numeric.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a complete pipeline run.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}),
		RunsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_failed_total",
			Help:      "Pipeline runs aborted by a fatal error, by stage.",
		}, []string{"stage"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served by route pattern and status.",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := newMetrics()
	reg.MustRegister(
		m.CensusRequests,
		m.CensusRequestDuration,
		m.LabelCache,
		m.RowsEmitted,
		m.RowsExcluded,
		m.MissingValues,
		m.RunDuration,
		m.RunsFailed,
		m.HTTPRequests,
		m.HTTPRequestDuration,
	)
	return m
}

// NewMetricsForTesting creates unregistered collectors.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

// ObserveRequest records one Census API call.
func (m *Metrics) ObserveRequest(endpoint string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.CensusRequests.WithLabelValues(endpoint, outcome).Inc()
	m.CensusRequestDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// CacheLookup records a label cache hit or miss.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.LabelCache.WithLabelValues("hit").Inc()
		return
	}
	m.LabelCache.WithLabelValues("miss").Inc()
}

// RunCompleted records the outcome counts of one pipeline run.
func (m *Metrics) RunCompleted(emitted, malformed, unmatched, missing int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RowsEmitted.Add(float64(emitted))
	m.RowsExcluded.WithLabelValues("malformed_name").Add(float64(malformed))
	m.RowsExcluded.WithLabelValues("join_mismatch").Add(float64(unmatched))
	m.MissingValues.Add(float64(missing))
	m.RunDuration.Observe(elapsed.Seconds())
}

// RunFailed records a run that stopped at stage.
func (m *Metrics) RunFailed(stage string) {
	if m == nil {
		return
	}
	m.RunsFailed.WithLabelValues(stage).Inc()
}

// ObserveHTTP records one served HTTP request.
func (m *Metrics) ObserveHTTP(method, path string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}
