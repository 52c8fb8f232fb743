package monitoring

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewMetrics_Registers(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.ObserveRequest("label", nil, time.Millisecond)

	families, err := reg.Gather()
	assert.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestObserveRequest(t *testing.T) {
	m := NewMetricsForTesting()
	m.ObserveRequest("profile", nil, 10*time.Millisecond)
	m.ObserveRequest("profile", errors.New("boom"), 10*time.Millisecond)
	m.ObserveRequest("label", nil, time.Millisecond)

	assert.InDelta(t, 1, testutil.ToFloat64(m.CensusRequests.WithLabelValues("profile", "success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.CensusRequests.WithLabelValues("profile", "error")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.CensusRequests.WithLabelValues("label", "success")), 0)
}

func TestCacheLookup(t *testing.T) {
	m := NewMetricsForTesting()
	m.CacheLookup(true)
	m.CacheLookup(false)
	m.CacheLookup(false)

	assert.InDelta(t, 1, testutil.ToFloat64(m.LabelCache.WithLabelValues("hit")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.LabelCache.WithLabelValues("miss")), 0)
}

func TestRunCompleted(t *testing.T) {
	m := NewMetricsForTesting()
	m.RunCompleted(12, 2, 1, 3, time.Second)

	assert.InDelta(t, 12, testutil.ToFloat64(m.RowsEmitted), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.RowsExcluded.WithLabelValues("malformed_name")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.RowsExcluded.WithLabelValues("join_mismatch")), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(m.MissingValues), 0)
}

func TestRunFailed(t *testing.T) {
	m := NewMetricsForTesting()
	m.RunFailed("assemble")
	m.RunFailed("assemble")
	m.RunFailed("fetch")

	assert.InDelta(t, 2, testutil.ToFloat64(m.RunsFailed.WithLabelValues("assemble")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.RunsFailed.WithLabelValues("fetch")), 0)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest("label", nil, time.Millisecond)
		m.CacheLookup(true)
		m.RunCompleted(1, 0, 0, 0, time.Second)
		m.RunFailed("melt")
	})
}

func TestObserveHTTP(t *testing.T) {
	m := NewMetricsForTesting()
	m.ObserveHTTP("GET", "/healthz", 200, time.Millisecond)
	m.ObserveHTTP("GET", "/healthz", 200, time.Millisecond)

	assert.InDelta(t, 2, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/healthz", "200")), 0)

	var nilMetrics *Metrics
	assert.NotPanics(t, func() { nilMetrics.ObserveHTTP("GET", "/", 500, 0) })
}
