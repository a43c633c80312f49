package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_SubmissionLifecycle(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.SubmissionStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InFlightSubmissions.WithLabelValues(m.hostname)))

	m.SubmissionFinished("success")
	m.SubmissionRejected("invalid")
	assert.Equal(t, 0.0, testutil.ToFloat64(m.InFlightSubmissions.WithLabelValues(m.hostname)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SubmitTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SubmitTotal.WithLabelValues("invalid")))
}

func TestMetrics_ObservePredict(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObservePredict("success", 20*time.Millisecond)
	m.ObservePredict("rejected", 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.PredictTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PredictTotal.WithLabelValues("rejected")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.PredictLatency))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SubmissionStarted()
		m.SubmissionFinished("success")
		m.SubmissionRejected("invalid")
		m.ObservePredict("error", time.Second)
		m.ObserveHTTP("GET", "/health", 200, time.Millisecond)
	})
}
