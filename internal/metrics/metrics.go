// Package metrics provides Prometheus metrics for the CTG screening services.
package metrics

import (
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pre-defined histogram buckets for latency metrics
var (
	// PredictLatencyBuckets are latency buckets for prediction service calls
	PredictLatencyBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0}

	// InferenceLatencyBuckets are latency buckets for the mock model
	InferenceLatencyBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}
)

// Metrics holds all Prometheus metrics for the screening server.
type Metrics struct {
	// PredictLatency tracks prediction service call latency
	PredictLatency prometheus.Histogram

	// PredictTotal tracks prediction calls by outcome
	PredictTotal *prometheus.CounterVec

	// SubmitTotal tracks form submissions by outcome
	SubmitTotal *prometheus.CounterVec

	// InFlightSubmissions tracks submissions awaiting a prediction
	InFlightSubmissions *prometheus.GaugeVec

	// OpenForms tracks live form instances
	OpenForms prometheus.Gauge

	// CircuitBreakerState tracks circuit breaker states
	CircuitBreakerState *prometheus.GaugeVec

	// HTTPRequestDuration tracks full HTTP request duration
	HTTPRequestDuration *prometheus.HistogramVec

	hostname string
}

// New creates the server metrics and registers them with reg.
// Pass prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	hostname, _ := os.Hostname()

	m := &Metrics{
		hostname: hostname,
		PredictLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ctg_predict_latency_seconds",
				Help:    "Latency of prediction service calls",
				Buckets: PredictLatencyBuckets,
			},
		),
		PredictTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ctg_predict_total",
				Help: "Total prediction service calls",
			},
			[]string{"status"},
		),
		SubmitTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ctg_form_submit_total",
				Help: "Total form submissions",
			},
			[]string{"outcome"},
		),
		InFlightSubmissions: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ctg_in_flight_submissions",
				Help: "Number of submissions awaiting a prediction",
			},
			[]string{"pod"},
		),
		OpenForms: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ctg_open_forms",
				Help: "Number of live form instances",
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ctg_circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half_open)",
			},
			[]string{"service"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds (full request/response cycle)",
				Buckets: PredictLatencyBuckets,
			},
			[]string{"method", "route", "status_code"},
		),
	}

	reg.MustRegister(
		m.PredictLatency,
		m.PredictTotal,
		m.SubmitTotal,
		m.InFlightSubmissions,
		m.OpenForms,
		m.CircuitBreakerState,
		m.HTTPRequestDuration,
	)

	// Initialize to 0 so it's exposed immediately
	m.InFlightSubmissions.WithLabelValues(hostname).Set(0)
	for _, status := range []string{"success", "error", "rejected"} {
		m.PredictTotal.WithLabelValues(status)
	}

	return m
}

// SubmissionStarted increments the in-flight gauge.
func (m *Metrics) SubmissionStarted() {
	if m == nil {
		return
	}
	m.InFlightSubmissions.WithLabelValues(m.hostname).Inc()
}

// SubmissionFinished decrements the in-flight gauge and counts the outcome.
func (m *Metrics) SubmissionFinished(outcome string) {
	if m == nil {
		return
	}
	m.InFlightSubmissions.WithLabelValues(m.hostname).Dec()
	m.SubmitTotal.WithLabelValues(outcome).Inc()
}

// SubmissionRejected counts a submission that never reached the prediction service.
func (m *Metrics) SubmissionRejected(outcome string) {
	if m == nil {
		return
	}
	m.SubmitTotal.WithLabelValues(outcome).Inc()
}

// ObservePredict records a prediction call.
func (m *Metrics) ObservePredict(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.PredictTotal.WithLabelValues(status).Inc()
	if d > 0 {
		m.PredictLatency.Observe(d.Seconds())
	}
}

// ObserveHTTP records a finished HTTP request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

// ModelMetrics holds metrics for the mock prediction model.
type ModelMetrics struct {
	InferenceLatency prometheus.Histogram
	InferenceTotal   *prometheus.CounterVec
}

// NewModelMetrics creates metrics for the mock model service.
func NewModelMetrics(reg prometheus.Registerer) *ModelMetrics {
	m := &ModelMetrics{
		InferenceLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "model_inference_latency_seconds",
				Help:    "Model inference latency in seconds",
				Buckets: InferenceLatencyBuckets,
			},
		),
		InferenceTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "model_inference_total",
				Help: "Total model inferences",
			},
			[]string{"status"},
		),
	}

	reg.MustRegister(m.InferenceLatency, m.InferenceTotal)
	m.InferenceTotal.WithLabelValues("success")
	m.InferenceTotal.WithLabelValues("error")

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
