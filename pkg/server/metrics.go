package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts HTTP traffic and gate outcomes.
type Metrics interface {
	IncRequestsTotal(endpoint string, status int)
	ObserveRequestDuration(endpoint string, duration time.Duration)
	IncGateDecision(allowed bool)
	AddCheckResults(taskType string, success, failed int)
}

type promMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	gateDecisions   *prometheus.CounterVec
	checkResults    *prometheus.CounterVec
}

// NewMetrics registers the collectors on reg. Pass
// prometheus.DefaultRegisterer in production.
func NewMetrics(reg prometheus.Registerer) Metrics {
	factory := promauto.With(reg)
	return &promMetrics{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "igmonitor_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"endpoint", "status"}),

		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "igmonitor_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),

		gateDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "igmonitor_gate_decisions_total",
			Help: "Protection gate admission decisions",
		}, []string{"outcome"}),

		checkResults: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "igmonitor_check_results_total",
			Help: "Individual account check outcomes per task type",
		}, []string{"type", "outcome"}),
	}
}

func (m *promMetrics) IncRequestsTotal(endpoint string, status int) {
	m.requestsTotal.WithLabelValues(endpoint, httpStatusBucket(status)).Inc()
}

func (m *promMetrics) ObserveRequestDuration(endpoint string, duration time.Duration) {
	m.requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func (m *promMetrics) IncGateDecision(allowed bool) {
	outcome := "denied"
	if allowed {
		outcome = "allowed"
	}
	m.gateDecisions.WithLabelValues(outcome).Inc()
}

func (m *promMetrics) AddCheckResults(taskType string, success, failed int) {
	if success > 0 {
		m.checkResults.WithLabelValues(taskType, "success").Add(float64(success))
	}
	if failed > 0 {
		m.checkResults.WithLabelValues(taskType, "error").Add(float64(failed))
	}
}

func httpStatusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

// noopMetrics is used when metrics are disabled and in handler tests.
type noopMetrics struct{}

func NewNoopMetrics() Metrics { return &noopMetrics{} }

func (n *noopMetrics) IncRequestsTotal(_ string, _ int)                 {}
func (n *noopMetrics) ObserveRequestDuration(_ string, _ time.Duration) {}
func (n *noopMetrics) IncGateDecision(_ bool)                           {}
func (n *noopMetrics) AddCheckResults(_ string, _, _ int)               {}
