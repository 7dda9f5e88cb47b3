package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Metrics registers on a private registry so several consoles can live in
// one process (tests, embedded use).
type Metrics struct {
	registry *prometheus.Registry

	APIRequests         *prometheus.CounterVec
	APIRequestDuration  *prometheus.HistogramVec
	Logins              *prometheus.CounterVec
	FallbackActivations *prometheus.CounterVec
	SessionState        prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		APIRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "blogdesk_api_requests_total",
			Help: "Backend API calls by operation and outcome",
		}, []string{"operation", "outcome"}),
		APIRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "blogdesk_api_request_duration_seconds",
			Help:    "Latency of backend API calls",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"operation"}),
		Logins: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "blogdesk_logins_total",
			Help: "Login attempts by mode and outcome",
		}, []string{"mode", "outcome"}),
		FallbackActivations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "blogdesk_fallback_activations_total",
			Help: "Operations served by the local fallback store because the backend was unreachable",
		}, []string{"operation"}),
		SessionState: factory.NewGauge(prometheus.GaugeOpts{
			Name: "blogdesk_session_authenticated",
			Help: "1 while the console holds an authenticated session",
		}),
	}
}

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeOK
}

// ObserveAPI records one backend call. Nil receivers are no-ops.
func (m *Metrics) ObserveAPI(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.APIRequests.WithLabelValues(operation, outcome(err)).Inc()
	m.APIRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveLogin(mode string, err error) {
	if m == nil {
		return
	}
	m.Logins.WithLabelValues(mode, outcome(err)).Inc()
}

func (m *Metrics) IncrementFallback(operation string) {
	if m == nil {
		return
	}
	m.FallbackActivations.WithLabelValues(operation).Inc()
}

func (m *Metrics) SetAuthenticated(authenticated bool) {
	if m == nil {
		return
	}
	if authenticated {
		m.SessionState.Set(1)
		return
	}
	m.SessionState.Set(0)
}

// Registry exposes the underlying registry for tests and custom collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
