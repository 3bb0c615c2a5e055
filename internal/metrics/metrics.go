package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for devquote.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// HTTP transport metrics
	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Refresh coordination metrics
	RefreshAttempts *prometheus.CounterVec
	RefreshDuration prometheus.Histogram
	RefreshWaiters  prometheus.Gauge
	Replays         *prometheus.CounterVec

	// Session metrics
	SessionTransitions *prometheus.CounterVec

	// Token store metrics
	StorageErrors *prometheus.CounterVec

	// Error metrics (by structured error code)
	Errors *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		Requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devquote_http_requests_total",
				Help: "Total number of HTTP requests sent to the backend",
			},
			[]string{"method", "status_class"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "devquote_http_request_duration_seconds",
				Help:    "Backend request latency in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method"},
		),

		RefreshAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devquote_token_refresh_total",
				Help: "Total number of token refresh calls by outcome",
			},
			[]string{"outcome"},
		),
		RefreshDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "devquote_token_refresh_duration_seconds",
				Help:    "Token refresh call duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		RefreshWaiters: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "devquote_token_refresh_waiters",
				Help: "Requests currently waiting on an in-flight refresh",
			},
		),
		Replays: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devquote_request_replays_total",
				Help: "Total number of requests replayed after a refresh",
			},
			[]string{"outcome"},
		),

		SessionTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devquote_session_transitions_total",
				Help: "Total number of session state transitions",
			},
			[]string{"to", "reason"},
		),

		StorageErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devquote_storage_errors_total",
				Help: "Total number of token store failures",
			},
			[]string{"backend", "op"},
		),

		Errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devquote_errors_total",
				Help: "Total number of errors by error code",
			},
			[]string{"error_code", "component"},
		),
	}
}

// ObserveRequest records one transport attempt. status 0 means no response.
func (m *Metrics) ObserveRequest(method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(method, StatusClass(status)).Inc()
	m.RequestDuration.WithLabelValues(method).Observe(d.Seconds())
}

// ObserveRefresh records the outcome of one refresh call.
func (m *Metrics) ObserveRefresh(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.RefreshAttempts.WithLabelValues(outcome).Inc()
	m.RefreshDuration.Observe(d.Seconds())
}

// WaiterAdded and WaiterDone track the refresh wait list length.
func (m *Metrics) WaiterAdded() {
	if m == nil {
		return
	}
	m.RefreshWaiters.Inc()
}

func (m *Metrics) WaiterDone() {
	if m == nil {
		return
	}
	m.RefreshWaiters.Dec()
}

// ObserveReplay records a request replayed with a refreshed token.
func (m *Metrics) ObserveReplay(outcome string) {
	if m == nil {
		return
	}
	m.Replays.WithLabelValues(outcome).Inc()
}

// ObserveTransition records a session state change.
func (m *Metrics) ObserveTransition(to, reason string) {
	if m == nil {
		return
	}
	m.SessionTransitions.WithLabelValues(to, reason).Inc()
}

// ObserveStorageError records a failed token store operation.
func (m *Metrics) ObserveStorageError(backend, op string) {
	if m == nil {
		return
	}
	m.StorageErrors.WithLabelValues(backend, op).Inc()
}

// ObserveError records an error by code.
func (m *Metrics) ObserveError(code, component string) {
	if m == nil || code == "" {
		return
	}
	m.Errors.WithLabelValues(code, component).Inc()
}

// StatusClass buckets an HTTP status into "2xx", "4xx" and so on.
func StatusClass(status int) string {
	if status <= 0 {
		return "error"
	}
	return strconv.Itoa(status/100) + "xx"
}
