package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "outbound"

// Call outcomes. Keep stable; they are metric label values.
const (
	OutcomeConnected        = "connected"
	OutcomeValidationFailed = "validation_failed"
	OutcomeDispatchFailed   = "dispatch_failed"
	OutcomeDialFailed       = "dial_failed"
	OutcomeError            = "error"
)

// Calls holds the orchestration instruments. A nil *Calls records nothing.
type Calls struct {
	callsTotal    *prometheus.CounterVec
	dialAttempts  *prometheus.CounterVec
	setupDuration prometheus.Histogram
}

// NewCalls registers the orchestration instruments on reg.
func NewCalls(reg prometheus.Registerer) *Calls {
	f := promauto.With(reg)
	return &Calls{
		callsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "calls_total",
				Help:      "Outbound call placements by outcome.",
			},
			[]string{"outcome"},
		),
		dialAttempts: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dial_attempts_total",
				Help:      "SIP dial attempts by result.",
			},
			[]string{"result"}, // ok, error
		),
		setupDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "call_setup_duration_seconds",
				Help:      "Time from request to answered call (or failure).",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 45, 60, 90},
			},
		),
	}
}

func (m *Calls) ObserveCall(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.callsTotal.WithLabelValues(outcome).Inc()
	m.setupDuration.Observe(d.Seconds())
}

func (m *Calls) ObserveDialAttempt(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.dialAttempts.WithLabelValues(result).Inc()
}

// HTTP holds request instruments for the API.
type HTTP struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

func NewHTTP(reg prometheus.Registerer) *HTTP {
	f := promauto.With(reg)
	return &HTTP{
		requestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status_code"},
		),
		requestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

func (m *HTTP) ObserveRequest(method, path, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(method, path, status).Inc()
	m.requestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}
