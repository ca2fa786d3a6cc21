package httpx

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/splax/installer/internal/domain"
)

var histogramBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30}

// Outcome labels for the activation counter.
const (
	outcomeOK                  = "ok"
	outcomeInvalidForm         = "invalid_form"
	outcomeDatabaseUnreachable = "database_unreachable"
	outcomeLicenseRejected     = "license_rejected"
)

type metrics struct {
	registry       *prometheus.Registry
	requestTotal   *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	rateLimitHits  *prometheus.CounterVec
	activations    *prometheus.CounterVec
	installations  *prometheus.CounterVec
}

func newMetrics() *metrics {
	m := &metrics{registry: prometheus.NewRegistry()}
	m.requestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "installer",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Count of processed HTTP requests",
	}, []string{"method", "route", "status"})

	m.requestLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "installer",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Latency distribution of HTTP handlers",
		Buckets:   histogramBuckets,
	}, []string{"method", "route", "status"})

	m.rateLimitHits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "installer",
		Subsystem: "http",
		Name:      "rate_limit_hits_total",
		Help:      "Number of rate-limited responses",
	}, []string{"route", "key"})

	m.activations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "installer",
		Subsystem: "activation",
		Name:      "attempts_total",
		Help:      "Activation attempts by mode and outcome",
	}, []string{"mode", "outcome"})

	m.installations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "installer",
		Subsystem: "database",
		Name:      "stage_runs_total",
		Help:      "Database stage runs by result",
	}, []string{"result"})

	m.registry.MustRegister(
		m.requestTotal,
		m.requestLatency,
		m.rateLimitHits,
		m.activations,
		m.installations,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (r *Router) recordRequestMetrics(method, route string, status int, duration time.Duration) {
	labels := prometheus.Labels{
		"method": method,
		"route":  route,
		"status": strconv.Itoa(status),
	}
	r.metrics.requestTotal.With(labels).Inc()
	r.metrics.requestLatency.With(labels).Observe(duration.Seconds())
}

func (r *Router) recordRateLimitHit(route, key string) {
	r.metrics.rateLimitHits.With(prometheus.Labels{"route": route, "key": key}).Inc()
}

func (r *Router) recordActivation(res domain.ActivationResult) {
	r.metrics.activations.With(prometheus.Labels{"mode": string(res.Mode), "outcome": activationOutcome(res)}).Inc()
}

func (r *Router) recordInstallation(result string) {
	r.metrics.installations.With(prometheus.Labels{"result": result}).Inc()
}

func activationOutcome(res domain.ActivationResult) string {
	switch {
	case res.OK():
		return outcomeOK
	case res.ErrorField == domain.FieldDatabaseConnection:
		return outcomeDatabaseUnreachable
	case res.ErrorField == domain.FieldPurchaseCode:
		return outcomeLicenseRejected
	default:
		return outcomeInvalidForm
	}
}
