package audit

import (
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics tracks service metrics and serves them in Prometheus text format.
// It uses a custom prometheus.Registry for isolation and testability.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	decisionsTotal   *prometheus.CounterVec
	decisionDuration prometheus.Histogram
	rateLimitHits    *prometheus.CounterVec
	limiterErrors    prometheus.Counter
	configReloads    *prometheus.CounterVec
	configReloadTime prometheus.Gauge
	buildInfo        *prometheus.GaugeVec
}

// NewMetrics creates a new Metrics collector with a custom Prometheus registry.
// All metric families are pre-registered with HELP and TYPE metadata.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authd_requests_total",
			Help: "Total number of API requests processed.",
		}, []string{"operation", "status"}),

		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "authd_request_duration_seconds",
			Help:    "API request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),

		decisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authd_decisions_total",
			Help: "Authorization check decisions by outcome.",
		}, []string{"outcome"}),

		decisionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "authd_decision_duration_seconds",
			Help:    "Authorization decision evaluation time in seconds.",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		}),

		rateLimitHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authd_rate_limit_hits_total",
			Help: "Total number of rate limit denials by layer.",
		}, []string{"layer"}),

		limiterErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authd_limiter_backend_errors_total",
			Help: "Rate limit backend failures that resulted in fail-open decisions.",
		}),

		configReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authd_config_reloads_total",
			Help: "Total number of configuration reload attempts.",
		}, []string{"result"}),

		configReloadTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "authd_config_reload_timestamp_seconds",
			Help: "Unix timestamp of the last successful configuration reload.",
		}),

		buildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "authd_build_info",
			Help: "Build information about the authd binary. Value is always 1.",
		}, []string{"version", "go_version"}),
	}

	reg.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.decisionsTotal,
		m.decisionDuration,
		m.rateLimitHits,
		m.limiterErrors,
		m.configReloads,
		m.configReloadTime,
		m.buildInfo,
	)

	return m
}

// RecordRequest increments the request counter for the given operation and status code.
func (m *Metrics) RecordRequest(operation string, status int) {
	m.requestsTotal.WithLabelValues(operation, statusString(status)).Inc()
}

// RecordRequestDuration records API request duration.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// RecordDecision records the outcome of one authorization check:
// "granted", "denied", or "error".
func (m *Metrics) RecordDecision(outcome string, d time.Duration) {
	m.decisionsTotal.WithLabelValues(outcome).Inc()
	m.decisionDuration.Observe(d.Seconds())
}

// RecordRateLimitHit records a rate limit denial for the given layer.
// Layer is "global", "ip", or "permission".
func (m *Metrics) RecordRateLimitHit(layer string) {
	m.rateLimitHits.WithLabelValues(layer).Inc()
}

// RecordLimiterError records a rate limit backend failure (fail-open path).
func (m *Metrics) RecordLimiterError() {
	m.limiterErrors.Inc()
}

// RecordConfigReload records a configuration reload attempt.
// Pass true for a successful reload, false for a failure.
func (m *Metrics) RecordConfigReload(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	m.configReloads.WithLabelValues(result).Inc()
}

// SetConfigReloadTime records the timestamp of the last configuration reload.
func (m *Metrics) SetConfigReloadTime(t time.Time) {
	m.configReloadTime.Set(float64(t.Unix()))
}

// SetBuildInfo publishes the build info gauge.
func (m *Metrics) SetBuildInfo(version string) {
	m.buildInfo.WithLabelValues(version, runtime.Version()).Set(1)
}

// Handler returns an HTTP handler that serves /metrics in Prometheus text format.
func (m *Metrics) Handler() http.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return func(w http.ResponseWriter, r *http.Request) {
		h.ServeHTTP(w, r)
	}
}

// statusString buckets an HTTP status code into its class ("2xx", "4xx", ...).
func statusString(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
