package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder receives the metrics the service emits. Components hold the
// interface so tests can inject a capturing implementation.
type Recorder interface {
	ObserveVendorRequest(service string, duration time.Duration, status int, success bool)
	IncRateLimited(limitType string)
	IncCallOutcome(outcome string)
}

// NopRecorder discards all observations.
type NopRecorder struct{}

func (NopRecorder) ObserveVendorRequest(string, time.Duration, int, bool) {}
func (NopRecorder) IncRateLimited(string)                                {}
func (NopRecorder) IncCallOutcome(string)                                {}

// PrometheusRecorder implements Recorder over its own registry, so multiple
// instances (one per test, one per process) never collide on metric names.
type PrometheusRecorder struct {
	registry       *prometheus.Registry
	vendorRequests *prometheus.HistogramVec
	rateLimited    *prometheus.CounterVec
	callOutcomes   *prometheus.CounterVec
}

// NewPrometheusRecorder builds a recorder with all collectors registered.
func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prometheus.NewRegistry()

	r := &PrometheusRecorder{
		registry: registry,
		vendorRequests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bridge",
			Name:      "vendor_request_duration_seconds",
			Help:      "Duration of outbound vendor requests by terminal status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service", "status", "success"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bridge",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the admission limiter.",
		}, []string{"limit_type"}),
		callOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bridge",
			Name:      "call_outcomes_total",
			Help:      "Terminal outcomes of call orchestrations.",
		}, []string{"outcome"}),
	}

	registry.MustRegister(r.vendorRequests, r.rateLimited, r.callOutcomes)
	return r
}

func (r *PrometheusRecorder) ObserveVendorRequest(service string, duration time.Duration, status int, success bool) {
	r.vendorRequests.
		WithLabelValues(service, strconv.Itoa(status), strconv.FormatBool(success)).
		Observe(duration.Seconds())
}

func (r *PrometheusRecorder) IncRateLimited(limitType string) {
	r.rateLimited.WithLabelValues(limitType).Inc()
}

func (r *PrometheusRecorder) IncCallOutcome(outcome string) {
	r.callOutcomes.WithLabelValues(outcome).Inc()
}

// Handler exposes the registry in Prometheus text format.
func (r *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
