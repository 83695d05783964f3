// Package observer defines the Observer capability (spec §5, §8): the
// seam RepoRoller's pipeline stages use to emit structured logs and
// metrics, without committing the core to a particular sink. Production
// code wires a real Prometheus registry; tests use a no-op or recording
// Observer.
package observer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus instrument the pipeline emits. One
// instance is created per process and registered against a
// caller-supplied registry, never prometheus.DefaultRegisterer, so
// callers (including tests) control its lifetime.
type Metrics struct {
	CreationRequestsTotal    *prometheus.CounterVec
	CreationDuration         prometheus.Histogram
	ConfigResolutionDuration prometheus.Histogram
	ConfigResolutionErrors   *prometheus.CounterVec
	TemplateRenderDuration   prometheus.Histogram
	TemplateRenderErrors     *prometheus.CounterVec
	HubCallsTotal            *prometheus.CounterVec
	HubCallDuration          *prometheus.HistogramVec
	RateLimitWaitSeconds     prometheus.Counter
	WebhookDeliveriesTotal   *prometheus.CounterVec
	WebhookDeliveryDuration  prometheus.Histogram
}

func durationBuckets() []float64 {
	return []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0}
}

// NewMetrics creates and registers every instrument against registry.
// Pass prometheus.NewRegistry() for an isolated instance-scoped registry
// (the teacher's convention), or a shared registry wired into an HTTP
// /metrics handler for a long-running process.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)
	return &Metrics{
		CreationRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reporoller_creation_requests_total",
			Help: "Total repository creation requests by outcome.",
		}, []string{"outcome"}),
		CreationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "reporoller_creation_duration_seconds",
			Help:    "Wall-clock time for a full creation pipeline run.",
			Buckets: durationBuckets(),
		}),
		ConfigResolutionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "reporoller_config_resolution_duration_seconds",
			Help:    "Time spent resolving the effective configuration hierarchy.",
			Buckets: durationBuckets(),
		}),
		ConfigResolutionErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reporoller_config_resolution_errors_total",
			Help: "Configuration resolution failures by kind.",
		}, []string{"kind"}),
		TemplateRenderDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "reporoller_template_render_duration_seconds",
			Help:    "Time spent rendering a template source into file content.",
			Buckets: durationBuckets(),
		}),
		TemplateRenderErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reporoller_template_render_errors_total",
			Help: "Template rendering failures by kind.",
		}, []string{"kind"}),
		HubCallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reporoller_hub_calls_total",
			Help: "Hub API calls by operation and result.",
		}, []string{"operation", "result"}),
		HubCallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reporoller_hub_call_duration_seconds",
			Help:    "Hub API call latency by operation.",
			Buckets: durationBuckets(),
		}, []string{"operation"}),
		RateLimitWaitSeconds: factory.NewCounter(prometheus.CounterOpts{
			Name: "reporoller_rate_limit_wait_seconds_total",
			Help: "Cumulative time spent waiting on rate limiter reservations.",
		}),
		WebhookDeliveriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reporoller_webhook_deliveries_total",
			Help: "Webhook notification deliveries by result.",
		}, []string{"result"}),
		WebhookDeliveryDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "reporoller_webhook_delivery_duration_seconds",
			Help:    "Per-endpoint webhook delivery latency.",
			Buckets: durationBuckets(),
		}),
	}
}

// RecordCreation records the outcome and duration of a full pipeline run.
func (m *Metrics) RecordCreation(outcome string, durationSeconds float64) {
	m.CreationRequestsTotal.WithLabelValues(outcome).Inc()
	m.CreationDuration.Observe(durationSeconds)
}

// RecordConfigResolution records a configuration resolution attempt.
func (m *Metrics) RecordConfigResolution(durationSeconds float64, errorKind string) {
	m.ConfigResolutionDuration.Observe(durationSeconds)
	if errorKind != "" {
		m.ConfigResolutionErrors.WithLabelValues(errorKind).Inc()
	}
}

// RecordTemplateRender records a template render attempt.
func (m *Metrics) RecordTemplateRender(durationSeconds float64, errorKind string) {
	m.TemplateRenderDuration.Observe(durationSeconds)
	if errorKind != "" {
		m.TemplateRenderErrors.WithLabelValues(errorKind).Inc()
	}
}

// RecordHubCall records one Hub API call.
func (m *Metrics) RecordHubCall(operation, result string, durationSeconds float64) {
	m.HubCallsTotal.WithLabelValues(operation, result).Inc()
	m.HubCallDuration.WithLabelValues(operation).Observe(durationSeconds)
}

// AddRateLimitWait adds time spent blocked on a rate limiter reservation.
func (m *Metrics) AddRateLimitWait(seconds float64) {
	m.RateLimitWaitSeconds.Add(seconds)
}

// RecordWebhookDelivery records one webhook delivery attempt.
func (m *Metrics) RecordWebhookDelivery(result string, durationSeconds float64) {
	m.WebhookDeliveriesTotal.WithLabelValues(result).Inc()
	m.WebhookDeliveryDuration.Observe(durationSeconds)
}
