package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "allocai_http_requests_total",
		Help: "HTTP requests by method, route and status",
	}, []string{"method", "path", "status"})

	HTTPLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "allocai_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "allocai_events_published_total",
		Help: "Domain events published on the in-process bus",
	}, []string{"event"})

	WebhookDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "allocai_webhook_deliveries_total",
		Help: "Outbound webhook deliveries by event and outcome",
	}, []string{"event", "outcome"})

	JobsEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "allocai_jobs_enqueued_total",
		Help: "Background jobs enqueued by kind",
	}, []string{"kind"})

	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "allocai_jobs_processed_total",
		Help: "Background jobs finished by kind and outcome",
	}, []string{"kind", "outcome"})

	InsightReports = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "allocai_insight_reports_total",
		Help: "Insight reports produced, labelled ai or fallback",
	}, []string{"source"})

	AssistantLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "allocai_assistant_request_duration_seconds",
		Help:    "Latency of LLM completion requests",
		Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 45},
	})
)
