package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptforge_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "promptforge_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	GenerationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptforge_generations_total",
			Help: "Total number of prompt generations by outcome and prompt type.",
		},
		[]string{"status", "type"},
	)

	GenerationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "promptforge_generation_duration_seconds",
			Help:    "Upstream generation call duration in seconds.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 45},
		},
	)

	QuotaDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "promptforge_quota_denied_total",
			Help: "Total number of requests denied by the daily usage quota.",
		},
	)

	QuotaStoreDegradedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "promptforge_quota_store_degraded_total",
			Help: "Total number of quota checks that hit an unreachable counter store.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		GenerationsTotal,
		GenerationDuration,
		QuotaDeniedTotal,
		QuotaStoreDegradedTotal,
	)
}
