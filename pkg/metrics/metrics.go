package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RemoteRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "survey_remote_requests_total",
			Help: "Number of requests sent to the survey backend",
		},
		[]string{"endpoint", "status"},
	)
	RemoteLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "survey_remote_latency_seconds",
			Help:    "Survey backend latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)
	RemoteRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "survey_remote_retries_total",
			Help: "Retries of backend requests by reason",
		},
		[]string{"reason"},
	)
	TokenFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "survey_token_fetches_total",
			Help: "Plugin token fetches from the identity service",
		},
		[]string{"result"},
	)
	DDLExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "survey_ddl_executions_total",
			Help: "SQL scripts executed against PostgreSQL",
		},
		[]string{"status"},
	)
	TitleCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "survey_title_cache_hits_total",
			Help: "Form title cache hits",
		},
	)
	TitleCacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "survey_title_cache_misses_total",
			Help: "Form title cache refreshes",
		},
	)
	APIRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "survey_api_requests_total",
			Help: "Designer API requests",
		},
		[]string{"method", "path", "status"},
	)
	APILatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "survey_api_latency_seconds",
			Help:    "Designer API latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

func init() {
	prometheus.MustRegister(
		RemoteRequests,
		RemoteLatency,
		RemoteRetries,
		TokenFetches,
		DDLExecutions,
		TitleCacheHits,
		TitleCacheMisses,
		APIRequests,
		APILatency,
	)
}
