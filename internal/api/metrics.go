package api

import "github.com/prometheus/client_golang/prometheus"

var (
	pagesFetched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "psefetch_pages_total",
			Help: "Pages fetched from the PSE API, by outcome.",
		},
		[]string{"outcome"},
	)

	recordsFetched = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "psefetch_records_total",
			Help: "Records accumulated across all fetches.",
		},
	)

	retryAttempts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "psefetch_retries_total",
			Help: "Retry attempts made by the backoff executor.",
		},
	)

	requestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "psefetch_request_duration_seconds",
			Help:    "Duration of individual page requests.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// RegisterMetrics registers the fetcher's collectors with reg. Call once
// per process.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(pagesFetched, recordsFetched, retryAttempts, requestDuration)
}
