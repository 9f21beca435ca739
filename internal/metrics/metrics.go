// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Watcher
	SourceChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fxwatch_source_checks_total",
			Help: "Source checks by outcome (processed, up_to_date, failed)",
		},
		[]string{"source", "result"},
	)

	SourceLastCheck = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fxwatch_source_last_check_timestamp_seconds",
			Help: "Unix time of the last successful check per source",
		},
		[]string{"source"},
	)

	// Pipeline
	ArticlesProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fxwatch_articles_processed_total",
			Help: "Articles summarized and dispatched",
		},
		[]string{"source"},
	)

	SummariesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fxwatch_summaries_total",
			Help: "Summaries generated by mode (ai, fallback)",
		},
		[]string{"mode"},
	)

	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fxwatch_deliveries_total",
			Help: "Delivery attempts by channel and status",
		},
		[]string{"channel", "status"},
	)

	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fxwatch_nats_messages_published_total",
			Help: "Article events published to NATS",
		},
		[]string{"subject", "status"},
	)

	// HTTP
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fxwatch_http_requests_total",
			Help: "HTTP requests served by the ops API",
		},
		[]string{"method", "path", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fxwatch_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Status label helper.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
