package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hids_upstream_requests_total",
			Help: "Total number of requests made to upstream alert sources",
		},
		[]string{"source", "operation", "outcome"},
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hids_upstream_request_duration_seconds",
			Help:    "Time taken by upstream alert source requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source", "operation"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hids_http_requests_total",
			Help: "Total number of HTTP requests served",
		},
		[]string{"method", "status"},
	)

	// AlertLookups counts by-id lookups across sources by result.
	AlertLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hids_alert_lookups_total",
			Help: "Total number of alert lookups by outcome",
		},
		[]string{"outcome"},
	)
)
