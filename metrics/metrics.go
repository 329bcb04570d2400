// Package metrics provides Prometheus metrics for mediagate operations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediagate_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediagate_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Link issuance metrics
	LinkIssuanceTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediagate_link_issuance_total",
			Help: "Total number of playback links issued",
		},
		[]string{"provider", "mode"}, // mode: "direct", "proxy", "proxy_fallback"
	)

	// Streaming proxy metrics
	StreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediagate_stream_requests_total",
			Help: "Total number of streaming proxy requests",
		},
		[]string{"provider", "status"}, // status: "ok", "partial", "rejected", "upstream_error"
	)

	StreamBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediagate_stream_bytes_total",
			Help: "Total bytes proxied to clients",
		},
		[]string{"provider"},
	)

	// Provider upstream metrics
	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediagate_upstream_request_duration_seconds",
			Help:    "Provider upstream call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "operation"},
	)

	CredentialRefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediagate_credential_refreshes_total",
			Help: "Total number of provider credential refreshes",
		},
		[]string{"provider", "status"}, // status: "success", "failure"
	)

	// Token metrics
	TokenVerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediagate_token_verifications_total",
			Help: "Total number of token verification attempts",
		},
		[]string{"result"}, // "valid", "expired", "malformed"
	)
)
