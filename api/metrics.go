// Prometheus instrumentation for the gateway. Registered via promauto
// on package init; scraped at /metrics (see server.go).
package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpReqTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cashswap_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cashswap_http_request_duration_seconds",
		Help:    "Request latency",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"method", "endpoint"})

	requestsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cashswap_requests_created_total",
		Help: "Exchange requests created, by type",
	}, []string{"type"})

	matchAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cashswap_match_attempts_total",
		Help: "Match proposals, by outcome",
	}, []string{"outcome"})
)

const (
	matchOutcomeMatched  = "matched"
	matchOutcomeNoMatch  = "no_match"
	matchOutcomeConflict = "conflict"
	matchOutcomeError    = "error"
)
