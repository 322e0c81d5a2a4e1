// Package metrics exposes the gateway's Prometheus counters.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loggw_requests_total",
			Help: "Gateway requests by route and response code",
		},
		[]string{"path", "code"},
	)

	upstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loggw_upstream_requests_total",
			Help: "Supervisor API requests by log kind and outcome",
		},
		[]string{"kind", "outcome"},
	)
)

// RecordRequest counts one handled gateway request.
func RecordRequest(path string, code int) {
	requestsTotal.WithLabelValues(path, strconv.Itoa(code)).Inc()
}

// RecordUpstreamRequest counts one Supervisor API call.
func RecordUpstreamRequest(kind string, outcome string) {
	upstreamRequestsTotal.WithLabelValues(kind, outcome).Inc()
}
