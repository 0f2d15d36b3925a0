package api

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	gatewayRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clouddb",
			Subsystem: "gateway",
			Name:      "requests_total",
			Help:      "Query API requests by action and response status.",
		},
		[]string{"action", "status"},
	)

	gatewayDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clouddb",
			Subsystem: "gateway",
			Name:      "request_duration_seconds",
			Help:      "Query API latency by action.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"action"},
	)
)

func init() {
	prometheus.MustRegister(gatewayRequests, gatewayDuration)
}

func observeQuery(action string, status int, elapsed time.Duration) {
	if action == "" {
		action = "none"
	}
	gatewayRequests.WithLabelValues(action, strconv.Itoa(status)).Inc()
	gatewayDuration.WithLabelValues(action).Observe(elapsed.Seconds())
}
