package httpapi

import (
	"github.com/prometheus/client_golang/prometheus"
)

// metrics holds the request-level Prometheus metrics. Route labels use the
// chi route pattern, not the raw path, to keep cardinality bounded.
type metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authkeeper_http_requests_total",
				Help: "Total number of HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "authkeeper_http_request_duration_seconds",
				Help:    "HTTP request duration by method and route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	reg.MustRegister(m.requestsTotal)
	reg.MustRegister(m.requestDuration)

	return m
}
