package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the proxy's Prometheus collectors.
type Metrics struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
	Errors   *prometheus.CounterVec
}

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walletdash_http_requests_total",
				Help: "Total number of proxied HTTP requests",
			},
			[]string{"route", "method", "status"},
		),
		Duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "walletdash_http_request_duration_seconds",
				Help:    "Duration of proxied HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		Errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walletdash_api_errors_total",
				Help: "Total number of failed proxied calls by error kind",
			},
			[]string{"kind"},
		),
	}
}
