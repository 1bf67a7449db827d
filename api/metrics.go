package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics holds the server's Prometheus collectors on a private
// registry, so multiple servers in one process never collide.
type metrics struct {
	registry *prometheus.Registry

	sessionsCreated prometheus.Counter
	sessionsDeleted prometheus.Counter
	stepsTotal      prometheus.Counter
	stepDuration    prometheus.Histogram
	requestsTotal   *prometheus.CounterVec
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &metrics{
		registry: registry,

		sessionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "pickwise_sessions_created_total",
			Help: "Number of simulation sessions created.",
		}),
		sessionsDeleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "pickwise_sessions_deleted_total",
			Help: "Number of simulation sessions deleted.",
		}),
		stepsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "pickwise_simulation_steps_total",
			Help: "Number of simulation steps executed.",
		}),
		stepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pickwise_step_duration_seconds",
			Help:    "Wall time of one simulation step.",
			Buckets: prometheus.DefBuckets,
		}),
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pickwise_http_requests_total",
			Help: "HTTP requests by method and status.",
		}, []string{"method", "status"}),
	}
}
