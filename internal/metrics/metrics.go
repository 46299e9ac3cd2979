// Package metrics exposes Prometheus collectors for the API and relay.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "classroom_http_requests_total",
		Help: "HTTP requests by route, method and status.",
	}, []string{"route", "method", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "classroom_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})

	// RelayConnections is the number of open relay sockets.
	RelayConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "classroom_relay_connections",
		Help: "Open real-time relay connections.",
	})

	// RelayEvents counts relay events by name and outcome (delivered, dropped, rejected).
	RelayEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "classroom_relay_events_total",
		Help: "Relay events by event name and outcome.",
	}, []string{"event", "outcome"})

	// DomainEvents counts successful domain writes such as message_sent or submission_graded.
	DomainEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "classroom_domain_events_total",
		Help: "Completed domain operations by kind.",
	}, []string{"kind"})

	// JobsProcessed counts worker jobs by type and result.
	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "classroom_jobs_processed_total",
		Help: "Background jobs handled by the worker.",
	}, []string{"type", "result"})
)

// Record increments the domain counter for kind.
func Record(kind string) {
	DomainEvents.WithLabelValues(kind).Inc()
}

// GinMiddleware records request counts and latency using the matched route template.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		httpRequests.WithLabelValues(route, method, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
	}
}
