// Package metrics exposes Prometheus counters for the API.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Registrations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "buildtogether_registrations_total",
		Help: "Users registered.",
	})
	ProjectsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "buildtogether_projects_created_total",
		Help: "Property proposals created.",
	})
	Joins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "buildtogether_joins_total",
		Help: "Join attempts by outcome.",
	}, []string{"outcome"})
	ChatMessages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "buildtogether_chat_messages_total",
		Help: "Chat messages stored and published.",
	})
	ChatPublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "buildtogether_chat_publish_failures_total",
		Help: "Chat messages stored but not published.",
	})
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "buildtogether_http_request_duration_seconds",
		Help:    "HTTP request latency by route and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// Handler serves the default registry.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

// Middleware records request latency under the matched route template.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		RequestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
