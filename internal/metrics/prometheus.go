// Package metrics provides Prometheus metrics collection for RiskWatch services
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP metrics
var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "riskwatch",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"service", "method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "riskwatch",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"service", "method", "path"},
	)
)

// Engine metrics
var (
	// LoginAttemptsTotal counts recorded login attempts by outcome
	LoginAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "riskwatch",
			Name:      "login_attempts_total",
			Help:      "Total number of login attempts recorded",
		},
		[]string{"outcome"},
	)

	// AnomaliesFlaggedTotal counts login evaluations flagged suspicious
	AnomaliesFlaggedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "riskwatch",
			Name:      "anomalies_flagged_total",
			Help:      "Total number of logins flagged as suspicious",
		},
		[]string{"severity"},
	)

	// BruteForceDetectionsTotal counts brute force window trips
	BruteForceDetectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "riskwatch",
			Name:      "brute_force_detections_total",
			Help:      "Total number of brute force detections",
		},
	)

	// RiskRecomputesTotal counts risk assessment recomputations by level
	RiskRecomputesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "riskwatch",
			Name:      "risk_recomputes_total",
			Help:      "Total number of risk assessment recomputations",
		},
		[]string{"level"},
	)

	// AlertsDispatchedTotal counts alert deliveries by channel and status
	AlertsDispatchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "riskwatch",
			Name:      "alerts_dispatched_total",
			Help:      "Total number of security alert delivery attempts",
		},
		[]string{"channel", "status"},
	)

	// DevicesRegisteredTotal counts new device registrations
	DevicesRegisteredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "riskwatch",
			Name:      "devices_registered_total",
			Help:      "Total number of newly registered devices",
		},
	)
)

// GinMiddleware returns a Gin middleware that records HTTP metrics
func GinMiddleware(serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		httpRequestsTotal.WithLabelValues(serviceName, c.Request.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(serviceName, c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
