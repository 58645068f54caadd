package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	hubServersTotal = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "hub_servers_total",
		Help: "Total number of listed servers by verification state.",
	}, []string{"verified"})

	hubRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hub_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	hubRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hub_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	hubVerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hub_website_verifications_total",
		Help: "Total website ownership verification attempts by outcome.",
	}, []string{"outcome"})

	hubStatusProbesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hub_status_probes_total",
		Help: "Total game-port liveness probes by result.",
	}, []string{"result"})

	hubHypeVotesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hub_hype_votes_total",
		Help: "Total hype votes recorded.",
	})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		hubRequestsTotal.WithLabelValues(method, path, status).Inc()
		hubRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordVerification records a website verification attempt outcome.
func RecordVerification(outcome string) {
	hubVerificationsTotal.WithLabelValues(outcome).Inc()
}

// RecordStatusProbe records a game-port liveness probe result.
func RecordStatusProbe(success bool) {
	if success {
		hubStatusProbesTotal.WithLabelValues("success").Inc()
	} else {
		hubStatusProbesTotal.WithLabelValues("failure").Inc()
	}
}

// RecordHypeVote records a hype vote.
func RecordHypeVote() {
	hubHypeVotesTotal.Inc()
}

// SetServersGauge sets the listed-servers gauge for a verification state.
func SetServersGauge(verified string, count float64) {
	hubServersTotal.WithLabelValues(verified).Set(count)
}
