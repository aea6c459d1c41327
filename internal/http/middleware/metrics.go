// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file exposes Prometheus instrumentation. Metrics() measures HTTP
// request counts, latencies, in-flight concurrency, and response sizes with
// bounded label cardinality:
//
//   - method: HTTP method verb (GET/POST/…)
//   - path:   the registered Gin route (e.g. /api/v1/submissions); falls back
//     to the raw URL path when no route matched
//   - status: numeric status code as a string (e.g. "200", "429")
//
// It also carries the ingestion-domain collectors: submissions received by
// outcome and respondents created by provenance channel, incremented by the
// HTTP layer as submissions are delivered and processed. All collectors are
// safe for concurrent use.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// httpReqs counts requests by method, route path, and status code.
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	// httpLat records request duration in seconds by method and route path.
	// Status is omitted to keep histogram cardinality lower.
	httpLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// httpInflight gauges the number of in-flight requests.
	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_inflight",
			Help: "Current number of in-flight HTTP requests.",
		},
	)

	// httpRespSize captures response sizes in bytes. Buckets are tuned for
	// typical JSON API payload sizes.
	httpRespSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_response_size_bytes",
			Help: "Size of HTTP responses in bytes.",
			Buckets: []float64{
				200, 500, 1 << 10, 2 << 10, 5 << 10,
				10 << 10, 25 << 10, 50 << 10,
				100 << 10, 250 << 10, 500 << 10,
				1 << 20,
			},
		},
		[]string{"method", "path"},
	)

	// submissionsReceived counts accepted submissions by ack outcome
	// ("queued" or "duplicate").
	submissionsReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "submissions_received_total",
			Help: "Total submissions accepted by the ingestion API, by outcome.",
		},
		[]string{"outcome"},
	)

	// respondentsCreated counts new respondent identities by provenance.
	respondentsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "respondents_created_total",
			Help: "Total new respondents registered, by provenance channel.",
		},
		[]string{"source"},
	)
)

func init() {
	prometheus.MustRegister(httpReqs, httpLat, httpInflight, httpRespSize,
		submissionsReceived, respondentsCreated)
}

// ObserveSubmission increments the submission-received counter for outcome.
func ObserveSubmission(outcome string) {
	submissionsReceived.WithLabelValues(outcome).Inc()
}

// ObserveRespondentCreated increments the new-respondent counter for source.
func ObserveRespondentCreated(source string) {
	respondentsCreated.WithLabelValues(source).Inc()
}

// Metrics returns a Gin middleware that instruments requests with Prometheus.
//
// Usage:
//
//	r := gin.New()
//	r.Use(middleware.Metrics())
//	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
//
// The "path" label uses the registered route (c.FullPath()) to avoid
// unbounded cardinality from raw URLs; unmatched requests (404) fall back to
// the raw path.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInflight.Inc()
		defer httpInflight.Dec()

		c.Next()

		dur := time.Since(start).Seconds()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())
		size := c.Writer.Size() // -1 when unknown

		httpReqs.WithLabelValues(method, path, status).Inc()
		httpLat.WithLabelValues(method, path).Observe(dur)
		if size >= 0 {
			httpRespSize.WithLabelValues(method, path).Observe(float64(size))
		}
	}
}
