// Package metrics collects and exposes Prometheus metrics for the API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector registers and records the application's Prometheus metrics.
type Collector struct {
	loginTotal      *prometheus.CounterVec
	httpStatusTotal *prometheus.CounterVec
	httpLatency     prometheus.Histogram
}

// NewCollector creates a Collector and registers its metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loginTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "noughts_oauth_login_total",
			Help: "OAuth callback outcomes by provider and result.",
		}, []string{"provider", "result"}),
		httpStatusTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "noughts_http_status_total",
			Help: "HTTP responses by status code.",
		}, []string{"status_code"}),
		httpLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "noughts_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(c.loginTotal, c.httpStatusTotal, c.httpLatency)

	return c
}

// RecordLogin records one OAuth callback outcome.
func (c *Collector) RecordLogin(provider, result string) {
	c.loginTotal.WithLabelValues(provider, result).Inc()
}

// RecordRequest records the status code and latency of one HTTP request.
func (c *Collector) RecordRequest(statusCode int, duration time.Duration) {
	c.httpStatusTotal.WithLabelValues(strconv.Itoa(statusCode)).Inc()
	c.httpLatency.Observe(duration.Seconds())
}

// Handler returns the HTTP handler serving the /metrics scrape endpoint.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
