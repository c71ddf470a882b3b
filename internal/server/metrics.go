package server

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ledgerRecordsAppendedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hashledger_records_appended_total",
		Help: "Total records appended since process start.",
	})

	ledgerRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hashledger_records",
		Help: "Current number of records in the ledger, genesis included.",
	})

	ledgerIntegrityChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hashledger_integrity_checks_total",
		Help: "Total ledger integrity checks by result.",
	}, []string{"result"})

	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hashledger_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hashledger_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
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
			path = "unmatched"
		}

		requestsTotal.WithLabelValues(method, path, status).Inc()
		requestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordIntegrityCheck records the outcome of a ledger verification.
func RecordIntegrityCheck(valid bool) {
	if valid {
		ledgerIntegrityChecksTotal.WithLabelValues("valid").Inc()
	} else {
		ledgerIntegrityChecksTotal.WithLabelValues("broken").Inc()
	}
}

// SetRecordsGauge sets the current ledger length.
func SetRecordsGauge(n int) {
	ledgerRecords.Set(float64(n))
}

func recordAppend(length int) {
	ledgerRecordsAppendedTotal.Inc()
	SetRecordsGauge(length)
}
