// Package metrics exposes Prometheus metrics for tool call conversion.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Conversion metrics
	decodesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toolcall_decode_total",
			Help: "Total number of decode operations",
		},
		[]string{"source", "convention"},
	)

	decodedCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toolcall_decoded_calls_total",
			Help: "Total number of tool calls produced by decoding",
		},
		[]string{"source", "convention"},
	)

	encodesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toolcall_encode_total",
			Help: "Total number of encode operations",
		},
		[]string{"target", "dialect"},
	)

	encodedCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toolcall_encoded_calls_total",
			Help: "Total number of tool calls rendered by encoding",
		},
		[]string{"target", "dialect"},
	)

	droppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toolcall_dropped_total",
			Help: "Total number of tool calls or blocks dropped as malformed",
		},
		[]string{"stage"},
	)

	// Request metrics
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toolcall_http_requests_total",
			Help: "Total number of HTTP requests received",
		},
		[]string{"method", "path", "status"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "toolcall_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	requestPayloadSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "toolcall_http_request_payload_bytes",
			Help:    "HTTP request payload size in bytes",
			Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
		},
		[]string{"method", "path"},
	)
)

// Recorder records conversion and request metrics. It implements
// toolcall.Recorder.
type Recorder struct{}

// NewRecorder creates a new metrics recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

// RecordDecode records one decode and the number of calls it produced
func (r *Recorder) RecordDecode(source, convention string, calls int) {
	decodesTotal.WithLabelValues(source, convention).Inc()
	decodedCallsTotal.WithLabelValues(source, convention).Add(float64(calls))
}

// RecordEncode records one encode and the number of calls it rendered
func (r *Recorder) RecordEncode(target, dialect string, calls int) {
	if dialect == "" {
		dialect = "none"
	}
	encodesTotal.WithLabelValues(target, dialect).Inc()
	encodedCallsTotal.WithLabelValues(target, dialect).Add(float64(calls))
}

// RecordDrop records a dropped tool call or block
func (r *Recorder) RecordDrop(stage string) {
	droppedTotal.WithLabelValues(stage).Inc()
}

// RecordRequest records a request with its metrics
func (r *Recorder) RecordRequest(method, path string, status int, duration time.Duration, requestSize int64) {
	statusStr := strconv.Itoa(status)

	requestsTotal.WithLabelValues(method, path, statusStr).Inc()
	requestDuration.WithLabelValues(method, path, statusStr).Observe(duration.Seconds())

	if requestSize > 0 {
		requestPayloadSize.WithLabelValues(method, path).Observe(float64(requestSize))
	}
}

// GinMiddleware records request metrics for every handled route
func (r *Recorder) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		r.RecordRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start), c.Request.ContentLength)
	}
}
