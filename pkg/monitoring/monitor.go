package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	AIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "prepx_ai_request_duration_seconds",
			Help:    "Duration of generation service calls",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 60},
		},
		[]string{"operation", "outcome"},
	)

	AIRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prepx_ai_retries_total",
			Help: "Retries of generation service calls after a transient failure",
		},
		[]string{"operation"},
	)

	UsageDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prepx_usage_decisions_total",
			Help: "Usage quota decisions by feature",
		},
		[]string{"feature", "decision"}, // allowed, denied, fail_open
	)

	MaterializeSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prepx_materialize_skipped_total",
			Help: "Records skipped during learning path materialization",
		},
		[]string{"record"},
	)
)

func Init() {
	prometheus.MustRegister(RequestCounter)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(AIRequestDuration)
	prometheus.MustRegister(AIRetries)
	prometheus.MustRegister(UsageDecisions)
	prometheus.MustRegister(MaterializeSkipped)
}

// ObserveAI 记录一次生成调用
func ObserveAI(operation string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	AIRequestDuration.WithLabelValues(operation, outcome).Observe(time.Since(start).Seconds())
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
