package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "merrimates_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "merrimates_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	domainOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "merrimates_operations_total",
			Help: "Total number of domain operations by outcome",
		},
		[]string{"operation", "status"},
	)

	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "merrimates_websocket_connections",
			Help: "Number of open websocket connections",
		},
	)
)

func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// RecordOperation 记录业务操作（signup、login、message_sent 等）
func RecordOperation(operation string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	domainOperationsTotal.WithLabelValues(operation, status).Inc()
}

// WebsocketConnected 连接数 +1 / -1
func WebsocketConnected(delta float64) {
	websocketConnections.Add(delta)
}
