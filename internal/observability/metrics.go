package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broker_http_requests_total",
			Help: "Total number of HTTP requests processed by the chat broker.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "broker_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	submissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broker_submissions_total",
			Help: "Total number of message submissions by channel and result.",
		},
		[]string{"channel", "result"},
	)
	deliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broker_deliveries_total",
			Help: "Total number of per-recipient deliveries by channel.",
		},
		[]string{"channel"},
	)
	deliveryFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "broker_delivery_failures_total",
			Help: "Total number of delivery sink failures (skipped recipients).",
		},
	)
	historySize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "broker_history_size",
			Help: "Number of messages currently retained in history.",
		},
	)
	wsActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "broker_ws_active_connections",
			Help: "Number of active websocket sessions.",
		},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broker_ws_events_total",
			Help: "Total number of websocket session events.",
		},
		[]string{"event"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "broker_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		submissionsTotal,
		deliveriesTotal,
		deliveryFailuresTotal,
		historySize,
		wsActiveConnections,
		wsEventsTotal,
		amqpPublishErrorsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func IncSubmission(channel, result string) {
	submissionsTotal.WithLabelValues(channel, result).Inc()
}

func IncDelivery(channel string) {
	deliveriesTotal.WithLabelValues(channel).Inc()
}

func IncDeliveryFailure() {
	deliveryFailuresTotal.Inc()
}

func SetHistorySize(n int) {
	historySize.Set(float64(n))
}

func IncWSActive() {
	wsActiveConnections.Inc()
}

func DecWSActive() {
	wsActiveConnections.Dec()
}

func IncWSEvent(event string) {
	wsEventsTotal.WithLabelValues(event).Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
