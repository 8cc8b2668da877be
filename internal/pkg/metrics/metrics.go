package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "saferoute",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "saferoute",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"method", "path"})

	// Pipeline metrics
	PlansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "saferoute",
		Subsystem: "planner",
		Name:      "plans_total",
		Help:      "Planning runs by outcome (done|failed) and failure kind",
	}, []string{"outcome", "kind"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "saferoute",
		Subsystem: "planner",
		Name:      "stage_duration_seconds",
		Help:      "Duration of each pipeline stage",
		Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"stage"})

	SegmentsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "saferoute",
		Subsystem: "planner",
		Name:      "segments_total",
		Help:      "Risk-tagged segments emitted by category",
	}, []string{"risk"})

	// Upstream collaborators
	UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "saferoute",
		Subsystem: "upstream",
		Name:      "requests_total",
		Help:      "Requests to external collaborators by outcome",
	}, []string{"upstream", "outcome"})

	UpstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "saferoute",
		Subsystem: "upstream",
		Name:      "request_duration_seconds",
		Help:      "Latency of requests to external collaborators",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"upstream"})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "saferoute",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "saferoute",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "saferoute",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket plan streams",
	})
)

// ObserveUpstream records one call to an external collaborator.
func ObserveUpstream(upstream string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	UpstreamRequests.WithLabelValues(upstream, outcome).Inc()
	UpstreamDuration.WithLabelValues(upstream).Observe(time.Since(start).Seconds())
}

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	return func(c *fiber.Ctx) error {
		handler(c.Context())
		return nil
	}
}
