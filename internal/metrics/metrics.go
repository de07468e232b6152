package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// Metrics holds the engine's prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	predictions      *prometheus.CounterVec
	cacheHits        *prometheus.CounterVec
	cacheMisses      *prometheus.CounterVec
	etlRecords       prometheus.Counter
	trainingDuration prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "retainly_http_requests_total",
			Help: "HTTP requests by method, path and status.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "retainly_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "retainly_predictions_total",
			Help: "Predictions served by kind and outcome.",
		}, []string{"kind", "outcome"}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "retainly_prediction_cache_hits_total",
			Help: "Prediction cache hits by kind.",
		}, []string{"kind"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "retainly_prediction_cache_misses_total",
			Help: "Prediction cache misses by kind.",
		}, []string{"kind"}),
		etlRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "retainly_etl_records_processed_total",
			Help: "Feature records written by ETL runs.",
		}),
		trainingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "retainly_training_duration_seconds",
			Help:    "Wall time of training runs.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
	}
	m.registry.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.predictions,
		m.cacheHits,
		m.cacheMisses,
		m.etlRecords,
		m.trainingDuration,
	)
	return m
}

// Registry exposes the collector registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) IncPrediction(kind, outcome string) {
	m.predictions.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) IncCacheHit(kind string) {
	m.cacheHits.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncCacheMiss(kind string) {
	m.cacheMisses.WithLabelValues(kind).Inc()
}

func (m *Metrics) AddETLRecords(n int) {
	m.etlRecords.Add(float64(n))
}

func (m *Metrics) ObserveTrainingDuration(d time.Duration) {
	m.trainingDuration.Observe(d.Seconds())
}

// GinMiddleware records request counts and latency per route.
func GinMiddleware(m *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Module wires the prometheus collectors.
var Module = fx.Module("metrics",
	fx.Provide(New),
)
