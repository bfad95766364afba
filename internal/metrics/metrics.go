// Package metrics provides Prometheus metrics for the credit-risk backend.
// It defines the prediction and recommendation metrics exposed on the
// /metrics endpoint of the serve command.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the backend service.
type Metrics struct {
	// Prediction metrics
	PredictionsTotal   prometheus.Counter     // Total number of prediction requests
	PredictionFailures prometheus.Counter     // Predictor processes that failed or produced no label
	PredictionTimeouts prometheus.Counter     // Predictor processes killed by the timeout
	PredictionLatency  prometheus.Histogram   // End-to-end predictor process latency
	PredictedClasses   *prometheus.CounterVec // Successful predictions by label

	// Recommendation metrics
	RecommendRequests       prometheus.Counter   // Total number of recommendation requests
	RecommendCacheHits      prometheus.Counter   // Requests answered from the cache
	RecommendUpstreamErrors prometheus.Counter   // Failed calls to the generative-language API
	RecommendLatency        prometheus.Histogram // Upstream call latency
	RecommendCacheEntries   prometheus.Gauge     // Entries currently cached
}

// New creates and registers all metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		PredictionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "predictions_total",
			Help: "Total number of prediction requests",
		}),
		PredictionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "prediction_failures_total",
			Help: "Total number of failed predictions",
		}),
		PredictionTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "prediction_timeouts_total",
			Help: "Total number of predictions killed by the timeout",
		}),
		PredictionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "prediction_latency_seconds",
			Help:    "Prediction latency in seconds (process spawn to label)",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
		}),
		PredictedClasses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "predicted_class_total",
			Help: "Successful predictions by risk class",
		}, []string{"class"}),
		RecommendRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "recommend_requests_total",
			Help: "Total number of recommendation requests",
		}),
		RecommendCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "recommend_cache_hits_total",
			Help: "Total number of recommendations served from the cache",
		}),
		RecommendUpstreamErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "recommend_upstream_errors_total",
			Help: "Total number of failed generative-language API calls",
		}),
		RecommendLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "recommend_latency_seconds",
			Help:    "Generative-language API latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		RecommendCacheEntries: factory.NewGauge(prometheus.GaugeOpts{
			Name: "recommend_cache_entries",
			Help: "Number of cached recommendations",
		}),
	}
}

// GetFailureRate returns the ratio of failed to total predictions gathered
// from g, or 0 if no predictions have been recorded.
func GetFailureRate(g prometheus.Gatherer) float64 {
	var total, failures float64

	metricFamilies, err := g.Gather()
	if err != nil {
		return 0
	}

	for _, mf := range metricFamilies {
		switch mf.GetName() {
		case "predictions_total":
			for _, m := range mf.Metric {
				total = m.GetCounter().GetValue()
			}
		case "prediction_failures_total":
			for _, m := range mf.Metric {
				failures = m.GetCounter().GetValue()
			}
		}
	}

	// Avoid division by zero
	if total == 0 {
		return 0
	}
	return failures / total
}
