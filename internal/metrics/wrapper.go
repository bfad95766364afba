package metrics

import "time"

// MetricsWrapper adapts Metrics to the recorder interface used by the
// server handlers.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

// PredictionSucceeded records a prediction that produced label.
func (w *MetricsWrapper) PredictionSucceeded(label string, d time.Duration) {
	w.m.PredictionsTotal.Inc()
	w.m.PredictionLatency.Observe(d.Seconds())
	w.m.PredictedClasses.WithLabelValues(label).Inc()
}

// PredictionFailed records a failed prediction; timedOut marks a child
// process killed by the deadline.
func (w *MetricsWrapper) PredictionFailed(timedOut bool, d time.Duration) {
	w.m.PredictionsTotal.Inc()
	w.m.PredictionFailures.Inc()
	w.m.PredictionLatency.Observe(d.Seconds())
	if timedOut {
		w.m.PredictionTimeouts.Inc()
	}
}

func (w *MetricsWrapper) RecommendRequested() {
	w.m.RecommendRequests.Inc()
}

func (w *MetricsWrapper) RecommendCacheHit() {
	w.m.RecommendCacheHits.Inc()
}

func (w *MetricsWrapper) RecommendUpstream(d time.Duration, err error) {
	w.m.RecommendLatency.Observe(d.Seconds())
	if err != nil {
		w.m.RecommendUpstreamErrors.Inc()
	}
}

func (w *MetricsWrapper) CacheSize(n int) {
	w.m.RecommendCacheEntries.Set(float64(n))
}
