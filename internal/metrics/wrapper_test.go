package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestWrapper() (*Metrics, *MetricsWrapper, *prometheus.Registry) {
	registry := prometheus.NewRegistry()
	metrics := NewWithRegistry(registry)
	return metrics, NewWrapper(metrics), registry
}

func TestNewWrapper(t *testing.T) {
	metrics, wrapper, _ := newTestWrapper()

	if wrapper == nil {
		t.Fatal("NewWrapper returned nil")
	}
	if wrapper.m != metrics {
		t.Error("Wrapper does not contain correct metrics instance")
	}
}

func TestMetricsWrapper_CacheSize(t *testing.T) {
	metrics, wrapper, _ := newTestWrapper()

	if v := testutil.ToFloat64(metrics.RecommendCacheEntries); v != 0 {
		t.Errorf("Expected initial gauge value 0, got %f", v)
	}

	wrapper.CacheSize(10)
	wrapper.CacheSize(4)
	if v := testutil.ToFloat64(metrics.RecommendCacheEntries); v != 4 {
		t.Errorf("Expected gauge value 4 after CacheSize, got %f", v)
	}
}

func TestMetricsWrapper_LatencyHistograms(t *testing.T) {
	_, wrapper, registry := newTestWrapper()

	wrapper.PredictionSucceeded("P1", 200*time.Millisecond)
	wrapper.PredictionFailed(false, 1500*time.Millisecond)
	wrapper.RecommendUpstream(time.Second, nil)

	if n := testutil.CollectAndCount(registry, "prediction_latency_seconds"); n != 1 {
		t.Errorf("Expected one prediction latency histogram, got %d", n)
	}
	if n := testutil.CollectAndCount(registry, "recommend_latency_seconds"); n != 1 {
		t.Errorf("Expected one recommendation latency histogram, got %d", n)
	}
}

func TestMetricsWrapper_PredictionOutcomes(t *testing.T) {
	metrics, wrapper, registry := newTestWrapper()

	wrapper.PredictionSucceeded("P2", 150*time.Millisecond)
	wrapper.PredictionSucceeded("P2", 120*time.Millisecond)
	wrapper.PredictionSucceeded("P4", 90*time.Millisecond)
	wrapper.PredictionFailed(false, 50*time.Millisecond)
	wrapper.PredictionFailed(true, 10*time.Second)

	testCases := []struct {
		name     string
		metric   prometheus.Collector
		expected float64
	}{
		{"total", metrics.PredictionsTotal, 5},
		{"failures", metrics.PredictionFailures, 2},
		{"timeouts", metrics.PredictionTimeouts, 1},
		{"class P2", metrics.PredictedClasses.WithLabelValues("P2"), 2},
		{"class P4", metrics.PredictedClasses.WithLabelValues("P4"), 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if v := testutil.ToFloat64(tc.metric); v != tc.expected {
				t.Errorf("Expected %f, got %f", tc.expected, v)
			}
		})
	}

	if rate := GetFailureRate(registry); rate != 0.4 {
		t.Errorf("Expected failure rate 0.4, got %f", rate)
	}
}

func TestMetricsWrapper_RecommendMethods(t *testing.T) {
	metrics, wrapper, _ := newTestWrapper()

	wrapper.RecommendRequested()
	wrapper.RecommendRequested()
	wrapper.RecommendCacheHit()
	wrapper.RecommendUpstream(300*time.Millisecond, nil)
	wrapper.RecommendUpstream(2*time.Second, errors.New("upstream down"))

	if v := testutil.ToFloat64(metrics.RecommendRequests); v != 2 {
		t.Errorf("Expected 2 requests, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.RecommendCacheHits); v != 1 {
		t.Errorf("Expected 1 cache hit, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.RecommendUpstreamErrors); v != 1 {
		t.Errorf("Expected 1 upstream error, got %f", v)
	}
}

func TestGetFailureRate_NoPredictions(t *testing.T) {
	_, _, registry := newTestWrapper()

	if rate := GetFailureRate(registry); rate != 0 {
		t.Errorf("Expected failure rate 0 without predictions, got %f", rate)
	}
}

func TestMetricsWrapper_ConcurrentAccess(t *testing.T) {
	metrics, wrapper, _ := newTestWrapper()

	done := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				wrapper.PredictionSucceeded("P1", time.Millisecond)
				wrapper.RecommendCacheHit()
			}
			done <- true
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}

	expected := 1000.0 // 10 goroutines * 100 increments
	if v := testutil.ToFloat64(metrics.PredictionsTotal); v != expected {
		t.Errorf("Expected %f predictions after concurrent access, got %f", expected, v)
	}
	if v := testutil.ToFloat64(metrics.RecommendCacheHits); v != expected {
		t.Errorf("Expected %f cache hits after concurrent access, got %f", expected, v)
	}
}

func TestMetricsWrapper_NilGuard(t *testing.T) {
	wrapper := &MetricsWrapper{m: nil}

	// NewWrapper ensures m is never nil in practice
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic when accessing nil metrics")
		}
	}()

	wrapper.RecommendRequested()
}

func BenchmarkMetricsWrapper_PredictionSucceeded(b *testing.B) {
	_, wrapper, _ := newTestWrapper()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		wrapper.PredictionSucceeded("P3", time.Millisecond)
	}
}
