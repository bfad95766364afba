package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"credit-risk/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockMetrics implements Recorder for testing
type MockMetrics struct {
	mu           sync.Mutex
	successes    []string
	failures     int
	timeouts     int
	requests     int
	cacheHits    int
	upstreamErrs int
	cacheSize    int
}

func (m *MockMetrics) PredictionSucceeded(label string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.successes = append(m.successes, label)
}

func (m *MockMetrics) PredictionFailed(timedOut bool, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
	if timedOut {
		m.timeouts++
	}
}

func (m *MockMetrics) RecommendRequested() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests++
}

func (m *MockMetrics) RecommendCacheHit() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cacheHits++
}

func (m *MockMetrics) RecommendUpstream(d time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.upstreamErrs++
	}
}

func (m *MockMetrics) CacheSize(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cacheSize = n
}

type fakeRunner struct {
	label string
	err   error
	got   []byte
}

func (f *fakeRunner) Predict(ctx context.Context, record []byte) (string, error) {
	f.got = record
	return f.label, f.err
}

type fakeRecommender struct {
	mu     sync.Mutex
	text   string
	err    error
	calls  int
	prompt string
}

func (f *fakeRecommender) Recommend(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.prompt = prompt
	return f.text, f.err
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) (*http.Response, map[string]string) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	resp := rec.Result()
	var out map[string]string
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

const sampleBody = `{"NETMONTHLYINCOME": 18000, "AGE": 38, "CC_Flag": "1", "PL_Flag": 0, "MARITALSTATUS": "Single", "EDUCATION": "SSC", "GENDER": "M", "Credit_Score": 570}`

func TestHandlePredict(t *testing.T) {
	testCases := []struct {
		name       string
		runner     *fakeRunner
		body       string
		wantStatus int
		want       map[string]string
	}{
		{
			name:       "success",
			runner:     &fakeRunner{label: "P2"},
			body:       sampleBody,
			wantStatus: http.StatusOK,
			want:       map[string]string{"predictedClass": "P2"},
		},
		{
			name:       "child failure carries stderr",
			runner:     &fakeRunner{err: &ProcessError{Err: errors.New("exit status 1"), Stderr: "invalid JSON input"}},
			body:       sampleBody,
			wantStatus: http.StatusInternalServerError,
			want:       map[string]string{"error": "Prediction failed", "details": "invalid JSON input"},
		},
		{
			name:       "malformed body",
			runner:     &fakeRunner{label: "P1"},
			body:       `{"AGE": `,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mm := &MockMetrics{}
			s := New(Options{Runner: tc.runner, Metrics: mm, Gatherer: prometheus.NewRegistry(), CacheSize: 8})

			resp, out := doRequest(t, s.Handler(), http.MethodPost, "/predict", tc.body)
			assert.Equal(t, tc.wantStatus, resp.StatusCode)
			if tc.want != nil {
				assert.Equal(t, tc.want, out)
			}
			if tc.wantStatus == http.StatusOK {
				assert.JSONEq(t, tc.body, string(tc.runner.got))
				assert.Equal(t, []string{"P2"}, mm.successes)
			}
			if tc.wantStatus == http.StatusInternalServerError {
				assert.Equal(t, 1, mm.failures)
			}
		})
	}

	t.Run("method not allowed", func(t *testing.T) {
		s := New(Options{Runner: &fakeRunner{}, CacheSize: 1})
		resp, _ := doRequest(t, s.Handler(), http.MethodGet, "/predict", "")
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})
}

func TestHandleRecommend(t *testing.T) {
	body := `{"predictedClass": "P3", "AGE": 38, "GENDER": "M", "CC_Flag": "1"}`
	reordered := `{"GENDER": "M", "CC_Flag": "1", "AGE": 38, "predictedClass": "P3"}`

	t.Run("caches by canonical request", func(t *testing.T) {
		mm := &MockMetrics{}
		rec := &fakeRecommender{text: "1. Pay down card balances."}
		s := New(Options{Recommender: rec, Metrics: mm, CacheSize: 8})

		resp, out := doRequest(t, s.Handler(), http.MethodPost, "/predict/recommend", body)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "1. Pay down card balances.", out["recommendations"])
		assert.Contains(t, rec.prompt, "Predicted Credit Class: P3")
		assert.Contains(t, rec.prompt, "- Age: 38")
		assert.Contains(t, rec.prompt, "- Credit Card Active: Yes")
		assert.Contains(t, rec.prompt, "- Credit Score: unknown")

		resp, out = doRequest(t, s.Handler(), http.MethodPost, "/predict/recommend", reordered)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "1. Pay down card balances.", out["recommendations"])

		assert.Equal(t, 1, rec.calls)
		assert.Equal(t, 2, mm.requests)
		assert.Equal(t, 1, mm.cacheHits)
		assert.Equal(t, 1, mm.cacheSize)
	})

	t.Run("upstream failure", func(t *testing.T) {
		mm := &MockMetrics{}
		rec := &fakeRecommender{err: errors.New("API error: status 429")}
		s := New(Options{Recommender: rec, Metrics: mm, CacheSize: 8})

		resp, out := doRequest(t, s.Handler(), http.MethodPost, "/predict/recommend", body)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Equal(t, map[string]string{"error": "Failed to fetch recommendations"}, out)
		assert.Equal(t, 1, mm.upstreamErrs)
		assert.Equal(t, 0, s.cache.Len(), "failures must not be cached")
	})

	t.Run("missing key", func(t *testing.T) {
		s := New(Options{CacheSize: 8})
		resp, _ := doRequest(t, s.Handler(), http.MethodPost, "/predict/recommend", body)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

		s = New(Options{Recommender: NewGeminiClient("", "m", "http://127.0.0.1:1", time.Second), CacheSize: 8})
		resp, _ = doRequest(t, s.Handler(), http.MethodPost, "/predict/recommend", body)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})

	t.Run("malformed body", func(t *testing.T) {
		s := New(Options{Recommender: &fakeRecommender{}, CacheSize: 8})
		resp, _ := doRequest(t, s.Handler(), http.MethodPost, "/predict/recommend", `[1, 2]`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestHealthAndMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(registry)
	s := New(Options{
		Runner:    &fakeRunner{label: "P1"},
		Metrics:   metrics.NewWrapper(m),
		Gatherer:  registry,
		CacheSize: 8,
	})

	resp, _ := doRequest(t, s.Handler(), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "OK", string(data))
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	resp, _ = doRequest(t, s.Handler(), http.MethodPost, "/predict", sampleBody)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "predictions_total 1")
	assert.Contains(t, rec.Body.String(), `predicted_class_total{class="P1"} 1`)
}

func TestPredictFailureLogsFailureRate(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	defer func() { log.Logger = prev }()

	registry := prometheus.NewRegistry()
	wrapper := metrics.NewWrapper(metrics.NewWithRegistry(registry))
	runner := &fakeRunner{label: "P1"}
	s := New(Options{Runner: runner, Metrics: wrapper, Gatherer: registry, CacheSize: 1})

	resp, _ := doRequest(t, s.Handler(), http.MethodPost, "/predict", sampleBody)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	runner.err = &ProcessError{Err: errors.New("exit status 1"), Stderr: "boom"}
	resp, _ = doRequest(t, s.Handler(), http.MethodPost, "/predict", sampleBody)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	assert.Contains(t, buf.String(), `"failure_rate":0.5`)
	assert.Equal(t, 0.5, metrics.GetFailureRate(registry))
}

func TestServerStartStopsOnCancel(t *testing.T) {
	s := New(Options{Port: 0, Runner: &fakeRunner{}, CacheSize: 1})
	s.server.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after cancel")
	}
}
