// Package server is the HTTP backend of the credit-risk pipeline. It runs
// the predictor as a child process per request and proxies recommendation
// prompts to a generative-language API with an in-memory cache.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"credit-risk/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const maxBodyBytes = 1 << 20

// Recorder receives request outcomes for metrics.
type Recorder interface {
	PredictionSucceeded(label string, d time.Duration)
	PredictionFailed(timedOut bool, d time.Duration)
	RecommendRequested()
	RecommendCacheHit()
	RecommendUpstream(d time.Duration, err error)
	CacheSize(n int)
}

// Options configures a Server. Recommender may be nil, in which case the
// recommendation endpoint answers 503.
type Options struct {
	Port        int
	Runner      PredictionRunner
	Recommender Recommender
	Metrics     Recorder
	Gatherer    prometheus.Gatherer
	CacheTTL    time.Duration
	CacheSize   int
}

// Server serves the prediction backend API.
type Server struct {
	runner      PredictionRunner
	recommender Recommender
	metrics     Recorder
	cache       *recommendationCache
	gatherer    prometheus.Gatherer
	handler     http.Handler
	server      *http.Server
}

func New(opts Options) *Server {
	s := &Server{
		runner:      opts.Runner,
		recommender: opts.Recommender,
		metrics:     opts.Metrics,
		cache:       newRecommendationCache(opts.CacheTTL, opts.CacheSize),
	}

	s.gatherer = opts.Gatherer
	if s.gatherer == nil {
		s.gatherer = prometheus.DefaultGatherer
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/predict", s.handlePredict)
	mux.HandleFunc("/predict/recommend", s.handleRecommend)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	s.handler = withCORS(mux)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", opts.Port),
		Handler:      s.handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.server.Addr).Msg("Backend running")
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info().
			Float64("failure_rate", metrics.GetFailureRate(s.gatherer)).
			Msg("Shutting down backend")
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown failed: %w", err)
		}
		return nil
	}
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil || !isJSONObject(body) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON body"})
		return
	}

	log.Debug().RawJSON("input", body).Msg("Received prediction request")

	start := time.Now()
	label, err := s.runner.Predict(r.Context(), body)
	elapsed := time.Since(start)
	if err != nil {
		var pe *ProcessError
		details := err.Error()
		timedOut := false
		if errors.As(err, &pe) {
			details = pe.Stderr
			timedOut = pe.TimedOut
			if details == "" {
				details = pe.Error()
			}
		}
		if s.metrics != nil {
			s.metrics.PredictionFailed(timedOut, elapsed)
		}
		log.Warn().
			Err(err).
			Bool("timed_out", timedOut).
			Float64("failure_rate", metrics.GetFailureRate(s.gatherer)).
			Msg("Prediction failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "Prediction failed",
			"details": details,
		})
		return
	}

	if s.metrics != nil {
		s.metrics.PredictionSucceeded(label, elapsed)
	}
	log.Info().Str("label", label).Dur("latency", elapsed).Msg("Prediction served")
	writeJSON(w, http.StatusOK, map[string]string{"predictedClass": label})
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.metrics != nil {
		s.metrics.RecommendRequested()
	}

	var req map[string]any
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil || req == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON body"})
		return
	}

	// encoding/json sorts map keys, so equal requests share a key
	key, err := json.Marshal(req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON body"})
		return
	}

	if cached, ok := s.cache.Get(string(key)); ok {
		if s.metrics != nil {
			s.metrics.RecommendCacheHit()
		}
		log.Debug().Msg("Returning cached recommendation")
		writeJSON(w, http.StatusOK, map[string]string{"recommendations": cached})
		return
	}

	if s.recommender == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Recommendations are not configured"})
		return
	}

	predictedClass := ""
	if pc, ok := req["predictedClass"]; ok && pc != nil {
		predictedClass = fmt.Sprint(pc)
	}
	prompt := BuildPrompt(predictedClass, req)

	start := time.Now()
	text, err := s.recommender.Recommend(r.Context(), prompt)
	if s.metrics != nil {
		s.metrics.RecommendUpstream(time.Since(start), err)
	}
	if err != nil {
		if errors.Is(err, ErrRecommenderDisabled) {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Recommendations are not configured"})
			return
		}
		log.Error().Err(err).Msg("Error calling generative-language API")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to fetch recommendations"})
		return
	}

	s.cache.Set(string(key), text)
	if s.metrics != nil {
		s.metrics.CacheSize(s.cache.Len())
	}
	writeJSON(w, http.StatusOK, map[string]string{"recommendations": text})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func isJSONObject(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}
	return json.Valid(trimmed)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to write response")
	}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
