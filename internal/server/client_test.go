package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"testing"
	"time"

	"credit-risk/internal/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shellRunner(t *testing.T, script string, timeout time.Duration) *ProcessRunner {
	t.Helper()

	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	r, err := NewProcessRunner([]string{"sh", "-c", script}, []string{"CREDITRISK_TEST=1"}, timeout)
	require.NoError(t, err)
	return r
}

func TestProcessRunner(t *testing.T) {
	t.Run("label on stdout", func(t *testing.T) {
		r := shellRunner(t, `cat >/dev/null; echo "diagnostics" >&2; echo P3`, 5*time.Second)
		label, err := r.Predict(context.Background(), []byte(`{"AGE": 38}`))
		require.NoError(t, err)
		assert.Equal(t, "P3", label)
	})

	t.Run("stdin is forwarded", func(t *testing.T) {
		r := shellRunner(t, `cat`, 5*time.Second)
		label, err := r.Predict(context.Background(), []byte("P4"))
		require.NoError(t, err)
		assert.Equal(t, "P4", label)
	})

	t.Run("environment is extended", func(t *testing.T) {
		r := shellRunner(t, `echo "$CREDITRISK_TEST"`, 5*time.Second)
		label, err := r.Predict(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, "1", label)
	})

	t.Run("non-zero exit keeps stderr", func(t *testing.T) {
		r := shellRunner(t, `echo "invalid JSON input" >&2; exit 1`, 5*time.Second)
		_, err := r.Predict(context.Background(), []byte(`{`))
		require.Error(t, err)

		var pe *ProcessError
		require.True(t, errors.As(err, &pe))
		assert.Contains(t, pe.Stderr, "invalid JSON input")
		assert.False(t, pe.TimedOut)
	})

	t.Run("timeout", func(t *testing.T) {
		r := shellRunner(t, `sleep 5`, 100*time.Millisecond)
		_, err := r.Predict(context.Background(), nil)

		var pe *ProcessError
		require.True(t, errors.As(err, &pe))
		assert.True(t, pe.TimedOut)
	})

	t.Run("empty output", func(t *testing.T) {
		r := shellRunner(t, `true`, 5*time.Second)
		_, err := r.Predict(context.Background(), nil)
		assert.Error(t, err)
	})

	_, err := NewProcessRunner(nil, nil, time.Second)
	assert.Error(t, err)
}

func TestGeminiClient(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1beta/models/gemini-test:generateContent", r.URL.Path)
			assert.Equal(t, "secret", r.URL.Query().Get("key"))

			var req generateRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.Len(t, req.Contents, 1)
			assert.Equal(t, "hello", req.Contents[0].Parts[0].Text)

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"  Keep utilization low. "}]}}]}`))
		}))
		defer ts.Close()

		c := NewGeminiClient("secret", "gemini-test", ts.URL+"/", time.Second)
		text, err := c.Recommend(context.Background(), "hello")
		require.NoError(t, err)
		assert.Equal(t, "Keep utilization low.", text)
	})

	t.Run("api error", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"code":429,"message":"quota exceeded"}}`))
		}))
		defer ts.Close()

		_, err := NewGeminiClient("secret", "m", ts.URL, time.Second).Recommend(context.Background(), "p")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "quota exceeded")
	})

	t.Run("no candidates", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"candidates":[]}`))
		}))
		defer ts.Close()

		_, err := NewGeminiClient("secret", "m", ts.URL, time.Second).Recommend(context.Background(), "p")
		assert.Error(t, err)
	})

	t.Run("timeout defaults", func(t *testing.T) {
		c := NewGeminiClient("secret", "m", "http://127.0.0.1:1", 0)
		assert.Equal(t, common.DefaultRecommendTimeout*time.Second, c.rest.GetClient().Timeout)

		c = NewGeminiClient("secret", "m", "http://127.0.0.1:1", 5*time.Second)
		assert.Equal(t, 5*time.Second, c.rest.GetClient().Timeout)
	})

	t.Run("disabled", func(t *testing.T) {
		_, err := NewGeminiClient("", "m", "http://127.0.0.1:1", time.Second).Recommend(context.Background(), "p")
		assert.ErrorIs(t, err, ErrRecommenderDisabled)
	})
}

func TestRecommendationCache(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("evicts oldest", func(t *testing.T) {
		c := newRecommendationCache(0, 2)
		c.Set("a", "1")
		c.Set("b", "2")
		c.Set("c", "3")

		_, ok := c.Get("a")
		assert.False(t, ok)
		v, ok := c.Get("c")
		assert.True(t, ok)
		assert.Equal(t, "3", v)
		assert.Equal(t, 2, c.Len())
	})

	t.Run("overwrite keeps size", func(t *testing.T) {
		c := newRecommendationCache(0, 2)
		c.Set("a", "1")
		c.Set("a", "2")
		assert.Equal(t, 1, c.Len())
		v, _ := c.Get("a")
		assert.Equal(t, "2", v)
	})

	t.Run("expires after ttl", func(t *testing.T) {
		c := newRecommendationCache(time.Minute, 4)
		c.now = func() time.Time { return now }
		c.Set("a", "1")

		c.now = func() time.Time { return now.Add(30 * time.Second) }
		_, ok := c.Get("a")
		assert.True(t, ok)

		c.now = func() time.Time { return now.Add(2 * time.Minute) }
		_, ok = c.Get("a")
		assert.False(t, ok)
		assert.Equal(t, 0, c.Len())
	})
}
