package embedder

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/termhelper-rag/pkg/types"
)

func embedServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, baseURL string, dim int) *Client {
	t.Helper()
	c, err := NewClient(Config{BaseURL: baseURL, Dimension: dim})
	require.NoError(t, err)
	return c
}

func respondEmbedding(w http.ResponseWriter, vec []float64) {
	_ = json.NewEncoder(w).Encode(map[string]any{"embedding": vec})
}

func TestEmbed_ExactDimension(t *testing.T) {
	srv := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embed", r.URL.Path)
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hello", req["text"])
		respondEmbedding(w, []float64{1, 2, 3})
	})

	c := newTestClient(t, srv.URL, 3)
	vec, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, vec)
}

func TestEmbed_PadsShortResponse(t *testing.T) {
	srv := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
		respondEmbedding(w, []float64{0.5})
	})

	c := newTestClient(t, srv.URL, 4)
	vec, err := c.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.1, 0.1, 0.1}, vec)
}

func TestEmbed_TruncatesLongResponse(t *testing.T) {
	srv := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
		respondEmbedding(w, []float64{1, 2, 3, 4, 5})
	})

	c := newTestClient(t, srv.URL, 2)
	vec, err := c.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, vec)
}

func TestEmbed_ReplacesNonFinite(t *testing.T) {
	srv := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		// 1e39 fits float64 but overflows float32 into +-Inf.
		_, _ = w.Write([]byte(`{"embedding":[1e39,-1e39,0.25]}`))
	})

	c := newTestClient(t, srv.URL, 3)
	vec, err := c.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.1, 0.25}, vec)
}

func TestEmbed_RetriesOnceThenFails(t *testing.T) {
	var calls atomic.Int32
	srv := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	c := newTestClient(t, srv.URL, 3)
	_, err := c.Embed(context.Background(), "x")
	assert.ErrorIs(t, err, types.ErrEmbedderUnavailable)
	assert.Equal(t, int32(2), calls.Load())
}

func TestEmbed_RetrySucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		respondEmbedding(w, []float64{1, 1, 1})
	})

	c := newTestClient(t, srv.URL, 3)
	vec, err := c.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 1, 1}, vec)
}

func TestEmbed_StarterInvokedOnce(t *testing.T) {
	var failing atomic.Bool
	failing.Store(true)
	srv := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		if failing.Load() {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		respondEmbedding(w, []float64{2, 2})
	})

	var starts atomic.Int32
	c, err := NewClient(Config{
		BaseURL:   srv.URL,
		Dimension: 2,
		Starter: func(ctx context.Context) error {
			starts.Add(1)
			failing.Store(false)
			return nil
		},
	})
	require.NoError(t, err)

	vec, err := c.Embed(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 2}, vec)
	assert.Equal(t, int32(1), starts.Load())

	// Subsequent failures never re-run the starter.
	failing.Store(true)
	_, err = c.Embed(context.Background(), "b")
	assert.ErrorIs(t, err, types.ErrEmbedderUnavailable)
	assert.Equal(t, int32(1), starts.Load())
}

func TestEmbed_CachesByContent(t *testing.T) {
	var calls atomic.Int32
	srv := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		respondEmbedding(w, []float64{3, 3, 3})
	})

	c := newTestClient(t, srv.URL, 3)
	first, err := c.Embed(context.Background(), "same text")
	require.NoError(t, err)
	second, err := c.Embed(context.Background(), "same text")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1, c.CacheLen())

	// Cached values are copies; mutation does not poison the cache.
	first[0] = 99
	third, err := c.Embed(context.Background(), "same text")
	require.NoError(t, err)
	assert.Equal(t, float32(3), third[0])
}

func TestEmbed_NonNumericResponse(t *testing.T) {
	srv := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embedding":"oops"}`))
	})

	c := newTestClient(t, srv.URL, 3)
	_, err := c.Embed(context.Background(), "x")
	assert.ErrorIs(t, err, types.ErrEmbedderUnavailable)
}

func TestHealth(t *testing.T) {
	srv := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	c := newTestClient(t, srv.URL, 3)
	assert.NoError(t, c.Health(context.Background()))

	c2 := newTestClient(t, "http://127.0.0.1:1", 3)
	assert.Error(t, c2.Health(context.Background()))
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   []float32
		dim  int
		want []float32
	}{
		{"exact", []float32{1, 2}, 2, []float32{1, 2}},
		{"pad", []float32{1}, 3, []float32{1, 0.1, 0.1}},
		{"truncate", []float32{1, 2, 3}, 2, []float32{1, 2}},
		{"nan", []float32{float32(math.NaN()), 2}, 2, []float32{0.1, 2}},
		{"inf", []float32{float32(math.Inf(1)), float32(math.Inf(-1))}, 2, []float32{0.1, 0.1}},
		{"nil input", nil, 2, []float32{0.1, 0.1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in, tt.dim))
		})
	}
}
