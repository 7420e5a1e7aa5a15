package embed

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func TestStaticEmbedder_Deterministic(t *testing.T) {
	e := NewStaticEmbedder()
	ctx := context.Background()

	a, err := e.Embed(ctx, "Protein interactions in cellular processes")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "Protein interactions in cellular processes")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, StaticDimensions)
	assert.InDelta(t, 1.0, norm(a), 1e-5)
}

func TestStaticEmbedder_SimilarTextsAreCloser(t *testing.T) {
	e := NewStaticEmbedder()
	ctx := context.Background()

	q, _ := e.Embed(ctx, "cancer detection with blood biomarkers")
	near, _ := e.Embed(ctx, "early cancer detection using blood tests")
	far, _ := e.Embed(ctx, "cloud security against zero-day attacks")

	dot := func(a, b []float32) float64 {
		var s float64
		for i := range a {
			s += float64(a[i]) * float64(b[i])
		}
		return s
	}
	assert.Greater(t, dot(q, near), dot(q, far))
}

func TestStaticEmbedder_BlankAndClosed(t *testing.T) {
	e := NewStaticEmbedder()

	v, err := e.Embed(context.Background(), "   ")
	require.NoError(t, err)
	assert.Equal(t, make([]float32, StaticDimensions), v)

	batch, err := e.EmbedBatch(context.Background(), []string{"a b c", ""})
	require.NoError(t, err)
	assert.Len(t, batch, 2)

	assert.True(t, e.Available(context.Background()))
	require.NoError(t, e.Close())
	assert.False(t, e.Available(context.Background()))
	_, err = e.Embed(context.Background(), "x")
	assert.Error(t, err)
}

// countingEmbedder records how many texts reach it.
type countingEmbedder struct {
	StaticEmbedder
	texts atomic.Int64
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.texts.Add(1)
	return c.StaticEmbedder.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.texts.Add(int64(len(texts)))
	return c.StaticEmbedder.EmbedBatch(ctx, texts)
}

func TestCachedEmbedder_AvoidsRepeatedWork(t *testing.T) {
	// Given: a cache in front of a counting embedder
	inner := &countingEmbedder{}
	c := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	// When: the same query is embedded twice and then in a batch
	first, err := c.Embed(ctx, "zero-day attacks")
	require.NoError(t, err)
	second, err := c.Embed(ctx, "zero-day attacks")
	require.NoError(t, err)
	batch, err := c.EmbedBatch(ctx, []string{"zero-day attacks", "protein folding"})
	require.NoError(t, err)

	// Then: only the two distinct texts reached the inner embedder
	assert.Equal(t, first, second)
	assert.Equal(t, first, batch[0])
	assert.Equal(t, int64(2), inner.texts.Load())
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, "static", c.ModelName())
	assert.Equal(t, StaticDimensions, c.Dimensions())
	assert.Same(t, inner, c.Inner())
}

func newOllamaServer(t *testing.T, failFirst int32) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(OllamaModelListResponse{
			Models: []OllamaModelInfo{{Name: "all-minilm:latest"}},
		})
	})
	mux.HandleFunc("/api/embed", func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if n <= failFirst {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		var req OllamaEmbedRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		count := 1
		if list, ok := req.Input.([]any); ok {
			count = len(list)
		}
		resp := OllamaEmbedResponse{Model: req.Model}
		for i := 0; i < count; i++ {
			resp.Embeddings = append(resp.Embeddings, []float64{3, 4, float64(i)})
		}
		_ = json.NewEncoder(w).Encode(resp)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestOllamaEmbedder_DiscoversModelAndDimensions(t *testing.T) {
	srv, _ := newOllamaServer(t, 0)

	e, err := NewOllamaEmbedder(context.Background(), OllamaConfig{Host: srv.URL, Model: "all-minilm"})
	require.NoError(t, err)
	defer func() { _ = e.Close() }()

	assert.Equal(t, "all-minilm:latest", e.ModelName())
	assert.Equal(t, 3, e.Dimensions())
	assert.True(t, e.Available(context.Background()))
}

func TestOllamaEmbedder_BatchesAndKeepsOrder(t *testing.T) {
	srv, calls := newOllamaServer(t, 0)

	e, err := NewOllamaEmbedder(context.Background(), OllamaConfig{
		Host: srv.URL, Dimensions: 3, BatchSize: 2, SkipHealthCheck: true,
	})
	require.NoError(t, err)

	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "", "b", "c"})
	require.NoError(t, err)

	require.Len(t, vecs, 4)
	assert.Equal(t, make([]float32, 3), vecs[1])
	assert.InDelta(t, 1.0, norm(vecs[0]), 1e-6)
	assert.Equal(t, int32(2), calls.Load()) // three texts in batches of two
}

func TestOllamaEmbedder_RetriesServerErrors(t *testing.T) {
	srv, calls := newOllamaServer(t, 1)

	e, err := NewOllamaEmbedder(context.Background(), OllamaConfig{
		Host: srv.URL, Dimensions: 3, SkipHealthCheck: true, MaxRetries: 2, Timeout: time.Second,
	})
	require.NoError(t, err)

	v, err := e.Embed(context.Background(), "query")
	require.NoError(t, err)
	assert.Len(t, v, 3)
	assert.Equal(t, int32(2), calls.Load())
}

func TestOllamaEmbedder_MissingModel(t *testing.T) {
	srv, _ := newOllamaServer(t, 0)

	_, err := NewOllamaEmbedder(context.Background(), OllamaConfig{Host: srv.URL, Model: "nomic-embed-text"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ERR_302")
}

func TestOllamaEmbedder_SkipHealthCheckNeedsDimensions(t *testing.T) {
	_, err := NewOllamaEmbedder(context.Background(), OllamaConfig{SkipHealthCheck: true})
	assert.Error(t, err)
}

func TestNewEmbedder(t *testing.T) {
	ctx := context.Background()

	e, err := NewEmbedder(ctx, Options{Provider: ProviderStatic})
	require.NoError(t, err)
	assert.IsType(t, &StaticEmbedder{}, e)

	e, err = NewEmbedder(ctx, Options{Provider: ProviderStatic, CacheSize: 5})
	require.NoError(t, err)
	assert.IsType(t, &CachedEmbedder{}, e)

	// Unreachable Ollama falls back when allowed.
	e, err = NewEmbedder(ctx, Options{Provider: ProviderOllama, Host: "http://127.0.0.1:1", Fallback: true})
	require.NoError(t, err)
	assert.Equal(t, "static", e.ModelName())

	_, err = NewEmbedder(ctx, Options{Provider: "sbert"})
	assert.Error(t, err)
}

func TestParseProvider(t *testing.T) {
	assert.Equal(t, ProviderOllama, ParseProvider(" Ollama "))
	assert.True(t, IsValidProvider("static"))
	assert.False(t, IsValidProvider("mlx"))
	assert.Equal(t, []string{"ollama", "static"}, ValidProviders())
}
