package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	grerrors "github.com/Aman-CERP/grantlens/internal/errors"
	"github.com/Aman-CERP/grantlens/pkg/version"
)

// OllamaEmbedder generates embeddings using Ollama's HTTP API.
type OllamaEmbedder struct {
	client    *http.Client
	config    OllamaConfig
	modelName string
	dims      int

	mu     sync.RWMutex
	closed bool
}

// Verify interface implementation at compile time
var _ Embedder = (*OllamaEmbedder)(nil)

// NewOllamaEmbedder creates an Ollama embedder. Unless SkipHealthCheck is
// set it verifies the model is installed and detects its dimension.
func NewOllamaEmbedder(ctx context.Context, cfg OllamaConfig) (*OllamaEmbedder, error) {
	if cfg.Host == "" {
		cfg.Host = DefaultOllamaHost
	}
	cfg.Host = strings.TrimRight(cfg.Host, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = MaxBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	// No client-level timeout: each attempt gets its own context deadline.
	e := &OllamaEmbedder{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     30 * time.Second,
			},
		},
		config:    cfg,
		modelName: cfg.Model,
		dims:      cfg.Dimensions,
	}

	if !cfg.SkipHealthCheck {
		checkCtx, cancel := context.WithTimeout(ctx, OllamaConnectTimeout)
		defer cancel()

		name, err := e.findModel(checkCtx)
		if err != nil {
			return nil, grerrors.New(grerrors.ErrCodeNetworkUnavailable,
				"failed to connect to Ollama or find embedding model", err).
				WithDetail("host", cfg.Host).
				WithSuggestion(fmt.Sprintf("Start Ollama and run 'ollama pull %s', or set embeddings.provider: static", cfg.Model))
		}
		e.modelName = name

		if e.dims == 0 {
			vecs, err := e.doEmbed(checkCtx, []string{"dimension detection"})
			if err != nil {
				return nil, fmt.Errorf("failed to detect embedding dimensions: %w", err)
			}
			if len(vecs) == 0 || len(vecs[0]) == 0 {
				return nil, fmt.Errorf("failed to detect embedding dimensions: empty embedding returned")
			}
			e.dims = len(vecs[0])
		}
	}

	if e.dims == 0 {
		return nil, fmt.Errorf("embedding dimensions unknown: set embeddings.dimensions when skipping the health check")
	}

	return e, nil
}

func (e *OllamaEmbedder) listModels(ctx context.Context) ([]OllamaModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.config.Host+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Ollama: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var result OllamaModelListResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return result.Models, nil
}

// findModel resolves the configured model against installed models,
// accepting a match with or without the ":tag" suffix.
func (e *OllamaEmbedder) findModel(ctx context.Context) (string, error) {
	models, err := e.listModels(ctx)
	if err != nil {
		return "", err
	}

	want := strings.ToLower(e.config.Model)
	wantBase := strings.Split(want, ":")[0]
	for _, m := range models {
		name := strings.ToLower(m.Name)
		if name == want || strings.Split(name, ":")[0] == wantBase {
			return m.Name, nil
		}
	}

	return "", fmt.Errorf("embedding model %q is not installed", e.config.Model)
}

// Embed implements Embedder. Blank text yields the zero vector.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch implements Embedder.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("embedder is closed")
	}

	results := make([][]float32, len(texts))
	var pending []int
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			results[i] = make([]float32, e.dims)
			continue
		}
		pending = append(pending, i)
	}

	for start := 0; start < len(pending); start += e.config.BatchSize {
		end := min(start+e.config.BatchSize, len(pending))
		batch := pending[start:end]

		batchTexts := make([]string, len(batch))
		for j, i := range batch {
			batchTexts[j] = texts[i]
		}

		vecs, err := e.embedWithRetry(ctx, batchTexts)
		if err != nil {
			return nil, grerrors.New(grerrors.ErrCodeEmbeddingFailed, "failed to embed batch", err).
				WithDetail("model", e.modelName)
		}
		if len(vecs) != len(batch) {
			return nil, grerrors.New(grerrors.ErrCodeEmbeddingFailed,
				fmt.Sprintf("expected %d embeddings, got %d", len(batch), len(vecs)), nil)
		}
		for j, i := range batch {
			results[i] = vecs[j]
		}

		if e.config.ProgressFunc != nil {
			e.config.ProgressFunc(end, len(pending))
		}
	}

	return results, nil
}

func (e *OllamaEmbedder) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	cfg := grerrors.RetryConfig{
		MaxRetries:   e.config.MaxRetries,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
		ShouldRetry:  isTransientEmbedError,
	}

	attempt := 0
	return grerrors.RetryWithResult(ctx, cfg, func() ([][]float32, error) {
		attempt++
		attemptCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
		defer cancel()

		vecs, err := e.doEmbed(attemptCtx, texts)
		if err != nil {
			slog.Debug("embedding_attempt_failed",
				slog.Int("attempt", attempt),
				slog.Int("texts_count", len(texts)),
				slog.Duration("timeout", e.config.Timeout),
				slog.String("error", err.Error()))
		}
		return vecs, err
	})
}

// embedStatusError is a non-200 response from /api/embed.
type embedStatusError struct {
	status int
	body   string
}

func (e *embedStatusError) Error() string {
	return fmt.Sprintf("embedding failed with status %d: %s", e.status, e.body)
}

func isTransientEmbedError(err error) bool {
	var se *embedStatusError
	if errors.As(err, &se) {
		return se.status == http.StatusTooManyRequests || se.status >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func (e *OllamaEmbedder) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	var input any = texts
	if len(texts) == 1 {
		input = texts[0]
	}

	body, err := json.Marshal(OllamaEmbedRequest{Model: e.modelName, Input: input})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.Host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &embedStatusError{status: resp.StatusCode, body: string(respBody)}
	}

	var apiResult OllamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResult); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	embeddings := make([][]float32, len(apiResult.Embeddings))
	for i, emb := range apiResult.Embeddings {
		vec := make([]float32, len(emb))
		for j, v := range emb {
			vec[j] = float32(v)
		}
		embeddings[i] = normalizeVector(vec)
	}
	return embeddings, nil
}

// Dimensions implements Embedder.
func (e *OllamaEmbedder) Dimensions() int { return e.dims }

// ModelName implements Embedder.
func (e *OllamaEmbedder) ModelName() string { return e.modelName }

// Available reports whether Ollama answers and the model is installed.
func (e *OllamaEmbedder) Available(ctx context.Context) bool {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return false
	}

	_, err := e.findModel(ctx)
	return err == nil
}

// Close implements Embedder.
func (e *OllamaEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	e.client.CloseIdleConnections()
	return nil
}
