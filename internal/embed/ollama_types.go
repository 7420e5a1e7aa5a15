package embed

import "time"

const (
	// DefaultOllamaHost is the default Ollama API endpoint.
	DefaultOllamaHost = "http://localhost:11434"

	// DefaultOllamaModel is a small sentence embedding model.
	DefaultOllamaModel = "all-minilm"

	// OllamaConnectTimeout bounds the startup health check.
	OllamaConnectTimeout = 30 * time.Second
)

// OllamaConfig configures the Ollama embedder.
type OllamaConfig struct {
	// Host is the Ollama API endpoint (default: http://localhost:11434).
	Host string

	// Model is the embedding model (default: all-minilm).
	Model string

	// Dimensions overrides auto-detection when non-zero.
	Dimensions int

	// BatchSize is the number of texts per request (default: 32).
	BatchSize int

	// Timeout bounds each request attempt (default: 60s).
	Timeout time.Duration

	// MaxRetries for transient failures (default: 3).
	MaxRetries int

	// SkipHealthCheck skips model discovery and dimension detection.
	SkipHealthCheck bool

	// ProgressFunc is called after each batch with (completed, total) counts.
	ProgressFunc func(completed, total int)
}

// DefaultOllamaConfig returns the defaults.
func DefaultOllamaConfig() OllamaConfig {
	return OllamaConfig{
		Host:       DefaultOllamaHost,
		Model:      DefaultOllamaModel,
		BatchSize:  DefaultBatchSize,
		Timeout:    DefaultTimeout,
		MaxRetries: DefaultMaxRetries,
	}
}

// OllamaEmbedRequest is the Ollama /api/embed request.
type OllamaEmbedRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"` // string or []string for batch
}

// OllamaEmbedResponse is the Ollama /api/embed response.
type OllamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float64 `json:"embeddings"`
}

// OllamaModelListResponse is the Ollama /api/tags response.
type OllamaModelListResponse struct {
	Models []OllamaModelInfo `json:"models"`
}

// OllamaModelInfo describes an installed model.
type OllamaModelInfo struct {
	Name       string    `json:"name"`
	ModifiedAt time.Time `json:"modified_at"`
	Size       int64     `json:"size"`
}
