package embed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ProviderType represents an embedding provider.
type ProviderType string

const (
	// ProviderOllama uses the Ollama API for embeddings.
	ProviderOllama ProviderType = "ollama"

	// ProviderStatic uses hash-based embeddings (offline, deterministic).
	ProviderStatic ProviderType = "static"
)

// Options selects and configures an embedder.
type Options struct {
	Provider   ProviderType
	Model      string
	Host       string
	Dimensions int
	BatchSize  int
	Timeout    time.Duration
	MaxRetries int

	// CacheSize enables an LRU query cache when positive.
	CacheSize int

	// Fallback switches to the static embedder when Ollama is unreachable.
	Fallback bool
}

// NewEmbedder creates an embedder for opts.Provider, wrapped in a cache when
// opts.CacheSize is positive.
func NewEmbedder(ctx context.Context, opts Options) (Embedder, error) {
	var (
		embedder Embedder
		err      error
	)

	switch opts.Provider {
	case ProviderStatic:
		embedder = NewStaticEmbedder()
	case ProviderOllama, "":
		embedder, err = NewOllamaEmbedder(ctx, OllamaConfig{
			Host:       opts.Host,
			Model:      opts.Model,
			Dimensions: opts.Dimensions,
			BatchSize:  opts.BatchSize,
			Timeout:    opts.Timeout,
			MaxRetries: opts.MaxRetries,
		})
		if err != nil {
			if !opts.Fallback {
				return nil, err
			}
			slog.Warn("embedder_fallback",
				slog.String("from", string(ProviderOllama)),
				slog.String("to", string(ProviderStatic)),
				slog.String("error", err.Error()))
			embedder = NewStaticEmbedder()
		}
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (valid options: %s)",
			opts.Provider, strings.Join(ValidProviders(), ", "))
	}

	if opts.CacheSize > 0 {
		return NewCachedEmbedder(embedder, opts.CacheSize), nil
	}
	return embedder, nil
}

// ParseProvider converts a config string to a ProviderType. Unknown values
// are returned unchanged so NewEmbedder can report them.
func ParseProvider(s string) ProviderType {
	return ProviderType(strings.ToLower(strings.TrimSpace(s)))
}

// ValidProviders lists the accepted provider names.
func ValidProviders() []string {
	return []string{string(ProviderOllama), string(ProviderStatic)}
}

// IsValidProvider reports whether s names a known provider.
func IsValidProvider(s string) bool {
	p := ParseProvider(s)
	return p == ProviderOllama || p == ProviderStatic
}
