package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Aman-CERP/grantlens/internal/embed"
	grerrors "github.com/Aman-CERP/grantlens/internal/errors"
	"github.com/Aman-CERP/grantlens/internal/store"
)

// DenseRetriever returns the n corpus documents closest to a query, ordered
// by similarity descending.
type DenseRetriever interface {
	Retrieve(ctx context.Context, query string, n int) ([]Candidate, error)
}

// EmbeddingRetriever embeds the query and searches a vector index.
type EmbeddingRetriever struct {
	embedder embed.Embedder
	index    store.VectorIndex
}

// NewEmbeddingRetriever wraps an already populated index.
func NewEmbeddingRetriever(embedder embed.Embedder, index store.VectorIndex) *EmbeddingRetriever {
	return &EmbeddingRetriever{embedder: embedder, index: index}
}

// ProgressFunc reports corpus embedding progress.
type ProgressFunc func(done, total int)

// BuildEmbeddingRetriever embeds texts in batches and adds them to index
// under their corpus positions.
func BuildEmbeddingRetriever(
	ctx context.Context,
	embedder embed.Embedder,
	index store.VectorIndex,
	texts []string,
	batchSize int,
	progress ProgressFunc,
) (*EmbeddingRetriever, error) {
	if batchSize <= 0 {
		batchSize = embed.DefaultBatchSize
	}

	start := time.Now()
	for lo := 0; lo < len(texts); lo += batchSize {
		hi := min(lo+batchSize, len(texts))

		vectors, err := embedder.EmbedBatch(ctx, texts[lo:hi])
		if err != nil {
			return nil, grerrors.New(grerrors.ErrCodeIndexFailed,
				fmt.Sprintf("embedding corpus batch %d-%d", lo, hi), err)
		}
		if err := index.Add(ctx, lo, vectors); err != nil {
			return nil, grerrors.New(grerrors.ErrCodeIndexFailed, "adding vectors to index", err)
		}
		if progress != nil {
			progress(hi, len(texts))
		}
	}

	slog.Info("dense_index_built",
		slog.Int("documents", len(texts)),
		slog.String("model", embedder.ModelName()),
		slog.Int("dimensions", embedder.Dimensions()),
		slog.Duration("duration", time.Since(start)))

	return NewEmbeddingRetriever(embedder, index), nil
}

// Retrieve implements DenseRetriever.
func (r *EmbeddingRetriever) Retrieve(ctx context.Context, query string, n int) ([]Candidate, error) {
	if n <= 0 || r.index.Len() == 0 {
		return []Candidate{}, nil
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, grerrors.New(grerrors.ErrCodeEmbeddingFailed, "embedding query", err)
	}

	hits, err := r.index.Search(ctx, vec, n)
	if err != nil {
		return nil, grerrors.New(grerrors.ErrCodeSearchFailed, "dense search", err)
	}

	candidates := make([]Candidate, len(hits))
	for i, h := range hits {
		candidates[i] = Candidate{Index: h.Index, Similarity: h.Similarity}
	}
	return candidates, nil
}

// Len returns the number of indexed documents.
func (r *EmbeddingRetriever) Len() int { return r.index.Len() }

// Close releases the index. The embedder is owned by the caller.
func (r *EmbeddingRetriever) Close() error { return r.index.Close() }
