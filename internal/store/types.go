// Package store holds the read-only retrieval indexes built once at startup:
// lexical scorers over grant abstracts and nearest-neighbour vector indexes
// over their embeddings.
package store

import (
	"context"
	"fmt"
)

// LexicalScorer scores every corpus document against a tokenized query.
type LexicalScorer interface {
	// Scores returns one score per corpus document, in corpus order.
	// Documents sharing no token with the query score 0.
	Scores(ctx context.Context, tokens []string) ([]float64, error)

	// Len returns the number of indexed documents.
	Len() int

	// Backend names the implementation (okapi, bleve, sqlite).
	Backend() LexicalBackend

	Close() error
}

// LexicalBackend selects a LexicalScorer implementation.
type LexicalBackend string

const (
	// LexicalBackendOkapi is the in-process Okapi BM25 scorer (default).
	LexicalBackendOkapi LexicalBackend = "okapi"

	// LexicalBackendBleve uses an in-memory bleve/v2 index.
	LexicalBackendBleve LexicalBackend = "bleve"

	// LexicalBackendSQLite uses an in-memory SQLite FTS5 table.
	LexicalBackendSQLite LexicalBackend = "sqlite"
)

// LexicalConfig configures the Okapi BM25 scorer. The engine-backed
// scorers use their engines' own parameters.
type LexicalConfig struct {
	// K1 is the term frequency saturation parameter (default: 1.5).
	K1 float64

	// B is the length normalization parameter (default: 0.75).
	B float64

	// Epsilon scales the floor that replaces negative idf values (default: 0.25).
	Epsilon float64
}

// DefaultLexicalConfig returns the Okapi BM25 defaults.
func DefaultLexicalConfig() LexicalConfig {
	return LexicalConfig{
		K1:      1.5,
		B:       0.75,
		Epsilon: 0.25,
	}
}

// VectorHit is a single nearest-neighbour result.
type VectorHit struct {
	// Index is the corpus position of the document.
	Index int
	// Similarity is the cosine similarity to the query (1 = identical).
	Similarity float64
}

// VectorIndex finds the documents closest to a query embedding.
type VectorIndex interface {
	// Add inserts vectors; vectors[i] belongs to corpus document start+i.
	Add(ctx context.Context, start int, vectors [][]float32) error

	// Search returns up to k hits ordered by similarity descending.
	Search(ctx context.Context, query []float32, k int) ([]VectorHit, error)

	// Len returns the number of indexed vectors.
	Len() int

	Close() error
}

// VectorBackend selects a VectorIndex implementation.
type VectorBackend string

const (
	// VectorBackendFlat is the exact brute-force cosine index (default).
	VectorBackendFlat VectorBackend = "flat"

	// VectorBackendHNSW is the approximate coder/hnsw graph.
	VectorBackendHNSW VectorBackend = "hnsw"
)

// VectorConfig configures a vector index.
type VectorConfig struct {
	// Backend selects the index implementation.
	Backend VectorBackend

	// Dimensions is the embedding dimension.
	Dimensions int

	// M is HNSW max connections per layer (default: 16).
	M int

	// EfSearch is HNSW query-time search width (default: 64).
	EfSearch int
}

// DefaultVectorConfig returns defaults for the given dimension.
func DefaultVectorConfig(dimensions int) VectorConfig {
	return VectorConfig{
		Backend:    VectorBackendFlat,
		Dimensions: dimensions,
		M:          16,
		EfSearch:   64,
	}
}

// ErrDimensionMismatch indicates vector dimension mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}
