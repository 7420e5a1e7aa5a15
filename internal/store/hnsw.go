package store

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/coder/hnsw"
)

// HNSWIndex is an approximate cosine index backed by coder/hnsw.
// Graph keys are corpus indexes. Zero vectors have no cosine distance, so
// they stay out of the graph and score similarity 0 like in FlatIndex.
type HNSWIndex struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[int]
	keys   []int
	zero   []int
	config VectorConfig
	closed bool
}

// Verify interface implementation
var _ VectorIndex = (*HNSWIndex)(nil)

// NewHNSWIndex creates an empty HNSW graph using cosine distance.
func NewHNSWIndex(cfg VectorConfig) *HNSWIndex {
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 64
	}

	graph := hnsw.NewGraph[int]()
	graph.Distance = hnsw.CosineDistance
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25

	return &HNSWIndex{graph: graph, config: cfg}
}

// Add implements VectorIndex.
func (h *HNSWIndex) Add(ctx context.Context, start int, vectors [][]float32) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return fmt.Errorf("index is closed")
	}

	nodes := make([]hnsw.Node[int], 0, len(vectors))
	var zero []int
	for i, v := range vectors {
		if len(v) != h.config.Dimensions {
			return ErrDimensionMismatch{Expected: h.config.Dimensions, Got: len(v)}
		}
		if isZeroVector(v) {
			zero = append(zero, start+i)
			continue
		}
		vec := make([]float32, len(v))
		copy(vec, v)
		normalizeVectorInPlace(vec)
		nodes = append(nodes, hnsw.MakeNode(start+i, vec))
		h.keys = append(h.keys, start+i)
	}
	h.zero = append(h.zero, zero...)
	slices.Sort(h.zero)
	if len(nodes) == 0 {
		return nil
	}

	h.graph.Add(nodes...)
	return nil
}

// Search implements VectorIndex. Similarity is 1 - cosine distance.
func (h *HNSWIndex) Search(ctx context.Context, query []float32, k int) ([]VectorHit, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return nil, fmt.Errorf("index is closed")
	}
	if len(query) != h.config.Dimensions {
		return nil, ErrDimensionMismatch{Expected: h.config.Dimensions, Got: len(query)}
	}
	if k <= 0 || h.graph.Len()+len(h.zero) == 0 {
		return []VectorHit{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hits := make([]VectorHit, 0, k+len(h.zero))
	if isZeroVector(query) {
		// A zero query is equally far from everything.
		for _, idx := range h.keys {
			hits = append(hits, VectorHit{Index: idx})
		}
	} else if h.graph.Len() > 0 {
		q := make([]float32, len(query))
		copy(q, query)
		normalizeVectorInPlace(q)

		for _, node := range h.graph.Search(q, k) {
			sim := 1 - float64(h.graph.Distance(q, node.Value))
			if math.IsNaN(sim) || math.IsInf(sim, 0) {
				sim = 0
			}
			hits = append(hits, VectorHit{Index: node.Key, Similarity: sim})
		}
	}
	for _, idx := range h.zero {
		hits = append(hits, VectorHit{Index: idx})
	}

	slices.SortFunc(hits, func(a, b VectorHit) int {
		if c := cmp.Compare(b.Similarity, a.Similarity); c != 0 {
			return c
		}
		return cmp.Compare(a.Index, b.Index)
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Len implements VectorIndex.
func (h *HNSWIndex) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.graph.Len() + len(h.zero)
}

// Close implements VectorIndex.
func (h *HNSWIndex) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}

// NewVectorIndex builds an empty index for cfg.Backend.
func NewVectorIndex(cfg VectorConfig) (VectorIndex, error) {
	switch cfg.Backend {
	case "", VectorBackendFlat:
		return NewFlatIndex(cfg.Dimensions), nil
	case VectorBackendHNSW:
		return NewHNSWIndex(cfg), nil
	default:
		return nil, fmt.Errorf("unknown vector backend: %s (valid options: flat, hnsw)", cfg.Backend)
	}
}

func isZeroVector(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
