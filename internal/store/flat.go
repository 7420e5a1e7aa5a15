package store

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"sync"
)

// FlatIndex is an exact cosine index: every search scans all vectors.
// Vectors are L2-normalized on insert so similarity is a dot product.
type FlatIndex struct {
	mu      sync.RWMutex
	dims    int
	vectors map[int][]float32
	closed  bool
}

// Verify interface implementation
var _ VectorIndex = (*FlatIndex)(nil)

// NewFlatIndex creates an empty exact index.
func NewFlatIndex(dims int) *FlatIndex {
	return &FlatIndex{
		dims:    dims,
		vectors: make(map[int][]float32),
	}
}

// Add implements VectorIndex.
func (f *FlatIndex) Add(ctx context.Context, start int, vectors [][]float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return fmt.Errorf("index is closed")
	}

	for _, v := range vectors {
		if len(v) != f.dims {
			return ErrDimensionMismatch{Expected: f.dims, Got: len(v)}
		}
	}

	for i, v := range vectors {
		vec := make([]float32, len(v))
		copy(vec, v)
		normalizeVectorInPlace(vec)
		f.vectors[start+i] = vec
	}

	return nil
}

// Search implements VectorIndex. Ties are broken by ascending corpus index.
func (f *FlatIndex) Search(ctx context.Context, query []float32, k int) ([]VectorHit, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return nil, fmt.Errorf("index is closed")
	}
	if len(query) != f.dims {
		return nil, ErrDimensionMismatch{Expected: f.dims, Got: len(query)}
	}
	if k <= 0 || len(f.vectors) == 0 {
		return []VectorHit{}, nil
	}

	q := make([]float32, len(query))
	copy(q, query)
	normalizeVectorInPlace(q)

	hits := make([]VectorHit, 0, len(f.vectors))
	for idx, vec := range f.vectors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hits = append(hits, VectorHit{Index: idx, Similarity: dot(q, vec)})
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
func (f *FlatIndex) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.vectors)
}

// Close implements VectorIndex.
func (f *FlatIndex) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.vectors = nil
	return nil
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// normalizeVectorInPlace scales v to unit length. Zero vectors are left as is.
func normalizeVectorInPlace(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
}
