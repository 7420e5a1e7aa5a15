package search

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMinMaxNormalize(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   []float64
	}{
		{"empty", nil, []float64{}},
		{"single", []float64{3}, []float64{0}},
		{"uniform", []float64{2, 2, 2}, []float64{0, 0, 0}},
		{"range", []float64{1, 3, 2}, []float64{0, 1, 0.5}},
		{"negative", []float64{-4, 0, 4}, []float64{0, 0.5, 1}},
		{"nan counts as minimum", []float64{math.NaN(), 1, 3}, []float64{0, 0, 1}},
		{"infinities", []float64{math.Inf(1), 2, math.Inf(-1), 4}, []float64{0, 0, 0, 1}},
		{"all nan", []float64{math.NaN(), math.NaN()}, []float64{0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MinMaxNormalize(tt.values, DefaultEpsilon)

			assert.Len(t, got, len(tt.want))
			for i := range tt.want {
				assert.InDelta(t, tt.want[i], got[i], 1e-6)
				assert.False(t, math.IsNaN(got[i]))
			}
		})
	}
}

func TestMinMaxNormalize_StaysBelowOne(t *testing.T) {
	got := MinMaxNormalize([]float64{0, 10}, DefaultEpsilon)

	assert.Less(t, got[1], 1.0)
	assert.Greater(t, got[1], 0.999)
}

func TestMinMaxNormalize_DoesNotMutate(t *testing.T) {
	values := []float64{5, 1, 3}
	MinMaxNormalize(values, DefaultEpsilon)
	assert.Equal(t, []float64{5, 1, 3}, values)
}

func TestFuse(t *testing.T) {
	lex := []float64{1, 0, 0.5}
	dense := []float64{0, 1, 0.5}

	assert.Equal(t, []float64{1, 0, 0.5}, Fuse(lex, dense, 1))
	assert.Equal(t, []float64{0, 1, 0.5}, Fuse(lex, dense, 0))
	assert.InDeltaSlice(t, []float64{0.5, 0.5, 0.5}, Fuse(lex, dense, 0.5), 1e-12)
	assert.InDeltaSlice(t, []float64{0.25, 0.75, 0.5}, Fuse(lex, dense, 0.25), 1e-12)
}
