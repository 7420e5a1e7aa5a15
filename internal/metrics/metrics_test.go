package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tol = 1e-9

// allBinaryVectors enumerates every 0/1 vector of length n.
func allBinaryVectors(n int) [][]int {
	out := make([][]int, 0, 1<<n)
	for mask := 0; mask < 1<<n; mask++ {
		v := make([]int, n)
		for i := 0; i < n; i++ {
			if mask&(1<<(n-1-i)) != 0 {
				v[i] = 1
			}
		}
		out = append(out, v)
	}
	return out
}

func isDescending(v []int) bool {
	for i := 1; i < len(v); i++ {
		if v[i] > v[i-1] {
			return false
		}
	}
	return true
}

func TestPrecisionAtK_AllVectors(t *testing.T) {
	// Given: every binary vector of length 5
	for _, v := range allBinaryVectors(5) {
		sum := 0
		for _, x := range v {
			sum += x
		}

		// Then: precision is the relevant count over five
		assert.InDelta(t, float64(sum)/5, PrecisionAtK(v), tol, "vector %v", v)
	}
}

func TestPrecisionAtK_Empty(t *testing.T) {
	assert.Equal(t, 0.0, PrecisionAtK(nil))
}

func TestReciprocalRank(t *testing.T) {
	tests := []struct {
		labels []int
		want   float64
	}{
		{[]int{0, 0, 0, 0, 0}, 0},
		{[]int{0, 1, 0, 0, 0}, 0.5},
		{[]int{1, 0, 0, 0, 0}, 1.0},
		{[]int{0, 0, 1, 1, 1}, 1.0 / 3},
		{[]int{0, 0, 0, 0, 1}, 0.2},
		{nil, 0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, ReciprocalRank(tt.labels), tol, "labels %v", tt.labels)
	}
}

func TestNDCG_DescendingVectorsAreIdeal(t *testing.T) {
	// Given: every binary vector of length 5
	for _, v := range allBinaryVectors(5) {
		got := NDCG(v)

		// Then: scores stay in [0,1], descending non-zero vectors score 1
		assert.GreaterOrEqual(t, got, 0.0)
		assert.LessOrEqual(t, got, 1.0+tol)
		if PrecisionAtK(v) > 0 && isDescending(v) {
			assert.InDelta(t, 1.0, got, tol, "vector %v", v)
		}
	}
}

func TestNDCG_AllZero(t *testing.T) {
	assert.Equal(t, 0.0, NDCG([]int{0, 0, 0, 0, 0}))
	assert.Equal(t, 0.0, NDCG(nil))
}

func TestNDCG_KnownValue(t *testing.T) {
	// Given: relevant documents at positions 1, 2, 3 (0-based)
	labels := []int{0, 1, 1, 1, 0}

	// When: computing nDCG
	got := NDCG(labels)

	// Then: it matches the hand-computed ratio
	dcg := 1/math.Log2(3) + 1/math.Log2(4) + 1/math.Log2(5)
	idcg := 1/math.Log2(2) + 1/math.Log2(3) + 1/math.Log2(4)
	assert.InDelta(t, dcg/idcg, got, tol)
}

func TestNDCG_DoesNotMutateInput(t *testing.T) {
	labels := []int{0, 1, 0, 1, 0}
	NDCG(labels)
	assert.Equal(t, []int{0, 1, 0, 1, 0}, labels)
}

func TestAgreement_Properties(t *testing.T) {
	allowed := []float64{0, 0.2, 0.4, 0.6, 0.8, 1}
	vectors := allBinaryVectors(5)

	// Given: every pair of length-5 vectors
	for _, a := range vectors {
		for _, b := range vectors {
			got, err := Agreement(a, b)
			require.NoError(t, err)

			// Then: agreement is 1 exactly when the vectors match
			assert.Equal(t, assert.ObjectsAreEqual(a, b), got == 1, "%v vs %v", a, b)

			// And: it takes one of six values
			found := false
			for _, v := range allowed {
				if math.Abs(v-got) < tol {
					found = true
					break
				}
			}
			assert.True(t, found, "agreement %v for %v vs %v", got, a, b)
		}
	}
}

func TestAgreement_Disjoint(t *testing.T) {
	got, err := Agreement([]int{0, 1, 1, 0, 0}, []int{1, 0, 0, 1, 1})
	require.NoError(t, err)
	assert.Equal(t, 0.0, got)
}

func TestAgreement_Errors(t *testing.T) {
	_, err := Agreement([]int{0, 1}, []int{0})
	assert.Error(t, err)

	_, err = Agreement(nil, nil)
	assert.Error(t, err)
}

func TestCompute(t *testing.T) {
	// Given: the zero-day query's human labels and a model that disagrees once
	human := []int{0, 1, 1, 1, 0}
	model := []int{0, 1, 1, 0, 0}

	// When: computing the report
	r, err := Compute(human, model)

	// Then: ranking metrics come from the human vector
	require.NoError(t, err)
	assert.InDelta(t, 0.6, r.Precision, tol)
	assert.InDelta(t, 0.5, r.MRR, tol)
	assert.InDelta(t, NDCG(human), r.NDCG, tol)
	assert.InDelta(t, 0.8, r.Agreement, tol)
}

func TestCompute_LengthMismatch(t *testing.T) {
	_, err := Compute([]int{1, 0, 0, 0, 0}, []int{1})
	assert.Error(t, err)
}

func TestValidateBinary(t *testing.T) {
	assert.NoError(t, ValidateBinary([]int{0, 1, 0, 0, 1}, 5))
	assert.Error(t, ValidateBinary([]int{0, 1}, 5))
	assert.Error(t, ValidateBinary([]int{0, 1, 2, 0, 0}, 5))
	assert.Error(t, ValidateBinary([]int{0, -1, 0, 0, 0}, 5))
}

func TestMean(t *testing.T) {
	got := Mean([]Report{
		{Precision: 0.2, MRR: 1, NDCG: 0.5, Agreement: 0.8},
		{Precision: 0.6, MRR: 0, NDCG: 0.1, Agreement: 0.4},
	})

	assert.InDelta(t, 0.4, got.Precision, tol)
	assert.InDelta(t, 0.5, got.MRR, tol)
	assert.InDelta(t, 0.3, got.NDCG, tol)
	assert.InDelta(t, 0.6, got.Agreement, tol)
	assert.Equal(t, Report{}, Mean(nil))
}
