package search

import "math"

// MinMaxNormalize maps values onto [0,1) as (x-min)/(max-min+epsilon).
// All-equal input normalizes to zeros. Empty input returns an empty slice.
// NaN and infinite inputs count as the minimum and normalize to 0.
func MinMaxNormalize(values []float64, epsilon float64) []float64 {
	out := make([]float64, len(values))

	lo, hi, seen := 0.0, 0.0, false
	for _, v := range values {
		if !finite(v) {
			continue
		}
		if !seen {
			lo, hi, seen = v, v, true
			continue
		}
		lo = min(lo, v)
		hi = max(hi, v)
	}
	if !seen {
		return out
	}

	denom := hi - lo + epsilon
	for i, v := range values {
		if finite(v) {
			out[i] = (v - lo) / denom
		}
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Fuse combines normalized score arrays as alpha*lexical + (1-alpha)*dense.
// Both arrays must have the same length.
func Fuse(lexicalNorm, denseNorm []float64, alpha float64) []float64 {
	out := make([]float64, len(lexicalNorm))
	for i := range lexicalNorm {
		out[i] = alpha*lexicalNorm[i] + (1-alpha)*denseNorm[i]
	}
	return out
}
