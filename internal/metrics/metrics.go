// Package metrics computes retrieval quality scores over binary relevance
// label vectors. Every function is pure.
package metrics

import (
	"cmp"
	"fmt"
	"math"
	"slices"
)

// Report bundles the quality scores of one ranked list.
type Report struct {
	Precision float64 `json:"precision" yaml:"precision"`
	MRR       float64 `json:"mrr" yaml:"mrr"`
	NDCG      float64 `json:"ndcg" yaml:"ndcg"`
	Agreement float64 `json:"agreement" yaml:"agreement"`
}

// PrecisionAtK is the fraction of relevant entries. K is len(labels).
func PrecisionAtK(labels []int) float64 {
	if len(labels) == 0 {
		return 0
	}
	sum := 0
	for _, v := range labels {
		sum += v
	}
	return float64(sum) / float64(len(labels))
}

// ReciprocalRank returns 1/(p+1) for the first relevant position p, or 0.
func ReciprocalRank(labels []int) float64 {
	for i, v := range labels {
		if v == 1 {
			return 1.0 / float64(i+1)
		}
	}
	return 0
}

// DCG is the discounted cumulative gain with exponential gain.
func DCG(labels []int) float64 {
	var total float64
	for i, v := range labels {
		total += (math.Pow(2, float64(v)) - 1) / math.Log2(float64(i+2))
	}
	return total
}

// NDCG normalizes DCG by the gain of the ideal ordering. All-zero input
// yields 0.
func NDCG(labels []int) float64 {
	ideal := make([]int, len(labels))
	copy(ideal, labels)
	slices.SortFunc(ideal, func(a, b int) int { return cmp.Compare(b, a) })

	idcg := DCG(ideal)
	if idcg == 0 {
		return 0
	}
	return DCG(labels) / idcg
}

// Agreement is the fraction of positions where human and model labels match.
func Agreement(human, model []int) (float64, error) {
	if len(human) != len(model) {
		return 0, fmt.Errorf("label vectors differ in length: %d vs %d", len(human), len(model))
	}
	if len(human) == 0 {
		return 0, fmt.Errorf("label vectors are empty")
	}
	same := 0
	for i := range human {
		if human[i] == model[i] {
			same++
		}
	}
	return float64(same) / float64(len(human)), nil
}

// Compute scores a ranked list: precision, MRR and nDCG come from the
// human labels, agreement compares both vectors.
func Compute(human, model []int) (Report, error) {
	agreement, err := Agreement(human, model)
	if err != nil {
		return Report{}, err
	}
	return Report{
		Precision: PrecisionAtK(human),
		MRR:       ReciprocalRank(human),
		NDCG:      NDCG(human),
		Agreement: agreement,
	}, nil
}

// ValidateBinary checks that labels has want entries, each 0 or 1.
func ValidateBinary(labels []int, want int) error {
	if len(labels) != want {
		return fmt.Errorf("expected %d labels, got %d", want, len(labels))
	}
	for i, v := range labels {
		if v != 0 && v != 1 {
			return fmt.Errorf("label %d is %d, want 0 or 1", i, v)
		}
	}
	return nil
}

// Mean averages reports field by field. An empty input yields a zero Report.
func Mean(reports []Report) Report {
	if len(reports) == 0 {
		return Report{}
	}
	var out Report
	for _, r := range reports {
		out.Precision += r.Precision
		out.MRR += r.MRR
		out.NDCG += r.NDCG
		out.Agreement += r.Agreement
	}
	n := float64(len(reports))
	out.Precision /= n
	out.MRR /= n
	out.NDCG /= n
	out.Agreement /= n
	return out
}
