package evaluate

import (
	"time"

	"github.com/Aman-CERP/grantlens/internal/metrics"
	"github.com/Aman-CERP/grantlens/internal/relevance"
)

// Stage names an evaluation step.
type Stage string

// Evaluation stages, in execution order.
const (
	StageStart        Stage = "START"
	StageRank         Stage = "RANK"
	StageLabelExplain Stage = "LABEL_EXPLAIN"
	StageMetrics      Stage = "METRICS"
	StageReport       Stage = "REPORT"
)

// Report is the outcome of evaluating one query. Slices are aligned by
// rank position.
type Report struct {
	Key              string                 `json:"key"`
	Name             string                 `json:"name"`
	Query            string                 `json:"query"`
	ExpectedCategory string                 `json:"expected_category"`
	Alpha            float64                `json:"alpha"`
	Model            string                 `json:"model,omitempty"`
	RankedIndices    []int                  `json:"ranked_indices"`
	Titles           []string               `json:"titles"`
	Categories       []string               `json:"categories"`
	HumanLabels      []int                  `json:"human_labels"`
	ModelLabels      []int                  `json:"model_labels"`
	Explanations     []string               `json:"explanations"`
	Annotations      []relevance.Annotation `json:"annotations"`
	Metrics          metrics.Report         `json:"metrics"`

	// CategoryMatch is the fraction of results in the expected category.
	CategoryMatch float64 `json:"category_match"`

	// Degraded counts annotations where a model call failed.
	Degraded int `json:"degraded"`

	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
}

// Summary is the result of evaluating every query.
type Summary struct {
	Reports []*Report      `json:"reports"`
	Mean    metrics.Report `json:"mean"`
}

func categoryMatch(categories []string, expected string) float64 {
	if len(categories) == 0 || expected == "" {
		return 0
	}
	hits := 0
	for _, c := range categories {
		if c == expected {
			hits++
		}
	}
	return float64(hits) / float64(len(categories))
}
