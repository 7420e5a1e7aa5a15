package evaluate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/grantlens/internal/corpus"
	grerrors "github.com/Aman-CERP/grantlens/internal/errors"
	"github.com/Aman-CERP/grantlens/internal/llm"
	"github.com/Aman-CERP/grantlens/internal/relevance"
	"github.com/Aman-CERP/grantlens/internal/search"
)

// --- Test Helpers ---

type fixedRanker struct {
	indices []int
	err     error
	queries []string
	alphas  []float64
}

func (f *fixedRanker) Rank(_ context.Context, query string, topK int, alpha float64) ([]search.RankedResult, error) {
	f.queries = append(f.queries, query)
	f.alphas = append(f.alphas, alpha)
	if f.err != nil {
		return nil, f.err
	}
	out := make([]search.RankedResult, 0, topK)
	for i, idx := range f.indices {
		if i == topK {
			break
		}
		out = append(out, search.RankedResult{Index: idx, Score: 1 - 0.1*float64(i)})
	}
	return out, nil
}

// labelModel answers classify prompts from a per-abstract table.
type labelModel struct {
	labels map[string]string
	fail   bool
}

func (m *labelModel) Complete(_ context.Context, req llm.Request) (string, error) {
	if m.fail {
		return "", errors.New("model offline")
	}
	if req.Operation == "explain" {
		return "explained", nil
	}
	for abstract, label := range m.labels {
		if strings.Contains(req.Prompt, "Abstract: "+abstract+"\n") {
			return label, nil
		}
	}
	return "0", nil
}

func (m *labelModel) ModelName() string { return "label-model" }

type memorySink struct {
	reports []*Report
	err     error
}

func (s *memorySink) RecordReport(_ context.Context, r *Report) error {
	s.reports = append(s.reports, r)
	return s.err
}

func testCorpus() *corpus.Corpus {
	cats := []string{"CNS", "CNS", "CNS", "BIO", "CNS", "IIS", "BIO", "IIS"}
	grants := make([]corpus.Grant, len(cats))
	for i, c := range cats {
		grants[i] = corpus.Grant{
			Title:    "grant " + string(rune('A'+i)),
			Category: c,
			Abstract: "abstract-" + string(rune('A'+i)),
		}
	}
	return corpus.New("test", grants)
}

func builtinTable(t *testing.T) *LabelTable {
	t.Helper()
	table, err := LoadLabelTable("")
	require.NoError(t, err)
	return table
}

func newEvaluator(t *testing.T, ranker Ranker, model llm.Completer, cfg Config, opts ...Option) *Evaluator {
	t.Helper()
	annotator := relevance.NewAnnotator(relevance.NewJudge(model), 1)
	return NewEvaluator(ranker, annotator, testCorpus(), builtinTable(t), cfg, opts...)
}

func defaultConfig() Config {
	return Config{Alpha: 0.5, CandidatePool: 200}
}

// --- Label table ---

func TestLoadLabelTable_Builtin(t *testing.T) {
	table := builtinTable(t)

	assert.Equal(t, []string{
		"bio_cancer_detection",
		"bio_protein_interactions",
		"cns_zero_day",
		"iis_recommendation",
	}, table.Keys())

	q, ok := table.Get("cns_zero_day")
	require.True(t, ok)
	assert.Equal(t, "CNS", q.ExpectedCategory)
	assert.Equal(t, []int{0, 1, 1, 1, 0}, q.HumanLabels)
	assert.Equal(t, "Designing advanced cybersecurity methods to protect cloud-based systems from zero-day attacks and data breaches.", q.Text)

	q, _ = table.Get("bio_cancer_detection")
	assert.Equal(t, []int{0, 0, 0, 0, 0}, q.HumanLabels)

	_, ok = table.Get("nope")
	assert.False(t, ok)
}

func TestParseLabelTable_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"malformed", "queries: [oops"},
		{"empty", "queries: []"},
		{"short vector", "queries:\n  - key: a\n    text: t\n    human_labels: [0, 1]\n"},
		{"non binary", "queries:\n  - key: a\n    text: t\n    human_labels: [0, 1, 2, 0, 0]\n"},
		{"missing key", "queries:\n  - text: t\n    human_labels: [0, 0, 0, 0, 0]\n"},
		{"missing text", "queries:\n  - key: a\n    human_labels: [0, 0, 0, 0, 0]\n"},
		{"duplicate", "queries:\n  - key: a\n    text: t\n    human_labels: [0, 0, 0, 0, 0]\n  - key: a\n    text: u\n    human_labels: [0, 0, 0, 0, 0]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLabelTable([]byte(tt.yaml))

			require.Error(t, err)
			assert.True(t, grerrors.HasCode(err, grerrors.ErrCodeLabelTable))
			assert.True(t, grerrors.IsFatal(err))
		})
	}
}

func TestLoadLabelTable_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.yaml")
	require.NoError(t, os.WriteFile(path, []byte("queries:\n  - key: k\n    text: some query\n    human_labels: [1, 0, 0, 0, 0]\n"), 0o644))

	table, err := LoadLabelTable(path)

	require.NoError(t, err)
	q, ok := table.Get("k")
	require.True(t, ok)
	assert.Equal(t, "k", q.Name)
	assert.Nil(t, table.Provenance)

	_, err = LoadLabelTable(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, grerrors.HasCode(err, grerrors.ErrCodeLabelTable))
}

func TestCheckProvenance(t *testing.T) {
	table := builtinTable(t)

	assert.NoError(t, table.CheckProvenance(0.5, 200, 12345))

	err := table.CheckProvenance(0.7, 200, 100)
	require.Error(t, err)
	assert.True(t, grerrors.HasCode(err, grerrors.ErrCodeStaleLabels))
	assert.Contains(t, err.Error(), "alpha")

	err = table.CheckProvenance(0.5, 50, 100)
	assert.True(t, grerrors.HasCode(err, grerrors.ErrCodeStaleLabels))

	rows := 10
	table.Provenance.CorpusRows = rows
	assert.Error(t, table.CheckProvenance(0.5, 200, 11))
	assert.NoError(t, table.CheckProvenance(0.5, 200, rows))
}

// --- Evaluator ---

func TestRun_ZeroDayQuery(t *testing.T) {
	// Given: a ranking of five grants and a model agreeing on four of them
	ranker := &fixedRanker{indices: []int{3, 0, 1, 2, 5}}
	model := &labelModel{labels: map[string]string{
		"abstract-A": "1",
		"abstract-B": "1",
		"abstract-C": "0",
	}}
	sink := &memorySink{}
	e := newEvaluator(t, ranker, model, defaultConfig(), WithSink(sink), WithModelName("label-model"))

	// When: evaluating cns_zero_day
	report, err := e.Run(context.Background(), "cns_zero_day")

	// Then: human metrics follow the fixed label vector
	require.NoError(t, err)
	assert.InDelta(t, 0.6, report.Metrics.Precision, 1e-9)
	assert.InDelta(t, 0.5, report.Metrics.MRR, 1e-9)
	assert.Greater(t, report.Metrics.NDCG, 0.0)

	// And: the report lines up by rank position
	assert.Equal(t, []int{3, 0, 1, 2, 5}, report.RankedIndices)
	assert.Equal(t, []string{"BIO", "CNS", "CNS", "CNS", "IIS"}, report.Categories)
	assert.Equal(t, []string{"grant D", "grant A", "grant B", "grant C", "grant F"}, report.Titles)
	assert.Equal(t, []int{0, 1, 1, 1, 0}, report.HumanLabels)
	assert.Equal(t, []int{0, 1, 1, 0, 0}, report.ModelLabels)
	assert.InDelta(t, 0.8, report.Metrics.Agreement, 1e-9)
	assert.InDelta(t, 0.6, report.CategoryMatch, 1e-9)
	assert.Len(t, report.Explanations, 5)
	assert.Zero(t, report.Degraded)
	assert.Equal(t, "label-model", report.Model)

	// And: the ranker saw the query text and configured alpha
	assert.Equal(t, []string{report.Query}, ranker.queries)
	assert.Equal(t, []float64{0.5}, ranker.alphas)

	// And: the sink received the report
	require.Len(t, sink.reports, 1)
	assert.Same(t, report, sink.reports[0])
}

func TestRun_UnknownKey(t *testing.T) {
	ranker := &fixedRanker{indices: []int{0, 1, 2, 3, 4}}
	e := newEvaluator(t, ranker, &labelModel{}, defaultConfig())

	_, err := e.Run(context.Background(), "astronomy")

	require.Error(t, err)
	assert.True(t, grerrors.HasCode(err, grerrors.ErrCodeUnknownEvalQuery))
	assert.Empty(t, ranker.queries)
}

func TestRun_TooFewResults(t *testing.T) {
	e := newEvaluator(t, &fixedRanker{indices: []int{0, 1, 2}}, &labelModel{}, defaultConfig())

	_, err := e.Run(context.Background(), "cns_zero_day")

	require.Error(t, err)
	assert.True(t, grerrors.HasCode(err, grerrors.ErrCodeEvaluationFailed))
}

func TestRun_StaleLabels(t *testing.T) {
	ranker := &fixedRanker{indices: []int{0, 1, 2, 3, 4}}
	e := newEvaluator(t, ranker, &labelModel{}, Config{Alpha: 0.8, CandidatePool: 200})

	_, err := e.Run(context.Background(), "cns_zero_day")

	require.Error(t, err)
	assert.True(t, grerrors.HasCode(err, grerrors.ErrCodeStaleLabels))
	assert.Empty(t, ranker.queries)
}

func TestRun_RankerError(t *testing.T) {
	rankErr := errors.New("index closed")
	e := newEvaluator(t, &fixedRanker{err: rankErr}, &labelModel{}, defaultConfig())

	_, err := e.Run(context.Background(), "cns_zero_day")

	assert.ErrorIs(t, err, rankErr)
}

func TestRun_DegradedAnnotationsCompleteByDefault(t *testing.T) {
	// Given: a model that fails every call
	e := newEvaluator(t, &fixedRanker{indices: []int{0, 1, 2, 3, 4}}, &labelModel{fail: true}, defaultConfig())

	// When: evaluating
	report, err := e.Run(context.Background(), "cns_zero_day")

	// Then: the run completes with neutral labels and marked explanations
	require.NoError(t, err)
	assert.Equal(t, 5, report.Degraded)
	assert.Equal(t, []int{0, 0, 0, 0, 0}, report.ModelLabels)
	for _, ex := range report.Explanations {
		assert.Equal(t, relevance.ExplanationUnavailable, ex)
	}
	assert.InDelta(t, 0.6, report.Metrics.Precision, 1e-9)
	assert.InDelta(t, 0.4, report.Metrics.Agreement, 1e-9)
}

func TestRun_FailFast(t *testing.T) {
	cfg := defaultConfig()
	cfg.FailFast = true
	e := newEvaluator(t, &fixedRanker{indices: []int{0, 1, 2, 3, 4}}, &labelModel{fail: true}, cfg)

	_, err := e.Run(context.Background(), "cns_zero_day")

	require.Error(t, err)
	assert.True(t, grerrors.HasCode(err, grerrors.ErrCodeLLMFailed))
}

func TestRun_SinkErrorIsNotFatal(t *testing.T) {
	sink := &memorySink{err: errors.New("disk full")}
	e := newEvaluator(t, &fixedRanker{indices: []int{0, 1, 2, 3, 4}}, &labelModel{}, defaultConfig(), WithSink(sink))

	_, err := e.Run(context.Background(), "iis_recommendation")

	require.NoError(t, err)
	assert.Len(t, sink.reports, 1)
}

func TestRunAll(t *testing.T) {
	// Given: the same ranking for every query
	ranker := &fixedRanker{indices: []int{0, 1, 2, 3, 4}}
	e := newEvaluator(t, ranker, &labelModel{}, defaultConfig())

	// When: evaluating every built-in query
	summary, err := e.RunAll(context.Background())

	// Then: reports follow table order and precision is averaged
	require.NoError(t, err)
	require.Len(t, summary.Reports, 4)
	assert.Equal(t, "bio_cancer_detection", summary.Reports[0].Key)
	assert.Equal(t, "iis_recommendation", summary.Reports[3].Key)
	// (0 + 0.2 + 0.6 + 0.2) / 4
	assert.InDelta(t, 0.25, summary.Mean.Precision, 1e-9)
	// (0 + 0.5 + 0.5 + 0.5) / 4
	assert.InDelta(t, 0.375, summary.Mean.MRR, 1e-9)
}

func TestRunAll_StopsOnError(t *testing.T) {
	e := newEvaluator(t, &fixedRanker{indices: []int{0, 1}}, &labelModel{}, defaultConfig())

	_, err := e.RunAll(context.Background())

	require.Error(t, err)
	assert.True(t, grerrors.HasCode(err, grerrors.ErrCodeEvaluationFailed))
	assert.Contains(t, err.Error(), "bio_cancer_detection")
}
