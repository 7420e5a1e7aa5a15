package evaluate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Aman-CERP/grantlens/internal/corpus"
	grerrors "github.com/Aman-CERP/grantlens/internal/errors"
	"github.com/Aman-CERP/grantlens/internal/metrics"
	"github.com/Aman-CERP/grantlens/internal/relevance"
	"github.com/Aman-CERP/grantlens/internal/search"
)

// Ranker produces the fused ranking for a query.
type Ranker interface {
	Rank(ctx context.Context, query string, topK int, alpha float64) ([]search.RankedResult, error)
}

// Annotator labels and explains ranked grants in rank order.
type Annotator interface {
	AnnotateAll(ctx context.Context, query string, grants []corpus.Grant) []relevance.Annotation
}

// ReportSink receives every finished report.
type ReportSink interface {
	RecordReport(ctx context.Context, r *Report) error
}

// Config controls evaluation runs.
type Config struct {
	// Alpha is the lexical weight used for ranking.
	Alpha float64

	// CandidatePool is compared against the label table provenance.
	CandidatePool int

	// FailFast fails the run when any annotation degraded.
	FailFast bool
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithSink sends finished reports to s. Sink errors are logged only.
func WithSink(s ReportSink) Option {
	return func(e *Evaluator) {
		e.sinks = append(e.sinks, s)
	}
}

// WithModelName records the annotating model in reports.
func WithModelName(name string) Option {
	return func(e *Evaluator) {
		e.model = name
	}
}

// Evaluator runs evaluation queries.
type Evaluator struct {
	ranker    Ranker
	annotator Annotator
	corpus    *corpus.Corpus
	table     *LabelTable
	cfg       Config
	model     string
	sinks     []ReportSink
}

// NewEvaluator creates an evaluator.
func NewEvaluator(ranker Ranker, annotator Annotator, c *corpus.Corpus, table *LabelTable, cfg Config, opts ...Option) *Evaluator {
	e := &Evaluator{
		ranker:    ranker,
		annotator: annotator,
		corpus:    c,
		table:     table,
		cfg:       cfg,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Table returns the label table.
func (e *Evaluator) Table() *LabelTable { return e.table }

// Run evaluates the query with the given key.
func (e *Evaluator) Run(ctx context.Context, key string) (*Report, error) {
	start := time.Now()
	logStage(key, StageStart)

	q, ok := e.table.Get(key)
	if !ok {
		return nil, grerrors.New(grerrors.ErrCodeUnknownEvalQuery,
			fmt.Sprintf("unknown evaluation query %q", key), nil).
			WithSuggestion("Valid keys: " + strings.Join(e.table.Keys(), ", "))
	}
	if err := e.table.CheckProvenance(e.cfg.Alpha, e.cfg.CandidatePool, e.corpus.Len()); err != nil {
		return nil, err
	}

	logStage(key, StageRank)
	ranked, err := e.ranker.Rank(ctx, q.Text, LabelsPerQuery, e.cfg.Alpha)
	if err != nil {
		return nil, err
	}
	if len(ranked) < LabelsPerQuery {
		return nil, grerrors.New(grerrors.ErrCodeEvaluationFailed,
			fmt.Sprintf("ranking returned %d results, human labels need %d", len(ranked), LabelsPerQuery), nil).
			WithDetail("key", key)
	}

	report := &Report{
		Key:              q.Key,
		Name:             q.Name,
		Query:            q.Text,
		ExpectedCategory: q.ExpectedCategory,
		Alpha:            e.cfg.Alpha,
		Model:            e.model,
		HumanLabels:      append([]int(nil), q.HumanLabels...),
		StartedAt:        start,
	}

	grants := make([]corpus.Grant, len(ranked))
	for i, r := range ranked {
		g, ok := e.corpus.Get(r.Index)
		if !ok {
			return nil, grerrors.New(grerrors.ErrCodeInternal,
				fmt.Sprintf("ranked index %d outside corpus", r.Index), nil)
		}
		grants[i] = g
		report.RankedIndices = append(report.RankedIndices, g.Index)
		report.Titles = append(report.Titles, g.Title)
		report.Categories = append(report.Categories, g.Category)
	}

	logStage(key, StageLabelExplain)
	report.Annotations = e.annotator.AnnotateAll(ctx, q.Text, grants)
	for _, a := range report.Annotations {
		report.ModelLabels = append(report.ModelLabels, a.Label)
		report.Explanations = append(report.Explanations, a.Explanation)
		if a.Degraded() {
			report.Degraded++
		}
	}
	if e.cfg.FailFast && report.Degraded > 0 {
		return nil, grerrors.New(grerrors.ErrCodeLLMFailed,
			fmt.Sprintf("%d of %d annotations failed", report.Degraded, len(report.Annotations)), nil).
			WithDetail("key", key)
	}

	logStage(key, StageMetrics)
	report.Metrics, err = metrics.Compute(report.HumanLabels, report.ModelLabels)
	if err != nil {
		return nil, grerrors.New(grerrors.ErrCodeEvaluationFailed, "computing metrics", err)
	}
	report.CategoryMatch = categoryMatch(report.Categories, q.ExpectedCategory)

	logStage(key, StageReport)
	report.Duration = time.Since(start)

	for _, s := range e.sinks {
		if err := s.RecordReport(ctx, report); err != nil {
			slog.Warn("report_sink_failed",
				slog.String("key", key),
				slog.String("error", err.Error()))
		}
	}

	slog.Info("evaluation_completed",
		slog.String("key", key),
		slog.Float64("precision", report.Metrics.Precision),
		slog.Float64("mrr", report.Metrics.MRR),
		slog.Float64("ndcg", report.Metrics.NDCG),
		slog.Float64("agreement", report.Metrics.Agreement),
		slog.Int("degraded", report.Degraded),
		slog.Duration("duration", report.Duration))

	return report, nil
}

// RunAll evaluates every query in table order and averages the metrics.
// The first failing query aborts the run.
func (e *Evaluator) RunAll(ctx context.Context) (*Summary, error) {
	summary := &Summary{Reports: make([]*Report, 0, len(e.table.Queries))}
	scores := make([]metrics.Report, 0, len(e.table.Queries))

	for _, key := range e.table.Keys() {
		r, err := e.Run(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("evaluating %s: %w", key, err)
		}
		summary.Reports = append(summary.Reports, r)
		scores = append(scores, r.Metrics)
	}

	summary.Mean = metrics.Mean(scores)
	return summary, nil
}

func logStage(key string, stage Stage) {
	slog.Info("evaluation_stage",
		slog.String("key", key),
		slog.String("stage", string(stage)))
}
