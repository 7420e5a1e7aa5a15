package relevance

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/grantlens/internal/corpus"
)

// ExplanationUnavailable replaces an explanation the model could not produce.
const ExplanationUnavailable = "explanation unavailable"

// Annotation is the model's verdict on one ranked grant.
type Annotation struct {
	Label       int    `json:"label"`
	Explanation string `json:"explanation"`

	// LabelFallback marks a response that was neither 0 nor 1.
	LabelFallback bool `json:"label_fallback,omitempty"`

	LabelDegraded       bool   `json:"label_degraded,omitempty"`
	ExplanationDegraded bool   `json:"explanation_degraded,omitempty"`
	LabelError          string `json:"label_error,omitempty"`
	ExplanationError    string `json:"explanation_error,omitempty"`
}

// Degraded reports whether either model call failed.
func (a Annotation) Degraded() bool {
	return a.LabelDegraded || a.ExplanationDegraded
}

// Annotator labels then explains grants. Failures are isolated per call:
// a failed label becomes 0 and a failed explanation becomes
// ExplanationUnavailable, so one bad call never hides the other results.
type Annotator struct {
	judge   *Judge
	workers int
}

// NewAnnotator creates an annotator. workers > 1 annotates grants
// concurrently; results are always returned in input order.
func NewAnnotator(judge *Judge, workers int) *Annotator {
	return &Annotator{judge: judge, workers: max(1, workers)}
}

// Workers returns the concurrency limit.
func (a *Annotator) Workers() int { return a.workers }

// Annotate classifies and explains one grant.
func (a *Annotator) Annotate(ctx context.Context, query string, g corpus.Grant) Annotation {
	var ann Annotation

	label, err := a.judge.Classify(ctx, query, g.Abstract)
	if err != nil {
		slog.Warn("label_degraded",
			slog.Int("grant", g.Index),
			slog.String("error", err.Error()))
		ann.Label = 0
		ann.LabelDegraded = true
		ann.LabelError = err.Error()
	} else {
		ann.Label = label.Value
		ann.LabelFallback = label.Fallback
	}

	explanation, err := a.judge.Explain(ctx, query, g.Title, g.Abstract, ann.Label)
	if err != nil {
		slog.Warn("explanation_degraded",
			slog.Int("grant", g.Index),
			slog.String("error", err.Error()))
		ann.Explanation = ExplanationUnavailable
		ann.ExplanationDegraded = true
		ann.ExplanationError = err.Error()
	} else {
		ann.Explanation = explanation
	}

	return ann
}

// AnnotateAll annotates grants and returns annotations in the same order.
func (a *Annotator) AnnotateAll(ctx context.Context, query string, grants []corpus.Grant) []Annotation {
	out := make([]Annotation, len(grants))

	if a.workers <= 1 {
		for i, g := range grants {
			out[i] = a.Annotate(ctx, query, g)
		}
		return out
	}

	var g errgroup.Group
	g.SetLimit(a.workers)
	for i, grant := range grants {
		g.Go(func() error {
			out[i] = a.Annotate(ctx, query, grant)
			return nil
		})
	}
	_ = g.Wait()

	return out
}
