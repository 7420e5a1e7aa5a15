package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/Aman-CERP/grantlens/internal/corpus"
	grerrors "github.com/Aman-CERP/grantlens/internal/errors"
	"github.com/Aman-CERP/grantlens/internal/relevance"
	"github.com/Aman-CERP/grantlens/internal/search"
)

// SearchRequest is one search. Zero TopK and nil Alpha take the configured
// defaults.
type SearchRequest struct {
	Query string   `json:"query"`
	TopK  int      `json:"top_k,omitempty"`
	Alpha *float64 `json:"alpha,omitempty"`

	// SkipAnnotations returns ranked grants without model labels or
	// explanations.
	SkipAnnotations bool `json:"skip_annotations,omitempty"`
}

// SearchResult is one ranked grant as shown to users.
type SearchResult struct {
	Rank     int     `json:"rank"`
	Index    int     `json:"index"`
	Title    string  `json:"title"`
	Category string  `json:"category"`
	Abstract string  `json:"abstract"`
	Score    float64 `json:"score"`

	LexicalScore float64 `json:"lexical_score"`
	DenseScore   float64 `json:"dense_score"`

	// Label and Explanation are empty when annotations were skipped.
	Label       *int   `json:"label,omitempty"`
	Explanation string `json:"explanation,omitempty"`

	// Degraded is set when a model call for this grant failed.
	Degraded bool `json:"degraded,omitempty"`
}

// SearchResponse carries the results and the parameters actually used.
type SearchResponse struct {
	Query    string         `json:"query"`
	TopK     int            `json:"top_k"`
	Alpha    float64        `json:"alpha"`
	Results  []SearchResult `json:"results"`
	Duration time.Duration  `json:"duration_ns"`
}

// Search ranks grants for req.Query and, unless skipped, labels and
// explains each result in rank order.
func (rt *Runtime) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	start := time.Now()

	topK := req.TopK
	if topK == 0 {
		topK = rt.Config.Search.TopK
	}
	alpha := rt.Config.Search.Alpha
	if req.Alpha != nil {
		alpha = *req.Alpha
	}

	resp, err := rt.search(ctx, req, topK, alpha)
	duration := time.Since(start)
	rt.Metrics.RecordSearch(searchOutcome(err), resultCount(resp), duration)
	if err != nil {
		slog.Warn("search_failed",
			slog.String("query", req.Query),
			slog.String("error", err.Error()))
		return nil, err
	}
	resp.Duration = duration

	if rt.History != nil {
		if herr := rt.History.RecordSearch(ctx, req.Query, len(resp.Results)); herr != nil {
			slog.Warn("history_record_failed", slog.String("error", herr.Error()))
		}
	}

	slog.Info("search_completed",
		slog.String("query", req.Query),
		slog.Int("top_k", topK),
		slog.Float64("alpha", alpha),
		slog.Int("results", len(resp.Results)),
		slog.Bool("annotated", !req.SkipAnnotations),
		slog.Duration("duration", duration))

	return resp, nil
}

func (rt *Runtime) search(ctx context.Context, req SearchRequest, topK int, alpha float64) (*SearchResponse, error) {
	if err := search.ValidateRequest(req.Query, topK, alpha); err != nil {
		return nil, err
	}
	if !req.SkipAnnotations && rt.Annotator == nil {
		return nil, grerrors.ConfigError("no language model configured", nil).
			WithSuggestion("Search with annotations skipped, or configure the llm section")
	}

	ranked, err := rt.Ranker.Rank(ctx, req.Query, topK, alpha)
	if err != nil {
		return nil, err
	}

	grants := make([]corpus.Grant, len(ranked))
	results := make([]SearchResult, len(ranked))
	for i, r := range ranked {
		g, ok := rt.Corpus.Get(r.Index)
		if !ok {
			return nil, grerrors.InternalError("ranked index outside corpus", nil)
		}
		grants[i] = g
		results[i] = SearchResult{
			Rank:         i + 1,
			Index:        g.Index,
			Title:        g.Title,
			Category:     g.Category,
			Abstract:     g.Abstract,
			Score:        r.Score,
			LexicalScore: r.LexicalScore,
			DenseScore:   r.DenseScore,
		}
	}

	if !req.SkipAnnotations && len(grants) > 0 {
		annotations := rt.Annotator.AnnotateAll(ctx, req.Query, grants)
		for i, a := range annotations {
			applyAnnotation(&results[i], a)
		}
	}

	return &SearchResponse{
		Query:   req.Query,
		TopK:    topK,
		Alpha:   alpha,
		Results: results,
	}, nil
}

func applyAnnotation(r *SearchResult, a relevance.Annotation) {
	label := a.Label
	r.Label = &label
	r.Explanation = a.Explanation
	r.Degraded = a.Degraded()
}

func searchOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case grerrors.GetCategory(err) == grerrors.CategoryValidation:
		return "invalid"
	default:
		return "error"
	}
}

func resultCount(resp *SearchResponse) int {
	if resp == nil {
		return 0
	}
	return len(resp.Results)
}
