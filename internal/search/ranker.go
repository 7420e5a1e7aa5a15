package search

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	grerrors "github.com/Aman-CERP/grantlens/internal/errors"
	"github.com/Aman-CERP/grantlens/internal/store"
)

// Ranker fuses lexical and dense retrieval. It holds no mutable state and
// is safe for concurrent use once built.
type Ranker struct {
	lexical store.LexicalScorer
	dense   DenseRetriever
	cfg     RankerConfig
}

// NewRanker creates a ranker over a lexical scorer and a dense retriever.
func NewRanker(lexical store.LexicalScorer, dense DenseRetriever, cfg RankerConfig) *Ranker {
	return &Ranker{
		lexical: lexical,
		dense:   dense,
		cfg:     cfg.withDefaults(),
	}
}

// Config returns the effective configuration.
func (r *Ranker) Config() RankerConfig { return r.cfg }

// ValidateRequest checks rank arguments without doing any retrieval.
func ValidateRequest(query string, topK int, alpha float64) error {
	if strings.TrimSpace(query) == "" {
		return grerrors.New(grerrors.ErrCodeQueryEmpty, "query is empty", nil).
			WithSuggestion("Enter a research topic to search for")
	}
	if math.IsNaN(alpha) || alpha < 0 || alpha > 1 {
		return grerrors.New(grerrors.ErrCodeInvalidAlpha,
			fmt.Sprintf("alpha must be within [0,1], got %v", alpha), nil)
	}
	if topK < 1 {
		return grerrors.New(grerrors.ErrCodeInvalidTopK,
			fmt.Sprintf("top-k must be at least 1, got %d", topK), nil)
	}
	return nil
}

// Rank returns up to topK results for query. alpha weights the lexical
// score, 1-alpha the dense score. Fewer than topK results are returned when
// the candidate pool is smaller; an empty pool yields an empty result.
func (r *Ranker) Rank(ctx context.Context, query string, topK int, alpha float64) ([]RankedResult, error) {
	if err := ValidateRequest(query, topK, alpha); err != nil {
		return nil, err
	}

	start := time.Now()

	lexical, err := r.lexical.Scores(ctx, store.Tokenize(query))
	if err != nil {
		return nil, grerrors.New(grerrors.ErrCodeSearchFailed, "lexical scoring", err)
	}

	candidates, err := r.dense.Retrieve(ctx, query, r.cfg.CandidatePool)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return []RankedResult{}, nil
	}

	lexRaw := make([]float64, len(candidates))
	denseRaw := make([]float64, len(candidates))
	for i, c := range candidates {
		if c.Index < 0 || c.Index >= len(lexical) {
			return nil, grerrors.New(grerrors.ErrCodeSearchFailed,
				fmt.Sprintf("candidate %d outside corpus of %d documents", c.Index, len(lexical)), nil)
		}
		lexRaw[i] = lexical[c.Index]
		denseRaw[i] = c.Similarity
	}

	lexNorm := MinMaxNormalize(lexRaw, r.cfg.Epsilon)
	denseNorm := MinMaxNormalize(denseRaw, r.cfg.Epsilon)
	fused := Fuse(lexNorm, denseNorm, alpha)

	results := make([]RankedResult, len(candidates))
	for i, c := range candidates {
		results[i] = RankedResult{
			Index:         c.Index,
			Score:         fused[i],
			LexicalScore:  lexRaw[i],
			LexicalNorm:   lexNorm[i],
			DenseScore:    denseRaw[i],
			DenseNorm:     denseNorm[i],
			CandidateRank: i,
		}
	}

	// Stable: equal scores keep candidate order.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > topK {
		results = results[:topK]
	}

	slog.Debug("rank_completed",
		slog.Int("candidates", len(candidates)),
		slog.Int("returned", len(results)),
		slog.Float64("alpha", alpha),
		slog.Duration("duration", time.Since(start)))

	return results, nil
}
