package store

import (
	"context"
	"math"
)

// OkapiIndex is an in-memory Okapi BM25 scorer. It is immutable after
// construction and safe for concurrent use.
type OkapiIndex struct {
	config    LexicalConfig
	termFreqs []map[string]int
	docLens   []int
	avgDL     float64
	idf       map[string]float64
}

// Verify interface implementation
var _ LexicalScorer = (*OkapiIndex)(nil)

// NewOkapiIndex builds the index over pre-tokenized documents.
//
// idf(t) = ln(N - n(t) + 0.5) - ln(n(t) + 0.5). Terms present in more than
// half the corpus get a negative idf, which is replaced by
// Epsilon * mean(idf) so that common terms still count a little.
func NewOkapiIndex(docs [][]string, cfg LexicalConfig) *OkapiIndex {
	if cfg.K1 == 0 && cfg.B == 0 && cfg.Epsilon == 0 {
		cfg = DefaultLexicalConfig()
	}

	idx := &OkapiIndex{
		config:    cfg,
		termFreqs: make([]map[string]int, len(docs)),
		docLens:   make([]int, len(docs)),
		idf:       make(map[string]float64),
	}

	docFreq := make(map[string]int)
	total := 0
	for i, tokens := range docs {
		tf := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			tf[tok]++
		}
		for term := range tf {
			docFreq[term]++
		}
		idx.termFreqs[i] = tf
		idx.docLens[i] = len(tokens)
		total += len(tokens)
	}

	if len(docs) > 0 {
		idx.avgDL = float64(total) / float64(len(docs))
	}

	n := float64(len(docs))
	idfSum := 0.0
	var negative []string
	for term, df := range docFreq {
		v := math.Log(n-float64(df)+0.5) - math.Log(float64(df)+0.5)
		idx.idf[term] = v
		idfSum += v
		if v < 0 {
			negative = append(negative, term)
		}
	}

	if len(docFreq) > 0 {
		floor := cfg.Epsilon * idfSum / float64(len(docFreq))
		for _, term := range negative {
			idx.idf[term] = floor
		}
	}

	return idx
}

// Scores implements LexicalScorer. Repeated query tokens contribute once
// per occurrence.
func (o *OkapiIndex) Scores(ctx context.Context, tokens []string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scores := make([]float64, len(o.termFreqs))
	if len(tokens) == 0 || o.avgDL == 0 {
		return scores, nil
	}

	k1, b := o.config.K1, o.config.B
	for _, tok := range tokens {
		idf, ok := o.idf[tok]
		if !ok {
			continue
		}
		for i, tf := range o.termFreqs {
			f := float64(tf[tok])
			if f == 0 {
				continue
			}
			norm := k1 * (1 - b + b*float64(o.docLens[i])/o.avgDL)
			scores[i] += idf * f * (k1 + 1) / (f + norm)
		}
	}

	return scores, nil
}

// IDF returns the (floored) idf of a term and whether it occurs in the corpus.
func (o *OkapiIndex) IDF(term string) (float64, bool) {
	v, ok := o.idf[term]
	return v, ok
}

// Len implements LexicalScorer.
func (o *OkapiIndex) Len() int { return len(o.termFreqs) }

// Backend implements LexicalScorer.
func (o *OkapiIndex) Backend() LexicalBackend { return LexicalBackendOkapi }

// Close implements LexicalScorer.
func (o *OkapiIndex) Close() error { return nil }
