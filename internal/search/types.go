// Package search ranks grants for a free-text query by fusing lexical and
// dense retrieval scores.
//
// The dense retriever proposes a candidate pool. Lexical scores are
// restricted to that pool, both score arrays are min-max normalized, and
// the weighted sum orders the final list. Documents outside the dense
// candidate pool are never returned, whatever their lexical score.
package search

// Defaults for RankerConfig.
const (
	// DefaultCandidatePool is how many dense candidates the fusion considers.
	DefaultCandidatePool = 200

	// DefaultEpsilon keeps min-max normalization finite when all scores are equal.
	DefaultEpsilon = 1e-9

	// DefaultAlpha weights lexical and dense scores equally.
	DefaultAlpha = 0.5

	// DefaultTopK is the number of results a search returns when unset.
	DefaultTopK = 5
)

// Candidate is a dense retrieval hit.
type Candidate struct {
	// Index is the corpus position of the grant.
	Index int `json:"index"`

	// Similarity is the raw dense score (cosine similarity).
	Similarity float64 `json:"similarity"`
}

// RankedResult is one fused result. Raw and normalized component scores
// are kept for display and debugging.
type RankedResult struct {
	Index         int     `json:"index"`
	Score         float64 `json:"score"`
	LexicalScore  float64 `json:"lexical_score"`
	LexicalNorm   float64 `json:"lexical_norm"`
	DenseScore    float64 `json:"dense_score"`
	DenseNorm     float64 `json:"dense_norm"`
	CandidateRank int     `json:"candidate_rank"` // 0-based position in the dense candidate list
}

// RankerConfig tunes the fusion ranker.
type RankerConfig struct {
	// CandidatePool is N, the number of dense candidates (default: 200).
	CandidatePool int

	// Epsilon is added to the normalization denominator (default: 1e-9).
	Epsilon float64
}

// DefaultRankerConfig returns the default ranker configuration.
func DefaultRankerConfig() RankerConfig {
	return RankerConfig{
		CandidatePool: DefaultCandidatePool,
		Epsilon:       DefaultEpsilon,
	}
}

func (c RankerConfig) withDefaults() RankerConfig {
	if c.CandidatePool <= 0 {
		c.CandidatePool = DefaultCandidatePool
	}
	if c.Epsilon <= 0 {
		c.Epsilon = DefaultEpsilon
	}
	return c
}
