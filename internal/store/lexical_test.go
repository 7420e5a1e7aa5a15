package store

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var lexicalTexts = []string{
	"Early detection of cancer using blood biomarkers",
	"Protein interactions in cellular processes",
	"Zero-day attacks against cloud systems",
	"Recommendation systems for e-commerce platforms",
	"Cancer cell imaging with machine learning",
}

func TestNewLexicalScorer_AllBackends(t *testing.T) {
	for _, backend := range []string{"", "okapi", "bleve", "sqlite"} {
		t.Run("backend="+backend, func(t *testing.T) {
			// Given: a scorer over the sample abstracts
			scorer, err := NewLexicalScorer(context.Background(), backend, lexicalTexts, DefaultLexicalConfig())
			require.NoError(t, err)
			defer func() { _ = scorer.Close() }()

			// When: scoring a query about cancer
			scores, err := scorer.Scores(context.Background(), Tokenize("cancer detection"))
			require.NoError(t, err)

			// Then: one score per document, only cancer abstracts score
			require.Len(t, scores, len(lexicalTexts))
			assert.Equal(t, len(lexicalTexts), scorer.Len())
			assert.Greater(t, scores[0], 0.0)
			assert.Greater(t, scores[4], 0.0)
			assert.Greater(t, scores[0], scores[4])
			assert.Zero(t, scores[1])
			assert.Zero(t, scores[2])
			assert.Zero(t, scores[3])
		})
	}
}

func TestNewLexicalScorer_EmptyQuery(t *testing.T) {
	for _, backend := range []string{"okapi", "bleve", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			scorer, err := NewLexicalScorer(context.Background(), backend, lexicalTexts, DefaultLexicalConfig())
			require.NoError(t, err)
			defer func() { _ = scorer.Close() }()

			scores, err := scorer.Scores(context.Background(), nil)
			require.NoError(t, err)
			assert.Equal(t, make([]float64, len(lexicalTexts)), scores)
			assert.Equal(t, LexicalBackend(backend), scorer.Backend())
		})
	}
}

func TestNewLexicalScorer_UnknownBackend(t *testing.T) {
	_, err := NewLexicalScorer(context.Background(), "lucene", lexicalTexts, DefaultLexicalConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown lexical backend")
}

func TestSQLiteIndex_QuotesTokens(t *testing.T) {
	assert.Equal(t, `"a" OR "b""c"`, matchExpression([]string{"a", `b"c`, "a"}))

	idx, err := NewSQLiteIndex(context.Background(), lexicalTexts)
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()

	// Tokens with FTS5 operators or quotes must not error.
	scores, err := idx.Scores(context.Background(), []string{`"`, "and", "(cancer", "*"})
	require.NoError(t, err)
	assert.Len(t, scores, len(lexicalTexts))
}

func TestLexicalScorers_ClosedIndex(t *testing.T) {
	b, err := NewBleveIndex(context.Background(), lexicalTexts)
	require.NoError(t, err)
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
	_, err = b.Scores(context.Background(), []string{"cancer"})
	assert.Error(t, err)

	s, err := NewSQLiteIndex(context.Background(), lexicalTexts)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	_, err = s.Scores(context.Background(), []string{"cancer"})
	assert.Error(t, err)
}

func TestWhitespaceTokenizer_MatchesTokenize(t *testing.T) {
	input := "  Zero-Day  attacks,\tCLOUD\nsystems "
	stream := (&whitespaceTokenizer{}).Tokenize([]byte(input))

	want := Tokenize(input)
	require.Len(t, stream, len(want))
	for i, tok := range stream {
		assert.Equal(t, want[i], string(tok.Term))
		assert.Equal(t, i+1, tok.Position)
		assert.Equal(t, want[i], strings.ToLower(input[tok.Start:tok.End]))
	}
}
