package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
)

const (
	// GrantTokenizerName is the bleve name of the whitespace tokenizer.
	GrantTokenizerName = "grant_whitespace"

	// GrantAnalyzerName is the bleve name of the abstract analyzer.
	GrantAnalyzerName = "grant_analyzer"

	abstractField = "abstract"
)

func init() {
	_ = registry.RegisterTokenizer(GrantTokenizerName, grantTokenizerConstructor)
}

// BleveIndex scores abstracts with an in-memory bleve index. The analyzer
// produces the same tokens as Tokenize; scores come from bleve's own
// relevance model.
type BleveIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	size   int
	closed bool
}

// Verify interface implementation
var _ LexicalScorer = (*BleveIndex)(nil)

type bleveGrant struct {
	Abstract string `json:"abstract"`
}

// NewBleveIndex indexes texts in one batch; document i gets ID strconv.Itoa(i).
func NewBleveIndex(ctx context.Context, texts []string) (*BleveIndex, error) {
	indexMapping, err := createIndexMapping()
	if err != nil {
		return nil, fmt.Errorf("failed to create index mapping: %w", err)
	}

	idx, err := bleve.NewMemOnly(indexMapping)
	if err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	batch := idx.NewBatch()
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			_ = idx.Close()
			return nil, err
		}
		if err := batch.Index(strconv.Itoa(i), bleveGrant{Abstract: text}); err != nil {
			_ = idx.Close()
			return nil, fmt.Errorf("failed to index document %d: %w", i, err)
		}
	}
	if err := idx.Batch(batch); err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("failed to execute batch: %w", err)
	}

	return &BleveIndex{index: idx, size: len(texts)}, nil
}

func createIndexMapping() (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	err := indexMapping.AddCustomAnalyzer(GrantAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": GrantTokenizerName,
		"token_filters": []string{
			lowercase.Name,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add custom analyzer: %w", err)
	}

	indexMapping.DefaultAnalyzer = GrantAnalyzerName
	return indexMapping, nil
}

// Scores implements LexicalScorer.
func (b *BleveIndex) Scores(ctx context.Context, tokens []string) ([]float64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("index is closed")
	}

	scores := make([]float64, b.size)
	if len(tokens) == 0 || b.size == 0 {
		return scores, nil
	}

	matchQuery := bleve.NewMatchQuery(strings.Join(tokens, " "))
	matchQuery.SetField(abstractField)

	req := bleve.NewSearchRequest(matchQuery)
	req.Size = b.size

	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	for _, hit := range result.Hits {
		i, err := strconv.Atoi(hit.ID)
		if err != nil || i < 0 || i >= b.size {
			continue
		}
		scores[i] = hit.Score
	}

	return scores, nil
}

// Len implements LexicalScorer.
func (b *BleveIndex) Len() int { return b.size }

// Backend implements LexicalScorer.
func (b *BleveIndex) Backend() LexicalBackend { return LexicalBackendBleve }

// Close implements LexicalScorer.
func (b *BleveIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	return b.index.Close()
}

func grantTokenizerConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.Tokenizer, error) {
	return &whitespaceTokenizer{}, nil
}

// whitespaceTokenizer splits on Unicode whitespace and lowercases, matching Tokenize.
type whitespaceTokenizer struct{}

// Tokenize implements analysis.Tokenizer.
func (t *whitespaceTokenizer) Tokenize(input []byte) analysis.TokenStream {
	result := make(analysis.TokenStream, 0, len(input)/6)
	pos := 1
	start := -1

	emit := func(end int) {
		result = append(result, &analysis.Token{
			Term:     []byte(strings.ToLower(string(input[start:end]))),
			Start:    start,
			End:      end,
			Position: pos,
			Type:     analysis.AlphaNumeric,
		})
		pos++
		start = -1
	}

	for i := 0; i < len(input); {
		r, size := utf8.DecodeRune(input[i:])
		if unicode.IsSpace(r) {
			if start >= 0 {
				emit(i)
			}
		} else if start < 0 {
			start = i
		}
		i += size
	}
	if start >= 0 {
		emit(len(input))
	}

	return result
}
