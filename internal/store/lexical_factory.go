package store

import (
	"context"
	"fmt"
)

// ParseLexicalBackend validates a backend name. Empty selects okapi.
func ParseLexicalBackend(name string) (LexicalBackend, error) {
	switch LexicalBackend(name) {
	case "", LexicalBackendOkapi:
		return LexicalBackendOkapi, nil
	case LexicalBackendBleve:
		return LexicalBackendBleve, nil
	case LexicalBackendSQLite:
		return LexicalBackendSQLite, nil
	default:
		return "", fmt.Errorf("unknown lexical backend: %s (valid options: okapi, bleve, sqlite)", name)
	}
}

// NewLexicalScorer builds a LexicalScorer over texts with the given backend.
//
// backend options:
//   - "okapi" (default): in-process Okapi BM25, exact k1/b/epsilon control
//   - "bleve": in-memory bleve/v2 index
//   - "sqlite": in-memory SQLite FTS5 table
func NewLexicalScorer(ctx context.Context, backend string, texts []string, cfg LexicalConfig) (LexicalScorer, error) {
	b, err := ParseLexicalBackend(backend)
	if err != nil {
		return nil, err
	}

	switch b {
	case LexicalBackendBleve:
		return NewBleveIndex(ctx, texts)
	case LexicalBackendSQLite:
		return NewSQLiteIndex(ctx, texts)
	default:
		return NewOkapiIndex(TokenizeAll(texts), cfg), nil
	}
}
