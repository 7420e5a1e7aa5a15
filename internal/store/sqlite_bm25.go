package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// SQLiteIndex scores abstracts with SQLite FTS5's bm25() over an in-memory
// database. Document i is stored with rowid i.
type SQLiteIndex struct {
	mu     sync.RWMutex
	db     *sql.DB
	size   int
	closed bool
}

// Verify interface implementation at compile time
var _ LexicalScorer = (*SQLiteIndex)(nil)

// NewSQLiteIndex builds the FTS5 table from texts. Each text is stored
// pre-tokenized with Tokenize.
func NewSQLiteIndex(ctx context.Context, texts []string) (*SQLiteIndex, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	idx := &SQLiteIndex{db: db, size: len(texts)}

	if err := idx.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := idx.insert(ctx, texts); err != nil {
		_ = db.Close()
		return nil, err
	}

	return idx, nil
}

func (s *SQLiteIndex) initSchema(ctx context.Context) error {
	// unicode61 also splits on punctuation, so matching is slightly looser
	// than Tokenize.
	_, err := s.db.ExecContext(ctx, `
	CREATE VIRTUAL TABLE IF NOT EXISTS fts_abstracts USING fts5(
		content,
		tokenize='unicode61'
	);`)
	return err
}

func (s *SQLiteIndex) insert(ctx context.Context, texts []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO fts_abstracts(rowid, content) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, text := range texts {
		if _, err := stmt.ExecContext(ctx, i, strings.Join(Tokenize(text), " ")); err != nil {
			return fmt.Errorf("failed to index document %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// matchExpression ORs every token as a quoted FTS5 string so punctuation
// inside tokens cannot break the query syntax.
func matchExpression(tokens []string) string {
	quoted := make([]string, 0, len(tokens))
	seen := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		quoted = append(quoted, `"`+strings.ReplaceAll(tok, `"`, `""`)+`"`)
	}
	return strings.Join(quoted, " OR ")
}

// Scores implements LexicalScorer. FTS5 bm25() is negative with lower
// meaning better, so scores are negated.
func (s *SQLiteIndex) Scores(ctx context.Context, tokens []string) ([]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("index is closed")
	}

	scores := make([]float64, s.size)
	if len(tokens) == 0 || s.size == 0 {
		return scores, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT rowid, bm25(fts_abstracts) FROM fts_abstracts WHERE fts_abstracts MATCH ?`,
		matchExpression(tokens))
	if err != nil {
		// Tokens made only of separators produce an empty FTS5 phrase.
		if strings.Contains(err.Error(), "fts5:") || strings.Contains(err.Error(), "syntax error") {
			return scores, nil
		}
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rowid int
			score float64
		)
		if err := rows.Scan(&rowid, &score); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		if rowid >= 0 && rowid < s.size {
			scores[rowid] = -score
		}
	}

	return scores, rows.Err()
}

// Len implements LexicalScorer.
func (s *SQLiteIndex) Len() int { return s.size }

// Backend implements LexicalScorer.
func (s *SQLiteIndex) Backend() LexicalBackend { return LexicalBackendSQLite }

// Close implements LexicalScorer.
func (s *SQLiteIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
