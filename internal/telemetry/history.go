// Package telemetry records what grantlens does: Prometheus collectors for
// live operation and a local SQLite history of evaluation runs and search
// terms. Nothing is reported externally.
package telemetry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	grerrors "github.com/Aman-CERP/grantlens/internal/errors"
	"github.com/Aman-CERP/grantlens/internal/evaluate"
)

// MaxZeroResultQueries bounds the zero-result query buffer.
const MaxZeroResultQueries = 100

// RunRecord is one stored evaluation run.
type RunRecord struct {
	ID            int64         `json:"id"`
	Key           string        `json:"key"`
	Query         string        `json:"query"`
	Alpha         float64       `json:"alpha"`
	Model         string        `json:"model"`
	Precision     float64       `json:"precision"`
	MRR           float64       `json:"mrr"`
	NDCG          float64       `json:"ndcg"`
	Agreement     float64       `json:"agreement"`
	CategoryMatch float64       `json:"category_match"`
	Degraded      int           `json:"degraded"`
	RankedIndices []int         `json:"ranked_indices"`
	HumanLabels   []int         `json:"human_labels"`
	ModelLabels   []int         `json:"model_labels"`
	StartedAt     time.Time     `json:"started_at"`
	Duration      time.Duration `json:"duration_ns"`
}

// TermCount represents a query term and its frequency count.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// HistoryStore persists evaluation runs and search term statistics.
type HistoryStore struct {
	db *sql.DB
}

// OpenHistoryStore opens (or creates) the history database at path.
// ":memory:" keeps history for the process lifetime only.
func OpenHistoryStore(ctx context.Context, path string) (*HistoryStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, grerrors.New(grerrors.ErrCodeHistoryStore, "create history directory", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, grerrors.New(grerrors.ErrCodeHistoryStore, "open history database", err)
	}
	// One writer; also keeps a :memory: database on a single connection.
	db.SetMaxOpenConns(1)

	if err := InitHistorySchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, grerrors.New(grerrors.ErrCodeHistoryStore, "initialize history schema", err)
	}

	return &HistoryStore{db: db}, nil
}

// InitHistorySchema creates the history tables if they don't exist.
func InitHistorySchema(ctx context.Context, db *sql.DB) error {
	schema := `
	-- One row per finished evaluation run
	CREATE TABLE IF NOT EXISTS evaluation_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		query_key TEXT NOT NULL,
		query TEXT NOT NULL,
		alpha REAL NOT NULL,
		model TEXT NOT NULL DEFAULT '',
		precision REAL NOT NULL,
		mrr REAL NOT NULL,
		ndcg REAL NOT NULL,
		agreement REAL NOT NULL,
		category_match REAL NOT NULL DEFAULT 0,
		degraded INTEGER NOT NULL DEFAULT 0,
		ranked_indices TEXT NOT NULL,
		human_labels TEXT NOT NULL,
		model_labels TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		duration_ms INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_evaluation_runs_key ON evaluation_runs(query_key, id DESC);

	-- Search query terms (with frequency count)
	CREATE TABLE IF NOT EXISTS query_terms (
		term TEXT PRIMARY KEY,
		count INTEGER NOT NULL DEFAULT 1,
		last_seen TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_query_terms_count ON query_terms(count DESC);

	-- Zero-result searches (circular buffer)
	CREATE TABLE IF NOT EXISTS zero_result_queries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		query TEXT NOT NULL,
		timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create history schema: %w", err)
	}
	return nil
}

// RecordReport stores a finished evaluation report.
func (s *HistoryStore) RecordReport(ctx context.Context, r *evaluate.Report) error {
	ranked, err := json.Marshal(r.RankedIndices)
	if err != nil {
		return fmt.Errorf("encode ranked indices: %w", err)
	}
	human, err := json.Marshal(r.HumanLabels)
	if err != nil {
		return fmt.Errorf("encode human labels: %w", err)
	}
	model, err := json.Marshal(r.ModelLabels)
	if err != nil {
		return fmt.Errorf("encode model labels: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO evaluation_runs (
			query_key, query, alpha, model, precision, mrr, ndcg, agreement,
			category_match, degraded, ranked_indices, human_labels, model_labels,
			started_at, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.Key, r.Query, r.Alpha, r.Model,
		r.Metrics.Precision, r.Metrics.MRR, r.Metrics.NDCG, r.Metrics.Agreement,
		r.CategoryMatch, r.Degraded, string(ranked), string(human), string(model),
		r.StartedAt.UTC(), r.Duration.Milliseconds(),
	)
	if err != nil {
		return grerrors.New(grerrors.ErrCodeHistoryStore, "insert evaluation run", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first. An empty key lists
// every query.
func (s *HistoryStore) ListRuns(ctx context.Context, key string, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, query_key, query, alpha, model, precision, mrr, ndcg, agreement,
			category_match, degraded, ranked_indices, human_labels, model_labels,
			started_at, duration_ms
		FROM evaluation_runs
		WHERE ? = '' OR query_key = ?
		ORDER BY id DESC
		LIMIT ?
	`, key, key, limit)
	if err != nil {
		return nil, grerrors.New(grerrors.ErrCodeHistoryStore, "query evaluation runs", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var (
			rec                  RunRecord
			ranked, human, model string
			durationMs           int64
		)
		if err := rows.Scan(&rec.ID, &rec.Key, &rec.Query, &rec.Alpha, &rec.Model,
			&rec.Precision, &rec.MRR, &rec.NDCG, &rec.Agreement,
			&rec.CategoryMatch, &rec.Degraded, &ranked, &human, &model,
			&rec.StartedAt, &durationMs); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if err := decodeInts(ranked, &rec.RankedIndices); err != nil {
			return nil, err
		}
		if err := decodeInts(human, &rec.HumanLabels); err != nil {
			return nil, err
		}
		if err := decodeInts(model, &rec.ModelLabels); err != nil {
			return nil, err
		}
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		runs = append(runs, rec)
	}
	return runs, rows.Err()
}

func decodeInts(raw string, dst *[]int) error {
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("decode stored labels: %w", err)
	}
	return nil
}

// RecordSearch updates term counts and remembers queries that found nothing.
func (s *HistoryStore) RecordSearch(ctx context.Context, query string, resultCount int) error {
	if terms := ExtractTerms(query); len(terms) > 0 {
		if err := s.upsertTerms(ctx, terms); err != nil {
			return err
		}
	}
	if resultCount == 0 {
		return s.addZeroResultQuery(ctx, query, time.Now())
	}
	return nil
}

func (s *HistoryStore) upsertTerms(ctx context.Context, terms []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO query_terms (term, count, last_seen)
		VALUES (?, 1, CURRENT_TIMESTAMP)
		ON CONFLICT(term) DO UPDATE SET
			count = count + 1,
			last_seen = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, term := range terms {
		if _, err := stmt.ExecContext(ctx, term); err != nil {
			return fmt.Errorf("upsert term count: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *HistoryStore) addZeroResultQuery(ctx context.Context, query string, timestamp time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO zero_result_queries (query, timestamp)
		VALUES (?, ?)
	`, query, timestamp.UTC())
	if err != nil {
		return fmt.Errorf("insert zero-result query: %w", err)
	}

	// Trim to the newest entries
	_, err = s.db.ExecContext(ctx, `
		DELETE FROM zero_result_queries
		WHERE id NOT IN (
			SELECT id FROM zero_result_queries
			ORDER BY id DESC
			LIMIT ?
		)
	`, MaxZeroResultQueries)
	if err != nil {
		return fmt.Errorf("trim zero-result queries: %w", err)
	}
	return nil
}

// TopTerms returns the most searched terms.
func (s *HistoryStore) TopTerms(ctx context.Context, limit int) ([]TermCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT term, count
		FROM query_terms
		ORDER BY count DESC, term ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query top terms: %w", err)
	}
	defer rows.Close()

	var terms []TermCount
	for rows.Next() {
		var tc TermCount
		if err := rows.Scan(&tc.Term, &tc.Count); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		terms = append(terms, tc)
	}
	return terms, rows.Err()
}

// ZeroResultQueries returns recent searches that found nothing, newest first.
func (s *HistoryStore) ZeroResultQueries(ctx context.Context, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT query
		FROM zero_result_queries
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query zero-result queries: %w", err)
	}
	defer rows.Close()

	var queries []string
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		queries = append(queries, q)
	}
	return queries, rows.Err()
}

// Close closes the database.
func (s *HistoryStore) Close() error {
	return s.db.Close()
}

// ExtractTerms extracts countable terms from a query string.
// Terms are lowercased, stripped of punctuation, deduplicated and at least
// three characters long.
func ExtractTerms(query string) []string {
	seen := make(map[string]bool)
	var terms []string
	for _, word := range strings.Fields(strings.ToLower(query)) {
		word = strings.Trim(word, ".,;:!?\"'()[]{}")
		if len(word) < 3 || seen[word] {
			continue
		}
		seen[word] = true
		terms = append(terms, word)
	}
	return terms
}
