// Package app assembles the grantlens runtime: the corpus, both retrieval
// indexes, the ranker, the language model annotator and the evaluator.
//
// A Runtime is read-only once built. Every consumer (CLI, HTTP API, MCP
// server) shares one; a long-running server wraps it in a Reloader so a
// changed corpus file can be swapped in without a restart.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/grantlens/internal/config"
	"github.com/Aman-CERP/grantlens/internal/corpus"
	"github.com/Aman-CERP/grantlens/internal/embed"
	grerrors "github.com/Aman-CERP/grantlens/internal/errors"
	"github.com/Aman-CERP/grantlens/internal/evaluate"
	"github.com/Aman-CERP/grantlens/internal/llm"
	"github.com/Aman-CERP/grantlens/internal/relevance"
	"github.com/Aman-CERP/grantlens/internal/search"
	"github.com/Aman-CERP/grantlens/internal/store"
	"github.com/Aman-CERP/grantlens/internal/telemetry"
)

// Runtime is the process-wide retrieval context.
type Runtime struct {
	Config    *config.Config
	Corpus    *corpus.Corpus
	Lexical   store.LexicalScorer
	Dense     *search.EmbeddingRetriever
	Ranker    *search.Ranker
	Annotator *relevance.Annotator
	Evaluator *evaluate.Evaluator
	Labels    *evaluate.LabelTable
	Metrics   *telemetry.Metrics

	// History is nil when history.enabled is false.
	History *telemetry.HistoryStore

	embedder embed.Embedder
	model    string

	// borrowed is set when embedder belongs to another Runtime.
	borrowed bool
}

// Option customises Build.
type Option func(*buildOptions)

type buildOptions struct {
	corpus    *corpus.Corpus
	embedder  embed.Embedder
	completer llm.Completer
	metrics   *telemetry.Metrics
	progress  search.ProgressFunc
	noLLM     bool
	borrow    bool
}

// WithCorpus uses c instead of loading corpus.path.
func WithCorpus(c *corpus.Corpus) Option {
	return func(o *buildOptions) { o.corpus = c }
}

// WithEmbedder uses e instead of the configured embedding provider. The
// Runtime closes it.
func WithEmbedder(e embed.Embedder) Option {
	return func(o *buildOptions) { o.embedder = e }
}

// WithCompleter uses c instead of the configured language model.
func WithCompleter(c llm.Completer) Option {
	return func(o *buildOptions) { o.completer = c }
}

// WithMetrics shares m instead of creating a private registry.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(o *buildOptions) { o.metrics = m }
}

// WithProgress reports corpus embedding progress.
func WithProgress(fn search.ProgressFunc) Option {
	return func(o *buildOptions) { o.progress = fn }
}

// WithoutLLM builds a runtime that can rank but not annotate. Searches
// must then set SkipAnnotations, and evaluation is unavailable.
func WithoutLLM() Option {
	return func(o *buildOptions) { o.noLLM = true }
}

// Build constructs a Runtime from cfg. The lexical and dense indexes are
// built concurrently. On error everything already opened is closed.
func Build(ctx context.Context, cfg *config.Config, opts ...Option) (rt *Runtime, err error) {
	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}

	start := time.Now()
	rt = &Runtime{Config: cfg, Corpus: o.corpus, embedder: o.embedder, Metrics: o.metrics, borrowed: o.borrow}
	defer func() {
		if err != nil {
			_ = rt.Close()
			rt = nil
		}
	}()

	if rt.Corpus == nil {
		rt.Corpus, err = corpus.Load(cfg.Corpus.Path, corpus.LoadOptions{Sheet: cfg.Corpus.Sheet})
		if err != nil {
			return rt, err
		}
	}

	rt.Labels, err = evaluate.LoadLabelTable(cfg.Evaluation.LabelsPath)
	if err != nil {
		return rt, err
	}

	if rt.embedder == nil {
		rt.embedder, err = embed.NewEmbedder(ctx, EmbedderOptions(cfg))
		if err != nil {
			return rt, grerrors.New(grerrors.ErrCodeEmbeddingFailed, "creating embedder", err).
				WithSuggestion("Start Ollama, set embeddings.fallback: true, or use embeddings.provider: static")
		}
	}

	if err := rt.buildIndexes(ctx, o.progress); err != nil {
		return rt, err
	}

	rt.Ranker = search.NewRanker(rt.Lexical, rt.Dense, search.RankerConfig{
		CandidatePool: cfg.Search.CandidatePool,
		Epsilon:       cfg.Search.Epsilon,
	})

	if rt.Metrics == nil {
		rt.Metrics = telemetry.NewMetrics()
	}

	if !o.noLLM {
		completer := o.completer
		if completer == nil {
			completer, err = llm.New(LLMOptions(cfg), llm.WithObserver(rt.Metrics))
			if err != nil {
				return rt, grerrors.ConfigError("creating language model client: "+err.Error(), err).
					WithSuggestion("Set " + cfg.LLM.APIKeyEnv + " or configure llm.provider: ollama")
			}
		}
		rt.model = completer.ModelName()
		rt.Annotator = relevance.NewAnnotator(relevance.NewJudge(completer), cfg.LLM.Workers)
	}

	if cfg.History.Enabled {
		rt.History, err = telemetry.OpenHistoryStore(ctx, config.ExpandPath(cfg.History.Path))
		if err != nil {
			return rt, err
		}
	}

	if rt.Annotator != nil {
		evalOpts := []evaluate.Option{
			evaluate.WithModelName(rt.model),
			evaluate.WithSink(rt.Metrics),
		}
		if rt.History != nil {
			evalOpts = append(evalOpts, evaluate.WithSink(rt.History))
		}
		rt.Evaluator = evaluate.NewEvaluator(rt.Ranker, rt.Annotator, rt.Corpus, rt.Labels, evaluate.Config{
			Alpha:         cfg.Search.Alpha,
			CandidatePool: cfg.Search.CandidatePool,
			FailFast:      cfg.Evaluation.FailFast,
		}, evalOpts...)
	}

	slog.Info("runtime_ready",
		slog.String("corpus", rt.Corpus.Source),
		slog.Int("grants", rt.Corpus.Len()),
		slog.String("lexical_backend", cfg.Search.LexicalBackend),
		slog.String("vector_backend", cfg.Vector.Backend),
		slog.String("embedder", rt.embedder.ModelName()),
		slog.String("llm", rt.model),
		slog.Bool("history", rt.History != nil),
		slog.Duration("duration", time.Since(start)))

	return rt, nil
}

// EmbedderOptions derives embedder settings from cfg.
func EmbedderOptions(cfg *config.Config) embed.Options {
	return embed.Options{
		Provider:  embed.ParseProvider(cfg.Embeddings.Provider),
		Model:     cfg.Embeddings.Model,
		Host:      cfg.Embeddings.Host,
		BatchSize: cfg.Embeddings.BatchSize,
		Timeout:   cfg.EmbeddingsTimeout(),
		CacheSize: cfg.Embeddings.CacheSize,
		Fallback:  cfg.Embeddings.Fallback,
	}
}

// LLMOptions derives language model client settings from cfg.
func LLMOptions(cfg *config.Config) llm.Options {
	return llm.Options{
		Provider:  cfg.LLM.Provider,
		Model:     cfg.LLM.Model,
		BaseURL:   cfg.LLM.BaseURL,
		APIKeyEnv: cfg.LLM.APIKeyEnv,
		Timeout:   cfg.LLMTimeout(),
		RateLimit: cfg.LLM.RateLimit,
		Retries:   cfg.LLM.Retries,
	}
}

// buildIndexes builds the lexical scorer and the dense retriever in parallel.
func (rt *Runtime) buildIndexes(ctx context.Context, progress search.ProgressFunc) error {
	cfg := rt.Config
	abstracts := rt.Corpus.Abstracts()

	lexCfg := store.DefaultLexicalConfig()
	lexCfg.K1 = cfg.Search.K1
	lexCfg.B = cfg.Search.B

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		lexical, err := store.NewLexicalScorer(gctx, cfg.Search.LexicalBackend, abstracts, lexCfg)
		if err != nil {
			return grerrors.New(grerrors.ErrCodeIndexFailed, "building lexical index", err)
		}
		rt.Lexical = lexical
		return nil
	})

	g.Go(func() error {
		index, err := store.NewVectorIndex(store.VectorConfig{
			Backend:    store.VectorBackend(cfg.Vector.Backend),
			Dimensions: rt.embedder.Dimensions(),
			M:          cfg.Vector.M,
			EfSearch:   cfg.Vector.EfSearch,
		})
		if err != nil {
			return grerrors.ConfigError(err.Error(), err)
		}
		dense, err := search.BuildEmbeddingRetriever(gctx, rt.embedder, index, abstracts, cfg.Embeddings.BatchSize, progress)
		if err != nil {
			_ = index.Close()
			return err
		}
		rt.Dense = dense
		return nil
	})

	return g.Wait()
}

// ModelName returns the annotating model, or "" without a language model.
func (rt *Runtime) ModelName() string { return rt.model }

// EmbedderName returns the embedding model name.
func (rt *Runtime) EmbedderName() string {
	if rt.embedder == nil {
		return ""
	}
	return rt.embedder.ModelName()
}

// Close releases every index and store. Safe on a partially built Runtime.
func (rt *Runtime) Close() error {
	var errs []error
	if rt.History != nil {
		errs = append(errs, rt.History.Close())
	}
	if rt.Dense != nil {
		errs = append(errs, rt.Dense.Close())
	}
	if rt.Lexical != nil {
		errs = append(errs, rt.Lexical.Close())
	}
	if rt.embedder != nil && !rt.borrowed {
		errs = append(errs, rt.embedder.Close())
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("closing runtime: %w", err)
	}
	return nil
}
