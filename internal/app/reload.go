package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Aman-CERP/grantlens/internal/config"
	"github.com/Aman-CERP/grantlens/internal/evaluate"
	"github.com/Aman-CERP/grantlens/internal/telemetry"
	"github.com/Aman-CERP/grantlens/internal/watcher"
)

// Reloader serves every request from the current Runtime and replaces it
// when Reload succeeds. A failed reload keeps the previous Runtime.
//
// Requests hold a read lock for their whole duration, so a Runtime is only
// closed once nothing uses it.
type Reloader struct {
	mu   sync.RWMutex
	rt   *Runtime
	opts []Option

	reloadMu sync.Mutex
}

// NewReloader wraps rt. opts are passed to Build on every reload; they
// must not include WithCorpus or WithProgress.
func NewReloader(rt *Runtime, opts ...Option) *Reloader {
	return &Reloader{rt: rt, opts: opts}
}

// Current returns the Runtime serving requests right now.
func (r *Reloader) Current() *Runtime {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rt
}

// Reload rebuilds the Runtime from its configuration. The embedder, and
// with it the embedding cache, carries over.
func (r *Reloader) Reload(ctx context.Context) error {
	r.reloadMu.Lock()
	defer r.reloadMu.Unlock()

	start := time.Now()
	old := r.Current()

	opts := append([]Option{
		WithMetrics(old.Metrics),
		WithEmbedder(old.embedder),
		func(o *buildOptions) { o.borrow = true },
	}, r.opts...)

	next, err := Build(ctx, old.Config, opts...)
	old.Metrics.RecordReload(err)
	if err != nil {
		slog.Warn("corpus_reload_failed",
			slog.String("corpus", old.Config.Corpus.Path),
			slog.String("error", err.Error()))
		return err
	}

	r.mu.Lock()
	next.borrowed = old.borrowed
	old.borrowed = true
	r.rt = next
	r.mu.Unlock()

	if err := old.Close(); err != nil {
		slog.Warn("closing replaced runtime", slog.String("error", err.Error()))
	}

	slog.Info("corpus_reloaded",
		slog.Int("grants", next.Corpus.Len()),
		slog.Int("previous", old.Corpus.Len()),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// Watch reloads after every batch of file events until ctx is done or
// events is closed.
func (r *Reloader) Watch(ctx context.Context, events <-chan []watcher.FileEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-events:
			if !ok {
				return
			}
			for _, e := range batch {
				slog.Debug("watched_file_changed",
					slog.String("path", e.Path),
					slog.String("op", e.Operation.String()))
			}
			_ = r.Reload(ctx)
		}
	}
}

// Close closes the current Runtime.
func (r *Reloader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rt.Close()
}

// Search implements the server and MCP service interfaces.
func (r *Reloader) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rt.Search(ctx, req)
}

// Evaluate runs one evaluation query on the current Runtime.
func (r *Reloader) Evaluate(ctx context.Context, key string) (*evaluate.Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rt.Evaluate(ctx, key)
}

// EvaluateAll runs every evaluation query on the current Runtime.
func (r *Reloader) EvaluateAll(ctx context.Context) (*evaluate.Summary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rt.EvaluateAll(ctx)
}

// Queries lists the evaluation queries.
func (r *Reloader) Queries() []evaluate.Query {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rt.Queries()
}

// Runs lists stored evaluation runs.
func (r *Reloader) Runs(ctx context.Context, key string, limit int) ([]telemetry.RunRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rt.Runs(ctx, key, limit)
}

// WatchedPaths returns the files a server should watch for cfg: the corpus
// and, when one is configured, the label table.
func WatchedPaths(cfg *config.Config) []string {
	paths := []string{config.ExpandPath(cfg.Corpus.Path)}
	if cfg.Evaluation.LabelsPath != "" {
		paths = append(paths, config.ExpandPath(cfg.Evaluation.LabelsPath))
	}
	return paths
}
