package preflight

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Aman-CERP/grantlens/internal/app"
	"github.com/Aman-CERP/grantlens/internal/config"
	"github.com/Aman-CERP/grantlens/internal/corpus"
	"github.com/Aman-CERP/grantlens/internal/embed"
	grerrors "github.com/Aman-CERP/grantlens/internal/errors"
	"github.com/Aman-CERP/grantlens/internal/evaluate"
	"github.com/Aman-CERP/grantlens/internal/llm"
)

// CheckCorpus loads the corpus and reports its size. The row count is
// returned for the label table check; it is zero when loading failed.
func (c *Checker) CheckCorpus(cfg *config.Config) (CheckResult, int) {
	result := CheckResult{
		Name:     "corpus",
		Required: true,
		Details:  fmt.Sprintf("Path: %s", cfg.Corpus.Path),
	}

	corp, err := corpus.Load(cfg.Corpus.Path, corpus.LoadOptions{Sheet: cfg.Corpus.Sheet})
	if err != nil {
		result.Status = StatusFail
		result.Message = failureMessage(err)
		return result, 0
	}

	if corp.Len() < evaluate.LabelsPerQuery {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("%d grants loaded (evaluation needs at least %d)", corp.Len(), evaluate.LabelsPerQuery)
		return result, corp.Len()
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%d grants loaded", corp.Len())
	return result, corp.Len()
}

// CheckLabelTable validates the label table and its provenance against the
// current ranking setup.
func (c *Checker) CheckLabelTable(cfg *config.Config, corpusRows int) CheckResult {
	result := CheckResult{
		Name:     "label_table",
		Required: true,
	}
	source := cfg.Evaluation.LabelsPath
	if source == "" {
		source = "built-in"
	}
	result.Details = fmt.Sprintf("Source: %s", source)

	table, err := evaluate.LoadLabelTable(cfg.Evaluation.LabelsPath)
	if err != nil {
		result.Status = StatusFail
		result.Message = failureMessage(err)
		return result
	}

	if corpusRows > 0 {
		if err := table.CheckProvenance(cfg.Search.Alpha, cfg.Search.CandidatePool, corpusRows); err != nil {
			result.Status = StatusWarn
			result.Message = failureMessage(err)
			result.Required = false
			return result
		}
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%d evaluation queries", len(table.Queries))
	return result
}

// CheckEmbedder creates the configured embedder and checks that it answers.
// It is required only when no static fallback is configured.
func (c *Checker) CheckEmbedder(ctx context.Context, cfg *config.Config) CheckResult {
	result := CheckResult{
		Name:     "embedder",
		Required: !cfg.Embeddings.Fallback,
	}

	opts := app.EmbedderOptions(cfg)
	opts.Fallback = false
	opts.CacheSize = 0
	if opts.Provider != embed.ProviderStatic {
		result.Details = fmt.Sprintf("Provider: %s, model: %s, host: %s", opts.Provider, opts.Model, opts.Host)
	}

	e, err := embed.NewEmbedder(ctx, opts)
	if err != nil {
		result.Status = StatusFail
		if cfg.Embeddings.Fallback {
			result.Status = StatusWarn
			result.Message = fmt.Sprintf("unavailable, static fallback will be used: %v", err)
			return result
		}
		result.Message = err.Error()
		return result
	}
	defer func() { _ = e.Close() }()

	if !e.Available(ctx) {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("%s created but not answering", e.ModelName())
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%s ready (%d dimensions)", e.ModelName(), e.Dimensions())
	if e.ModelName() == "static" {
		result.Status = StatusWarn
		result.Message = "static embeddings in use (low semantic quality)"
	}
	return result
}

// CheckLLM verifies the language model client can be constructed. Search
// without explanations still works when it cannot, so the check is optional.
func (c *Checker) CheckLLM(cfg *config.Config) CheckResult {
	result := CheckResult{
		Name:     "language_model",
		Required: false,
		Details:  fmt.Sprintf("Provider: %s, model: %s", cfg.LLM.Provider, cfg.LLM.Model),
	}

	client, err := llm.New(app.LLMOptions(cfg))
	if err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("%v (search --no-explain still works)", err)
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%s configured", client.ModelName())
	return result
}

// CheckHistory verifies the evaluation history directory is writable.
func (c *Checker) CheckHistory(cfg *config.Config) CheckResult {
	if !cfg.History.Enabled {
		return CheckResult{Name: "history", Status: StatusPass, Message: "disabled"}
	}
	if isMemoryPath(cfg.History.Path) {
		return CheckResult{Name: "history", Status: StatusPass, Message: "in memory"}
	}

	path := config.ExpandPath(cfg.History.Path)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return CheckResult{
			Name:     "history",
			Status:   StatusFail,
			Message:  fmt.Sprintf("cannot create %s: %v", dir, err),
			Required: true,
		}
	}

	result := c.CheckWritePermissions(dir)
	result.Name = "history"
	result.Details = fmt.Sprintf("Database: %s", path)
	if result.Status == StatusPass {
		result.Message = "writable"
	}
	return result
}

func isMemoryPath(path string) bool {
	return path == ":memory:" || strings.HasPrefix(path, "file::memory:")
}

// failureMessage renders an error with its suggestion when it has one.
func failureMessage(err error) string {
	ge, ok := grerrors.As(err)
	if !ok {
		return err.Error()
	}
	msg := ge.Message
	if ge.Cause != nil && !strings.Contains(msg, ge.Cause.Error()) {
		msg += ": " + ge.Cause.Error()
	}
	if ge.Suggestion != "" {
		msg += " (" + ge.Suggestion + ")"
	}
	return msg
}
