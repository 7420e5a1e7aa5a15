package app

import (
	"context"

	grerrors "github.com/Aman-CERP/grantlens/internal/errors"
	"github.com/Aman-CERP/grantlens/internal/evaluate"
	"github.com/Aman-CERP/grantlens/internal/telemetry"
)

// Queries lists the built-in evaluation queries in table order.
func (rt *Runtime) Queries() []evaluate.Query {
	return append([]evaluate.Query(nil), rt.Labels.Queries...)
}

// Evaluate runs one evaluation query.
func (rt *Runtime) Evaluate(ctx context.Context, key string) (*evaluate.Report, error) {
	if err := rt.requireEvaluator(); err != nil {
		return nil, err
	}
	return rt.Evaluator.Run(ctx, key)
}

// EvaluateAll runs every evaluation query and averages the metrics.
func (rt *Runtime) EvaluateAll(ctx context.Context) (*evaluate.Summary, error) {
	if err := rt.requireEvaluator(); err != nil {
		return nil, err
	}
	return rt.Evaluator.RunAll(ctx)
}

// Runs returns stored evaluation runs, newest first. Empty key lists all.
func (rt *Runtime) Runs(ctx context.Context, key string, limit int) ([]telemetry.RunRecord, error) {
	if rt.History == nil {
		return nil, grerrors.ConfigError("evaluation history is disabled", nil).
			WithSuggestion("Set history.enabled: true")
	}
	return rt.History.ListRuns(ctx, key, limit)
}

func (rt *Runtime) requireEvaluator() error {
	if rt.Evaluator == nil {
		return grerrors.ConfigError("evaluation needs a language model", nil).
			WithSuggestion("Configure the llm section and retry")
	}
	return nil
}
