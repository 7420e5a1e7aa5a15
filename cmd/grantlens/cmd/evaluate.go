package cmd

import (
	"context"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/grantlens/internal/app"
	"github.com/Aman-CERP/grantlens/internal/config"
	grerrors "github.com/Aman-CERP/grantlens/internal/errors"
	"github.com/Aman-CERP/grantlens/internal/evaluate"
	"github.com/Aman-CERP/grantlens/internal/output"
)

type evaluateOptions struct {
	all    bool
	list   bool
	format string
}

func newEvaluateCmd() *cobra.Command {
	var opts evaluateOptions

	cmd := &cobra.Command{
		Use:   "evaluate [query-key]",
		Short: "Score the model's relevance judgements against human labels",
		Long: `Run a labelled evaluation query: rank the top 5 grants, ask the language
model to judge each one, and compare with the human labels.

Reports precision@5, MRR and nDCG@5 of the human labels over the ranking,
and the agreement between model and human labels. Runs are stored in the
history database when history is enabled.`,
		Example: `  # List the evaluation queries
  grantlens evaluate --list

  # Evaluate one query
  grantlens evaluate cns_zero_day

  # Evaluate every query and print the mean metrics
  grantlens evaluate --all`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(opts.format); err != nil {
				return err
			}
			key := ""
			if len(args) == 1 {
				key = args[0]
			}
			if strings.EqualFold(key, "all") {
				opts.all = true
				key = ""
			}
			if key == "" && !opts.all && !opts.list {
				return grerrors.ValidationError("a query key is required", nil).
					WithSuggestion("Run 'grantlens evaluate --list' to see the keys, or use --all")
			}

			cfg, err := loadConfig(false)
			if err != nil {
				return err
			}
			if opts.list {
				return runListQueries(cmd.OutOrStdout(), cfg, opts.format)
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return runEvaluate(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg, key, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.all, "all", false, "Evaluate every query and report the mean")
	cmd.Flags().BoolVarP(&opts.list, "list", "l", false, "List evaluation queries and exit")
	cmd.Flags().StringVarP(&opts.format, "format", "f", formatText, "Output format: text or json")

	return cmd
}

// runListQueries reads the label table only; no index is built.
func runListQueries(w io.Writer, cfg *config.Config, format string) error {
	table, err := evaluate.LoadLabelTable(cfg.Evaluation.LabelsPath)
	if err != nil {
		return err
	}
	out := output.New(w)
	if format == formatJSON {
		return out.JSON(table.Queries)
	}
	out.Queries(table.Queries)
	return nil
}

func runEvaluate(ctx context.Context, stdout, stderr io.Writer, cfg *config.Config, key string, opts evaluateOptions, extra ...app.Option) error {
	progress, stopProgress := embeddingProgress(stderr)
	buildOpts := append([]app.Option{app.WithProgress(progress)}, extra...)
	rt, err := app.Build(ctx, cfg, buildOpts...)
	stopProgress()
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	out := output.New(stdout)
	if opts.all {
		summary, err := rt.EvaluateAll(ctx)
		if err != nil {
			return err
		}
		if opts.format == formatJSON {
			return out.JSON(summary)
		}
		out.Summary(summary)
		return nil
	}

	report, err := rt.Evaluate(ctx, key)
	if err != nil {
		return err
	}
	if opts.format == formatJSON {
		return out.JSON(report)
	}
	out.Report(report)
	return nil
}
