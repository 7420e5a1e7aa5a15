package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/grantlens/internal/config"
	grerrors "github.com/Aman-CERP/grantlens/internal/errors"
	"github.com/Aman-CERP/grantlens/internal/output"
	"github.com/Aman-CERP/grantlens/internal/telemetry"
)

type historyOptions struct {
	limit  int
	terms  bool
	format string
}

func newHistoryCmd() *cobra.Command {
	var opts historyOptions

	cmd := &cobra.Command{
		Use:   "history [query-key]",
		Short: "Show stored evaluation runs and search statistics",
		Long: `Show evaluation runs recorded in the history database, newest first.

With --terms, show the most searched terms and recent searches that
returned nothing instead.`,
		Example: `  # Last 20 runs of every query
  grantlens history

  # Runs of one query
  grantlens history cns_zero_day --limit 5

  # Search term statistics
  grantlens history --terms`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(opts.format); err != nil {
				return err
			}
			if opts.limit < 1 {
				return grerrors.ValidationError(fmt.Sprintf("limit must be positive, got %d", opts.limit), nil)
			}
			cfg, err := loadConfig(false)
			if err != nil {
				return err
			}
			key := ""
			if len(args) == 1 {
				key = args[0]
			}
			return runHistory(cmd.Context(), cmd.OutOrStdout(), cfg, key, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 20, "Maximum rows to show")
	cmd.Flags().BoolVar(&opts.terms, "terms", false, "Show search term statistics")
	cmd.Flags().StringVarP(&opts.format, "format", "f", formatText, "Output format: text or json")

	return cmd
}

type termStats struct {
	TopTerms    []telemetry.TermCount `json:"top_terms"`
	ZeroResults []string              `json:"zero_result_queries"`
}

// runHistory opens the history database directly; no index is built.
func runHistory(ctx context.Context, w io.Writer, cfg *config.Config, key string, opts historyOptions) error {
	if !cfg.History.Enabled {
		return grerrors.ConfigError("evaluation history is disabled", nil).
			WithSuggestion("Set history.enabled: true")
	}

	store, err := telemetry.OpenHistoryStore(ctx, config.ExpandPath(cfg.History.Path))
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	out := output.New(w)
	if opts.terms {
		stats, err := loadTermStats(ctx, store, opts.limit)
		if err != nil {
			return err
		}
		if opts.format == formatJSON {
			return out.JSON(stats)
		}
		renderTermStats(out, stats)
		return nil
	}

	runs, err := store.ListRuns(ctx, key, opts.limit)
	if err != nil {
		return err
	}
	if opts.format == formatJSON {
		if runs == nil {
			runs = []telemetry.RunRecord{}
		}
		return out.JSON(runs)
	}
	out.Runs(runs)
	return nil
}

func loadTermStats(ctx context.Context, store *telemetry.HistoryStore, limit int) (*termStats, error) {
	terms, err := store.TopTerms(ctx, limit)
	if err != nil {
		return nil, err
	}
	zero, err := store.ZeroResultQueries(ctx, limit)
	if err != nil {
		return nil, err
	}
	return &termStats{TopTerms: terms, ZeroResults: zero}, nil
}

func renderTermStats(out *output.Writer, stats *termStats) {
	out.Header("Top search terms")
	if len(stats.TopTerms) == 0 {
		out.Status("", "No searches recorded.")
	}
	for _, t := range stats.TopTerms {
		out.KeyValue(t.Term, t.Count)
	}

	out.Newline()
	out.Header("Searches with no results")
	if len(stats.ZeroResults) == 0 {
		out.Status("", "None.")
	}
	for _, q := range stats.ZeroResults {
		out.Status("", q)
	}
}
