package cmd

import (
	"context"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/grantlens/internal/app"
	"github.com/Aman-CERP/grantlens/internal/config"
	grerrors "github.com/Aman-CERP/grantlens/internal/errors"
	"github.com/Aman-CERP/grantlens/internal/output"
	"github.com/Aman-CERP/grantlens/internal/search"
)

const (
	formatText = "text"
	formatJSON = "json"
)

type searchOptions struct {
	topK      int
	alpha     float64
	alphaSet  bool
	format    string
	noExplain bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Rank grants for a free-text query",
		Long: `Rank grants by fusing BM25 keyword scores with embedding similarity.

Each result is labelled relevant or not relevant by the language model,
with a one sentence explanation. Use --no-explain to skip the model.`,
		Example: `  # Search with the configured defaults
  grantlens search "machine learning for early cancer detection"

  # Ten results, keyword-heavy ranking, no language model
  grantlens search -n 10 --alpha 0.8 --no-explain "lattice cryptography"

  # JSON for scripting
  grantlens search --format json "soil microbes"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.alphaSet = cmd.Flags().Changed("alpha")
			if err := validateFormat(opts.format); err != nil {
				return err
			}
			cfg, err := loadConfig(false)
			if err != nil {
				return err
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return runSearch(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.topK, "top-k", "n", 0, "Number of results (default: search.top_k)")
	cmd.Flags().Float64Var(&opts.alpha, "alpha", 0, "Lexical weight 0..1 (default: search.alpha)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", formatText, "Output format: text or json")
	cmd.Flags().BoolVar(&opts.noExplain, "no-explain", false, "Skip relevance labels and explanations")

	return cmd
}

func runSearch(ctx context.Context, stdout, stderr io.Writer, cfg *config.Config, query string, opts searchOptions, extra ...app.Option) error {
	progress, stopProgress := embeddingProgress(stderr)
	buildOpts := []app.Option{app.WithProgress(progress)}
	if opts.noExplain {
		buildOpts = append(buildOpts, app.WithoutLLM())
	}
	buildOpts = append(buildOpts, extra...)

	rt, err := app.Build(ctx, cfg, buildOpts...)
	stopProgress()
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	req := app.SearchRequest{
		Query:           query,
		TopK:            opts.topK,
		SkipAnnotations: opts.noExplain,
	}
	if opts.alphaSet {
		req.Alpha = &opts.alpha
	}

	resp, err := rt.Search(ctx, req)
	if err != nil {
		return err
	}

	out := output.New(stdout)
	if opts.format == formatJSON {
		return out.JSON(resp)
	}
	out.SearchResults(resp)
	return nil
}

// embeddingProgress reports corpus embedding progress on a terminal: an
// animated view normally, a plain bar under NO_COLOR. The returned stop
// function must be called once the runtime is built.
func embeddingProgress(w io.Writer) (search.ProgressFunc, func()) {
	if !output.IsTTY(w) {
		return nil, func() {}
	}
	if output.DetectNoColor() {
		out := output.New(w)
		return func(done, total int) {
			out.Progress(done, total, "embedding grants")
		}, func() {}
	}
	ui := output.NewProgressUI(w, "Embedding grants")
	return ui.Update, ui.Stop
}

func validateFormat(format string) error {
	switch format {
	case formatText, formatJSON:
		return nil
	default:
		return grerrors.ValidationError("unknown output format: "+format, nil).
			WithSuggestion("Use --format text or --format json")
	}
}
