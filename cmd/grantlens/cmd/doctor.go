package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	grerrors "github.com/Aman-CERP/grantlens/internal/errors"
	"github.com/Aman-CERP/grantlens/internal/preflight"
)

func newDoctorCmd() *cobra.Command {
	var (
		verbose    bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the corpus, models and storage",
		Long: `Run diagnostics to ensure grantlens can operate correctly.

Checks:
  - Corpus file loads and has enough rows for evaluation
  - Label table parses and matches the current alpha and candidate pool
  - Embedding model answers (static embeddings are flagged)
  - Language model client can be created
  - History database directory is writable, with 100MB free

Language model problems are warnings: search --no-explain still works.`,
		Example: `  # Run diagnostics
  grantlens doctor

  # Verbose output with details
  grantlens doctor --verbose

  # JSON output for scripting
  grantlens doctor --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(false)
			if err != nil {
				return err
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			checker := preflight.New(
				preflight.WithVerbose(verbose),
				preflight.WithOutput(cmd.OutOrStdout()),
			)
			results := checker.RunAll(ctx, cfg)

			if jsonOutput {
				if err := writeDoctorJSON(cmd, checker, results); err != nil {
					return err
				}
			} else {
				checker.PrintResults(results)
			}

			if checker.HasCriticalFailures(results) {
				return grerrors.ConfigError("system check failed", nil).
					WithSuggestion("Fix the errors above and run 'grantlens doctor' again")
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed diagnostic info")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

// doctorReport is the --json output.
type doctorReport struct {
	Status   string                  `json:"status"`
	Checks   []preflight.CheckResult `json:"checks"`
	Warnings []string                `json:"warnings,omitempty"`
	Errors   []string                `json:"errors,omitempty"`
}

func writeDoctorJSON(cmd *cobra.Command, checker *preflight.Checker, results []preflight.CheckResult) error {
	report := doctorReport{
		Status: checker.SummaryStatus(results),
		Checks: results,
	}
	for _, r := range results {
		if r.IsCritical() {
			report.Errors = append(report.Errors, r.Name+": "+r.Message)
		} else if r.Status != preflight.StatusPass {
			report.Warnings = append(report.Warnings, r.Name+": "+r.Message)
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
