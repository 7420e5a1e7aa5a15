package cmd

import (
	"context"
	"fmt"
	"io"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/grantlens/internal/config"
	grerrors "github.com/Aman-CERP/grantlens/internal/errors"
	"github.com/Aman-CERP/grantlens/internal/logging"
	"github.com/Aman-CERP/grantlens/internal/output"
)

type logsOptions struct {
	follow  bool
	lines   int
	level   string
	filter  string
	noColor bool
	file    string
}

func newLogsCmd() *cobra.Command {
	var opts logsOptions

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show grantlens log output",
		Long: `Show the JSON log file written by grantlens as readable lines.

The file defaults to logging.file from the configuration, or
~/.grantlens/logs/grantlens.log.`,
		Example: `  # Last 50 entries
  grantlens logs

  # Follow a running server
  grantlens logs -f

  # Only warnings and errors that mention annotation
  grantlens logs --level warn --filter annotation`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.lines < 1 {
				return grerrors.ValidationError(fmt.Sprintf("lines must be positive, got %d", opts.lines), nil)
			}
			if opts.file == "" {
				// Logging is not set up here; the viewer would read its own output.
				cfg, err := config.Load(".", configPath)
				if err != nil {
					return err
				}
				opts.file = logFilePath(cfg)
			}
			return runLogs(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.follow, "follow", "f", false, "Follow new entries (like tail -f)")
	cmd.Flags().IntVarP(&opts.lines, "lines", "n", 50, "Number of entries to show")
	cmd.Flags().StringVar(&opts.level, "level", "", "Minimum level: debug, info, warn or error")
	cmd.Flags().StringVar(&opts.filter, "filter", "", "Only show lines matching this regular expression")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	cmd.Flags().StringVar(&opts.file, "file", "", "Log file to read")

	return cmd
}

func logFilePath(cfg *config.Config) string {
	if cfg.Logging.File != "" {
		return config.ExpandPath(cfg.Logging.File)
	}
	return logging.DefaultLogPath()
}

func runLogs(ctx context.Context, stdout, stderr io.Writer, opts logsOptions) error {
	var pattern *regexp.Regexp
	if opts.filter != "" {
		p, err := regexp.Compile(opts.filter)
		if err != nil {
			return grerrors.ValidationError("invalid filter pattern", err).
				WithSuggestion("Use Go regular expression syntax, e.g. 'search|annotat'")
		}
		pattern = p
	}

	viewer := logging.NewViewer(logging.ViewerConfig{
		Level:   opts.level,
		Pattern: pattern,
		NoColor: opts.noColor || output.DetectNoColor() || !output.IsTTY(stdout),
	}, stdout)

	_, _ = fmt.Fprintf(stderr, "Log file: %s\n", opts.file)
	if !opts.follow {
		entries, err := viewer.Tail(opts.file, opts.lines)
		if err != nil {
			return grerrors.ConfigError("cannot read log file", err).
				WithSuggestion("Run a grantlens command first, or pass --file")
		}
		viewer.Print(entries)
		return nil
	}

	_, _ = fmt.Fprintln(stderr, "Following... (Ctrl+C to stop)")
	ctx, cancel := signalContext(ctx)
	defer cancel()

	entries := make(chan logging.LogEntry, 100)
	errCh := make(chan error, 1)
	go func() { errCh <- viewer.Follow(ctx, opts.file, entries) }()

	for {
		select {
		case entry := <-entries:
			_, _ = fmt.Fprintln(stdout, viewer.FormatEntry(entry))
		case err := <-errCh:
			if err != nil {
				return grerrors.ConfigError("cannot follow log file", err)
			}
			return nil
		}
	}
}
