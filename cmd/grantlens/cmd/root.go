// Package cmd provides the CLI commands for grantlens.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/grantlens/internal/config"
	grerrors "github.com/Aman-CERP/grantlens/internal/errors"
	"github.com/Aman-CERP/grantlens/internal/logging"
	"github.com/Aman-CERP/grantlens/internal/profiling"
	"github.com/Aman-CERP/grantlens/pkg/version"
)

// Persistent flags
var (
	configPath  string
	debugMode   bool
	profileOpts profiling.Options
)

var (
	profileSession *profiling.Session
	loggingCleanup func()
)

// NewRootCmd creates the root command for the grantlens CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grantlens",
		Short: "Hybrid search and relevance evaluation over research grant abstracts",
		Long: `grantlens ranks research grants for a free-text query by fusing BM25
keyword scores with sentence embedding similarity, then asks a language
model to judge and explain each result.

The built-in evaluation queries compare the model's judgements with
human labels and report precision, MRR, nDCG and agreement.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("grantlens version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: .grantlens.yaml in the working directory)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	cmd.PersistentFlags().StringVar(&profileOpts.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileOpts.Heap, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&profileOpts.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = startProfiling
	cmd.PersistentPostRunE = func(_ *cobra.Command, _ []string) error {
		return shutdown()
	}

	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newEvaluateCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newHistoryCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func startProfiling(_ *cobra.Command, _ []string) error {
	if !profileOpts.Enabled() {
		return nil
	}
	s, err := profiling.Start(profileOpts)
	if err != nil {
		return err
	}
	profileSession = s
	return nil
}

// shutdown stops profiling and flushes the log file. It is safe to call
// more than once.
func shutdown() error {
	var err error
	if profileSession != nil {
		err = profileSession.Stop()
		profileSession = nil
	}
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return err
}

// Execute runs the root command and prints any error to stderr.
func Execute() error {
	root := NewRootCmd()
	err := root.Execute()
	if serr := shutdown(); err == nil {
		err = serr
	}
	if err != nil {
		_, _ = fmt.Fprintln(root.ErrOrStderr(), grerrors.FormatForCLI(err))
	}
	return err
}

// loadConfig loads configuration for the working directory and sets up
// logging from it. Quiet logging never writes to stderr.
func loadConfig(quiet bool) (*config.Config, error) {
	cfg, err := config.Load(".", configPath)
	if err != nil {
		return nil, err
	}
	if err := setupLogging(cfg, quiet); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setupLogging(cfg *config.Config, quiet bool) error {
	if loggingCleanup != nil {
		return nil
	}

	lc := logging.DefaultConfig()
	if cfg.Logging.Level != "" {
		lc.Level = cfg.Logging.Level
	}
	if cfg.Logging.File != "" {
		lc.FilePath = config.ExpandPath(cfg.Logging.File)
	}
	if debugMode {
		lc.Level = "debug"
	}
	if quiet {
		lc.WriteToStderr = false
	}

	logger, cleanup, err := logging.Setup(lc)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Debug("logging_ready",
		slog.String("level", lc.Level),
		slog.String("file", lc.FilePath),
		slog.String("version", version.Short()))
	return nil
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
