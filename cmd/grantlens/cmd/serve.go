package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/grantlens/internal/app"
	"github.com/Aman-CERP/grantlens/internal/config"
	"github.com/Aman-CERP/grantlens/internal/daemon"
	grerrors "github.com/Aman-CERP/grantlens/internal/errors"
	"github.com/Aman-CERP/grantlens/internal/mcp"
	"github.com/Aman-CERP/grantlens/internal/output"
	"github.com/Aman-CERP/grantlens/internal/search"
	"github.com/Aman-CERP/grantlens/internal/server"
	"github.com/Aman-CERP/grantlens/internal/watcher"
)

const stopTimeout = 15 * time.Second

type serveOptions struct {
	transport string
	addr      string
	watch     bool

	// ready, when set, receives the bound HTTP address.
	ready chan<- string
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve search and evaluation over HTTP or MCP",
		Long: `Build the indexes once and serve them until interrupted.

With --transport http (default) the server exposes a JSON API under /api,
Prometheus metrics at /metrics and the MCP streamable HTTP transport at
/mcp. With --transport stdio it speaks MCP over stdin/stdout for AI
assistants; nothing else is written to stdout.`,
		Example: `  # JSON API, metrics and MCP on the configured address
  grantlens serve

  # Pick the address
  grantlens serve --addr 0.0.0.0:9000

  # MCP over stdio for an AI assistant
  grantlens serve --transport stdio

  # Reload when grants.csv is edited
  grantlens serve --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stdio := opts.transport == "stdio"
			cfg, err := loadConfig(stdio)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("transport") {
				opts.transport = cfg.Server.Transport
			}
			if opts.addr == "" {
				opts.addr = cfg.Server.Addr
			}
			if !cmd.Flags().Changed("watch") {
				opts.watch = cfg.Server.Watch
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return runServe(ctx, cmd.ErrOrStderr(), cfg, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.transport, "transport", "t", "http", "Transport: http or stdio")
	cmd.Flags().StringVar(&opts.addr, "addr", "", "HTTP listen address (default: server.addr)")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "Reload when the corpus or label file changes (default: server.watch)")

	cmd.AddCommand(newServeStopCmd())
	cmd.AddCommand(newServeStatusCmd())

	return cmd
}

func runServe(ctx context.Context, stderr io.Writer, cfg *config.Config, opts serveOptions, extra ...app.Option) error {
	switch opts.transport {
	case "http", "stdio":
	default:
		return grerrors.ValidationError("unknown transport: "+opts.transport, nil).
			WithSuggestion("Use --transport http or --transport stdio")
	}

	var progress []app.Option
	stopProgress := func() {}
	if opts.transport == "http" {
		var fn search.ProgressFunc
		fn, stopProgress = embeddingProgress(stderr)
		progress = append(progress, app.WithProgress(fn))
	}
	rt, err := app.Build(ctx, cfg, append(progress, extra...)...)
	stopProgress()
	if err != nil {
		return err
	}
	svc := app.NewReloader(rt, extra...)
	defer func() { _ = svc.Close() }()

	if opts.watch {
		stopWatch, err := watchCorpus(ctx, svc, cfg)
		if err != nil {
			return err
		}
		defer stopWatch()
	}

	mcpSrv, err := mcp.NewServer(svc, slog.Default())
	if err != nil {
		return err
	}

	if opts.transport == "stdio" {
		return mcpSrv.Serve(ctx, "stdio")
	}

	pid := daemon.NewPIDFile(config.ExpandPath(cfg.Server.PIDFile))
	if err := pid.Acquire(); err != nil {
		return grerrors.ConfigError(err.Error(), err).
			WithSuggestion("Run 'grantlens serve stop' or set server.pid_file")
	}
	defer func() { _ = pid.Release() }()

	listener, err := net.Listen("tcp", opts.addr)
	if err != nil {
		return grerrors.ConfigError(fmt.Sprintf("cannot listen on %s", opts.addr), err).
			WithSuggestion("Choose another --addr")
	}

	out := output.New(stderr)
	out.Successf("Serving %d grants on http://%s (MCP at /mcp, metrics at /metrics)",
		rt.Corpus.Len(), listener.Addr())
	if opts.watch {
		out.KeyValue("Watching", strings.Join(app.WatchedPaths(cfg), ", "))
	}
	if opts.ready != nil {
		opts.ready <- listener.Addr().String()
	}

	srv := server.New(svc, server.WithMetrics(rt.Metrics), server.WithMCP(mcpSrv.HTTPHandler()))
	return srv.Serve(ctx, listener)
}

// watchCorpus reloads svc whenever a watched file changes. The returned
// function stops watching and waits for an in-flight reload.
func watchCorpus(ctx context.Context, svc *app.Reloader, cfg *config.Config) (func(), error) {
	w, err := watcher.New(app.WatchedPaths(cfg), watcher.DefaultOptions())
	if err != nil {
		return nil, grerrors.ConfigError("cannot watch corpus: "+err.Error(), err)
	}

	wctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() { _ = w.Start(wctx) }()
	go func() {
		defer close(done)
		svc.Watch(wctx, w.Events())
	}()

	return func() {
		cancel()
		_ = w.Stop()
		<-done
	}, nil
}

func newServeStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop a running HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(false)
			if err != nil {
				return err
			}
			out := output.New(cmd.OutOrStdout())

			pid, err := daemon.NewPIDFile(config.ExpandPath(cfg.Server.PIDFile)).Stop(stopTimeout)
			if errors.Is(err, daemon.ErrNotRunning) {
				out.Status("", "Server is not running.")
				return nil
			}
			if err != nil {
				return err
			}
			out.Successf("Stopped server (pid %d)", pid)
			return nil
		},
	}
}

func newServeStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report whether an HTTP server is running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(false)
			if err != nil {
				return err
			}
			out := output.New(cmd.OutOrStdout())
			pidPath := config.ExpandPath(cfg.Server.PIDFile)

			pid, err := daemon.NewPIDFile(pidPath).Running()
			if errors.Is(err, daemon.ErrNotRunning) {
				out.Status("", "Server is not running.")
				return nil
			}
			if err != nil {
				return err
			}
			out.Successf("Server is running (pid %d)", pid)
			out.KeyValue("PID file", pidPath)
			return nil
		},
	}
}
