// Package server exposes grant search and evaluation over an HTTP JSON API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Aman-CERP/grantlens/internal/app"
	grerrors "github.com/Aman-CERP/grantlens/internal/errors"
	"github.com/Aman-CERP/grantlens/internal/evaluate"
	"github.com/Aman-CERP/grantlens/internal/telemetry"
	"github.com/Aman-CERP/grantlens/pkg/version"
)

const (
	// DefaultHistoryLimit is used when /api/history has no limit parameter.
	DefaultHistoryLimit = 20

	maxBodyBytes    = 1 << 20
	shutdownTimeout = 10 * time.Second
)

// Service is what the HTTP API needs from the runtime. *app.Runtime
// satisfies it.
type Service interface {
	Search(ctx context.Context, req app.SearchRequest) (*app.SearchResponse, error)
	Evaluate(ctx context.Context, key string) (*evaluate.Report, error)
	EvaluateAll(ctx context.Context) (*evaluate.Summary, error)
	Queries() []evaluate.Query
	Runs(ctx context.Context, key string, limit int) ([]telemetry.RunRecord, error)
}

// Server serves the JSON API.
type Server struct {
	svc     Service
	metrics *telemetry.Metrics
	mcp     http.Handler
	started time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics records request metrics and serves /metrics.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithMCP mounts an MCP streamable HTTP handler at /mcp.
func WithMCP(h http.Handler) Option {
	return func(s *Server) { s.mcp = h }
}

// New creates a Server over svc.
func New(svc Service, opts ...Option) *Server {
	s := &Server{svc: svc, started: time.Now()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("GET /healthz", s.healthz)
	api.HandleFunc("GET /api/queries", s.queries)
	api.HandleFunc("POST /api/search", s.search)
	api.HandleFunc("POST /api/evaluate", s.evaluate)
	api.HandleFunc("GET /api/history", s.history)

	var h http.Handler = api
	if s.metrics != nil {
		h = s.metrics.Middleware(h)
	}

	// /mcp streams, so it is not wrapped by the access log recorder.
	root := http.NewServeMux()
	if s.metrics != nil {
		root.Handle("GET /metrics", s.metrics.Handler())
	}
	if s.mcp != nil {
		root.Handle("/mcp", s.mcp)
	}
	root.Handle("/", accessLogMiddleware(h))
	return requestIDMiddleware(root)
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, listener)
}

// Serve serves on an existing listener until ctx is canceled.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http_listening", slog.String("addr", listener.Addr().String()))
		errCh <- srv.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("http_stopped")
	return nil
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
	Queries int    `json:"evaluation_queries"`
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Version: version.Version,
		Uptime:  time.Since(s.started).Round(time.Second).String(),
		Queries: len(s.svc.Queries()),
	})
}

func (s *Server) queries(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"queries": s.svc.Queries()})
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	var req app.SearchRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	resp, err := s.svc.Search(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type evaluateRequest struct {
	Key string `json:"key"`
}

func (s *Server) evaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	key := strings.TrimSpace(req.Key)
	switch {
	case key == "":
		writeError(w, grerrors.ValidationError("key is required", nil).
			WithSuggestion("Use a key from GET /api/queries or \"all\""))
	case strings.EqualFold(key, "all"):
		sum, err := s.svc.EvaluateAll(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sum)
	default:
		report, err := s.svc.Evaluate(r.Context(), key)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	limit := DefaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, grerrors.ValidationError("limit must be a positive integer", err))
			return
		}
		limit = n
	}
	runs, err := s.svc.Runs(r.Context(), r.URL.Query().Get("key"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if runs == nil {
		runs = []telemetry.RunRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return grerrors.ValidationError("invalid JSON body: "+err.Error(), err)
	}
	return nil
}

// writeJSON encodes payload before writing the status, so an encoding
// failure becomes a 500 instead of a truncated 200.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		slog.Error("response_encode_failed", slog.String("error", err.Error()))
		status = http.StatusInternalServerError
		body, _ = json.Marshal(errorResponse{
			Error: grerrors.ToPayload(grerrors.InternalError("failed to encode response", err)),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}
