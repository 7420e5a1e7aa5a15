package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/grantlens/internal/app"
	"github.com/Aman-CERP/grantlens/internal/evaluate"
	"github.com/Aman-CERP/grantlens/pkg/version"
)

// ServerName is reported to MCP clients.
const ServerName = "grantlens"

// QueriesResourceURI lists the evaluation queries as JSON.
const QueriesResourceURI = "grantlens://evaluation/queries"

// Service is the subset of the runtime the MCP server needs.
// *app.Runtime satisfies it.
type Service interface {
	Search(ctx context.Context, req app.SearchRequest) (*app.SearchResponse, error)
	Evaluate(ctx context.Context, key string) (*evaluate.Report, error)
	EvaluateAll(ctx context.Context) (*evaluate.Summary, error)
	Queries() []evaluate.Query
}

// Server bridges MCP clients with grant search and evaluation.
type Server struct {
	mcp    *mcp.Server
	svc    Service
	logger *slog.Logger
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var tools = []ToolInfo{
	{
		Name:        "search_grants",
		Description: "Find funded research grants matching a free-text description. Blends keyword and semantic ranking, then labels each result relevant or not with a short explanation.",
	},
	{
		Name:        "evaluate_query",
		Description: "Run a built-in evaluation query and compare model relevance labels with human labels. Returns Precision@5, MRR, nDCG@5 and agreement. Use key 'all' for every query plus averages.",
	},
	{
		Name:        "list_evaluation_queries",
		Description: "List the built-in evaluation queries and their keys.",
	},
}

// NewServer creates a new MCP server over svc.
func NewServer(svc Service, logger *slog.Logger) (*Server, error) {
	if svc == nil {
		return nil, errors.New("service is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{svc: svc, logger: logger}
	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    ServerName,
			Version: version.Version,
		},
		nil,
	)

	s.registerTools()
	s.registerResources()
	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return ServerName, version.Version
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	return append([]ToolInfo(nil), tools...)
}

// CallTool invokes a tool by name with loosely typed arguments and returns
// markdown.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	switch name {
	case "search_grants":
		in, err := searchInputFromArgs(args)
		if err != nil {
			return "", err
		}
		resp, err := s.search(ctx, in)
		if err != nil {
			return "", err
		}
		return FormatSearchResults(resp), nil
	case "evaluate_query":
		key, _ := args["key"].(string)
		return s.evaluateMarkdown(ctx, key)
	case "list_evaluation_queries":
		return FormatQueries(s.svc.Queries()), nil
	default:
		return "", NewMethodNotFoundError(name)
	}
}

func searchInputFromArgs(args map[string]any) (SearchGrantsInput, error) {
	var in SearchGrantsInput
	query, ok := args["query"].(string)
	if !ok {
		return in, NewInvalidParamsError("query parameter is required and must be a string")
	}
	in.Query = query
	if v, ok := args["top_k"].(float64); ok {
		in.TopK = int(v)
	}
	if v, ok := args["alpha"].(float64); ok {
		in.Alpha = &v
	}
	if v, ok := args["skip_annotations"].(bool); ok {
		in.SkipAnnotations = v
	}
	return in, nil
}

func (s *Server) search(ctx context.Context, in SearchGrantsInput) (*app.SearchResponse, error) {
	start := time.Now()
	requestID := generateRequestID()

	if strings.TrimSpace(in.Query) == "" {
		return nil, NewInvalidParamsError("query cannot be empty or whitespace only")
	}

	s.logger.Info("search_grants started",
		slog.String("request_id", requestID),
		slog.String("query", in.Query),
		slog.Int("top_k", in.TopK))

	resp, err := s.svc.Search(ctx, app.SearchRequest{
		Query:           in.Query,
		TopK:            in.TopK,
		Alpha:           in.Alpha,
		SkipAnnotations: in.SkipAnnotations,
	})
	duration := time.Since(start)
	if err != nil {
		s.logger.Error("search_grants failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	s.logger.Info("search_grants completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", duration),
		slog.Int("result_count", len(resp.Results)))
	return resp, nil
}

func (s *Server) evaluate(ctx context.Context, key string) (*EvaluateQueryOutput, string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, "", NewInvalidParamsError("key parameter is required")
	}
	requestID := generateRequestID()
	s.logger.Info("evaluate_query started",
		slog.String("request_id", requestID),
		slog.String("key", key))

	if strings.EqualFold(key, "all") {
		sum, err := s.svc.EvaluateAll(ctx)
		if err != nil {
			s.logger.Error("evaluate_query failed",
				slog.String("request_id", requestID),
				slog.String("error", err.Error()))
			return nil, "", MapError(err)
		}
		out := &EvaluateQueryOutput{Reports: make([]EvaluationItem, 0, len(sum.Reports))}
		for _, r := range sum.Reports {
			out.Reports = append(out.Reports, toEvaluationItem(r))
		}
		mean := toMetricsItem(sum.Mean.Precision, sum.Mean.MRR, sum.Mean.NDCG, sum.Mean.Agreement)
		out.Mean = &mean
		return out, FormatSummary(sum), nil
	}

	report, err := s.svc.Evaluate(ctx, key)
	if err != nil {
		s.logger.Error("evaluate_query failed",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()))
		return nil, "", MapError(err)
	}
	out := &EvaluateQueryOutput{Reports: []EvaluationItem{toEvaluationItem(report)}}
	return out, FormatReport(report), nil
}

func (s *Server) evaluateMarkdown(ctx context.Context, key string) (string, error) {
	_, md, err := s.evaluate(ctx, key)
	return md, err
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[0].Name, Description: tools[0].Description}, s.mcpSearchHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[1].Name, Description: tools[1].Description}, s.mcpEvaluateHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[2].Name, Description: tools[2].Description}, s.mcpListQueriesHandler)
	s.logger.Debug("MCP tools registered", slog.Int("count", len(tools)))
}

func (s *Server) mcpSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchGrantsInput) (
	*mcp.CallToolResult,
	SearchGrantsOutput,
	error,
) {
	resp, err := s.search(ctx, input)
	if err != nil {
		return nil, SearchGrantsOutput{}, err
	}
	return textResult(FormatSearchResults(resp)), ToSearchGrantsOutput(resp), nil
}

func (s *Server) mcpEvaluateHandler(ctx context.Context, _ *mcp.CallToolRequest, input EvaluateQueryInput) (
	*mcp.CallToolResult,
	*EvaluateQueryOutput,
	error,
) {
	out, md, err := s.evaluate(ctx, input.Key)
	if err != nil {
		return nil, nil, err
	}
	return textResult(md), out, nil
}

func (s *Server) mcpListQueriesHandler(_ context.Context, _ *mcp.CallToolRequest, _ ListQueriesInput) (
	*mcp.CallToolResult,
	ListQueriesOutput,
	error,
) {
	queries := s.svc.Queries()
	return textResult(FormatQueries(queries)), toListQueriesOutput(queries), nil
}

func (s *Server) registerResources() {
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        "evaluation-queries",
			URI:         QueriesResourceURI,
			Description: "Built-in evaluation queries with their expected categories",
			MIMEType:    "application/json",
		},
		func(ctx context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			return s.ReadResource(ctx, QueriesResourceURI)
		},
	)
}

// ReadResource reads a resource by URI.
func (s *Server) ReadResource(_ context.Context, uri string) (*mcp.ReadResourceResult, error) {
	if uri != QueriesResourceURI {
		return nil, NewResourceNotFoundError(uri)
	}
	data, err := json.MarshalIndent(toListQueriesOutput(s.svc.Queries()), "", "  ")
	if err != nil {
		return nil, MapError(err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{URI: uri, MIMEType: "application/json", Text: string(data)},
		},
	}, nil
}

// HTTPHandler serves the MCP protocol over streamable HTTP.
func (s *Server) HTTPHandler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return s.mcp }, nil)
}

// Serve runs the server over stdio until ctx is canceled.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("Starting MCP server", slog.String("transport", transport))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("MCP server stopped gracefully")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

func textResult(md string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: md}}}
}

// ToSearchGrantsOutput converts a search response into the tool's
// structured output.
func ToSearchGrantsOutput(resp *app.SearchResponse) SearchGrantsOutput {
	out := SearchGrantsOutput{
		Query:   resp.Query,
		TopK:    resp.TopK,
		Alpha:   resp.Alpha,
		Results: make([]GrantResultItem, 0, len(resp.Results)),
	}
	for _, r := range resp.Results {
		item := GrantResultItem{
			Rank:        r.Rank,
			Title:       r.Title,
			Category:    r.Category,
			Abstract:    truncate(r.Abstract, maxAbstractChars),
			Score:       r.Score,
			Explanation: r.Explanation,
			Degraded:    r.Degraded,
		}
		if r.Label != nil && !r.Degraded {
			relevant := *r.Label == 1
			item.Relevant = &relevant
		}
		out.Results = append(out.Results, item)
	}
	return out
}

func toEvaluationItem(r *evaluate.Report) EvaluationItem {
	return EvaluationItem{
		Key:           r.Key,
		Name:          r.Name,
		Query:         r.Query,
		RankedIndices: r.RankedIndices,
		Titles:        r.Titles,
		Categories:    r.Categories,
		HumanLabels:   r.HumanLabels,
		ModelLabels:   r.ModelLabels,
		Explanations:  r.Explanations,
		Metrics:       toMetricsItem(r.Metrics.Precision, r.Metrics.MRR, r.Metrics.NDCG, r.Metrics.Agreement),
		CategoryMatch: r.CategoryMatch,
		Degraded:      r.Degraded,
	}
}

func toMetricsItem(p, mrr, ndcg, agreement float64) MetricsItem {
	return MetricsItem{Precision: p, MRR: mrr, NDCG: ndcg, Agreement: agreement}
}

func toListQueriesOutput(queries []evaluate.Query) ListQueriesOutput {
	out := ListQueriesOutput{Queries: make([]QueryItem, 0, len(queries))}
	for _, q := range queries {
		out.Queries = append(out.Queries, QueryItem{
			Key:              q.Key,
			Name:             q.Name,
			Text:             q.Text,
			ExpectedCategory: q.ExpectedCategory,
		})
	}
	return out
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
