package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/grantlens/internal/app"
	"github.com/Aman-CERP/grantlens/internal/evaluate"
	"github.com/Aman-CERP/grantlens/internal/metrics"
	"github.com/Aman-CERP/grantlens/internal/relevance"
	"github.com/Aman-CERP/grantlens/internal/telemetry"
)

func TestWriter_Status_PrintsIconAndMessage(t *testing.T) {
	// Given: a writer with a buffer
	buf := &bytes.Buffer{}
	w := New(buf)

	// When: printing a status message
	w.Status("🔍", "Loading corpus...")

	// Then: output contains icon and message
	assert.Equal(t, "🔍 Loading corpus...\n", buf.String())
}

func TestWriter_Levels(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Successf("Indexed %d grants", 12)
	w.Warning("Ollama not reachable")
	w.Errorf("failed: %s", "boom")

	out := buf.String()
	assert.Contains(t, out, "✅ Indexed 12 grants")
	assert.Contains(t, out, "⚠️")
	assert.Contains(t, out, "Ollama not reachable")
	assert.Contains(t, out, "❌ failed: boom")
}

func TestNew_BufferIsNotColored(t *testing.T) {
	// Given/When: a writer over a non-terminal
	w := New(&bytes.Buffer{})

	// Then: no styling is applied
	assert.False(t, w.Colored())
	assert.False(t, IsTTY(&bytes.Buffer{}))
	assert.False(t, IsTTY(nil))
}

func TestDetectNoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	assert.True(t, DetectNoColor())
}

func TestWriter_Progress_PrintsProgressBar(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Progress(50, 100, "Embedding grants")

	out := buf.String()
	assert.Contains(t, out, "50%")
	assert.Contains(t, out, "Embedding grants")
	assert.NotContains(t, out, "\n")

	w.Progress(100, 100, "Embedding grants")
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))
}

func TestWriter_Progress_ZeroTotal_NoOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Progress(0, 0, "Processing")

	assert.Empty(t, buf.String())
}

func TestProgressBar_Render(t *testing.T) {
	tests := []struct {
		name     string
		current  int
		total    int
		width    int
		wantFull int
	}{
		{"0 percent", 0, 100, 10, 0},
		{"50 percent", 50, 100, 10, 5},
		{"100 percent", 100, 100, 10, 10},
		{"25 percent", 25, 100, 20, 5},
		{"overflow", 150, 100, 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bar := renderProgressBar(tt.current, tt.total, tt.width)
			assert.Equal(t, tt.wantFull, strings.Count(bar, "█"))
			assert.Equal(t, tt.width, len([]rune(bar)))
		})
	}
}

func TestWriter_JSON(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	require.NoError(t, w.JSON(map[string]int{"top_k": 5}))

	assert.Equal(t, "{\n  \"top_k\": 5\n}\n", buf.String())
}

func TestWriter_SearchResults(t *testing.T) {
	// Given: one relevant and one degraded result
	one, zero := 1, 0
	resp := &app.SearchResponse{
		Query: "cloud security",
		TopK:  2,
		Alpha: 0.5,
		Results: []app.SearchResult{
			{Rank: 1, Title: "Zero day defense", Category: "CNS", Abstract: "protecting cloud systems", Score: 0.91,
				Label: &one, Explanation: "It targets cloud attacks."},
			{Rank: 2, Title: "Soil microbes", Category: "BIO", Abstract: "crop yield", Score: 0.12,
				Label: &zero, Explanation: relevance.ExplanationUnavailable, Degraded: true},
		},
		Duration: 1500 * time.Millisecond,
	}
	buf := &bytes.Buffer{}

	// When: rendering
	NewPlain(buf).SearchResults(resp)

	// Then: ranks, titles, categories, scores and badges appear
	out := buf.String()
	assert.Contains(t, out, `Results for "cloud security"`)
	assert.Contains(t, out, "top 2, alpha 0.50, 1.5s")
	assert.Contains(t, out, "1. Zero day defense [CNS] 0.910")
	assert.Contains(t, out, "[relevant] It targets cloud attacks.")
	assert.Contains(t, out, "2. Soil microbes [BIO] 0.120")
	assert.Contains(t, out, "[?] explanation unavailable")
}

func TestWriter_SearchResults_Empty(t *testing.T) {
	buf := &bytes.Buffer{}
	NewPlain(buf).SearchResults(&app.SearchResponse{Query: "x", TopK: 5})
	assert.Contains(t, buf.String(), "No grants found.")
}

func TestWriter_SearchResults_Unannotated(t *testing.T) {
	buf := &bytes.Buffer{}
	NewPlain(buf).SearchResults(&app.SearchResponse{
		Query: "x", TopK: 1,
		Results: []app.SearchResult{{Rank: 1, Title: "T", Category: "IIS", Abstract: "a"}},
	})
	assert.NotContains(t, buf.String(), "relevant")
}

func sampleReport() *evaluate.Report {
	return &evaluate.Report{
		Key:              "cns_zero_day",
		Name:             "CNS - Zero-day cloud attacks",
		Query:            "protect cloud systems",
		ExpectedCategory: "CNS",
		Titles:           []string{"a", "b", "c", "d", "e"},
		Categories:       []string{"CNS", "CNS", "BIO", "CNS", "IIS"},
		HumanLabels:      []int{0, 1, 1, 1, 0},
		ModelLabels:      []int{0, 1, 1, 0, 0},
		Explanations:     []string{"e1", "e2", "e3", "e4", "e5"},
		Annotations:      make([]relevance.Annotation, 5),
		Metrics:          metrics.Report{Precision: 0.6, MRR: 0.5, NDCG: 0.7, Agreement: 0.8},
		CategoryMatch:    0.6,
		Degraded:         1,
	}
}

func TestWriter_Report(t *testing.T) {
	buf := &bytes.Buffer{}

	NewPlain(buf).Report(sampleReport())

	out := buf.String()
	assert.Contains(t, out, "CNS - Zero-day cloud attacks")
	assert.Contains(t, out, "2. b [CNS]  human=1 model=1")
	assert.Contains(t, out, "4. d [CNS]  human=1 model=0")
	assert.Contains(t, out, "Precision@5:")
	assert.Contains(t, out, "0.60")
	assert.Contains(t, out, "0.80")
	assert.Contains(t, out, "0.60 (CNS)")
	assert.Contains(t, out, "1 of 5 annotations degraded")
}

func TestWriter_Summary(t *testing.T) {
	buf := &bytes.Buffer{}
	s := &evaluate.Summary{
		Reports: []*evaluate.Report{sampleReport()},
		Mean:    metrics.Report{Precision: 0.25, MRR: 0.375},
	}

	NewPlain(buf).Summary(s)

	out := buf.String()
	assert.Contains(t, out, "Mean over all queries")
	assert.Contains(t, out, "0.250")
	assert.Contains(t, out, "0.375")
}

func TestWriter_QueriesAndRuns(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewPlain(buf)

	w.Queries([]evaluate.Query{{Key: "iis_recommendation", Name: "IIS - Recommenders", Text: "fair recommenders"}})
	w.Runs(nil)
	w.Runs([]telemetry.RunRecord{{Key: "iis_recommendation", Precision: 0.2, MRR: 0.5, Model: "gpt-4o-mini",
		StartedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.Local)}})

	out := buf.String()
	assert.Contains(t, out, "iis_recommendation")
	assert.Contains(t, out, "fair recommenders")
	assert.Contains(t, out, "No evaluation runs recorded.")
	assert.Contains(t, out, "2026-01-02 03:04:05")
	assert.Contains(t, out, " 0.20  0.50")
	assert.Contains(t, out, "gpt-4o-mini")
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short text", preview("short   text", 50))
	assert.Equal(t, "alpha beta...", preview("alpha beta gamma delta", 14))
	assert.Equal(t, "ééééé...", preview("éééééééééé", 5))
}
