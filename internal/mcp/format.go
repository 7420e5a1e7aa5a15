package mcp

import (
	"fmt"
	"strings"

	"github.com/Aman-CERP/grantlens/internal/app"
	"github.com/Aman-CERP/grantlens/internal/evaluate"
	"github.com/Aman-CERP/grantlens/internal/metrics"
)

// maxAbstractChars bounds abstracts in markdown output.
const maxAbstractChars = 600

// FormatSearchResults formats a search response as markdown.
func FormatSearchResults(resp *app.SearchResponse) string {
	if resp == nil || len(resp.Results) == 0 {
		query := ""
		if resp != nil {
			query = resp.Query
		}
		return fmt.Sprintf("No grants found for \"%s\"", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Grants for \"%s\"\n\n", resp.Query)
	fmt.Fprintf(&sb, "Found %d grant", len(resp.Results))
	if len(resp.Results) != 1 {
		sb.WriteString("s")
	}
	fmt.Fprintf(&sb, " (alpha %.2f)\n\n", resp.Alpha)

	for _, r := range resp.Results {
		fmt.Fprintf(&sb, "### %d. %s (score: %.3f)\n", r.Rank, r.Title, r.Score)
		fmt.Fprintf(&sb, "**Category:** %s\n\n", r.Category)
		sb.WriteString(truncate(r.Abstract, maxAbstractChars))
		sb.WriteString("\n\n")
		if r.Label != nil {
			fmt.Fprintf(&sb, "**Relevant:** %s", relevantWord(*r.Label, r.Degraded))
			if r.Explanation != "" {
				fmt.Fprintf(&sb, " - %s", r.Explanation)
			}
			sb.WriteString("\n\n")
		}
	}
	return sb.String()
}

// FormatReport formats one evaluation report as markdown.
func FormatReport(r *evaluate.Report) string {
	var sb strings.Builder
	writeReport(&sb, r)
	return sb.String()
}

// FormatSummary formats every report and the macro averages as markdown.
func FormatSummary(s *evaluate.Summary) string {
	var sb strings.Builder
	for _, r := range s.Reports {
		writeReport(&sb, r)
	}
	sb.WriteString("## Mean over all queries\n\n")
	writeMetrics(&sb, s.Mean, 3)
	return sb.String()
}

// FormatQueries lists evaluation queries as markdown.
func FormatQueries(queries []evaluate.Query) string {
	if len(queries) == 0 {
		return "No evaluation queries configured."
	}
	var sb strings.Builder
	sb.WriteString("## Evaluation queries\n\n")
	for _, q := range queries {
		fmt.Fprintf(&sb, "- `%s` %s (%s): %s\n", q.Key, q.Name, q.ExpectedCategory, q.Text)
	}
	return sb.String()
}

func writeReport(sb *strings.Builder, r *evaluate.Report) {
	fmt.Fprintf(sb, "## %s\n\n", r.Name)
	fmt.Fprintf(sb, "Query: %s\n\n", r.Query)
	sb.WriteString("| # | Title | Category | Human | Model |\n")
	sb.WriteString("|---|-------|----------|-------|-------|\n")
	for i, title := range r.Titles {
		fmt.Fprintf(sb, "| %d | %s | %s | %d | %d |\n",
			i+1, escapeCell(title), r.Categories[i], r.HumanLabels[i], r.ModelLabels[i])
	}
	sb.WriteString("\n")
	writeMetrics(sb, r.Metrics, 2)
	fmt.Fprintf(sb, "- Category match: %.2f (%s)\n", r.CategoryMatch, r.ExpectedCategory)
	if r.Degraded > 0 {
		fmt.Fprintf(sb, "- Degraded annotations: %d\n", r.Degraded)
	}
	sb.WriteString("\n")
}

func writeMetrics(sb *strings.Builder, m metrics.Report, prec int) {
	fmt.Fprintf(sb, "- Precision@5: %.*f\n", prec, m.Precision)
	fmt.Fprintf(sb, "- MRR: %.*f\n", prec, m.MRR)
	fmt.Fprintf(sb, "- nDCG@5: %.*f\n", prec, m.NDCG)
	fmt.Fprintf(sb, "- Agreement: %.*f\n", prec, m.Agreement)
}

func relevantWord(label int, degraded bool) string {
	switch {
	case degraded:
		return "unknown"
	case label == 1:
		return "yes"
	default:
		return "no"
	}
}

// truncate limits s to n runes, appending an ellipsis when cut.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
