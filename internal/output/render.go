package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/Aman-CERP/grantlens/internal/app"
	"github.com/Aman-CERP/grantlens/internal/evaluate"
	"github.com/Aman-CERP/grantlens/internal/telemetry"
)

// AbstractPreview is the number of characters of an abstract shown in text
// search output.
const AbstractPreview = 280

// SearchResults renders a search response.
func (w *Writer) SearchResults(resp *app.SearchResponse) {
	w.Header(fmt.Sprintf("Results for %q", resp.Query))
	_, _ = fmt.Fprintln(w.out, w.styles.Dim.Render(
		fmt.Sprintf("top %d, alpha %.2f, %s", resp.TopK, resp.Alpha, resp.Duration.Round(time.Millisecond))))

	if len(resp.Results) == 0 {
		w.Newline()
		w.Status("", "No grants found.")
		return
	}

	for _, r := range resp.Results {
		w.Newline()
		_, _ = fmt.Fprintf(w.out, "%d. %s %s %s\n",
			r.Rank,
			w.styles.Header.Render(r.Title),
			w.styles.Label.Render("["+r.Category+"]"),
			w.styles.Score.Render(fmt.Sprintf("%.3f", r.Score)))
		_, _ = fmt.Fprintf(w.out, "   %s\n", preview(r.Abstract, AbstractPreview))
		if r.Label != nil {
			_, _ = fmt.Fprintf(w.out, "   %s %s\n", w.labelBadge(*r.Label, r.Degraded), r.Explanation)
		}
	}
}

func (w *Writer) labelBadge(label int, degraded bool) string {
	switch {
	case degraded:
		return w.styles.Warning.Render("[?]")
	case label == 1:
		return w.styles.Relevant.Render("[relevant]")
	default:
		return w.styles.Irrelevant.Render("[not relevant]")
	}
}

// Report renders one evaluation report.
func (w *Writer) Report(r *evaluate.Report) {
	w.Header(r.Name)
	_, _ = fmt.Fprintln(w.out, w.styles.Dim.Render(r.Query))
	w.Newline()

	for i, title := range r.Titles {
		_, _ = fmt.Fprintf(w.out, "%d. %s %s  human=%d model=%d\n",
			i+1, title, w.styles.Label.Render("["+r.Categories[i]+"]"),
			r.HumanLabels[i], r.ModelLabels[i])
		if i < len(r.Explanations) && r.Explanations[i] != "" {
			_, _ = fmt.Fprintf(w.out, "   %s\n", w.styles.Dim.Render(r.Explanations[i]))
		}
	}

	w.Newline()
	w.KeyValue("Precision@5", fmt.Sprintf("%.2f", r.Metrics.Precision))
	w.KeyValue("MRR", fmt.Sprintf("%.2f", r.Metrics.MRR))
	w.KeyValue("nDCG", fmt.Sprintf("%.2f", r.Metrics.NDCG))
	w.KeyValue("Agreement", fmt.Sprintf("%.2f", r.Metrics.Agreement))
	w.KeyValue("Category match", fmt.Sprintf("%.2f (%s)", r.CategoryMatch, r.ExpectedCategory))
	if r.Degraded > 0 {
		w.Warningf("%d of %d annotations degraded", r.Degraded, len(r.Annotations))
	}
}

// Summary renders every report followed by the macro averages.
func (w *Writer) Summary(s *evaluate.Summary) {
	for i, r := range s.Reports {
		if i > 0 {
			w.Newline()
		}
		w.Report(r)
	}
	w.Newline()
	w.Header("Mean over all queries")
	w.KeyValue("Precision@5", fmt.Sprintf("%.3f", s.Mean.Precision))
	w.KeyValue("MRR", fmt.Sprintf("%.3f", s.Mean.MRR))
	w.KeyValue("nDCG", fmt.Sprintf("%.3f", s.Mean.NDCG))
	w.KeyValue("Agreement", fmt.Sprintf("%.3f", s.Mean.Agreement))
}

// Queries lists evaluation queries.
func (w *Writer) Queries(queries []evaluate.Query) {
	for _, q := range queries {
		_, _ = fmt.Fprintf(w.out, "%-26s %s\n", w.styles.Header.Render(q.Key), q.Name)
		_, _ = fmt.Fprintf(w.out, "%-26s %s\n", "", w.styles.Dim.Render(q.Text))
	}
}

// Runs renders stored evaluation runs as a table.
func (w *Writer) Runs(runs []telemetry.RunRecord) {
	if len(runs) == 0 {
		w.Status("", "No evaluation runs recorded.")
		return
	}
	_, _ = fmt.Fprintln(w.out, w.styles.Label.Render(
		fmt.Sprintf("%-20s %-26s %5s %5s %5s %5s %s", "STARTED", "KEY", "P@5", "MRR", "nDCG", "AGREE", "MODEL")))
	for _, r := range runs {
		_, _ = fmt.Fprintf(w.out, "%-20s %-26s %5.2f %5.2f %5.2f %5.2f %s\n",
			r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Key,
			r.Precision, r.MRR, r.NDCG, r.Agreement, r.Model)
	}
}

// preview shortens s to at most n runes on a word boundary.
func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	cut := string(runes[:n])
	if i := strings.LastIndexByte(cut, ' '); i > n/2 {
		cut = cut[:i]
	}
	return cut + "..."
}
