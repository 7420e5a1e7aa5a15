// Package relevance asks a language model whether a grant matches a query
// and why.
package relevance

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Aman-CERP/grantlens/internal/llm"
)

// Prompt limits.
const (
	ClassifyAbstractLimit = 1500
	ClassifyMaxTokens     = 5
	ExplainAbstractLimit  = 2000
	ExplainMaxTokens      = 120
)

const classifyPromptTemplate = `
Does this grant match the query? Respond only with 1 or 0.

Query: %s
Abstract: %s
`

const explainPromptTemplate = `
The LLM has already labeled this grant as: %d
(1 = relevant, 0 = irrelevant).

Write 2 sentences explaining WHY this label is correct.

Query: %s
Title: %s
Abstract: %s
`

// Judge labels and explains single grants.
type Judge struct {
	llm llm.Completer
}

// NewJudge creates a judge over a completer.
func NewJudge(c llm.Completer) *Judge {
	return &Judge{llm: c}
}

// Label is a parsed classification.
type Label struct {
	Value int
	// Fallback is set when the response started with neither 0 nor 1.
	Fallback bool
	Raw      string
}

// Classify asks for a binary relevance label.
func (j *Judge) Classify(ctx context.Context, query, abstract string) (Label, error) {
	raw, err := j.llm.Complete(ctx, llm.Request{
		Prompt:    ClassifyPrompt(query, abstract),
		MaxTokens: ClassifyMaxTokens,
		Operation: "classify",
	})
	if err != nil {
		return Label{}, err
	}

	label := ParseLabel(raw)
	if label.Fallback {
		slog.Warn("label_unparseable",
			slog.String("response", raw),
			slog.Int("label", label.Value))
	}
	return label, nil
}

// Explain asks for two sentences justifying an assigned label.
func (j *Judge) Explain(ctx context.Context, query, title, abstract string, label int) (string, error) {
	out, err := j.llm.Complete(ctx, llm.Request{
		Prompt:    ExplainPrompt(query, title, abstract, label),
		MaxTokens: ExplainMaxTokens,
		Operation: "explain",
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// ClassifyPrompt renders the classification prompt.
func ClassifyPrompt(query, abstract string) string {
	return fmt.Sprintf(classifyPromptTemplate, query, Truncate(abstract, ClassifyAbstractLimit))
}

// ExplainPrompt renders the explanation prompt.
func ExplainPrompt(query, title, abstract string, label int) string {
	return fmt.Sprintf(explainPromptTemplate, label, query, title, Truncate(abstract, ExplainAbstractLimit))
}

// ParseLabel reads a model response. The first non-space character decides:
// '1' is relevant, '0' is not. Anything else is 0 with Fallback set.
func ParseLabel(raw string) Label {
	text := strings.TrimSpace(raw)
	if text != "" {
		switch text[0] {
		case '1':
			return Label{Value: 1, Raw: raw}
		case '0':
			return Label{Value: 0, Raw: raw}
		}
	}
	return Label{Value: 0, Fallback: true, Raw: raw}
}

// Truncate keeps at most limit characters of s.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if len(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
