// Package evaluate runs the built-in evaluation queries through the ranker
// and the relevance annotator, and scores the rankings against human labels.
package evaluate

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/grantlens/configs"
	grerrors "github.com/Aman-CERP/grantlens/internal/errors"
	"github.com/Aman-CERP/grantlens/internal/metrics"
)

// LabelsPerQuery is the number of ranked positions each human vector judges.
const LabelsPerQuery = 5

// Query is an evaluation query with its human judgements.
type Query struct {
	Key              string `yaml:"key" json:"key"`
	Name             string `yaml:"name" json:"name"`
	Text             string `yaml:"text" json:"text"`
	ExpectedCategory string `yaml:"expected_category" json:"expected_category"`
	HumanLabels      []int  `yaml:"human_labels" json:"human_labels"`
}

// Provenance records the ranking setup the human labels were made against.
// Zero fields are not checked.
type Provenance struct {
	Alpha         *float64 `yaml:"alpha,omitempty" json:"alpha,omitempty"`
	CandidatePool int      `yaml:"candidate_pool,omitempty" json:"candidate_pool,omitempty"`
	CorpusRows    int      `yaml:"corpus_rows,omitempty" json:"corpus_rows,omitempty"`
}

// LabelTable holds the evaluation queries in file order.
//
// Human labels are positional: entry i judges the grant at rank i of the
// top-5 fused ranking for that query. They stay valid only while the
// corpus, alpha and candidate pool are unchanged. CheckProvenance guards
// against silently scoring a different ranking.
type LabelTable struct {
	Provenance *Provenance `yaml:"provenance,omitempty"`
	Queries    []Query     `yaml:"queries"`

	byKey map[string]int
}

// LoadLabelTable reads a label table from path, or the built-in table when
// path is empty.
func LoadLabelTable(path string) (*LabelTable, error) {
	if path == "" {
		return ParseLabelTable(configs.EvaluationTable)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, grerrors.New(grerrors.ErrCodeLabelTable,
				fmt.Sprintf("label table not found: %s", path), err)
		}
		return nil, grerrors.New(grerrors.ErrCodeFilePermission,
			fmt.Sprintf("cannot read label table: %s", path), err)
	}
	return ParseLabelTable(data)
}

// ParseLabelTable decodes and validates a YAML label table.
func ParseLabelTable(data []byte) (*LabelTable, error) {
	var t LabelTable
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, grerrors.New(grerrors.ErrCodeLabelTable, "malformed label table", err)
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

func (t *LabelTable) validate() error {
	if len(t.Queries) == 0 {
		return grerrors.New(grerrors.ErrCodeLabelTable, "label table has no queries", nil)
	}

	t.byKey = make(map[string]int, len(t.Queries))
	for i, q := range t.Queries {
		key := strings.TrimSpace(q.Key)
		if key == "" {
			return grerrors.New(grerrors.ErrCodeLabelTable,
				fmt.Sprintf("query %d has no key", i), nil)
		}
		if _, dup := t.byKey[key]; dup {
			return grerrors.New(grerrors.ErrCodeLabelTable,
				fmt.Sprintf("duplicate query key %q", key), nil)
		}
		if strings.TrimSpace(q.Text) == "" {
			return grerrors.New(grerrors.ErrCodeLabelTable,
				fmt.Sprintf("query %q has no text", key), nil)
		}
		if err := metrics.ValidateBinary(q.HumanLabels, LabelsPerQuery); err != nil {
			return grerrors.New(grerrors.ErrCodeLabelTable,
				fmt.Sprintf("query %q: %v", key, err), err)
		}
		t.Queries[i].Key = key
		if t.Queries[i].Name == "" {
			t.Queries[i].Name = key
		}
		t.byKey[key] = i
	}
	return nil
}

// Get returns the query with the given key.
func (t *LabelTable) Get(key string) (Query, bool) {
	i, ok := t.byKey[key]
	if !ok {
		return Query{}, false
	}
	return t.Queries[i], true
}

// Keys returns the query keys in table order.
func (t *LabelTable) Keys() []string {
	keys := make([]string, len(t.Queries))
	for i, q := range t.Queries {
		keys[i] = q.Key
	}
	return keys
}

// CheckProvenance fails with a stale-labels error when the table records a
// ranking setup that differs from the running one.
func (t *LabelTable) CheckProvenance(alpha float64, candidatePool, corpusRows int) error {
	p := t.Provenance
	if p == nil {
		return nil
	}

	var mismatches []string
	if p.Alpha != nil && math.Abs(*p.Alpha-alpha) > 1e-9 {
		mismatches = append(mismatches, fmt.Sprintf("alpha %v (labels) vs %v (running)", *p.Alpha, alpha))
	}
	if p.CandidatePool > 0 && p.CandidatePool != candidatePool {
		mismatches = append(mismatches, fmt.Sprintf("candidate_pool %d vs %d", p.CandidatePool, candidatePool))
	}
	if p.CorpusRows > 0 && p.CorpusRows != corpusRows {
		mismatches = append(mismatches, fmt.Sprintf("corpus_rows %d vs %d", p.CorpusRows, corpusRows))
	}
	if len(mismatches) == 0 {
		return nil
	}

	return grerrors.New(grerrors.ErrCodeStaleLabels,
		"human labels were made for a different ranking setup: "+strings.Join(mismatches, "; "), nil).
		WithSuggestion("Re-annotate the top-5 results or restore the labelled configuration")
}
