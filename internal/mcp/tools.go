package mcp

// SearchGrantsInput defines the input schema for the search_grants tool.
type SearchGrantsInput struct {
	Query           string   `json:"query" jsonschema:"free-text description of the research you are looking for"`
	TopK            int      `json:"top_k,omitempty" jsonschema:"number of grants to return, default from configuration"`
	Alpha           *float64 `json:"alpha,omitempty" jsonschema:"lexical weight between 0 and 1; 1 is keyword only, 0 is semantic only"`
	SkipAnnotations bool     `json:"skip_annotations,omitempty" jsonschema:"return ranked grants without relevance labels or explanations"`
}

// SearchGrantsOutput defines the output schema for the search_grants tool.
type SearchGrantsOutput struct {
	Query   string            `json:"query"`
	TopK    int               `json:"top_k"`
	Alpha   float64           `json:"alpha"`
	Results []GrantResultItem `json:"results" jsonschema:"ranked grants, best first"`
}

// GrantResultItem is one ranked grant.
type GrantResultItem struct {
	Rank        int     `json:"rank"`
	Title       string  `json:"title"`
	Category    string  `json:"category" jsonschema:"funding directorate code, e.g. CNS, IIS, BIO"`
	Abstract    string  `json:"abstract"`
	Score       float64 `json:"score" jsonschema:"blended score, higher is better"`
	Relevant    *bool   `json:"relevant,omitempty" jsonschema:"model judgement, absent when annotations were skipped"`
	Explanation string  `json:"explanation,omitempty"`
	Degraded    bool    `json:"degraded,omitempty" jsonschema:"true if the model call for this grant failed"`
}

// EvaluateQueryInput defines the input schema for the evaluate_query tool.
type EvaluateQueryInput struct {
	Key string `json:"key" jsonschema:"evaluation query key from list_evaluation_queries, or 'all'"`
}

// EvaluateQueryOutput defines the output schema for the evaluate_query tool.
type EvaluateQueryOutput struct {
	Reports []EvaluationItem `json:"reports"`
	Mean    *MetricsItem     `json:"mean,omitempty" jsonschema:"macro averages, present when key is 'all'"`
}

// EvaluationItem summarises one evaluation report.
type EvaluationItem struct {
	Key           string      `json:"key"`
	Name          string      `json:"name"`
	Query         string      `json:"query"`
	RankedIndices []int       `json:"ranked_indices" jsonschema:"corpus row indices in rank order"`
	Titles        []string    `json:"titles"`
	Categories    []string    `json:"categories"`
	HumanLabels   []int       `json:"human_labels"`
	ModelLabels   []int       `json:"model_labels"`
	Explanations  []string    `json:"explanations"`
	Metrics       MetricsItem `json:"metrics"`
	CategoryMatch float64     `json:"category_match"`
	Degraded      int         `json:"degraded"`
}

// MetricsItem holds ranking and agreement metrics.
type MetricsItem struct {
	Precision float64 `json:"precision_at_5"`
	MRR       float64 `json:"mrr"`
	NDCG      float64 `json:"ndcg_at_5"`
	Agreement float64 `json:"agreement"`
}

// ListQueriesInput defines the input schema for list_evaluation_queries (no parameters).
type ListQueriesInput struct{}

// ListQueriesOutput lists the built-in evaluation queries.
type ListQueriesOutput struct {
	Queries []QueryItem `json:"queries"`
}

// QueryItem describes one evaluation query.
type QueryItem struct {
	Key              string `json:"key"`
	Name             string `json:"name"`
	Text             string `json:"text"`
	ExpectedCategory string `json:"expected_category"`
}
