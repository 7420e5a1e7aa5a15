package cmd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/grantlens/internal/app"
	grerrors "github.com/Aman-CERP/grantlens/internal/errors"
)

func TestSearchCmd_RequiresQuery(t *testing.T) {
	_, _, err := execute(t, "search")

	require.Error(t, err)
}

func TestSearchCmd_NoExplainJSON(t *testing.T) {
	// Given: a workspace with eight grants
	ws := newWorkspace(t)

	// When: searching without the language model
	stdout, _, err := execute(t, "search", "--no-explain", "--format", "json", "-n", "3", "--alpha", "1", "lattice", "cryptography")

	// Then: three unlabelled results, the lattice grant first
	require.NoError(t, err)
	var resp app.SearchResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "lattice cryptography", resp.Query)
	assert.Equal(t, 3, resp.TopK)
	assert.Equal(t, 1.0, resp.Alpha)
	require.Len(t, resp.Results, 3)
	assert.Equal(t, "Lattice cryptography", resp.Results[0].Title)
	for _, r := range resp.Results {
		assert.Nil(t, r.Label)
	}
	assert.Zero(t, ws.llmCalls.Load())
}

func TestSearchCmd_TextWithExplanations(t *testing.T) {
	// Given: a language model that judges everything relevant
	ws := newWorkspace(t)

	// When: searching with the configured defaults
	stdout, _, err := execute(t, "search", "zero day attacks on cloud systems")

	// Then: five labelled results are printed
	require.NoError(t, err)
	assert.Contains(t, stdout, `Results for "zero day attacks on cloud systems"`)
	assert.Contains(t, stdout, "top 5, alpha 0.50")
	assert.Contains(t, stdout, "5. ")
	assert.Contains(t, stdout, "[relevant]")
	assert.Positive(t, ws.llmCalls.Load())
}

func TestSearchCmd_Validation(t *testing.T) {
	newWorkspace(t)

	tests := []struct {
		name string
		args []string
	}{
		{"unknown format", []string{"search", "--format", "xml", "q"}},
		{"negative top k", []string{"search", "--no-explain", "-n", "-1", "q"}},
		{"alpha above one", []string{"search", "--no-explain", "--alpha", "1.5", "q"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)

			require.Error(t, err)
			assert.Equal(t, grerrors.CategoryValidation, grerrors.GetCategory(err))
		})
	}
}

func TestSearchCmd_MissingCorpus(t *testing.T) {
	// Given: a corpus path that does not exist
	newWorkspace(t)
	t.Setenv("GRANTLENS_CORPUS_PATH", "missing.csv")

	// When: searching
	_, _, err := execute(t, "search", "--no-explain", "anything")

	// Then: the corpus error is reported
	require.Error(t, err)
	assert.Equal(t, grerrors.ErrCodeCorpusNotFound, grerrors.GetCode(err))
}
