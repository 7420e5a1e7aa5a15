package cmd

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/grantlens/internal/config"
)

const testGrantsCSV = `award_title,category,abstract
Cancer blood tests,BIO,machine learning models detect early cancer from blood biomarkers
Protein networks,BIO,graph methods predict protein protein interactions in cells
Cloud zero day defense,CNS,detecting zero day attacks against cloud infrastructure
Recommender fairness,IIS,fair recommendation systems for online platforms
Lattice cryptography,CNS,quantum resistant lattice cryptography for secure messaging
Soil microbes,BIO,soil microbial communities and crop yield
Robot grasping,IIS,learning robot grasping from demonstrations
Network telemetry,CNS,streaming telemetry for campus network intrusion detection
`

// workspace is an isolated working directory with a corpus, a project
// config and a fake chat completions server that answers "1".
type workspace struct {
	dir      string
	llmCalls *atomic.Int32
	pidFile  string
	history  string
}

func newWorkspace(t *testing.T) *workspace {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("NO_COLOR", "1")
	for _, name := range []string{
		"CORPUS_PATH", "ALPHA", "CANDIDATE_POOL", "LEXICAL_BACKEND",
		"LLM_PROVIDER", "LLM_MODEL", "LLM_BASE_URL", "EMBED_PROVIDER",
		"EMBED_MODEL", "OLLAMA_HOST", "LOG_LEVEL", "HISTORY_PATH",
		"HISTORY_ENABLED", "FAIL_FAST", "WATCH",
	} {
		t.Setenv(config.EnvPrefix+name, "")
	}

	calls := &atomic.Int32{}
	llm := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"1"}}]}`))
	}))
	t.Cleanup(llm.Close)

	dir := t.TempDir()
	t.Chdir(dir)

	ws := &workspace{
		dir:      dir,
		llmCalls: calls,
		pidFile:  filepath.Join(dir, "run", "serve.pid"),
		history:  filepath.Join(dir, "data", "history.db"),
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "grants.csv"), []byte(testGrantsCSV), 0o644))
	ws.writeConfig(t, fmt.Sprintf(`
corpus:
  path: grants.csv
embeddings:
  provider: static
  cache_size: 0
llm:
  provider: openai
  base_url: %s
  api_key_env: GRANTLENS_TEST_CLI_KEY
  rate_limit: 1000
  workers: 2
history:
  enabled: true
  path: %s
server:
  pid_file: %s
logging:
  level: error
`, llm.URL, ws.history, ws.pidFile))

	t.Cleanup(func() { _ = shutdown() })
	return ws
}

func (ws *workspace) writeConfig(t *testing.T, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(ws.dir, config.ProjectConfigName), []byte(content), 0o644))
}

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root := NewRootCmd()
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}
