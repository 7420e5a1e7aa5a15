package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/grantlens/configs"
	grerrors "github.com/Aman-CERP/grantlens/internal/errors"
)

// isolate points the user config at an empty directory and blanks every
// override, so the host environment cannot leak into a test.
func isolate(t *testing.T) string {
	t.Helper()
	configHome := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configHome)
	for _, name := range []string{
		"CORPUS_PATH", "ALPHA", "CANDIDATE_POOL", "LEXICAL_BACKEND",
		"LLM_PROVIDER", "LLM_MODEL", "LLM_BASE_URL", "EMBED_PROVIDER",
		"EMBED_MODEL", "OLLAMA_HOST", "LOG_LEVEL", "HISTORY_PATH",
		"HISTORY_ENABLED", "FAIL_FAST", "WATCH",
	} {
		t.Setenv(EnvPrefix+name, "")
	}
	return configHome
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// =============================================================================
// Defaults
// =============================================================================

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	// Given: no configuration file exists
	cfg := NewConfig()

	// Then: ranking defaults match the labelled evaluation run
	require.NotNil(t, cfg)
	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, 0.5, cfg.Search.Alpha)
	assert.Equal(t, 200, cfg.Search.CandidatePool)
	assert.Equal(t, 5, cfg.Search.TopK)
	assert.Equal(t, 1e-9, cfg.Search.Epsilon)
	assert.Equal(t, "okapi", cfg.Search.LexicalBackend)
	assert.Equal(t, 1.5, cfg.Search.K1)
	assert.Equal(t, 0.75, cfg.Search.B)

	// And: providers default to a local embedder and a hosted LLM
	assert.Equal(t, "flat", cfg.Vector.Backend)
	assert.Equal(t, "ollama", cfg.Embeddings.Provider)
	assert.Equal(t, "all-minilm", cfg.Embeddings.Model)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "OPENAI_API_KEY", cfg.LLM.APIKeyEnv)
	assert.Equal(t, 1, cfg.LLM.Workers, "annotation runs sequentially in rank order by default")
	assert.False(t, cfg.Evaluation.FailFast)
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, "history.db", filepath.Base(cfg.History.Path))
	assert.Equal(t, "http", cfg.Server.Transport)
	assert.Equal(t, "warn", cfg.Logging.Level)

	// And: the defaults are valid
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 30*time.Second, cfg.LLMTimeout())
	assert.Equal(t, 60*time.Second, cfg.EmbeddingsTimeout())
}

// =============================================================================
// Layering
// =============================================================================

func TestLoad_NoConfigFile_ReturnsDefaults(t *testing.T) {
	// Given: a directory with no .grantlens.yaml
	isolate(t)
	tmpDir := t.TempDir()

	// When: loading configuration
	cfg, err := Load(tmpDir, "")

	// Then: defaults are returned without error
	require.NoError(t, err)
	assert.Equal(t, NewConfig().Search, cfg.Search)
}

func TestLoad_ProjectFile_OverridesDefaults(t *testing.T) {
	// Given: a directory with .grantlens.yaml
	isolate(t)
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, ProjectConfigName), `
version: 1
corpus:
  path: data/awards.xlsx
  sheet: Awards
search:
  alpha: 0.7
  candidate_pool: 50
  lexical_backend: bleve
vector:
  backend: hnsw
llm:
  provider: ollama
  model: llama3.2
  workers: 2
`)

	// When: loading configuration
	cfg, err := Load(tmpDir, "")

	// Then: overrides are applied and untouched fields keep defaults
	require.NoError(t, err)
	assert.Equal(t, "data/awards.xlsx", cfg.Corpus.Path)
	assert.Equal(t, "Awards", cfg.Corpus.Sheet)
	assert.Equal(t, 0.7, cfg.Search.Alpha)
	assert.Equal(t, 50, cfg.Search.CandidatePool)
	assert.Equal(t, "bleve", cfg.Search.LexicalBackend)
	assert.Equal(t, "hnsw", cfg.Vector.Backend)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, "llama3.2", cfg.LLM.Model)
	assert.Equal(t, 2, cfg.LLM.Workers)
	assert.Equal(t, 5, cfg.Search.TopK)
	assert.Equal(t, "30s", cfg.LLM.Timeout)
}

func TestLoad_YmlExtension_IsRecognized(t *testing.T) {
	// Given: a directory with .grantlens.yml
	isolate(t)
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, ".grantlens.yml"), "embeddings:\n  provider: static\n")

	// When: loading configuration
	cfg, err := Load(tmpDir, "")

	// Then: .yml file is recognized
	require.NoError(t, err)
	assert.Equal(t, "static", cfg.Embeddings.Provider)
}

func TestLoad_YamlPreferredOverYml(t *testing.T) {
	// Given: both .yaml and .yml exist
	isolate(t)
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, ".grantlens.yaml"), "embeddings:\n  provider: ollama\n")
	writeFile(t, filepath.Join(tmpDir, ".grantlens.yml"), "embeddings:\n  provider: static\n")

	// When: loading configuration
	cfg, err := Load(tmpDir, "")

	// Then: .yaml takes precedence
	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.Embeddings.Provider)
}

func TestLoad_ExplicitPath_ReplacesProjectFile(t *testing.T) {
	// Given: a project file and an explicit --config file
	isolate(t)
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, ProjectConfigName), "search:\n  top_k: 3\n")
	explicit := filepath.Join(t.TempDir(), "custom.yaml")
	writeFile(t, explicit, "search:\n  candidate_pool: 25\n")

	// When: loading with the explicit path
	cfg, err := Load(tmpDir, explicit)

	// Then: only the explicit file is applied
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Search.CandidatePool)
	assert.Equal(t, 5, cfg.Search.TopK)
}

func TestLoad_ExplicitPathMissing_ReturnsError(t *testing.T) {
	// Given: an explicit path that does not exist
	isolate(t)

	// When: loading configuration
	cfg, err := Load(t.TempDir(), filepath.Join(t.TempDir(), "nope.yaml"))

	// Then: the missing file is reported
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "not found")
	assert.True(t, grerrors.HasCode(err, grerrors.ErrCodeConfigNotFound))
}

func TestLoad_InvalidYaml_ReturnsError(t *testing.T) {
	// Given: invalid YAML syntax
	isolate(t)
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, ProjectConfigName), "search:\n  alpha: [invalid yaml syntax\n")

	// When: loading configuration
	cfg, err := Load(tmpDir, "")

	// Then: error is returned with clear message
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "parse")
}

func TestLoad_InvalidFieldType_ReturnsError(t *testing.T) {
	// Given: wrong type for a numeric field
	isolate(t)
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, ProjectConfigName), "search:\n  candidate_pool: \"lots\"\n")

	// When: loading configuration
	cfg, err := Load(tmpDir, "")

	// Then: error is returned
	require.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_UserConfigOverridesDefaults(t *testing.T) {
	// Given: user config with a custom Ollama host
	configHome := isolate(t)
	writeFile(t, filepath.Join(configHome, AppName, "config.yaml"), `
embeddings:
  host: http://custom-host:11434
`)

	// When: loading configuration
	cfg, err := Load(t.TempDir(), "")

	// Then: user config values are applied
	require.NoError(t, err)
	assert.Equal(t, "http://custom-host:11434", cfg.Embeddings.Host)
}

func TestLoad_ProjectConfigOverridesUserConfig(t *testing.T) {
	// Given: both user and project configs exist
	configHome := isolate(t)
	projectDir := t.TempDir()
	writeFile(t, filepath.Join(configHome, AppName, "config.yaml"), `
embeddings:
  provider: static
  model: user-model
`)
	writeFile(t, filepath.Join(projectDir, ProjectConfigName), `
embeddings:
  model: project-model
`)

	// When: loading configuration
	cfg, err := Load(projectDir, "")

	// Then: project config takes precedence
	require.NoError(t, err)
	assert.Equal(t, "project-model", cfg.Embeddings.Model)
	// And: the user provider survives
	assert.Equal(t, "static", cfg.Embeddings.Provider)
}

func TestLoad_InvalidUserConfig_ReturnsError(t *testing.T) {
	// Given: invalid user config
	configHome := isolate(t)
	writeFile(t, filepath.Join(configHome, AppName, "config.yaml"), "llm:\n  model: [invalid yaml\n")

	// When: loading configuration
	cfg, err := Load(t.TempDir(), "")

	// Then: error is returned
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "user config")
}

func TestLoad_ZeroValuesNotMerged(t *testing.T) {
	// Given: a project file that spells out zero values
	isolate(t)
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, ProjectConfigName), `
search:
  candidate_pool: 0
  top_k: 0
llm:
  model: ""
`)

	// When: loading configuration
	cfg, err := Load(tmpDir, "")

	// Then: defaults are kept
	require.NoError(t, err)
	assert.Equal(t, 200, cfg.Search.CandidatePool)
	assert.Equal(t, 5, cfg.Search.TopK)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
}

func TestLoad_ExplicitFalseBooleans(t *testing.T) {
	// Given: a user config turning fallback on and a project file turning
	// history and fallback off
	configHome := isolate(t)
	writeFile(t, filepath.Join(configHome, AppName, "config.yaml"), `
embeddings:
  fallback: true
evaluation:
  fail_fast: true
`)
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, ProjectConfigName), `
embeddings:
  fallback: false
history:
  enabled: false
`)

	// When: loading configuration
	cfg, err := Load(tmpDir, "")

	// Then: explicit false wins, unnamed booleans keep the earlier layer
	require.NoError(t, err)
	assert.False(t, cfg.Embeddings.Fallback)
	assert.False(t, cfg.History.Enabled)
	assert.True(t, cfg.Evaluation.FailFast)
}

func TestLoad_ExplicitZeroValues(t *testing.T) {
	// Given: a user config with non-default values and a project file
	// that sets pure dense ranking, no retries, no cache and no rate limit
	configHome := isolate(t)
	writeFile(t, filepath.Join(configHome, AppName, "config.yaml"), `
search:
  alpha: 0.8
llm:
  retries: 5
`)
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, ProjectConfigName), `
search:
  alpha: 0
embeddings:
  cache_size: 0
llm:
  retries: 0
  rate_limit: 0
`)

	// When: loading configuration
	cfg, err := Load(tmpDir, "")

	// Then: the explicit zeros win over defaults and the user layer
	require.NoError(t, err)
	assert.Equal(t, 0.0, cfg.Search.Alpha)
	assert.Equal(t, 0, cfg.LLM.Retries)
	assert.Equal(t, 0, cfg.Embeddings.CacheSize)
	assert.Equal(t, 0.0, cfg.LLM.RateLimit)
}

func TestLoad_ExplicitZeroAlphaViaConfigFlag(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "dense.yaml")
	writeFile(t, path, "search:\n  alpha: 0\nllm:\n  retries: 0\n")

	cfg, err := Load(t.TempDir(), path)

	require.NoError(t, err)
	assert.Equal(t, 0.0, cfg.Search.Alpha)
	assert.Equal(t, 0, cfg.LLM.Retries)
}

func TestLoad_UnnamedZeroValuesKeepEarlierLayer(t *testing.T) {
	isolate(t)
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, ProjectConfigName), "search:\n  top_k: 3\n")

	cfg, err := Load(tmpDir, "")

	require.NoError(t, err)
	assert.Equal(t, 0.5, cfg.Search.Alpha)
	assert.Equal(t, 3, cfg.LLM.Retries)
	assert.Equal(t, 256, cfg.Embeddings.CacheSize)
}

func TestLoad_ServerWatch(t *testing.T) {
	// Given: a project file enabling watch
	isolate(t)
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, ProjectConfigName), "server:\n  watch: true\n")

	// When/Then: it is on
	cfg, err := Load(tmpDir, "")
	require.NoError(t, err)
	assert.True(t, cfg.Server.Watch)

	// When/Then: the environment turns it back off
	t.Setenv("GRANTLENS_WATCH", "false")
	cfg, err = Load(tmpDir, "")
	require.NoError(t, err)
	assert.False(t, cfg.Server.Watch)
}

// =============================================================================
// Environment overrides
// =============================================================================

func TestLoad_EnvVarOverridesUserAndProjectConfig(t *testing.T) {
	// Given: all three config sources exist
	configHome := isolate(t)
	projectDir := t.TempDir()
	writeFile(t, filepath.Join(configHome, AppName, "config.yaml"), "embeddings:\n  model: user-model\n")
	writeFile(t, filepath.Join(projectDir, ProjectConfigName), "embeddings:\n  model: project-model\n")
	t.Setenv("GRANTLENS_EMBED_MODEL", "env-model")

	// When: loading configuration
	cfg, err := Load(projectDir, "")

	// Then: env var has highest precedence
	require.NoError(t, err)
	assert.Equal(t, "env-model", cfg.Embeddings.Model)
}

func TestLoad_EnvVarOverrides(t *testing.T) {
	tests := []struct {
		name  string
		env   string
		value string
		check func(t *testing.T, cfg *Config)
	}{
		{"corpus path", "CORPUS_PATH", "/data/grants.csv", func(t *testing.T, cfg *Config) {
			assert.Equal(t, "/data/grants.csv", cfg.Corpus.Path)
		}},
		{"alpha zero", "ALPHA", "0", func(t *testing.T, cfg *Config) {
			assert.Equal(t, 0.0, cfg.Search.Alpha)
		}},
		{"candidate pool", "CANDIDATE_POOL", "75", func(t *testing.T, cfg *Config) {
			assert.Equal(t, 75, cfg.Search.CandidatePool)
		}},
		{"lexical backend", "LEXICAL_BACKEND", "sqlite", func(t *testing.T, cfg *Config) {
			assert.Equal(t, "sqlite", cfg.Search.LexicalBackend)
		}},
		{"llm provider", "LLM_PROVIDER", "ollama", func(t *testing.T, cfg *Config) {
			assert.Equal(t, "ollama", cfg.LLM.Provider)
		}},
		{"llm model", "LLM_MODEL", "gpt-4o", func(t *testing.T, cfg *Config) {
			assert.Equal(t, "gpt-4o", cfg.LLM.Model)
		}},
		{"llm base url", "LLM_BASE_URL", "http://localhost:8000", func(t *testing.T, cfg *Config) {
			assert.Equal(t, "http://localhost:8000", cfg.LLM.BaseURL)
		}},
		{"embed provider", "EMBED_PROVIDER", "static", func(t *testing.T, cfg *Config) {
			assert.Equal(t, "static", cfg.Embeddings.Provider)
		}},
		{"ollama host", "OLLAMA_HOST", "http://gpu:11434", func(t *testing.T, cfg *Config) {
			assert.Equal(t, "http://gpu:11434", cfg.Embeddings.Host)
		}},
		{"log level", "LOG_LEVEL", "debug", func(t *testing.T, cfg *Config) {
			assert.Equal(t, "debug", cfg.Logging.Level)
		}},
		{"history path", "HISTORY_PATH", "/tmp/h.db", func(t *testing.T, cfg *Config) {
			assert.Equal(t, "/tmp/h.db", cfg.History.Path)
		}},
		{"history disabled", "HISTORY_ENABLED", "false", func(t *testing.T, cfg *Config) {
			assert.False(t, cfg.History.Enabled)
		}},
		{"fail fast", "FAIL_FAST", "1", func(t *testing.T, cfg *Config) {
			assert.True(t, cfg.Evaluation.FailFast)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given: one override set
			isolate(t)
			t.Setenv(EnvPrefix+tt.env, tt.value)

			// When: loading configuration
			cfg, err := Load(t.TempDir(), "")

			// Then: the override is applied
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoad_EnvVarMalformedNumber_Ignored(t *testing.T) {
	// Given: a non-numeric pool override
	isolate(t)
	t.Setenv("GRANTLENS_CANDIDATE_POOL", "many")

	// When: loading configuration
	cfg, err := Load(t.TempDir(), "")

	// Then: the default is kept
	require.NoError(t, err)
	assert.Equal(t, 200, cfg.Search.CandidatePool)
}

func TestLoad_EnvVarOutOfRange_FailsValidation(t *testing.T) {
	// Given: an alpha override outside [0,1]
	isolate(t)
	t.Setenv("GRANTLENS_ALPHA", "1.5")

	// When: loading configuration
	cfg, err := Load(t.TempDir(), "")

	// Then: validation rejects it
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "search.alpha")
	assert.True(t, grerrors.HasCode(err, grerrors.ErrCodeConfigInvalid))
}

// =============================================================================
// Validation
// =============================================================================

func TestValidate_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"alpha negative", func(c *Config) { c.Search.Alpha = -0.1 }, "search.alpha"},
		{"alpha above one", func(c *Config) { c.Search.Alpha = 1.01 }, "search.alpha"},
		{"pool zero", func(c *Config) { c.Search.CandidatePool = 0 }, "search.candidate_pool"},
		{"top k zero", func(c *Config) { c.Search.TopK = 0 }, "search.top_k"},
		{"epsilon zero", func(c *Config) { c.Search.Epsilon = 0 }, "search.epsilon"},
		{"lexical backend", func(c *Config) { c.Search.LexicalBackend = "lucene" }, "search.lexical_backend"},
		{"vector backend", func(c *Config) { c.Vector.Backend = "faiss" }, "vector.backend"},
		{"embed provider", func(c *Config) { c.Embeddings.Provider = "mlx" }, "embeddings.provider"},
		{"embed batch", func(c *Config) { c.Embeddings.BatchSize = 0 }, "embeddings.batch_size"},
		{"embed cache", func(c *Config) { c.Embeddings.CacheSize = -1 }, "embeddings.cache_size"},
		{"embed timeout", func(c *Config) { c.Embeddings.Timeout = "soon" }, "embeddings.timeout"},
		{"llm provider", func(c *Config) { c.LLM.Provider = "anthropic" }, "llm.provider"},
		{"llm timeout", func(c *Config) { c.LLM.Timeout = "-5s" }, "llm.timeout"},
		{"llm rate", func(c *Config) { c.LLM.RateLimit = -1 }, "llm.rate_limit"},
		{"llm retries", func(c *Config) { c.LLM.Retries = -1 }, "llm.retries"},
		{"llm workers", func(c *Config) { c.LLM.Workers = 0 }, "llm.workers"},
		{"transport", func(c *Config) { c.Server.Transport = "sse" }, "server.transport"},
		{"log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given: defaults with one invalid field
			cfg := NewConfig()
			tt.mutate(cfg)

			// When: validating
			err := cfg.Validate()

			// Then: the offending field is named
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestValidate_AcceptsBoundaryAlpha(t *testing.T) {
	for _, alpha := range []float64{0, 1} {
		cfg := NewConfig()
		cfg.Search.Alpha = alpha
		assert.NoError(t, cfg.Validate(), "alpha %v", alpha)
	}
}

func TestValidate_CaseInsensitiveEnums(t *testing.T) {
	// Given: enum values in mixed case
	cfg := NewConfig()
	cfg.Search.LexicalBackend = "BLEVE"
	cfg.Logging.Level = "Info"

	// Then: they validate
	assert.NoError(t, cfg.Validate())
}

// =============================================================================
// User config location and persistence
// =============================================================================

func TestGetUserConfigPath_RespectsXDGConfigHome(t *testing.T) {
	// Given: XDG_CONFIG_HOME is set
	configHome := isolate(t)

	// Then: the user config lives under it
	assert.Equal(t, filepath.Join(configHome, "grantlens", "config.yaml"), GetUserConfigPath())
	assert.Equal(t, filepath.Join(configHome, "grantlens"), GetUserConfigDir())
}

func TestGetUserConfigPath_DefaultsToHomeConfig(t *testing.T) {
	// Given: XDG_CONFIG_HOME is unset
	t.Setenv("XDG_CONFIG_HOME", "")
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	// Then: ~/.config is used
	assert.Equal(t, filepath.Join(home, ".config", "grantlens", "config.yaml"), GetUserConfigPath())
}

func TestUserConfigExists(t *testing.T) {
	// Given: an isolated config home
	configHome := isolate(t)

	// Then: absent until written
	assert.False(t, UserConfigExists())
	cfg, err := LoadUserConfig()
	require.NoError(t, err)
	assert.Nil(t, cfg)

	writeFile(t, filepath.Join(configHome, AppName, "config.yaml"), "version: 1\n")
	assert.True(t, UserConfigExists())
}

func TestWriteYAML_LoadsBack(t *testing.T) {
	// Given: a customised config written to a nested path
	isolate(t)
	dir := t.TempDir()
	cfg := NewConfig()
	cfg.Search.Alpha = 0.3
	cfg.LLM.Provider = "ollama"
	path := filepath.Join(dir, "nested", ProjectConfigName)

	// When: writing and reloading it
	require.NoError(t, cfg.WriteYAML(path))
	loaded, err := Load(filepath.Dir(path), "")

	// Then: the values survive
	require.NoError(t, err)
	assert.Equal(t, 0.3, loaded.Search.Alpha)
	assert.Equal(t, "ollama", loaded.LLM.Provider)
}

func TestConfig_JSONUsesSnakeCase(t *testing.T) {
	// Given: the defaults
	data, err := json.Marshal(NewConfig())
	require.NoError(t, err)

	// Then: field names match the YAML keys
	var raw map[string]map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw["search"], "candidate_pool")
	assert.Contains(t, raw["llm"], "api_key_env")
	assert.NotContains(t, raw["llm"], "base_url")
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".grantlens", "history.db"), ExpandPath("~/.grantlens/history.db"))
	assert.Equal(t, home, ExpandPath("~"))
	assert.Equal(t, "/abs/path.db", ExpandPath("/abs/path.db"))
	assert.Equal(t, "~user/x", ExpandPath("~user/x"))
}

func TestConfigTemplate_IsValid(t *testing.T) {
	// Given: the template written by `config init`
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ProjectConfigName), configs.ConfigTemplate)

	// When: loading it as a project config
	cfg, err := Load(dir, "")

	// Then: it validates and matches the defaults
	require.NoError(t, err)
	assert.Equal(t, NewConfig().Search, cfg.Search)
	assert.Equal(t, "~/.grantlens/history.db", cfg.History.Path)
}

func TestLoad_NormalizesEnums(t *testing.T) {
	// Given: mixed-case enum overrides
	isolate(t)
	t.Setenv("GRANTLENS_LEXICAL_BACKEND", "SQLite")
	t.Setenv("GRANTLENS_LLM_PROVIDER", " Ollama ")

	// When: loading configuration
	cfg, err := Load(t.TempDir(), "")

	// Then: values are lowercased
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Search.LexicalBackend)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
}
