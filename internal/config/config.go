package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	grerrors "github.com/Aman-CERP/grantlens/internal/errors"
)

const (
	// AppName names the user config directory and env prefix.
	AppName = "grantlens"

	// ProjectConfigName is the per-directory config file.
	ProjectConfigName = ".grantlens.yaml"

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "GRANTLENS_"
)

// Config represents the complete grantlens configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Corpus     CorpusConfig     `yaml:"corpus" json:"corpus"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Vector     VectorConfig     `yaml:"vector" json:"vector"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	LLM        LLMConfig        `yaml:"llm" json:"llm"`
	Evaluation EvaluationConfig `yaml:"evaluation" json:"evaluation"`
	History    HistoryConfig    `yaml:"history" json:"history"`
	Server     ServerConfig     `yaml:"server" json:"server"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// CorpusConfig locates the grant spreadsheet.
type CorpusConfig struct {
	// Path is a .csv or .xlsx file.
	Path string `yaml:"path" json:"path"`

	// Sheet selects the worksheet for .xlsx files. Empty uses the first.
	Sheet string `yaml:"sheet,omitempty" json:"sheet,omitempty"`
}

// SearchConfig configures hybrid ranking.
// Values are layered from:
//  1. User config (~/.config/grantlens/config.yaml)
//  2. Project config (.grantlens.yaml)
//  3. Env vars (GRANTLENS_ALPHA, GRANTLENS_CANDIDATE_POOL, ...), highest priority
type SearchConfig struct {
	// Alpha weights the lexical signal (0.0-1.0). Dense gets 1-alpha.
	Alpha float64 `yaml:"alpha" json:"alpha"`

	// CandidatePool is how many dense neighbours are fused (default: 200).
	CandidatePool int `yaml:"candidate_pool" json:"candidate_pool"`

	// TopK is the default number of results (default: 5).
	TopK int `yaml:"top_k" json:"top_k"`

	// Epsilon guards min-max normalization against zero ranges.
	Epsilon float64 `yaml:"epsilon" json:"epsilon"`

	// LexicalBackend: "okapi" (default), "bleve" or "sqlite".
	LexicalBackend string `yaml:"lexical_backend" json:"lexical_backend"`

	// K1 and B tune the okapi scorer.
	K1 float64 `yaml:"k1" json:"k1"`
	B  float64 `yaml:"b" json:"b"`
}

// VectorConfig configures the dense index.
type VectorConfig struct {
	// Backend: "flat" (exact, default) or "hnsw".
	Backend  string `yaml:"backend" json:"backend"`
	M        int    `yaml:"m" json:"m"`
	EfSearch int    `yaml:"ef_search" json:"ef_search"`
}

// EmbeddingsConfig configures the sentence embedder.
type EmbeddingsConfig struct {
	// Provider: "ollama" (default) or "static".
	Provider  string `yaml:"provider" json:"provider"`
	Model     string `yaml:"model" json:"model"`
	Host      string `yaml:"host" json:"host"`
	BatchSize int    `yaml:"batch_size" json:"batch_size"`

	// Timeout per embedding request, as a Go duration string.
	Timeout string `yaml:"timeout" json:"timeout"`

	// CacheSize bounds the query embedding LRU. Zero disables it.
	CacheSize int `yaml:"cache_size" json:"cache_size"`

	// Fallback switches to static embeddings when Ollama is unreachable.
	Fallback bool `yaml:"fallback" json:"fallback"`
}

// LLMConfig configures the relevance and explanation model.
type LLMConfig struct {
	// Provider: "openai" (default) or "ollama".
	Provider string `yaml:"provider" json:"provider"`
	Model    string `yaml:"model" json:"model"`

	// BaseURL overrides the provider endpoint. OpenAI-compatible servers
	// that need no key can be reached this way.
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty"`

	// APIKeyEnv names the variable holding the API key. The key itself is
	// never stored in config.
	APIKeyEnv string `yaml:"api_key_env" json:"api_key_env"`

	Timeout   string  `yaml:"timeout" json:"timeout"`
	RateLimit float64 `yaml:"rate_limit" json:"rate_limit"`
	Retries   int     `yaml:"retries" json:"retries"`

	// Workers bounds concurrent annotation calls per query. The default 1
	// calls the model sequentially in rank order.
	Workers int `yaml:"workers" json:"workers"`
}

// EvaluationConfig configures the labelled evaluation run.
type EvaluationConfig struct {
	// LabelsPath overrides the embedded label table.
	LabelsPath string `yaml:"labels_path,omitempty" json:"labels_path,omitempty"`

	// FailFast aborts a query when any annotation degrades.
	FailFast bool `yaml:"fail_fast" json:"fail_fast"`
}

// HistoryConfig configures the SQLite run history.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
}

// ServerConfig configures `grantlens serve`.
type ServerConfig struct {
	// Transport: "http" (default) or "stdio" (MCP).
	Transport string `yaml:"transport" json:"transport"`
	Addr      string `yaml:"addr" json:"addr"`

	// PIDFile guards against two servers sharing one machine.
	PIDFile string `yaml:"pid_file" json:"pid_file"`

	// Watch reloads the corpus and label table when their files change.
	Watch bool `yaml:"watch" json:"watch"`
}

// LoggingConfig configures the slog output.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file,omitempty" json:"file,omitempty"`
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Corpus: CorpusConfig{
			Path: "grants.csv",
		},
		Search: SearchConfig{
			Alpha:          0.5,
			CandidatePool:  200,
			TopK:           5,
			Epsilon:        1e-9,
			LexicalBackend: "okapi",
			K1:             1.5,
			B:              0.75,
		},
		Vector: VectorConfig{
			Backend:  "flat",
			M:        16,
			EfSearch: 64,
		},
		Embeddings: EmbeddingsConfig{
			Provider:  "ollama",
			Model:     "all-minilm",
			Host:      "", // Empty uses http://localhost:11434
			BatchSize: 32,
			Timeout:   "60s",
			CacheSize: 256,
			Fallback:  false,
		},
		LLM: LLMConfig{
			Provider:  "openai",
			Model:     "gpt-4o-mini",
			APIKeyEnv: "OPENAI_API_KEY",
			Timeout:   "30s",
			RateLimit: 5,
			Retries:   3,
			Workers:   1,
		},
		Evaluation: EvaluationConfig{
			FailFast: false,
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    dataPath("history.db"),
		},
		Server: ServerConfig{
			Transport: "http",
			Addr:      "127.0.0.1:8088",
			PIDFile:   dataPath("serve.pid"),
		},
		Logging: LoggingConfig{
			Level: "warn",
		},
	}
}

// dataPath returns ~/.grantlens/name.
func dataPath(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "."+AppName, name)
	}
	return filepath.Join(home, "."+AppName, name)
}

// GetUserConfigPath returns the path to the user/global configuration file.
// It follows XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/grantlens/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/grantlens/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName, "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", AppName, "config.yaml")
	}
	return filepath.Join(home, ".config", AppName, "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// loadUserConfig loads the user/global configuration file if it exists.
// Returns nil config and nil error if the file doesn't exist.
func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()
	if !fileExists(configPath) {
		return nil, nil
	}

	cfg := &Config{}
	if err := cfg.loadYAML(configPath); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}
	return cfg, nil
}

// Load loads configuration for the working directory dir.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/grantlens/config.yaml)
//  3. Project config (.grantlens.yaml in dir), or explicitPath when set
//  4. Environment variables (GRANTLENS_*)
func Load(dir, explicitPath string) (*Config, error) {
	cfg := NewConfig()

	if userPath := GetUserConfigPath(); fileExists(userPath) {
		if err := cfg.mergeFile(userPath); err != nil {
			return nil, fmt.Errorf("failed to load user config from %s: %w", userPath, err)
		}
	}

	if explicitPath != "" {
		if !fileExists(explicitPath) {
			return nil, grerrors.New(grerrors.ErrCodeConfigNotFound,
				fmt.Sprintf("config file not found: %s", explicitPath), nil).
				WithSuggestion("Run 'grantlens config init' to create one")
		}
		if err := cfg.mergeFile(explicitPath); err != nil {
			return nil, err
		}
	} else if err := cfg.loadFromDir(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, grerrors.ConfigError("invalid configuration: "+err.Error(), err)
	}
	return cfg, nil
}

// loadFromDir merges .grantlens.yaml (or .grantlens.yml) from dir when present.
func (c *Config) loadFromDir(dir string) error {
	yamlPath := filepath.Join(dir, ProjectConfigName)
	if fileExists(yamlPath) {
		return c.mergeFile(yamlPath)
	}

	ymlPath := strings.TrimSuffix(yamlPath, ".yaml") + ".yml"
	if fileExists(ymlPath) {
		return c.mergeFile(ymlPath)
	}
	return nil
}

// mergeFile merges the non-zero values of path into c. Booleans and the
// settings where zero is meaningful are applied whenever the file names them.
func (c *Config) mergeFile(path string) error {
	var parsed Config
	if err := parsed.loadYAML(path); err != nil {
		return err
	}
	c.mergeWith(&parsed)

	var explicit explicitValues
	if err := explicit.loadYAML(path); err != nil {
		return err
	}
	explicit.apply(c)
	return nil
}

// explicitValues records settings a file names whose zero value is valid:
// booleans, alpha 0 (pure dense), retries 0, cache_size 0 and rate_limit 0.
type explicitValues struct {
	Search struct {
		Alpha *float64 `yaml:"alpha"`
	} `yaml:"search"`
	Embeddings struct {
		Fallback  *bool `yaml:"fallback"`
		CacheSize *int  `yaml:"cache_size"`
	} `yaml:"embeddings"`
	LLM struct {
		RateLimit *float64 `yaml:"rate_limit"`
		Retries   *int     `yaml:"retries"`
	} `yaml:"llm"`
	Evaluation struct {
		FailFast *bool `yaml:"fail_fast"`
	} `yaml:"evaluation"`
	History struct {
		Enabled *bool `yaml:"enabled"`
	} `yaml:"history"`
	Server struct {
		Watch *bool `yaml:"watch"`
	} `yaml:"server"`
}

func (b *explicitValues) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, b); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (b *explicitValues) apply(c *Config) {
	if b.Search.Alpha != nil {
		c.Search.Alpha = *b.Search.Alpha
	}
	if b.Embeddings.Fallback != nil {
		c.Embeddings.Fallback = *b.Embeddings.Fallback
	}
	if b.Embeddings.CacheSize != nil {
		c.Embeddings.CacheSize = *b.Embeddings.CacheSize
	}
	if b.LLM.RateLimit != nil {
		c.LLM.RateLimit = *b.LLM.RateLimit
	}
	if b.LLM.Retries != nil {
		c.LLM.Retries = *b.LLM.Retries
	}
	if b.Evaluation.FailFast != nil {
		c.Evaluation.FailFast = *b.Evaluation.FailFast
	}
	if b.History.Enabled != nil {
		c.History.Enabled = *b.History.Enabled
	}
	if b.Server.Watch != nil {
		c.Server.Watch = *b.Server.Watch
	}
}

// loadYAML decodes path into c, replacing fields the file sets.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// mergeWith merges non-zero values from other into c. Explicit zeros are
// handled by explicitValues.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	// Corpus
	setString(&c.Corpus.Path, other.Corpus.Path)
	setString(&c.Corpus.Sheet, other.Corpus.Sheet)

	// Search
	if other.Search.Alpha != 0 {
		c.Search.Alpha = other.Search.Alpha
	}
	setInt(&c.Search.CandidatePool, other.Search.CandidatePool)
	setInt(&c.Search.TopK, other.Search.TopK)
	setFloat(&c.Search.Epsilon, other.Search.Epsilon)
	setString(&c.Search.LexicalBackend, other.Search.LexicalBackend)
	setFloat(&c.Search.K1, other.Search.K1)
	setFloat(&c.Search.B, other.Search.B)

	// Vector
	setString(&c.Vector.Backend, other.Vector.Backend)
	setInt(&c.Vector.M, other.Vector.M)
	setInt(&c.Vector.EfSearch, other.Vector.EfSearch)

	// Embeddings
	setString(&c.Embeddings.Provider, other.Embeddings.Provider)
	setString(&c.Embeddings.Model, other.Embeddings.Model)
	setString(&c.Embeddings.Host, other.Embeddings.Host)
	setInt(&c.Embeddings.BatchSize, other.Embeddings.BatchSize)
	setString(&c.Embeddings.Timeout, other.Embeddings.Timeout)
	setInt(&c.Embeddings.CacheSize, other.Embeddings.CacheSize)

	// LLM
	setString(&c.LLM.Provider, other.LLM.Provider)
	setString(&c.LLM.Model, other.LLM.Model)
	setString(&c.LLM.BaseURL, other.LLM.BaseURL)
	setString(&c.LLM.APIKeyEnv, other.LLM.APIKeyEnv)
	setString(&c.LLM.Timeout, other.LLM.Timeout)
	setFloat(&c.LLM.RateLimit, other.LLM.RateLimit)
	setInt(&c.LLM.Retries, other.LLM.Retries)
	setInt(&c.LLM.Workers, other.LLM.Workers)

	// Evaluation
	setString(&c.Evaluation.LabelsPath, other.Evaluation.LabelsPath)

	// History
	setString(&c.History.Path, other.History.Path)

	// Server
	setString(&c.Server.Transport, other.Server.Transport)
	setString(&c.Server.Addr, other.Server.Addr)
	setString(&c.Server.PIDFile, other.Server.PIDFile)

	// Logging
	setString(&c.Logging.Level, other.Logging.Level)
	setString(&c.Logging.File, other.Logging.File)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setFloat(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}

// applyEnvOverrides applies GRANTLENS_* environment variable overrides.
// Malformed numeric values are ignored.
func (c *Config) applyEnvOverrides() {
	if v := getenv("CORPUS_PATH"); v != "" {
		c.Corpus.Path = v
	}
	if v := getenv("ALPHA"); v != "" {
		if a, err := parseFloat64(v); err == nil {
			c.Search.Alpha = a
		}
	}
	if v := getenv("CANDIDATE_POOL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Search.CandidatePool = n
		}
	}
	if v := getenv("LEXICAL_BACKEND"); v != "" {
		c.Search.LexicalBackend = v
	}
	if v := getenv("LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := getenv("LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := getenv("LLM_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := getenv("EMBED_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := getenv("EMBED_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := getenv("OLLAMA_HOST"); v != "" {
		c.Embeddings.Host = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := getenv("HISTORY_PATH"); v != "" {
		c.History.Path = v
	}
	if v := getenv("HISTORY_ENABLED"); v != "" {
		c.History.Enabled = parseBool(v)
	}
	if v := getenv("FAIL_FAST"); v != "" {
		c.Evaluation.FailFast = parseBool(v)
	}
	if v := getenv("WATCH"); v != "" {
		c.Server.Watch = parseBool(v)
	}
}

// normalize lowercases enum fields so later lookups can match exactly.
func (c *Config) normalize() {
	for _, p := range []*string{
		&c.Search.LexicalBackend,
		&c.Vector.Backend,
		&c.Embeddings.Provider,
		&c.LLM.Provider,
		&c.Server.Transport,
		&c.Logging.Level,
	} {
		*p = strings.ToLower(strings.TrimSpace(*p))
	}
}

func getenv(name string) string {
	return strings.TrimSpace(os.Getenv(EnvPrefix + name))
}

func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes"
}

// parseFloat64 parses a string to float64, used for config parsing.
func parseFloat64(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if math.IsNaN(c.Search.Alpha) || c.Search.Alpha < 0 || c.Search.Alpha > 1 {
		return fmt.Errorf("search.alpha must be between 0 and 1, got %v", c.Search.Alpha)
	}
	if c.Search.CandidatePool < 1 {
		return fmt.Errorf("search.candidate_pool must be positive, got %d", c.Search.CandidatePool)
	}
	if c.Search.TopK < 1 {
		return fmt.Errorf("search.top_k must be positive, got %d", c.Search.TopK)
	}
	if c.Search.Epsilon <= 0 {
		return fmt.Errorf("search.epsilon must be positive, got %v", c.Search.Epsilon)
	}
	if !oneOf(c.Search.LexicalBackend, "okapi", "bleve", "sqlite") {
		return fmt.Errorf("search.lexical_backend must be 'okapi', 'bleve', or 'sqlite', got %s", c.Search.LexicalBackend)
	}
	if !oneOf(c.Vector.Backend, "flat", "hnsw") {
		return fmt.Errorf("vector.backend must be 'flat' or 'hnsw', got %s", c.Vector.Backend)
	}
	if !oneOf(c.Embeddings.Provider, "ollama", "static") {
		return fmt.Errorf("embeddings.provider must be 'ollama' or 'static', got %s", c.Embeddings.Provider)
	}
	if c.Embeddings.BatchSize < 1 {
		return fmt.Errorf("embeddings.batch_size must be positive, got %d", c.Embeddings.BatchSize)
	}
	if c.Embeddings.CacheSize < 0 {
		return fmt.Errorf("embeddings.cache_size must be non-negative, got %d", c.Embeddings.CacheSize)
	}
	if _, err := parseDuration("embeddings.timeout", c.Embeddings.Timeout); err != nil {
		return err
	}
	if !oneOf(c.LLM.Provider, "openai", "ollama") {
		return fmt.Errorf("llm.provider must be 'openai' or 'ollama', got %s", c.LLM.Provider)
	}
	if _, err := parseDuration("llm.timeout", c.LLM.Timeout); err != nil {
		return err
	}
	if c.LLM.RateLimit < 0 {
		return fmt.Errorf("llm.rate_limit must be non-negative, got %v", c.LLM.RateLimit)
	}
	if c.LLM.Retries < 0 {
		return fmt.Errorf("llm.retries must be non-negative, got %d", c.LLM.Retries)
	}
	if c.LLM.Workers < 1 {
		return fmt.Errorf("llm.workers must be positive, got %d", c.LLM.Workers)
	}
	if !oneOf(c.Server.Transport, "http", "stdio") {
		return fmt.Errorf("server.transport must be 'http' or 'stdio', got %s", c.Server.Transport)
	}
	if !oneOf(c.Logging.Level, "debug", "info", "warn", "error") {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}
	return nil
}

func oneOf(v string, options ...string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}

func parseDuration(field, s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration like \"30s\", got %q", field, s)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", field, s)
	}
	return d, nil
}

// EmbeddingsTimeout returns the parsed embeddings timeout. Call after Validate.
func (c *Config) EmbeddingsTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Embeddings.Timeout)
	return d
}

// LLMTimeout returns the parsed LLM timeout. Call after Validate.
func (c *Config) LLMTimeout() time.Duration {
	d, _ := time.ParseDuration(c.LLM.Timeout)
	return d
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// LoadUserConfig loads the user configuration file.
// Returns nil config and nil error if the file doesn't exist.
func LoadUserConfig() (*Config, error) {
	return loadUserConfig()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// ExpandPath replaces a leading "~" with the user's home directory.
func ExpandPath(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
