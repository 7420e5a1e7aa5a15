package llm

import (
	"fmt"
	"os"
	"time"
)

// Options selects and configures a language model client.
type Options struct {
	Provider  string
	Model     string
	BaseURL   string
	APIKeyEnv string
	Timeout   time.Duration
	RateLimit float64

	// Retries is the retry count for transient failures. Negative keeps the default.
	Retries int
}

// New builds the configured client wrapped in a Resilient.
func New(opts Options, ropts ...ResilientOption) (*Resilient, error) {
	provider, err := ParseProvider(opts.Provider)
	if err != nil {
		return nil, err
	}

	var inner Completer
	switch provider {
	case ProviderOllama:
		inner = NewOllamaClient(OllamaConfig{Host: opts.BaseURL, Model: opts.Model})
	default:
		keyEnv := opts.APIKeyEnv
		if keyEnv == "" {
			keyEnv = DefaultAPIKeyEnv
		}
		key := os.Getenv(keyEnv)
		if key == "" && opts.BaseURL == "" {
			return nil, fmt.Errorf("%s is not set", keyEnv)
		}
		inner = NewOpenAIClient(OpenAIConfig{BaseURL: opts.BaseURL, Model: opts.Model, APIKey: key})
	}

	cfg := DefaultResilienceConfig()
	if opts.Timeout > 0 {
		cfg.Timeout = opts.Timeout
	}
	if opts.RateLimit > 0 {
		cfg.RatePerSecond = opts.RateLimit
		cfg.Burst = max(1, int(opts.RateLimit))
	}
	if opts.Retries >= 0 {
		cfg.RetryMaxRetries = opts.Retries
	}

	return NewResilient(inner, cfg, ropts...), nil
}
