// Package llm talks to the language model that labels and explains
// search results.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Provider names a language model backend.
type Provider string

const (
	// ProviderOpenAI targets an OpenAI-compatible /v1/chat/completions API.
	ProviderOpenAI Provider = "openai"

	// ProviderOllama targets a local Ollama /api/generate endpoint.
	ProviderOllama Provider = "ollama"
)

// Defaults for language model clients.
const (
	DefaultOpenAIBaseURL = "https://api.openai.com"
	DefaultOpenAIModel   = "gpt-4o-mini"
	DefaultAPIKeyEnv     = "OPENAI_API_KEY"
	DefaultOllamaHost    = "http://localhost:11434"
	DefaultOllamaModel   = "llama3.2"
	DefaultTimeout       = 30 * time.Second
)

// Request is a single completion request.
type Request struct {
	// Prompt is sent as a single user message.
	Prompt string

	// MaxTokens bounds the completion length. Zero leaves it to the backend.
	MaxTokens int

	// Operation labels the call for logs, metrics and circuit breaking
	// (e.g. "classify", "explain"). Empty means "complete".
	Operation string
}

// Completer produces a text completion for a prompt.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)

	// ModelName identifies the model, for logs and reports.
	ModelName() string
}

// StatusError is a non-2xx response from a model endpoint.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// IsTransient reports whether err is worth retrying: timeouts, network
// failures, 408, 429 and 5xx responses.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusRequestTimeout,
			statusErr.StatusCode == http.StatusTooManyRequests,
			statusErr.StatusCode >= 500:
			return true
		}
		return false
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

// ParseProvider converts a config string to a Provider.
func ParseProvider(s string) (Provider, error) {
	switch Provider(s) {
	case ProviderOpenAI, "":
		return ProviderOpenAI, nil
	case ProviderOllama:
		return ProviderOllama, nil
	default:
		return "", fmt.Errorf("unknown llm provider %q (valid: openai, ollama)", s)
	}
}
