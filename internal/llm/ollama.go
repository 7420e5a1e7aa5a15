package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Aman-CERP/grantlens/pkg/version"
)

// OllamaConfig configures the Ollama generate client.
type OllamaConfig struct {
	Host  string
	Model string
}

// OllamaClient calls Ollama's /api/generate.
type OllamaClient struct {
	client *http.Client
	config OllamaConfig
}

type generateOptions struct {
	NumPredict int `json:"num_predict,omitempty"`
}

type generateRequest struct {
	Model   string           `json:"model"`
	Prompt  string           `json:"prompt"`
	Stream  bool             `json:"stream"`
	Options *generateOptions `json:"options,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// NewOllamaClient creates an Ollama generate client.
func NewOllamaClient(cfg OllamaConfig) *OllamaClient {
	if cfg.Host == "" {
		cfg.Host = DefaultOllamaHost
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	cfg.Host = strings.TrimRight(cfg.Host, "/")

	return &OllamaClient{
		client: &http.Client{},
		config: cfg,
	}
}

// Complete implements Completer.
func (o *OllamaClient) Complete(ctx context.Context, req Request) (string, error) {
	genReq := generateRequest{
		Model:  o.config.Model,
		Prompt: req.Prompt,
		Stream: false,
	}
	if req.MaxTokens > 0 {
		genReq.Options = &generateOptions{NumPredict: req.MaxTokens}
	}

	body, err := json.Marshal(genReq)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		o.config.Host+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", version.UserAgent())

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var genResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	return genResp.Response, nil
}

// Available checks if Ollama is reachable.
func (o *OllamaClient) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.config.Host+"/api/tags", nil)
	if err != nil {
		return false
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	return resp.StatusCode == http.StatusOK
}

// ModelName implements Completer.
func (o *OllamaClient) ModelName() string { return o.config.Model }
