package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultStopSequences end generation early when the model starts a new turn or apologizes.
var DefaultStopSequences = []string{"<|user|>", "ASSISTANT:", "Human:", "I'm afraid", "I'm sorry"}

type OllamaConfig struct {
	BaseURL    string
	Model      string
	EmbedModel string
	CacheSize  int
	Timeout    time.Duration
}

// SamplingOptions is the "options" object of an Ollama generate request.
type SamplingOptions struct {
	Temperature   float64  `json:"temperature"`
	TopP          float64  `json:"top_p"`
	TopK          int      `json:"top_k"`
	RepeatPenalty float64  `json:"repeat_penalty"`
	Cache         bool     `json:"cache"`
	CacheSize     int      `json:"cache_size,omitempty"`
	Stop          []string `json:"stop,omitempty"`
}

// DeterministicOptions returns near-greedy sampling with the given cache flag.
func DeterministicOptions(cache bool) SamplingOptions {
	return SamplingOptions{
		Temperature:   0.0,
		TopP:          0.001,
		TopK:          1,
		RepeatPenalty: 1.5,
		Cache:         cache,
		Stop:          DefaultStopSequences,
	}
}

type GenerateRequest struct {
	Prompt  string
	Options SamplingOptions
}

// StatusError reports a non-success HTTP status from an upstream service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.StatusCode, e.Body)
}

type OllamaClient struct {
	cfg OllamaConfig
	// streamClient has no timeout: generation lasts as long as the caller's context allows.
	streamClient *http.Client
	httpClient   *http.Client
	log          *zap.Logger
}

func NewOllamaClient(cfg OllamaConfig, log *zap.Logger) *OllamaClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &OllamaClient{
		cfg:          cfg,
		streamClient: &http.Client{},
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		log:          log,
	}
}

type generateBody struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options SamplingOptions `json:"options"`
}

// Generate submits the prompt and returns the open response stream. The caller
// must Close the stream.
func (c *OllamaClient) Generate(ctx context.Context, input GenerateRequest) (*Stream, error) {
	opts := input.Options
	if opts.CacheSize == 0 {
		opts.CacheSize = c.cfg.CacheSize
	}
	bodyBytes, err := json.Marshal(generateBody{
		Model:   c.cfg.Model,
		Prompt:  input.Prompt,
		Stream:  true,
		Options: opts,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal generate request failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/generate", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("build generate request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("generate request failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	return newStream(resp.Body, c.log), nil
}

// ListModels returns the names of the models installed on the engine.
func (c *OllamaClient) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("build list models request failed: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list models request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var parsed struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("parse list models json failed: %w", err)
	}
	models := make([]string, len(parsed.Models))
	for i, m := range parsed.Models {
		models[i] = m.Name
	}
	return models, nil
}

// ClearCache asks the engine to drop the model's prompt cache.
func (c *OllamaClient) ClearCache(ctx context.Context) error {
	bodyBytes, err := json.Marshal(map[string]string{
		"name":    c.cfg.Model,
		"command": "cache clear",
	})
	if err != nil {
		return fmt.Errorf("marshal cache clear request failed: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/show", bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("build cache clear request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cache clear request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return &StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return nil
}
