// Package ai refines aggregated trust data with an external language model.
// The refiner degrades to the deterministic baseline whenever the model is
// unavailable or its output cannot be parsed, so callers always get a result.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/trustscope/trustscope/internal/domain"
)

// Completer is the minimal model contract the refiner depends on.
type Completer interface {
	Enabled() bool
	Complete(ctx context.Context, prompt string) (string, error)
}

// ClientConfig selects the provider. The first non-empty credential wins, in
// the order Anthropic, OpenAI, Ollama; with none set the client is disabled
// and the refiner runs baseline-only.
type ClientConfig struct {
	AnthropicAPIKey string
	OpenAIAPIKey    string
	OllamaURL       string
	Model           string
}

// Client is a thin chat-completion client over the provider HTTP APIs.
type Client struct {
	provider string // "anthropic", "openai", "ollama", "" when disabled
	apiKey   string
	model    string
	baseURL  string
	client   *http.Client
	logger   *slog.Logger
}

var _ Completer = (*Client)(nil)

func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	c := &Client{
		client: &http.Client{Timeout: 60 * time.Second},
		logger: logger.With(slog.String("component", "ai")),
		model:  cfg.Model,
	}
	switch {
	case cfg.AnthropicAPIKey != "":
		c.provider = "anthropic"
		c.apiKey = cfg.AnthropicAPIKey
		c.baseURL = "https://api.anthropic.com/v1/messages"
		if c.model == "" {
			c.model = "claude-sonnet-4-20250514"
		}
	case cfg.OpenAIAPIKey != "":
		c.provider = "openai"
		c.apiKey = cfg.OpenAIAPIKey
		c.baseURL = "https://api.openai.com/v1/chat/completions"
		if c.model == "" {
			c.model = "gpt-4o"
		}
	case cfg.OllamaURL != "":
		c.provider = "ollama"
		c.baseURL = cfg.OllamaURL + "/api/chat"
		if c.model == "" {
			c.model = "llama3.1"
		}
	}

	if c.provider != "" {
		c.logger.Info("model client initialized", slog.String("provider", c.provider), slog.String("model", c.model))
	} else {
		c.logger.Warn("no model provider configured, refinement runs baseline-only")
	}
	return c
}

// SetBaseURL points the client at a different endpoint; used by tests.
func (c *Client) SetBaseURL(url string) { c.baseURL = url }

func (c *Client) Enabled() bool { return c.provider != "" }

func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	switch c.provider {
	case "anthropic":
		return c.completeAnthropic(ctx, prompt)
	case "openai":
		return c.completeOpenAI(ctx, prompt)
	case "ollama":
		return c.completeOllama(ctx, prompt)
	default:
		return "", fmt.Errorf("ai: complete: no provider configured: %w", domain.ErrUpstream)
	}
}

func (c *Client) completeAnthropic(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"model":      c.model,
		"max_tokens": 1024,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}
	body, err := c.post(ctx, payload, map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": "2023-06-01",
	})
	if err != nil {
		return "", err
	}

	var out struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("ai: anthropic: decode response: %w", err)
	}
	if len(out.Content) == 0 {
		return "", fmt.Errorf("ai: anthropic: empty response: %w", domain.ErrMalformed)
	}
	return out.Content[0].Text, nil
}

func (c *Client) completeOpenAI(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"model":      c.model,
		"max_tokens": 1024,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}
	body, err := c.post(ctx, payload, map[string]string{
		"Authorization": "Bearer " + c.apiKey,
	})
	if err != nil {
		return "", err
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("ai: openai: decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("ai: openai: empty response: %w", domain.ErrMalformed)
	}
	return out.Choices[0].Message.Content, nil
}

func (c *Client) completeOllama(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"model":  c.model,
		"stream": false,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}
	body, err := c.post(ctx, payload, nil)
	if err != nil {
		return "", err
	}

	var out struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("ai: ollama: decode response: %w", err)
	}
	return out.Message.Content, nil
}

func (c *Client) post(ctx context.Context, payload any, headers map[string]string) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("ai: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("ai: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ai: %s request: %w", c.provider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("ai: read response: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("ai: %s status %d: %w", c.provider, resp.StatusCode, domain.ErrRateLimited)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("ai: %s status %d: %w", c.provider, resp.StatusCode, domain.ErrUnauthorized)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("ai: %s status %d: %w", c.provider, resp.StatusCode, domain.ErrUpstream)
	}
	return body, nil
}
