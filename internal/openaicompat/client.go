// Package openaicompat is a client for chat-completion APIs that follow the
// OpenAI wire format (Groq, OpenRouter, OpenAI).
package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hanzong05/aimddlwr/internal/models"
	"go.uber.org/zap"
)

// Known endpoints and default models by provider name.
var presets = map[string]struct {
	baseURL string
	model   string
}{
	"groq":       {"https://api.groq.com/openai/v1", "llama-3.3-70b-versatile"},
	"openrouter": {"https://openrouter.ai/api/v1", "meta-llama/llama-3.2-3b-instruct:free"},
	"openai":     {"https://api.openai.com/v1", "gpt-4o-mini"},
}

// Client calls a /chat/completions endpoint.
type Client struct {
	name       string
	apiKey     string
	baseURL    string
	modelName  string
	headers    map[string]string
	httpClient *http.Client
	logger     *zap.Logger
	maxRetries int
	retryDelay time.Duration
}

// Config holds configuration for one OpenAI-compatible provider.
type Config struct {
	Name       string // groq, openrouter, openai or any label when BaseURL is set
	APIKey     string
	BaseURL    string
	ModelName  string
	MaxRetries int
	RetryDelay time.Duration
	Timeout    time.Duration
	Headers    map[string]string
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// NewClient creates a client, filling base URL and model from the provider presets.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s API key is required", cfg.Name)
	}
	preset, known := presets[cfg.Name]
	if cfg.BaseURL == "" {
		if !known {
			return nil, fmt.Errorf("base url is required for provider %q", cfg.Name)
		}
		cfg.BaseURL = preset.baseURL
	}
	if cfg.ModelName == "" {
		if !known {
			return nil, fmt.Errorf("model name is required for provider %q", cfg.Name)
		}
		cfg.ModelName = preset.model
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Name == "openrouter" && cfg.Headers == nil {
		cfg.Headers = map[string]string{"X-Title": "learnchat"}
	}

	logger.Info("Chat completion client initialized",
		zap.String("provider", cfg.Name),
		zap.String("model", cfg.ModelName),
		zap.Int("max_retries", cfg.MaxRetries))

	return &Client{
		name:       cfg.Name,
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		modelName:  cfg.ModelName,
		headers:    cfg.Headers,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}, nil
}

// Close is a no-op; the HTTP client holds no resources worth releasing.
func (c *Client) Close() error {
	return nil
}

func buildMessages(req *models.GenerationRequest) []chatMessage {
	msgs := make([]chatMessage, 0, len(req.History)+2)
	if req.System != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: req.System})
	}
	for _, t := range req.History {
		if strings.TrimSpace(t.Content) == "" {
			continue
		}
		msgs = append(msgs, chatMessage{Role: t.Role, Content: t.Content})
	}
	return append(msgs, chatMessage{Role: "user", Content: req.Prompt})
}

// Generate requests one completion, retrying transport and non-2xx failures.
func (c *Client) Generate(ctx context.Context, req *models.GenerationRequest) (*models.GenerationResponse, error) {
	jsonData, err := json.Marshal(chatRequest{
		Model:       c.modelName,
		Messages:    buildMessages(req),
		Temperature: 0.7,
		MaxTokens:   800,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("Retrying chat completion request",
				zap.String("provider", c.name),
				zap.Int("attempt", attempt+1),
				zap.Int("max_retries", c.maxRetries))
			select {
			case <-time.After(c.retryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		content, err := c.do(ctx, jsonData)
		if err == nil {
			return &models.GenerationResponse{Content: content, Provider: c.name, Model: c.modelName}, nil
		}
		lastErr = err
		c.logger.Error("Chat completion failed",
			zap.String("provider", c.name),
			zap.Error(err),
			zap.Int("attempt", attempt+1))
		if ctx.Err() != nil {
			break
		}
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", c.maxRetries, lastErr)
}

func (c *Client) do(ctx context.Context, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s API error: %w", c.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s API returned status %d: %s", c.name, resp.StatusCode, truncate(string(body), 300))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("%s API error: %s", c.name, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty response from %s", c.name)
	}
	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("empty response from %s", c.name)
	}
	return content, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// GetModelInfo returns model information
func (c *Client) GetModelInfo() map[string]interface{} {
	return map[string]interface{}{
		"provider":    c.name,
		"model":       c.modelName,
		"max_retries": c.maxRetries,
		"retry_delay": c.retryDelay.String(),
	}
}
