// Package claude adapts the Anthropic Messages API to the generator interface.
package claude

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/hanzong05/aimddlwr/internal/models"
	"go.uber.org/zap"
)

const (
	defaultModel     = "claude-3-5-haiku-latest"
	defaultMaxTokens = 800
)

type Client struct {
	client     anthropic.Client
	logger     *zap.Logger
	modelName  string
	maxRetries int
}

type Config struct {
	APIKey     string
	ModelName  string
	BaseURL    string
	MaxRetries int
	Timeout    time.Duration
}

func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	if cfg.ModelName == "" {
		cfg.ModelName = defaultModel
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	logger.Info("Anthropic client initialized", zap.String("model", cfg.ModelName))

	return &Client{
		client:     anthropic.NewClient(opts...),
		logger:     logger,
		modelName:  cfg.ModelName,
		maxRetries: cfg.MaxRetries,
	}, nil
}

func (c *Client) Close() error { return nil }

func buildMessages(req *models.GenerationRequest) []anthropic.MessageParam {
	turns := req.AlternatingHistory()
	messages := make([]anthropic.MessageParam, 0, len(turns)+1)
	for _, t := range turns {
		block := anthropic.NewTextBlock(t.Content)
		if t.Role == models.RoleAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(block))
		} else {
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}
	return append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)))
}

// Generate sends the conversation to the Messages API. Retries are left to the SDK.
func (c *Client) Generate(ctx context.Context, req *models.GenerationRequest) (*models.GenerationResponse, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.modelName),
		MaxTokens: defaultMaxTokens,
		Messages:  buildMessages(req),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		c.logger.Error("Anthropic API error", zap.Error(err))
		return nil, fmt.Errorf("anthropic API error: %w", err)
	}

	var b strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return nil, fmt.Errorf("no text content in anthropic response")
	}

	c.logger.Debug("Anthropic response",
		zap.Int64("tokens_in", message.Usage.InputTokens),
		zap.Int64("tokens_out", message.Usage.OutputTokens))

	return &models.GenerationResponse{Content: text, Provider: "anthropic", Model: c.modelName}, nil
}

func (c *Client) GetModelInfo() map[string]interface{} {
	return map[string]interface{}{
		"provider":    "anthropic",
		"model":       c.modelName,
		"max_retries": c.maxRetries,
	}
}
