// Package llm fans chat completion requests out over the configured external
// providers with per-provider rate limiting and failover.
package llm

import (
	"context"

	"github.com/hanzong05/aimddlwr/internal/models"
)

// ProviderType names a supported external model API.
type ProviderType string

const (
	ProviderGemini     ProviderType = "gemini"
	ProviderAnthropic  ProviderType = "anthropic"
	ProviderGroq       ProviderType = "groq"
	ProviderOpenRouter ProviderType = "openrouter"
	ProviderOpenAI     ProviderType = "openai"
)

// Generator produces a reply for a conversation.
type Generator interface {
	Generate(ctx context.Context, req *models.GenerationRequest) (*models.GenerationResponse, error)
}

// Provider is a Generator backed by one external API.
type Provider interface {
	Generator
	Close() error
	GetModelInfo() map[string]interface{}
}
