package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/hanzong05/aimddlwr/internal/claude"
	"github.com/hanzong05/aimddlwr/internal/config"
	"github.com/hanzong05/aimddlwr/internal/gemini"
	"github.com/hanzong05/aimddlwr/internal/models"
	"github.com/hanzong05/aimddlwr/internal/openaicompat"
	"go.uber.org/zap"
)

// ErrNoProviders is returned by NewMultiProviderClient when nothing could be initialised.
var ErrNoProviders = errors.New("no providers could be initialized")

// MultiProviderClient manages multiple providers with fallback
type MultiProviderClient struct {
	providers    []*RateLimitedProvider
	currentIndex int
	mu           sync.RWMutex
	logger       *zap.Logger
	failureCount map[int]int
	maxFailures  int
}

// MultiProviderConfig holds configuration for multiple providers
type MultiProviderConfig struct {
	Providers   []config.ProviderConfig
	MaxFailures int // consecutive failures before switching provider
}

func newProvider(cfg config.ProviderConfig, logger *zap.Logger) (Provider, error) {
	switch ProviderType(cfg.Type) {
	case ProviderGemini:
		return gemini.NewClient(gemini.Config{
			APIKey:     cfg.APIKey,
			ModelName:  cfg.ModelName,
			MaxRetries: cfg.MaxRetries,
			RetryDelay: cfg.RetryDelay,
		}, logger)
	case ProviderAnthropic:
		return claude.NewClient(claude.Config{
			APIKey:     cfg.APIKey,
			ModelName:  cfg.ModelName,
			BaseURL:    cfg.BaseURL,
			MaxRetries: cfg.MaxRetries,
		}, logger)
	case ProviderGroq, ProviderOpenRouter, ProviderOpenAI:
		return openaicompat.NewClient(openaicompat.Config{
			Name:       cfg.Type,
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			ModelName:  cfg.ModelName,
			MaxRetries: cfg.MaxRetries,
			RetryDelay: cfg.RetryDelay,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown provider type %q", cfg.Type)
	}
}

// NewMultiProviderClient builds every configured provider. Providers that fail to
// initialise are logged and skipped; ErrNoProviders means none are usable.
func NewMultiProviderClient(cfg MultiProviderConfig, logger *zap.Logger) (*MultiProviderClient, error) {
	logger = logger.Named("llm")
	providers := make([]Provider, 0, len(cfg.Providers))
	limits := make([]int, 0, len(cfg.Providers))

	for i, providerCfg := range cfg.Providers {
		provider, err := newProvider(providerCfg, logger)
		if err != nil {
			logger.Error("Failed to create provider",
				zap.String("type", providerCfg.Type),
				zap.Int("index", i),
				zap.Error(err))
			continue
		}
		providers = append(providers, provider)
		limits = append(limits, providerCfg.RequestsPerMinute)

		logger.Info("Provider initialized",
			zap.String("type", providerCfg.Type),
			zap.String("model", providerCfg.ModelName),
			zap.Int("rate_limit", providerCfg.RequestsPerMinute),
			zap.Int("index", i))
	}

	if len(providers) == 0 {
		return nil, ErrNoProviders
	}
	return newMultiProviderClient(providers, limits, cfg.MaxFailures, logger), nil
}

func newMultiProviderClient(providers []Provider, limits []int, maxFailures int, logger *zap.Logger) *MultiProviderClient {
	if maxFailures <= 0 {
		maxFailures = 3
	}
	wrapped := make([]*RateLimitedProvider, len(providers))
	for i, p := range providers {
		rpm := 0
		if i < len(limits) {
			rpm = limits[i]
		}
		wrapped[i] = NewRateLimitedProvider(p, rpm, logger)
	}
	return &MultiProviderClient{
		providers:    wrapped,
		logger:       logger,
		failureCount: make(map[int]int),
		maxFailures:  maxFailures,
	}
}

func (c *MultiProviderClient) getCurrentProvider() (*RateLimitedProvider, int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.providers[c.currentIndex], c.currentIndex
}

// switchFrom advances past providerIndex unless another caller already did.
func (c *MultiProviderClient) switchFrom(providerIndex int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.currentIndex != providerIndex {
		return
	}
	c.currentIndex = (c.currentIndex + 1) % len(c.providers)

	c.logger.Info("Switching provider",
		zap.Int("from_index", providerIndex),
		zap.Int("to_index", c.currentIndex),
		zap.Int("total_providers", len(c.providers)))
}

// recordFailure reports whether the provider has hit the failure limit.
func (c *MultiProviderClient) recordFailure(providerIndex int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.failureCount[providerIndex]++
	if c.failureCount[providerIndex] >= c.maxFailures {
		c.logger.Warn("Provider reached max failures",
			zap.Int("provider_index", providerIndex),
			zap.Int("failures", c.failureCount[providerIndex]))
		c.failureCount[providerIndex] = 0
		return true
	}
	return false
}

func (c *MultiProviderClient) resetFailureCount(providerIndex int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failureCount[providerIndex] = 0
}

// Generate tries the current provider first and walks the list once on failure.
func (c *MultiProviderClient) Generate(ctx context.Context, req *models.GenerationRequest) (*models.GenerationResponse, error) {
	_, start := c.getCurrentProvider()

	var lastErr error
	for attempt := 0; attempt < len(c.providers); attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		providerIndex := (start + attempt) % len(c.providers)
		provider := c.providers[providerIndex]

		c.logger.Debug("Attempting generation",
			zap.Int("provider_index", providerIndex),
			zap.Int("attempt", attempt+1))

		result, err := provider.Generate(ctx, req)
		if err == nil {
			c.resetFailureCount(providerIndex)
			return result, nil
		}
		lastErr = err

		// caller gave up: not the provider's fault
		if ctx.Err() != nil {
			return nil, fmt.Errorf("generation aborted: %w", err)
		}
		if errors.Is(err, ErrLimiterWait) {
			c.logger.Debug("Provider throttled locally, trying next", zap.Int("provider_index", providerIndex))
			continue
		}

		c.logger.Error("Provider failed",
			zap.Int("provider_index", providerIndex),
			zap.Error(err))

		if c.recordFailure(providerIndex) || isRateLimitError(err) {
			c.switchFrom(providerIndex)
		}
	}

	return nil, fmt.Errorf("all providers failed: %w", lastErr)
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "quota") ||
		strings.Contains(msg, "rate limit")
}

// Close closes all providers
func (c *MultiProviderClient) Close() error {
	var errs []error
	for i, provider := range c.providers {
		if err := provider.Close(); err != nil {
			c.logger.Error("Failed to close provider", zap.Int("index", i), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// GetProvidersInfo returns information about all providers
func (c *MultiProviderClient) GetProvidersInfo() []map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	info := make([]map[string]interface{}, len(c.providers))
	for i, provider := range c.providers {
		providerInfo := provider.GetModelInfo()
		providerInfo["is_current"] = i == c.currentIndex
		providerInfo["failure_count"] = c.failureCount[i]
		info[i] = providerInfo
	}
	return info
}
