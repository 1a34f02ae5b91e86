package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/hanzong05/aimddlwr/internal/models"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrLimiterWait means no token became available before ctx ended. The
// provider itself was never called.
var ErrLimiterWait = errors.New("limiter wait aborted")

// RateLimitedProvider wraps a provider with a requests-per-minute token bucket.
type RateLimitedProvider struct {
	provider Provider
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// NewRateLimitedProvider allows requestsPerMinute calls per minute with a burst of
// the same size, so an idle provider can serve a short spike immediately.
func NewRateLimitedProvider(provider Provider, requestsPerMinute int, logger *zap.Logger) *RateLimitedProvider {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 30
	}
	return &RateLimitedProvider{
		provider: provider,
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), requestsPerMinute),
		logger:   logger,
	}
}

func (p *RateLimitedProvider) Generate(ctx context.Context, req *models.GenerationRequest) (*models.GenerationResponse, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLimiterWait, err)
	}
	return p.provider.Generate(ctx, req)
}

func (p *RateLimitedProvider) Close() error {
	return p.provider.Close()
}

func (p *RateLimitedProvider) GetModelInfo() map[string]interface{} {
	info := p.provider.GetModelInfo()
	info["rate_limit_per_minute"] = int(math.Round(float64(p.limiter.Limit()) * 60))
	return info
}
