package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hanzong05/aimddlwr/internal/config"
	"github.com/hanzong05/aimddlwr/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeProvider struct {
	name   string
	err    error
	calls  int
	closed bool
}

func (f *fakeProvider) Generate(ctx context.Context, req *models.GenerationRequest) (*models.GenerationResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &models.GenerationResponse{Content: f.name + ": " + req.Prompt, Provider: f.name}, nil
}

func (f *fakeProvider) Close() error {
	f.closed = true
	return nil
}

func (f *fakeProvider) GetModelInfo() map[string]interface{} {
	return map[string]interface{}{"provider": f.name}
}

func TestFallsBackToNextProvider(t *testing.T) {
	broken := &fakeProvider{name: "a", err: errors.New("boom")}
	healthy := &fakeProvider{name: "b"}
	c := newMultiProviderClient([]Provider{broken, healthy}, nil, 2, zap.NewNop())

	resp, err := c.Generate(context.Background(), &models.GenerationRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "b: hi", resp.Content)

	_, current := c.getCurrentProvider()
	assert.Equal(t, 0, current, "one failure stays below the switch threshold")

	_, err = c.Generate(context.Background(), &models.GenerationRequest{Prompt: "again"})
	require.NoError(t, err)
	_, current = c.getCurrentProvider()
	assert.Equal(t, 1, current, "second consecutive failure switches")

	_, err = c.Generate(context.Background(), &models.GenerationRequest{Prompt: "third"})
	require.NoError(t, err)
	assert.Equal(t, 2, broken.calls, "the switched-away provider is not tried first")
}

func TestRateLimitErrorSwitchesImmediately(t *testing.T) {
	limited := &fakeProvider{name: "a", err: errors.New("status 429: quota exceeded")}
	other := &fakeProvider{name: "b"}
	c := newMultiProviderClient([]Provider{limited, other}, nil, 5, zap.NewNop())

	_, err := c.Generate(context.Background(), &models.GenerationRequest{Prompt: "x"})
	require.NoError(t, err)
	_, current := c.getCurrentProvider()
	assert.Equal(t, 1, current)
}

func TestAllProvidersFail(t *testing.T) {
	cause := errors.New("down")
	c := newMultiProviderClient([]Provider{&fakeProvider{err: cause}, &fakeProvider{err: cause}}, nil, 3, zap.NewNop())

	_, err := c.Generate(context.Background(), &models.GenerationRequest{Prompt: "x"})
	assert.ErrorIs(t, err, cause)
}

func TestRateLimiterHonoursContext(t *testing.T) {
	p := NewRateLimitedProvider(&fakeProvider{name: "a"}, 1, zap.NewNop())

	_, err := p.Generate(context.Background(), &models.GenerationRequest{Prompt: "first"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = p.Generate(ctx, &models.GenerationRequest{Prompt: "second"})
	assert.Error(t, err, "the second call needs a token a minute away")
	assert.Equal(t, 1, p.GetModelInfo()["rate_limit_per_minute"])
}

func TestLimiterWaitIsNotAProviderFailure(t *testing.T) {
	throttled := &fakeProvider{name: "a"}
	other := &fakeProvider{name: "b"}
	c := newMultiProviderClient([]Provider{throttled, other}, []int{1}, 1, zap.NewNop())

	_, err := c.Generate(context.Background(), &models.GenerationRequest{Prompt: "first"})
	require.NoError(t, err)

	// a's only token is spent; the short deadline cannot cover the wait
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	resp, err := c.Generate(ctx, &models.GenerationRequest{Prompt: "second"})
	require.NoError(t, err)
	assert.Equal(t, "b: second", resp.Content)

	_, current := c.getCurrentProvider()
	assert.Equal(t, 0, current, "local throttling does not switch providers")
	assert.Zero(t, c.failureCount[0])
	assert.Equal(t, 1, throttled.calls)
}

func TestCancelledCallerDoesNotSwitchProviders(t *testing.T) {
	a, b := &fakeProvider{name: "a"}, &fakeProvider{name: "b"}
	c := newMultiProviderClient([]Provider{a, b}, []int{1}, 1, zap.NewNop())
	_, err := c.Generate(context.Background(), &models.GenerationRequest{Prompt: "first"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	// no deadline, so the limiter blocks until cancel
	_, err = c.Generate(ctx, &models.GenerationRequest{Prompt: "second"})
	require.ErrorIs(t, err, context.Canceled)

	_, current := c.getCurrentProvider()
	assert.Equal(t, 0, current)
	assert.Zero(t, c.failureCount[0])
	assert.Zero(t, b.calls)
}

func TestNewMultiProviderClientSkipsBadProviders(t *testing.T) {
	_, err := NewMultiProviderClient(MultiProviderConfig{Providers: []config.ProviderConfig{
		{Type: "groq"},    // no key
		{Type: "mystery"}, // unknown
	}}, zap.NewNop())
	assert.ErrorIs(t, err, ErrNoProviders)

	c, err := NewMultiProviderClient(MultiProviderConfig{Providers: []config.ProviderConfig{
		{Type: "openrouter", APIKey: "k"},
	}}, zap.NewNop())
	require.NoError(t, err)
	info := c.GetProvidersInfo()
	require.Len(t, info, 1)
	assert.Equal(t, "openrouter", info[0]["provider"])
	assert.Equal(t, true, info[0]["is_current"])
	assert.NoError(t, c.Close())
}

func TestCloseClosesEveryProvider(t *testing.T) {
	a, b := &fakeProvider{}, &fakeProvider{}
	c := newMultiProviderClient([]Provider{a, b}, nil, 1, zap.NewNop())
	require.NoError(t, c.Close())
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}
