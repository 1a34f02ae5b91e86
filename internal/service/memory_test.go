package service

import (
	"context"
	"testing"
	"time"

	"github.com/hanzong05/aimddlwr/internal/apperr"
	"github.com/hanzong05/aimddlwr/internal/crypto"
	"github.com/hanzong05/aimddlwr/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMemoriesAreSealedAtRest(t *testing.T) {
	env := newTestEnv(t)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	km, err := crypto.NewKeyManager(encodeKey(key))
	require.NoError(t, err)

	auth := NewAuthService(env.users, km, "secret", time.Hour, zap.NewNop())
	reg, err := auth.Register(context.Background(), "ann@example.com", "hunter22", "")
	require.NoError(t, err)
	userID := reg.User.ID

	svc := NewMemoryService(env.memories, env.users, km, zap.NewNop())
	ctx := context.Background()

	m, err := svc.Create(ctx, userID, MemoryInput{Content: "Prefers Go over Python", Tags: []string{"Languages"}})
	require.NoError(t, err)
	assert.Equal(t, "fact", m.MemoryType)
	assert.Equal(t, 5, m.Importance)
	assert.True(t, m.Encrypted)

	var raw string
	require.NoError(t, env.db.Get(&raw, env.db.Rebind(`SELECT content FROM brain_memories WHERE id = ?`), m.ID))
	assert.NotContains(t, raw, "Prefers")

	list, err := svc.List(ctx, userID, MemoryQuery{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Prefers Go over Python", list[0].Content)
}

func TestMemorySearchRanksByOverlap(t *testing.T) {
	env := newTestEnv(t)
	userID := env.user(t, "ann@example.com")
	svc := NewMemoryService(env.memories, env.users, nil, zap.NewNop())
	ctx := context.Background()

	create := func(content string, importance int) *models.BrainMemory {
		m, err := svc.Create(ctx, userID, MemoryInput{Content: content, Importance: &importance})
		require.NoError(t, err)
		assert.False(t, m.Encrypted)
		return m
	}
	both := create("Working on a python dashboard project", 2)
	one := create("Likes python tutorials", 9)
	create("Lives in Lisbon", 10)

	found, err := svc.List(ctx, userID, MemoryQuery{Query: "python dashboard"})
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, both.ID, found[0].ID)
	assert.Equal(t, one.ID, found[1].ID)
	assert.Equal(t, 1, found[0].AccessCount)

	all, err := svc.List(ctx, userID, MemoryQuery{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Lives in Lisbon", all[0].Content, "unqueried listings order by importance")
	for _, m := range all {
		if m.ID == both.ID {
			assert.Equal(t, 1, m.AccessCount)
			assert.NotNil(t, m.LastAccessedAt)
		}
	}

	_, err = svc.Create(ctx, userID, MemoryInput{Content: "ok"})
	requireKind(t, err, apperr.KindValidation)
	bad := 11
	_, err = svc.Create(ctx, userID, MemoryInput{Content: "valid content", Importance: &bad})
	requireKind(t, err, apperr.KindValidation)

	requireKind(t, svc.Delete(ctx, env.user(t, "bob@example.com"), both.ID), apperr.KindNotFound)
	require.NoError(t, svc.Delete(ctx, userID, both.ID))
}

func TestAnalyticsAndHealth(t *testing.T) {
	env := newTestEnv(t)
	userID := env.user(t, "ann@example.com")
	ctx := context.Background()
	env.addPattern(t, userID, "what is go", "A language.", 0.9)
	env.addPattern(t, userID, "what is rust", "Another language.", 0.5)
	env.addExamples(t, userID, 3, 4)

	gen := &fakeGenerator{reply: "x"}
	svc := NewAnalyticsService(AnalyticsDeps{
		DB:       env.db,
		Patterns: env.patterns,
		Feedback: env.feedback,
		Examples: env.examples,
		Models:   env.models,
		Jobs:     env.jobs,
		Memories: env.memories,
		Selector: newTestSelector(env, gen),
	}, zap.NewNop())

	a, err := svc.Analytics(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 2, a.Patterns.Total)
	assert.Equal(t, 1, a.Patterns.HighConfidence)
	assert.InDelta(t, 0.7, a.Patterns.AverageConfidence, 1e-9)
	assert.Equal(t, 3, a.TrainingData.Total)
	assert.Equal(t, 0, a.Feedback[models.FeedbackNegative])
	assert.Zero(t, a.Models.Total)
	assert.Nil(t, a.Models.ActiveModelID)
	assert.Nil(t, a.LatestJob)

	h := svc.Health(ctx, userID)
	assert.Equal(t, StatusHealthy, h.Status)
	assert.True(t, h.Database.OK)
	assert.True(t, h.Generator.Configured)
	assert.Nil(t, h.ActiveJob)

	require.NoError(t, env.db.Close())
	h = svc.Health(ctx, userID)
	assert.Equal(t, StatusDegraded, h.Status)
	assert.False(t, h.Database.OK)
}

func TestSeederIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	userID := env.user(t, "ann@example.com")
	seeder := NewSeeder(env.examples, zap.NewNop())
	ctx := context.Background()

	n, err := seeder.SeedUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 8, n)

	n, err = seeder.SeedUser(ctx, userID)
	require.NoError(t, err)
	assert.Zero(t, n)

	stats, err := env.examples.Stats(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 8, stats.Total)
	assert.Equal(t, 2, stats.ByCategory["greeting"])
}
