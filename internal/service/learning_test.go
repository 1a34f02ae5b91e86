package service

import (
	"context"
	"errors"
	"testing"

	"github.com/hanzong05/aimddlwr/internal/apperr"
	"github.com/hanzong05/aimddlwr/internal/models"
	"github.com/hanzong05/aimddlwr/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func ptr[T any](v T) *T { return &v }

func TestPatternRoundTripAndClamp(t *testing.T) {
	env := newTestEnv(t)
	userID := env.user(t, "ann@example.com")
	svc := NewPatternService(env.patterns, zap.NewNop())
	ctx := context.Background()

	created, err := svc.Create(ctx, userID, PatternInput{
		InputPattern:    "What's the capital of France?",
		ResponsePattern: "Paris.",
		Confidence:      ptr(3.5),
	})
	require.NoError(t, err)
	assert.Equal(t, 1.0, created.Confidence)
	assert.Equal(t, "help", created.Category, "category defaults to the classifier")

	low, err := svc.Create(ctx, userID, PatternInput{InputPattern: "abc", ResponsePattern: "def", Confidence: ptr(-2.0)})
	require.NoError(t, err)
	assert.Equal(t, 0.1, low.Confidence)

	list, err := svc.List(ctx, userID, models.PatternFilter{MinConfidence: 0})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "What's the capital of France?", list[0].InputPattern)
	assert.Equal(t, "Paris.", list[0].ResponsePattern)

	_, err = svc.Create(ctx, userID, PatternInput{InputPattern: "hi", ResponsePattern: "hello"})
	requireKind(t, err, apperr.KindValidation)

	updated, err := svc.Update(ctx, userID, created.ID, PatternUpdate{Confidence: ptr(0.05), ResponsePattern: ptr("Paris, France.")})
	require.NoError(t, err)
	assert.Equal(t, 0.1, updated.Confidence)
	assert.Equal(t, "Paris, France.", updated.ResponsePattern)
}

func TestPatternOwnership(t *testing.T) {
	env := newTestEnv(t)
	ann := env.user(t, "ann@example.com")
	bob := env.user(t, "bob@example.com")
	svc := NewPatternService(env.patterns, zap.NewNop())
	ctx := context.Background()
	p := env.addPattern(t, ann, "hello there", "hi!", 0.5)

	_, err := svc.Update(ctx, bob, p.ID, PatternUpdate{Confidence: ptr(0.9)})
	requireKind(t, err, apperr.KindNotFound)
	requireKind(t, svc.Delete(ctx, bob, p.ID), apperr.KindNotFound)
	requireKind(t, svc.Delete(ctx, bob, "42"), apperr.KindNotFound)

	require.NoError(t, svc.Delete(ctx, ann, p.ID))
	requireKind(t, svc.Delete(ctx, ann, p.ID), apperr.KindNotFound)
}

func TestNegativeFeedbackClampsAtFloor(t *testing.T) {
	env := newTestEnv(t)
	userID := env.user(t, "ann@example.com")
	svc := NewFeedbackService(env.patterns, env.feedback, zap.NewNop())
	ctx := context.Background()
	p := env.addPattern(t, userID, "what is go", "A language.", 0.2)

	res, err := svc.Submit(ctx, userID, FeedbackInput{PatternID: p.ID, Type: "negative"})
	require.NoError(t, err)
	assert.True(t, res.PatternUpdated)
	assert.Equal(t, 0.2, res.PreviousConfidence)
	assert.Equal(t, 0.1, res.Confidence)

	stored, err := env.patterns.GetByID(ctx, userID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.1, stored.Confidence)
}

func TestFeedbackMutations(t *testing.T) {
	env := newTestEnv(t)
	userID := env.user(t, "ann@example.com")
	svc := NewFeedbackService(env.patterns, env.feedback, zap.NewNop())
	ctx := context.Background()
	p := env.addPattern(t, userID, "what is go", "A language.", 0.5)

	res, err := svc.Submit(ctx, userID, FeedbackInput{PatternID: p.ID, Type: "positive", Score: ptr(3)})
	require.NoError(t, err)
	assert.False(t, res.PatternUpdated, "a lukewarm score records the event only")
	assert.Equal(t, 0.5, res.Confidence)

	res, err = svc.Submit(ctx, userID, FeedbackInput{PatternID: p.ID, Type: "positive", Score: ptr(5)})
	require.NoError(t, err)
	assert.True(t, res.PatternUpdated)
	assert.Equal(t, 0.6, res.Confidence)

	res, err = svc.Submit(ctx, userID, FeedbackInput{PatternID: p.ID, Type: "correction", CorrectedResponse: ptr("A programming language by Google.")})
	require.NoError(t, err)
	assert.Equal(t, 0.65, res.Confidence)
	stored, err := env.patterns.GetByID(ctx, userID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "A programming language by Google.", stored.ResponsePattern)

	events, err := svc.List(ctx, userID, 0)
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestFeedbackValidationWritesNothing(t *testing.T) {
	env := newTestEnv(t)
	ann := env.user(t, "ann@example.com")
	bob := env.user(t, "bob@example.com")
	svc := NewFeedbackService(env.patterns, env.feedback, zap.NewNop())
	ctx := context.Background()
	p := env.addPattern(t, ann, "what is go", "A language.", 0.5)

	_, err := svc.Submit(ctx, bob, FeedbackInput{PatternID: p.ID, Type: "negative"})
	requireKind(t, err, apperr.KindNotFound)
	_, err = svc.Submit(ctx, ann, FeedbackInput{PatternID: p.ID, Type: "meh"})
	requireKind(t, err, apperr.KindValidation)
	_, err = svc.Submit(ctx, ann, FeedbackInput{PatternID: p.ID, Type: "positive", Score: ptr(6)})
	requireKind(t, err, apperr.KindValidation)

	counts, err := env.feedback.CountByType(ctx, ann)
	require.NoError(t, err)
	counts2, err := env.feedback.CountByType(ctx, bob)
	require.NoError(t, err)
	for _, c := range []map[models.FeedbackType]int{counts, counts2} {
		for kind, n := range c {
			assert.Zero(t, n, kind)
		}
	}
	stored, err := env.patterns.GetByID(ctx, ann, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.5, stored.Confidence)
}

type failingPatternUpdates struct {
	repository.PatternRepository
}

func (failingPatternUpdates) UpdateConfidence(context.Context, string, string, float64, *string) error {
	return errors.New("disk full")
}

func TestFeedbackKeepsEventWhenMutationFails(t *testing.T) {
	env := newTestEnv(t)
	userID := env.user(t, "ann@example.com")
	svc := NewFeedbackService(failingPatternUpdates{env.patterns}, env.feedback, zap.NewNop())
	ctx := context.Background()
	p := env.addPattern(t, userID, "what is go", "A language.", 0.5)

	res, err := svc.Submit(ctx, userID, FeedbackInput{PatternID: p.ID, Type: "negative"})
	require.NoError(t, err)
	assert.False(t, res.PatternUpdated)
	assert.NotEmpty(t, res.FeedbackID)

	counts, err := env.feedback.CountByType(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[models.FeedbackNegative])
}

func TestDatasetRejectsShortInput(t *testing.T) {
	env := newTestEnv(t)
	userID := env.user(t, "ann@example.com")
	svc := NewDatasetService(env.examples, zap.NewNop())
	ctx := context.Background()

	_, err := svc.Create(ctx, userID, ExampleInput{Input: "hi", Output: "hello there"})
	e := requireKind(t, err, apperr.KindValidation)
	assert.Equal(t, "Input and output must be at least 3 characters", e.Message)

	_, err = svc.Create(ctx, userID, ExampleInput{Input: "hello", Output: "hi there", QualityScore: ptr(7.0)})
	requireKind(t, err, apperr.KindValidation)

	ex, err := svc.Create(ctx, userID, ExampleInput{Input: "  hello  ", Output: "hi there", Tags: []string{"Greeting"}})
	require.NoError(t, err)
	assert.Equal(t, "hello", ex.Input)
	assert.Equal(t, 3.0, ex.QualityScore)
	assert.Equal(t, models.Tags{"greeting"}, ex.Tags)
}

func TestDatasetBatchIsAtomic(t *testing.T) {
	env := newTestEnv(t)
	userID := env.user(t, "ann@example.com")
	svc := NewDatasetService(env.examples, zap.NewNop())
	ctx := context.Background()

	_, err := svc.CreateBatch(ctx, userID, []ExampleInput{
		{Input: "first question", Output: "first answer"},
		{Input: "no", Output: "second answer"},
	})
	e := requireKind(t, err, apperr.KindValidation)
	assert.Equal(t, 1, e.Details["index"])

	n, err := env.examples.CountByUser(ctx, userID)
	require.NoError(t, err)
	assert.Zero(t, n)

	created, err := svc.CreateBatch(ctx, userID, []ExampleInput{
		{Input: "first question", Output: "first answer", Category: "general"},
		{Input: "second question", Output: "second answer", QualityScore: ptr(5.0)},
	})
	require.NoError(t, err)
	assert.Len(t, created, 2)

	page, err := svc.List(ctx, models.TrainingDataFilter{UserID: userID, MinQuality: ptr(4.0)}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Pagination.Total)
	assert.Equal(t, 1, page.Pagination.TotalPages)

	stats, err := svc.Stats(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 4.0, stats.AverageQuality)

	tooMany := make([]ExampleInput, maxBatchSize+1)
	_, err = svc.CreateBatch(ctx, userID, tooMany)
	requireKind(t, err, apperr.KindValidation)
}

func TestDatasetUsedExampleKeepsText(t *testing.T) {
	env := newTestEnv(t)
	userID := env.user(t, "ann@example.com")
	svc := NewDatasetService(env.examples, zap.NewNop())
	ctx := context.Background()

	ex, err := svc.Create(ctx, userID, ExampleInput{Input: "hello", Output: "hi there"})
	require.NoError(t, err)
	_, err = env.db.Exec(env.db.Rebind(`UPDATE training_data SET used_in_training = ? WHERE id = ?`), true, ex.ID)
	require.NoError(t, err)

	_, err = svc.Update(ctx, userID, ex.ID, ExampleUpdate{Output: ptr("changed answer")})
	requireKind(t, err, apperr.KindValidation)

	updated, err := svc.Update(ctx, userID, ex.ID, ExampleUpdate{QualityScore: ptr(5.0), Tags: &[]string{"reviewed"}})
	require.NoError(t, err)
	assert.Equal(t, 5.0, updated.QualityScore)
	assert.Equal(t, "hi there", updated.Output)

	requireKind(t, svc.Delete(ctx, env.user(t, "bob@example.com"), ex.ID), apperr.KindNotFound)
	require.NoError(t, svc.Delete(ctx, userID, ex.ID))
}
