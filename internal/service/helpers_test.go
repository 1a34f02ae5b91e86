package service

import (
	"context"
	"encoding/base64"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hanzong05/aimddlwr/internal/apperr"
	"github.com/hanzong05/aimddlwr/internal/models"
	"github.com/hanzong05/aimddlwr/internal/repository"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type testEnv struct {
	db            *sqlx.DB
	users         repository.UserRepository
	examples      repository.TrainingDataRepository
	patterns      repository.PatternRepository
	feedback      repository.FeedbackRepository
	conversations repository.ConversationRepository
	jobs          repository.JobRepository
	models        repository.ModelRepository
	memories      repository.MemoryRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	db, err := repository.NewDB(repository.DialectSQLite, filepath.Join(t.TempDir(), "service-test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, repository.MigrateDB(db, logger))

	return &testEnv{
		db:            db,
		users:         repository.NewUserRepository(db, logger),
		examples:      repository.NewTrainingDataRepository(db, logger),
		patterns:      repository.NewPatternRepository(db, logger),
		feedback:      repository.NewFeedbackRepository(db, logger),
		conversations: repository.NewConversationRepository(db, logger),
		jobs:          repository.NewJobRepository(db, logger),
		models:        repository.NewModelRepository(db, logger),
		memories:      repository.NewMemoryRepository(db, logger),
	}
}

func (e *testEnv) user(t *testing.T, email string) string {
	t.Helper()
	u := &models.User{ID: uuid.NewString(), Email: email, PasswordHash: "x", CreatedAt: now()}
	require.NoError(t, e.users.Create(context.Background(), u))
	return u.ID
}

func (e *testEnv) addExamples(t *testing.T, userID string, n int, quality float64) []*models.TrainingExample {
	t.Helper()
	batch := make([]*models.TrainingExample, 0, n)
	for i := 0; i < n; i++ {
		batch = append(batch, &models.TrainingExample{
			ID:           uuid.NewString(),
			UserID:       userID,
			Input:        "question number " + uuid.NewString()[:8],
			Output:       "answer",
			QualityScore: quality,
			Tags:         models.Tags{},
			CreatedAt:    now().Add(time.Duration(i) * time.Millisecond),
		})
	}
	require.NoError(t, e.examples.CreateBatch(context.Background(), batch))
	return batch
}

func (e *testEnv) addPattern(t *testing.T, userID, input, response string, confidence float64) *models.Pattern {
	t.Helper()
	ts := now()
	p := &models.Pattern{
		ID:              uuid.NewString(),
		UserID:          userID,
		InputPattern:    input,
		ResponsePattern: response,
		Category:        "general",
		Confidence:      confidence,
		CreatedAt:       ts,
		UpdatedAt:       ts,
	}
	require.NoError(t, e.patterns.Create(context.Background(), p))
	return p
}

func requireKind(t *testing.T, err error, kind apperr.Kind) *apperr.Error {
	t.Helper()
	require.Error(t, err)
	e, ok := apperr.As(err)
	require.True(t, ok, "expected *apperr.Error, got %T: %v", err, err)
	require.Equal(t, kind, e.Kind, e.Message)
	return e
}

type fakeGenerator struct {
	mu       sync.Mutex
	reply    string
	err      error
	requests []*models.GenerationRequest
}

func (g *fakeGenerator) Generate(ctx context.Context, req *models.GenerationRequest) (*models.GenerationResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}
	return &models.GenerationResponse{Content: g.reply, Provider: "fake"}, nil
}

func (g *fakeGenerator) calls() []*models.GenerationRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*models.GenerationRequest(nil), g.requests...)
}

func encodeKey(key []byte) string {
	return base64.StdEncoding.EncodeToString(key)
}
