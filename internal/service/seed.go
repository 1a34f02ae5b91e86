package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hanzong05/aimddlwr/internal/apperr"
	"github.com/hanzong05/aimddlwr/internal/models"
	"github.com/hanzong05/aimddlwr/internal/repository"
	"go.uber.org/zap"
)

type seedExample struct {
	input, output, category string
	quality                 float64
}

var seedExamples = []seedExample{
	{"hello", "Hi there! How can I help you today?", "greeting", 5},
	{"good morning", "Good morning! What would you like to work on?", "greeting", 4},
	{"how do I declare a variable in javascript", "Use let for values that change and const for values that don't, for example: const name = \"Ada\";", "programming", 5},
	{"what is a function in python", "A function is a reusable block of code defined with def, for example: def greet(name): return \"Hello \" + name", "programming", 5},
	{"how do I center a div with css", "Use flexbox on the parent: display: flex; justify-content: center; align-items: center;", "programming", 4},
	{"can you help me", "Of course. Tell me what you're working on and where you're stuck.", "help", 4},
	{"explain how you learn", "I store the answers you rate highly as patterns and use your training examples to answer similar questions.", "help", 4},
	{"thank you", "You're welcome! Rate my answers so I keep improving.", "general", 4},
}

// Seeder provisions the fixed starter examples for users without training data.
type Seeder struct {
	examples repository.TrainingDataRepository
	logger   *zap.Logger
}

func NewSeeder(examples repository.TrainingDataRepository, logger *zap.Logger) *Seeder {
	return &Seeder{examples: examples, logger: logger.Named("seeder")}
}

// SeedUser inserts the starter set when userID has no training data and returns
// how many examples were added.
func (s *Seeder) SeedUser(ctx context.Context, userID string) (int, error) {
	count, err := s.examples.CountByUser(ctx, userID)
	if err != nil {
		return 0, apperr.Upstream("Failed to count training data", err)
	}
	if count > 0 {
		return 0, nil
	}

	created := now()
	batch := make([]*models.TrainingExample, 0, len(seedExamples))
	for i, e := range seedExamples {
		batch = append(batch, &models.TrainingExample{
			ID:           uuid.NewString(),
			UserID:       userID,
			Input:        e.input,
			Output:       e.output,
			Category:     e.category,
			QualityScore: e.quality,
			Tags:         models.NewTags("seed", e.category),
			// distinct timestamps keep candidate ordering stable
			CreatedAt: created.Add(time.Duration(i) * time.Millisecond),
		})
	}
	if err := s.examples.CreateBatch(ctx, batch); err != nil {
		return 0, apperr.Upstream("Failed to seed training data", err)
	}

	s.logger.Info("Seeded training data", zap.String("user_id", userID), zap.Int("count", len(batch)))
	return len(batch), nil
}
