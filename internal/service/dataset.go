package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/hanzong05/aimddlwr/internal/apperr"
	"github.com/hanzong05/aimddlwr/internal/models"
	"github.com/hanzong05/aimddlwr/internal/repository"
	"go.uber.org/zap"
)

const (
	minExampleLength    = 3
	defaultQualityScore = 3.0
	maxBatchSize        = 500
	maxDatasetLimit     = 100

	errShortExample = "Input and output must be at least 3 characters"
	errQualityRange = "Quality score must be between 1 and 5"
)

type ExampleInput struct {
	Input        string   `json:"input"`
	Output       string   `json:"output"`
	Category     string   `json:"category"`
	QualityScore *float64 `json:"qualityScore" binding:"omitempty,min=1,max=5"`
	Tags         []string `json:"tags"`
}

type ExampleUpdate struct {
	Input        *string   `json:"input"`
	Output       *string   `json:"output"`
	Category     *string   `json:"category"`
	QualityScore *float64  `json:"qualityScore" binding:"omitempty,min=1,max=5"`
	Tags         *[]string `json:"tags"`
}

type DatasetPage struct {
	Data       []*models.TrainingExample `json:"data"`
	Pagination Pagination                `json:"pagination"`
}

type DatasetService interface {
	List(ctx context.Context, filter models.TrainingDataFilter, page, limit int) (*DatasetPage, error)
	Stats(ctx context.Context, userID string) (*models.TrainingDataStats, error)
	Create(ctx context.Context, userID string, in ExampleInput) (*models.TrainingExample, error)
	CreateBatch(ctx context.Context, userID string, in []ExampleInput) ([]*models.TrainingExample, error)
	Update(ctx context.Context, userID, id string, in ExampleUpdate) (*models.TrainingExample, error)
	Delete(ctx context.Context, userID, id string) error
}

type datasetService struct {
	examples repository.TrainingDataRepository
	logger   *zap.Logger
}

func NewDatasetService(examples repository.TrainingDataRepository, logger *zap.Logger) DatasetService {
	return &datasetService{examples: examples, logger: logger.Named("dataset")}
}

func validExampleText(s string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(s)) >= minExampleLength
}

func validQuality(q float64) bool { return q >= 1 && q <= 5 }

// newExample validates in and builds the example it describes.
func newExample(userID string, in ExampleInput) (*models.TrainingExample, *apperr.Error) {
	if !validExampleText(in.Input) || !validExampleText(in.Output) {
		return nil, apperr.Validation(errShortExample)
	}
	quality := defaultQualityScore
	if in.QualityScore != nil {
		quality = *in.QualityScore
	}
	if !validQuality(quality) {
		return nil, apperr.Validation(errQualityRange)
	}
	return &models.TrainingExample{
		ID:           uuid.NewString(),
		UserID:       userID,
		Input:        strings.TrimSpace(in.Input),
		Output:       strings.TrimSpace(in.Output),
		Category:     strings.TrimSpace(in.Category),
		QualityScore: quality,
		Tags:         models.NewTags(in.Tags...),
		CreatedAt:    now(),
	}, nil
}

func (s *datasetService) List(ctx context.Context, filter models.TrainingDataFilter, page, limit int) (*DatasetPage, error) {
	p := NewPagination(page, limit, maxDatasetLimit)
	filter.Search = strings.TrimSpace(filter.Search)
	examples, total, err := s.examples.List(ctx, filter, p.window())
	if err != nil {
		return nil, apperr.Upstream("Failed to load training data", err)
	}
	p.setTotal(total)
	return &DatasetPage{Data: examples, Pagination: p}, nil
}

func (s *datasetService) Stats(ctx context.Context, userID string) (*models.TrainingDataStats, error) {
	stats, err := s.examples.Stats(ctx, userID)
	if err != nil {
		return nil, apperr.Upstream("Failed to load training data statistics", err)
	}
	return stats, nil
}

func (s *datasetService) Create(ctx context.Context, userID string, in ExampleInput) (*models.TrainingExample, error) {
	example, verr := newExample(userID, in)
	if verr != nil {
		return nil, verr
	}
	if err := s.examples.Create(ctx, example); err != nil {
		return nil, apperr.Upstream("Failed to save training example", err)
	}
	return example, nil
}

// CreateBatch validates every example before inserting any of them.
func (s *datasetService) CreateBatch(ctx context.Context, userID string, in []ExampleInput) ([]*models.TrainingExample, error) {
	if len(in) == 0 {
		return nil, apperr.Validation("No examples provided")
	}
	if len(in) > maxBatchSize {
		return nil, apperr.Validation(fmt.Sprintf("At most %d examples can be added at once", maxBatchSize)).
			With("received", len(in))
	}

	examples := make([]*models.TrainingExample, 0, len(in))
	for i, item := range in {
		example, verr := newExample(userID, item)
		if verr != nil {
			return nil, verr.With("index", i)
		}
		examples = append(examples, example)
	}
	if err := s.examples.CreateBatch(ctx, examples); err != nil {
		return nil, apperr.Upstream("Failed to save training examples", err)
	}
	s.logger.Info("Training examples imported", zap.String("user_id", userID), zap.Int("count", len(examples)))
	return examples, nil
}

func (s *datasetService) Update(ctx context.Context, userID, id string, in ExampleUpdate) (*models.TrainingExample, error) {
	if !validID(id) {
		return nil, apperr.NotFound("Training example not found")
	}
	example, err := s.examples.GetByID(ctx, userID, id)
	if err != nil {
		return nil, lookupErr(err, "Training example not found", "Failed to load training example")
	}

	if in.Input != nil || in.Output != nil {
		input, output := example.Input, example.Output
		if in.Input != nil {
			input = strings.TrimSpace(*in.Input)
		}
		if in.Output != nil {
			output = strings.TrimSpace(*in.Output)
		}
		if !validExampleText(input) || !validExampleText(output) {
			return nil, apperr.Validation(errShortExample)
		}
		if example.UsedInTraining && (input != example.Input || output != example.Output) {
			return nil, apperr.Validation("Input and output of an example used in training cannot be changed")
		}
		example.Input, example.Output = input, output
	}
	if in.Category != nil {
		example.Category = strings.TrimSpace(*in.Category)
	}
	if in.QualityScore != nil {
		if !validQuality(*in.QualityScore) {
			return nil, apperr.Validation(errQualityRange)
		}
		example.QualityScore = *in.QualityScore
	}
	if in.Tags != nil {
		example.Tags = models.NewTags(*in.Tags...)
	}

	if err := s.examples.Update(ctx, example); err != nil {
		return nil, lookupErr(err, "Training example not found", "Failed to update training example")
	}
	return example, nil
}

func (s *datasetService) Delete(ctx context.Context, userID, id string) error {
	if !validID(id) {
		return apperr.NotFound("Training example not found")
	}
	if err := s.examples.Delete(ctx, userID, id); err != nil {
		return lookupErr(err, "Training example not found", "Failed to delete training example")
	}
	return nil
}
