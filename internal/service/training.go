package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/hanzong05/aimddlwr/internal/apperr"
	"github.com/hanzong05/aimddlwr/internal/models"
	"github.com/hanzong05/aimddlwr/internal/repository"
	"go.uber.org/zap"
)

type trainingThreshold struct {
	minExamples   int
	minQuality    float64
	defaultEpochs int
}

var thresholds = map[models.TrainingType]trainingThreshold{
	models.TrainingRegular:  {minExamples: 5, minQuality: 3.0, defaultEpochs: 5},
	models.TrainingAdvanced: {minExamples: 10, minQuality: 4.0, defaultEpochs: 10},
}

const (
	maxJobExamples = 1000
	jobListLimit   = 50
)

type TrainingInput struct {
	TrainingType   string `json:"trainingType"`
	Specialization string `json:"specialization"`
	Epochs         int    `json:"epochs"`
}

type TrainingStarted struct {
	JobID             string              `json:"jobId"`
	Status            models.JobStatus    `json:"status"`
	TrainingType      models.TrainingType `json:"trainingType"`
	Specialization    string              `json:"specialization"`
	TrainingDataCount int                 `json:"trainingDataCount"`
	Epochs            int                 `json:"epochs"`
	SeededExamples    int                 `json:"seededExamples,omitempty"`
}

type TrainingConfig struct {
	DefaultEpochs int
	MaxEpochs     int
	SeedIfEmpty   bool
}

type TrainingService interface {
	Create(ctx context.Context, userID string, in TrainingInput) (*TrainingStarted, error)
	Get(ctx context.Context, userID, id string) (*models.TrainingJob, error)
	List(ctx context.Context, userID string) ([]*models.TrainingJob, error)
}

type trainingService struct {
	jobs     repository.JobRepository
	examples repository.TrainingDataRepository
	runner   *Runner
	seeder   *Seeder
	cfg      TrainingConfig
	logger   *zap.Logger
}

func NewTrainingService(jobs repository.JobRepository, examples repository.TrainingDataRepository,
	runner *Runner, seeder *Seeder, cfg TrainingConfig, logger *zap.Logger) TrainingService {
	if cfg.MaxEpochs <= 0 {
		cfg.MaxEpochs = 50
	}
	return &trainingService{
		jobs:     jobs,
		examples: examples,
		runner:   runner,
		seeder:   seeder,
		cfg:      cfg,
		logger:   logger.Named("training"),
	}
}

func (s *trainingService) Create(ctx context.Context, userID string, in TrainingInput) (*TrainingStarted, error) {
	kind := models.TrainingType(strings.ToLower(strings.TrimSpace(in.TrainingType)))
	if kind == "" {
		kind = models.TrainingRegular
	}
	threshold, ok := thresholds[kind]
	if !ok {
		return nil, apperr.Validation("Training type must be regular or advanced")
	}

	specialization := strings.ToLower(strings.TrimSpace(in.Specialization))
	if specialization == "" {
		specialization = defaultSpecialization
	}
	if !ValidSpecialization(specialization) {
		return nil, apperr.Validation(fmt.Sprintf("Unknown specialization %q", in.Specialization))
	}

	epochs := in.Epochs
	if epochs == 0 {
		epochs = threshold.defaultEpochs
		if s.cfg.DefaultEpochs > 0 {
			epochs = s.cfg.DefaultEpochs
		}
	}
	if epochs < 1 || epochs > s.cfg.MaxEpochs {
		return nil, apperr.Validation(fmt.Sprintf("Epochs must be between 1 and %d", s.cfg.MaxEpochs))
	}

	active, err := s.jobs.FindActive(ctx, userID)
	switch {
	case err == nil:
		return nil, apperr.Conflict("Training already in progress").With("jobId", active.ID)
	case !errors.Is(err, repository.ErrNotFound):
		return nil, apperr.Upstream("Failed to check training jobs", err)
	}

	seeded := 0
	if s.cfg.SeedIfEmpty && s.seeder != nil {
		if seeded, err = s.seeder.SeedUser(ctx, userID); err != nil {
			return nil, err
		}
	}

	count, err := s.examples.CountEligible(ctx, userID, threshold.minQuality)
	if err != nil {
		return nil, apperr.Upstream("Failed to count training data", err)
	}
	if count < threshold.minExamples {
		return nil, apperr.Validation(fmt.Sprintf("Need at least %d quality training examples", threshold.minExamples)).
			With("currentCount", count).
			With("required", threshold.minExamples)
	}

	eligible, err := s.examples.ListEligible(ctx, userID, threshold.minQuality, maxJobExamples)
	if err != nil {
		return nil, apperr.Upstream("Failed to load training data", err)
	}
	ids := make(models.Tags, 0, len(eligible))
	for _, e := range eligible {
		ids = append(ids, e.ID)
	}

	job := &models.TrainingJob{
		ID:                uuid.NewString(),
		UserID:            userID,
		Status:            models.JobPending,
		TrainingType:      kind,
		Specialization:    specialization,
		Epochs:            epochs,
		TrainingDataCount: len(ids),
		ExampleIDs:        ids,
		CreatedAt:         now(),
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			conflict := apperr.Conflict("Training already in progress")
			if active, err := s.jobs.FindActive(ctx, userID); err == nil {
				conflict.With("jobId", active.ID)
			}
			return nil, conflict
		}
		return nil, apperr.Upstream("Failed to create training job", err)
	}

	if err := s.runner.Start(job); err != nil {
		if ferr := s.jobs.Fail(ctx, job.ID, err.Error(), now()); ferr != nil {
			s.logger.Error("Failed to fail unstarted job", zap.String("job_id", job.ID), zap.Error(ferr))
		}
		return nil, apperr.Upstream("Failed to start training", err)
	}

	s.logger.Info("Training job created",
		zap.String("job_id", job.ID),
		zap.String("user_id", userID),
		zap.String("type", string(kind)),
		zap.Int("examples", job.TrainingDataCount))

	return &TrainingStarted{
		JobID:             job.ID,
		Status:            models.JobPending,
		TrainingType:      kind,
		Specialization:    specialization,
		TrainingDataCount: job.TrainingDataCount,
		Epochs:            epochs,
		SeededExamples:    seeded,
	}, nil
}

func (s *trainingService) Get(ctx context.Context, userID, id string) (*models.TrainingJob, error) {
	if !validID(id) {
		return nil, apperr.NotFound("Training job not found")
	}
	job, err := s.jobs.GetByID(ctx, userID, id)
	if err != nil {
		return nil, lookupErr(err, "Training job not found", "Failed to load training job")
	}
	return job, nil
}

func (s *trainingService) List(ctx context.Context, userID string) ([]*models.TrainingJob, error) {
	jobs, err := s.jobs.ListByUser(ctx, userID, jobListLimit)
	if err != nil {
		return nil, apperr.Upstream("Failed to load training jobs", err)
	}
	return jobs, nil
}
