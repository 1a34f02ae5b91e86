package service

import (
	"context"
	"errors"

	"github.com/hanzong05/aimddlwr/internal/apperr"
	"github.com/hanzong05/aimddlwr/internal/models"
	"github.com/hanzong05/aimddlwr/internal/repository"
	"go.uber.org/zap"
)

type ModelList struct {
	Models        []*models.Model `json:"models"`
	ActiveModelID *string         `json:"activeModelId"`
}

type ModelService interface {
	List(ctx context.Context, userID string) (*ModelList, error)
	Activate(ctx context.Context, userID, id string) (*models.Model, error)
	Archive(ctx context.Context, userID, id string) (*models.Model, error)
}

type modelService struct {
	models repository.ModelRepository
	logger *zap.Logger
}

func NewModelService(models repository.ModelRepository, logger *zap.Logger) ModelService {
	return &modelService{models: models, logger: logger.Named("models")}
}

func (s *modelService) List(ctx context.Context, userID string) (*ModelList, error) {
	list, err := s.models.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Upstream("Failed to load models", err)
	}
	out := &ModelList{Models: list}
	for _, m := range list {
		if m.IsActive {
			id := m.ID
			out.ActiveModelID = &id
			break
		}
	}
	return out, nil
}

// Activate makes id the user's only active model.
func (s *modelService) Activate(ctx context.Context, userID, id string) (*models.Model, error) {
	m, err := s.get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if m.Status == models.ModelArchived {
		return nil, apperr.Validation("Archived models cannot be activated")
	}
	if err := s.models.Activate(ctx, userID, id); err != nil {
		return nil, lookupErr(err, "Model not found", "Failed to activate model")
	}
	s.logger.Info("Model activated", zap.String("user_id", userID), zap.String("model_id", id))
	return s.get(ctx, userID, id)
}

func (s *modelService) Archive(ctx context.Context, userID, id string) (*models.Model, error) {
	if _, err := s.get(ctx, userID, id); err != nil {
		return nil, err
	}
	if err := s.models.Archive(ctx, userID, id); err != nil {
		return nil, lookupErr(err, "Model not found", "Failed to archive model")
	}
	return s.get(ctx, userID, id)
}

func (s *modelService) get(ctx context.Context, userID, id string) (*models.Model, error) {
	if !validID(id) {
		return nil, apperr.NotFound("Model not found")
	}
	m, err := s.models.GetByID(ctx, userID, id)
	if err != nil {
		return nil, lookupErr(err, "Model not found", "Failed to load model")
	}
	return m, nil
}

// activeModel returns the user's active model or nil when there is none.
func activeModel(ctx context.Context, repo repository.ModelRepository, userID string) (*models.Model, error) {
	m, err := repo.GetActive(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return m, err
}
