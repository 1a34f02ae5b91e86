package service

import (
	"context"
	"errors"
	"time"

	"github.com/hanzong05/aimddlwr/internal/apperr"
	"github.com/hanzong05/aimddlwr/internal/models"
	"github.com/hanzong05/aimddlwr/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	highConfidenceThreshold = 0.8
	healthPingTimeout       = 2 * time.Second
)

const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

type ModelSummary struct {
	Total         int           `json:"total"`
	ActiveModel   *models.Model `json:"activeModel"`
	ActiveModelID *string       `json:"activeModelId"`
}

type Analytics struct {
	Patterns     *models.PatternStats        `json:"patterns"`
	Feedback     map[models.FeedbackType]int `json:"feedback"`
	TrainingData *models.TrainingDataStats   `json:"trainingData"`
	Models       ModelSummary                `json:"models"`
	LatestJob    *models.TrainingJob         `json:"latestJob"`
	Memories     int                         `json:"memories"`
	GeneratedAt  time.Time                   `json:"generatedAt"`
}

type ComponentHealth struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type GeneratorHealth struct {
	Configured bool                     `json:"configured"`
	Providers  []map[string]interface{} `json:"providers,omitempty"`
}

type Health struct {
	Status    string              `json:"status"`
	Database  ComponentHealth     `json:"database"`
	Generator GeneratorHealth     `json:"generator"`
	ActiveJob *models.TrainingJob `json:"activeJob"`
	CheckedAt time.Time           `json:"checkedAt"`
}

// Pinger is satisfied by *sqlx.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// providerLister is implemented by the multi-provider client.
type providerLister interface {
	GetProvidersInfo() []map[string]interface{}
}

type AnalyticsService interface {
	Analytics(ctx context.Context, userID string) (*Analytics, error)
	Health(ctx context.Context, userID string) *Health
}

type AnalyticsDeps struct {
	DB       Pinger
	Patterns repository.PatternRepository
	Feedback repository.FeedbackRepository
	Examples repository.TrainingDataRepository
	Models   repository.ModelRepository
	Jobs     repository.JobRepository
	Memories repository.MemoryRepository
	Selector *Selector
}

type analyticsService struct {
	AnalyticsDeps
	logger *zap.Logger
}

func NewAnalyticsService(deps AnalyticsDeps, logger *zap.Logger) AnalyticsService {
	return &analyticsService{AnalyticsDeps: deps, logger: logger.Named("analytics")}
}

// Analytics gathers the learning statistics concurrently; the first failure
// cancels the rest.
func (s *analyticsService) Analytics(ctx context.Context, userID string) (*Analytics, error) {
	out := &Analytics{GeneratedAt: now()}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		out.Patterns, err = s.Patterns.Stats(gctx, userID, highConfidenceThreshold)
		return err
	})
	g.Go(func() (err error) {
		out.Feedback, err = s.Feedback.CountByType(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		out.TrainingData, err = s.Examples.Stats(gctx, userID)
		return err
	})
	g.Go(func() error {
		total, err := s.Models.CountByUser(gctx, userID)
		if err != nil {
			return err
		}
		active, err := activeModel(gctx, s.Models, userID)
		if err != nil {
			return err
		}
		out.Models = ModelSummary{Total: total, ActiveModel: active}
		if active != nil {
			out.Models.ActiveModelID = &active.ID
		}
		return nil
	})
	g.Go(func() error {
		jobs, err := s.Jobs.ListByUser(gctx, userID, 1)
		if err != nil {
			return err
		}
		if len(jobs) > 0 {
			out.LatestJob = jobs[0]
		}
		return nil
	})
	g.Go(func() (err error) {
		out.Memories, err = s.Memories.CountByUser(gctx, userID)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, apperr.Upstream("Failed to load analytics", err)
	}
	return out, nil
}

// Health never fails; problems are reported in the result.
func (s *analyticsService) Health(ctx context.Context, userID string) *Health {
	h := &Health{Status: StatusHealthy, Database: ComponentHealth{OK: true}, CheckedAt: now()}

	pingCtx, cancel := context.WithTimeout(ctx, healthPingTimeout)
	defer cancel()
	if err := s.DB.PingContext(pingCtx); err != nil {
		s.logger.Warn("Database ping failed", zap.Error(err))
		h.Status = StatusDegraded
		h.Database = ComponentHealth{OK: false, Error: "database unreachable"}
		return h
	}

	if s.Selector != nil && s.Selector.GeneratorConfigured() {
		h.Generator.Configured = true
		if pl, ok := s.Selector.Generator().(providerLister); ok {
			h.Generator.Providers = pl.GetProvidersInfo()
		}
	}

	job, err := s.Jobs.FindActive(ctx, userID)
	switch {
	case err == nil:
		h.ActiveJob = job
	case !errors.Is(err, repository.ErrNotFound):
		s.logger.Warn("Failed to load active job", zap.Error(err))
		h.Status = StatusDegraded
	}
	return h
}
