package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/hanzong05/aimddlwr/internal/apperr"
	"github.com/hanzong05/aimddlwr/internal/matching"
	"github.com/hanzong05/aimddlwr/internal/models"
	"github.com/hanzong05/aimddlwr/internal/repository"
	"go.uber.org/zap"
)

const (
	minPatternLength     = 3
	defaultConfidence    = 0.5
	defaultPatternLimit  = 50
	maxPatternListLimit  = 200
	errShortPatternInput = "Input and response patterns must be at least 3 characters"
)

type PatternInput struct {
	InputPattern    string   `json:"inputPattern" binding:"required"`
	ResponsePattern string   `json:"responsePattern" binding:"required"`
	Category        string   `json:"category"`
	Confidence      *float64 `json:"confidence"`
}

type PatternUpdate struct {
	ResponsePattern *string  `json:"responsePattern"`
	Category        *string  `json:"category"`
	Confidence      *float64 `json:"confidence"`
}

type PatternService interface {
	List(ctx context.Context, userID string, filter models.PatternFilter) ([]*models.Pattern, error)
	Create(ctx context.Context, userID string, in PatternInput) (*models.Pattern, error)
	Update(ctx context.Context, userID, id string, in PatternUpdate) (*models.Pattern, error)
	Delete(ctx context.Context, userID, id string) error
}

type patternService struct {
	patterns repository.PatternRepository
	logger   *zap.Logger
}

func NewPatternService(patterns repository.PatternRepository, logger *zap.Logger) PatternService {
	return &patternService{patterns: patterns, logger: logger.Named("patterns")}
}

func longEnough(s string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(s)) >= minPatternLength
}

func (s *patternService) List(ctx context.Context, userID string, filter models.PatternFilter) ([]*models.Pattern, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultPatternLimit
	}
	if filter.Limit > maxPatternListLimit {
		filter.Limit = maxPatternListLimit
	}
	patterns, err := s.patterns.List(ctx, userID, filter)
	if err != nil {
		return nil, apperr.Upstream("Failed to load patterns", err)
	}
	return patterns, nil
}

func (s *patternService) Create(ctx context.Context, userID string, in PatternInput) (*models.Pattern, error) {
	if !longEnough(in.InputPattern) || !longEnough(in.ResponsePattern) {
		return nil, apperr.Validation(errShortPatternInput)
	}

	confidence := defaultConfidence
	if in.Confidence != nil {
		confidence = *in.Confidence
	}
	category := strings.TrimSpace(in.Category)
	if category == "" {
		category = string(matching.Classify(in.InputPattern))
	}

	ts := now()
	p := &models.Pattern{
		ID:              uuid.NewString(),
		UserID:          userID,
		InputPattern:    in.InputPattern,
		ResponsePattern: in.ResponsePattern,
		Category:        category,
		Confidence:      matching.ClampConfidence(confidence),
		CreatedAt:       ts,
		UpdatedAt:       ts,
	}
	if err := s.patterns.Create(ctx, p); err != nil {
		return nil, apperr.Upstream("Failed to save pattern", err)
	}
	return p, nil
}

func (s *patternService) Update(ctx context.Context, userID, id string, in PatternUpdate) (*models.Pattern, error) {
	if !validID(id) {
		return nil, apperr.NotFound("Pattern not found")
	}
	p, err := s.patterns.GetByID(ctx, userID, id)
	if err != nil {
		return nil, lookupErr(err, "Pattern not found", "Failed to load pattern")
	}

	if in.ResponsePattern != nil {
		if !longEnough(*in.ResponsePattern) {
			return nil, apperr.Validation(errShortPatternInput)
		}
		p.ResponsePattern = *in.ResponsePattern
	}
	if in.Category != nil {
		if c := strings.TrimSpace(*in.Category); c != "" {
			p.Category = c
		}
	}
	if in.Confidence != nil {
		p.Confidence = matching.ClampConfidence(*in.Confidence)
	}
	p.UpdatedAt = now()

	if err := s.patterns.Update(ctx, p); err != nil {
		return nil, lookupErr(err, "Pattern not found", "Failed to update pattern")
	}
	return p, nil
}

func (s *patternService) Delete(ctx context.Context, userID, id string) error {
	if !validID(id) {
		return apperr.NotFound("Pattern not found")
	}
	if err := s.patterns.Delete(ctx, userID, id); err != nil {
		return lookupErr(err, "Pattern not found", "Failed to delete pattern")
	}
	return nil
}
