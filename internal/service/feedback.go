package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/hanzong05/aimddlwr/internal/apperr"
	"github.com/hanzong05/aimddlwr/internal/matching"
	"github.com/hanzong05/aimddlwr/internal/models"
	"github.com/hanzong05/aimddlwr/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultFeedbackLimit = 50
	maxFeedbackLimit     = 200
)

type FeedbackInput struct {
	PatternID         string  `json:"patternId" binding:"required"`
	Type              string  `json:"type" binding:"required"`
	Score             *int    `json:"score" binding:"omitempty,min=1,max=5"`
	CorrectedResponse *string `json:"correctedResponse"`
	MessageID         *string `json:"messageId"`
}

type FeedbackResult struct {
	FeedbackID         string  `json:"feedbackId"`
	PatternUpdated     bool    `json:"patternUpdated"`
	PreviousConfidence float64 `json:"previousConfidence"`
	Confidence         float64 `json:"confidence"`
}

type FeedbackService interface {
	Submit(ctx context.Context, userID string, in FeedbackInput) (*FeedbackResult, error)
	List(ctx context.Context, userID string, limit int) ([]*models.FeedbackEvent, error)
}

type feedbackService struct {
	patterns repository.PatternRepository
	feedback repository.FeedbackRepository
	logger   *zap.Logger
}

func NewFeedbackService(patterns repository.PatternRepository, feedback repository.FeedbackRepository, logger *zap.Logger) FeedbackService {
	return &feedbackService{patterns: patterns, feedback: feedback, logger: logger.Named("feedback")}
}

// Submit records a feedback event and then adjusts the pattern. The event is kept
// even when the adjustment fails.
func (s *feedbackService) Submit(ctx context.Context, userID string, in FeedbackInput) (*FeedbackResult, error) {
	if in.PatternID == "" {
		return nil, apperr.Validation("Pattern ID is required")
	}
	kind := models.FeedbackType(strings.ToLower(strings.TrimSpace(in.Type)))
	if !kind.Valid() {
		return nil, apperr.Validation("Feedback type must be positive, negative or correction")
	}
	if in.Score != nil && (*in.Score < 1 || *in.Score > 5) {
		return nil, apperr.Validation("Score must be between 1 and 5")
	}
	if !validID(in.PatternID) {
		return nil, apperr.NotFound("Pattern not found")
	}

	pattern, err := s.patterns.GetByID(ctx, userID, in.PatternID)
	if err != nil {
		return nil, lookupErr(err, "Pattern not found", "Failed to load pattern")
	}

	event := &models.FeedbackEvent{
		ID:                uuid.NewString(),
		UserID:            userID,
		PatternID:         pattern.ID,
		MessageID:         in.MessageID,
		Type:              kind,
		Score:             in.Score,
		CorrectedResponse: in.CorrectedResponse,
		CreatedAt:         now(),
	}
	if event.MessageID != nil && *event.MessageID == "" {
		event.MessageID = nil
	}
	if err := s.feedback.Create(ctx, event); err != nil {
		return nil, apperr.Upstream("Failed to save feedback", err)
	}

	corrected := ""
	if in.CorrectedResponse != nil {
		corrected = *in.CorrectedResponse
	}
	change := matching.ApplyFeedback(pattern.Confidence, kind, in.Score, corrected)

	result := &FeedbackResult{
		FeedbackID:         event.ID,
		PreviousConfidence: pattern.Confidence,
		Confidence:         pattern.Confidence,
	}
	if !change.Changed {
		return result, nil
	}

	if err := s.patterns.UpdateConfidence(ctx, userID, pattern.ID, change.Confidence, change.Response); err != nil {
		s.logger.Error("Failed to apply feedback to pattern",
			zap.String("pattern_id", pattern.ID),
			zap.String("feedback_id", event.ID),
			zap.Error(err))
		return result, nil
	}
	result.PatternUpdated = true
	result.Confidence = change.Confidence
	return result, nil
}

func (s *feedbackService) List(ctx context.Context, userID string, limit int) ([]*models.FeedbackEvent, error) {
	if limit <= 0 {
		limit = defaultFeedbackLimit
	}
	if limit > maxFeedbackLimit {
		limit = maxFeedbackLimit
	}
	events, err := s.feedback.List(ctx, userID, limit)
	if err != nil {
		return nil, apperr.Upstream("Failed to load feedback", err)
	}
	return events, nil
}
