package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hanzong05/aimddlwr/internal/apperr"
	"github.com/hanzong05/aimddlwr/internal/llm"
	"github.com/hanzong05/aimddlwr/internal/matching"
	"github.com/hanzong05/aimddlwr/internal/models"
	"github.com/hanzong05/aimddlwr/internal/repository"
	"go.uber.org/zap"
)

// Source names the tier that produced a reply.
type Source string

const (
	SourceLearnedPattern Source = "learned_pattern"
	SourceExternalModel  Source = "external_model"
	SourceFallback       Source = "fallback"
)

const (
	patternAcceptConfidence = 0.5
	generatedConfidence     = 0.8
	learnFromGeneratedAbove = 0.6
	fallbackConfidence      = 0.4
	maxScoredConfidence     = 0.9
	candidateLimit          = 30

	DefaultSystemPrompt = "You are a helpful learning assistant. Answer clearly and concisely."
)

// Reply is the selector's answer to one user message.
type Reply struct {
	Content    string
	Confidence float64
	Source     Source
	Category   string
	PatternID  string
	ExampleID  string
	Learned    bool
}

type SelectorConfig struct {
	SystemPrompt string
	Timeout      time.Duration
}

// Selector picks a reply by trying, in order: a stored pattern, the external
// generator, the keyword scorer over training examples and a category template.
type Selector struct {
	patterns  repository.PatternRepository
	examples  repository.TrainingDataRepository
	generator llm.Generator
	cfg       SelectorConfig
	logger    *zap.Logger
}

// NewSelector builds a Selector. generator may be nil, in which case the
// external tier is skipped.
func NewSelector(patterns repository.PatternRepository, examples repository.TrainingDataRepository,
	generator llm.Generator, cfg SelectorConfig, logger *zap.Logger) *Selector {
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &Selector{
		patterns:  patterns,
		examples:  examples,
		generator: generator,
		cfg:       cfg,
		logger:    logger.Named("selector"),
	}
}

// GeneratorConfigured reports whether an external generator is wired in.
func (s *Selector) GeneratorConfigured() bool { return s.generator != nil }

// Generator returns the external generator, or nil.
func (s *Selector) Generator() llm.Generator { return s.generator }

// Select answers message for userID. history holds the earlier turns of the
// conversation, oldest first, and must not include message itself.
func (s *Selector) Select(ctx context.Context, userID, message string, history []models.ChatTurn) (*Reply, error) {
	p, err := s.matchPattern(ctx, userID, message)
	if err != nil {
		return nil, err
	}
	if p != nil {
		if err := s.patterns.IncrementUseCount(ctx, userID, p.ID); err != nil {
			s.logger.Warn("Failed to increment pattern use count", zap.String("pattern_id", p.ID), zap.Error(err))
		}
		return &Reply{
			Content:    p.ResponsePattern,
			Confidence: p.Confidence,
			Source:     SourceLearnedPattern,
			Category:   p.Category,
			PatternID:  p.ID,
		}, nil
	}

	if reply, ok := s.generate(ctx, userID, message, history); ok {
		return reply, nil
	}

	candidates, err := s.examples.ListCandidates(ctx, userID, candidateLimit)
	if err != nil {
		return nil, apperr.Upstream("Failed to load training data", err)
	}
	if m, ok := matching.BestExample(message, candidates); ok {
		category := m.Example.Category
		if category == "" {
			category = string(matching.Classify(message))
		}
		return &Reply{
			Content:    matching.ContextualReply(m),
			Confidence: math.Min(maxScoredConfidence, m.Score/100),
			Source:     SourceLearnedPattern,
			Category:   category,
			ExampleID:  m.Example.ID,
		}, nil
	}

	category := matching.Classify(message)
	return &Reply{
		Content:    matching.FallbackReply(category),
		Confidence: fallbackConfidence,
		Source:     SourceFallback,
		Category:   string(category),
	}, nil
}

// generate asks the external generator and records its answer as a new pattern
// and training example. Any failure falls through to the next tier.
// matchPattern returns the stored pattern that answers message, or nil.
func (s *Selector) matchPattern(ctx context.Context, userID, message string) (*models.Pattern, error) {
	q, ok := matching.PatternQuery(message, patternAcceptConfidence)
	if !ok {
		return nil, nil
	}
	p, err := s.patterns.FindMatch(ctx, userID, q)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, nil
	case err != nil:
		return nil, apperr.Upstream("Failed to load patterns", err)
	}
	return p, nil
}

func (s *Selector) generate(ctx context.Context, userID, message string, history []models.ChatTurn) (*Reply, bool) {
	if s.generator == nil {
		return nil, false
	}

	genCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	resp, err := s.generator.Generate(genCtx, &models.GenerationRequest{
		System:  s.cfg.SystemPrompt,
		History: history,
		Prompt:  message,
	})
	if err != nil {
		s.logger.Warn("External generator failed, falling back", zap.String("user_id", userID), zap.Error(err))
		return nil, false
	}
	content := strings.TrimSpace(resp.Content)
	if content == "" {
		s.logger.Warn("External generator returned an empty reply", zap.String("provider", resp.Provider))
		return nil, false
	}

	category := string(matching.Classify(message))
	reply := &Reply{
		Content:    content,
		Confidence: generatedConfidence,
		Source:     SourceExternalModel,
		Category:   category,
	}

	ts := now()
	pattern := &models.Pattern{
		ID:              uuid.NewString(),
		UserID:          userID,
		InputPattern:    strings.TrimSpace(message),
		ResponsePattern: content,
		Category:        category,
		Confidence:      generatedConfidence,
		CreatedAt:       ts,
		UpdatedAt:       ts,
	}
	if err := s.patterns.Create(ctx, pattern); err != nil {
		s.logger.Error("Failed to store generated pattern", zap.String("user_id", userID), zap.Error(err))
		return reply, true
	}
	reply.PatternID = pattern.ID
	reply.Learned = true

	if generatedConfidence > learnFromGeneratedAbove {
		example := &models.TrainingExample{
			ID:           uuid.NewString(),
			UserID:       userID,
			Input:        strings.TrimSpace(message),
			Output:       content,
			Category:     category,
			QualityScore: generatedConfidence * 5,
			Tags:         models.NewTags("auto", "external_model"),
			CreatedAt:    ts,
		}
		if err := s.examples.Create(ctx, example); err != nil {
			s.logger.Error("Failed to store generated training example", zap.String("user_id", userID), zap.Error(err))
		}
	}

	s.logger.Debug("Learned from external generator",
		zap.String("user_id", userID),
		zap.String("provider", resp.Provider),
		zap.String("pattern_id", pattern.ID))
	return reply, true
}
