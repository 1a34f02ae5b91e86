package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hanzong05/aimddlwr/internal/middleware"
	"github.com/hanzong05/aimddlwr/internal/models"
	"github.com/hanzong05/aimddlwr/internal/service"
	"go.uber.org/zap"
)

type LearningHandler interface {
	ListPatterns(c *gin.Context)
	CreatePattern(c *gin.Context)
	UpdatePattern(c *gin.Context)
	DeletePattern(c *gin.Context)
	SubmitFeedback(c *gin.Context)
	ListFeedback(c *gin.Context)
	Analytics(c *gin.Context)
	Health(c *gin.Context)
}

type learningHandler struct {
	patterns  service.PatternService
	feedback  service.FeedbackService
	analytics service.AnalyticsService
	logger    *zap.Logger
}

func NewLearningHandler(patterns service.PatternService, feedback service.FeedbackService,
	analytics service.AnalyticsService, logger *zap.Logger) LearningHandler {
	return &learningHandler{
		patterns:  patterns,
		feedback:  feedback,
		analytics: analytics,
		logger:    logger.Named("learning_handler"),
	}
}

// ListPatterns handles GET /api/learning/patterns
func (h *learningHandler) ListPatterns(c *gin.Context) {
	minConfidence, err := queryFloat(c, "min_confidence")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	filter := models.PatternFilter{Category: c.Query("category"), Limit: limit}
	if minConfidence != nil {
		filter.MinConfidence = *minConfidence
	}

	patterns, err := h.patterns.List(c.Request.Context(), middleware.UserID(c), filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"patterns": patterns, "count": len(patterns)})
}

// CreatePattern handles POST /api/learning/patterns
func (h *learningHandler) CreatePattern(c *gin.Context) {
	var req service.PatternInput
	if err := bindJSON(c, &req, false); err != nil {
		respondError(c, h.logger, err)
		return
	}

	pattern, err := h.patterns.Create(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"pattern": pattern})
}

// UpdatePattern handles PUT /api/learning/patterns/:id
func (h *learningHandler) UpdatePattern(c *gin.Context) {
	var req service.PatternUpdate
	if err := bindJSON(c, &req, false); err != nil {
		respondError(c, h.logger, err)
		return
	}

	pattern, err := h.patterns.Update(c.Request.Context(), middleware.UserID(c), idParam(c), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pattern": pattern})
}

// DeletePattern handles DELETE /api/learning/patterns/:id
func (h *learningHandler) DeletePattern(c *gin.Context) {
	if err := h.patterns.Delete(c.Request.Context(), middleware.UserID(c), idParam(c)); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Pattern deleted"})
}

// SubmitFeedback handles POST /api/learning/feedback
func (h *learningHandler) SubmitFeedback(c *gin.Context) {
	var req service.FeedbackInput
	if err := bindJSON(c, &req, false); err != nil {
		respondError(c, h.logger, err)
		return
	}

	res, err := h.feedback.Submit(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// ListFeedback handles GET /api/learning/feedback
func (h *learningHandler) ListFeedback(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	events, err := h.feedback.List(c.Request.Context(), middleware.UserID(c), limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"feedback": events})
}

// Analytics handles GET /api/learning/analytics
func (h *learningHandler) Analytics(c *gin.Context) {
	res, err := h.analytics.Analytics(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Health handles GET /api/learning/health
func (h *learningHandler) Health(c *gin.Context) {
	res := h.analytics.Health(c.Request.Context(), middleware.UserID(c))
	status := http.StatusOK
	if !res.Database.OK {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, res)
}
