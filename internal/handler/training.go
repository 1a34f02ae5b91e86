package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hanzong05/aimddlwr/internal/middleware"
	"github.com/hanzong05/aimddlwr/internal/service"
	"go.uber.org/zap"
)

type TrainingHandler interface {
	Create(c *gin.Context)
	List(c *gin.Context)
	Get(c *gin.Context)
}

type trainingHandler struct {
	trainingService service.TrainingService
	logger          *zap.Logger
}

func NewTrainingHandler(trainingService service.TrainingService, logger *zap.Logger) TrainingHandler {
	return &trainingHandler{trainingService: trainingService, logger: logger.Named("training_handler")}
}

// Create handles POST /api/ai/train[?type=regular|advanced]
func (h *trainingHandler) Create(c *gin.Context) {
	var req service.TrainingInput
	if err := bindJSON(c, &req, true); err != nil {
		respondError(c, h.logger, err)
		return
	}
	if req.TrainingType == "" {
		req.TrainingType = c.Query("type")
	}

	res, err := h.trainingService.Create(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// List handles GET /api/ai/train, or a single job with ?jobId=
func (h *trainingHandler) List(c *gin.Context) {
	if jobID := c.Query("jobId"); jobID != "" {
		h.get(c, jobID)
		return
	}

	jobs, err := h.trainingService.List(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

// Get handles GET /api/ai/train/:id
func (h *trainingHandler) Get(c *gin.Context) {
	h.get(c, c.Param("id"))
}

func (h *trainingHandler) get(c *gin.Context, id string) {
	job, err := h.trainingService.Get(c.Request.Context(), middleware.UserID(c), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"job": job})
}
