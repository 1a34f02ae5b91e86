package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hanzong05/aimddlwr/internal/middleware"
	"github.com/hanzong05/aimddlwr/internal/service"
	"go.uber.org/zap"
)

type ModelHandler interface {
	List(c *gin.Context)
	Activate(c *gin.Context)
	Archive(c *gin.Context)
}

type modelHandler struct {
	modelService service.ModelService
	logger       *zap.Logger
}

func NewModelHandler(modelService service.ModelService, logger *zap.Logger) ModelHandler {
	return &modelHandler{modelService: modelService, logger: logger.Named("model_handler")}
}

// List handles GET /api/models
func (h *modelHandler) List(c *gin.Context) {
	res, err := h.modelService.List(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Activate handles POST /api/models/:id/activate
func (h *modelHandler) Activate(c *gin.Context) {
	model, err := h.modelService.Activate(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"model": model})
}

// Archive handles POST /api/models/:id/archive
func (h *modelHandler) Archive(c *gin.Context) {
	model, err := h.modelService.Archive(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"model": model})
}
