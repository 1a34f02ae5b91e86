package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hanzong05/aimddlwr/internal/middleware"
	"github.com/hanzong05/aimddlwr/internal/models"
	"github.com/hanzong05/aimddlwr/internal/service"
	"go.uber.org/zap"
)

type DatasetHandler interface {
	List(c *gin.Context)
	Create(c *gin.Context)
	Update(c *gin.Context)
	Delete(c *gin.Context)
}

type datasetHandler struct {
	datasetService service.DatasetService
	logger         *zap.Logger
}

func NewDatasetHandler(datasetService service.DatasetService, logger *zap.Logger) DatasetHandler {
	return &datasetHandler{datasetService: datasetService, logger: logger.Named("dataset_handler")}
}

// CreateExamplesRequest is either a single example or {"examples": [...]}.
type CreateExamplesRequest struct {
	service.ExampleInput
	Examples []service.ExampleInput `json:"examples"`
}

// List handles GET /api/data/training, or the statistics with ?stats=true
func (h *datasetHandler) List(c *gin.Context) {
	userID := middleware.UserID(c)
	if c.Query("stats") == "true" {
		stats, err := h.datasetService.Stats(c.Request.Context(), userID)
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"stats": stats})
		return
	}

	page, err := queryInt(c, "page")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	minQuality, err := queryFloat(c, "min_quality")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	used, err := queryBool(c, "used")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	filter := models.TrainingDataFilter{
		UserID:     userID,
		Category:   c.Query("category"),
		MinQuality: minQuality,
		Used:       used,
		Search:     c.Query("search"),
	}
	res, err := h.datasetService.List(c.Request.Context(), filter, page, limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Create handles POST /api/data/training
func (h *datasetHandler) Create(c *gin.Context) {
	var req CreateExamplesRequest
	if err := bindJSON(c, &req, false); err != nil {
		respondError(c, h.logger, err)
		return
	}

	userID := middleware.UserID(c)
	if req.Examples != nil {
		examples, err := h.datasetService.CreateBatch(c.Request.Context(), userID, req.Examples)
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"examples": examples, "count": len(examples)})
		return
	}

	example, err := h.datasetService.Create(c.Request.Context(), userID, req.ExampleInput)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"example": example})
}

// Update handles PUT /api/data/training/:id
func (h *datasetHandler) Update(c *gin.Context) {
	var req service.ExampleUpdate
	if err := bindJSON(c, &req, false); err != nil {
		respondError(c, h.logger, err)
		return
	}

	example, err := h.datasetService.Update(c.Request.Context(), middleware.UserID(c), idParam(c), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"example": example})
}

// Delete handles DELETE /api/data/training/:id
func (h *datasetHandler) Delete(c *gin.Context) {
	if err := h.datasetService.Delete(c.Request.Context(), middleware.UserID(c), idParam(c)); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Training example deleted"})
}
