package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hanzong05/aimddlwr/internal/middleware"
	"github.com/hanzong05/aimddlwr/internal/service"
	"go.uber.org/zap"
)

type MemoryHandler interface {
	Create(c *gin.Context)
	List(c *gin.Context)
	Delete(c *gin.Context)
}

type memoryHandler struct {
	memoryService service.MemoryService
	logger        *zap.Logger
}

func NewMemoryHandler(memoryService service.MemoryService, logger *zap.Logger) MemoryHandler {
	return &memoryHandler{memoryService: memoryService, logger: logger.Named("memory_handler")}
}

// Create handles POST /api/brain/memories
func (h *memoryHandler) Create(c *gin.Context) {
	var req service.MemoryInput
	if err := bindJSON(c, &req, false); err != nil {
		respondError(c, h.logger, err)
		return
	}

	memory, err := h.memoryService.Create(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"memory": memory})
}

// List handles GET /api/brain/memories
func (h *memoryHandler) List(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	memories, err := h.memoryService.List(c.Request.Context(), middleware.UserID(c), service.MemoryQuery{
		Query:      c.Query("q"),
		MemoryType: c.Query("type"),
		Limit:      limit,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"memories": memories, "count": len(memories)})
}

// Delete handles DELETE /api/brain/memories/:id
func (h *memoryHandler) Delete(c *gin.Context) {
	if err := h.memoryService.Delete(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Memory deleted"})
}
