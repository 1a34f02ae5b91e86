package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hanzong05/aimddlwr/internal/middleware"
	"github.com/hanzong05/aimddlwr/internal/service"
	"go.uber.org/zap"
)

type ChatHandler interface {
	Chat(c *gin.Context)
	ListConversations(c *gin.Context)
	GetConversation(c *gin.Context)
	DeleteConversation(c *gin.Context)
}

type chatHandler struct {
	chatService service.ChatService
	logger      *zap.Logger
}

func NewChatHandler(chatService service.ChatService, logger *zap.Logger) ChatHandler {
	return &chatHandler{chatService: chatService, logger: logger.Named("chat_handler")}
}

// Chat handles POST /api/ai/chat
func (h *chatHandler) Chat(c *gin.Context) {
	var req service.ChatInput
	if err := bindJSON(c, &req, false); err != nil {
		respondError(c, h.logger, err)
		return
	}

	res, err := h.chatService.Send(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ListConversations handles GET /api/conversations
func (h *chatHandler) ListConversations(c *gin.Context) {
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

	res, err := h.chatService.ListConversations(c.Request.Context(), middleware.UserID(c), page, limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GetConversation handles GET /api/conversations/:id
func (h *chatHandler) GetConversation(c *gin.Context) {
	conv, err := h.chatService.GetConversation(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation": conv})
}

// DeleteConversation handles DELETE /api/conversations/:id
func (h *chatHandler) DeleteConversation(c *gin.Context) {
	if err := h.chatService.DeleteConversation(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Conversation deleted"})
}
