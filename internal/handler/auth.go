package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hanzong05/aimddlwr/internal/apperr"
	"github.com/hanzong05/aimddlwr/internal/middleware"
	"github.com/hanzong05/aimddlwr/internal/service"
	"go.uber.org/zap"
)

type AuthHandler interface {
	Dispatch(c *gin.Context)
	Register(c *gin.Context)
	Login(c *gin.Context)
	Me(c *gin.Context)
}

type authHandler struct {
	authService service.AuthService
	logger      *zap.Logger
}

func NewAuthHandler(authService service.AuthService, logger *zap.Logger) AuthHandler {
	return &authHandler{authService: authService, logger: logger.Named("auth_handler")}
}

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Dispatch handles POST /api/auth?action=register|login
func (h *authHandler) Dispatch(c *gin.Context) {
	switch c.Query("action") {
	case "register":
		h.Register(c)
	case "login":
		h.Login(c)
	default:
		respondError(c, h.logger, apperr.Validation("Unknown action"))
	}
}

// Register handles POST /api/auth/register
func (h *authHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := bindJSON(c, &req, false); err != nil {
		respondError(c, h.logger, err)
		return
	}

	res, err := h.authService.Register(c.Request.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// Login handles POST /api/auth/login
func (h *authHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := bindJSON(c, &req, false); err != nil {
		respondError(c, h.logger, err)
		return
	}

	res, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Me handles GET /api/auth/me
func (h *authHandler) Me(c *gin.Context) {
	user, err := h.authService.Me(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}
