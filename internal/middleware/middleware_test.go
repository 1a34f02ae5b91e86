package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/hanzong05/aimddlwr/internal/apperr"
	"github.com/hanzong05/aimddlwr/internal/models"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type stubParser map[string]*models.Claims

func (p stubParser) ParseToken(token string) (*models.Claims, error) {
	if token == "expired" {
		return nil, apperr.Auth("Token expired")
	}
	if c, ok := p[token]; ok {
		return c, nil
	}
	return nil, errors.New("bad signature")
}

func newAuthRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	parser := stubParser{"good": {UserID: "u-1", Email: "ann@example.com"}}
	r.GET("/me", AuthMiddleware(parser, zap.NewNop()), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"userId": UserID(c), "email": c.GetString(EmailKey)})
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	cases := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"missing header", "", http.StatusUnauthorized, `{"error":"Authorization header required"}`},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, `{"error":"Authorization header format must be Bearer <token>"}`},
		{"expired", "Bearer expired", http.StatusUnauthorized, `{"error":"Token expired"}`},
		{"invalid", "Bearer nope", http.StatusUnauthorized, `{"error":"Invalid token"}`},
		{"valid", "Bearer good", http.StatusOK, `{"userId":"u-1","email":"ann@example.com"}`},
	}
	r := newAuthRouter()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			assert.Equal(t, tc.status, rec.Code)
			assert.JSONEq(t, tc.body, rec.Body.String())
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS()...)
	r.POST("/api/ai/chat", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	for _, origin := range []string{"http://localhost:5173", ""} {
		req := httptest.NewRequest(http.MethodOptions, "/api/ai/chat", nil)
		if origin != "" {
			req.Header.Set("Origin", origin)
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code, origin)
		if origin != "" {
			assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/api/ai/chat", nil)
	req.Header.Set("Origin", "https://example.org")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestLoggerLevels(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.DebugLevel)
	r := gin.New()
	r.Use(RequestLogger(zap.New(core)))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/broken", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for _, path := range []string{"/ok", "/missing", "/broken"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	entries := logs.All()
	if assert.Len(t, entries, 3) {
		assert.Equal(t, "info", entries[0].Level.String())
		assert.Equal(t, "warn", entries[1].Level.String())
		assert.Equal(t, "error", entries[2].Level.String())
		assert.Equal(t, "/broken", entries[2].ContextMap()["route"])
	}
}
