package middleware

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORS allows any origin. Preflight requests, with or without an Origin
// header, are answered with 200 and never reach a handler.
func CORS() []gin.HandlerFunc {
	return []gin.HandlerFunc{
		cors.New(cors.Config{
			AllowAllOrigins:           true,
			AllowMethods:              []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:              []string{"Authorization", "Content-Type", "X-Requested-With"},
			MaxAge:                    12 * time.Hour,
			OptionsResponseStatusCode: http.StatusOK,
		}),
		func(c *gin.Context) {
			if c.Request.Method == http.MethodOptions {
				c.AbortWithStatus(http.StatusOK)
				return
			}
			c.Next()
		},
	}
}
