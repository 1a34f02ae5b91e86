package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/hanzong05/aimddlwr/internal/apperr"
	"go.uber.org/zap"
)

// respondError writes err as {"error": msg, ...details}. Only server-side
// failures are logged; their cause never reaches the client.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	e, ok := apperr.As(err)
	if !ok {
		logger.Error("Unhandled error", zap.String("route", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	status := e.Kind.Status()
	if status >= http.StatusInternalServerError {
		logger.Error(e.Message, zap.String("route", c.FullPath()), zap.Error(e.Err))
	}
	body := gin.H{"error": e.Message}
	for k, v := range e.Details {
		body[k] = v
	}
	c.JSON(status, body)
}

// bindingMessages maps a failed binding tag, keyed by field and tag, to the
// message returned to the client.
var bindingMessages = map[string]string{
	"Email.required":           "Email and password are required",
	"Email.email":              "Invalid email address",
	"Password.required":        "Email and password are required",
	"Message.required":         "Message is required",
	"PatternID.required":       "Pattern ID is required",
	"Type.required":            "Feedback type must be positive, negative or correction",
	"Score.min":                "Score must be between 1 and 5",
	"Score.max":                "Score must be between 1 and 5",
	"Content.required":         "Content must be at least 3 characters",
	"Importance.min":           "Importance must be between 1 and 10",
	"Importance.max":           "Importance must be between 1 and 10",
	"InputPattern.required":    "Input and response patterns must be at least 3 characters",
	"ResponsePattern.required": "Input and response patterns must be at least 3 characters",
	"QualityScore.min":         "Quality score must be between 1 and 5",
	"QualityScore.max":         "Quality score must be between 1 and 5",
}

// bindJSON decodes the request body into dst and checks its binding tags. An
// empty body is accepted when optional is true.
func bindJSON(c *gin.Context, dst any, optional bool) error {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return nil
	}
	if optional && errors.Is(err, io.EOF) {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if msg, ok := bindingMessages[fe.Field()+"."+fe.Tag()]; ok {
			return apperr.Validation(msg)
		}
		return apperr.Validation("Invalid " + fe.Field())
	}
	return apperr.Validation("Invalid request body")
}

func queryInt(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Validation("Invalid " + name)
	}
	return n, nil
}

func queryFloat(c *gin.Context, name string) (*float64, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, apperr.Validation("Invalid " + name)
	}
	return &f, nil
}

func queryBool(c *gin.Context, name string) (*bool, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, apperr.Validation("Invalid " + name)
	}
	return &b, nil
}

// idParam returns the :id path segment, or the ?id= query parameter on
// collection routes.
func idParam(c *gin.Context) string {
	if id := c.Param("id"); id != "" {
		return id
	}
	return c.Query("id")
}

// MethodNotAllowed is installed as the router's NoMethod handler.
func MethodNotAllowed(c *gin.Context) {
	c.JSON(http.StatusMethodNotAllowed, gin.H{"error": apperr.MethodNotAllowed().Message})
}

// NotFound is installed as the router's NoRoute handler.
func NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
}
