package errors

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the single error body shape used by every endpoint
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

// RespondWithError writes an error body and aborts the handler chain
func RespondWithError(c *gin.Context, statusCode int, errorCode string, message string) {
	c.AbortWithStatusJSON(statusCode, ErrorResponse{
		Success: false,
		Error:   message,
		Code:    errorCode,
	})
}

func Unauthorized(c *gin.Context, message string) {
	if message == "" {
		message = "Authentication required"
	}
	RespondWithError(c, http.StatusUnauthorized, AuthUnauthorized, message)
}

func Forbidden(c *gin.Context, message string) {
	if message == "" {
		message = "Access denied"
	}
	RespondWithError(c, http.StatusForbidden, AuthzForbidden, message)
}

func BadRequest(c *gin.Context, errorCode string, message string) {
	RespondWithError(c, http.StatusBadRequest, errorCode, message)
}

func NotFound(c *gin.Context, errorCode string, message string) {
	RespondWithError(c, http.StatusNotFound, errorCode, message)
}

func Conflict(c *gin.Context, errorCode string, message string) {
	RespondWithError(c, http.StatusConflict, errorCode, message)
}

func InternalError(c *gin.Context, message string) {
	if message == "" {
		message = "Internal server error. Please try again later."
	}
	RespondWithError(c, http.StatusInternalServerError, InternalServerError, message)
}

// ServiceUnavailable signals a retryable failure and sets Retry-After
func ServiceUnavailable(c *gin.Context, errorCode string, message string, retryAfter time.Duration) {
	secs := int(retryAfter.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	c.Header("Retry-After", strconv.Itoa(secs))
	RespondWithError(c, http.StatusServiceUnavailable, errorCode, message)
}

// ValidationError carries per-field messages
type ValidationError struct {
	Success bool              `json:"success"`
	Error   string            `json:"error"`
	Code    string            `json:"code"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func RespondWithValidationError(c *gin.Context, message string, fields map[string]string) {
	if message == "" {
		message = "Invalid request data"
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, ValidationError{
		Success: false,
		Error:   message,
		Code:    ValidationInvalidInput,
		Fields:  fields,
	})
}
