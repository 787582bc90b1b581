package controller

import (
	"strconv"

	"github.com/gin-gonic/gin"
	apperrors "github.com/ikkim/bookstore-backend/internal/errors"
	"github.com/ikkim/bookstore-backend/internal/middleware"
)

// requireUser aborts with 401 when the request carries no authenticated user
func requireUser(c *gin.Context) (uint, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		apperrors.Unauthorized(c, "User not authenticated")
		return 0, false
	}
	return userID, true
}

// parseID reads a positive numeric path parameter
func parseID(c *gin.Context, name, label string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		middleware.GetLoggerFromContext(c).Warn("Invalid ID format", map[string]interface{}{
			"param": name,
			"value": raw,
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidID, "Invalid "+label+" ID")
		return 0, false
	}
	return uint(id), true
}
