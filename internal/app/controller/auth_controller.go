package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/bookstore-backend/internal/app/service"
	apperrors "github.com/ikkim/bookstore-backend/internal/errors"
	"github.com/ikkim/bookstore-backend/internal/middleware"
	"github.com/ikkim/bookstore-backend/pkg/util"
)

type AuthController struct {
	authService service.AuthService
}

func NewAuthController(authService service.AuthService) *AuthController {
	return &AuthController{authService: authService}
}

type CredentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// Register handles user registration
// POST /api/v1/auth/register
func (ctrl *AuthController) Register(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.RespondWithValidationError(c, "username and password are required", nil)
		return
	}

	user, tokens, err := ctrl.authService.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUsernameExists):
			apperrors.Conflict(c, apperrors.AuthUsernameExists, "Username already exists")
		case errors.Is(err, util.ErrWeakPassword):
			apperrors.BadRequest(c, apperrors.AuthWeakPassword, err.Error())
		case errors.Is(err, service.ErrInvalidUsername):
			apperrors.BadRequest(c, apperrors.ValidationRequired, err.Error())
		default:
			log.Error("Failed to register user", err)
			apperrors.InternalError(c, "Failed to register user")
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"user":    user,
		"tokens":  tokens,
	})
}

// Login handles user login
// POST /api/v1/auth/login
func (ctrl *AuthController) Login(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.RespondWithValidationError(c, "username and password are required", nil)
		return
	}

	user, tokens, err := ctrl.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			apperrors.RespondWithError(c, http.StatusUnauthorized, apperrors.AuthInvalidCredentials, "Invalid username or password")
			return
		}
		log.Error("Login failed", err)
		apperrors.InternalError(c, "Failed to log in")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user":    user,
		"tokens":  tokens,
	})
}

// AdminLogin issues a token for an admin account
// POST /api/v1/auth/admin/login
func (ctrl *AuthController) AdminLogin(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.RespondWithValidationError(c, "username and password are required", nil)
		return
	}

	tokens, err := ctrl.authService.AdminLogin(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			apperrors.RespondWithError(c, http.StatusUnauthorized, apperrors.AuthInvalidCredentials, "Invalid admin credentials")
		default:
			apperrors.InternalError(c, "")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"tokens":  tokens,
	})
}

// Refresh exchanges a refresh token for a new pair
// POST /api/v1/auth/refresh
func (ctrl *AuthController) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.RespondWithValidationError(c, "refresh_token is required", nil)
		return
	}

	tokens, err := ctrl.authService.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrExpiredToken):
			apperrors.RespondWithError(c, http.StatusUnauthorized, apperrors.AuthTokenExpired, "Refresh token has expired")
		case errors.Is(err, util.ErrInvalidToken), errors.Is(err, service.ErrUserNotFound):
			apperrors.RespondWithError(c, http.StatusUnauthorized, apperrors.AuthTokenInvalid, "Invalid refresh token")
		default:
			apperrors.InternalError(c, "")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"tokens":  tokens,
	})
}

// Logout revokes the current access token
// POST /api/v1/auth/logout
func (ctrl *AuthController) Logout(c *gin.Context) {
	if err := ctrl.authService.Logout(c.Request.Context(), middleware.GetAccessToken(c)); err != nil {
		middleware.GetLoggerFromContext(c).Warn("Logout failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Me returns the authenticated account
// GET /api/v1/auth/me
func (ctrl *AuthController) Me(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	user, err := ctrl.authService.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			apperrors.NotFound(c, apperrors.ResourceNotFound, "User not found")
			return
		}
		apperrors.InternalError(c, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// ChangePassword replaces the caller's password after checking the old one
// POST /api/v1/admin/change-password
func (ctrl *AuthController) ChangePassword(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.RespondWithValidationError(c, "old_password and new_password are required", nil)
		return
	}

	err := ctrl.authService.ChangePassword(c.Request.Context(), userID, req.OldPassword, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrIncorrectPassword):
			apperrors.BadRequest(c, apperrors.AuthIncorrectPassword, "Old password incorrect")
		case errors.Is(err, util.ErrWeakPassword):
			apperrors.BadRequest(c, apperrors.AuthWeakPassword, err.Error())
		case errors.Is(err, service.ErrUserNotFound):
			apperrors.NotFound(c, apperrors.ResourceNotFound, "Account not found")
		default:
			middleware.GetLoggerFromContext(c).Error("Failed to change password", err)
			apperrors.InternalError(c, "Server error changing password")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Password updated successfully",
	})
}
