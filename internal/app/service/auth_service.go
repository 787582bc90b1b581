package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ikkim/bookstore-backend/config"
	"github.com/ikkim/bookstore-backend/internal/app/model"
	"github.com/ikkim/bookstore-backend/internal/app/repository"
	appErrors "github.com/ikkim/bookstore-backend/internal/errors"
	"github.com/ikkim/bookstore-backend/pkg/logger"
	"github.com/ikkim/bookstore-backend/pkg/util"
	"gorm.io/gorm"
)

var (
	ErrUsernameExists     = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidUsername    = errors.New("username is required")
	ErrIncorrectPassword  = errors.New("current password is incorrect")
	ErrAdminUsernameTaken = errors.New("admin username belongs to a customer account")
)

// TokenBlacklist revokes tokens before their expiry. Logout is a no-op
// without one.
type TokenBlacklist interface {
	BlacklistToken(ctx context.Context, token string, expiry time.Duration) error
}

type AuthService interface {
	Register(ctx context.Context, username, password string) (*model.User, *util.TokenPair, error)
	Login(ctx context.Context, username, password string) (*model.User, *util.TokenPair, error)
	AdminLogin(ctx context.Context, username, password string) (*util.TokenPair, error)
	EnsureAdmin(ctx context.Context) error
	ChangePassword(ctx context.Context, userID uint, currentPassword, newPassword string) error
	Refresh(ctx context.Context, refreshToken string) (*util.TokenPair, error)
	Logout(ctx context.Context, accessToken string) error
	GetUserByID(ctx context.Context, id uint) (*model.User, error)
}

type authService struct {
	userRepo      repository.UserRepository
	jwtSecret     string
	accessExpiry  time.Duration
	refreshExpiry time.Duration
	admin         config.AdminConfig
	blacklist     TokenBlacklist
}

func NewAuthService(
	userRepo repository.UserRepository,
	jwtCfg config.JWTConfig,
	admin config.AdminConfig,
	blacklist TokenBlacklist,
) AuthService {
	return &authService{
		userRepo:      userRepo,
		jwtSecret:     jwtCfg.Secret,
		accessExpiry:  jwtCfg.AccessTokenExpiry,
		refreshExpiry: jwtCfg.RefreshTokenExpiry,
		admin:         admin,
		blacklist:     blacklist,
	}
}

func (s *authService) Register(ctx context.Context, username, password string) (*model.User, *util.TokenPair, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, nil, ErrInvalidUsername
	}
	if err := util.ValidatePassword(password); err != nil {
		return nil, nil, err
	}

	logger.Info("Attempting user registration", map[string]interface{}{
		"username": username,
	})

	hashedPassword, err := util.HashPassword(password)
	if err != nil {
		logger.Error("Failed to hash password", err, map[string]interface{}{
			"username": username,
		})
		return nil, nil, err
	}

	user := &model.User{
		Username:     username,
		PasswordHash: hashedPassword,
		Role:         model.RoleUser,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if appErrors.IsDuplicate(err) {
			logger.Warn("Registration failed: username already exists", map[string]interface{}{
				"username": username,
			})
			return nil, nil, ErrUsernameExists
		}
		logger.Error("Failed to create user in database", err, map[string]interface{}{
			"username": username,
		})
		return nil, nil, err
	}

	tokens, err := s.issue(user.ID, user.Username, string(user.Role))
	if err != nil {
		return nil, nil, err
	}

	logger.Info("User registered successfully", map[string]interface{}{
		"user_id":  user.ID,
		"username": username,
	})
	return user, tokens, nil
}

func (s *authService) Login(ctx context.Context, username, password string) (*model.User, *util.TokenPair, error) {
	username = strings.TrimSpace(username)

	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn("Login failed: user not found", map[string]interface{}{
				"username": username,
			})
			return nil, nil, ErrInvalidCredentials
		}
		logger.Error("Failed to find user", err, map[string]interface{}{
			"username": username,
		})
		return nil, nil, err
	}

	if user.Role != model.RoleUser {
		logger.Warn("Login failed: not a customer account", map[string]interface{}{
			"user_id": user.ID,
		})
		return nil, nil, ErrInvalidCredentials
	}
	if !util.VerifyPassword(user.PasswordHash, password) {
		logger.Warn("Login failed: invalid password", map[string]interface{}{
			"user_id": user.ID,
		})
		return nil, nil, ErrInvalidCredentials
	}

	tokens, err := s.issue(user.ID, user.Username, string(user.Role))
	if err != nil {
		return nil, nil, err
	}

	logger.Info("User logged in successfully", map[string]interface{}{
		"user_id": user.ID,
		"role":    user.Role,
	})
	return user, tokens, nil
}

// AdminLogin authenticates a users row with the admin role.
func (s *authService) AdminLogin(ctx context.Context, username, password string) (*util.TokenPair, error) {
	username = strings.TrimSpace(username)

	admin, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn("Admin login failed: account not found", map[string]interface{}{
				"username": username,
			})
			return nil, ErrInvalidCredentials
		}
		logger.Error("Failed to find admin", err, map[string]interface{}{
			"username": username,
		})
		return nil, err
	}
	if admin.Role != model.RoleAdmin || !util.VerifyPassword(admin.PasswordHash, password) {
		logger.Warn("Admin login failed", map[string]interface{}{
			"username": username,
		})
		return nil, ErrInvalidCredentials
	}

	logger.Info("Admin logged in", map[string]interface{}{
		"user_id": admin.ID,
	})
	return s.issue(admin.ID, admin.Username, string(admin.Role))
}

// EnsureAdmin creates the configured admin account on first start. An
// existing admin row is left alone so changed passwords survive restarts.
func (s *authService) EnsureAdmin(ctx context.Context) error {
	username := strings.TrimSpace(s.admin.Username)
	if username == "" {
		logger.Warn("No admin account configured")
		return nil
	}

	existing, err := s.userRepo.FindByUsername(ctx, username)
	switch {
	case err == nil && existing.Role == model.RoleAdmin:
		return nil
	case err == nil:
		return ErrAdminUsernameTaken
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return err
	}

	if err := util.ValidatePassword(s.admin.Password); err != nil {
		return fmt.Errorf("admin password: %w", err)
	}
	hashed, err := util.HashPassword(s.admin.Password)
	if err != nil {
		return err
	}

	admin := &model.User{Username: username, PasswordHash: hashed, Role: model.RoleAdmin}
	if err := s.userRepo.Create(ctx, admin); err != nil {
		return err
	}
	logger.Info("Admin account created", map[string]interface{}{
		"user_id":  admin.ID,
		"username": username,
	})
	return nil
}

func (s *authService) ChangePassword(ctx context.Context, userID uint, currentPassword, newPassword string) error {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if !util.VerifyPassword(user.PasswordHash, currentPassword) {
		logger.Warn("Password change rejected: current password incorrect", map[string]interface{}{
			"user_id": userID,
		})
		return ErrIncorrectPassword
	}
	if err := util.ValidatePassword(newPassword); err != nil {
		return err
	}

	hashed, err := util.HashPassword(newPassword)
	if err != nil {
		logger.Error("Failed to hash password", err, map[string]interface{}{
			"user_id": userID,
		})
		return err
	}
	if err := s.userRepo.UpdatePassword(ctx, userID, hashed); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	logger.Info("Password changed", map[string]interface{}{
		"user_id": userID,
	})
	return nil
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*util.TokenPair, error) {
	claims, err := util.ValidateToken(refreshToken, s.jwtSecret)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != util.TokenTypeRefresh {
		return nil, util.ErrInvalidToken
	}

	// The account may have been deleted since the token was issued.
	user, err := s.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	return s.issue(user.ID, user.Username, string(user.Role))
}

func (s *authService) Logout(ctx context.Context, accessToken string) error {
	if s.blacklist == nil || accessToken == "" {
		return nil
	}
	claims, err := util.ValidateToken(accessToken, s.jwtSecret)
	if err != nil {
		return err
	}

	remaining := s.accessExpiry
	if claims.ExpiresAt != nil {
		remaining = time.Until(claims.ExpiresAt.Time)
	}
	if remaining <= 0 {
		return nil
	}
	return s.blacklist.BlacklistToken(ctx, accessToken, remaining)
}

func (s *authService) GetUserByID(ctx context.Context, id uint) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		logger.Error("Failed to fetch user", err, map[string]interface{}{
			"user_id": id,
		})
		return nil, err
	}
	return user, nil
}

func (s *authService) issue(userID uint, username, role string) (*util.TokenPair, error) {
	tokens, err := util.GenerateTokenPair(userID, username, role, s.jwtSecret, s.accessExpiry, s.refreshExpiry)
	if err != nil {
		logger.Error("Failed to generate tokens", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}
	return tokens, nil
}
