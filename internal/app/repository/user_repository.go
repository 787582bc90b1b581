package repository

import (
	"context"

	"github.com/ikkim/bookstore-backend/internal/app/model"
	"github.com/ikkim/bookstore-backend/pkg/logger"
	"gorm.io/gorm"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id uint) (*model.User, error)
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	FindAll(ctx context.Context) ([]model.User, error)
	UpdatePassword(ctx context.Context, id uint, passwordHash string) error
	Delete(ctx context.Context, id uint) error
	Count(ctx context.Context) (int64, error)
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	logger.Debug("Creating user in database", map[string]interface{}{
		"username": user.Username,
	})

	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		logger.Error("Failed to create user in database", err, map[string]interface{}{
			"username": user.Username,
		})
		return err
	}

	logger.Debug("User created in database", map[string]interface{}{
		"user_id":  user.ID,
		"username": user.Username,
	})
	return nil
}

func (r *userRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindAll lists customer accounts; admin rows are excluded.
func (r *userRepository) FindAll(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := r.db.WithContext(ctx).Where("role = ?", model.RoleUser).Order("created_at DESC, id DESC").Find(&users).Error; err != nil {
		logger.Error("Failed to list users in database", err)
		return nil, err
	}
	return users, nil
}

func (r *userRepository) UpdatePassword(ctx context.Context, id uint, passwordHash string) error {
	result := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", id).
		Update("password_hash", passwordHash)
	if result.Error != nil {
		logger.Error("Failed to update password in database", result.Error, map[string]interface{}{
			"user_id": id,
		})
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete removes a customer. Cart lines, reviews and messages cascade;
// existing orders block the delete with a foreign key violation. Admin rows
// are never matched.
func (r *userRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Where("role = ?", model.RoleUser).Delete(&model.User{}, id)
	if result.Error != nil {
		logger.Error("Failed to delete user in database", result.Error, map[string]interface{}{
			"user_id": id,
		})
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *userRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.User{}).Where("role = ?", model.RoleUser).Count(&count).Error
	return count, err
}
