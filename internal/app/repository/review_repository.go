package repository

import (
	"context"

	"github.com/ikkim/bookstore-backend/internal/app/model"
	"gorm.io/gorm"
)

type ReviewRepository struct {
	db *gorm.DB
}

func NewReviewRepository(db *gorm.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

func (r *ReviewRepository) withUserName(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&model.Review{}).
		Select("reviews.*, users.username AS user_name").
		Joins("LEFT JOIN users ON users.id = reviews.user_id")
}

func (r *ReviewRepository) Create(ctx context.Context, review *model.Review) error {
	return r.db.WithContext(ctx).Create(review).Error
}

func (r *ReviewRepository) FindByID(ctx context.Context, id uint) (*model.Review, error) {
	var review model.Review
	if err := r.withUserName(ctx).Where("reviews.id = ?", id).First(&review).Error; err != nil {
		return nil, err
	}
	return &review, nil
}

// Exists reports whether the user already reviewed the product
func (r *ReviewRepository) Exists(ctx context.Context, userID uint, productName string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Review{}).
		Where("user_id = ? AND product_name = ?", userID, productName).
		Count(&count).Error
	return count > 0, err
}

func (r *ReviewRepository) FindByProduct(ctx context.Context, productName string) ([]model.Review, error) {
	var reviews []model.Review
	err := r.withUserName(ctx).
		Where("reviews.product_name = ?", productName).
		Order("reviews.created_at DESC, reviews.id DESC").
		Find(&reviews).Error
	return reviews, err
}

func (r *ReviewRepository) FindByUser(ctx context.Context, userID uint) ([]model.Review, error) {
	var reviews []model.Review
	err := r.withUserName(ctx).
		Where("reviews.user_id = ?", userID).
		Order("reviews.created_at DESC, reviews.id DESC").
		Find(&reviews).Error
	return reviews, err
}

func (r *ReviewRepository) FindAll(ctx context.Context) ([]model.Review, error) {
	var reviews []model.Review
	err := r.withUserName(ctx).
		Order("reviews.created_at DESC, reviews.id DESC").
		Find(&reviews).Error
	return reviews, err
}

// Delete returns gorm.ErrRecordNotFound when nothing was removed
func (r *ReviewRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&model.Review{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *ReviewRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Review{}).Count(&count).Error
	return count, err
}
