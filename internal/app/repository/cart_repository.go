package repository

import (
	"context"

	"github.com/ikkim/bookstore-backend/internal/app/model"
	"github.com/ikkim/bookstore-backend/pkg/logger"
	"gorm.io/gorm"
)

type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	Create(ctx context.Context, cartItem *model.CartItem) error
	FindByUserID(ctx context.Context, userID uint) ([]model.CartItem, error)
	FindByID(ctx context.Context, id uint) (*model.CartItem, error)
	FindByUserAndProduct(ctx context.Context, userID uint, productName string) (*model.CartItem, error)
	UpdateQuantity(ctx context.Context, id, userID uint, quantity int) error
	IncrementQuantity(ctx context.Context, id, userID uint, delta int) error
	DeleteForUser(ctx context.Context, id, userID uint) error
	DeleteByUserID(ctx context.Context, userID uint) (int64, error)
}

type cartRepository struct {
	db *gorm.DB
}

func NewCartRepository(db *gorm.DB) CartRepository {
	return &cartRepository{db: db}
}

// WithTx returns a repository bound to an open transaction
func (r *cartRepository) WithTx(tx *gorm.DB) CartRepository {
	return &cartRepository{db: tx}
}

func (r *cartRepository) Create(ctx context.Context, cartItem *model.CartItem) error {
	logger.Debug("Creating cart item in database", map[string]interface{}{
		"user_id":      cartItem.UserID,
		"product_name": cartItem.ProductName,
		"quantity":     cartItem.Quantity,
	})

	if err := r.db.WithContext(ctx).Create(cartItem).Error; err != nil {
		logger.Error("Failed to create cart item in database", err, map[string]interface{}{
			"user_id":      cartItem.UserID,
			"product_name": cartItem.ProductName,
		})
		return err
	}
	return nil
}

func (r *cartRepository) FindByUserID(ctx context.Context, userID uint) ([]model.CartItem, error) {
	var cartItems []model.CartItem
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id ASC").
		Find(&cartItems).Error
	if err != nil {
		logger.Error("Failed to find cart items by user ID in database", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}

	logger.Debug("Cart items found by user ID in database", map[string]interface{}{
		"user_id": userID,
		"count":   len(cartItems),
	})
	return cartItems, nil
}

func (r *cartRepository) FindByID(ctx context.Context, id uint) (*model.CartItem, error) {
	var cartItem model.CartItem
	if err := r.db.WithContext(ctx).First(&cartItem, id).Error; err != nil {
		return nil, err
	}
	return &cartItem, nil
}

func (r *cartRepository) FindByUserAndProduct(ctx context.Context, userID uint, productName string) (*model.CartItem, error) {
	var cartItem model.CartItem
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND product_name = ?", userID, productName).
		First(&cartItem).Error
	if err != nil {
		return nil, err
	}
	return &cartItem, nil
}

// UpdateQuantity changes one line owned by userID. A missing or foreign line
// yields gorm.ErrRecordNotFound.
func (r *cartRepository) UpdateQuantity(ctx context.Context, id, userID uint, quantity int) error {
	result := r.db.WithContext(ctx).
		Model(&model.CartItem{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("quantity", quantity)
	if result.Error != nil {
		logger.Error("Failed to update cart item quantity in database", result.Error, map[string]interface{}{
			"cart_item_id": id,
			"user_id":      userID,
		})
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// IncrementQuantity adds delta to the stored quantity in a single statement.
func (r *cartRepository) IncrementQuantity(ctx context.Context, id, userID uint, delta int) error {
	result := r.db.WithContext(ctx).
		Model(&model.CartItem{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("quantity", gorm.Expr("quantity + ?", delta))
	if result.Error != nil {
		logger.Error("Failed to increment cart item quantity in database", result.Error, map[string]interface{}{
			"cart_item_id": id,
			"user_id":      userID,
		})
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *cartRepository) DeleteForUser(ctx context.Context, id, userID uint) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&model.CartItem{})
	if result.Error != nil {
		logger.Error("Failed to delete cart item in database", result.Error, map[string]interface{}{
			"cart_item_id": id,
			"user_id":      userID,
		})
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteByUserID removes every line of the user's cart and returns how many
// were removed.
func (r *cartRepository) DeleteByUserID(ctx context.Context, userID uint) (int64, error) {
	result := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&model.CartItem{})
	if result.Error != nil {
		logger.Error("Failed to clear cart in database", result.Error, map[string]interface{}{
			"user_id": userID,
		})
		return 0, result.Error
	}

	logger.Debug("Cart cleared in database", map[string]interface{}{
		"user_id": userID,
		"removed": result.RowsAffected,
	})
	return result.RowsAffected, nil
}
