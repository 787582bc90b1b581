package repository

import (
	"context"
	"errors"

	"github.com/ikkim/bookstore-backend/internal/app/model"
	"github.com/ikkim/bookstore-backend/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrderFilter narrows the admin order listing.
type OrderFilter struct {
	Status model.OrderStatus
	UserID uint
}

type OrderRepository interface {
	WithTx(tx *gorm.DB) OrderRepository
	CreateHeader(ctx context.Context, order *model.Order) error
	CreateItem(ctx context.Context, item *model.OrderItem) error
	FindByID(ctx context.Context, id uint) (*model.Order, error)
	FindByUserID(ctx context.Context, userID uint) ([]model.Order, error)
	FindByIdempotencyKey(ctx context.Context, userID uint, key string) (*model.Order, error)
	FindAll(ctx context.Context, filter OrderFilter) ([]model.Order, error)
	UpdateStatus(ctx context.Context, id uint, status model.OrderStatus) error
	HasDeliveredProduct(ctx context.Context, userID uint, productName string) (bool, error)
	Count(ctx context.Context) (int64, error)
	CountByStatus(ctx context.Context) (map[model.OrderStatus]int64, error)
	SumRevenue(ctx context.Context) (float64, error)
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) WithTx(tx *gorm.DB) OrderRepository {
	return &orderRepository{db: tx}
}

func (r *orderRepository) preloadItems(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("OrderItems", func(db *gorm.DB) *gorm.DB {
		return db.Order("order_items.id ASC")
	})
}

// CreateHeader inserts only the order row; items are written separately so
// that each one can reference the generated id.
func (r *orderRepository) CreateHeader(ctx context.Context, order *model.Order) error {
	logger.Debug("Creating order header in database", map[string]interface{}{
		"user_id":     order.UserID,
		"total_price": order.TotalPrice,
	})

	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(order).Error; err != nil {
		logger.Error("Failed to create order header in database", err, map[string]interface{}{
			"user_id":     order.UserID,
			"total_price": order.TotalPrice,
		})
		return err
	}

	logger.Debug("Order header created in database", map[string]interface{}{
		"order_id": order.ID,
		"user_id":  order.UserID,
	})
	return nil
}

func (r *orderRepository) CreateItem(ctx context.Context, item *model.OrderItem) error {
	if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
		logger.Error("Failed to create order item in database", err, map[string]interface{}{
			"order_id":     item.OrderID,
			"product_name": item.ProductName,
		})
		return err
	}
	return nil
}

func (r *orderRepository) FindByID(ctx context.Context, id uint) (*model.Order, error) {
	var order model.Order
	if err := r.preloadItems(ctx).First(&order, id).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Error("Failed to find order by ID in database", err, map[string]interface{}{
				"order_id": id,
			})
		}
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) FindByUserID(ctx context.Context, userID uint) ([]model.Order, error) {
	logger.Debug("Finding orders by user ID in database", map[string]interface{}{
		"user_id": userID,
	})

	var orders []model.Order
	if err := r.preloadItems(ctx).Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&orders).Error; err != nil {
		logger.Error("Failed to find orders by user ID in database", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}

	logger.Debug("Orders found by user ID in database", map[string]interface{}{
		"user_id": userID,
		"count":   len(orders),
	})
	return orders, nil
}

func (r *orderRepository) FindByIdempotencyKey(ctx context.Context, userID uint, key string) (*model.Order, error) {
	var order model.Order
	err := r.preloadItems(ctx).
		Where("user_id = ? AND idempotency_key = ?", userID, key).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindAll lists orders newest first with the placing user's name attached.
func (r *orderRepository) FindAll(ctx context.Context, filter OrderFilter) ([]model.Order, error) {
	query := r.preloadItems(ctx).
		Model(&model.Order{}).
		Select("orders.*, users.username AS user_name").
		Joins("LEFT JOIN users ON users.id = orders.user_id")

	if filter.Status != "" {
		query = query.Where("orders.status = ?", filter.Status)
	}
	if filter.UserID != 0 {
		query = query.Where("orders.user_id = ?", filter.UserID)
	}

	var orders []model.Order
	if err := query.Order("orders.created_at DESC, orders.id DESC").Find(&orders).Error; err != nil {
		logger.Error("Failed to list orders in database", err, map[string]interface{}{
			"status": filter.Status,
		})
		return nil, err
	}
	return orders, nil
}

// UpdateStatus overwrites the status column of one order and nothing else,
// updated_at included. Zero matched rows yields gorm.ErrRecordNotFound.
func (r *orderRepository) UpdateStatus(ctx context.Context, id uint, status model.OrderStatus) error {
	logger.Debug("Updating order status in database", map[string]interface{}{
		"order_id": id,
		"status":   status,
	})

	result := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("id = ?", id).
		UpdateColumn("status", status)
	if result.Error != nil {
		logger.Error("Failed to update order status in database", result.Error, map[string]interface{}{
			"order_id": id,
			"status":   status,
		})
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *orderRepository) HasDeliveredProduct(ctx context.Context, userID uint, productName string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.OrderItem{}).
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("orders.user_id = ? AND orders.status = ? AND order_items.product_name = ?",
			userID, model.OrderStatusDelivered, productName).
		Count(&count).Error
	if err != nil {
		logger.Error("Failed to check delivered product in database", err, map[string]interface{}{
			"user_id":      userID,
			"product_name": productName,
		})
		return false, err
	}
	return count > 0, nil
}

func (r *orderRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Order{}).Count(&count).Error
	return count, err
}

func (r *orderRepository) CountByStatus(ctx context.Context) (map[model.OrderStatus]int64, error) {
	var rows []struct {
		Status model.OrderStatus
		Total  int64
	}
	err := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := map[model.OrderStatus]int64{
		model.OrderStatusReceived:   0,
		model.OrderStatusDispatched: 0,
		model.OrderStatusDelivered:  0,
	}
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}

func (r *orderRepository) SumRevenue(ctx context.Context) (float64, error) {
	var total float64
	err := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Select("COALESCE(SUM(total_price), 0)").
		Scan(&total).Error
	return total, err
}
