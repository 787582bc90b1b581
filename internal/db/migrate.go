package db

import (
	"github.com/ikkim/bookstore-backend/internal/app/model"
	"github.com/ikkim/bookstore-backend/pkg/logger"
	"gorm.io/gorm"
)

// Models lists every table owned by the service, parents first.
func Models() []interface{} {
	return []interface{}{
		&model.User{},
		&model.CartItem{},
		&model.Order{},
		&model.OrderItem{},
		&model.Review{},
		&model.Message{},
		&model.MessageReply{},
		&model.OutboxEvent{},
	}
}

// Migrate runs database migrations
func Migrate(gdb *gorm.DB) error {
	logger.Info("Running database migrations...")

	models := Models()
	if err := gdb.AutoMigrate(models...); err != nil {
		logger.Error("Failed to run migrations", err)
		return err
	}

	logger.Info("Database migrations completed successfully", map[string]interface{}{
		"models_count": len(models),
	})
	return nil
}
