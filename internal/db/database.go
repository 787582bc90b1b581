package db

import (
	"context"
	"fmt"

	"github.com/ikkim/bookstore-backend/config"
	appLogger "github.com/ikkim/bookstore-backend/pkg/logger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Initialize opens the PostgreSQL pool. The handle is passed explicitly to
// repositories and services.
func Initialize(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	appLogger.Info("Connecting to database", map[string]interface{}{
		"host":     cfg.Host,
		"port":     cfg.Port,
		"database": cfg.DBName,
		"user":     cfg.User,
	})

	gdb, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	appLogger.Info("Database connection established successfully", map[string]interface{}{
		"max_idle_conns":    cfg.MaxIdleConns,
		"max_open_conns":    cfg.MaxOpenConns,
		"conn_max_lifetime": cfg.ConnMaxLifetime.String(),
	})
	return gdb, nil
}

// Close closes the underlying pool
func Close(gdb *gorm.DB) error {
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks that a connection can be obtained
func Ping(ctx context.Context, gdb *gorm.DB) error {
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
