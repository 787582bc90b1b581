package db

import (
	"fmt"
	"log"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB creates an in-memory SQLite database for testing. The pool is
// capped at one connection so every handle sees the same database, which
// also lets tests observe pool exhaustion and leaked connections.
func SetupTestDB() (*gorm.DB, error) {
	gdb, err := gorm.Open(sqlite.Open("file::memory:?_foreign_keys=on"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to test database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get test database instance: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := gdb.AutoMigrate(Models()...); err != nil {
		return nil, fmt.Errorf("failed to migrate test database: %w", err)
	}

	return gdb, nil
}

// CleanupTestDB cleans up the test database
func CleanupTestDB(gdb *gorm.DB) {
	sqlDB, err := gdb.DB()
	if err != nil {
		log.Printf("Failed to get DB instance: %v", err)
		return
	}
	sqlDB.Close()
}

// TruncateAllTables removes all data from tables, children first
func TruncateAllTables(gdb *gorm.DB) error {
	tables := []string{
		"outbox_events", "message_replies", "messages", "reviews",
		"order_items", "orders", "cart_items", "users",
	}
	for _, table := range tables {
		if err := gdb.Exec(fmt.Sprintf("DELETE FROM %s", table)).Error; err != nil {
			return err
		}
	}
	return nil
}

// OpenConnections reports connections currently checked out of the pool
func OpenConnections(gdb *gorm.DB) int {
	sqlDB, err := gdb.DB()
	if err != nil {
		return -1
	}
	return sqlDB.Stats().InUse
}
