package database

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"stellar-harvest-bot-go/internal/models"
)

// NewDatabase opens the sqlite database and migrates the schema.
// Tables are never dropped: transactions, performance and price history are
// append-only logs that must survive restarts.
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(
		&models.Transaction{},
		&models.PerformanceSnapshot{},
		&models.PricePoint{},
	); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate database: %w", err)
	}

	return db, nil
}
