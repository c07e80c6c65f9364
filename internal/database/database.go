package database

import (
	"fmt"
	"log"
	"time"

	"resale-tracker/internal/models"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// Initialize opens the MySQL connection, tunes the pool, and migrates
// the schema. The composite unique indexes created here are what back
// the natural-key dedup guarantees on the append-only tables.
func Initialize(databaseURL string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(databaseURL), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(
		&models.Product{},
		&models.StyleVariant{},
		&models.ProviderMarketSnapshot{},
		&models.PriceHistoryRecord{},
		&models.SaleRecord{},
		&models.SyncAccount{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	log.Println("Database initialized successfully")
	return db, nil
}
