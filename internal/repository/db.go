package repository

import (
	"fmt"

	"github.com/shopiq/shopiq-backend/internal/domain"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to Postgres and runs schema migration for all domain
// models.
func Open(databaseURL string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&domain.User{},
		&domain.Employee{},
		&domain.Store{},
		&domain.ReferralLink{},
		&domain.Commission{},
	); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}
