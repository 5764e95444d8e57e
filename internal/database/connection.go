package database

import (
	"fmt"
	"time"

	"order_composer/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Initialize opens the postgres pool. Schema changes are left to
// migrations.RunMigrations.
func Initialize(databaseURL string, log logrus.FieldLogger, debug bool) (*gorm.DB, error) {
	level := logger.Warn
	if debug {
		level = logger.Info
	}
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	log.Info("Database connected")
	return db, nil
}

// AutoMigrate creates or updates the tables the composer owns.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.OrderSubmission{},
		&models.ComposerSetting{},
		&models.OperatorPreference{},
	)
}
