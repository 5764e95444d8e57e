package main

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"order_composer/internal/config"
	"order_composer/internal/database"
	"order_composer/internal/migrations"
	"order_composer/internal/models"
	"order_composer/internal/repository"
)

func main() {
	fmt.Println("Initializing database...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatal("Failed to load configuration: ", err)
	}
	logger := config.NewLogger(cfg.Log)

	// Initialize database
	db, err := database.Initialize(cfg.DatabaseURL, logger, false)
	if err != nil {
		logger.Fatal("Failed to connect to database: ", err)
	}

	err = migrations.RunMigrations(db, logger, migrations.Defaults{
		TaxRate:         cfg.Composer.DefaultTaxRate,
		TaxEnabled:      cfg.Composer.TaxEnabled,
		DefaultCurrency: cfg.Composer.DefaultCurrency,
	})
	if err != nil {
		logger.Fatal("Failed to migrate database: ", err)
	}

	settings, err := repository.NewSettingsRepository(db).GetAllSettings()
	if err != nil {
		logger.Fatal("Failed to read settings: ", err)
	}
	fmt.Println("Active composer settings:")
	for _, s := range settings {
		value := s.TextValue
		if s.SettingName == models.SettingTaxRate {
			value = s.PercentageValue.String() + "%"
		}
		fmt.Printf("  %-18s %s\n", s.SettingName, value)
	}

	fmt.Println("Database initialization completed successfully!")
}
