package migrations

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"order_composer/internal/database"
	"order_composer/internal/models"
	"order_composer/internal/repository"
)

// Defaults are the composer settings seeded on a fresh database.
type Defaults struct {
	TaxRate         decimal.Decimal
	TaxEnabled      bool
	DefaultCurrency string
}

// RunMigrations migrates the schema and creates default data
func RunMigrations(db *gorm.DB, logger logrus.FieldLogger, defaults Defaults) error {
	logger.Info("Running database migrations...")

	if err := database.AutoMigrate(db); err != nil {
		return err
	}

	if err := createDefaultSettings(db, repository.NewSettingsRepository(db), logger, defaults); err != nil {
		return fmt.Errorf("failed to create default settings: %w", err)
	}

	logger.Info("Database migrations completed successfully")
	return nil
}

// createDefaultSettings only adds settings that do not exist yet, so edits
// made by an administrator survive a restart.
func createDefaultSettings(db *gorm.DB, repo repository.SettingsRepository, logger logrus.FieldLogger, defaults Defaults) error {
	// Inactive rows count too, they still own the unique name.
	var names []string
	if err := db.Model(&models.ComposerSetting{}).Pluck("setting_name", &names).Error; err != nil {
		return err
	}
	have := make(map[string]bool, len(names))
	for _, name := range names {
		have[name] = true
	}

	seed := []models.ComposerSetting{
		{
			SettingName:     models.SettingTaxRate,
			PercentageValue: defaults.TaxRate,
			IsPercentage:    true,
			IsActive:        true,
		},
		{
			SettingName: models.SettingTaxEnabled,
			TextValue:   strconv.FormatBool(defaults.TaxEnabled),
			IsActive:    true,
		},
		{
			SettingName: models.SettingDefaultCurrency,
			TextValue:   defaults.DefaultCurrency,
			IsActive:    true,
		},
	}

	for i := range seed {
		setting := seed[i]
		if have[setting.SettingName] {
			logger.WithField("setting", setting.SettingName).Debug("Setting already exists")
			continue
		}
		if err := repo.CreateSettings(&setting); err != nil {
			return err
		}
		logger.WithField("setting", setting.SettingName).Info("Created default setting")
	}
	return nil
}
