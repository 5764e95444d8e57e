package repository

import (
	"order_composer/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SettingsRepository interface {
	CreateSettings(settings *models.ComposerSetting) error
	GetSettings(settingName string) (*models.ComposerSetting, error)
	GetAllSettings() ([]models.ComposerSetting, error)
	UpdateSettings(settings *models.ComposerSetting) error
	UpsertSettings(settings *models.ComposerSetting) error
}

type settingsRepository struct {
	db *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

func (r *settingsRepository) CreateSettings(settings *models.ComposerSetting) error {
	return r.db.Create(settings).Error
}

func (r *settingsRepository) GetSettings(settingName string) (*models.ComposerSetting, error) {
	var settings models.ComposerSetting
	err := r.db.Where("setting_name = ? AND is_active = ?", settingName, true).First(&settings).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &settings, nil
}

func (r *settingsRepository) GetAllSettings() ([]models.ComposerSetting, error) {
	var settings []models.ComposerSetting
	err := r.db.Where("is_active = ?", true).Order("setting_name").Find(&settings).Error
	return settings, err
}

func (r *settingsRepository) UpdateSettings(settings *models.ComposerSetting) error {
	return r.db.Save(settings).Error
}

func (r *settingsRepository) UpsertSettings(settings *models.ComposerSetting) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "setting_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"percentage_value", "fixed_amount", "text_value", "is_percentage", "is_active", "updated_at"}),
	}).Create(settings).Error
}
